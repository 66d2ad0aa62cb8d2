package params

import (
	"reflect"
	"testing"
)

// TestApplyDefaultsEmptyRecord verifies that a fresh record ends up with
// exactly the ten documented keys and their default values.
func TestApplyDefaultsEmptyRecord(t *testing.T) {
	rec := NewRecord()
	rec.ApplyDefaults()

	want := map[string]string{
		KeyPath:                 "",
		KeyAttenuationDirectory: "",
		KeyCollimator:           "Choose Collimator",
		KeyScatter:              "Select Scatter Window",
		KeyPhotopeak:            "",
		KeyUpperWindow:          "Select Upper Window",
		KeyLowerWindow:          "Select Lower Window",
		KeyAlgorithm:            "Select Algorithm",
		KeyIterations:           "0",
		KeySubsets:              "0",
	}
	got := rec.Snapshot()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("defaults mismatch:\ngot  %v\nwant %v", got, want)
	}

	for _, key := range Keys() {
		if !rec.Has(key) {
			t.Errorf("key %q absent after ApplyDefaults", key)
		}
	}
}

// TestApplyDefaultsIdempotent verifies that applying defaults twice yields
// the same record as applying them once, with no extra notification.
func TestApplyDefaultsIdempotent(t *testing.T) {
	rec := NewRecord()
	rec.ApplyDefaults()
	first := rec.Snapshot()

	changes := 0
	rec.OnChange(func() { changes++ })

	rec.ApplyDefaults()
	if changes != 0 {
		t.Errorf("second ApplyDefaults notified %d times, want 0", changes)
	}
	if got := rec.Snapshot(); !reflect.DeepEqual(got, first) {
		t.Errorf("second ApplyDefaults mutated record:\ngot  %v\nwant %v", got, first)
	}
}

// TestApplyDefaultsPreservesValues verifies that a fully populated record is
// left untouched.
func TestApplyDefaultsPreservesValues(t *testing.T) {
	rec := NewRecord()
	rec.ApplyDefaults()
	rec.Set(KeyPath, "/data/study.dcm")
	rec.Set(KeyCollimator, "SY-LEHR")
	rec.Set(KeyIterations, "4")

	before := rec.Snapshot()
	rec.ApplyDefaults()
	if got := rec.Snapshot(); !reflect.DeepEqual(got, before) {
		t.Errorf("ApplyDefaults overwrote user values:\ngot  %v\nwant %v", got, before)
	}
}

// TestSetNotifies verifies the change notification contract: one event per
// effective mutation, none for writes that keep the value unchanged.
func TestSetNotifies(t *testing.T) {
	rec := NewRecord()
	rec.ApplyDefaults()

	changes := 0
	rec.OnChange(func() { changes++ })

	rec.Set(KeyAlgorithm, "OSEM")
	if changes != 1 {
		t.Fatalf("got %d notifications, want 1", changes)
	}

	rec.Set(KeyAlgorithm, "OSEM")
	if changes != 1 {
		t.Errorf("unchanged write notified, got %d notifications, want 1", changes)
	}
}

// TestBatchedUpdate verifies that BeginUpdate/EndUpdate collapse several
// mutations into one notification, including nested batches.
func TestBatchedUpdate(t *testing.T) {
	t.Run("Flat", func(t *testing.T) {
		rec := NewRecord()
		rec.ApplyDefaults()

		changes := 0
		rec.OnChange(func() { changes++ })

		rec.BeginUpdate()
		rec.Set(KeyPath, "/data/study.dcm")
		rec.Set(KeyIterations, "4")
		rec.Set(KeySubsets, "8")
		if changes != 0 {
			t.Fatalf("notified during batch, got %d", changes)
		}
		rec.EndUpdate()
		if changes != 1 {
			t.Errorf("got %d notifications after batch, want 1", changes)
		}
	})

	t.Run("Nested", func(t *testing.T) {
		rec := NewRecord()
		rec.ApplyDefaults()

		changes := 0
		rec.OnChange(func() { changes++ })

		rec.BeginUpdate()
		rec.Set(KeyPath, "/data/a.dcm")
		rec.BeginUpdate()
		rec.Set(KeySubsets, "8")
		rec.EndUpdate()
		if changes != 0 {
			t.Fatalf("inner EndUpdate notified, got %d", changes)
		}
		rec.EndUpdate()
		if changes != 1 {
			t.Errorf("got %d notifications after nested batch, want 1", changes)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		rec := NewRecord()
		rec.ApplyDefaults()

		changes := 0
		rec.OnChange(func() { changes++ })

		rec.BeginUpdate()
		rec.EndUpdate()
		if changes != 0 {
			t.Errorf("empty batch notified, got %d", changes)
		}
	})
}

// TestRestore verifies that restoring a snapshot replaces the contents and
// notifies once.
func TestRestore(t *testing.T) {
	rec := NewRecord()
	rec.ApplyDefaults()
	rec.Set(KeyPath, "/data/study.dcm")
	saved := rec.Snapshot()

	other := NewRecord()
	changes := 0
	other.OnChange(func() { changes++ })
	other.Restore(saved)

	if changes != 1 {
		t.Errorf("got %d notifications from Restore, want 1", changes)
	}
	if got := other.Snapshot(); !reflect.DeepEqual(got, saved) {
		t.Errorf("restored record mismatch:\ngot  %v\nwant %v", got, saved)
	}
}
