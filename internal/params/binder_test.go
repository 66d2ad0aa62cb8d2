package params

import (
	"reflect"
	"testing"
)

// fakeText is an in-memory TextField recording how often it is written.
type fakeText struct {
	val    string
	writes int
}

func (f *fakeText) Value() string     { return f.val }
func (f *fakeText) SetValue(s string) { f.val = s; f.writes++ }

// fakeNumber is an in-memory NumberField.
type fakeNumber struct {
	val    int
	writes int
}

func (f *fakeNumber) Value() int     { return f.val }
func (f *fakeNumber) SetValue(n int) { f.val = n; f.writes++ }

// fakeChoice is an in-memory ChoiceField. Select tolerates labels outside
// the option list the same way a real combo box ignores them.
type fakeChoice struct {
	options  []string
	selected string
}

func (f *fakeChoice) Options() []string { return f.options }
func (f *fakeChoice) Selected() string  { return f.selected }
func (f *fakeChoice) Clear()            { f.selected = "" }

func (f *fakeChoice) Select(label string) {
	for _, opt := range f.options {
		if opt == label {
			f.selected = label
			return
		}
	}
}

// newTestBinder builds a binder over a defaulted record with one fake widget
// per parameter.
func newTestBinder() (*Binder, *Record) {
	rec := NewRecord()
	rec.ApplyDefaults()

	b := NewBinder(rec)
	b.Path = &fakeText{}
	b.AttenuationDirectory = &fakeText{}
	b.Collimator = &fakeChoice{options: []string{"Choose Collimator", "SY-LEHR", "SY-ME"}}
	b.Scatter = &fakeChoice{options: []string{"Select Scatter Window", "Dual Energy Window", "Triple Energy Window"}}
	b.Photopeak = &fakeChoice{options: []string{"Photopeak (200keV - 240keV)"}}
	b.UpperWindow = &fakeChoice{options: []string{"Select Upper Window", "Upper (240keV - 260keV)"}}
	b.LowerWindow = &fakeChoice{options: []string{"Select Lower Window", "Lower (150keV - 160keV)"}}
	b.Algorithm = &fakeChoice{options: []string{"Select Algorithm", "OSEM", "BSREM"}}
	b.Iterations = &fakeNumber{}
	b.Subsets = &fakeNumber{}
	return b, rec
}

// TestPushToUI verifies that record values land in the widgets, with integer
// conversion and label resolution.
func TestPushToUI(t *testing.T) {
	b, rec := newTestBinder()
	rec.Set(KeyPath, "/data/study.dcm")
	rec.Set(KeyCollimator, "SY-LEHR")
	rec.Set(KeyPhotopeak, "Photopeak (200keV - 240keV)")
	rec.Set(KeyIterations, "4")
	rec.Set(KeySubsets, "8")

	b.PushToUI()

	if got := b.Path.(*fakeText).val; got != "/data/study.dcm" {
		t.Errorf("Path widget = %q, want %q", got, "/data/study.dcm")
	}
	if got := b.Collimator.(*fakeChoice).selected; got != "SY-LEHR" {
		t.Errorf("Collimator widget = %q, want %q", got, "SY-LEHR")
	}
	if got := b.Photopeak.(*fakeChoice).selected; got != "Photopeak (200keV - 240keV)" {
		t.Errorf("Photopeak widget = %q, want resolved label", got)
	}
	if got := b.Iterations.(*fakeNumber).val; got != 4 {
		t.Errorf("Iterations widget = %d, want 4", got)
	}
	if got := b.Subsets.(*fakeNumber).val; got != 8 {
		t.Errorf("Subsets widget = %d, want 8", got)
	}
	if b.State() != SyncIdle {
		t.Errorf("state after push = %v, want idle", b.State())
	}
}

// TestPushUnresolvedLabel verifies that a stored label missing from the
// choice list clears the selection without touching the record.
func TestPushUnresolvedLabel(t *testing.T) {
	b, rec := newTestBinder()
	b.Photopeak.(*fakeChoice).selected = "Photopeak (200keV - 240keV)"
	rec.Set(KeyPhotopeak, "Ghost (1keV - 2keV)")

	b.PushToUI()

	if got := b.Photopeak.(*fakeChoice).selected; got != "" {
		t.Errorf("unresolved label left selection %q, want empty", got)
	}
	if got := rec.Get(KeyPhotopeak); got != "Ghost (1keV - 2keV)" {
		t.Errorf("record value changed to %q during push", got)
	}
}

// TestPullFromUI verifies that widget values land in the record as a single
// batched change.
func TestPullFromUI(t *testing.T) {
	b, rec := newTestBinder()
	b.Path.(*fakeText).val = "/data/study.dcm"
	b.AttenuationDirectory.(*fakeText).val = "/data/ct"
	b.Collimator.(*fakeChoice).selected = "SY-ME"
	b.Algorithm.(*fakeChoice).selected = "OSEM"
	b.Iterations.(*fakeNumber).val = 4
	b.Subsets.(*fakeNumber).val = 8

	changes := 0
	rec.OnChange(func() { changes++ })

	b.PullFromUI()

	if changes != 1 {
		t.Errorf("pull notified %d times, want 1", changes)
	}
	if got := rec.Get(KeyPath); got != "/data/study.dcm" {
		t.Errorf("Path = %q, want %q", got, "/data/study.dcm")
	}
	if got := rec.Get(KeyAttenuationDirectory); got != "/data/ct" {
		t.Errorf("AttenuationDirectory = %q, want %q", got, "/data/ct")
	}
	if got := rec.Get(KeyCollimator); got != "SY-ME" {
		t.Errorf("Collimator = %q, want %q", got, "SY-ME")
	}
	if got := rec.Get(KeyIterations); got != "4" {
		t.Errorf("Iterations = %q, want %q", got, "4")
	}
	if got := rec.Get(KeySubsets); got != "8" {
		t.Errorf("Subsets = %q, want %q", got, "8")
	}
	if b.State() != SyncIdle {
		t.Errorf("state after pull = %v, want idle", b.State())
	}
}

// TestGuardSuppressesFeedback verifies the re-entrancy guard: a pull must
// not trigger the bound push listener, while an external record change must.
func TestGuardSuppressesFeedback(t *testing.T) {
	b, rec := newTestBinder()
	b.Bind()

	path := b.Path.(*fakeText)
	path.val = "/data/study.dcm"

	b.PullFromUI()
	if path.writes != 0 {
		t.Errorf("pull triggered %d widget writes, want 0", path.writes)
	}

	rec.Set(KeyPath, "/data/other.dcm")
	if path.writes == 0 {
		t.Error("external record change did not reach the widget")
	}
	if got := path.val; got != "/data/other.dcm" {
		t.Errorf("widget shows %q after external change, want %q", got, "/data/other.dcm")
	}
}

// TestReentrantSyncIsNoOp verifies that sync calls made while a sync is
// already running do nothing instead of recursing.
func TestReentrantSyncIsNoOp(t *testing.T) {
	b, rec := newTestBinder()
	b.Bind()

	changes := 0
	rec.OnChange(func() {
		changes++
		// A listener misbehaving like this must not recurse.
		b.PullFromUI()
	})

	b.Path.(*fakeText).val = "/data/study.dcm"
	b.PullFromUI()

	if changes != 1 {
		t.Errorf("got %d notifications, want 1", changes)
	}
}

// TestRoundTrip verifies that a pull followed by a push leaves the widgets
// showing the same values, provided every stored label is resolvable.
func TestRoundTrip(t *testing.T) {
	b, _ := newTestBinder()
	b.Path.(*fakeText).val = "/data/study.dcm"
	b.AttenuationDirectory.(*fakeText).val = "/data/ct"
	b.Collimator.(*fakeChoice).selected = "SY-LEHR"
	b.Scatter.(*fakeChoice).selected = "Dual Energy Window"
	b.Photopeak.(*fakeChoice).selected = "Photopeak (200keV - 240keV)"
	b.UpperWindow.(*fakeChoice).selected = "Upper (240keV - 260keV)"
	b.LowerWindow.(*fakeChoice).selected = "Lower (150keV - 160keV)"
	b.Algorithm.(*fakeChoice).selected = "OSEM"
	b.Iterations.(*fakeNumber).val = 4
	b.Subsets.(*fakeNumber).val = 8

	snapshot := func() map[string]interface{} {
		return map[string]interface{}{
			"path":        b.Path.(*fakeText).val,
			"attenuation": b.AttenuationDirectory.(*fakeText).val,
			"collimator":  b.Collimator.(*fakeChoice).selected,
			"scatter":     b.Scatter.(*fakeChoice).selected,
			"photopeak":   b.Photopeak.(*fakeChoice).selected,
			"upper":       b.UpperWindow.(*fakeChoice).selected,
			"lower":       b.LowerWindow.(*fakeChoice).selected,
			"algorithm":   b.Algorithm.(*fakeChoice).selected,
			"iterations":  b.Iterations.(*fakeNumber).val,
			"subsets":     b.Subsets.(*fakeNumber).val,
		}
	}

	before := snapshot()
	b.PullFromUI()
	b.PushToUI()
	after := snapshot()

	if !reflect.DeepEqual(before, after) {
		t.Errorf("round trip changed widget values:\nbefore %v\nafter  %v", before, after)
	}
}

// TestUnmatchedSelectionRoundTrip covers the stored-label-with-no-choice
// case: the record keeps the label, the widget ends up unselected.
func TestUnmatchedSelectionRoundTrip(t *testing.T) {
	b, rec := newTestBinder()
	ghost := "Ghost (1keV - 2keV)"
	b.Photopeak.(*fakeChoice).selected = ghost

	b.PullFromUI()
	if got := rec.Get(KeyPhotopeak); got != ghost {
		t.Fatalf("record stores %q after pull, want %q", got, ghost)
	}

	b.PushToUI()
	if got := b.Photopeak.(*fakeChoice).selected; got != "" {
		t.Errorf("selection = %q after push, want empty", got)
	}
	if got := rec.Get(KeyPhotopeak); got != ghost {
		t.Errorf("record = %q after push, want %q preserved", got, ghost)
	}
}

// TestNilFieldsTolerated verifies that a binder with only some widgets
// assigned syncs the ones it has and skips the rest.
func TestNilFieldsTolerated(t *testing.T) {
	rec := NewRecord()
	rec.ApplyDefaults()
	rec.Set(KeyPath, "/data/study.dcm")

	b := NewBinder(rec)
	b.Path = &fakeText{}

	b.PushToUI()
	if got := b.Path.(*fakeText).val; got != "/data/study.dcm" {
		t.Errorf("Path widget = %q, want %q", got, "/data/study.dcm")
	}

	b.PullFromUI()
	if got := rec.Get(KeyCollimator); got != "Choose Collimator" {
		t.Errorf("unbound Collimator changed to %q", got)
	}
}
