package params

import (
	"log"
	"strconv"
)

// SyncState tracks which direction of widget synchronization is running.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncFromRecord
	SyncFromUI
)

func (s SyncState) String() string {
	switch s {
	case SyncFromRecord:
		return "syncing from record"
	case SyncFromUI:
		return "syncing from UI"
	default:
		return "idle"
	}
}

// TextField is a widget holding a free-form string, such as a path entry.
type TextField interface {
	Value() string
	SetValue(string)
}

// NumberField is a widget holding a non-negative integer.
type NumberField interface {
	Value() int
	SetValue(int)
}

// ChoiceField is a widget offering a list of labels with at most one
// selected. Select with a label not in the list is ignored by
// implementations; Clear leaves the field with no selection.
type ChoiceField interface {
	Options() []string
	Selected() string
	Select(string)
	Clear()
}

// Binder keeps a Record and a set of widgets mutually consistent. Any field
// left nil is skipped during synchronization, so a partially built UI still
// syncs the fields it has.
//
// Binder methods must run on the UI event thread. The sync state doubles as
// a re-entrancy guard: a push can never trigger a pull and vice versa, which
// breaks the feedback cycle between widget callbacks and record listeners.
type Binder struct {
	record *Record
	state  SyncState

	Path                 TextField
	AttenuationDirectory TextField
	Collimator           ChoiceField
	Scatter              ChoiceField
	Photopeak            ChoiceField
	UpperWindow          ChoiceField
	LowerWindow          ChoiceField
	Algorithm            ChoiceField
	Iterations           NumberField
	Subsets              NumberField
}

// NewBinder creates a binder for the given record. Assign the widget fields,
// then call Bind to start reacting to record changes.
func NewBinder(record *Record) *Binder {
	return &Binder{record: record}
}

// Record returns the bound parameter record.
func (b *Binder) Record() *Record {
	return b.record
}

// State returns the current synchronization state.
func (b *Binder) State() SyncState {
	return b.state
}

// Bind subscribes to record changes so external mutations are reflected in
// the widgets. Changes made by PullFromUI itself are not echoed back.
func (b *Binder) Bind() {
	b.record.OnChange(func() {
		if b.state == SyncIdle {
			b.PushToUI()
		}
	})
}

// PushToUI copies every record value into its widget. Stored labels with no
// matching choice leave that selection empty. A push already in progress, or
// a push requested while a pull runs, is a no-op.
func (b *Binder) PushToUI() {
	if b.state != SyncIdle {
		return
	}
	b.state = SyncFromRecord
	defer func() { b.state = SyncIdle }()

	if b.Path != nil {
		b.Path.SetValue(b.record.Get(KeyPath))
	}
	if b.AttenuationDirectory != nil {
		b.AttenuationDirectory.SetValue(b.record.Get(KeyAttenuationDirectory))
	}
	if b.Collimator != nil {
		resolveChoice(b.Collimator, b.record.Get(KeyCollimator))
	}
	if b.Scatter != nil {
		resolveChoice(b.Scatter, b.record.Get(KeyScatter))
	}
	if b.Photopeak != nil {
		resolveChoice(b.Photopeak, b.record.Get(KeyPhotopeak))
	}
	if b.UpperWindow != nil {
		resolveChoice(b.UpperWindow, b.record.Get(KeyUpperWindow))
	}
	if b.LowerWindow != nil {
		resolveChoice(b.LowerWindow, b.record.Get(KeyLowerWindow))
	}
	if b.Algorithm != nil {
		resolveChoice(b.Algorithm, b.record.Get(KeyAlgorithm))
	}
	if b.Iterations != nil {
		if n, err := strconv.Atoi(b.record.Get(KeyIterations)); err == nil {
			b.Iterations.SetValue(n)
		}
	}
	if b.Subsets != nil {
		if n, err := strconv.Atoi(b.record.Get(KeySubsets)); err == nil {
			b.Subsets.SetValue(n)
		}
	}
}

// PullFromUI writes every widget value back into the record as one batched
// update, so record observers see a single combined change. The record
// notification fires while the pull is still marked in progress, which keeps
// the bound push listener from re-entering.
func (b *Binder) PullFromUI() {
	if b.state != SyncIdle {
		return
	}
	b.state = SyncFromUI
	defer func() { b.state = SyncIdle }()

	b.record.BeginUpdate()
	if b.Path != nil {
		b.record.Set(KeyPath, b.Path.Value())
	}
	if b.AttenuationDirectory != nil {
		b.record.Set(KeyAttenuationDirectory, b.AttenuationDirectory.Value())
	}
	if b.Collimator != nil {
		b.record.Set(KeyCollimator, b.Collimator.Selected())
	}
	if b.Scatter != nil {
		b.record.Set(KeyScatter, b.Scatter.Selected())
	}
	if b.Photopeak != nil {
		b.record.Set(KeyPhotopeak, b.Photopeak.Selected())
	}
	if b.UpperWindow != nil {
		b.record.Set(KeyUpperWindow, b.UpperWindow.Selected())
	}
	if b.LowerWindow != nil {
		b.record.Set(KeyLowerWindow, b.LowerWindow.Selected())
	}
	if b.Algorithm != nil {
		b.record.Set(KeyAlgorithm, b.Algorithm.Selected())
	}
	if b.Iterations != nil {
		b.record.Set(KeyIterations, strconv.Itoa(b.Iterations.Value()))
	}
	if b.Subsets != nil {
		b.record.Set(KeySubsets, strconv.Itoa(b.Subsets.Value()))
	}
	b.record.EndUpdate()
}

// resolveChoice selects the option matching label, or clears the selection
// when no option matches. An unmatched non-empty label is logged and
// otherwise tolerated; the stored value is not touched.
func resolveChoice(f ChoiceField, label string) {
	for _, opt := range f.Options() {
		if opt == label {
			f.Select(label)
			return
		}
	}
	f.Clear()
	if label != "" {
		log.Printf("params: no choice matches %q, selection left empty", label)
	}
}
