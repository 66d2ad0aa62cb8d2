package panels

import (
	"strconv"
	"strings"

	"fyne.io/fyne/v2/widget"
)

// entryField adapts a Fyne entry to the text field contract of the
// parameter binder.
type entryField struct {
	w *widget.Entry
}

func newEntryField(placeholder string, onChanged func(string)) *entryField {
	e := widget.NewEntry()
	e.SetPlaceHolder(placeholder)
	e.OnChanged = onChanged
	return &entryField{w: e}
}

func (f *entryField) Value() string {
	return f.w.Text
}

func (f *entryField) SetValue(v string) {
	f.w.SetText(v)
}

// numberEntry adapts a Fyne entry holding a decimal integer. Unparseable
// text reads as zero, which the request validation rejects.
type numberEntry struct {
	w *widget.Entry
}

func newNumberEntry(onChanged func(string)) *numberEntry {
	e := widget.NewEntry()
	e.OnChanged = onChanged
	return &numberEntry{w: e}
}

func (f *numberEntry) Value() int {
	v, err := strconv.Atoi(strings.TrimSpace(f.w.Text))
	if err != nil {
		return 0
	}
	return v
}

func (f *numberEntry) SetValue(v int) {
	f.w.SetText(strconv.Itoa(v))
}

// selectField adapts a Fyne select to the choice field contract. Fyne's
// SetSelected ignores labels missing from the option list, which is the
// tolerant resolution the binder relies on.
type selectField struct {
	w *widget.Select
}

func newSelectField(placeholder string, onChanged func(string)) *selectField {
	s := widget.NewSelect(nil, onChanged)
	s.PlaceHolder = placeholder
	return &selectField{w: s}
}

func (f *selectField) Options() []string {
	return f.w.Options
}

func (f *selectField) Selected() string {
	return f.w.Selected
}

func (f *selectField) Select(label string) {
	f.w.SetSelected(label)
}

func (f *selectField) Clear() {
	f.w.ClearSelected()
}

// SetOptions replaces the option list. A selection that is no longer
// available is cleared without firing the change callback, so the stored
// record value survives until the next push re-resolves it.
func (f *selectField) SetOptions(options []string) {
	cb := f.w.OnChanged
	f.w.OnChanged = nil
	f.w.Options = options
	if f.w.Selected != "" {
		found := false
		for _, opt := range options {
			if opt == f.w.Selected {
				found = true
				break
			}
		}
		if !found {
			f.w.ClearSelected()
		}
	}
	f.w.OnChanged = cb
	f.w.Refresh()
}
