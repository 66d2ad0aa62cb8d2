// Package dicomio reads the pieces of a DICOM projection study this
// application cares about: energy window definitions, acquisition geometry,
// and projection pixel data.
package dicomio

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	// ErrInvalidHeader reports a file that cannot be parsed as a DICOM
	// dataset.
	ErrInvalidHeader = errors.New("invalid DICOM header")

	// ErrMissingField reports an energy window entry lacking a required
	// sub-field.
	ErrMissingField = errors.New("missing energy window field")
)

// Energy window tags from the nuclear medicine image module (PS3.3 C.8.4.10).
var (
	tagEnergyWindowInfoSequence  = tag.Tag{Group: 0x0054, Element: 0x0012}
	tagEnergyWindowRangeSequence = tag.Tag{Group: 0x0054, Element: 0x0013}
	tagEnergyWindowLowerLimit    = tag.Tag{Group: 0x0054, Element: 0x0014}
	tagEnergyWindowUpperLimit    = tag.Tag{Group: 0x0054, Element: 0x0015}
	tagEnergyWindowName          = tag.Tag{Group: 0x0054, Element: 0x0018}
)

// EnergyWindow is one named keV range declared by an acquisition.
type EnergyWindow struct {
	Name     string
	LowerKeV float64
	UpperKeV float64
}

// Label renders the window the way it appears in selection widgets, for
// example "Photopeak (200keV - 240keV)".
func (w EnergyWindow) Label() string {
	return fmt.Sprintf("%s (%skeV - %skeV)", w.Name, formatKeV(w.LowerKeV), formatKeV(w.UpperKeV))
}

func formatKeV(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ExtractEnergyWindows parses the study at path and returns its energy
// windows ordered by ascending lower bound. A study declaring no windows
// yields an empty list. Returns ErrInvalidHeader when the file is not
// parseable DICOM and ErrMissingField when a window entry is incomplete.
func ExtractEnergyWindows(path string) ([]EnergyWindow, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrInvalidHeader, err)
	}
	return EnergyWindowsFromDataset(&ds)
}

// EnergyWindowsFromDataset reads energy windows out of an already parsed
// dataset. See ExtractEnergyWindows for the contract.
func EnergyWindowsFromDataset(ds *dicom.Dataset) ([]EnergyWindow, error) {
	seq, err := ds.FindElementByTag(tagEnergyWindowInfoSequence)
	if err != nil {
		// No energy window information declared at all.
		return []EnergyWindow{}, nil
	}

	items, ok := sequenceItems(seq)
	if !ok {
		return nil, fmt.Errorf("%w: energy window information is not a sequence", ErrInvalidHeader)
	}

	windows := make([]EnergyWindow, 0, len(items))
	for i, item := range items {
		w, err := windowFromItem(item)
		if err != nil {
			return nil, fmt.Errorf("energy window %d: %w", i, err)
		}
		windows = append(windows, w)
	}

	// Ascending by lower bound; entries sharing a lower bound keep their
	// order from the header.
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].LowerKeV < windows[j].LowerKeV
	})
	return windows, nil
}

// WindowLabels formats an ordered window list into the strings shown in
// selection widgets.
func WindowLabels(windows []EnergyWindow) []string {
	labels := make([]string, len(windows))
	for i, w := range windows {
		labels[i] = w.Label()
	}
	return labels
}

// windowFromItem builds an EnergyWindow from one information sequence item.
func windowFromItem(item []*dicom.Element) (EnergyWindow, error) {
	var w EnergyWindow

	name, ok := findString(item, tagEnergyWindowName)
	if !ok {
		return w, fmt.Errorf("%w: name", ErrMissingField)
	}
	w.Name = name

	rangeSeq := findElement(item, tagEnergyWindowRangeSequence)
	if rangeSeq == nil {
		return w, fmt.Errorf("%w: range", ErrMissingField)
	}
	ranges, ok := sequenceItems(rangeSeq)
	if !ok || len(ranges) == 0 {
		return w, fmt.Errorf("%w: range", ErrMissingField)
	}

	// Several ranges per window are legal, the first carries the bounds
	// used for display.
	lower, ok := findFloat(ranges[0], tagEnergyWindowLowerLimit)
	if !ok {
		return w, fmt.Errorf("%w: lower limit", ErrMissingField)
	}
	upper, ok := findFloat(ranges[0], tagEnergyWindowUpperLimit)
	if !ok {
		return w, fmt.Errorf("%w: upper limit", ErrMissingField)
	}
	w.LowerKeV = lower
	w.UpperKeV = upper
	return w, nil
}

// sequenceItems unpacks a sequence element into its per-item element lists.
func sequenceItems(e *dicom.Element) ([][]*dicom.Element, bool) {
	seq, ok := e.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil, false
	}
	items := make([][]*dicom.Element, 0, len(seq))
	for _, item := range seq {
		elems, ok := item.GetValue().([]*dicom.Element)
		if !ok {
			return nil, false
		}
		items = append(items, elems)
	}
	return items, true
}

// findElement returns the element with the given tag, or nil.
func findElement(elems []*dicom.Element, t tag.Tag) *dicom.Element {
	for _, e := range elems {
		if e.Tag == t {
			return e
		}
	}
	return nil
}

// findString returns the first string value of the element with the given
// tag.
func findString(elems []*dicom.Element, t tag.Tag) (string, bool) {
	e := findElement(elems, t)
	if e == nil {
		return "", false
	}
	return firstString(e)
}

// findFloat returns the first numeric value of the element with the given
// tag. Decimal string values are accepted, since DICOM carries most numbers
// as DS strings.
func findFloat(elems []*dicom.Element, t tag.Tag) (float64, bool) {
	e := findElement(elems, t)
	if e == nil {
		return 0, false
	}
	return firstFloat(e)
}

func firstString(e *dicom.Element) (string, bool) {
	if ss, ok := e.Value.GetValue().([]string); ok && len(ss) > 0 {
		return ss[0], true
	}
	return "", false
}

func firstFloat(e *dicom.Element) (float64, bool) {
	switch v := e.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return parseDecimal(v[0])
		}
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	case []int:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

func firstInt(e *dicom.Element) (int, bool) {
	switch v := e.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case []string:
		if len(v) > 0 {
			if f, ok := parseDecimal(v[0]); ok {
				return int(f), true
			}
		}
	}
	return 0, false
}

// parseDecimal parses a DICOM decimal string, tolerating the padding some
// vendors emit.
func parseDecimal(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
