package dicomio

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// testWindow describes one energy window to place in a generated study.
// Bounds are decimal strings because that is how DICOM stores them.
type testWindow struct {
	name         string
	lower, upper string
}

// windowElement builds one EnergyWindowInformationSequence item. Entries
// with an empty name or bound omit that element, for the missing-field
// tests.
func windowElement(w testWindow) []*dicom.Element {
	var rangeItem []*dicom.Element
	if w.lower != "" {
		rangeItem = append(rangeItem, dicom.MustNewElement(tagEnergyWindowLowerLimit, []string{w.lower}))
	}
	if w.upper != "" {
		rangeItem = append(rangeItem, dicom.MustNewElement(tagEnergyWindowUpperLimit, []string{w.upper}))
	}

	var item []*dicom.Element
	if w.name != "" {
		item = append(item, dicom.MustNewElement(tagEnergyWindowName, []string{w.name}))
	}
	item = append(item, dicom.MustNewElement(tagEnergyWindowRangeSequence, [][]*dicom.Element{rangeItem}))
	return item
}

// studyElements returns the common elements of a generated NM study.
func studyElements() []*dicom.Element {
	return []*dicom.Element{
		dicom.MustNewElement(tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.20"}),
		dicom.MustNewElement(tag.MediaStorageSOPInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.1"}),
		dicom.MustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		dicom.MustNewElement(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.20"}),
		dicom.MustNewElement(tag.SOPInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.1"}),
		dicom.MustNewElement(tag.Modality, []string{"NM"}),
	}
}

// writeStudy writes a generated NM study with the given energy windows and
// returns its path.
func writeStudy(t *testing.T, windows []testWindow) string {
	t.Helper()

	elements := studyElements()
	if windows != nil {
		items := make([][]*dicom.Element, len(windows))
		for i, w := range windows {
			items[i] = windowElement(w)
		}
		elements = append(elements, dicom.MustNewElement(tagEnergyWindowInfoSequence, items))
	}

	path := filepath.Join(t.TempDir(), "study.dcm")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create study file: %v", err)
	}
	defer f.Close()

	if err := dicom.Write(f, dicom.Dataset{Elements: elements}); err != nil {
		t.Fatalf("write study file: %v", err)
	}
	return path
}

// TestExtractEnergyWindows covers extraction and ordering from a study
// declaring two windows out of energy order.
func TestExtractEnergyWindows(t *testing.T) {
	path := writeStudy(t, []testWindow{
		{name: "Photopeak", lower: "200", upper: "240"},
		{name: "Scatter", lower: "150", upper: "160"},
	})

	windows, err := ExtractEnergyWindows(path)
	if err != nil {
		t.Fatalf("ExtractEnergyWindows: %v", err)
	}

	want := []EnergyWindow{
		{Name: "Scatter", LowerKeV: 150, UpperKeV: 160},
		{Name: "Photopeak", LowerKeV: 200, UpperKeV: 240},
	}
	if !reflect.DeepEqual(windows, want) {
		t.Errorf("windows mismatch:\ngot  %v\nwant %v", windows, want)
	}

	labels := WindowLabels(windows)
	wantLabels := []string{"Scatter (150keV - 160keV)", "Photopeak (200keV - 240keV)"}
	if !reflect.DeepEqual(labels, wantLabels) {
		t.Errorf("labels mismatch:\ngot  %v\nwant %v", labels, wantLabels)
	}
}

// TestExtractOrderInsensitive verifies that header order does not leak into
// the output: the already sorted declaration yields the same list as the
// reversed one.
func TestExtractOrderInsensitive(t *testing.T) {
	sorted := writeStudy(t, []testWindow{
		{name: "Scatter", lower: "150", upper: "160"},
		{name: "Photopeak", lower: "200", upper: "240"},
	})
	reversed := writeStudy(t, []testWindow{
		{name: "Photopeak", lower: "200", upper: "240"},
		{name: "Scatter", lower: "150", upper: "160"},
	})

	a, err := ExtractEnergyWindows(sorted)
	if err != nil {
		t.Fatalf("extract sorted: %v", err)
	}
	b, err := ExtractEnergyWindows(reversed)
	if err != nil {
		t.Fatalf("extract reversed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("order-dependent output:\nsorted   %v\nreversed %v", a, b)
	}
}

// TestExtractStableTieBreak verifies that windows sharing a lower bound keep
// their header order.
func TestExtractStableTieBreak(t *testing.T) {
	path := writeStudy(t, []testWindow{
		{name: "First", lower: "150", upper: "170"},
		{name: "Second", lower: "150", upper: "160"},
		{name: "Below", lower: "120", upper: "140"},
	})

	windows, err := ExtractEnergyWindows(path)
	if err != nil {
		t.Fatalf("ExtractEnergyWindows: %v", err)
	}

	names := make([]string, len(windows))
	for i, w := range windows {
		names[i] = w.Name
	}
	want := []string{"Below", "First", "Second"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("tie-break order = %v, want %v", names, want)
	}
}

// TestExtractNoWindows verifies that a study declaring no energy windows
// yields an empty list without error.
func TestExtractNoWindows(t *testing.T) {
	path := writeStudy(t, nil)

	windows, err := ExtractEnergyWindows(path)
	if err != nil {
		t.Fatalf("ExtractEnergyWindows: %v", err)
	}
	if len(windows) != 0 {
		t.Errorf("got %d windows from windowless study, want 0", len(windows))
	}
}

// TestExtractInvalidHeader verifies the error taxonomy for unparseable
// files.
func TestExtractInvalidHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dcm")
	if err := os.WriteFile(path, []byte("not a DICOM file"), 0o644); err != nil {
		t.Fatalf("write junk file: %v", err)
	}

	_, err := ExtractEnergyWindows(path)
	if !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("got error %v, want ErrInvalidHeader", err)
	}
}

// TestExtractMissingFields verifies that incomplete window entries are
// reported rather than skipped.
func TestExtractMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		window testWindow
	}{
		{"NoName", testWindow{lower: "150", upper: "160"}},
		{"NoLower", testWindow{name: "Scatter", upper: "160"}},
		{"NoUpper", testWindow{name: "Scatter", lower: "150"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeStudy(t, []testWindow{tc.window})
			_, err := ExtractEnergyWindows(path)
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("got error %v, want ErrMissingField", err)
			}
		})
	}
}

// TestWindowLabel pins the label format, including fractional bounds.
func TestWindowLabel(t *testing.T) {
	cases := []struct {
		window EnergyWindow
		want   string
	}{
		{EnergyWindow{"Photopeak", 200, 240}, "Photopeak (200keV - 240keV)"},
		{EnergyWindow{"Tc-99m", 126.45, 154.55}, "Tc-99m (126.45keV - 154.55keV)"},
	}
	for _, tc := range cases {
		if got := tc.window.Label(); got != tc.want {
			t.Errorf("Label() = %q, want %q", got, tc.want)
		}
	}
}
