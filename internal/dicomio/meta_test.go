package dicomio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// writeMetaStudy writes an NM study carrying acquisition attributes and
// returns its path.
func writeMetaStudy(t *testing.T) string {
	t.Helper()

	rotationItem := []*dicom.Element{
		dicom.MustNewElement(tagRotationDirection, []string{"CW"}),
		dicom.MustNewElement(tagScanArc, []string{"360"}),
		dicom.MustNewElement(tagAngularStep, []string{"3.75"}),
	}

	elements := append(studyElements(),
		dicom.MustNewElement(tag.PatientName, []string{"SPECT^PHANTOM"}),
		dicom.MustNewElement(tag.StudyDate, []string{"20240115"}),
		dicom.MustNewElement(tag.Manufacturer, []string{"SIEMENS"}),
		dicom.MustNewElement(tag.SeriesDescription, []string{"Lu177 SPECT projections"}),
		dicom.MustNewElement(tag.Rows, []int{128}),
		dicom.MustNewElement(tag.Columns, []int{128}),
		dicom.MustNewElement(tag.NumberOfFrames, []string{"96"}),
		dicom.MustNewElement(tag.PixelSpacing, []string{"4.42", "4.42"}),
		dicom.MustNewElement(tagNumberOfDetectors, []int{2}),
		dicom.MustNewElement(tagRotationInfoSeq, [][]*dicom.Element{rotationItem}),
	)

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

// TestReadProjectionMeta verifies that acquisition attributes survive the
// round trip through a study file.
func TestReadProjectionMeta(t *testing.T) {
	path := writeMetaStudy(t)

	meta, err := ReadProjectionMeta(path)
	if err != nil {
		t.Fatalf("ReadProjectionMeta: %v", err)
	}

	if meta.Path != path {
		t.Errorf("Path = %q, want %q", meta.Path, path)
	}
	if meta.Modality != "NM" || !meta.IsNuclearMedicine() {
		t.Errorf("Modality = %q, want NM", meta.Modality)
	}
	if meta.PatientName != "SPECT^PHANTOM" {
		t.Errorf("PatientName = %q", meta.PatientName)
	}
	if meta.Rows != 128 || meta.Columns != 128 {
		t.Errorf("dimensions = %dx%d, want 128x128", meta.Columns, meta.Rows)
	}
	if meta.Frames != 96 {
		t.Errorf("Frames = %d, want 96", meta.Frames)
	}
	if meta.RowSpacing != 4.42 || meta.ColumnSpacing != 4.42 {
		t.Errorf("spacing = %gx%g, want 4.42x4.42", meta.RowSpacing, meta.ColumnSpacing)
	}
	if meta.NumberOfDetectors != 2 {
		t.Errorf("NumberOfDetectors = %d, want 2", meta.NumberOfDetectors)
	}
	if meta.RotationDirection != "CW" || meta.ScanArcDegrees != 360 || meta.AngularStepDegrees != 3.75 {
		t.Errorf("rotation = %q %g/%g, want CW 360/3.75",
			meta.RotationDirection, meta.ScanArcDegrees, meta.AngularStepDegrees)
	}
}

// TestReadProjectionMetaDefaults verifies tolerant handling of studies that
// omit optional attributes.
func TestReadProjectionMetaDefaults(t *testing.T) {
	path := writeStudy(t, nil)

	meta, err := ReadProjectionMeta(path)
	if err != nil {
		t.Fatalf("ReadProjectionMeta: %v", err)
	}
	if meta.PatientName != "" || meta.SeriesDescription != "" {
		t.Errorf("zero-value fields expected, got %+v", meta)
	}
	if meta.Frames != 0 {
		t.Errorf("Frames = %d for study without Rows, want 0", meta.Frames)
	}
}

// TestReadProjectionMetaInvalid verifies the invalid-header taxonomy on the
// meta path as well.
func TestReadProjectionMetaInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dcm")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write junk file: %v", err)
	}
	if _, err := ReadProjectionMeta(path); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("got error %v, want ErrInvalidHeader", err)
	}
}
