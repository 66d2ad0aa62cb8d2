package dicomio

import (
	"fmt"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Acquisition geometry tags from the nuclear medicine image module
// (PS3.3 C.8.4.8).
var (
	tagNumberOfDetectors = tag.Tag{Group: 0x0054, Element: 0x0021}
	tagRotationInfoSeq   = tag.Tag{Group: 0x0054, Element: 0x0052}
	tagRotationDirection = tag.Tag{Group: 0x0018, Element: 0x1140}
	tagScanArc           = tag.Tag{Group: 0x0018, Element: 0x1143}
	tagAngularStep       = tag.Tag{Group: 0x0018, Element: 0x1144}
)

// ProjectionMeta summarizes the acquisition attributes of a projection
// study that the panels display and the reconstruction request records.
// Fields a study does not declare are left at their zero value.
type ProjectionMeta struct {
	Path              string
	PatientName       string
	StudyDate         string
	Modality          string
	Manufacturer      string
	SeriesDescription string

	Rows    int
	Columns int
	Frames  int

	// Pixel spacing in mm, row then column.
	RowSpacing    float64
	ColumnSpacing float64
	SliceSpacing  float64

	// Gantry geometry, from the first rotation item when the study
	// declares one.
	NumberOfDetectors  int
	RotationDirection  string
	ScanArcDegrees     float64
	AngularStepDegrees float64

	// Position of this image within its series, for stacking a
	// per-slice output series back into a volume.
	InstanceNumber int

	// Stored-value to real-value mapping. Slope defaults to 1 when the
	// study declares none.
	RescaleSlope     float64
	RescaleIntercept float64
}

// IsNuclearMedicine reports whether the study declares the NM modality.
func (m *ProjectionMeta) IsNuclearMedicine() bool {
	return m.Modality == "NM"
}

// Describe returns a short one-line summary for status displays.
func (m *ProjectionMeta) Describe() string {
	return fmt.Sprintf("%s  %d frames of %dx%d", m.Modality, m.Frames, m.Columns, m.Rows)
}

// ReadProjectionMeta parses the study at path and summarizes its
// acquisition attributes. Pixel data is skipped, so this stays cheap even
// for large projection sets.
func ReadProjectionMeta(path string) (*ProjectionMeta, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrInvalidHeader, err)
	}
	meta := MetaFromDataset(&ds)
	meta.Path = path
	return meta, nil
}

// ReadStudy parses the study at path once and returns both the header
// summary and the ordered energy windows.
func ReadStudy(path string) (*ProjectionMeta, []EnergyWindow, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrInvalidHeader, err)
	}
	meta := MetaFromDataset(&ds)
	meta.Path = path
	windows, err := EnergyWindowsFromDataset(&ds)
	if err != nil {
		return nil, nil, err
	}
	return meta, windows, nil
}

// MetaFromDataset summarizes an already parsed dataset.
func MetaFromDataset(ds *dicom.Dataset) *ProjectionMeta {
	m := &ProjectionMeta{}

	m.PatientName, _ = datasetString(ds, tag.PatientName)
	m.StudyDate, _ = datasetString(ds, tag.StudyDate)
	m.Modality, _ = datasetString(ds, tag.Modality)
	m.Manufacturer, _ = datasetString(ds, tag.Manufacturer)
	m.SeriesDescription, _ = datasetString(ds, tag.SeriesDescription)

	m.Rows, _ = datasetInt(ds, tag.Rows)
	m.Columns, _ = datasetInt(ds, tag.Columns)
	if n, ok := datasetInt(ds, tag.NumberOfFrames); ok {
		m.Frames = n
	} else if m.Rows > 0 {
		// Single-frame studies usually omit NumberOfFrames.
		m.Frames = 1
	}

	if e, err := ds.FindElementByTag(tag.PixelSpacing); err == nil {
		if ss, ok := e.Value.GetValue().([]string); ok && len(ss) == 2 {
			if row, ok := parseDecimal(ss[0]); ok {
				m.RowSpacing = row
			}
			if col, ok := parseDecimal(ss[1]); ok {
				m.ColumnSpacing = col
			}
		}
	}
	if f, ok := datasetFloat(ds, tag.SpacingBetweenSlices); ok {
		m.SliceSpacing = f
	} else if f, ok := datasetFloat(ds, tag.SliceThickness); ok {
		m.SliceSpacing = f
	}

	m.NumberOfDetectors, _ = datasetInt(ds, tagNumberOfDetectors)
	if e, err := ds.FindElementByTag(tagRotationInfoSeq); err == nil {
		if items, ok := sequenceItems(e); ok && len(items) > 0 {
			first := items[0]
			m.RotationDirection, _ = findString(first, tagRotationDirection)
			m.ScanArcDegrees, _ = findFloat(first, tagScanArc)
			m.AngularStepDegrees, _ = findFloat(first, tagAngularStep)
		}
	}

	m.InstanceNumber, _ = datasetInt(ds, tag.InstanceNumber)

	m.RescaleSlope = 1
	if f, ok := datasetFloat(ds, tag.RescaleSlope); ok && f != 0 {
		m.RescaleSlope = f
	}
	m.RescaleIntercept, _ = datasetFloat(ds, tag.RescaleIntercept)
	return m
}

func datasetString(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	return firstString(e)
}

func datasetInt(ds *dicom.Dataset, t tag.Tag) (int, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	return firstInt(e)
}

func datasetFloat(ds *dicom.Dataset, t tag.Tag) (float64, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	return firstFloat(e)
}

