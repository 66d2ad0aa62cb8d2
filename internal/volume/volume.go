// Package volume loads DICOM pixel data into a float64 voxel grid and
// extracts orthogonal slices for display.
package volume

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/qurit/slicer-spect-recon/internal/dicomio"
)

// SlicePlane selects the orientation of an extracted slice.
type SlicePlane int

const (
	PlaneAxial    SlicePlane = iota // fixed z, transverse
	PlaneCoronal                    // fixed y
	PlaneSagittal                   // fixed x
)

func (p SlicePlane) String() string {
	switch p {
	case PlaneAxial:
		return "Axial"
	case PlaneCoronal:
		return "Coronal"
	case PlaneSagittal:
		return "Sagittal"
	default:
		return "Unknown"
	}
}

// Planes lists the selectable orientations in display order.
func Planes() []SlicePlane {
	return []SlicePlane{PlaneAxial, PlaneCoronal, PlaneSagittal}
}

// Volume is a 3D intensity grid. Data is stored z-major: the voxel at
// (x, y, z) lives at index z*Rows*Cols + y*Cols + x.
type Volume struct {
	Data  []float64
	Cols  int // x
	Rows  int // y
	Depth int // z

	// Voxel spacing in mm.
	RowSpacingMM   float64
	ColSpacingMM   float64
	SliceSpacingMM float64

	Meta *dicomio.ProjectionMeta
}

// Slice is one extracted 2D plane of a volume.
type Slice struct {
	Data   []float64
	Width  int
	Height int
	Plane  SlicePlane
	Index  int
}

// At returns the voxel value at (x, y, z). Out-of-range coordinates
// return 0.
func (v *Volume) At(x, y, z int) float64 {
	if x < 0 || x >= v.Cols || y < 0 || y >= v.Rows || z < 0 || z >= v.Depth {
		return 0
	}
	return v.Data[z*v.Rows*v.Cols+y*v.Cols+x]
}

// SliceCount returns how many slices the volume has along the given
// plane's normal.
func (v *Volume) SliceCount(plane SlicePlane) int {
	switch plane {
	case PlaneAxial:
		return v.Depth
	case PlaneCoronal:
		return v.Rows
	case PlaneSagittal:
		return v.Cols
	default:
		return 0
	}
}

// ExtractSlice extracts the 2D plane at index along the given
// orientation.
func (v *Volume) ExtractSlice(plane SlicePlane, index int) (*Slice, error) {
	if index < 0 || index >= v.SliceCount(plane) {
		return nil, fmt.Errorf("slice %d out of range (%s has %d slices)",
			index, plane, v.SliceCount(plane))
	}

	s := &Slice{Plane: plane, Index: index}
	switch plane {
	case PlaneAxial:
		s.Width, s.Height = v.Cols, v.Rows
		s.Data = make([]float64, s.Width*s.Height)
		for y := 0; y < v.Rows; y++ {
			for x := 0; x < v.Cols; x++ {
				s.Data[y*s.Width+x] = v.At(x, y, index)
			}
		}
	case PlaneCoronal:
		s.Width, s.Height = v.Cols, v.Depth
		s.Data = make([]float64, s.Width*s.Height)
		for z := 0; z < v.Depth; z++ {
			for x := 0; x < v.Cols; x++ {
				s.Data[z*s.Width+x] = v.At(x, index, z)
			}
		}
	case PlaneSagittal:
		s.Width, s.Height = v.Depth, v.Rows
		s.Data = make([]float64, s.Width*s.Height)
		for y := 0; y < v.Rows; y++ {
			for z := 0; z < v.Depth; z++ {
				s.Data[y*s.Width+z] = v.At(index, y, z)
			}
		}
	default:
		return nil, fmt.Errorf("invalid slice plane %d", plane)
	}
	return s, nil
}

// MinMax returns the smallest and largest voxel values.
func (v *Volume) MinMax() (min, max float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min, max = v.Data[0], v.Data[0]
	for _, d := range v.Data[1:] {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// LoadFile loads a single DICOM file, including multi-frame projection
// studies, into a volume with one z slice per frame.
func LoadFile(path string) (*Volume, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), dicomio.ErrInvalidHeader, err)
	}
	v, err := FromDataset(&ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	v.Meta.Path = path
	return v, nil
}

// LoadSeries loads every DICOM file in dir, orders the files by
// InstanceNumber and stacks them into one volume. Reconstruction
// engines write their output as such per-slice series.
func LoadSeries(dir string) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read series directory: %w", err)
	}

	type part struct {
		vol  *Volume
		path string
	}
	var parts []part
	for _, entry := range entries {
		if entry.IsDir() || !isDICOMName(entry.Name()) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		v, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part{vol: v, path: p})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no DICOM files in %s", dir)
	}

	sort.SliceStable(parts, func(i, j int) bool {
		a, b := parts[i].vol.Meta.InstanceNumber, parts[j].vol.Meta.InstanceNumber
		if a != b {
			return a < b
		}
		return parts[i].path < parts[j].path
	})

	first := parts[0].vol
	out := &Volume{
		Cols:           first.Cols,
		Rows:           first.Rows,
		RowSpacingMM:   first.RowSpacingMM,
		ColSpacingMM:   first.ColSpacingMM,
		SliceSpacingMM: first.SliceSpacingMM,
		Meta:           first.Meta,
	}
	for _, p := range parts {
		if p.vol.Cols != out.Cols || p.vol.Rows != out.Rows {
			return nil, fmt.Errorf("%s: slice is %dx%d, series is %dx%d",
				filepath.Base(p.path), p.vol.Cols, p.vol.Rows, out.Cols, out.Rows)
		}
		out.Data = append(out.Data, p.vol.Data...)
		out.Depth += p.vol.Depth
	}
	out.Meta.Path = dir
	out.Meta.Frames = out.Depth
	return out, nil
}

// FromDataset converts a parsed dataset's pixel data into a volume,
// applying the study's rescale slope and intercept.
func FromDataset(ds *dicom.Dataset) (*Volume, error) {
	meta := dicomio.MetaFromDataset(ds)

	e, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: PixelData", dicomio.ErrMissingField)
	}
	info, ok := e.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("%w: PixelData", dicomio.ErrMissingField)
	}
	if info.IntentionallySkipped || len(info.Frames) == 0 {
		return nil, fmt.Errorf("%w: PixelData frames", dicomio.ErrMissingField)
	}

	v := &Volume{
		RowSpacingMM:   meta.RowSpacing,
		ColSpacingMM:   meta.ColumnSpacing,
		SliceSpacingMM: meta.SliceSpacing,
		Meta:           meta,
	}

	for i, fr := range info.Frames {
		img, err := fr.GetImage()
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", i, err)
		}
		bounds := img.Bounds()
		w, h := bounds.Dx(), bounds.Dy()
		if i == 0 {
			v.Cols, v.Rows = w, h
		} else if w != v.Cols || h != v.Rows {
			return nil, fmt.Errorf("frame %d is %dx%d, frame 0 is %dx%d",
				i, w, h, v.Cols, v.Rows)
		}

		plane := make([]float64, w*h)
		switch src := img.(type) {
		case *image.Gray16:
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					stored := float64(src.Gray16At(x+bounds.Min.X, y+bounds.Min.Y).Y)
					plane[y*w+x] = meta.RescaleSlope*stored + meta.RescaleIntercept
				}
			}
		default:
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					// Grayscale images report their value on all
					// three channels.
					r, _, _, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
					plane[y*w+x] = meta.RescaleSlope*float64(r) + meta.RescaleIntercept
				}
			}
		}
		v.Data = append(v.Data, plane...)
		v.Depth++
	}
	return v, nil
}

func isDICOMName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dcm", ".dicom", ".ima":
		return true
	default:
		return false
	}
}
