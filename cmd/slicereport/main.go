// Command slicereport renders slices of a reconstructed volume to image
// files without starting the GUI, for quick inspection and for reports.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/qurit/slicer-spect-recon/internal/volume"
)

func main() {
	dir := flag.String("dir", "", "Directory holding a reconstructed DICOM series")
	file := flag.String("file", "", "Single DICOM volume file (alternative to -dir)")
	plane := flag.String("plane", "axial", "Slice orientation: axial, coronal or sagittal")
	index := flag.Int("index", -1, "Slice index (-1 means the middle slice)")
	colormap := flag.String("colormap", "Grayscale", "Colormap: Grayscale, \"Hot Iron\" or Jet")
	center := flag.Float64("center", 0, "Window center (0 means automatic windowing)")
	width := flag.Float64("width", 0, "Window width (0 means automatic windowing)")
	maxDim := flag.Int("max", 0, "Fit the image within this many pixels (0 keeps native size)")
	out := flag.String("out", "", "Output image path, .png or .tiff (derived from the slice when empty)")
	statsOnly := flag.Bool("stats", false, "Print volume statistics and exit")
	flag.Parse()

	if *dir == "" && *file == "" {
		fmt.Println("Usage: slicereport -dir <series-dir> [options]")
		fmt.Println("       slicereport -file <volume.dcm> [options]")
		os.Exit(1)
	}

	var vol *volume.Volume
	var err error
	if *file != "" {
		vol, err = volume.LoadFile(*file)
	} else {
		vol, err = volume.LoadSeries(*dir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load volume: %v\n", err)
		os.Exit(1)
	}

	lo, hi := vol.MinMax()
	wl := volume.AutoWindowLevel(vol)
	fmt.Printf("Volume:  %dx%dx%d voxels\n", vol.Cols, vol.Rows, vol.Depth)
	fmt.Printf("Spacing: %.3f x %.3f x %.3f mm\n", vol.ColSpacingMM, vol.RowSpacingMM, vol.SliceSpacingMM)
	fmt.Printf("Values:  %.4g to %.4g\n", lo, hi)
	fmt.Printf("Window:  %s\n", wl)
	if *statsOnly {
		return
	}

	p, ok := parsePlane(*plane)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown plane %q\n", *plane)
		os.Exit(1)
	}
	cm, ok := parseColormap(*colormap)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown colormap %q\n", *colormap)
		os.Exit(1)
	}
	if *center != 0 || *width != 0 {
		wl = volume.WindowLevel{Center: *center, Width: *width}
	}

	idx := *index
	if idx < 0 {
		idx = vol.SliceCount(p) / 2
	}
	slice, err := vol.ExtractSlice(p, idx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	img, err := volume.RenderSlice(slice, wl, cm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render slice: %v\n", err)
		os.Exit(1)
	}
	if *maxDim > 0 {
		b := img.Bounds()
		w, h := volume.FitSize(b.Dx(), b.Dy(), *maxDim, *maxDim)
		img = volume.Resize(img, w, h)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("%s_%03d.png", strings.ToLower(p.String()), idx)
	}
	if err := volume.SaveImage(img, path); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s slice %d of %d to %s\n", strings.ToLower(p.String()), idx, vol.SliceCount(p), path)
}

func parsePlane(name string) (volume.SlicePlane, bool) {
	for _, p := range volume.Planes() {
		if strings.EqualFold(p.String(), name) {
			return p, true
		}
	}
	return 0, false
}

func parseColormap(name string) (volume.Colormap, bool) {
	for _, cm := range volume.Colormaps() {
		if strings.EqualFold(cm.String(), name) {
			return cm, true
		}
	}
	return 0, false
}
