package volume

import (
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// WindowLevel maps an intensity range onto the display grayscale.
// Values at or below Center-Width/2 render black, values at or above
// Center+Width/2 render white.
type WindowLevel struct {
	Center float64
	Width  float64
}

// Bounds returns the black and white clamp intensities.
func (wl WindowLevel) Bounds() (lo, hi float64) {
	return wl.Center - wl.Width/2, wl.Center + wl.Width/2
}

func (wl WindowLevel) String() string {
	return fmt.Sprintf("C %.1f / W %.1f", wl.Center, wl.Width)
}

// AutoWindowLevel derives a window from the volume's intensity
// distribution. The 1st and 99th percentiles bound the window so a few
// hot voxels cannot crush the rest of the display range.
func AutoWindowLevel(v *Volume) WindowLevel {
	if len(v.Data) == 0 {
		return WindowLevel{Center: 0.5, Width: 1}
	}

	sorted := make([]float64, len(v.Data))
	copy(sorted, v.Data)
	sort.Float64s(sorted)

	lo := stat.Quantile(0.01, stat.Empirical, sorted, nil)
	hi := stat.Quantile(0.99, stat.Empirical, sorted, nil)
	if hi <= lo {
		lo, hi = sorted[0], sorted[len(sorted)-1]
	}
	if hi <= lo {
		hi = lo + 1
	}
	return WindowLevel{Center: (lo + hi) / 2, Width: hi - lo}
}

// Colormap selects how windowed intensities are colored.
type Colormap int

const (
	ColormapGray Colormap = iota
	ColormapHot
	ColormapJet
)

func (c Colormap) String() string {
	switch c {
	case ColormapGray:
		return "Grayscale"
	case ColormapHot:
		return "Hot Iron"
	case ColormapJet:
		return "Jet"
	default:
		return "Unknown"
	}
}

// Colormaps lists the selectable colormaps in display order.
func Colormaps() []Colormap {
	return []Colormap{ColormapGray, ColormapHot, ColormapJet}
}

// RenderSlice converts a slice to a displayable image using the given
// window and colormap.
func RenderSlice(s *Slice, wl WindowLevel, cm Colormap) (image.Image, error) {
	gray := windowToBytes(s, wl)

	if cm == ColormapGray {
		img := image.NewGray(image.Rect(0, 0, s.Width, s.Height))
		copy(img.Pix, gray)
		return img, nil
	}

	src, err := gocv.NewMatFromBytes(s.Height, s.Width, gocv.MatTypeCV8UC1, gray)
	if err != nil {
		return nil, fmt.Errorf("colormap source: %w", err)
	}
	defer src.Close()

	colored := gocv.NewMat()
	defer colored.Close()
	switch cm {
	case ColormapHot:
		gocv.ApplyColorMap(src, &colored, gocv.ColormapHot)
	case ColormapJet:
		gocv.ApplyColorMap(src, &colored, gocv.ColormapJet)
	default:
		return nil, fmt.Errorf("unknown colormap %d", cm)
	}
	return bgrMatToImage(colored), nil
}

// windowToBytes maps slice intensities through the window onto 0..255.
func windowToBytes(s *Slice, wl WindowLevel) []byte {
	lo, hi := wl.Bounds()
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	out := make([]byte, len(s.Data))
	for i, d := range s.Data {
		switch {
		case d <= lo:
			out[i] = 0
		case d >= hi:
			out[i] = 255
		default:
			out[i] = byte((d - lo) * scale)
		}
	}
	return out
}

// bgrMatToImage converts an 8UC3 BGR Mat to an RGBA image.
func bgrMatToImage(mat gocv.Mat) image.Image {
	h := mat.Rows()
	w := mat.Cols()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := img.Stride
	for y := 0; y < h; y++ {
		rowOffset := y * stride
		for x := 0; x < w; x++ {
			pixOffset := rowOffset + x*4
			img.Pix[pixOffset+0] = mat.GetUCharAt(y, x*3+2) // R
			img.Pix[pixOffset+1] = mat.GetUCharAt(y, x*3+1) // G
			img.Pix[pixOffset+2] = mat.GetUCharAt(y, x*3+0) // B
			img.Pix[pixOffset+3] = 255
		}
	}
	return img
}

// Resize scales an image to the given size with bilinear filtering.
// Reconstruction slices are small (64-256 px) and need upscaling for
// on-screen display.
func Resize(img image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FitSize returns the largest width/height with the same aspect ratio
// as (w, h) that fits inside (maxW, maxH).
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return w, h
	}
	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}
