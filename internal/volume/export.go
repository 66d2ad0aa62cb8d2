package volume

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// SaveImage writes img to path, choosing the encoder from the file
// extension. PNG and TIFF are supported.
func SaveImage(img image.Image, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return SavePNG(img, path)
	case ".tif", ".tiff":
		return SaveTIFF(img, path)
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

// SavePNG writes img to path as a PNG.
func SavePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return f.Close()
}

// SaveTIFF writes img to path as a deflate-compressed TIFF.
func SaveTIFF(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	if err := tiff.Encode(f, img, opts); err != nil {
		return fmt.Errorf("failed to encode TIFF: %w", err)
	}
	return f.Close()
}
