package volume

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

func TestAutoWindowLevel(t *testing.T) {
	data := make([]float64, 1000)
	for i := range data {
		data[i] = float64(i)
	}
	v := &Volume{Data: data, Cols: 10, Rows: 10, Depth: 10}

	wl := AutoWindowLevel(v)
	lo, hi := wl.Bounds()
	if lo < 0 || lo > 100 {
		t.Errorf("window low = %v, want within [0, 100]", lo)
	}
	if hi < 900 || hi > 999 {
		t.Errorf("window high = %v, want within [900, 999]", hi)
	}
	if wl.Width <= 0 {
		t.Errorf("window width = %v, want > 0", wl.Width)
	}
}

func TestAutoWindowLevelUniform(t *testing.T) {
	v := &Volume{Data: []float64{7, 7, 7, 7}, Cols: 2, Rows: 2, Depth: 1}
	wl := AutoWindowLevel(v)
	if wl.Width <= 0 {
		t.Errorf("uniform volume produced width %v, want > 0", wl.Width)
	}
}

func TestAutoWindowLevelEmpty(t *testing.T) {
	wl := AutoWindowLevel(&Volume{})
	if wl.Width <= 0 {
		t.Errorf("empty volume produced width %v, want > 0", wl.Width)
	}
}

func TestRenderSliceGray(t *testing.T) {
	s := &Slice{
		Data:   []float64{-50, 0, 50, 100, 150, 200},
		Width:  3,
		Height: 2,
	}
	wl := WindowLevel{Center: 50, Width: 100} // clamp at 0 and 100

	img, err := RenderSlice(s, wl, ColormapGray)
	if err != nil {
		t.Fatalf("RenderSlice: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("RenderSlice returned %T, want *image.Gray", img)
	}

	want := []uint8{0, 0, 127, 255, 255, 255}
	for i, w := range want {
		if got := gray.Pix[i]; got != w {
			t.Errorf("pixel %d = %d, want %d", i, got, w)
		}
	}
}

func TestRenderSliceZeroWidthWindow(t *testing.T) {
	s := &Slice{Data: []float64{1, 2}, Width: 2, Height: 1}
	img, err := RenderSlice(s, WindowLevel{Center: 1, Width: 0}, ColormapGray)
	if err != nil {
		t.Fatalf("RenderSlice: %v", err)
	}
	if img.Bounds().Dx() != 2 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestResize(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	out := Resize(src, 8, 4)
	if b := out.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("resized bounds = %v, want 8x4", b)
	}

	// Matching size is returned unchanged.
	same := Resize(src, 2, 2)
	if same != image.Image(src) {
		t.Error("Resize to the same size should return the input image")
	}
}

func TestFitSize(t *testing.T) {
	cases := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{128, 128, 512, 256, 256, 256},
		{100, 50, 200, 200, 200, 100},
		{50, 100, 200, 200, 100, 200},
		{200, 200, 100, 100, 100, 100},
	}
	for _, c := range cases {
		gotW, gotH := FitSize(c.w, c.h, c.maxW, c.maxH)
		if gotW != c.wantW || gotH != c.wantH {
			t.Errorf("FitSize(%d,%d,%d,%d) = %d,%d, want %d,%d",
				c.w, c.h, c.maxW, c.maxH, gotW, gotH, c.wantW, c.wantH)
		}
	}
}

func TestSaveImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	dir := t.TempDir()

	t.Run("PNG", func(t *testing.T) {
		path := filepath.Join(dir, "slice.png")
		if err := SaveImage(img, path); err != nil {
			t.Fatalf("SaveImage: %v", err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		decoded, err := png.Decode(f)
		if err != nil {
			t.Fatalf("decode written PNG: %v", err)
		}
		if b := decoded.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
			t.Errorf("decoded bounds = %v", b)
		}
	})

	t.Run("TIFF", func(t *testing.T) {
		path := filepath.Join(dir, "slice.tif")
		if err := SaveImage(img, path); err != nil {
			t.Fatalf("SaveImage: %v", err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		decoded, err := tiff.Decode(f)
		if err != nil {
			t.Fatalf("decode written TIFF: %v", err)
		}
		if b := decoded.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
			t.Errorf("decoded bounds = %v", b)
		}
	})

	t.Run("UnknownExtension", func(t *testing.T) {
		if err := SaveImage(img, filepath.Join(dir, "slice.bmp")); err == nil {
			t.Error("SaveImage should reject unsupported extensions")
		}
	})
}
