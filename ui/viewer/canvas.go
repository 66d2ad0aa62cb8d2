// Package viewer displays reconstructed volumes slice by slice with pan,
// zoom, window/level and colormap controls.
package viewer

import (
	"image"
	"image/draw"
	"log"

	"github.com/qurit/slicer-spect-recon/internal/volume"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	minZoom  = 0.25
	maxZoom  = 16.0
	zoomStep = 1.25
)

// SliceCanvas renders one slice of a volume with pan and zoom.
type SliceCanvas struct {
	widget.BaseWidget

	// Display source
	vol   *volume.Volume
	plane volume.SlicePlane
	index int
	wl    volume.WindowLevel
	cmap  volume.Colormap

	// Rendered slice before zoom scaling
	slice *volume.Slice
	base  image.Image

	// Display state
	raster *fynecanvas.Raster
	zoom   float64

	// Container
	scroll  *zoomScroll
	content *tappableContent
	imgSize fyne.Size

	// Fit to window
	fitToWindow    bool
	lastScrollSize fyne.Size

	// Callbacks
	onZoomChange func(zoom float64)
	onVoxelTap   func(x, y int, value float64)
}

// zoomScroll wraps a scroll container but intercepts the wheel for zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *SliceCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *SliceCanvas) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, canvas: canvas}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	// Wheel zooms, it never scrolls
	if ev.Scrolled.DY > 0 {
		zs.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		zs.canvas.ZoomOut()
	}
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

func (zs *zoomScroll) Size() fyne.Size {
	return zs.scroll.Size()
}

func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

// tappableContent wraps the raster to report voxel taps.
type tappableContent struct {
	widget.BaseWidget
	canvas *SliceCanvas
	raster *fynecanvas.Raster
}

func newTappableContent(sc *SliceCanvas, raster *fynecanvas.Raster) *tappableContent {
	tc := &tappableContent{canvas: sc, raster: raster}
	tc.ExtendBaseWidget(tc)
	return tc
}

func (tc *tappableContent) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(tc.raster)
}

func (tc *tappableContent) MinSize() fyne.Size {
	return tc.raster.MinSize()
}

func (tc *tappableContent) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		tc.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		tc.canvas.ZoomOut()
	}
}

// Tapped reports the voxel under the cursor.
func (tc *tappableContent) Tapped(ev *fyne.PointEvent) {
	sc := tc.canvas
	if sc.onVoxelTap == nil || sc.slice == nil {
		return
	}
	size := tc.Size()
	if size.Width <= 0 || size.Height <= 0 ||
		ev.Position.X < 0 || ev.Position.Y < 0 ||
		ev.Position.X > size.Width || ev.Position.Y > size.Height {
		return
	}

	x := int(float64(ev.Position.X) / float64(size.Width) * float64(sc.slice.Width))
	y := int(float64(ev.Position.Y) / float64(size.Height) * float64(sc.slice.Height))
	if x < 0 || x >= sc.slice.Width || y < 0 || y >= sc.slice.Height {
		return
	}
	sc.onVoxelTap(x, y, sc.slice.Data[y*sc.slice.Width+x])
}

// NewSliceCanvas creates an empty slice canvas.
func NewSliceCanvas() *SliceCanvas {
	sc := &SliceCanvas{
		zoom:    1.0,
		plane:   volume.PlaneAxial,
		cmap:    volume.ColormapGray,
		imgSize: fyne.NewSize(400, 300),
	}

	sc.raster = fynecanvas.NewRaster(sc.draw)
	sc.raster.ScaleMode = fynecanvas.ImageScalePixels
	sc.raster.SetMinSize(sc.imgSize)

	sc.content = newTappableContent(sc, sc.raster)
	sc.scroll = newZoomScroll(sc.content, sc)

	sc.ExtendBaseWidget(sc)
	return sc
}

// Container returns the canvas container for embedding in layouts.
func (sc *SliceCanvas) Container() fyne.CanvasObject {
	return sc.scroll
}

// SetVolume replaces the displayed volume, resets window/level to the
// volume's automatic values and jumps to the middle slice.
func (sc *SliceCanvas) SetVolume(v *volume.Volume) {
	sc.vol = v
	if v != nil {
		sc.wl = volume.AutoWindowLevel(v)
		sc.index = v.SliceCount(sc.plane) / 2
	} else {
		sc.index = 0
	}
	sc.rebuild()
}

// Volume returns the displayed volume, or nil.
func (sc *SliceCanvas) Volume() *volume.Volume {
	return sc.vol
}

// SetPlane switches the slicing orientation and jumps to its middle slice.
func (sc *SliceCanvas) SetPlane(plane volume.SlicePlane) {
	sc.plane = plane
	if sc.vol != nil {
		sc.index = sc.vol.SliceCount(plane) / 2
	}
	sc.rebuild()
}

// Plane returns the current slicing orientation.
func (sc *SliceCanvas) Plane() volume.SlicePlane {
	return sc.plane
}

// SetIndex selects the displayed slice.
func (sc *SliceCanvas) SetIndex(index int) {
	sc.index = index
	sc.rebuild()
}

// Index returns the displayed slice index.
func (sc *SliceCanvas) Index() int {
	return sc.index
}

// SetWindowLevel overrides the display window.
func (sc *SliceCanvas) SetWindowLevel(wl volume.WindowLevel) {
	sc.wl = wl
	sc.rebuild()
}

// WindowLevel returns the active display window.
func (sc *SliceCanvas) WindowLevel() volume.WindowLevel {
	return sc.wl
}

// AutoWindowLevel recomputes the display window from the volume histogram.
func (sc *SliceCanvas) AutoWindowLevel() {
	if sc.vol == nil {
		return
	}
	sc.wl = volume.AutoWindowLevel(sc.vol)
	sc.rebuild()
}

// SetColormap switches the colormap.
func (sc *SliceCanvas) SetColormap(cm volume.Colormap) {
	sc.cmap = cm
	sc.rebuild()
}

// Colormap returns the active colormap.
func (sc *SliceCanvas) Colormap() volume.Colormap {
	return sc.cmap
}

// CurrentImage returns the rendered slice at native resolution, or nil when
// nothing is displayed. Used for exporting.
func (sc *SliceCanvas) CurrentImage() image.Image {
	return sc.base
}

// OnZoomChange sets a callback for zoom changes.
func (sc *SliceCanvas) OnZoomChange(callback func(zoom float64)) {
	sc.onZoomChange = callback
}

// OnVoxelTap sets a callback for taps, reporting slice coordinates and the
// voxel value under the cursor.
func (sc *SliceCanvas) OnVoxelTap(callback func(x, y int, value float64)) {
	sc.onVoxelTap = callback
}

// SetZoom sets the zoom level.
func (sc *SliceCanvas) SetZoom(zoom float64) {
	if zoom < minZoom {
		zoom = minZoom
	}
	if zoom > maxZoom {
		zoom = maxZoom
	}
	sc.zoom = zoom
	sc.updateContentSize()

	if sc.onZoomChange != nil {
		sc.onZoomChange(zoom)
	}
}

// GetZoom returns the current zoom level.
func (sc *SliceCanvas) GetZoom() float64 {
	return sc.zoom
}

// ZoomIn increases the zoom level.
func (sc *SliceCanvas) ZoomIn() {
	sc.SetZoom(sc.zoom * zoomStep)
}

// ZoomOut decreases the zoom level.
func (sc *SliceCanvas) ZoomOut() {
	sc.SetZoom(sc.zoom / zoomStep)
}

// FitToWindow adjusts zoom so the slice fills the visible area.
func (sc *SliceCanvas) FitToWindow() {
	w, h := sc.nativeSize()
	if w == 0 || h == 0 {
		return
	}
	viewSize := sc.scroll.Size()
	if viewSize.Width <= 0 || viewSize.Height <= 0 {
		return
	}

	zoomX := float64(viewSize.Width) / w
	zoomY := float64(viewSize.Height) / h
	zoom := zoomX
	if zoomY < zoomX {
		zoom = zoomY
	}
	sc.SetZoom(zoom * 0.95) // Leave a small margin
}

// SetFitToWindow enables or disables auto-fit on resize.
func (sc *SliceCanvas) SetFitToWindow(fit bool) {
	sc.fitToWindow = fit
	if fit {
		sc.FitToWindow()
	}
}

// GetFitToWindow returns the current fit-to-window state.
func (sc *SliceCanvas) GetFitToWindow() bool {
	return sc.fitToWindow
}

// CheckResize auto-fits when the scroll container was resized.
func (sc *SliceCanvas) CheckResize(size fyne.Size) {
	if !sc.fitToWindow {
		return
	}
	if size.Width > 0 && size.Height > 0 && size != sc.lastScrollSize {
		sc.lastScrollSize = size
		sc.FitToWindow()
	}
}

// Refresh refreshes the canvas display.
func (sc *SliceCanvas) Refresh() {
	sc.raster.Refresh()
}

// rebuild re-extracts and re-renders the displayed slice.
func (sc *SliceCanvas) rebuild() {
	sc.slice = nil
	sc.base = nil

	if sc.vol != nil && sc.index >= 0 && sc.index < sc.vol.SliceCount(sc.plane) {
		s, err := sc.vol.ExtractSlice(sc.plane, sc.index)
		if err != nil {
			log.Printf("viewer: extract slice: %v", err)
		} else if img, err := volume.RenderSlice(s, sc.wl, sc.cmap); err != nil {
			log.Printf("viewer: render slice: %v", err)
		} else {
			sc.slice = s
			sc.base = img
		}
	}
	sc.updateContentSize()
}

// displayScale returns per-axis pixel stretch factors so anisotropic voxels
// keep their physical aspect on screen.
func (sc *SliceCanvas) displayScale() (float64, float64) {
	if sc.vol == nil {
		return 1, 1
	}
	var sx, sy float64
	switch sc.plane {
	case volume.PlaneAxial:
		sx, sy = sc.vol.ColSpacingMM, sc.vol.RowSpacingMM
	case volume.PlaneCoronal:
		sx, sy = sc.vol.ColSpacingMM, sc.vol.SliceSpacingMM
	default:
		sx, sy = sc.vol.SliceSpacingMM, sc.vol.RowSpacingMM
	}
	if sx <= 0 || sy <= 0 {
		return 1, 1
	}
	if sx < sy {
		return 1, sy / sx
	}
	return sx / sy, 1
}

// nativeSize returns the slice display size at zoom 1, in points.
func (sc *SliceCanvas) nativeSize() (float64, float64) {
	if sc.base == nil {
		return 0, 0
	}
	bounds := sc.base.Bounds()
	fx, fy := sc.displayScale()
	return float64(bounds.Dx()) * fx, float64(bounds.Dy()) * fy
}

// updateContentSize updates the content size from slice size and zoom.
func (sc *SliceCanvas) updateContentSize() {
	w, h := sc.nativeSize()
	if w == 0 || h == 0 {
		sc.imgSize = fyne.NewSize(400, 300)
	} else {
		sc.imgSize = fyne.NewSize(float32(w*sc.zoom), float32(h*sc.zoom))
	}

	sc.raster.SetMinSize(sc.imgSize)
	sc.raster.Resize(sc.imgSize)
	if sc.content != nil {
		sc.content.Resize(sc.imgSize)
		sc.content.Refresh()
	}
	sc.raster.Refresh()
	if sc.scroll != nil {
		sc.scroll.Refresh()
	}
}

// draw is the raster drawing function.
func (sc *SliceCanvas) draw(w, h int) image.Image {
	currentSize := fyne.NewSize(float32(w), float32(h))
	if sc.fitToWindow && currentSize != sc.lastScrollSize && w > 0 && h > 0 {
		sc.lastScrollSize = currentSize
		// Schedule fit after this draw completes
		go func() {
			sc.FitToWindow()
		}()
	}

	output := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(output.Pix); i += 4 {
		output.Pix[i] = 255
	}
	if sc.base == nil || w <= 0 || h <= 0 {
		return output
	}

	scaled := volume.Resize(sc.base, w, h)
	draw.Draw(output, output.Bounds(), scaled, image.Point{}, draw.Src)
	return output
}

// CreateRenderer implements fyne.Widget.
func (sc *SliceCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &sliceCanvasRenderer{canvas: sc}
}

type sliceCanvasRenderer struct {
	canvas *SliceCanvas
}

func (r *sliceCanvasRenderer) Layout(size fyne.Size) {
	if r.canvas.scroll != nil {
		r.canvas.scroll.Resize(size)
	}
	r.canvas.CheckResize(size)
}

func (r *sliceCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *sliceCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *sliceCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.scroll}
}

func (r *sliceCanvasRenderer) Destroy() {}
