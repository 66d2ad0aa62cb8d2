package viewer

import (
	"fmt"
	"image"
	"strings"

	"github.com/qurit/slicer-spect-recon/internal/volume"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// SliceViewer combines the slice canvas with orientation, slice, colormap
// and window/level controls.
type SliceViewer struct {
	canvas *SliceCanvas

	planeSelect    *widget.Select
	colormapSelect *widget.Select
	autoWLButton   *widget.Button
	wlLabel        *widget.Label
	sliceSlider    *widget.Slider
	sliceLabel     *widget.Label

	root *fyne.Container
}

// NewSliceViewer creates the viewer with an empty canvas.
func NewSliceViewer() *SliceViewer {
	sv := &SliceViewer{canvas: NewSliceCanvas()}

	var planeNames []string
	for _, p := range volume.Planes() {
		planeNames = append(planeNames, p.String())
	}
	sv.planeSelect = widget.NewSelect(planeNames, sv.onPlaneSelected)
	sv.planeSelect.SetSelected(volume.PlaneAxial.String())

	var cmNames []string
	for _, cm := range volume.Colormaps() {
		cmNames = append(cmNames, cm.String())
	}
	sv.colormapSelect = widget.NewSelect(cmNames, sv.onColormapSelected)
	sv.colormapSelect.SetSelected(volume.ColormapGray.String())

	sv.autoWLButton = widget.NewButton("Auto W/L", func() {
		sv.canvas.AutoWindowLevel()
		sv.updateWindowLabel()
	})
	sv.wlLabel = widget.NewLabel("")

	sv.sliceSlider = widget.NewSlider(0, 0)
	sv.sliceSlider.Step = 1
	sv.sliceSlider.OnChanged = sv.onSliceChanged
	sv.sliceLabel = widget.NewLabel("-/-")

	sv.setControlsEnabled(false)

	controls := container.NewHBox(
		widget.NewLabel("Plane:"), sv.planeSelect,
		widget.NewLabel("Colormap:"), sv.colormapSelect,
		sv.autoWLButton, sv.wlLabel,
	)
	sliceBar := container.NewBorder(nil, nil, widget.NewLabel("Slice:"), sv.sliceLabel, sv.sliceSlider)
	sv.root = container.NewBorder(controls, sliceBar, nil, nil, sv.canvas.Container())
	return sv
}

// Container returns the viewer layout for embedding.
func (sv *SliceViewer) Container() fyne.CanvasObject {
	return sv.root
}

// Canvas exposes the underlying slice canvas for zoom wiring.
func (sv *SliceViewer) Canvas() *SliceCanvas {
	return sv.canvas
}

// SetVolume replaces the displayed volume and resets the controls.
func (sv *SliceViewer) SetVolume(v *volume.Volume) {
	sv.canvas.SetVolume(v)
	sv.setControlsEnabled(v != nil)
	sv.refreshControls()
	if v != nil {
		sv.canvas.SetFitToWindow(true)
	}
}

// Volume returns the displayed volume, or nil.
func (sv *SliceViewer) Volume() *volume.Volume {
	return sv.canvas.Volume()
}

// CurrentImage returns the displayed slice rendered at native resolution.
func (sv *SliceViewer) CurrentImage() image.Image {
	return sv.canvas.CurrentImage()
}

// CurrentSliceName describes the displayed slice for export file names and
// status text, for example "axial_032".
func (sv *SliceViewer) CurrentSliceName() string {
	return fmt.Sprintf("%s_%03d", strings.ToLower(sv.canvas.Plane().String()), sv.canvas.Index())
}

// SetColormapByName selects a colormap by its display name. Unknown names
// are ignored.
func (sv *SliceViewer) SetColormapByName(name string) {
	for _, cm := range volume.Colormaps() {
		if cm.String() == name {
			sv.colormapSelect.SetSelected(name)
			return
		}
	}
}

// OnVoxelTap forwards tap reporting from the canvas.
func (sv *SliceViewer) OnVoxelTap(callback func(x, y int, value float64)) {
	sv.canvas.OnVoxelTap(callback)
}

func (sv *SliceViewer) onPlaneSelected(name string) {
	for _, p := range volume.Planes() {
		if p.String() == name && p != sv.canvas.Plane() {
			sv.canvas.SetPlane(p)
			sv.refreshControls()
			return
		}
	}
}

func (sv *SliceViewer) onColormapSelected(name string) {
	for _, cm := range volume.Colormaps() {
		if cm.String() == name && cm != sv.canvas.Colormap() {
			sv.canvas.SetColormap(cm)
			return
		}
	}
}

func (sv *SliceViewer) onSliceChanged(value float64) {
	idx := int(value)
	if idx != sv.canvas.Index() {
		sv.canvas.SetIndex(idx)
		sv.updateSliceLabel()
	}
}

func (sv *SliceViewer) setControlsEnabled(enabled bool) {
	if enabled {
		sv.planeSelect.Enable()
		sv.colormapSelect.Enable()
		sv.autoWLButton.Enable()
		sv.sliceSlider.Enable()
	} else {
		sv.planeSelect.Disable()
		sv.colormapSelect.Disable()
		sv.autoWLButton.Disable()
		sv.sliceSlider.Disable()
	}
}

func (sv *SliceViewer) refreshControls() {
	v := sv.canvas.Volume()
	if v == nil {
		sv.sliceSlider.Max = 0
		sv.sliceLabel.SetText("-/-")
		sv.wlLabel.SetText("")
		return
	}
	count := v.SliceCount(sv.canvas.Plane())
	sv.sliceSlider.Max = float64(count - 1)
	sv.sliceSlider.SetValue(float64(sv.canvas.Index()))
	sv.updateSliceLabel()
	sv.updateWindowLabel()
}

func (sv *SliceViewer) updateSliceLabel() {
	v := sv.canvas.Volume()
	if v == nil {
		sv.sliceLabel.SetText("-/-")
		return
	}
	sv.sliceLabel.SetText(fmt.Sprintf("%d/%d", sv.canvas.Index()+1, v.SliceCount(sv.canvas.Plane())))
}

func (sv *SliceViewer) updateWindowLabel() {
	sv.wlLabel.SetText(sv.canvas.WindowLevel().String())
}
