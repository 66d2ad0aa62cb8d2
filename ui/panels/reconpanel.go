package panels

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/qurit/slicer-spect-recon/internal/app"
	"github.com/qurit/slicer-spect-recon/internal/collimator"
	"github.com/qurit/slicer-spect-recon/internal/dicomio"
	"github.com/qurit/slicer-spect-recon/internal/history"
	"github.com/qurit/slicer-spect-recon/internal/params"
	"github.com/qurit/slicer-spect-recon/internal/recon"
	"github.com/qurit/slicer-spect-recon/ui/dialogs"
	"github.com/qurit/slicer-spect-recon/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// ReconPanel edits the reconstruction parameters and launches runs. Every
// widget is bound to the parameter record of the application state, so scene
// loads and other record mutations show up immediately, and every edit lands
// back in the record.
type ReconPanel struct {
	state  *app.State
	store  *history.Store
	engine recon.Engine
	prf    *prefs.Prefs
	window fyne.Window

	binder *params.Binder

	pathField  *entryField
	attenField *entryField

	collimatorField *selectField
	scatterField    *selectField
	photopeakField  *selectField
	upperField      *selectField
	lowerField      *selectField
	algorithmField  *selectField
	iterationsField *numberEntry
	subsetsField    *numberEntry

	projectionLabel *widget.Label
	windowsLabel    *widget.Label
	outputEntry     *widget.Entry
	reconButton     *widget.Button
	reconStatus     *widget.Label

	container *fyne.Container
}

// NewReconPanel creates the reconstruction parameter panel.
func NewReconPanel(state *app.State, store *history.Store, engine recon.Engine, prf *prefs.Prefs) *ReconPanel {
	rp := &ReconPanel{
		state:  state,
		store:  store,
		engine: engine,
		prf:    prf,
		binder: params.NewBinder(state.Params),
	}

	pull := func(string) { rp.binder.PullFromUI() }

	rp.pathField = newEntryField("No projection data selected", pull)
	rp.pathField.w.OnSubmitted = func(path string) { rp.loadProjection(path) }
	rp.attenField = newEntryField("Optional attenuation map directory", pull)

	rp.collimatorField = newSelectField(params.DefaultCollimator, pull)
	rp.collimatorField.SetOptions(collimatorOptions())
	rp.scatterField = newSelectField(params.DefaultScatter, pull)
	rp.scatterField.SetOptions(append([]string{params.DefaultScatter}, recon.ScatterMethods()...))
	rp.photopeakField = newSelectField("Select Photopeak", pull)
	rp.upperField = newSelectField(params.DefaultUpperWindow, pull)
	rp.lowerField = newSelectField(params.DefaultLowerWindow, pull)
	rp.algorithmField = newSelectField(params.DefaultAlgorithm, pull)
	rp.algorithmField.SetOptions(append([]string{params.DefaultAlgorithm}, recon.Algorithms()...))
	rp.iterationsField = newNumberEntry(pull)
	rp.subsetsField = newNumberEntry(pull)

	rp.projectionLabel = widget.NewLabel("No projection data loaded")
	rp.projectionLabel.Wrapping = fyne.TextWrapWord
	rp.windowsLabel = widget.NewLabel("")

	rp.outputEntry = widget.NewEntry()
	rp.outputEntry.SetText(prf.StringWithFallback(prefs.KeyOutputDir, defaultOutputDir()))
	rp.outputEntry.OnChanged = func(dir string) {
		rp.prf.SetString(prefs.KeyOutputDir, dir)
	}

	rp.reconButton = widget.NewButton("Reconstruct", func() {
		rp.onReconstruct()
	})
	rp.reconStatus = widget.NewLabel("")
	rp.reconStatus.Wrapping = fyne.TextWrapWord

	browseProjection := widget.NewButton("Browse...", func() {
		rp.onBrowseProjection()
	})
	browseAttenuation := widget.NewButton("Browse...", func() {
		rp.onBrowseAttenuation()
	})
	browseOutput := widget.NewButton("Browse...", func() {
		rp.onBrowseOutput()
	})
	presetsButton := widget.NewButton("Presets...", func() {
		rp.showCollimatorDialog()
	})
	reloadButton := widget.NewButton("Reload Windows", func() {
		rp.onReloadWindows()
	})

	// Layout
	rp.container = container.NewVBox(
		widget.NewCard("Projection Data", "", container.NewVBox(
			container.NewBorder(nil, nil, nil, browseProjection, rp.pathField.w),
			rp.projectionLabel,
		)),
		widget.NewCard("Attenuation", "", container.NewVBox(
			container.NewBorder(nil, nil, nil, browseAttenuation, rp.attenField.w),
		)),
		widget.NewCard("Energy Windows", "", container.NewVBox(
			widget.NewLabel("Photopeak:"),
			rp.photopeakField.w,
			widget.NewLabel("Scatter correction:"),
			rp.scatterField.w,
			widget.NewLabel("Upper window:"),
			rp.upperField.w,
			widget.NewLabel("Lower window:"),
			rp.lowerField.w,
			container.NewHBox(reloadButton, rp.windowsLabel),
		)),
		widget.NewCard("Reconstruction", "", container.NewVBox(
			widget.NewLabel("Collimator:"),
			container.NewBorder(nil, nil, nil, presetsButton, rp.collimatorField.w),
			widget.NewLabel("Algorithm:"),
			rp.algorithmField.w,
			container.NewGridWithColumns(2,
				widget.NewLabel("Iterations:"), rp.iterationsField.w,
				widget.NewLabel("Subsets:"), rp.subsetsField.w,
			),
			widget.NewLabel("Output directory:"),
			container.NewBorder(nil, nil, nil, browseOutput, rp.outputEntry),
			rp.reconButton,
			rp.reconStatus,
		)),
	)

	// Bind the record to the widgets. The window selects get their options
	// from the loaded study before the first push resolves stored labels.
	rp.binder.Path = rp.pathField
	rp.binder.AttenuationDirectory = rp.attenField
	rp.binder.Collimator = rp.collimatorField
	rp.binder.Scatter = rp.scatterField
	rp.binder.Photopeak = rp.photopeakField
	rp.binder.UpperWindow = rp.upperField
	rp.binder.LowerWindow = rp.lowerField
	rp.binder.Algorithm = rp.algorithmField
	rp.binder.Iterations = rp.iterationsField
	rp.binder.Subsets = rp.subsetsField
	rp.binder.Bind()
	rp.setWindowOptions(state.CurrentWindows())

	// Register for events
	state.On(app.EventProjectionLoaded, func(data interface{}) {
		if meta, ok := data.(*dicomio.ProjectionMeta); ok {
			rp.updateProjectionInfo(meta)
		}
	})
	state.On(app.EventWindowsChanged, func(data interface{}) {
		windows, _ := data.([]dicomio.EnergyWindow)
		rp.setWindowOptions(windows)
	})
	state.On(app.EventSceneClosed, func(interface{}) {
		rp.projectionLabel.SetText("No projection data loaded")
		rp.reconStatus.SetText("")
	})

	if state.Projection != nil {
		rp.updateProjectionInfo(state.Projection)
	}

	return rp
}

// Container returns the panel container.
func (rp *ReconPanel) Container() fyne.CanvasObject {
	return rp.container
}

// SetWindow sets the parent window for dialogs.
func (rp *ReconPanel) SetWindow(w fyne.Window) {
	rp.window = w
}

// Binder returns the record-to-widget binder, mainly for tests.
func (rp *ReconPanel) Binder() *params.Binder {
	return rp.binder
}

// Reconstruct launches a reconstruction as if the panel button was pressed.
func (rp *ReconPanel) Reconstruct() {
	rp.onReconstruct()
}

// EditCollimators opens the collimator preset editor.
func (rp *ReconPanel) EditCollimators() {
	rp.showCollimatorDialog()
}

// OutputDir returns the currently configured output directory.
func (rp *ReconPanel) OutputDir() string {
	return strings.TrimSpace(rp.outputEntry.Text)
}

// setWindowOptions rebuilds the window selects from the study windows, then
// re-resolves the stored labels. The photopeak list carries no placeholder
// entry; an empty photopeak shows as the select placeholder text.
func (rp *ReconPanel) setWindowOptions(windows []dicomio.EnergyWindow) {
	labels := dicomio.WindowLabels(windows)
	rp.photopeakField.SetOptions(labels)
	rp.upperField.SetOptions(append([]string{params.DefaultUpperWindow}, labels...))
	rp.lowerField.SetOptions(append([]string{params.DefaultLowerWindow}, labels...))
	rp.binder.PushToUI()

	if len(windows) == 0 {
		rp.windowsLabel.SetText("No energy windows")
	} else {
		rp.windowsLabel.SetText(fmt.Sprintf("%d energy windows", len(windows)))
	}
}

func (rp *ReconPanel) updateProjectionInfo(meta *dicomio.ProjectionMeta) {
	text := meta.Describe()
	if !meta.IsNuclearMedicine() {
		text += " (not an NM study)"
	}
	rp.projectionLabel.SetText(text)
}

// loadProjection parses the study off the event thread; the loaded event
// updates the info label on success.
func (rp *ReconPanel) loadProjection(path string) {
	if path == "" {
		return
	}
	rp.projectionLabel.SetText("Loading " + filepath.Base(path) + "...")
	go func() {
		if err := rp.state.LoadProjection(path); err != nil {
			rp.projectionLabel.SetText("Load failed")
			rp.showError(err)
		}
	}()
}

func (rp *ReconPanel) onBrowseProjection() {
	if rp.window == nil {
		return
	}
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		rp.prf.SetString(prefs.KeyLastProjectionDir, filepath.Dir(path))
		rp.loadProjection(path)
	}, rp.window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".dcm", ".dicom", ".IMA"}))
	if loc := listableDir(rp.prf.String(prefs.KeyLastProjectionDir)); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (rp *ReconPanel) onBrowseAttenuation() {
	if rp.window == nil {
		return
	}
	fd := dialog.NewFolderOpen(func(list fyne.ListableURI, err error) {
		if err != nil || list == nil {
			return
		}
		dir := list.Path()
		rp.prf.SetString(prefs.KeyLastAttenuationDir, filepath.Dir(dir))
		rp.attenField.SetValue(dir)
	}, rp.window)
	if loc := listableDir(rp.prf.String(prefs.KeyLastAttenuationDir)); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (rp *ReconPanel) onBrowseOutput() {
	if rp.window == nil {
		return
	}
	fd := dialog.NewFolderOpen(func(list fyne.ListableURI, err error) {
		if err != nil || list == nil {
			return
		}
		rp.outputEntry.SetText(list.Path())
	}, rp.window)
	if loc := listableDir(rp.OutputDir()); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (rp *ReconPanel) onReloadWindows() {
	go func() {
		if err := rp.state.ReloadProjection(); err != nil {
			rp.showError(err)
		}
	}()
}

func (rp *ReconPanel) showCollimatorDialog() {
	if rp.window == nil {
		return
	}
	dlg := dialogs.NewCollimatorDialog(rp.window, func() {
		rp.collimatorField.SetOptions(collimatorOptions())
		rp.binder.PushToUI()
	})
	dlg.Show()
}

func (rp *ReconPanel) onReconstruct() {
	outDir := rp.OutputDir()
	series := rp.seriesName()

	rp.reconButton.Disable()
	rp.reconStatus.SetText("Reconstructing...")

	// Run the engine in a goroutine to keep the UI responsive.
	go func() {
		started := time.Now()
		dir, err := rp.state.Reconstruct(context.Background(), rp.engine, rp.store, outDir, series)
		rp.reconButton.Enable()
		if err != nil {
			rp.reconStatus.SetText("Reconstruction failed")
			rp.showError(err)
			return
		}
		rp.reconStatus.SetText(fmt.Sprintf("Done in %s, wrote %s",
			time.Since(started).Round(time.Second), dir))
	}()
}

// seriesName derives the output series name from the selected algorithm and
// the wall clock, such as "osem_20260218_140301".
func (rp *ReconPanel) seriesName() string {
	alg := rp.state.Params.Get(params.KeyAlgorithm)
	if alg == "" || alg == params.DefaultAlgorithm {
		alg = "recon"
	}
	return strings.ToLower(alg) + "_" + time.Now().Format("20060102_150405")
}

func (rp *ReconPanel) showError(err error) {
	log.Printf("panels: %v", err)
	if rp.window != nil {
		dialog.ShowError(err, rp.window)
	}
}

// collimatorOptions returns the collimator select entries: the placeholder
// followed by every registered preset code.
func collimatorOptions() []string {
	return append([]string{params.DefaultCollimator}, collimator.ListCodes()...)
}
