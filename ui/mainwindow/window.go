// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"path/filepath"

	"github.com/qurit/slicer-spect-recon/internal/app"
	"github.com/qurit/slicer-spect-recon/internal/dicomio"
	"github.com/qurit/slicer-spect-recon/internal/history"
	"github.com/qurit/slicer-spect-recon/internal/params"
	"github.com/qurit/slicer-spect-recon/internal/recon"
	"github.com/qurit/slicer-spect-recon/internal/version"
	"github.com/qurit/slicer-spect-recon/internal/volume"
	"github.com/qurit/slicer-spect-recon/ui/dialogs"
	"github.com/qurit/slicer-spect-recon/ui/panels"
	"github.com/qurit/slicer-spect-recon/ui/prefs"
	"github.com/qurit/slicer-spect-recon/ui/viewer"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	baseTitle = "SPECT Recon"
	sceneExt  = ".spectscene"
)

// projectionExtensions are the file name extensions offered when browsing
// for projection data.
var projectionExtensions = []string{".dcm", ".dicom", ".IMA"}

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	state     *app.State
	prf       *prefs.Prefs
	viewer    *viewer.SliceViewer
	sidePanel *panels.SidePanel
	statusBar *widget.Label

	// Menu items that need state tracking
	fitToWindowItem *fyne.MenuItem
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, store *history.Store, engine recon.Engine, prf *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(baseTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prf:    prf,
	}

	mw.setupUI(store, engine)
	mw.setupMenus()
	mw.setupEventHandlers()

	mw.Resize(fyne.NewSize(1280, 800))
	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI(store *history.Store, engine recon.Engine) {
	// Create the slice viewer
	mw.viewer = viewer.NewSliceViewer()
	mw.viewer.OnVoxelTap(func(x, y int, value float64) {
		mw.updateStatus(fmt.Sprintf("Voxel (%d, %d): %.2f", x, y, value))
	})

	// Create the side panel with tabs
	mw.sidePanel = panels.NewSidePanel(mw.state, store, engine, mw.prf)
	mw.sidePanel.SetWindow(mw.Window)

	// Create status bar
	mw.statusBar = widget.NewLabel("Ready")

	// Create toolbar with zoom controls
	toolbar := mw.createToolbar()

	// Viewer area with toolbar on top
	viewerArea := container.NewBorder(
		toolbar,               // top
		nil,                   // bottom
		nil,                   // left
		nil,                   // right
		mw.viewer.Container(), // center
	)

	// Create main layout: side panel | viewer area
	split := container.NewHSplit(
		mw.sidePanel.Container(),
		viewerArea,
	)
	split.SetOffset(0.25) // Side panel takes 25% of width

	// Main container with status bar at bottom
	content := container.NewBorder(
		nil,                               // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		split,                             // center
	)

	mw.SetContent(content)
}

// createToolbar creates the toolbar with zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	zoomOutBtn := widget.NewButton("-", func() {
		mw.onZoomOut()
	})
	zoomInBtn := widget.NewButton("+", func() {
		mw.onZoomIn()
	})
	fitBtn := widget.NewButton("Fit", func() {
		mw.onToggleFitToWindow()
	})
	actualBtn := widget.NewButton("1:1", func() {
		mw.onActualSize()
	})

	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		zoomOutBtn,
		zoomInBtn,
		fitBtn,
		actualBtn,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	// File menu
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Projection...", mw.onOpenProjection),
		fyne.NewMenuItem("Open Attenuation Directory...", mw.onOpenAttenuation),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Scene...", mw.onOpenScene),
		fyne.NewMenuItem("Save Scene", mw.onSaveScene),
		fyne.NewMenuItem("Save Scene As...", mw.onSaveSceneAs),
		fyne.NewMenuItem("Close Scene", mw.onCloseScene),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Slice...", mw.onExportSlice),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	// View menu
	mw.fitToWindowItem = fyne.NewMenuItem("  Fit to Window", mw.onToggleFitToWindow)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		mw.fitToWindowItem,
		fyne.NewMenuItem("Actual Size", mw.onActualSize),
	)

	// Tools menu
	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Reconstruct", mw.onReconstruct),
		fyne.NewMenuItem("Reload Energy Windows", mw.onReloadWindows),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Edit Collimators...", mw.onEditCollimators),
		fyne.NewMenuItem("Download Sample Data...", mw.onDownloadSampleData),
	)

	// Help menu
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mainMenu := fyne.NewMainMenu(fileMenu, viewMenu, toolsMenu, helpMenu)
	mw.SetMainMenu(mainMenu)
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventProjectionLoaded, func(data interface{}) {
		if meta, ok := data.(*dicomio.ProjectionMeta); ok {
			mw.updateStatus("Projection loaded: " + meta.Path)
		}
	})

	mw.state.On(app.EventSceneLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle(baseTitle + " - " + filepath.Base(path))
			mw.updateStatus("Scene loaded: " + path)
		}
	})

	mw.state.On(app.EventSceneSaved, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle(baseTitle + " - " + filepath.Base(path))
			mw.updateStatus("Scene saved: " + path)
		}
	})

	mw.state.On(app.EventSceneClosed, func(data interface{}) {
		mw.SetTitle(baseTitle)
		mw.updateStatus("Scene closed")
	})

	mw.state.On(app.EventModified, func(data interface{}) {
		if modified, ok := data.(bool); ok && modified {
			title := mw.Title()
			if len(title) > 0 && title[len(title)-1] != '*' {
				mw.SetTitle(title + " *")
			}
		}
	})

	mw.state.On(app.EventVolumeLoaded, func(data interface{}) {
		if v, ok := data.(*volume.Volume); ok && v != nil {
			mw.viewer.SetVolume(v)
			mw.updateStatus(fmt.Sprintf("Volume loaded: %dx%dx%d", v.Cols, v.Rows, v.Depth))
		}
	})

	mw.state.On(app.EventReconStarted, func(data interface{}) {
		mw.updateStatus("Reconstruction started...")
	})

	mw.state.On(app.EventReconFinished, func(data interface{}) {
		if data != nil {
			mw.updateStatus("Reconstruction failed")
			return
		}
		mw.updateStatus("Reconstruction complete")
	})
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// lastDir returns the directory stored under the given preference key as a
// ListableURI, or nil.
func (mw *MainWindow) lastDir(key string) fyne.ListableURI {
	path := mw.prf.String(key)
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

// Menu action handlers

func (mw *MainWindow) onOpenProjection() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.prf.SetString(prefs.KeyLastProjectionDir, filepath.Dir(path))
		mw.loadProjection(path)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(projectionExtensions))
	if loc := mw.lastDir(prefs.KeyLastProjectionDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) loadProjection(path string) {
	mw.updateStatus("Loading " + filepath.Base(path) + "...")
	go func() {
		if err := mw.state.LoadProjection(path); err != nil {
			mw.updateStatus("Projection load failed")
			dialog.ShowError(err, mw.Window)
		}
	}()
}

func (mw *MainWindow) onOpenAttenuation() {
	fd := dialog.NewFolderOpen(func(list fyne.ListableURI, err error) {
		if err != nil || list == nil {
			return
		}
		dir := list.Path()
		mw.prf.SetString(prefs.KeyLastAttenuationDir, filepath.Dir(dir))
		mw.state.Params.Set(params.KeyAttenuationDirectory, dir)
		mw.updateStatus("Attenuation directory: " + dir)
	}, mw.Window)
	if loc := mw.lastDir(prefs.KeyLastAttenuationDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpenScene() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.prf.SetString(prefs.KeyLastSceneDir, filepath.Dir(path))
		go func() {
			if err := mw.state.LoadScene(path); err != nil {
				mw.updateStatus("Scene load failed")
				dialog.ShowError(err, mw.Window)
			}
		}()
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{sceneExt}))
	if loc := mw.lastDir(prefs.KeyLastSceneDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSaveScene() {
	if mw.state.ScenePath == "" {
		mw.onSaveSceneAs()
		return
	}
	if err := mw.state.SaveScene(mw.state.ScenePath); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveSceneAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != sceneExt {
			path += sceneExt
		}
		mw.prf.SetString(prefs.KeyLastSceneDir, filepath.Dir(path))
		if err := mw.state.SaveScene(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("untitled" + sceneExt)
	if loc := mw.lastDir(prefs.KeyLastSceneDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onCloseScene() {
	mw.state.CloseScene()
}

func (mw *MainWindow) onExportSlice() {
	img := mw.viewer.CurrentImage()
	if img == nil {
		mw.updateStatus("No slice to export")
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		mw.prf.SetString(prefs.KeyLastExportDir, filepath.Dir(path))
		if err := volume.SaveImage(img, path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Exported " + path)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".tiff", ".tif"}))
	fd.SetFileName(mw.viewer.CurrentSliceName() + ".png")
	if loc := mw.lastDir(prefs.KeyLastExportDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onZoomIn() {
	mw.disableFitToWindow()
	mw.viewer.Canvas().ZoomIn()
}

func (mw *MainWindow) onZoomOut() {
	mw.disableFitToWindow()
	mw.viewer.Canvas().ZoomOut()
}

func (mw *MainWindow) onToggleFitToWindow() {
	// Toggle state
	enabled := !mw.viewer.Canvas().GetFitToWindow()
	mw.viewer.Canvas().SetFitToWindow(enabled)

	// Update menu label to show state
	if enabled {
		mw.fitToWindowItem.Label = "✓ Fit to Window"
	} else {
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) onActualSize() {
	mw.disableFitToWindow()
	mw.viewer.Canvas().SetZoom(1.0)
}

func (mw *MainWindow) disableFitToWindow() {
	if mw.viewer.Canvas().GetFitToWindow() {
		mw.viewer.Canvas().SetFitToWindow(false)
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) onReconstruct() {
	mw.sidePanel.Recon().Reconstruct()
}

func (mw *MainWindow) onReloadWindows() {
	go func() {
		if err := mw.state.ReloadProjection(); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}()
}

func (mw *MainWindow) onEditCollimators() {
	mw.sidePanel.Recon().EditCollimators()
}

func (mw *MainWindow) onDownloadSampleData() {
	dlg := dialogs.NewSampleDataDialog(mw.Window, func(path string) {
		switch filepath.Ext(path) {
		case ".dcm", ".dicom", ".IMA":
			mw.loadProjection(path)
		default:
			mw.updateStatus("Sample data saved to " + path)
		}
	})
	dlg.Show()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About SPECT Recon",
		fmt.Sprintf("SPECT Recon v%s\n\n"+
			"A desktop front end for iterative SPECT reconstruction.\n\n"+
			"Supports OSEM and BSREM with attenuation, scatter and\n"+
			"collimator detector response modeling.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
