// Package main provides the entry point for the SPECT reconstruction
// application.
package main

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/qurit/slicer-spect-recon/internal/app"
	"github.com/qurit/slicer-spect-recon/internal/collimator"
	"github.com/qurit/slicer-spect-recon/internal/dicomio"
	"github.com/qurit/slicer-spect-recon/internal/history"
	"github.com/qurit/slicer-spect-recon/internal/recon"
	"github.com/qurit/slicer-spect-recon/internal/version"
	"github.com/qurit/slicer-spect-recon/ui/mainwindow"
	"github.com/qurit/slicer-spect-recon/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
)

// watchInterval is how often the projection watcher polls for file changes.
const watchInterval = 2 * time.Second

// historyRetention caps the run history database; older runs are pruned at
// startup.
const historyRetention = 200

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting SPECT Recon v%s", version.String())

	fyneApp := fyneapp.New()
	fyneApp.Settings().SetTheme(&app.SpectTheme{})

	appState := app.NewState()
	appPrefs := prefs.Load()

	loadSiteCatalog()

	store, err := history.Open(history.DefaultDBPath())
	if err != nil {
		log.Printf("Run history disabled: %v", err)
		store = nil
	} else {
		defer store.Close()
		if n, err := store.Prune(historyRetention); err != nil {
			log.Printf("History prune failed: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d old reconstruction runs", n)
		}
	}

	engine := recon.NewPyTomoEngine(
		appPrefs.String(prefs.KeyPythonInterpreter),
		appPrefs.StringWithFallback(prefs.KeyBridgeScript, defaultBridgeScript()),
	)

	win := mainwindow.New(fyneApp, appState, store, engine, appPrefs)

	setupProjectionWatcher(appState, appPrefs)

	// A scene or projection file on the command line is opened at startup.
	if len(os.Args) > 1 {
		openArgument(appState, os.Args[1])
	}

	win.ShowAndRun()
}

// loadSiteCatalog merges collimator presets maintained by the site into the
// registry. Having no catalog is the normal case.
func loadSiteCatalog() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return
	}
	path := filepath.Join(configDir, "spect-recon", "collimators.yaml")
	cat, err := collimator.LoadCatalog(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Site collimator catalog not loaded: %v", err)
		}
		return
	}
	collimator.RegisterCatalog(cat)
	log.Printf("Loaded %d collimator presets from %s", len(cat.Collimators), path)
}

// defaultBridgeScript looks for the PyTomography bridge next to the
// executable, falling back to the bare script name so PATH-relative setups
// still work.
func defaultBridgeScript() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "pytomo_bridge.py")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "pytomo_bridge.py"
}

// openArgument loads a command line path as a scene or projection study.
func openArgument(state *app.State, path string) {
	if filepath.Ext(path) == ".spectscene" {
		if err := state.LoadScene(path); err != nil {
			log.Printf("Failed to load scene %s: %v", path, err)
		}
		return
	}
	if err := state.LoadProjection(path); err != nil {
		log.Printf("Failed to load projection %s: %v", path, err)
	}
}

// setupProjectionWatcher re-reads the projection study when its file changes
// on disk, picking up energy windows rewritten by the acquisition console.
func setupProjectionWatcher(state *app.State, p *prefs.Prefs) {
	if !p.Bool(prefs.KeyWatchProjection, true) {
		return
	}

	var watcher *app.FileWatcher
	var watchedPath string
	state.On(app.EventProjectionLoaded, func(data interface{}) {
		meta, ok := data.(*dicomio.ProjectionMeta)
		if !ok {
			return
		}
		if watcher != nil {
			if watchedPath == meta.Path {
				// A reload of the same study keeps the watcher, only the
				// baseline moves.
				watcher.ResetBaseline()
				return
			}
			watcher.Stop()
			watchedPath = ""
		}
		watcher = app.NewFileWatcher(meta.Path, watchInterval)
		if watcher == nil {
			log.Printf("Projection watcher: cannot watch %s", meta.Path)
			return
		}
		watchedPath = meta.Path
		watcher.OnChange(func() {
			log.Printf("Projection file changed on disk, reloading")
			if err := state.ReloadProjection(); err != nil {
				log.Printf("Projection reload failed: %v", err)
			}
		})
		watcher.Start()
	})
}
