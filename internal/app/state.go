// Package app provides application lifecycle management, shared state, and events.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/qurit/slicer-spect-recon/internal/collimator"
	"github.com/qurit/slicer-spect-recon/internal/dicomio"
	"github.com/qurit/slicer-spect-recon/internal/history"
	"github.com/qurit/slicer-spect-recon/internal/params"
	"github.com/qurit/slicer-spect-recon/internal/recon"
	"github.com/qurit/slicer-spect-recon/internal/volume"
)

// State holds the application state: the parameter record, the loaded
// projection study with its energy windows, and the last reconstructed
// volume.
type State struct {
	mu sync.RWMutex

	// Scene
	ScenePath string
	Modified  bool

	// Reconstruction parameters
	Params *params.Record

	// Loaded projection study
	Projection *dicomio.ProjectionMeta
	Windows    []dicomio.EnergyWindow

	// Last reconstructed volume
	Volume    *volume.Volume
	VolumeDir string

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventSceneLoaded EventType = iota
	EventSceneSaved
	EventSceneClosed
	EventProjectionLoaded
	EventWindowsChanged
	EventVolumeLoaded
	EventReconStarted
	EventReconFinished
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates the application state with a defaulted parameter record.
// Any later mutation of the record marks the scene modified.
func NewState() *State {
	s := &State{
		Params:    params.NewRecord(),
		listeners: make(map[EventType][]EventListener),
	}
	s.Params.ApplyDefaults()
	s.Params.OnChange(func() { s.SetModified(true) })
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the scene as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// LoadProjection parses the projection study at path, stores its header
// summary and energy windows and records the path in the parameter record.
// On a parse error the previously loaded study stays in place.
func (s *State) LoadProjection(path string) error {
	meta, windows, err := dicomio.ReadStudy(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.Projection = meta
	s.Windows = windows
	s.mu.Unlock()

	s.Params.Set(params.KeyPath, path)
	s.Emit(EventProjectionLoaded, meta)
	s.Emit(EventWindowsChanged, windows)
	return nil
}

// ReloadProjection re-parses the currently loaded study, picking up energy
// windows that changed on disk. Without a loaded study it does nothing.
func (s *State) ReloadProjection() error {
	s.mu.RLock()
	path := ""
	if s.Projection != nil {
		path = s.Projection.Path
	}
	s.mu.RUnlock()

	if path == "" {
		return nil
	}
	return s.LoadProjection(path)
}

// CurrentWindows returns a copy of the energy windows of the loaded study.
func (s *State) CurrentWindows() []dicomio.EnergyWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dicomio.EnergyWindow, len(s.Windows))
	copy(out, s.Windows)
	return out
}

// WindowIndex resolves a window label to its position in the ordered window
// list, or -1 when nothing matches. Placeholder labels never match.
func (s *State) WindowIndex(label string) int {
	return windowIndex(s.CurrentWindows(), label)
}

func windowIndex(windows []dicomio.EnergyWindow, label string) int {
	for i, w := range windows {
		if w.Label() == label {
			return i
		}
	}
	return -1
}

// SceneFile is the JSON structure of a saved .spectscene file.
type SceneFile struct {
	Version    int               `json:"version"`
	Parameters map[string]string `json:"parameters"`
}

// LoadScene loads a saved scene from the specified path. The projection
// study recorded in the scene is reloaded when it still exists; a stale path
// is logged and tolerated so the parameters remain usable.
func (s *State) LoadScene(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var scene SceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		return fmt.Errorf("parse scene %s: %w", path, err)
	}

	s.Params.Restore(scene.Parameters)
	s.Params.ApplyDefaults()

	s.mu.Lock()
	s.ScenePath = path
	s.Projection = nil
	s.Windows = nil
	s.mu.Unlock()

	if p := s.Params.Get(params.KeyPath); p != "" {
		if err := s.LoadProjection(p); err != nil {
			log.Printf("app: projection from scene not reloaded: %v", err)
		}
	}

	s.mu.Lock()
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventSceneLoaded, path)
	return nil
}

// SaveScene writes the parameter record to the specified path.
func (s *State) SaveScene(path string) error {
	scene := SceneFile{
		Version:    1,
		Parameters: s.Params.Snapshot(),
	}

	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	s.mu.Lock()
	s.ScenePath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventSceneSaved, path)
	return nil
}

// CloseScene resets the parameter record to its defaults and forgets the
// loaded study and volume.
func (s *State) CloseScene() {
	s.Params.Restore(nil)
	s.Params.ApplyDefaults()

	s.mu.Lock()
	s.ScenePath = ""
	s.Projection = nil
	s.Windows = nil
	s.Volume = nil
	s.VolumeDir = ""
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventWindowsChanged, []dicomio.EnergyWindow(nil))
	s.Emit(EventSceneClosed, nil)
}

// SetVolume stores a reconstructed volume and the directory it came from.
func (s *State) SetVolume(dir string, v *volume.Volume) {
	s.mu.Lock()
	s.Volume = v
	s.VolumeDir = dir
	s.mu.Unlock()
	s.Emit(EventVolumeLoaded, v)
}

// BuildRequest assembles a reconstruction request from the parameter record
// and the loaded study. Output directory and series name come from the
// caller. The photopeak energy is the center of the selected window.
func (s *State) BuildRequest(outputDir, seriesName string) (recon.Request, error) {
	rec := s.Params
	req := recon.Request{
		ProjectionPath: rec.Get(params.KeyPath),
		AttenuationDir: rec.Get(params.KeyAttenuationDirectory),
		Collimator:     rec.Get(params.KeyCollimator),
		ScatterMethod:  rec.Get(params.KeyScatter),
		Algorithm:      rec.Get(params.KeyAlgorithm),
		OutputDir:      outputDir,
		SeriesName:     seriesName,
	}
	// Placeholder labels mean nothing was selected; validation turns the
	// empty values into specific messages.
	if req.Collimator == params.DefaultCollimator {
		req.Collimator = ""
	}
	if req.ScatterMethod == params.DefaultScatter {
		req.ScatterMethod = ""
	}
	if req.Algorithm == params.DefaultAlgorithm {
		req.Algorithm = ""
	}
	if v, err := strconv.Atoi(rec.Get(params.KeyIterations)); err == nil {
		req.Iterations = v
	}
	if v, err := strconv.Atoi(rec.Get(params.KeySubsets)); err == nil {
		req.Subsets = v
	}

	windows := s.CurrentWindows()
	req.PhotopeakIndex = windowIndex(windows, rec.Get(params.KeyPhotopeak))
	req.UpperWindowIndex = windowIndex(windows, rec.Get(params.KeyUpperWindow))
	req.LowerWindowIndex = windowIndex(windows, rec.Get(params.KeyLowerWindow))
	if req.PhotopeakIndex >= 0 {
		w := windows[req.PhotopeakIndex]
		req.EnergyKeV = (w.LowerKeV + w.UpperKeV) / 2
	}

	if err := req.Validate(); err != nil {
		return recon.Request{}, err
	}
	return req, nil
}

// Reconstruct runs the engine with the current parameters, records the run
// in the history store and loads the resulting volume. It blocks until the
// engine returns; UI callers run it off the event thread. A nil store skips
// history recording.
func (s *State) Reconstruct(ctx context.Context, engine recon.Engine, store *history.Store, outputDir, seriesName string) (string, error) {
	req, err := s.BuildRequest(outputDir, seriesName)
	if err != nil {
		return "", err
	}

	// The preset table is advisory; the engine works from the code alone,
	// so mismatches warn instead of failing.
	if p, ok := collimator.Get(req.Collimator); !ok {
		log.Printf("app: collimator %q is not a registered preset", req.Collimator)
	} else if !p.Suits(req.EnergyKeV) {
		log.Printf("app: collimator %s is rated for %g-%g keV, photopeak is %g keV",
			p.Code, p.MinEnergyKeV, p.MaxEnergyKeV, req.EnergyKeV)
	}

	s.Emit(EventReconStarted, req)
	started := time.Now()
	outDir, runErr := engine.Reconstruct(ctx, req)
	RecordRun(store, req, started, outDir, runErr)
	if runErr != nil {
		s.Emit(EventReconFinished, runErr)
		return "", runErr
	}

	vol, err := volume.LoadSeries(outDir)
	if err != nil {
		err = fmt.Errorf("reconstruction wrote %s but the volume did not load: %w", outDir, err)
		s.Emit(EventReconFinished, err)
		return outDir, err
	}
	s.SetVolume(outDir, vol)
	s.Emit(EventReconFinished, nil)
	return outDir, nil
}

// RecordRun converts a finished reconstruction into a history row. A nil
// store is tolerated so history stays optional.
func RecordRun(store *history.Store, req recon.Request, started time.Time, outDir string, runErr error) {
	if store == nil {
		return
	}
	run := history.Run{
		StartedAt:      started,
		DurationSec:    time.Since(started).Seconds(),
		ProjectionPath: req.ProjectionPath,
		Collimator:     req.Collimator,
		ScatterMethod:  req.ScatterMethod,
		Algorithm:      req.Algorithm,
		Iterations:     req.Iterations,
		Subsets:        req.Subsets,
		EnergyKeV:      req.EnergyKeV,
		OutputDir:      outDir,
		Status:         "ok",
	}
	if runErr != nil {
		run.Status = "failed"
		run.Message = runErr.Error()
	}
	if _, err := store.Add(run); err != nil {
		log.Printf("app: record run history: %v", err)
	}
}
