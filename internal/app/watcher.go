package app

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileWatcher polls a projection file for modification-time changes and
// triggers a callback when the acquisition station rewrites it. Energy
// windows live in the header, so a rewritten file usually means the window
// list needs re-extraction.
type FileWatcher struct {
	mu       sync.Mutex
	path     string
	baseline time.Time
	interval time.Duration
	stopCh   chan struct{}
	onChange func()
}

// NewFileWatcher creates a watcher for the file at path. Returns nil if the
// file cannot be stat'ed.
func NewFileWatcher(path string, interval time.Duration) *FileWatcher {
	if realPath, err := filepath.EvalSymlinks(path); err == nil {
		path = realPath
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	return &FileWatcher{
		path:     path,
		baseline: info.ModTime(),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// OnChange sets the callback to invoke when the file changes. The callback
// runs on a background goroutine.
func (w *FileWatcher) OnChange(callback func()) {
	w.onChange = callback
}

// Start begins watching in a background goroutine.
func (w *FileWatcher) Start() {
	w.mu.Lock()
	w.stopCh = make(chan struct{})
	w.mu.Unlock()
	go w.watchLoop()
}

// Stop stops the watcher goroutine.
func (w *FileWatcher) Stop() {
	close(w.stopCh)
}

// Path returns the watched file path.
func (w *FileWatcher) Path() string {
	return w.path
}

func (w *FileWatcher) watchLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.checkForUpdate() && w.onChange != nil {
				w.onChange()
			}
		}
	}
}

// checkForUpdate reports whether the file changed since the baseline and, if
// so, advances the baseline so the change fires once.
func (w *FileWatcher) checkForUpdate() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		// The acquisition may replace the file non-atomically; a missing
		// file is not a change yet.
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !info.ModTime().After(w.baseline) {
		return false
	}
	w.baseline = info.ModTime()
	return true
}

// ResetBaseline updates the baseline to the file's current mod time. Call
// this after the application itself rewrote the file.
func (w *FileWatcher) ResetBaseline() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.baseline = info.ModTime()
	w.mu.Unlock()
}
