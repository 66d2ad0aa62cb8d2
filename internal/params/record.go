// Package params implements the reconstruction parameter record and its
// synchronization with user interface widgets.
package params

import "sync"

// Parameter keys stored in a Record. Values are strings regardless of the
// semantic type; Iterations and Subsets hold decimal integers.
const (
	KeyPath                 = "Path"
	KeyAttenuationDirectory = "AttenuationDirectory"
	KeyCollimator           = "Collimator"
	KeyScatter              = "Scatter"
	KeyPhotopeak            = "Photopeak"
	KeyUpperWindow          = "UpperWindow"
	KeyLowerWindow          = "LowerWindow"
	KeyAlgorithm            = "Algorithm"
	KeyIterations           = "Iterations"
	KeySubsets              = "Subsets"
)

// Placeholder labels shown before the user has made a selection.
const (
	DefaultCollimator  = "Choose Collimator"
	DefaultScatter     = "Select Scatter Window"
	DefaultUpperWindow = "Select Upper Window"
	DefaultLowerWindow = "Select Lower Window"
	DefaultAlgorithm   = "Select Algorithm"
)

// recordKeys lists every key in canonical order.
var recordKeys = []string{
	KeyPath,
	KeyAttenuationDirectory,
	KeyCollimator,
	KeyScatter,
	KeyPhotopeak,
	KeyUpperWindow,
	KeyLowerWindow,
	KeyAlgorithm,
	KeyIterations,
	KeySubsets,
}

// defaults maps each key to the value ApplyDefaults fills in when the key is
// absent or empty. Path, AttenuationDirectory and Photopeak have no
// placeholder and stay empty until the user picks something.
var defaults = map[string]string{
	KeyPath:                 "",
	KeyAttenuationDirectory: "",
	KeyCollimator:           DefaultCollimator,
	KeyScatter:              DefaultScatter,
	KeyPhotopeak:            "",
	KeyUpperWindow:          DefaultUpperWindow,
	KeyLowerWindow:          DefaultLowerWindow,
	KeyAlgorithm:            DefaultAlgorithm,
	KeyIterations:           "0",
	KeySubsets:              "0",
}

// Keys returns the parameter keys in canonical order.
func Keys() []string {
	out := make([]string, len(recordKeys))
	copy(out, recordKeys)
	return out
}

// Default returns the default value for key, or "" for unknown keys.
func Default(key string) string {
	return defaults[key]
}

// Record stores reconstruction parameters as a key-value map. Mutations
// notify registered listeners; BeginUpdate/EndUpdate collapse a run of
// mutations into a single notification.
type Record struct {
	mu        sync.RWMutex
	values    map[string]string
	listeners []func()
	batch     int
	dirty     bool
}

// NewRecord creates an empty parameter record. Call ApplyDefaults to
// populate it before first use.
func NewRecord() *Record {
	return &Record{
		values: make(map[string]string),
	}
}

// OnChange registers a listener invoked after every effective mutation, or
// once at the end of a batched update that mutated anything.
func (r *Record) OnChange(listener func()) {
	r.mu.Lock()
	r.listeners = append(r.listeners, listener)
	r.mu.Unlock()
}

// Get returns the value stored under key, or "" if the key is absent.
func (r *Record) Get(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[key]
}

// Has reports whether key is present in the record.
func (r *Record) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.values[key]
	return ok
}

// Set stores value under key. Listeners fire only when the stored value
// actually changes, and not before the enclosing batch ends.
func (r *Record) Set(key, value string) {
	r.mu.Lock()
	old, ok := r.values[key]
	if ok && old == value {
		r.mu.Unlock()
		return
	}
	r.values[key] = value
	notify := r.markDirtyLocked()
	r.mu.Unlock()

	if notify {
		r.notify()
	}
}

// BeginUpdate opens a batched update. Batches nest; only the outermost
// EndUpdate delivers the combined change notification.
func (r *Record) BeginUpdate() {
	r.mu.Lock()
	r.batch++
	r.mu.Unlock()
}

// EndUpdate closes a batched update, notifying listeners once if any
// mutation occurred since the matching BeginUpdate.
func (r *Record) EndUpdate() {
	r.mu.Lock()
	if r.batch > 0 {
		r.batch--
	}
	notify := r.batch == 0 && r.dirty
	if notify {
		r.dirty = false
	}
	r.mu.Unlock()

	if notify {
		r.notify()
	}
}

// ApplyDefaults fills in the default value for every key that is absent or
// empty. Calling it again once the record is populated changes nothing and
// fires no notification.
func (r *Record) ApplyDefaults() {
	r.BeginUpdate()
	for _, key := range recordKeys {
		if r.Get(key) == "" {
			r.Set(key, defaults[key])
		}
	}
	r.EndUpdate()
}

// Snapshot returns a copy of all stored key-value pairs.
func (r *Record) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Restore replaces the record contents with the given pairs, notifying
// listeners once. Used when reloading a saved scene.
func (r *Record) Restore(values map[string]string) {
	r.mu.Lock()
	r.values = make(map[string]string, len(values))
	for k, v := range values {
		r.values[k] = v
	}
	notify := r.markDirtyLocked()
	r.mu.Unlock()

	if notify {
		r.notify()
	}
}

// markDirtyLocked records a pending change and reports whether the caller
// should notify immediately. Callers must hold mu.
func (r *Record) markDirtyLocked() bool {
	if r.batch > 0 {
		r.dirty = true
		return false
	}
	return true
}

func (r *Record) notify() {
	r.mu.RLock()
	listeners := make([]func(), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, listener := range listeners {
		listener()
	}
}
