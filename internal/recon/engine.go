// Package recon defines the reconstruction request and the engine boundary
// that runs it. The iterative math itself lives in an external library; this
// package only validates requests and talks to the engine.
package recon

import (
	"context"
	"errors"
	"fmt"
)

// Algorithm labels offered in the UI and accepted by engines.
const (
	AlgorithmOSEM  = "OSEM"
	AlgorithmBSREM = "BSREM"
)

// Scatter correction method labels.
const (
	ScatterNone = "None"
	ScatterDEW  = "Dual Energy Window"
	ScatterTEW  = "Triple Energy Window"
)

// Algorithms returns the selectable algorithm labels.
func Algorithms() []string {
	return []string{AlgorithmOSEM, AlgorithmBSREM}
}

// ScatterMethods returns the selectable scatter correction labels.
func ScatterMethods() []string {
	return []string{ScatterNone, ScatterDEW, ScatterTEW}
}

// ErrInvalidRequest wraps every validation failure.
var ErrInvalidRequest = errors.New("invalid reconstruction request")

// Request carries everything an engine needs for one reconstruction run.
// Window indices refer to positions in the energy-ordered window list of the
// projection study. The output directory is always supplied by the caller.
type Request struct {
	ProjectionPath string `json:"projection_path"`
	AttenuationDir string `json:"attenuation_dir,omitempty"`

	Collimator    string `json:"collimator"`
	ScatterMethod string `json:"scatter_method"`

	PhotopeakIndex   int `json:"photopeak_index"`
	UpperWindowIndex int `json:"upper_window_index"`
	LowerWindowIndex int `json:"lower_window_index"`

	// Photopeak energy used for PSF modeling, derived from the selected
	// energy window.
	EnergyKeV float64 `json:"energy_kev"`

	Algorithm  string `json:"algorithm"`
	Iterations int    `json:"iterations"`
	Subsets    int    `json:"subsets"`

	OutputDir  string `json:"output_dir"`
	SeriesName string `json:"series_name,omitempty"`
}

// Validate checks the request shape before it is handed to an engine.
func (r *Request) Validate() error {
	if r.ProjectionPath == "" {
		return fmt.Errorf("%w: no projection data selected", ErrInvalidRequest)
	}
	if r.Collimator == "" {
		return fmt.Errorf("%w: no collimator selected", ErrInvalidRequest)
	}
	if r.PhotopeakIndex < 0 {
		return fmt.Errorf("%w: no photopeak window selected", ErrInvalidRequest)
	}
	switch r.Algorithm {
	case AlgorithmOSEM, AlgorithmBSREM:
	case "":
		return fmt.Errorf("%w: no algorithm selected", ErrInvalidRequest)
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidRequest, r.Algorithm)
	}
	if r.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive", ErrInvalidRequest)
	}
	if r.Subsets <= 0 {
		return fmt.Errorf("%w: subsets must be positive", ErrInvalidRequest)
	}
	switch r.ScatterMethod {
	case "":
		return fmt.Errorf("%w: no scatter method selected", ErrInvalidRequest)
	case ScatterNone:
	case ScatterDEW:
		if r.LowerWindowIndex < 0 {
			return fmt.Errorf("%w: dual energy window scatter needs a lower window", ErrInvalidRequest)
		}
	case ScatterTEW:
		if r.LowerWindowIndex < 0 || r.UpperWindowIndex < 0 {
			return fmt.Errorf("%w: triple energy window scatter needs lower and upper windows", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown scatter method %q", ErrInvalidRequest, r.ScatterMethod)
	}
	if r.EnergyKeV <= 0 {
		return fmt.Errorf("%w: photopeak energy not resolved", ErrInvalidRequest)
	}
	if r.OutputDir == "" {
		return fmt.Errorf("%w: no output directory", ErrInvalidRequest)
	}
	return nil
}

// Engine runs a reconstruction and returns the directory holding the
// reconstructed volume. Implementations are long-running; callers wanting a
// responsive UI run Reconstruct off the event thread.
type Engine interface {
	Reconstruct(ctx context.Context, req Request) (string, error)
}
