package recon

import (
	"errors"
	"testing"
)

// validRequest returns a request that passes validation; tests clobber one
// field at a time.
func validRequest() Request {
	return Request{
		ProjectionPath:   "/data/study.dcm",
		AttenuationDir:   "/data/ct",
		Collimator:       "SY-ME",
		ScatterMethod:    ScatterTEW,
		PhotopeakIndex:   1,
		UpperWindowIndex: 2,
		LowerWindowIndex: 0,
		EnergyKeV:        208,
		Algorithm:        AlgorithmOSEM,
		Iterations:       4,
		Subsets:          8,
		OutputDir:        "/data/out",
	}
}

// TestRequestValidate covers the validation rules one field at a time.
func TestRequestValidate(t *testing.T) {
	if err := func() error { r := validRequest(); return r.Validate() }(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"NoProjection", func(r *Request) { r.ProjectionPath = "" }},
		{"NoCollimator", func(r *Request) { r.Collimator = "" }},
		{"NoPhotopeak", func(r *Request) { r.PhotopeakIndex = -1 }},
		{"UnknownAlgorithm", func(r *Request) { r.Algorithm = "MLEM" }},
		{"ZeroIterations", func(r *Request) { r.Iterations = 0 }},
		{"ZeroSubsets", func(r *Request) { r.Subsets = 0 }},
		{"UnknownScatter", func(r *Request) { r.ScatterMethod = "Select Scatter Window" }},
		{"TEWNoUpper", func(r *Request) { r.UpperWindowIndex = -1 }},
		{"TEWNoLower", func(r *Request) { r.LowerWindowIndex = -1 }},
		{"NoEnergy", func(r *Request) { r.EnergyKeV = 0 }},
		{"NoOutputDir", func(r *Request) { r.OutputDir = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("got %v, want ErrInvalidRequest", err)
			}
		})
	}
}

// TestScatterMethodRules verifies the per-method window requirements.
func TestScatterMethodRules(t *testing.T) {
	req := validRequest()
	req.ScatterMethod = ScatterNone
	req.UpperWindowIndex = -1
	req.LowerWindowIndex = -1
	if err := req.Validate(); err != nil {
		t.Errorf("scatter None should not need windows: %v", err)
	}

	req = validRequest()
	req.ScatterMethod = ScatterDEW
	req.UpperWindowIndex = -1
	if err := req.Validate(); err != nil {
		t.Errorf("dual energy window should not need an upper window: %v", err)
	}

	req.LowerWindowIndex = -1
	if err := req.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("dual energy window without lower window accepted: %v", err)
	}
}
