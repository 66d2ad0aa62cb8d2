// Command reconcli runs a SPECT reconstruction from the command line, using
// the same request validation, engine bridge and run history as the GUI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/qurit/slicer-spect-recon/internal/collimator"
	"github.com/qurit/slicer-spect-recon/internal/dicomio"
	"github.com/qurit/slicer-spect-recon/internal/history"
	"github.com/qurit/slicer-spect-recon/internal/recon"
)

func main() {
	projection := flag.String("projection", "", "Path to the DICOM projection study")
	attenuation := flag.String("attenuation", "", "Directory of CT attenuation maps")
	listWindows := flag.Bool("list-windows", false, "Print the energy windows of the study and exit")
	dumpMeta := flag.Bool("dump-meta", false, "Print the study header summary and exit")
	listCollimators := flag.Bool("list-collimators", false, "Print the registered collimator presets and exit")

	collim := flag.String("collimator", "", "Collimator preset code (see -list-collimators)")
	scatter := flag.String("scatter", recon.ScatterNone, "Scatter correction: None, \"Dual Energy Window\" or \"Triple Energy Window\"")
	photopeak := flag.String("photopeak", "", "Photopeak window, by index or label")
	upper := flag.String("upper", "", "Upper scatter window, by index or label")
	lower := flag.String("lower", "", "Lower scatter window, by index or label")

	algorithm := flag.String("algorithm", recon.AlgorithmOSEM, "Reconstruction algorithm: OSEM or BSREM")
	iterations := flag.Int("iterations", 4, "Number of iterations")
	subsets := flag.Int("subsets", 8, "Number of subsets")

	output := flag.String("output", "", "Directory the reconstructed series is written to")
	series := flag.String("series", "", "Series name (derived from the algorithm when empty)")

	python := flag.String("python", "", "Python interpreter for the bridge (default python3)")
	bridge := flag.String("bridge", "pytomo_bridge.py", "Path to the PyTomography bridge script")
	timeout := flag.Duration("timeout", 0, "Abort the reconstruction after this duration (0 means no limit)")
	noHistory := flag.Bool("no-history", false, "Do not record the run in the history database")
	flag.Parse()

	if *listCollimators {
		printCollimators()
		return
	}

	if *projection == "" {
		fmt.Println("Usage: reconcli -projection <study.dcm> [options]")
		fmt.Println("       reconcli -projection <study.dcm> -list-windows")
		fmt.Println("       reconcli -list-collimators")
		os.Exit(1)
	}

	meta, windows, err := dicomio.ReadStudy(*projection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read study: %v\n", err)
		os.Exit(1)
	}

	if *dumpMeta {
		printMeta(meta)
		if !*listWindows {
			return
		}
	}
	if *listWindows {
		printWindows(windows)
		return
	}

	resolve := func(role, value string) int {
		idx := resolveWindow(windows, value)
		if value != "" && idx < 0 {
			fmt.Fprintf(os.Stderr, "Unknown %s window %q (use -list-windows)\n", role, value)
			os.Exit(1)
		}
		return idx
	}

	req := recon.Request{
		ProjectionPath:   *projection,
		AttenuationDir:   *attenuation,
		Collimator:       *collim,
		ScatterMethod:    *scatter,
		PhotopeakIndex:   resolve("photopeak", *photopeak),
		UpperWindowIndex: resolve("upper", *upper),
		LowerWindowIndex: resolve("lower", *lower),
		Algorithm:        *algorithm,
		Iterations:       *iterations,
		Subsets:          *subsets,
		OutputDir:        *output,
		SeriesName:       *series,
	}
	if req.SeriesName == "" {
		req.SeriesName = strings.ToLower(req.Algorithm) + "_" + time.Now().Format("20060102_150405")
	}
	if req.PhotopeakIndex >= 0 {
		w := windows[req.PhotopeakIndex]
		req.EnergyKeV = (w.LowerKeV + w.UpperKeV) / 2
	}

	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if p, ok := collimator.Get(req.Collimator); !ok {
		fmt.Fprintf(os.Stderr, "Warning: collimator %q is not a registered preset\n", req.Collimator)
	} else if !p.Suits(req.EnergyKeV) {
		fmt.Fprintf(os.Stderr, "Warning: collimator %s is rated for %g-%g keV, photopeak is %g keV\n",
			p.Code, p.MinEnergyKeV, p.MaxEnergyKeV, req.EnergyKeV)
	}

	fmt.Printf("Projection: %s (%s)\n", *projection, meta.Describe())
	fmt.Printf("Photopeak:  %s, %.1f keV\n", windows[req.PhotopeakIndex].Label(), req.EnergyKeV)
	fmt.Printf("Algorithm:  %s, %d iterations x %d subsets\n", req.Algorithm, req.Iterations, req.Subsets)
	fmt.Printf("Scatter:    %s\n", req.ScatterMethod)

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	engine := recon.NewPyTomoEngine(*python, *bridge)

	fmt.Printf("\nReconstructing...\n")
	started := time.Now()
	outDir, runErr := engine.Reconstruct(ctx, req)

	if !*noHistory {
		recordRun(req, started, outDir, runErr)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Reconstruction failed: %v\n", runErr)
		os.Exit(1)
	}
	fmt.Printf("Done in %s, output in %s\n", time.Since(started).Round(time.Second), outDir)
}

// resolveWindow accepts either a zero-based index or a window label and
// returns the window index, or -1 when the value is empty or unknown.
func resolveWindow(windows []dicomio.EnergyWindow, value string) int {
	if value == "" {
		return -1
	}
	if idx, err := strconv.Atoi(value); err == nil {
		if idx >= 0 && idx < len(windows) {
			return idx
		}
		return -1
	}
	for i, w := range windows {
		if w.Label() == value || w.Name == value {
			return i
		}
	}
	return -1
}

func printMeta(meta *dicomio.ProjectionMeta) {
	fmt.Printf("Modality:     %s\n", meta.Modality)
	fmt.Printf("Patient:      %s\n", meta.PatientName)
	fmt.Printf("Study date:   %s\n", meta.StudyDate)
	fmt.Printf("Manufacturer: %s\n", meta.Manufacturer)
	fmt.Printf("Series:       %s\n", meta.SeriesDescription)
	fmt.Printf("Frames:       %d of %dx%d\n", meta.Frames, meta.Columns, meta.Rows)
	fmt.Printf("Spacing (mm): %.3f x %.3f, slices %.3f\n",
		meta.ColumnSpacing, meta.RowSpacing, meta.SliceSpacing)
	if meta.NumberOfDetectors > 0 {
		fmt.Printf("Detectors:    %d\n", meta.NumberOfDetectors)
	}
	if meta.ScanArcDegrees > 0 {
		fmt.Printf("Rotation:     %.0f degree arc, %.1f degree steps %s\n",
			meta.ScanArcDegrees, meta.AngularStepDegrees, meta.RotationDirection)
	}
}

func printWindows(windows []dicomio.EnergyWindow) {
	if len(windows) == 0 {
		fmt.Println("The study declares no energy windows")
		return
	}
	fmt.Printf("%-5s %-30s %10s %10s\n", "Index", "Name", "Lower keV", "Upper keV")
	for i, w := range windows {
		fmt.Printf("%-5d %-30s %10.1f %10.1f\n", i, w.Name, w.LowerKeV, w.UpperKeV)
	}
}

func printCollimators() {
	fmt.Printf("%-10s %-10s %10s %10s %10s\n", "Code", "Vendor", "Hole mm", "Septa mm", "Length mm")
	for _, code := range collimator.ListCodes() {
		p, _ := collimator.Get(code)
		fmt.Printf("%-10s %-10s %10.2f %10.2f %10.2f\n",
			p.Code, p.Vendor, p.HoleDiameterMM, p.SeptalThicknessMM, p.HoleLengthMM)
	}
}

// recordRun mirrors what the GUI stores after a run. History problems only
// warn; they never fail the reconstruction.
func recordRun(req recon.Request, started time.Time, outDir string, runErr error) {
	store, err := history.Open(history.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run history disabled: %v\n", err)
		return
	}
	defer store.Close()

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
		fmt.Fprintf(os.Stderr, "Warning: run not recorded: %v\n", err)
	}
}
