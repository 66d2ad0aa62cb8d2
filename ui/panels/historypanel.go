package panels

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/qurit/slicer-spect-recon/internal/app"
	"github.com/qurit/slicer-spect-recon/internal/history"
	"github.com/qurit/slicer-spect-recon/internal/params"
	"github.com/qurit/slicer-spect-recon/internal/volume"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// maxHistoryRuns caps how many runs the panel lists.
const maxHistoryRuns = 50

// HistoryPanel lists recorded reconstruction runs and lets the user reapply
// their settings or reopen their output volumes. With no history store the
// panel degrades to a notice label.
type HistoryPanel struct {
	state  *app.State
	store  *history.Store
	window fyne.Window

	runs     []history.Run
	selected int

	list      *widget.List
	detail    *widget.Label
	applyBtn  *widget.Button
	openBtn   *widget.Button
	container fyne.CanvasObject
}

// NewHistoryPanel creates the run history panel.
func NewHistoryPanel(state *app.State, store *history.Store) *HistoryPanel {
	hp := &HistoryPanel{
		state:    state,
		store:    store,
		selected: -1,
	}

	if store == nil {
		hp.container = container.NewVBox(
			widget.NewLabel("Run history is unavailable"),
		)
		return hp
	}

	hp.list = widget.NewList(
		func() int { return len(hp.runs) },
		func() fyne.CanvasObject {
			return widget.NewLabel("0000-00-00 00:00  OSEM 0x0  ok")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(hp.runs) {
				obj.(*widget.Label).SetText(runSummary(hp.runs[id]))
			}
		},
	)
	hp.list.OnSelected = func(id widget.ListItemID) {
		hp.selected = id
		hp.showSelected()
	}
	hp.list.OnUnselected = func(widget.ListItemID) {
		hp.selected = -1
		hp.showSelected()
	}

	hp.detail = widget.NewLabel("")
	hp.detail.Wrapping = fyne.TextWrapWord

	refreshBtn := widget.NewButton("Refresh", func() {
		hp.Refresh()
	})
	hp.applyBtn = widget.NewButton("Apply Settings", func() {
		hp.onApplySettings()
	})
	hp.applyBtn.Disable()
	hp.openBtn = widget.NewButton("Open Output", func() {
		hp.onOpenOutput()
	})
	hp.openBtn.Disable()

	bottom := container.NewVBox(
		hp.detail,
		container.NewHBox(refreshBtn, hp.applyBtn, hp.openBtn),
	)
	hp.container = container.NewBorder(nil, bottom, nil, nil, hp.list)

	// A finished run lands in the store before the event fires, so a plain
	// reload picks it up.
	state.On(app.EventReconFinished, func(interface{}) {
		hp.Refresh()
	})

	hp.Refresh()
	return hp
}

// Container returns the panel container.
func (hp *HistoryPanel) Container() fyne.CanvasObject {
	return hp.container
}

// SetWindow sets the parent window for dialogs.
func (hp *HistoryPanel) SetWindow(w fyne.Window) {
	hp.window = w
}

// Refresh reloads the run list from the store.
func (hp *HistoryPanel) Refresh() {
	if hp.store == nil {
		return
	}
	runs, err := hp.store.Recent(maxHistoryRuns)
	if err != nil {
		log.Printf("panels: load run history: %v", err)
		hp.detail.SetText("History could not be loaded")
		return
	}
	hp.runs = runs
	hp.selected = -1
	hp.list.UnselectAll()
	hp.list.Refresh()
	hp.showSelected()
}

func (hp *HistoryPanel) selectedRun() *history.Run {
	if hp.selected < 0 || hp.selected >= len(hp.runs) {
		return nil
	}
	return &hp.runs[hp.selected]
}

func (hp *HistoryPanel) showSelected() {
	run := hp.selectedRun()
	if run == nil {
		hp.detail.SetText("")
		hp.applyBtn.Disable()
		hp.openBtn.Disable()
		return
	}
	hp.detail.SetText(runDetail(run))
	hp.applyBtn.Enable()
	if run.OutputDir != "" && run.Succeeded() {
		hp.openBtn.Enable()
	} else {
		hp.openBtn.Disable()
	}
}

// onApplySettings copies the reconstruction settings of the selected run
// back into the parameter record as one batched update. Window selections
// are not restored; they belong to whatever study is loaded now.
func (hp *HistoryPanel) onApplySettings() {
	run := hp.selectedRun()
	if run == nil {
		return
	}
	rec := hp.state.Params
	rec.BeginUpdate()
	rec.Set(params.KeyCollimator, run.Collimator)
	rec.Set(params.KeyScatter, run.ScatterMethod)
	rec.Set(params.KeyAlgorithm, run.Algorithm)
	rec.Set(params.KeyIterations, strconv.Itoa(run.Iterations))
	rec.Set(params.KeySubsets, strconv.Itoa(run.Subsets))
	rec.EndUpdate()
}

func (hp *HistoryPanel) onOpenOutput() {
	run := hp.selectedRun()
	if run == nil || run.OutputDir == "" {
		return
	}
	dir := run.OutputDir
	go func() {
		vol, err := volume.LoadSeries(dir)
		if err != nil {
			hp.showError(fmt.Errorf("open run output: %w", err))
			return
		}
		hp.state.SetVolume(dir, vol)
	}()
}

func (hp *HistoryPanel) showError(err error) {
	log.Printf("panels: %v", err)
	if hp.window != nil {
		dialog.ShowError(err, hp.window)
	}
}

// runSummary is the one-line list entry for a run.
func runSummary(r history.Run) string {
	return fmt.Sprintf("%s  %s %dx%d  %s",
		r.StartedAt.Format("2006-01-02 15:04"), r.Algorithm, r.Iterations, r.Subsets, r.Status)
}

// runDetail is the expanded description shown below the list.
func runDetail(r *history.Run) string {
	lines := []string{
		"Projection: " + r.ProjectionPath,
		fmt.Sprintf("Collimator: %s   Scatter: %s", r.Collimator, r.ScatterMethod),
		fmt.Sprintf("%s, %d iterations, %d subsets, %g keV photopeak",
			r.Algorithm, r.Iterations, r.Subsets, r.EnergyKeV),
		fmt.Sprintf("Took %.1fs, output %s", r.DurationSec, r.OutputDir),
	}
	if r.Message != "" {
		lines = append(lines, "Error: "+r.Message)
	}
	return strings.Join(lines, "\n")
}
