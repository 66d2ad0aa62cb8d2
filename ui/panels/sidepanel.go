// Package panels provides UI panels for the application.
package panels

import (
	"github.com/qurit/slicer-spect-recon/internal/app"
	"github.com/qurit/slicer-spect-recon/internal/history"
	"github.com/qurit/slicer-spect-recon/internal/recon"
	"github.com/qurit/slicer-spect-recon/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
)

// SidePanel provides the main side panel with tabbed sections.
type SidePanel struct {
	state     *app.State
	container *container.AppTabs

	reconPanel   *ReconPanel
	historyPanel *HistoryPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(state *app.State, store *history.Store, engine recon.Engine, prf *prefs.Prefs) *SidePanel {
	sp := &SidePanel{
		state: state,
	}

	// Create individual panels
	sp.reconPanel = NewReconPanel(state, store, engine, prf)
	sp.historyPanel = NewHistoryPanel(state, store)

	// Create tabbed container
	sp.container = container.NewAppTabs(
		container.NewTabItem("Parameters", container.NewVScroll(sp.reconPanel.Container())),
		container.NewTabItem("History", sp.historyPanel.Container()),
	)

	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// Recon returns the reconstruction parameter panel.
func (sp *SidePanel) Recon() *ReconPanel {
	return sp.reconPanel
}

// History returns the run history panel.
func (sp *SidePanel) History() *HistoryPanel {
	return sp.historyPanel
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.reconPanel.SetWindow(w)
	sp.historyPanel.SetWindow(w)
}
