// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qurit/slicer-spect-recon/internal/collimator"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// newPresetEntry is the select entry that starts an empty preset.
const newPresetEntry = "New Preset..."

// CollimatorDialog provides a property sheet for editing collimator presets.
// Saving registers the edited preset; site catalogs can be imported from and
// exported to YAML files.
type CollimatorDialog struct {
	window  fyne.Window
	onSaved func()

	presetSelect *widget.Select

	codeEntry   *widget.Entry
	vendorEntry *widget.Entry
	descEntry   *widget.Entry

	minEnergyEntry *widget.Entry
	maxEnergyEntry *widget.Entry

	holeDiameterEntry *widget.Entry
	septalEntry       *widget.Entry
	holeLengthEntry   *widget.Entry
}

// NewCollimatorDialog creates a new collimator preset dialog. onSaved runs
// after the registry changed, so callers can refresh their preset lists.
func NewCollimatorDialog(window fyne.Window, onSaved func()) *CollimatorDialog {
	return &CollimatorDialog{
		window:  window,
		onSaved: onSaved,
	}
}

// Show displays the dialog.
func (d *CollimatorDialog) Show() {
	content := d.createContent()

	dlg := dialog.NewCustomConfirm(
		"Collimator Presets",
		"Save",
		"Cancel",
		content,
		func(save bool) {
			if save {
				d.applyChanges()
			}
		},
		d.window,
	)
	dlg.Resize(fyne.NewSize(460, 560))
	dlg.Show()
}

func (d *CollimatorDialog) createContent() fyne.CanvasObject {
	d.codeEntry = widget.NewEntry()
	d.vendorEntry = widget.NewEntry()
	d.descEntry = widget.NewEntry()
	d.minEnergyEntry = widget.NewEntry()
	d.maxEnergyEntry = widget.NewEntry()
	d.holeDiameterEntry = widget.NewEntry()
	d.septalEntry = widget.NewEntry()
	d.holeLengthEntry = widget.NewEntry()

	d.presetSelect = widget.NewSelect(presetEntries(), func(selected string) {
		if selected == newPresetEntry {
			d.loadPreset(collimator.Preset{})
			return
		}
		if p, ok := collimator.Get(selected); ok {
			d.loadPreset(p)
		}
	})
	d.presetSelect.SetSelected(newPresetEntry)

	identityForm := widget.NewForm(
		widget.NewFormItem("Code", d.codeEntry),
		widget.NewFormItem("Vendor", d.vendorEntry),
		widget.NewFormItem("Description", d.descEntry),
	)

	energyForm := widget.NewForm(
		widget.NewFormItem("Min energy (keV)", d.minEnergyEntry),
		widget.NewFormItem("Max energy (keV)", d.maxEnergyEntry),
	)

	geometryForm := widget.NewForm(
		widget.NewFormItem("Hole diameter (mm)", d.holeDiameterEntry),
		widget.NewFormItem("Septal thickness (mm)", d.septalEntry),
		widget.NewFormItem("Hole length (mm)", d.holeLengthEntry),
	)

	importBtn := widget.NewButton("Import Catalog...", func() {
		d.onImportCatalog()
	})
	exportBtn := widget.NewButton("Export Catalog...", func() {
		d.onExportCatalog()
	})

	return container.NewVBox(
		widget.NewCard("Preset", "", d.presetSelect),
		widget.NewCard("Identity", "", identityForm),
		widget.NewCard("Energy Range", "", energyForm),
		widget.NewCard("Hole Geometry", "", geometryForm),
		widget.NewCard("Site Catalog", "", container.NewHBox(importBtn, exportBtn)),
	)
}

// loadPreset fills the entries from a preset. A zero preset clears them.
func (d *CollimatorDialog) loadPreset(p collimator.Preset) {
	d.codeEntry.SetText(p.Code)
	d.vendorEntry.SetText(p.Vendor)
	d.descEntry.SetText(p.Description)
	d.minEnergyEntry.SetText(formatNum(p.MinEnergyKeV))
	d.maxEnergyEntry.SetText(formatNum(p.MaxEnergyKeV))
	d.holeDiameterEntry.SetText(formatNum(p.HoleDiameterMM))
	d.septalEntry.SetText(formatNum(p.SeptalThicknessMM))
	d.holeLengthEntry.SetText(formatNum(p.HoleLengthMM))
}

func formatNum(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// applyChanges registers the edited preset. Invalid presets are reported and
// leave the registry untouched.
func (d *CollimatorDialog) applyChanges() {
	p := collimator.Preset{
		Code:        strings.TrimSpace(d.codeEntry.Text),
		Vendor:      strings.TrimSpace(d.vendorEntry.Text),
		Description: strings.TrimSpace(d.descEntry.Text),
	}
	if v, err := strconv.ParseFloat(d.minEnergyEntry.Text, 64); err == nil {
		p.MinEnergyKeV = v
	}
	if v, err := strconv.ParseFloat(d.maxEnergyEntry.Text, 64); err == nil {
		p.MaxEnergyKeV = v
	}
	if v, err := strconv.ParseFloat(d.holeDiameterEntry.Text, 64); err == nil {
		p.HoleDiameterMM = v
	}
	if v, err := strconv.ParseFloat(d.septalEntry.Text, 64); err == nil {
		p.SeptalThicknessMM = v
	}
	if v, err := strconv.ParseFloat(d.holeLengthEntry.Text, 64); err == nil {
		p.HoleLengthMM = v
	}

	if err := p.Validate(); err != nil {
		dialog.ShowError(err, d.window)
		return
	}

	collimator.Register(p)
	if d.onSaved != nil {
		d.onSaved()
	}
}

func (d *CollimatorDialog) onImportCatalog() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()

		cat, err := collimator.LoadCatalog(path)
		if err != nil {
			dialog.ShowError(err, d.window)
			return
		}
		collimator.RegisterCatalog(cat)
		d.presetSelect.Options = presetEntries()
		d.presetSelect.Refresh()
		if d.onSaved != nil {
			d.onSaved()
		}
		dialog.ShowInformation("Catalog Imported",
			fmt.Sprintf("Registered %d presets from %s", len(cat.Collimators), path),
			d.window)
	}, d.window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".yaml", ".yml"}))
	fd.Show()
}

func (d *CollimatorDialog) onExportCatalog() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()

		cat := &collimator.Catalog{}
		for _, code := range collimator.ListCodes() {
			if p, ok := collimator.Get(code); ok {
				cat.Collimators = append(cat.Collimators, p)
			}
		}
		if err := cat.Save(path); err != nil {
			dialog.ShowError(err, d.window)
		}
	}, d.window)
	fd.SetFileName("collimators.yaml")
	fd.Show()
}

// presetEntries lists the select entries: every registered code followed by
// the new-preset entry.
func presetEntries() []string {
	return append(collimator.ListCodes(), newPresetEntry)
}
