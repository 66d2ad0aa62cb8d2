package dialogs

import (
	"context"
	"fmt"

	"github.com/qurit/slicer-spect-recon/internal/sampledata"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// SampleDataDialog downloads published sample studies into the local cache.
type SampleDataDialog struct {
	window fyne.Window

	// onFetched runs with the local path once a download finished.
	onFetched func(path string)

	datasetSelect *widget.Select
	infoLabel     *widget.Label
	progress      *widget.ProgressBar
	downloadBtn   *widget.Button
	statusLabel   *widget.Label

	cancel context.CancelFunc
}

// NewSampleDataDialog creates the sample data dialog.
func NewSampleDataDialog(window fyne.Window, onFetched func(path string)) *SampleDataDialog {
	return &SampleDataDialog{
		window:    window,
		onFetched: onFetched,
	}
}

// Show displays the dialog. Closing it cancels a running download.
func (d *SampleDataDialog) Show() {
	names := make([]string, 0, len(sampledata.Datasets()))
	for _, ds := range sampledata.Datasets() {
		names = append(names, ds.Name)
	}

	d.infoLabel = widget.NewLabel("")
	d.infoLabel.Wrapping = fyne.TextWrapWord
	d.datasetSelect = widget.NewSelect(names, func(selected string) {
		if ds, ok := sampledata.Find(selected); ok {
			d.infoLabel.SetText(fmt.Sprintf("%s (%s)", ds.Description, ds.Format))
		}
	})
	if len(names) > 0 {
		d.datasetSelect.SetSelected(names[0])
	}

	d.progress = widget.NewProgressBar()
	d.statusLabel = widget.NewLabel("")
	d.statusLabel.Wrapping = fyne.TextWrapWord
	d.downloadBtn = widget.NewButton("Download", func() {
		d.onDownload()
	})

	content := container.NewVBox(
		widget.NewLabel("Dataset:"),
		d.datasetSelect,
		d.infoLabel,
		d.progress,
		d.downloadBtn,
		d.statusLabel,
	)

	dlg := dialog.NewCustom("Download Sample Data", "Close", content, d.window)
	dlg.SetOnClosed(func() {
		if d.cancel != nil {
			d.cancel()
		}
	})
	dlg.Resize(fyne.NewSize(420, 320))
	dlg.Show()
}

func (d *SampleDataDialog) onDownload() {
	ds, ok := sampledata.Find(d.datasetSelect.Selected)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.downloadBtn.Disable()
	d.statusLabel.SetText("Downloading " + ds.FileName + "...")
	d.progress.SetValue(0)

	// The download runs off the event thread; the progress callback fires
	// from it as bytes arrive.
	go func() {
		defer cancel()
		path, err := ds.Fetch(ctx, "", func(done, total int64) {
			if total > 0 {
				d.progress.SetValue(float64(done) / float64(total))
			}
		})
		d.downloadBtn.Enable()
		if err != nil {
			d.statusLabel.SetText("Download failed")
			dialog.ShowError(err, d.window)
			return
		}
		d.progress.SetValue(1)
		d.statusLabel.SetText("Saved to " + path)
		if d.onFetched != nil {
			d.onFetched(path)
		}
	}()
}
