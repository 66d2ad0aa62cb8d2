package panels

import (
	"os"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/storage"
)

// listableDir turns a directory path into a ListableURI for file dialog
// starting locations. An empty or unreadable path yields nil, which leaves
// the dialog at its default location.
func listableDir(path string) fyne.ListableURI {
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

// defaultOutputDir is where reconstructions land when the user has not
// picked an output directory yet.
func defaultOutputDir() string {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "spect-recon-output"
	}
	return filepath.Join(cache, "spect-recon", "output")
}
