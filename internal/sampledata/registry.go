// Package sampledata provides the published sample studies users can
// download to try the application without patient data.
package sampledata

import (
	"os"
	"path/filepath"
)

// Dataset describes one downloadable sample study.
type Dataset struct {
	Name        string
	Description string
	// Format of the payload, shown in the UI so users know whether the
	// file loads directly as projection data.
	Format   string
	URL      string
	FileName string
	// SHA256 is the hex digest the download must match.
	SHA256 string
}

// datasets is the published registry. The Slicer testing-data releases are
// addressed by their own content hash, so URL and checksum share the digest.
var datasets = []Dataset{
	{
		Name:        "pytomography1",
		Description: "Lu-177 SPECT projection study (anterior/posterior, triple energy window)",
		Format:      "NRRD",
		URL:         "https://github.com/Slicer/SlicerTestingData/releases/download/SHA256/998cb522173839c78657f4bc0ea907cea09fd04e44601f17c82ea27927937b95",
		FileName:    "pytomography1.nrrd",
		SHA256:      "998cb522173839c78657f4bc0ea907cea09fd04e44601f17c82ea27927937b95",
	},
	{
		Name:        "pytomography2",
		Description: "Matching CT attenuation series for pytomography1",
		Format:      "NRRD",
		URL:         "https://github.com/Slicer/SlicerTestingData/releases/download/SHA256/1a64f3f422eb3d1c9b093d1a18da354b13bcf307907c66317e2463ee530b7a97",
		FileName:    "pytomography2.nrrd",
		SHA256:      "1a64f3f422eb3d1c9b093d1a18da354b13bcf307907c66317e2463ee530b7a97",
	},
}

// Datasets returns the registered sample studies in display order.
func Datasets() []Dataset {
	out := make([]Dataset, len(datasets))
	copy(out, datasets)
	return out
}

// Find returns the dataset with the given name.
func Find(name string) (Dataset, bool) {
	for _, d := range datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// CacheDir returns the directory downloads are stored in.
func CacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = filepath.Join(os.Getenv("HOME"), ".cache")
	}
	return filepath.Join(cacheDir, "spect-recon", "sampledata")
}

// LocalPath returns where the dataset lives once downloaded.
func (d Dataset) LocalPath() string {
	return filepath.Join(CacheDir(), d.FileName)
}
