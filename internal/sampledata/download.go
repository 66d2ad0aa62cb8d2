package sampledata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Progress reports download status. total is -1 when the server does not
// announce a content length.
type Progress func(done, total int64)

// Fetch downloads the dataset into dir (CacheDir when empty), verifies the
// checksum and returns the local path. An existing file with a matching
// checksum is reused without touching the network.
func (d Dataset) Fetch(ctx context.Context, dir string, progress Progress) (string, error) {
	if dir == "" {
		dir = CacheDir()
	}
	dest := filepath.Join(dir, d.FileName)

	if ok, err := verifyChecksum(dest, d.SHA256); err == nil && ok {
		if progress != nil {
			if fi, statErr := os.Stat(dest); statErr == nil {
				progress(fi.Size(), fi.Size())
			}
		}
		return dest, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", d.Name, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", d.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", d.Name, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, d.FileName+".part-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	counter := &countingWriter{total: resp.ContentLength, progress: progress}
	if _, err := io.Copy(io.MultiWriter(tmp, hasher, counter), resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download %s: %w", d.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", tmpName, err)
	}

	got := hex.EncodeToString(hasher.Sum(nil))
	if got != d.SHA256 {
		return "", fmt.Errorf("checksum mismatch for %s: got %s want %s", d.Name, got, d.SHA256)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("move download into place: %w", err)
	}
	return dest, nil
}

// verifyChecksum reports whether path exists and hashes to want.
func verifyChecksum(path, want string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(hasher.Sum(nil)) == want, nil
}

type countingWriter struct {
	done     int64
	total    int64
	progress Progress
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.done += int64(len(p))
	if c.progress != nil {
		c.progress(c.done, c.total)
	}
	return len(p), nil
}
