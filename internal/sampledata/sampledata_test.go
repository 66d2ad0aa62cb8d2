package sampledata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testDataset(t *testing.T, payload []byte, requests *int) (Dataset, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			*requests++
		}
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	sum := sha256.Sum256(payload)
	return Dataset{
		Name:     "test",
		Format:   "NRRD",
		URL:      srv.URL,
		FileName: "test.nrrd",
		SHA256:   hex.EncodeToString(sum[:]),
	}, srv.URL
}

func TestRegistry(t *testing.T) {
	all := Datasets()
	if len(all) != 2 {
		t.Fatalf("Datasets() returned %d entries, want 2", len(all))
	}
	for _, d := range all {
		if !strings.HasSuffix(d.URL, d.SHA256) {
			t.Errorf("%s: URL %q does not end in checksum %q", d.Name, d.URL, d.SHA256)
		}
		if d.FileName == "" {
			t.Errorf("%s: empty file name", d.Name)
		}
	}
	if _, ok := Find("pytomography1"); !ok {
		t.Error("Find(pytomography1) failed")
	}
	if _, ok := Find("nope"); ok {
		t.Error("Find(nope) unexpectedly succeeded")
	}
}

func TestFetch(t *testing.T) {
	payload := []byte("projection bytes for the fetch test")

	t.Run("download and verify", func(t *testing.T) {
		ds, _ := testDataset(t, payload, nil)
		dir := t.TempDir()

		var lastDone, lastTotal int64
		path, err := ds.Fetch(context.Background(), dir, func(done, total int64) {
			lastDone, lastTotal = done, total
		})
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if path != filepath.Join(dir, "test.nrrd") {
			t.Errorf("unexpected path %q", path)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read download: %v", err)
		}
		if string(got) != string(payload) {
			t.Error("downloaded bytes differ from payload")
		}
		if lastDone != int64(len(payload)) {
			t.Errorf("progress reported %d bytes, want %d", lastDone, len(payload))
		}
		if lastTotal != int64(len(payload)) {
			t.Errorf("progress total %d, want %d", lastTotal, len(payload))
		}
	})

	t.Run("cached file skips network", func(t *testing.T) {
		var requests int
		ds, _ := testDataset(t, payload, &requests)
		dir := t.TempDir()

		if _, err := ds.Fetch(context.Background(), dir, nil); err != nil {
			t.Fatalf("first Fetch: %v", err)
		}
		if _, err := ds.Fetch(context.Background(), dir, nil); err != nil {
			t.Fatalf("second Fetch: %v", err)
		}
		if requests != 1 {
			t.Errorf("server saw %d requests, want 1", requests)
		}
	})

	t.Run("corrupt cache is replaced", func(t *testing.T) {
		var requests int
		ds, _ := testDataset(t, payload, &requests)
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ds.FileName), []byte("junk"), 0o644); err != nil {
			t.Fatal(err)
		}

		path, err := ds.Fetch(context.Background(), dir, nil)
		if err != nil {
			t.Fatalf("Fetch over corrupt cache: %v", err)
		}
		if requests != 1 {
			t.Errorf("server saw %d requests, want 1", requests)
		}
		got, _ := os.ReadFile(path)
		if string(got) != string(payload) {
			t.Error("corrupt cache was not replaced")
		}
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		ds, _ := testDataset(t, payload, nil)
		ds.SHA256 = strings.Repeat("0", 64)

		_, err := ds.Fetch(context.Background(), t.TempDir(), nil)
		if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
			t.Fatalf("expected checksum mismatch, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ds, _ := testDataset(t, payload, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := ds.Fetch(ctx, t.TempDir(), nil); err == nil {
			t.Fatal("expected error from cancelled context")
		}
	})
}
