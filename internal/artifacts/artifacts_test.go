package artifacts

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aircheck/internal/testsupport"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	return img
}

func TestSaveDiffWritesPNG(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := NewStore(cfg, nil)

	path, err := store.SaveDiff(7, 3, 1.5, testImage())
	if err != nil {
		t.Fatalf("SaveDiff: %v", err)
	}
	if !strings.HasPrefix(path, store.JobDir(7)) {
		t.Fatalf("artifact %q outside job dir %q", path, store.JobDir(7))
	}
	if !strings.HasSuffix(path, "unit_0003_1500ms.png") {
		t.Fatalf("unexpected artifact name: %q", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat artifact: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("artifact file is empty")
	}
}

func TestRemoveJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := NewStore(cfg, nil)

	if _, err := store.SaveDiff(9, 0, 0, testImage()); err != nil {
		t.Fatalf("SaveDiff: %v", err)
	}
	if err := store.RemoveJob(9); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if _, err := os.Stat(store.JobDir(9)); !os.IsNotExist(err) {
		t.Fatalf("job dir still present: %v", err)
	}
}

func TestSweepRemovesExpiredDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Artifacts.RetentionDays = 7
	store := NewStore(cfg, nil)

	if _, err := store.SaveDiff(1, 0, 0, testImage()); err != nil {
		t.Fatalf("SaveDiff: %v", err)
	}
	if _, err := store.SaveDiff(2, 0, 0, testImage()); err != nil {
		t.Fatalf("SaveDiff: %v", err)
	}

	old := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(store.JobDir(1), old, old); err != nil {
		t.Fatalf("age job dir: %v", err)
	}

	store.Sweep()

	if _, err := os.Stat(store.JobDir(1)); !os.IsNotExist(err) {
		t.Fatal("expired directory survived sweep")
	}
	if _, err := os.Stat(store.JobDir(2)); err != nil {
		t.Fatalf("fresh directory removed: %v", err)
	}
}

func TestSweepEvictsOldestOverSizeCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Artifacts.RetentionDays = 0
	cfg.Artifacts.MaxTotalMiB = 1
	store := NewStore(cfg, nil)

	// Two directories of ~600 KiB each exceed the 1 MiB cap.
	payload := make([]byte, 600*1024)
	for _, jobID := range []int64{1, 2} {
		dir := store.JobDir(jobID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "unit_0000_0ms.png"), payload, 0o644); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(store.JobDir(1), old, old); err != nil {
		t.Fatalf("age job dir: %v", err)
	}

	store.Sweep()

	if _, err := os.Stat(store.JobDir(1)); !os.IsNotExist(err) {
		t.Fatal("oldest directory not evicted")
	}
	if _, err := os.Stat(store.JobDir(2)); err != nil {
		t.Fatalf("newest directory evicted: %v", err)
	}
}

func TestSweepNoRootIsQuiet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.ArtifactDir = filepath.Join(t.TempDir(), "missing")
	store := NewStore(cfg, nil)
	store.Sweep()
}
