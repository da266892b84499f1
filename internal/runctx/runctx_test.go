package runctx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
)

func TestNewCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{Output: config.OutputConfig{
		LogDir:    filepath.Join(root, "logs"),
		ReportDir: filepath.Join(root, "reports"),
	}}
	now := time.Date(2026, 1, 21, 20, 1, 23, 0, time.UTC)

	rc, err := New("check-status", cfg, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, dir := range []string{rc.LogDir, rc.ReportDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", dir)
		}
	}
	if rc.ID == "" {
		t.Error("expected run id")
	}
	if got := filepath.Base(rc.LogPath()); got != "check-status_20260121_200123.log" {
		t.Errorf("unexpected log path %s", got)
	}
	if got := filepath.Base(rc.StampedReportPath("new_images", ".txt")); got != "new_images_20260121_200123.txt" {
		t.Errorf("unexpected report path %s", got)
	}
	if rc.SnapshotDir != filepath.Join(root, "reports", "snapshots") {
		t.Errorf("unexpected snapshot dir %s", rc.SnapshotDir)
	}
	if err := rc.Close(); err != nil {
		t.Errorf("Close without log file: %v", err)
	}
}
