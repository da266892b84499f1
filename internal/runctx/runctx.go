// Package runctx holds the per-invocation state every command passes to its
// components: a run identifier, output directories, the loaded
// configuration, and the log file the run tees into.
package runctx

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
)

// TimestampLayout names per-run report files.
const TimestampLayout = "20060102_150405"

// RunContext is created once in main and passed by pointer.
type RunContext struct {
	ID          string
	Command     string
	StartedAt   time.Time
	LogDir      string
	ReportDir   string
	SnapshotDir string
	Config      *config.Config
	LogFile     *os.File
	Logger      zerolog.Logger
}

// New builds a RunContext for command from cfg and creates its output
// directories.
func New(command string, cfg *config.Config, now time.Time) (*RunContext, error) {
	rc := &RunContext{
		ID:          uuid.NewString(),
		Command:     command,
		StartedAt:   now,
		LogDir:      cfg.Output.LogDir,
		ReportDir:   cfg.Output.ReportDir,
		SnapshotDir: filepath.Join(cfg.Output.ReportDir, "snapshots"),
		Config:      cfg,
		Logger:      log.Logger,
	}
	for _, dir := range []string{rc.LogDir, rc.ReportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}
	rc.Logger = log.With().Str("runId", rc.ID).Logger()
	return rc, nil
}

// Timestamp formats the run start for file names.
func (rc *RunContext) Timestamp() string {
	return rc.StartedAt.Format(TimestampLayout)
}

// LogPath is the per-run log file: <log_dir>/<command>_<timestamp>.log.
func (rc *RunContext) LogPath() string {
	return filepath.Join(rc.LogDir, fmt.Sprintf("%s_%s.log", rc.Command, rc.Timestamp()))
}

// ReportPath joins name onto the report directory.
func (rc *RunContext) ReportPath(name string) string {
	return filepath.Join(rc.ReportDir, name)
}

// StampedReportPath returns <report_dir>/<base>_<timestamp><ext>.
func (rc *RunContext) StampedReportPath(base, ext string) string {
	return rc.ReportPath(fmt.Sprintf("%s_%s%s", base, rc.Timestamp(), ext))
}

// Close flushes and closes the log file, if any.
func (rc *RunContext) Close() error {
	if rc.LogFile == nil {
		return nil
	}
	err := rc.LogFile.Close()
	rc.LogFile = nil
	return err
}
