package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/jsonutil"
)

// FileSnapshotStore keeps one JSON file per date in a directory.
type FileSnapshotStore struct {
	dir string
}

// Compile-time interface check.
var _ SnapshotStore = (*FileSnapshotStore)(nil)

// NewFileSnapshotStore creates a store rooted at dir.
func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir}
}

// Path returns the file holding the snapshot for date.
func (s *FileSnapshotStore) Path(date string) string {
	return filepath.Join(s.dir, fmt.Sprintf("daily_%s.json", date))
}

func (s *FileSnapshotStore) Get(ctx context.Context, date string) (*Snapshot, error) {
	path := s.Path(date)
	snap, err := jsonutil.ReadFile[Snapshot](path)
	if err != nil {
		if jsonutil.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot %s: %w", date, err)
	}
	if snap.Jobs == nil {
		snap.Jobs = make(map[int]JobCounts)
	}
	return &snap, nil
}

func (s *FileSnapshotStore) Put(ctx context.Context, snap *Snapshot) error {
	path := s.Path(snap.Date)
	if err := jsonutil.WriteFile(path, snap); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Date, err)
	}
	log.Info().Str("path", path).Int("jobs", len(snap.Jobs)).Msg("Snapshot saved")
	return nil
}
