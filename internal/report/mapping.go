package report

import (
	"fmt"
	"path/filepath"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/jsonutil"
)

// JobMapping ties a job to the recorder chunk its frames came from.
type JobMapping struct {
	JobID      int    `json:"job_id"`
	SessionID  string `json:"session_id"`
	StartFrame int    `json:"start_frame"`
	StopFrame  int    `json:"stop_frame"`
	FrameCount int    `json:"frame_count"`
	ImageCount int    `json:"image_count,omitempty"`
}

// JobMappingPath is the mapping file of a task under dir.
func JobMappingPath(dir string, taskID int) string {
	return filepath.Join(dir, fmt.Sprintf("job_session_mapping_%d.json", taskID))
}

// WriteJobMapping writes a task's mapping file and returns its path.
func WriteJobMapping(dir string, taskID int, m []JobMapping) (string, error) {
	if m == nil {
		m = []JobMapping{}
	}
	path := JobMappingPath(dir, taskID)
	if err := jsonutil.WriteFile(path, m); err != nil {
		return "", err
	}
	return path, nil
}

// ReadJobMapping loads a task's mapping file.
func ReadJobMapping(dir string, taskID int) ([]JobMapping, error) {
	return jsonutil.ReadFile[[]JobMapping](JobMappingPath(dir, taskID))
}
