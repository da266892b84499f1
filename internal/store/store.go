// Package store persists the daily per-job annotation snapshots used as the
// baseline for incremental performance attribution.
//
// A snapshot is written once per calendar day and overwritten by same-day
// re-runs. Two backends are provided: JSON files on local disk (the default)
// and a DynamoDB table keyed by SNAPSHOT#<YYYYMMDD>/META. Concurrent runs
// against the same backend are not supported; the last writer wins.
package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// DateLayout is the calendar-date key of a snapshot.
const DateLayout = "20060102"

// JobCounts is the recorded progress of one job.
type JobCounts struct {
	AnnotatedFrameCount int `json:"annotated_frame_count" dynamodbav:"annotatedFrameCount"`
	ShapeCount          int `json:"shape_count" dynamodbav:"shapeCount"`
}

// UnmarshalJSON also accepts the annotated_frames/shapes keys written by
// older snapshot files.
func (c *JobCounts) UnmarshalJSON(data []byte) error {
	var raw struct {
		AnnotatedFrameCount *int `json:"annotated_frame_count"`
		ShapeCount          *int `json:"shape_count"`
		AnnotatedFrames     *int `json:"annotated_frames"`
		Shapes              *int `json:"shapes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = JobCounts{}
	switch {
	case raw.AnnotatedFrameCount != nil:
		c.AnnotatedFrameCount = *raw.AnnotatedFrameCount
	case raw.AnnotatedFrames != nil:
		c.AnnotatedFrameCount = *raw.AnnotatedFrames
	}
	switch {
	case raw.ShapeCount != nil:
		c.ShapeCount = *raw.ShapeCount
	case raw.Shapes != nil:
		c.ShapeCount = *raw.Shapes
	}
	return nil
}

// Snapshot is the immutable record of every job's counts on one date.
type Snapshot struct {
	Date        string            `json:"date"`
	GeneratedAt string            `json:"generated_at"`
	Note        string            `json:"note,omitempty"`
	Jobs        map[int]JobCounts `json:"jobs"`
}

// NewSnapshot creates an empty snapshot for date stamped with now.
func NewSnapshot(date string, now time.Time) *Snapshot {
	return &Snapshot{
		Date:        date,
		GeneratedAt: now.Format(time.RFC3339),
		Jobs:        make(map[int]JobCounts),
	}
}

// SnapshotStore loads and saves snapshots by date.
//
// Get returns (nil, nil) when no snapshot exists for the date.
// Put performs full replacement of the date's snapshot.
type SnapshotStore interface {
	Get(ctx context.Context, date string) (*Snapshot, error)
	Put(ctx context.Context, snap *Snapshot) error
}

// PreviousDate returns the calendar day before date (YYYYMMDD).
func PreviousDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -1).Format(DateLayout), nil
}

func jobKey(id int) string {
	return strconv.Itoa(id)
}
