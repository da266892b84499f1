package preannotate

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/pathkey"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/platform"
)

// Comparison statuses.
const (
	StatusAnnotated         = "annotated"
	StatusPendingWithPre    = "pending_with_pre"
	StatusPendingWithoutPre = "pending_without_pre"
)

// ComparisonFile is the JSON detail report of compare-annotations.
const ComparisonFile = "annotation_comparison.json"

// unassigned is the assignee column of jobs nobody holds.
const unassigned = "unassigned"

// Comparison is the human versus pre-annotation state of one job.
type Comparison struct {
	TaskID         int    `json:"task_id"`
	TaskName       string `json:"task_name"`
	JobID          int    `json:"job_id"`
	Assignee       string `json:"assignee"`
	TotalFrames    int    `json:"total_frames"`
	HumanAnnotated int    `json:"human_annotated"`
	PreFrames      int    `json:"pre_frames"`
	PreAnnotations int    `json:"pre_annotations"`
	ChunkID        string `json:"chunk_id"`
	Status         string `json:"status"`
}

// Compare classifies a job. chunk may be empty when the job's frames could
// not be resolved, in which case no pre-annotation is attributed.
func Compare(task cvat.Task, job cvat.Job, humanAnnotated int, chunk string, details Details) Comparison {
	c := Comparison{
		TaskID:         task.ID,
		TaskName:       task.Name,
		JobID:          job.ID,
		Assignee:       unassigned,
		TotalFrames:    job.FrameCount(),
		HumanAnnotated: humanAnnotated,
		ChunkID:        chunk,
	}
	if job.Assignee != nil {
		c.Assignee = job.Assignee.Username
	}
	if pre, ok := details[chunk]; ok && chunk != "" {
		c.PreFrames = pre.AnnotatedFrames
		c.PreAnnotations = pre.TotalAnnotations
	}

	switch {
	case c.HumanAnnotated > 0:
		c.Status = StatusAnnotated
	case c.PreFrames > 0:
		c.Status = StatusPendingWithPre
	default:
		c.Status = StatusPendingWithoutPre
	}
	return c
}

// CompareTasks compares every job of tasks against details. A task whose
// jobs cannot be listed is logged and skipped. Jobs whose annotations or
// frame metadata fail to load count as unannotated or unresolved.
func CompareTasks(ctx context.Context, f *platform.Fetcher, tasks []cvat.Task, details Details) ([]Comparison, error) {
	var out []Comparison
	for _, task := range tasks {
		jobs, err := f.Jobs(ctx, task.ID)
		if err != nil {
			log.Error().Err(err).Int("taskId", task.ID).Msg("Failed to list jobs, skipping task")
			continue
		}
		progress, err := f.Progress(ctx, jobs)
		if err != nil {
			return nil, err
		}
		metas, err := f.FrameMeta(ctx, jobs)
		if err != nil {
			return nil, err
		}

		for i, job := range jobs {
			human := progress[i].Value.Counts.AnnotatedFrames
			var chunk string
			if m := metas[i]; m.OK() && m.Value != nil {
				if first, ok := m.Value.FirstName(); ok {
					chunk, _ = pathkey.ParseSessionID(first)
				}
			}
			c := Compare(task, job, human, chunk, details)
			if c.Status == StatusPendingWithPre {
				log.Info().Int("jobId", job.ID).Int("preFrames", c.PreFrames).Msg("Pre-annotated job has no human annotation")
			}
			out = append(out, c)
		}
		log.Info().Int("taskId", task.ID).Str("name", task.Name).Int("jobs", len(jobs)).Msg("Task compared")
	}
	return out, nil
}

// ComparisonHeader is the column list of the comparison CSV.
var ComparisonHeader = []string{
	"task_id", "task_name", "job_id", "assignee", "total_frames",
	"human_annotated", "pre_frames", "pre_annotations", "chunk_id", "status",
}

// Row renders c in ComparisonHeader order.
func (c Comparison) Row() []string {
	return []string{
		strconv.Itoa(c.TaskID),
		c.TaskName,
		strconv.Itoa(c.JobID),
		c.Assignee,
		strconv.Itoa(c.TotalFrames),
		strconv.Itoa(c.HumanAnnotated),
		strconv.Itoa(c.PreFrames),
		strconv.Itoa(c.PreAnnotations),
		c.ChunkID,
		c.Status,
	}
}

// Tally counts comparisons by status.
func Tally(cs []Comparison) map[string]int {
	out := map[string]int{
		StatusAnnotated:         0,
		StatusPendingWithPre:    0,
		StatusPendingWithoutPre: 0,
	}
	for _, c := range cs {
		out[c.Status]++
	}
	return out
}
