package preannotate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/coco"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/pathkey"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/s3util"
)

// API is the platform surface used to push pre-annotations.
type API interface {
	ListJobs(ctx context.Context, taskID int) ([]cvat.Job, error)
	TaskLabels(ctx context.Context, taskID int) ([]cvat.Label, error)
	JobAnnotationCounts(ctx context.Context, jobID int) (cvat.AnnotationCounts, error)
	JobFrameMeta(ctx context.Context, jobID int) (*cvat.FrameMeta, error)
	CreateJobShapes(ctx context.Context, jobID int, shapes []cvat.Shape) error
}

var _ API = (*cvat.Client)(nil)

// errSkip marks a job that is left alone without counting as a failure.
var errSkip = errors.New("skipped")

// Record is what was pushed into one job.
type Record struct {
	TaskID      int    `json:"task_id"`
	ShapesCount int    `json:"shapes_count"`
	FramesCount int    `json:"frames_count"`
	ImportedAt  string `json:"imported_at"`
	BBoxJSON    string `json:"bbox_json"`
}

// Records maps job id to its import record. It is the layout of
// preannotation_records.json and accumulates across runs.
type Records map[int]Record

// Summary counts job outcomes of one run.
type Summary struct {
	Success int
	Skipped int
	Failed  int
}

// Importer pushes exports stored in the bucket into a task's jobs.
type Importer struct {
	api      API
	s3       s3util.Client
	bucket   string
	labelMap map[string]string
	rec      *metrics.Recorder
	now      func() time.Time
}

// NewImporter creates an Importer. labelMap renames export categories to
// task labels.
func NewImporter(api API, client s3util.Client, bucket string, labelMap map[string]string, rec *metrics.Recorder) *Importer {
	return &Importer{
		api:      api,
		s3:       client,
		bucket:   bucket,
		labelMap: labelMap,
		rec:      rec,
		now:      time.Now,
	}
}

// ImportTask pushes pre-annotations into every job of taskID, or only into
// onlyJob when it is non-zero. Successful jobs are added to records. Listing
// the task's jobs or labels failing aborts the run; per-job failures are
// logged and counted.
func (im *Importer) ImportTask(ctx context.Context, taskID, onlyJob int, records Records) (Summary, error) {
	var sum Summary

	labels, err := im.api.TaskLabels(ctx, taskID)
	if err != nil {
		return sum, fmt.Errorf("labels for task %d: %w", taskID, err)
	}
	labelIDs := make(map[string]int, len(labels))
	for _, l := range labels {
		labelIDs[l.Name] = l.ID
	}

	jobs, err := im.api.ListJobs(ctx, taskID)
	if err != nil {
		return sum, fmt.Errorf("list jobs for task %d: %w", taskID, err)
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].StartFrame < jobs[j].StartFrame })
	if onlyJob != 0 {
		var filtered []cvat.Job
		for _, j := range jobs {
			if j.ID == onlyJob {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
		if len(jobs) == 0 {
			return sum, fmt.Errorf("job %d not found in task %d", onlyJob, taskID)
		}
	}
	log.Info().Int("taskId", taskID).Int("jobs", len(jobs)).Int("labels", len(labels)).Msg("Importing pre-annotations")

	for i, job := range jobs {
		r, err := im.importJob(ctx, taskID, job, labelIDs)
		switch {
		case errors.Is(err, errSkip):
			sum.Skipped++
			im.count(metrics.Skipped)
		case err != nil:
			log.Error().Err(err).Int("jobId", job.ID).Msg("Pre-annotation import failed")
			sum.Failed++
			im.count(metrics.Failed)
		default:
			records[job.ID] = r
			sum.Success++
			im.count(metrics.Success)
			log.Info().
				Int("jobId", job.ID).
				Int("shapes", r.ShapesCount).
				Int("frames", r.FramesCount).
				Str("progress", fmt.Sprintf("%d/%d", i+1, len(jobs))).
				Msg("Pre-annotations imported")
		}
	}
	return sum, nil
}

func (im *Importer) importJob(ctx context.Context, taskID int, job cvat.Job, labelIDs map[string]int) (Record, error) {
	counts, err := im.api.JobAnnotationCounts(ctx, job.ID)
	if err != nil {
		log.Warn().Err(err).Int("jobId", job.ID).Msg("Annotation count unknown, skipping job")
		return Record{}, errSkip
	}
	if counts.AnnotatedFrames > 0 {
		log.Debug().Int("jobId", job.ID).Int("annotatedFrames", counts.AnnotatedFrames).Msg("Job already annotated, skipping")
		return Record{}, errSkip
	}

	meta, err := im.api.JobFrameMeta(ctx, job.ID)
	if err != nil {
		return Record{}, err
	}
	first, ok := meta.FirstName()
	if !ok {
		return Record{}, fmt.Errorf("job %d has no frames", job.ID)
	}

	prefix, ok := pathkey.LabelsPrefix(first)
	if !ok {
		return Record{}, fmt.Errorf("no labels directory in frame path %q", first)
	}
	key, ok, err := s3util.FindFirstSuffix(ctx, im.s3, im.bucket, prefix, BBoxSuffix)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("no export under %s", prefix)
	}

	ds, err := s3util.GetJSON[coco.Dataset](ctx, im.s3, im.bucket, key)
	if err != nil {
		return Record{}, err
	}
	frames := ds.FrameMapping(meta.Names(), job.StartFrame)
	if len(frames) == 0 {
		return Record{}, fmt.Errorf("no frame of job %d matches %s", job.ID, key)
	}

	shapes, missing := ds.FrameShapes(frames, im.labelMap, labelIDs)
	if len(missing) > 0 {
		log.Warn().Int("jobId", job.ID).Strs("labels", missing).Msg("Export labels missing from task")
	}
	if len(shapes) == 0 {
		log.Info().Int("jobId", job.ID).Str("export", key).Msg("Export has no usable boxes, skipping")
		return Record{}, errSkip
	}

	if err := im.api.CreateJobShapes(ctx, job.ID, shapes); err != nil {
		return Record{}, err
	}
	return Record{
		TaskID:      taskID,
		ShapesCount: len(shapes),
		FramesCount: len(frames),
		ImportedAt:  im.now().Format(time.RFC3339),
		BBoxJSON:    key,
	}, nil
}

func (im *Importer) count(name string) {
	if im.rec != nil {
		im.rec.Count(name)
	}
}
