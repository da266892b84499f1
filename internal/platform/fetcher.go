// Package platform reads task, job and annotation state from the annotation
// platform for the reporting commands.
//
// Listing calls (tasks, jobs) propagate their errors: nothing useful can be
// reported for a task whose job list is unknown. Per-job reads fan out over a
// bounded worker pool and fall back to zero values when the error is
// recoverable under cvat.Recoverable.
package platform

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
)

// DefaultWorkers bounds concurrent per-job requests within one task.
const DefaultWorkers = 10

// progressEvery controls how often fan-out progress is logged.
const progressEvery = 10

// API is the subset of the platform client the fetcher reads through.
type API interface {
	ListTasks(ctx context.Context) ([]cvat.Task, error)
	GetTask(ctx context.Context, taskID int) (*cvat.Task, error)
	ListJobs(ctx context.Context, taskID int) ([]cvat.Job, error)
	TaskFrameMeta(ctx context.Context, taskID int) (*cvat.FrameMeta, error)
	JobAnnotations(ctx context.Context, jobID int) (*cvat.Annotations, error)
	JobHasAnnotations(ctx context.Context, jobID int) (bool, error)
	JobFrameMeta(ctx context.Context, jobID int) (*cvat.FrameMeta, error)
}

var _ API = (*cvat.Client)(nil)

// Fetcher wraps API with exclusion handling and per-job fan-out.
type Fetcher struct {
	api      API
	workers  int
	excluded map[int]bool
	rec      *metrics.Recorder
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithWorkers sets the fan-out limit. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithExcluded sets task IDs dropped from task listings.
func WithExcluded(ids []int) Option {
	return func(f *Fetcher) {
		for _, id := range ids {
			f.excluded[id] = true
		}
	}
}

// WithRecorder counts recovered per-job failures on rec.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(f *Fetcher) {
		f.rec = rec
	}
}

// NewFetcher creates a Fetcher reading through api.
func NewFetcher(api API, opts ...Option) *Fetcher {
	f := &Fetcher{
		api:      api,
		workers:  DefaultWorkers,
		excluded: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Tasks returns the tasks to report on. With explicit IDs each task is
// fetched individually and failures are logged and skipped; otherwise every
// task is listed and the exclusion set applied.
func (f *Fetcher) Tasks(ctx context.Context, ids []int) ([]cvat.Task, error) {
	if len(ids) > 0 {
		tasks := make([]cvat.Task, 0, len(ids))
		for _, id := range ids {
			task, err := f.api.GetTask(ctx, id)
			if err != nil {
				log.Warn().Err(err).Int("taskId", id).Msg("Failed to fetch task, skipping")
				f.count(metrics.Failed)
				continue
			}
			tasks = append(tasks, *task)
		}
		return tasks, nil
	}

	all, err := f.api.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]cvat.Task, 0, len(all))
	for _, t := range all {
		if f.excluded[t.ID] {
			log.Debug().Int("taskId", t.ID).Str("name", t.Name).Msg("Excluded task skipped")
			continue
		}
		tasks = append(tasks, t)
	}
	log.Info().Int("tasks", len(tasks)).Int("excluded", len(all)-len(tasks)).Msg("Tasks listed")
	return tasks, nil
}

// Jobs lists a task's jobs. Errors propagate.
func (f *Fetcher) Jobs(ctx context.Context, taskID int) ([]cvat.Job, error) {
	jobs, err := f.api.ListJobs(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for task %d: %w", taskID, err)
	}
	return jobs, nil
}

// FrameNames returns the ordered frame names of a task. Errors propagate.
func (f *Fetcher) FrameNames(ctx context.Context, taskID int) ([]string, error) {
	meta, err := f.api.TaskFrameMeta(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("frame meta for task %d: %w", taskID, err)
	}
	return meta.Names(), nil
}

// Result is the outcome of one per-job read. Err is set when the read failed
// and Value holds the zero value.
type Result[T any] struct {
	Job   cvat.Job
	Value T
	Err   error
}

// OK reports whether the read succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// JobProgress is the annotation state of one job.
type JobProgress struct {
	Counts cvat.AnnotationCounts
	Frames map[int]struct{}
}

// Progress fetches full annotation payloads for jobs and derives counts and
// the set of annotated frame indices.
func (f *Fetcher) Progress(ctx context.Context, jobs []cvat.Job) ([]Result[JobProgress], error) {
	return fanOut(ctx, f, jobs, "annotations", func(ctx context.Context, job cvat.Job) (JobProgress, error) {
		ann, err := f.api.JobAnnotations(ctx, job.ID)
		if err != nil {
			return JobProgress{}, err
		}
		return JobProgress{Counts: ann.Counts(), Frames: ann.AnnotatedFrames()}, nil
	})
}

// HasAnnotations checks annotation presence for jobs with one-item pages.
func (f *Fetcher) HasAnnotations(ctx context.Context, jobs []cvat.Job) ([]Result[bool], error) {
	return fanOut(ctx, f, jobs, "presence", func(ctx context.Context, job cvat.Job) (bool, error) {
		return f.api.JobHasAnnotations(ctx, job.ID)
	})
}

// FrameMeta fetches per-job frame metadata.
func (f *Fetcher) FrameMeta(ctx context.Context, jobs []cvat.Job) ([]Result[*cvat.FrameMeta], error) {
	return fanOut(ctx, f, jobs, "frame meta", func(ctx context.Context, job cvat.Job) (*cvat.FrameMeta, error) {
		return f.api.JobFrameMeta(ctx, job.ID)
	})
}

// fanOut runs fn for every job with at most f.workers in flight. Results are
// stored by position so aggregation is independent of completion order.
// Recoverable failures stay in their Result; the first unrecoverable one is
// returned once all workers finish.
func fanOut[T any](ctx context.Context, f *Fetcher, jobs []cvat.Job, what string, fn func(context.Context, cvat.Job) (T, error)) ([]Result[T], error) {
	results := make([]Result[T], len(jobs))
	var (
		wg    sync.WaitGroup
		done  atomic.Int64
		fatal error
		once  sync.Once
	)
	sem := make(chan struct{}, f.workers)

	for i, job := range jobs {
		wg.Add(1)
		go func(idx int, j cvat.Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			v, err := fn(ctx, j)
			results[idx] = Result[T]{Job: j, Value: v, Err: err}
			if err != nil {
				if cvat.Recoverable(err) {
					log.Warn().Err(err).Int("jobId", j.ID).Str("read", what).Msg("Job read failed, using empty result")
					f.count(metrics.Failed)
				} else {
					once.Do(func() { fatal = err })
				}
			}

			n := done.Add(1)
			if n%progressEvery == 0 {
				log.Debug().Int64("done", n).Int("total", len(jobs)).Str("read", what).Msg("Job reads progress")
			}
		}(i, job)
	}
	wg.Wait()

	if fatal != nil {
		return nil, fmt.Errorf("%s: %w", what, fatal)
	}
	return results, nil
}

func (f *Fetcher) count(name string) {
	if f.rec != nil {
		f.rec.Count(name)
	}
}
