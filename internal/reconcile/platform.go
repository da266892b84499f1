package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/pathkey"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/platform"
)

// Propagation decides which frames of a job count as annotated.
type Propagation string

const (
	// PropagateAny marks a job's whole frame range annotated as soon as it
	// carries any shape or track.
	PropagateAny Propagation = "any"
	// PropagateComplete marks the whole range only once every frame is
	// annotated; in-progress jobs contribute just their annotated frames.
	PropagateComplete Propagation = "complete"
)

// ParsePropagation validates a configured mode. Empty selects PropagateAny.
func ParsePropagation(s string) (Propagation, error) {
	switch Propagation(s) {
	case "", PropagateAny:
		return PropagateAny, nil
	case PropagateComplete:
		return PropagateComplete, nil
	}
	return "", fmt.Errorf("unknown propagation mode %q", s)
}

// JobState is what is known about one job's annotations. Frames holds
// absolute task frame indices and is only needed for PropagateComplete.
type JobState struct {
	Job            cvat.Job
	HasAnnotations bool
	Frames         map[int]struct{}
}

// TaskState is one task's frame names and jobs.
type TaskState struct {
	Task  cvat.Task
	Names []string
	Jobs  []JobState
}

// AnnotatedFrames returns the task frame indices of job counted as
// annotated under mode.
func AnnotatedFrames(js JobState, mode Propagation) []int {
	var whole bool
	switch mode {
	case PropagateComplete:
		whole = len(js.Frames) >= js.Job.FrameCount()
	default:
		whole = js.HasAnnotations
	}

	var frames []int
	if whole {
		for f := js.Job.StartFrame; f <= js.Job.StopFrame; f++ {
			frames = append(frames, f)
		}
		return frames
	}
	if mode != PropagateComplete {
		return nil
	}
	for f := range js.Frames {
		if f >= js.Job.StartFrame && f <= js.Job.StopFrame {
			frames = append(frames, f)
		}
	}
	return frames
}

// PlatformSets derives loaded and annotated basenames from task states.
// Frame indices beyond a task's name list and frames without a name are
// ignored.
func PlatformSets(tasks []TaskState, mode Propagation) (loaded, annotated Set) {
	loaded, annotated = make(Set), make(Set)
	for _, ts := range tasks {
		basenames := make([]string, len(ts.Names))
		for i, name := range ts.Names {
			if name == "" {
				continue
			}
			basenames[i] = pathkey.ParseBasename(name)
			loaded.Add(basenames[i])
		}
		for _, js := range ts.Jobs {
			for _, f := range AnnotatedFrames(js, mode) {
				if f >= 0 && f < len(basenames) && basenames[f] != "" {
					annotated.Add(basenames[f])
				}
			}
		}
	}
	return loaded, annotated
}

// Collect reads every task's frame names and job annotation state. Tasks
// whose frame list cannot be read are skipped when the error is
// recoverable; job listing errors abort.
func Collect(ctx context.Context, f *platform.Fetcher, tasks []cvat.Task, mode Propagation) ([]TaskState, error) {
	states := make([]TaskState, 0, len(tasks))
	for i, task := range tasks {
		log.Info().
			Int("index", i+1).
			Int("total", len(tasks)).
			Int("taskId", task.ID).
			Str("name", task.Name).
			Msg("Processing task")

		names, err := f.FrameNames(ctx, task.ID)
		if err != nil {
			if !cvat.Recoverable(err) {
				return nil, err
			}
			log.Warn().Err(err).Int("taskId", task.ID).Msg("Frame list unavailable, skipping task")
			continue
		}

		jobs, err := f.Jobs(ctx, task.ID)
		if err != nil {
			return nil, err
		}

		ts := TaskState{Task: task, Names: names, Jobs: make([]JobState, len(jobs))}
		if mode == PropagateComplete {
			results, err := f.Progress(ctx, jobs)
			if err != nil {
				return nil, err
			}
			for j, r := range results {
				ts.Jobs[j] = JobState{
					Job:            r.Job,
					HasAnnotations: r.Value.Counts.Shapes+r.Value.Counts.Tracks > 0,
					Frames:         r.Value.Frames,
				}
			}
		} else {
			results, err := f.HasAnnotations(ctx, jobs)
			if err != nil {
				return nil, err
			}
			for j, r := range results {
				ts.Jobs[j] = JobState{Job: r.Job, HasAnnotations: r.Value}
			}
		}

		annotatedJobs := 0
		for _, js := range ts.Jobs {
			if js.HasAnnotations {
				annotatedJobs++
			}
		}
		log.Info().
			Int("taskId", task.ID).
			Int("images", len(names)).
			Int("jobs", len(jobs)).
			Int("annotatedJobs", annotatedJobs).
			Msg("Task analysed")
		states = append(states, ts)
	}
	return states, nil
}
