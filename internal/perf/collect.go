// Package perf derives annotator progress and daily performance from job
// annotation counts and the previous day's snapshot.
package perf

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/platform"
)

// JobRecord is one job with its current annotation counts. Known is false
// when the counts could not be read and are zero by default.
type JobRecord struct {
	Task     cvat.Task
	Job      cvat.Job
	Assignee string
	Counts   cvat.AnnotationCounts
	Known    bool
}

// FrameCount is the job's assigned frame count.
func (r JobRecord) FrameCount() int {
	return r.Job.FrameCount()
}

// State classifies the job from its annotated frames.
func (r JobRecord) State() State {
	return Classify(r.Counts.AnnotatedFrames, r.FrameCount())
}

// ResolveName names a job's assignee: the organization username when
// known, else the username embedded in the job, else User_<id>. Empty for
// unassigned jobs.
func ResolveName(job cvat.Job, users map[int]string) string {
	if job.Assignee == nil {
		return ""
	}
	if name, ok := users[job.Assignee.ID]; ok && name != "" {
		return name
	}
	if job.Assignee.Username != "" {
		return job.Assignee.Username
	}
	return fmt.Sprintf("User_%d", job.Assignee.ID)
}

// Collect lists every task's jobs and fetches their annotation counts.
// Task processing is sequential; per-job reads fan out inside the fetcher.
func Collect(ctx context.Context, f *platform.Fetcher, tasks []cvat.Task, users map[int]string) ([]JobRecord, error) {
	var records []JobRecord
	for _, task := range tasks {
		jobs, err := f.Jobs(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		if len(jobs) == 0 {
			log.Info().Int("taskId", task.ID).Str("name", task.Name).Msg("Task has no jobs")
			continue
		}

		start := time.Now()
		results, err := f.Progress(ctx, jobs)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			records = append(records, JobRecord{
				Task:     task,
				Job:      r.Job,
				Assignee: ResolveName(r.Job, users),
				Counts:   r.Value.Counts,
				Known:    r.OK(),
			})
		}
		log.Info().
			Int("taskId", task.ID).
			Str("name", task.Name).
			Int("jobs", len(jobs)).
			Dur("duration", time.Since(start)).
			Msg("Task jobs collected")
	}
	return records, nil
}

// UserNames maps organization member ids to usernames.
func UserNames(ms []cvat.Membership) map[int]string {
	names := make(map[int]string, len(ms))
	for _, m := range ms {
		names[m.User.ID] = m.User.Username
	}
	return names
}
