// Package planner balances not-yet-started jobs across annotators.
//
// Planning is pure: Plan inspects the current workload and returns the
// assignments it would make. Apply performs them against the platform.
// Callers gather confirmation in between.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/perf"
)

var (
	// ErrNoUnstartedJobs is returned when there is nothing to move.
	ErrNoUnstartedJobs = errors.New("no unstarted jobs")
	// ErrNoUsers is returned when no annotator was selected.
	ErrNoUsers = errors.New("no users selected")
)

// User is an annotator eligible for new jobs.
type User struct {
	ID   int
	Name string
}

// Workload splits jobs into movable (no annotation activity) and fixed.
// Fixed jobs only count toward their assignee's existing load.
type Workload struct {
	Unstarted     []cvat.Job
	StartedJobs   map[int]int
	StartedFrames map[int]int
}

// NewWorkload classifies job records. Jobs whose counts could not be read
// are treated as started so they are never moved.
func NewWorkload(records []perf.JobRecord) Workload {
	w := Workload{
		StartedJobs:   make(map[int]int),
		StartedFrames: make(map[int]int),
	}
	for _, r := range records {
		if r.Known && r.Counts.AnnotatedFrames == 0 {
			w.Unstarted = append(w.Unstarted, r.Job)
			continue
		}
		if id := r.Job.AssigneeID(); id != 0 {
			w.StartedJobs[id]++
			w.StartedFrames[id] += r.FrameCount()
		}
	}
	return w
}

// Load is one user's position in a plan.
type Load struct {
	User          User
	StartedJobs   int
	StartedFrames int
	// Target is the job count the user ends with under job balancing.
	Target         int
	Need           int
	AssignedJobs   int
	AssignedFrames int
}

// TotalFrames is started plus newly assigned frames.
func (l *Load) TotalFrames() int {
	return l.StartedFrames + l.AssignedFrames
}

// Assignment moves one job to a user.
type Assignment struct {
	JobID        int
	TaskID       int
	Frames       int
	FromUserID   int
	FromUsername string
	To           User
}

// Unchanged reports whether the job already belongs to the target user.
func (a Assignment) Unchanged() bool {
	return a.FromUserID == a.To.ID
}

// Strategy distributes unstarted jobs over loads, updating the loads it
// assigns to.
type Strategy interface {
	Name() string
	Assign(loads []*Load, jobs []cvat.Job) []Assignment
}

// Policy names.
const (
	PolicyJobs   = "jobs"
	PolicyFrames = "frames"
)

// StrategyFor returns the strategy for a configured policy.
func StrategyFor(policy string) (Strategy, error) {
	switch policy {
	case "", PolicyJobs:
		return JobCountBalance{}, nil
	case PolicyFrames:
		return FrameCountBalance{}, nil
	}
	return nil, fmt.Errorf("unknown reassignment policy %q", policy)
}

// Plan is a proposed redistribution.
type Plan struct {
	Strategy    string
	Loads       []*Load
	Assignments []Assignment
	Unstarted   int
}

// NewPlan balances w's unstarted jobs over users with s. It fails with
// ErrNoUnstartedJobs or ErrNoUsers before doing any work.
func NewPlan(s Strategy, w Workload, users []User) (*Plan, error) {
	if len(w.Unstarted) == 0 {
		return nil, ErrNoUnstartedJobs
	}
	if len(users) == 0 {
		return nil, ErrNoUsers
	}

	loads := make([]*Load, len(users))
	for i, u := range users {
		loads[i] = &Load{
			User:          u,
			StartedJobs:   w.StartedJobs[u.ID],
			StartedFrames: w.StartedFrames[u.ID],
		}
	}
	return &Plan{
		Strategy:    s.Name(),
		Loads:       loads,
		Assignments: s.Assign(loads, w.Unstarted),
		Unstarted:   len(w.Unstarted),
	}, nil
}

// Summary logs the plan per user.
func (p *Plan) Summary() {
	log.Info().
		Str("strategy", p.Strategy).
		Int("unstarted", p.Unstarted).
		Int("assignments", len(p.Assignments)).
		Msg("Reassignment plan")
	for _, l := range p.Loads {
		log.Info().
			Str("user", l.User.Name).
			Int("startedJobs", l.StartedJobs).
			Int("startedFrames", l.StartedFrames).
			Int("newJobs", l.AssignedJobs).
			Int("newFrames", l.AssignedFrames).
			Msg("Planned load")
	}
}

// Assigner is the platform call Apply makes per assignment.
type Assigner interface {
	AssignJob(ctx context.Context, jobID, userID int) error
}

// Result counts applied assignments.
type Result struct {
	Success int
	Skipped int
	Failed  int
}

// Apply performs the plan. Failures are logged and counted; the remaining
// assignments still run.
func Apply(ctx context.Context, a Assigner, p *Plan) Result {
	var res Result
	for _, as := range p.Assignments {
		if as.Unchanged() {
			res.Skipped++
			continue
		}
		if err := a.AssignJob(ctx, as.JobID, as.To.ID); err != nil {
			log.Error().Err(err).Int("jobId", as.JobID).Str("user", as.To.Name).Msg("Job assignment failed")
			res.Failed++
			continue
		}
		log.Info().Int("jobId", as.JobID).Int("frames", as.Frames).Str("user", as.To.Name).Msg("Job assigned")
		res.Success++
	}
	return res
}

func assign(l *Load, job cvat.Job) Assignment {
	l.AssignedJobs++
	l.AssignedFrames += job.FrameCount()
	a := Assignment{
		JobID:  job.ID,
		TaskID: job.TaskID,
		Frames: job.FrameCount(),
		To:     l.User,
	}
	if job.Assignee != nil {
		a.FromUserID = job.Assignee.ID
		a.FromUsername = job.Assignee.Username
	}
	return a
}

// JobCountBalance evens out total job counts. Users already holding more
// started jobs take their targets first, so the rounding remainder goes to
// them and they absorb fewer unstarted jobs.
type JobCountBalance struct{}

var _ Strategy = JobCountBalance{}

func (JobCountBalance) Name() string { return PolicyJobs }

func (JobCountBalance) Assign(loads []*Load, jobs []cvat.Job) []Assignment {
	total := len(jobs)
	for _, l := range loads {
		total += l.StartedJobs
	}

	byStarted := make([]*Load, len(loads))
	copy(byStarted, loads)
	sort.SliceStable(byStarted, func(i, j int) bool {
		return byStarted[i].StartedJobs > byStarted[j].StartedJobs
	})

	remaining, people := total, len(byStarted)
	for _, l := range byStarted {
		target := remaining / people
		if remaining%people > 0 {
			target++
		}
		if l.StartedJobs > target {
			target = l.StartedJobs
		}
		l.Target = target
		l.Need = target - l.StartedJobs
		remaining -= target
		people--
	}

	byNeed := make([]*Load, len(loads))
	copy(byNeed, loads)
	sort.SliceStable(byNeed, func(i, j int) bool {
		return byNeed[i].Need > byNeed[j].Need
	})

	var out []Assignment
	next := 0
	for _, l := range byNeed {
		for n := 0; n < l.Need && next < len(jobs); n++ {
			out = append(out, assign(l, jobs[next]))
			next++
		}
	}
	return out
}

// FrameCountBalance hands the largest unstarted job to the user with the
// fewest frames so far (longest-processing-time-first). Ties go to the
// earlier user.
type FrameCountBalance struct{}

var _ Strategy = FrameCountBalance{}

func (FrameCountBalance) Name() string { return PolicyFrames }

func (FrameCountBalance) Assign(loads []*Load, jobs []cvat.Job) []Assignment {
	sorted := make([]cvat.Job, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FrameCount() > sorted[j].FrameCount()
	})

	out := make([]Assignment, 0, len(sorted))
	for _, job := range sorted {
		best := loads[0]
		for _, l := range loads[1:] {
			if l.TotalFrames() < best.TotalFrames() {
				best = l
			}
		}
		out = append(out, assign(best, job))
	}
	for _, l := range loads {
		l.Target = l.StartedJobs + l.AssignedJobs
		l.Need = l.AssignedJobs
	}
	return out
}
