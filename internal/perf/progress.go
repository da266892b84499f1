package perf

import (
	"sort"
	"time"
)

// AssigneeProgress is one user's share of a task or of all tasks.
type AssigneeProgress struct {
	Name            string   `json:"name"`
	TotalJobs       int      `json:"total_jobs"`
	Completed       int      `json:"completed"`
	InProgress      int      `json:"in_progress"`
	NotStarted      int      `json:"not_started"`
	TotalFrames     int      `json:"total_frames"`
	AnnotatedFrames int      `json:"annotated_frames"`
	TotalShapes     int      `json:"total_shapes"`
	AvgSpeed        *float64 `json:"avg_speed,omitempty"`

	speeds []float64
}

// CompletionRate is annotated over assigned frames, zero when nothing is
// assigned.
func (a *AssigneeProgress) CompletionRate() float64 {
	if a.TotalFrames == 0 {
		return 0
	}
	return float64(a.AnnotatedFrames) / float64(a.TotalFrames)
}

func (a *AssigneeProgress) add(r JobRecord) {
	a.TotalJobs++
	switch r.State() {
	case Completed:
		a.Completed++
	case InProgress:
		a.InProgress++
	default:
		a.NotStarted++
	}
	a.TotalFrames += r.FrameCount()
	a.AnnotatedFrames += r.Counts.AnnotatedFrames
	a.TotalShapes += r.Counts.Shapes
}

// TaskProgress summarises one task.
type TaskProgress struct {
	TaskID          int                          `json:"task_id"`
	TaskName        string                       `json:"task_name"`
	TaskStatus      string                       `json:"task_status"`
	CreatedDate     string                       `json:"created_date"`
	TotalJobs       int                          `json:"total_jobs"`
	JobStats        map[State]int                `json:"job_stats"`
	Assignees       map[string]*AssigneeProgress `json:"assignee_stats"`
	TotalFrames     int                          `json:"total_frames"`
	CompletedFrames int                          `json:"completed_frames"`
}

// ProgressSummary counts tasks and users in a ProgressReport.
type ProgressSummary struct {
	TotalTasks int `json:"total_tasks"`
	TotalUsers int `json:"total_users"`
}

// ProgressReport is the document written by the progress command. Users
// are ordered by completion rate, highest first.
type ProgressReport struct {
	GeneratedAt string              `json:"generated_at"`
	Summary     ProgressSummary     `json:"summary"`
	Tasks       []*TaskProgress     `json:"tasks"`
	Users       []*AssigneeProgress `json:"users"`
}

// BuildProgress aggregates job records per task and per assignee. Speed
// uses every job with positive elapsed time.
func BuildProgress(records []JobRecord, now time.Time) ProgressReport {
	var tasks []*TaskProgress
	byTask := make(map[int]*TaskProgress)
	users := make(map[string]*AssigneeProgress)

	for _, r := range records {
		tp, ok := byTask[r.Task.ID]
		if !ok {
			created := r.Task.CreatedDate
			if len(created) > 10 {
				created = created[:10]
			}
			tp = &TaskProgress{
				TaskID:      r.Task.ID,
				TaskName:    r.Task.Name,
				TaskStatus:  r.Task.Status,
				CreatedDate: created,
				JobStats:    make(map[State]int),
				Assignees:   make(map[string]*AssigneeProgress),
			}
			byTask[r.Task.ID] = tp
			tasks = append(tasks, tp)
		}

		tp.TotalJobs++
		tp.JobStats[r.State()]++
		tp.TotalFrames += r.FrameCount()
		tp.CompletedFrames += r.Counts.AnnotatedFrames

		if r.Assignee == "" {
			continue
		}
		ta, ok := tp.Assignees[r.Assignee]
		if !ok {
			ta = &AssigneeProgress{Name: r.Assignee}
			tp.Assignees[r.Assignee] = ta
		}
		ta.add(r)

		u, ok := users[r.Assignee]
		if !ok {
			u = &AssigneeProgress{Name: r.Assignee}
			users[r.Assignee] = u
		}
		u.add(r)
		if s, ok := Speed(r, 0); ok {
			u.speeds = append(u.speeds, s)
		}
	}

	out := make([]*AssigneeProgress, 0, len(users))
	for _, u := range users {
		if avg, ok := mean(u.speeds); ok {
			u.AvgSpeed = &avg
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].CompletionRate(), out[j].CompletionRate()
		if ri != rj {
			return ri > rj
		}
		return out[i].Name < out[j].Name
	})

	return ProgressReport{
		GeneratedAt: now.Format(time.RFC3339),
		Summary:     ProgressSummary{TotalTasks: len(tasks), TotalUsers: len(out)},
		Tasks:       tasks,
		Users:       out,
	}
}
