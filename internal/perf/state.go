package perf

import "time"

// State is a job's progress derived from annotated frames rather than the
// platform's own job state, which annotators rarely update.
type State string

const (
	NotStarted State = "not_started"
	InProgress State = "in_progress"
	Completed  State = "completed"
)

// Classify maps annotated frames over a job's frame count to a State.
func Classify(annotated, frameCount int) State {
	switch {
	case annotated == 0:
		return NotStarted
	case annotated >= frameCount:
		return Completed
	default:
		return InProgress
	}
}

// MinSpeedHours is the elapsed time below which a job is left out of the
// daily speed average.
const MinSpeedHours = 0.1

// Speed returns annotated frames per hour between the job's assignment and
// its last update. ok is false when the job has no annotated frames, a
// timestamp does not parse, or the elapsed time is not above minHours.
func Speed(r JobRecord, minHours float64) (speed float64, ok bool) {
	if r.Counts.AnnotatedFrames <= 0 {
		return 0, false
	}
	assigned, err := ParseTime(r.Job.AssignedDate())
	if err != nil {
		return 0, false
	}
	updated, err := ParseTime(r.Job.UpdatedDate)
	if err != nil {
		return 0, false
	}
	hours := updated.Sub(assigned).Hours()
	if hours <= minHours {
		return 0, false
	}
	return float64(r.Counts.AnnotatedFrames) / hours, true
}

// ParseTime parses a platform timestamp such as 2026-01-21T20:01:23.268461Z.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
