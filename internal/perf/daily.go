package perf

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/store"
)

// Record is one user's performance on a query date.
type Record struct {
	Date        string
	User        string
	TodayFrames int
	TodayShapes int
	TotalFrames int
	TotalShapes int
	// JobFrames is the frame count of every job currently assigned.
	JobFrames  int
	Jobs       int
	Completed  int
	InProgress int
	NotStarted int
	AvgSpeed   float64
	HasSpeed   bool
}

// Daily is the result of one performance computation.
type Daily struct {
	Date string
	// HasBaseline is false when no snapshot exists for the previous day. Every
	// job's full count is then attributed to today, which is not the same as
	// zero activity.
	HasBaseline  bool
	BaselineDate string
	Records      []Record
}

// TotalToday sums today's frames over all users.
func (d Daily) TotalToday() int {
	total := 0
	for _, r := range d.Records {
		total += r.TodayFrames
	}
	return total
}

// Compute attributes the increase of every job since baseline to the job's
// current assignee. Decreases contribute nothing. Jobs missing from the
// baseline count in full. A nil baseline means there is none.
func Compute(date string, records []JobRecord, baseline *store.Snapshot) Daily {
	d := Daily{Date: date, HasBaseline: baseline != nil}
	if prev, err := store.PreviousDate(date); err == nil {
		d.BaselineDate = prev
	}

	type acc struct {
		Record
		speeds []float64
	}
	users := make(map[string]*acc)

	for _, r := range records {
		if r.Assignee == "" {
			continue
		}
		u, ok := users[r.Assignee]
		if !ok {
			u = &acc{Record: Record{Date: date, User: r.Assignee}}
			users[r.Assignee] = u
		}

		u.TotalFrames += r.Counts.AnnotatedFrames
		u.TotalShapes += r.Counts.Shapes
		u.JobFrames += r.FrameCount()
		u.Jobs++
		switch r.State() {
		case Completed:
			u.Completed++
		case InProgress:
			u.InProgress++
		default:
			u.NotStarted++
		}

		frames, shapes := Delta(r, baseline)
		u.TodayFrames += frames
		u.TodayShapes += shapes

		if s, ok := Speed(r, MinSpeedHours); ok {
			u.speeds = append(u.speeds, s)
		}
	}

	for _, u := range users {
		u.AvgSpeed, u.HasSpeed = mean(u.speeds)
		d.Records = append(d.Records, u.Record)
	}
	sort.Slice(d.Records, func(i, j int) bool {
		a, b := d.Records[i], d.Records[j]
		if a.TodayFrames != b.TodayFrames {
			return a.TodayFrames > b.TodayFrames
		}
		return a.User < b.User
	})
	return d
}

// Delta is the positive change of one job's counts since baseline.
func Delta(r JobRecord, baseline *store.Snapshot) (frames, shapes int) {
	if baseline == nil {
		return r.Counts.AnnotatedFrames, r.Counts.Shapes
	}
	prev, ok := baseline.Jobs[r.Job.ID]
	if !ok {
		return r.Counts.AnnotatedFrames, r.Counts.Shapes
	}
	return positive(r.Counts.AnnotatedFrames - prev.AnnotatedFrameCount), positive(r.Counts.Shapes - prev.ShapeCount)
}

func positive(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Snapshot records the current counts of every job for date. A job whose
// counts could not be read keeps its baseline counts, so the next day does
// not credit its whole history; without a baseline entry it is left out.
func Snapshot(date string, records []JobRecord, baseline *store.Snapshot, now time.Time) *store.Snapshot {
	snap := store.NewSnapshot(date, now)
	for _, r := range records {
		if !r.Known {
			if baseline == nil {
				continue
			}
			if prev, ok := baseline.Jobs[r.Job.ID]; ok {
				snap.Jobs[r.Job.ID] = prev
			}
			continue
		}
		snap.Jobs[r.Job.ID] = store.JobCounts{
			AnnotatedFrameCount: r.Counts.AnnotatedFrames,
			ShapeCount:          r.Counts.Shapes,
		}
	}
	return snap
}

// BackfillCutoff is the end of date (YYYYMMDD) in UTC.
func BackfillCutoff(date string) (time.Time, error) {
	day, err := time.Parse(store.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return day.Add(23*time.Hour + 59*time.Minute + 59*time.Second), nil
}

// UpdatedBy reports whether the job's last update is at or before cutoff.
// Jobs with no parseable update time are treated as updated after it.
func UpdatedBy(updatedDate string, cutoff time.Time) bool {
	t, err := ParseTime(updatedDate)
	if err != nil {
		return false
	}
	return !t.After(cutoff)
}

// Backfill approximates a past snapshot: jobs updated by the cutoff keep
// their current counts, later jobs are recorded at zero. Included jobs whose
// counts could not be read are left out. Historical per-frame state is not
// retained anywhere, so the result is marked with a note.
func Backfill(date string, included []JobRecord, excludedJobIDs []int, now time.Time) (*store.Snapshot, error) {
	cutoff, err := BackfillCutoff(date)
	if err != nil {
		return nil, err
	}
	snap := Snapshot(date, included, nil, now)
	for _, id := range excludedJobIDs {
		snap.Jobs[id] = store.JobCounts{}
	}
	snap.Note = "backfilled snapshot, counts of jobs updated after " + cutoff.Format("2006-01-02T15:04:05") + " recorded as zero"
	return snap, nil
}

// CSVHeader names the columns of Record.CSV.
var CSVHeader = []string{
	"date", "user", "today_frames", "today_shapes", "total_frames", "total_shapes",
	"job_frames", "jobs", "completed_jobs", "in_progress_jobs", "not_started_jobs", "avg_speed",
}

// CSV renders the record as a row matching CSVHeader.
func (r Record) CSV() []string {
	speed := "N/A"
	if r.HasSpeed {
		speed = strconv.FormatFloat(r.AvgSpeed, 'f', 1, 64)
	}
	return []string{
		r.Date,
		r.User,
		strconv.Itoa(r.TodayFrames),
		strconv.Itoa(r.TodayShapes),
		strconv.Itoa(r.TotalFrames),
		strconv.Itoa(r.TotalShapes),
		strconv.Itoa(r.JobFrames),
		strconv.Itoa(r.Jobs),
		strconv.Itoa(r.Completed),
		strconv.Itoa(r.InProgress),
		strconv.Itoa(r.NotStarted),
		speed,
	}
}
