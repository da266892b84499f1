package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/store"
)

func record(jobID int, user string, frames, shapes int) JobRecord {
	return JobRecord{
		Job:      cvat.Job{ID: jobID, StartFrame: 0, StopFrame: 99, Assignee: &cvat.User{ID: jobID, Username: user}},
		Assignee: user,
		Counts:   cvat.AnnotationCounts{AnnotatedFrames: frames, Shapes: shapes},
		Known:    true,
	}
}

func baseline(jobs map[int]store.JobCounts) *store.Snapshot {
	return &store.Snapshot{Date: "20260120", Jobs: jobs}
}

func TestDeltaAttributedToCurrentAssignee(t *testing.T) {
	base := baseline(map[int]store.JobCounts{1: {AnnotatedFrameCount: 10, ShapeCount: 20}})

	// Job 1 was held by someone else when the baseline was taken.
	d := Compute("20260121", []JobRecord{record(1, "bob", 25, 50)}, base)

	require.True(t, d.HasBaseline)
	require.Len(t, d.Records, 1)
	assert.Equal(t, "bob", d.Records[0].User)
	assert.Equal(t, 15, d.Records[0].TodayFrames)
	assert.Equal(t, 30, d.Records[0].TodayShapes)
	assert.Equal(t, 25, d.Records[0].TotalFrames)
}

func TestDeltaNeverNegative(t *testing.T) {
	base := baseline(map[int]store.JobCounts{1: {AnnotatedFrameCount: 30, ShapeCount: 40}})
	d := Compute("20260121", []JobRecord{record(1, "amy", 20, 10)}, base)

	require.Len(t, d.Records, 1)
	assert.Equal(t, 0, d.Records[0].TodayFrames)
	assert.Equal(t, 0, d.Records[0].TodayShapes)
}

func TestFirstSeenJobCountsInFull(t *testing.T) {
	base := baseline(map[int]store.JobCounts{1: {AnnotatedFrameCount: 5}})
	frames, shapes := Delta(record(2, "amy", 7, 9), base)
	assert.Equal(t, 7, frames)
	assert.Equal(t, 9, shapes)
}

func TestNoBaselineIsDistinctFromZeroActivity(t *testing.T) {
	records := []JobRecord{record(1, "amy", 12, 3), record(2, "amy", 8, 1)}

	first := Compute("20260121", records, nil)
	require.False(t, first.HasBaseline)
	assert.Equal(t, 20, first.TotalToday())

	idle := Compute("20260121", []JobRecord{record(1, "amy", 0, 0)}, nil)
	require.False(t, idle.HasBaseline)
	assert.Equal(t, 0, idle.TotalToday())

	quiet := Compute("20260121", records, baseline(map[int]store.JobCounts{
		1: {AnnotatedFrameCount: 12, ShapeCount: 3},
		2: {AnnotatedFrameCount: 8, ShapeCount: 1},
	}))
	require.True(t, quiet.HasBaseline)
	assert.Equal(t, 0, quiet.TotalToday())
	assert.Equal(t, "20260120", quiet.BaselineDate)
}

func TestComputeSkipsUnassignedAndSorts(t *testing.T) {
	unassigned := record(3, "", 50, 50)
	unassigned.Job.Assignee = nil
	d := Compute("20260121", []JobRecord{
		record(1, "amy", 10, 1),
		record(2, "bob", 30, 1),
		unassigned,
		record(4, "cat", 10, 1),
	}, nil)

	require.Len(t, d.Records, 3)
	assert.Equal(t, []string{"bob", "amy", "cat"}, []string{d.Records[0].User, d.Records[1].User, d.Records[2].User})
}

func TestSpeedThreshold(t *testing.T) {
	r := record(1, "amy", 60, 0)
	r.Job.AssigneeUpdatedDate = "2026-01-21T08:00:00.123456Z"
	r.Job.UpdatedDate = "2026-01-21T10:00:00.123456Z"

	s, ok := Speed(r, MinSpeedHours)
	require.True(t, ok)
	assert.InDelta(t, 30.0, s, 0.001)

	r.Job.UpdatedDate = "2026-01-21T08:03:00.123456Z"
	_, ok = Speed(r, MinSpeedHours)
	assert.False(t, ok, "three minutes is below the threshold")

	_, ok = Speed(r, 0)
	assert.True(t, ok)

	r.Job.UpdatedDate = "not a time"
	_, ok = Speed(r, 0)
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, NotStarted, Classify(0, 10))
	assert.Equal(t, InProgress, Classify(4, 10))
	assert.Equal(t, Completed, Classify(10, 10))
	assert.Equal(t, Completed, Classify(12, 10))
}

func TestSnapshotAndBackfill(t *testing.T) {
	now := time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)
	snap := Snapshot("20260122", []JobRecord{record(1, "amy", 4, 6)}, nil, now)
	assert.Equal(t, store.JobCounts{AnnotatedFrameCount: 4, ShapeCount: 6}, snap.Jobs[1])
	assert.Empty(t, snap.Note)

	cutoff, err := BackfillCutoff("20260120")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 20, 23, 59, 59, 0, time.UTC), cutoff)
	assert.True(t, UpdatedBy("2026-01-20T23:59:59Z", cutoff))
	assert.False(t, UpdatedBy("2026-01-21T00:00:00.5Z", cutoff))
	assert.False(t, UpdatedBy("", cutoff))

	back, err := Backfill("20260120", []JobRecord{record(1, "amy", 4, 6)}, []int{2}, now)
	require.NoError(t, err)
	assert.Equal(t, store.JobCounts{}, back.Jobs[2])
	assert.Equal(t, 4, back.Jobs[1].AnnotatedFrameCount)
	assert.Contains(t, back.Note, "2026-01-20T23:59:59")

	_, err = Backfill("2026-01-20", nil, nil, now)
	assert.Error(t, err)
}

func TestSnapshotCarriesBaselineForUnreadJobs(t *testing.T) {
	now := time.Date(2026, 1, 21, 18, 0, 0, 0, time.UTC)
	base := baseline(map[int]store.JobCounts{2: {AnnotatedFrameCount: 40, ShapeCount: 80}})

	unread := record(2, "amy", 0, 0)
	unread.Known = false
	fresh := record(3, "amy", 0, 0)
	fresh.Known = false
	records := []JobRecord{record(1, "amy", 4, 6), unread, fresh}

	snap := Snapshot("20260121", records, base, now)
	assert.Equal(t, store.JobCounts{AnnotatedFrameCount: 4, ShapeCount: 6}, snap.Jobs[1])
	assert.Equal(t, store.JobCounts{AnnotatedFrameCount: 40, ShapeCount: 80}, snap.Jobs[2])
	assert.NotContains(t, snap.Jobs, 3)

	// Once the read succeeds the next day, only the progress since the
	// carried counts is credited.
	next := record(2, "amy", 45, 90)
	d := Compute("20260122", []JobRecord{next}, snap)
	require.Len(t, d.Records, 1)
	assert.Equal(t, 5, d.Records[0].TodayFrames)
	assert.Equal(t, 10, d.Records[0].TodayShapes)

	noBase := Snapshot("20260121", records, nil, now)
	assert.Len(t, noBase.Jobs, 1)
}

func TestRecordCSV(t *testing.T) {
	r := Record{Date: "20260121", User: "amy", TodayFrames: 3, AvgSpeed: 12.345, HasSpeed: true}
	row := r.CSV()
	require.Len(t, row, len(CSVHeader))
	assert.Equal(t, "12.3", row[len(row)-1])

	r.HasSpeed = false
	assert.Equal(t, "N/A", r.CSV()[len(CSVHeader)-1])
}

func TestBuildProgress(t *testing.T) {
	task := cvat.Task{ID: 9, Name: "batch", CreatedDate: "2026-01-20T10:00:00Z"}
	a := record(1, "amy", 100, 10)
	b := record(2, "amy", 0, 0)
	c := record(3, "bob", 80, 5)
	for _, r := range []*JobRecord{&a, &b, &c} {
		r.Task = task
	}

	rep := BuildProgress([]JobRecord{a, b, c}, time.Now())
	require.Len(t, rep.Tasks, 1)
	tp := rep.Tasks[0]
	assert.Equal(t, "2026-01-20", tp.CreatedDate)
	assert.Equal(t, 3, tp.TotalJobs)
	assert.Equal(t, 1, tp.JobStats[Completed])
	assert.Equal(t, 1, tp.JobStats[InProgress])
	assert.Equal(t, 1, tp.JobStats[NotStarted])
	assert.Equal(t, 180, tp.CompletedFrames)

	require.Len(t, rep.Users, 2)
	assert.Equal(t, "bob", rep.Users[0].Name, "bob has the higher completion rate")
	assert.Equal(t, 2, rep.Users[1].TotalJobs)
	assert.Equal(t, 2, rep.Summary.TotalUsers)
}

func TestResolveName(t *testing.T) {
	job := cvat.Job{Assignee: &cvat.User{ID: 5, Username: "u5"}}
	assert.Equal(t, "member", ResolveName(job, map[int]string{5: "member"}))
	assert.Equal(t, "u5", ResolveName(job, nil))
	job.Assignee.Username = ""
	assert.Equal(t, "User_5", ResolveName(job, nil))
	assert.Equal(t, "", ResolveName(cvat.Job{}, nil))
}

func TestUserNames(t *testing.T) {
	names := UserNames([]cvat.Membership{
		{User: cvat.User{ID: 4, Username: "ann"}},
		{User: cvat.User{ID: 5, Username: "bob"}},
	})
	assert.Equal(t, map[int]string{4: "ann", 5: "bob"}, names)
}
