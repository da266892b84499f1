package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/coco"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/platform"
)

type fakeAPI struct {
	created   []string
	attached  []cvat.DataRequest
	jobs      []cvat.Job
	assigned  map[int]int
	uploads   int
	waitErr   error
	requestOp string
}

func (f *fakeAPI) CreateTask(ctx context.Context, name string, labels []cvat.Label) (*cvat.Task, error) {
	f.created = append(f.created, name)
	return &cvat.Task{ID: 77, Name: name}, nil
}

func (f *fakeAPI) AttachData(ctx context.Context, taskID int, req cvat.DataRequest) error {
	f.attached = append(f.attached, req)
	return nil
}

func (f *fakeAPI) WaitForDataLoading(ctx context.Context, taskID, expected int, opts cvat.WaitOptions) error {
	return f.waitErr
}

func (f *fakeAPI) ListJobs(ctx context.Context, taskID int) ([]cvat.Job, error) {
	return f.jobs, nil
}

func (f *fakeAPI) AssignJob(ctx context.Context, jobID, userID int) error {
	if f.assigned == nil {
		f.assigned = make(map[int]int)
	}
	f.assigned[jobID] = userID
	return nil
}

func (f *fakeAPI) UploadAnnotations(ctx context.Context, taskID int, format string, archive []byte) error {
	f.uploads++
	return nil
}

func (f *fakeAPI) WaitForRequest(ctx context.Context, taskID int, operation string, opts cvat.WaitOptions) error {
	f.requestOp = operation
	return nil
}

func newImporter(api API, useMapping bool) *Importer {
	cfg := &config.Config{UseJobFileMapping: useMapping}
	cfg.CloudStorage.ID = 5
	return New(api, cfg, nil)
}

func TestGroupKeys(t *testing.T) {
	b := GroupKeys([]string{
		"d/session_B/0001/f1.jpg",
		"d/session_A/0000/f1.jpg",
		"images/aa__3748_session_20251210_221855_834176_0002_000000.jpg",
		"loose/file.jpg",
		"d/session_A/0000/f2.jpg",
	})

	assert.Equal(t, []string{
		"3748_session_20251210_221855_834176_0002",
		"session_A_0000",
		"session_B_0001",
		UnknownSession,
	}, b.SessionIDs())
	assert.Equal(t, []string{"d/session_A/0000/f1.jpg", "d/session_A/0000/f2.jpg"}, b.Groups[1].Files)
	assert.Len(t, b.Files, 5)
	require.NoError(t, b.Validate())
}

func TestValidateReportsMissingFiles(t *testing.T) {
	b := &Batch{
		Files:  []string{"a.jpg"},
		Groups: []Group{{SessionID: "s", Files: []string{"a.jpg", "z.jpg", "b.jpg"}}},
	}
	err := b.Validate()
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, []string{"b.jpg", "z.jpg"}, me.Missing)
}

func TestLoadAbortsBeforeAnyCallOnBadMapping(t *testing.T) {
	api := &fakeAPI{}
	b := &Batch{Files: []string{"a.jpg"}, Groups: []Group{{Files: []string{"missing.jpg"}}}}

	_, _, err := newImporter(api, true).Load(context.Background(), "t", nil, b)
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Empty(t, api.created)
	assert.Empty(t, api.attached)
}

func TestLoadWithMapping(t *testing.T) {
	api := &fakeAPI{jobs: []cvat.Job{{ID: 2, StartFrame: 3, StopFrame: 4}, {ID: 1, StartFrame: 0, StopFrame: 2}}}
	b := GroupKeys([]string{"s/session_A/0000/1.jpg", "s/session_B/0000/1.jpg"})

	task, jobs, err := newImporter(api, true).Load(context.Background(), "batch", nil, b)
	require.NoError(t, err)
	assert.Equal(t, 77, task.ID)
	assert.Equal(t, []int{1, 2}, []int{jobs[0].ID, jobs[1].ID})
	require.Len(t, api.attached, 1)
	assert.Equal(t, 5, api.attached[0].CloudStorageID)
	assert.Len(t, api.attached[0].JobFileMapping, 2)
	assert.Empty(t, api.attached[0].SortingMethod)

	m := JobMappings(jobs, b)
	require.Len(t, m, 2)
	assert.Equal(t, "session_A_0000", m[0].SessionID)
	assert.Equal(t, 3, m[0].FrameCount)
}

func TestLoadWithoutMappingSortsNaturally(t *testing.T) {
	api := &fakeAPI{}
	b := GroupKeys([]string{"s/session_A/0000/1.jpg"})
	_, _, err := newImporter(api, false).Load(context.Background(), "batch", nil, b)
	require.NoError(t, err)
	assert.Nil(t, api.attached[0].JobFileMapping)
	assert.Equal(t, "natural", api.attached[0].SortingMethod)
}

func TestLoadReturnsTaskOnWaitFailure(t *testing.T) {
	api := &fakeAPI{waitErr: errors.New("timed out")}
	task, _, err := newImporter(api, true).Load(context.Background(), "batch", nil, GroupKeys([]string{"s/session_A/0000/1.jpg"}))
	require.Error(t, err)
	require.NotNil(t, task)
}

func TestAssignRoundRobin(t *testing.T) {
	api := &fakeAPI{}
	jobs := []cvat.Job{{ID: 1}, {ID: 2}, {ID: 3}}
	ok, failed := newImporter(api, true).AssignRoundRobin(context.Background(), jobs,
		[]config.Assignee{{ID: 10, Name: "a"}, {ID: 20, Name: "b"}}, nil)
	assert.Equal(t, 3, ok)
	assert.Zero(t, failed)
	assert.Equal(t, map[int]int{1: 10, 2: 20, 3: 10}, api.assigned)
}

func TestGroupDatasetDedupesAcrossSessions(t *testing.T) {
	ds := &coco.Dataset{Images: []coco.Image{
		{ID: 1, FileName: "images/aa__3748_session_20251210_221855_x_0001.jpg"},
		{ID: 2, FileName: "images/bb__3748_session_20251210_221855_x_0002.jpg"},
		{ID: 3, FileName: "images/cc__3749_session_20251211_080000_y_0001.jpg"},
		{ID: 4, FileName: "images/dd__3748_session_20251210_221855_x_0001.jpg"},
		{ID: 5, FileName: "images/no_session.jpg"},
	}}

	b := GroupDataset(ds, "test_1000/images/")

	assert.Equal(t, []string{"3748_session_20251210_221855", "3749_session_20251211_080000"}, b.SessionIDs())
	assert.Equal(t, []string{
		"test_1000/images/3748_session_20251210_221855_x_0001.jpg",
		"test_1000/images/3748_session_20251210_221855_x_0002.jpg",
	}, b.Groups[0].Files)
	assert.Len(t, b.Files, 3)
	require.NoError(t, b.Validate())
}

func TestUploadDataset(t *testing.T) {
	api := &fakeAPI{}
	err := newImporter(api, true).UploadDataset(context.Background(), 9, &coco.Dataset{})
	require.NoError(t, err)
	assert.Equal(t, 1, api.uploads)
	assert.Equal(t, "import:annotations", api.requestOp)
}

func TestLabels(t *testing.T) {
	got := Labels([]config.Label{{Name: "Left hand", Color: "#ff00ff"}, {Name: "Right hand"}})
	assert.Equal(t, []cvat.Label{{Name: "Left hand", Color: "#ff00ff"}, {Name: "Right hand"}}, got)
}

func TestResolveMappings(t *testing.T) {
	jobs := []cvat.Job{
		{ID: 1, StartFrame: 0, StopFrame: 1},
		{ID: 2, StartFrame: 2, StopFrame: 3},
		{ID: 3, StartFrame: 4, StopFrame: 4},
	}
	meta := &cvat.FrameMeta{Frames: []cvat.Frame{
		{Name: "dev1/session_20260121_200123_268461/0002/down/a.jpg"},
		{Name: "dev1/session_20260121_200123_268461/0002/down/b.jpg"},
	}}
	metas := []platform.Result[*cvat.FrameMeta]{
		{Job: jobs[0], Value: meta},
		{Job: jobs[1], Err: errors.New("timeout")},
		{Job: jobs[2], Value: &cvat.FrameMeta{}},
	}

	got := ResolveMappings(jobs, metas)
	require.Len(t, got, 3)
	assert.Equal(t, "session_20260121_200123_268461_0002", got[0].SessionID)
	assert.Equal(t, 2, got[0].ImageCount)
	assert.Equal(t, 2, got[0].FrameCount)
	assert.Empty(t, got[1].SessionID)
	assert.Equal(t, 2, got[1].StartFrame)
	assert.Empty(t, got[2].SessionID)
	assert.Equal(t, 1, got[2].FrameCount)
}
