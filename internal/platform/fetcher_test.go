package platform

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
)

type fakeAPI struct {
	tasks       []cvat.Task
	jobs        map[int][]cvat.Job
	annotations map[int]*cvat.Annotations
	failJobs    map[int]error
	listErr     error

	mu       sync.Mutex
	inflight int32
	peak     int32
}

func (f *fakeAPI) ListTasks(ctx context.Context) ([]cvat.Task, error) {
	return f.tasks, f.listErr
}

func (f *fakeAPI) GetTask(ctx context.Context, id int) (*cvat.Task, error) {
	for _, t := range f.tasks {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, &cvat.APIError{Kind: cvat.KindClient, StatusCode: http.StatusNotFound}
}

func (f *fakeAPI) ListJobs(ctx context.Context, taskID int) ([]cvat.Job, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.jobs[taskID], nil
}

func (f *fakeAPI) TaskFrameMeta(ctx context.Context, taskID int) (*cvat.FrameMeta, error) {
	return &cvat.FrameMeta{Frames: []cvat.Frame{{Name: "a.jpg"}, {Name: "b.jpg"}}}, nil
}

func (f *fakeAPI) JobAnnotations(ctx context.Context, jobID int) (*cvat.Annotations, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&f.inflight, -1)

	if err := f.failJobs[jobID]; err != nil {
		return nil, err
	}
	if a, ok := f.annotations[jobID]; ok {
		return a, nil
	}
	return &cvat.Annotations{}, nil
}

func (f *fakeAPI) JobHasAnnotations(ctx context.Context, jobID int) (bool, error) {
	if err := f.failJobs[jobID]; err != nil {
		return false, err
	}
	a := f.annotations[jobID]
	return a != nil && (len(a.Shapes) > 0 || len(a.Tracks) > 0), nil
}

func (f *fakeAPI) JobFrameMeta(ctx context.Context, jobID int) (*cvat.FrameMeta, error) {
	if err := f.failJobs[jobID]; err != nil {
		return nil, err
	}
	return &cvat.FrameMeta{Frames: []cvat.Frame{{Name: "x.jpg"}}}, nil
}

func TestTasksAppliesExclusions(t *testing.T) {
	api := &fakeAPI{tasks: []cvat.Task{{ID: 1}, {ID: 2}, {ID: 3}}}
	f := NewFetcher(api, WithExcluded([]int{2}))

	tasks, err := f.Tasks(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != 1 || tasks[1].ID != 3 {
		t.Errorf("unexpected tasks %+v", tasks)
	}
}

func TestTasksExplicitIDsSkipFailures(t *testing.T) {
	api := &fakeAPI{tasks: []cvat.Task{{ID: 1}}}
	rec := metrics.New("test")
	f := NewFetcher(api, WithRecorder(rec))

	tasks, err := f.Tasks(context.Background(), []int{1, 99})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != 1 {
		t.Errorf("unexpected tasks %+v", tasks)
	}
	if rec.Value(metrics.Failed) != 1 {
		t.Errorf("expected one failure recorded, got %v", rec.Value(metrics.Failed))
	}
}

func TestListingErrorsPropagate(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("boom")}
	f := NewFetcher(api)
	if _, err := f.Tasks(context.Background(), nil); err == nil {
		t.Error("expected task listing error")
	}
	if _, err := f.Jobs(context.Background(), 1); err == nil {
		t.Error("expected job listing error")
	}
}

func TestProgressRecoversPerJob(t *testing.T) {
	var jobs []cvat.Job
	for i := 1; i <= 25; i++ {
		jobs = append(jobs, cvat.Job{ID: i})
	}
	api := &fakeAPI{
		annotations: map[int]*cvat.Annotations{
			3: {Shapes: []cvat.Shape{{Frame: 4}, {Frame: 4}, {Frame: 5}}},
		},
		failJobs: map[int]error{
			7: &cvat.APIError{Kind: cvat.KindServer, StatusCode: 502},
		},
	}
	f := NewFetcher(api, WithWorkers(4))

	results, err := f.Progress(context.Background(), jobs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 25 {
		t.Fatalf("expected 25 results, got %d", len(results))
	}
	if results[2].Job.ID != 3 || results[2].Value.Counts.AnnotatedFrames != 2 || results[2].Value.Counts.Shapes != 3 {
		t.Errorf("unexpected result for job 3: %+v", results[2])
	}
	if results[6].OK() || results[6].Value.Counts.AnnotatedFrames != 0 {
		t.Errorf("expected recovered failure for job 7: %+v", results[6])
	}
	if api.peak > 4 {
		t.Errorf("expected at most 4 concurrent requests, saw %d", api.peak)
	}
}

func TestFanOutAbortsOnUnrecoverable(t *testing.T) {
	api := &fakeAPI{failJobs: map[int]error{
		2: &cvat.APIError{Kind: cvat.KindClient, StatusCode: http.StatusUnauthorized},
	}}
	f := NewFetcher(api)

	_, err := f.HasAnnotations(context.Background(), []cvat.Job{{ID: 1}, {ID: 2}})
	if err == nil {
		t.Fatal("expected unauthorized to abort the batch")
	}
	if !cvat.IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("expected wrapped 401, got %v", err)
	}
}

func TestFrameMetaAndNames(t *testing.T) {
	f := NewFetcher(&fakeAPI{})
	names, err := f.FrameNames(context.Background(), 1)
	if err != nil || len(names) != 2 {
		t.Fatalf("unexpected names %v, %v", names, err)
	}
	results, err := f.FrameMeta(context.Background(), []cvat.Job{{ID: 9}})
	if err != nil || results[0].Value.Names()[0] != "x.jpg" {
		t.Errorf("unexpected meta %+v, %v", results, err)
	}
}
