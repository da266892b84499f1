package reconcile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/inventory"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/platform"
)

func TestReconcileSetLaws(t *testing.T) {
	cloud := NewSet("a", "b", "c", "d")
	loaded := NewSet("b", "c", "x")
	annotated := NewSet("c")

	r := Reconcile(cloud, loaded, annotated)

	require.Equal(t, []string{"a", "d"}, r.NewImages)
	require.Equal(t, []string{"b", "x"}, r.LoadedNotAnnotated)
	require.Equal(t, []string{"c"}, r.Annotated)

	for _, n := range r.NewImages {
		require.False(t, loaded.Has(n), "new image %s is loaded", n)
	}
	covered := NewSet(r.NewImages...)
	for l := range loaded {
		covered.Add(l)
	}
	for c := range cloud {
		require.True(t, covered.Has(c), "cloud image %s not covered", c)
	}
}

func TestReconcileDeterministic(t *testing.T) {
	cloud := NewSet("z", "y", "x", "w")
	loaded := NewSet("y")
	first := Reconcile(cloud, loaded, NewSet())
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Reconcile(cloud, loaded, NewSet()))
	}
}

func TestReportLayouts(t *testing.T) {
	withCloud := Reconcile(NewSet("a", "b"), NewSet("a"), NewSet())
	data, err := json.Marshal(withCloud.Report())
	require.NoError(t, err)
	require.JSONEq(t, `{
		"summary": {"cloud_total": 2, "cvat_loaded": 1, "cvat_annotated": 0, "cvat_not_annotated": 1, "new_images": 1},
		"new_images": ["b"],
		"annotated_images": [],
		"not_annotated_images": ["a"]
	}`, string(data))

	platformOnly := Reconcile(nil, NewSet("a"), NewSet("a"))
	data, err = json.Marshal(platformOnly.Report())
	require.NoError(t, err)
	require.JSONEq(t, `{
		"summary": {"cvat_total": 1, "cvat_annotated": 1, "cvat_not_annotated": 0},
		"annotated_images": ["a"],
		"not_annotated_images": []
	}`, string(data))
}

func TestNewImageKeys(t *testing.T) {
	r := Result{NewImages: []string{"a.jpg", "b.jpg"}}
	keys := r.NewImageKeys(map[string]string{"a.jpg": "raw/session_1/0000/a.jpg"}, "raw/")
	require.Equal(t, []string{"raw/session_1/0000/a.jpg", "raw/b.jpg"}, keys)
}

func TestAnnotatedFramesPropagation(t *testing.T) {
	job := cvat.Job{ID: 1, StartFrame: 10, StopFrame: 13}

	t.Run("any marks whole range", func(t *testing.T) {
		js := JobState{Job: job, HasAnnotations: true}
		require.Equal(t, []int{10, 11, 12, 13}, AnnotatedFrames(js, PropagateAny))
	})
	t.Run("any without annotations", func(t *testing.T) {
		require.Empty(t, AnnotatedFrames(JobState{Job: job}, PropagateAny))
	})
	t.Run("complete with partial progress", func(t *testing.T) {
		js := JobState{Job: job, HasAnnotations: true, Frames: map[int]struct{}{11: {}}}
		require.Equal(t, []int{11}, AnnotatedFrames(js, PropagateComplete))
	})
	t.Run("complete with every frame", func(t *testing.T) {
		js := JobState{Job: job, HasAnnotations: true, Frames: map[int]struct{}{10: {}, 11: {}, 12: {}, 13: {}}}
		require.Len(t, AnnotatedFrames(js, PropagateComplete), 4)
	})
}

func TestPlatformSetsIgnoresFramesBeyondNames(t *testing.T) {
	tasks := []TaskState{{
		Names: []string{"h1__a.jpg", "b.jpg"},
		Jobs:  []JobState{{Job: cvat.Job{StartFrame: 0, StopFrame: 4}, HasAnnotations: true}},
	}}
	loaded, annotated := PlatformSets(tasks, PropagateAny)
	require.Equal(t, []string{"a.jpg", "b.jpg"}, loaded.Sorted())
	require.Equal(t, []string{"a.jpg", "b.jpg"}, annotated.Sorted())
}

func TestParsePropagation(t *testing.T) {
	p, err := ParsePropagation("")
	require.NoError(t, err)
	require.Equal(t, PropagateAny, p)
	p, err = ParsePropagation("complete")
	require.NoError(t, err)
	require.Equal(t, PropagateComplete, p)
	_, err = ParsePropagation("half")
	require.Error(t, err)
}

func TestIncompleteSessionNeverNew(t *testing.T) {
	inv := inventory.Build([]string{
		"raw/session_ok/0000/meta.json",
		"raw/session_ok/0000/1.jpg",
		"raw/session_wip/0000/2.jpg",
	})
	r := Reconcile(Set(inv.BasenameSet()), NewSet(), NewSet())
	require.Equal(t, []string{"1.jpg"}, r.NewImages)
}

type scenarioAPI struct{}

func (scenarioAPI) ListTasks(ctx context.Context) ([]cvat.Task, error) {
	return []cvat.Task{{ID: 7, Name: "batch"}}, nil
}

func (scenarioAPI) GetTask(ctx context.Context, id int) (*cvat.Task, error) {
	return &cvat.Task{ID: id}, nil
}

func (scenarioAPI) ListJobs(ctx context.Context, taskID int) ([]cvat.Job, error) {
	return []cvat.Job{{ID: 70, TaskID: taskID, StartFrame: 0, StopFrame: 1}}, nil
}

func (scenarioAPI) TaskFrameMeta(ctx context.Context, taskID int) (*cvat.FrameMeta, error) {
	return &cvat.FrameMeta{Frames: []cvat.Frame{{Name: "frame_1.jpg"}, {Name: "frame_2.jpg"}}}, nil
}

func (scenarioAPI) JobAnnotations(ctx context.Context, jobID int) (*cvat.Annotations, error) {
	return &cvat.Annotations{Shapes: []cvat.Shape{{Frame: 0, Type: "rectangle"}}}, nil
}

func (scenarioAPI) JobHasAnnotations(ctx context.Context, jobID int) (bool, error) {
	return true, nil
}

func (scenarioAPI) JobFrameMeta(ctx context.Context, jobID int) (*cvat.FrameMeta, error) {
	return &cvat.FrameMeta{}, nil
}

// One manifest and three images in the bucket; two loaded in a job with one
// of its two frames annotated.
func TestEndToEndInProgressJob(t *testing.T) {
	inv := inventory.Build([]string{
		"raw/session_X/0000/manifest.json",
		"raw/session_X/0000/frame_1.jpg",
		"raw/session_X/0000/frame_2.jpg",
		"raw/session_X/0000/frame_3.jpg",
	})
	fetcher := platform.NewFetcher(scenarioAPI{})
	ctx := context.Background()
	tasks, err := fetcher.Tasks(ctx, nil)
	require.NoError(t, err)

	states, err := Collect(ctx, fetcher, tasks, PropagateComplete)
	require.NoError(t, err)
	loaded, annotated := PlatformSets(states, PropagateComplete)

	r := Reconcile(Set(inv.BasenameSet()), loaded, annotated)
	require.Equal(t, []string{"frame_3.jpg"}, r.NewImages)
	require.Equal(t, []string{"frame_2.jpg"}, r.LoadedNotAnnotated)
	require.Equal(t, []string{"raw/session_X/0000/frame_3.jpg"}, r.NewImageKeys(inv.Basenames(), "raw/"))

	states, err = Collect(ctx, fetcher, tasks, PropagateAny)
	require.NoError(t, err)
	loaded, annotated = PlatformSets(states, PropagateAny)
	r = Reconcile(Set(inv.BasenameSet()), loaded, annotated)
	require.Empty(t, r.LoadedNotAnnotated)
}

func TestPlatformSetsKeepsFramePositions(t *testing.T) {
	meta := cvat.FrameMeta{Frames: []cvat.Frame{{Name: "a.jpg"}, {Name: ""}, {Name: "c.jpg"}}}
	tasks := []TaskState{{
		Names: meta.Names(),
		Jobs:  []JobState{{Job: cvat.Job{StartFrame: 2, StopFrame: 2}, HasAnnotations: true}},
	}}
	loaded, annotated := PlatformSets(tasks, PropagateAny)
	require.Equal(t, []string{"a.jpg", "c.jpg"}, loaded.Sorted())
	require.Equal(t, []string{"c.jpg"}, annotated.Sorted())
}
