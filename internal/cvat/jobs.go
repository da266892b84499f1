package cvat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
)

// ListJobs returns the jobs of a task. Errors propagate.
func (c *Client) ListJobs(ctx context.Context, taskID int) ([]Job, error) {
	q := url.Values{}
	q.Set("task_id", strconv.Itoa(taskID))
	jobs, err := listAll[Job](ctx, c, "/api/jobs", q, jobPageSize)
	if err != nil {
		return nil, fmt.Errorf("list jobs of task %d: %w", taskID, err)
	}
	for i := range jobs {
		if jobs[i].TaskID == 0 {
			jobs[i].TaskID = taskID
		}
	}
	return jobs, nil
}

// GetJob returns one job.
func (c *Client) GetJob(ctx context.Context, jobID int) (*Job, error) {
	var job Job
	if err := c.getJSON(ctx, fmt.Sprintf("/api/jobs/%d", jobID), nil, 0, &job); err != nil {
		return nil, fmt.Errorf("get job %d: %w", jobID, err)
	}
	return &job, nil
}

// JobAnnotations returns the full annotation payload of a job.
func (c *Client) JobAnnotations(ctx context.Context, jobID int) (*Annotations, error) {
	var ann Annotations
	if err := c.getJSON(ctx, fmt.Sprintf("/api/jobs/%d/annotations", jobID), nil, 0, &ann); err != nil {
		return nil, fmt.Errorf("job %d annotations: %w", jobID, err)
	}
	return &ann, nil
}

// JobAnnotationCounts returns shape, track and annotated-frame counts.
func (c *Client) JobAnnotationCounts(ctx context.Context, jobID int) (AnnotationCounts, error) {
	ann, err := c.JobAnnotations(ctx, jobID)
	if err != nil {
		return AnnotationCounts{}, err
	}
	return ann.Counts(), nil
}

// JobHasAnnotations reports whether a job carries any shape or track.
// It requests a single page so large jobs stay cheap.
func (c *Client) JobHasAnnotations(ctx context.Context, jobID int) (bool, error) {
	q := url.Values{}
	q.Set("page_size", "1")
	var ann Annotations
	if err := c.getJSON(ctx, fmt.Sprintf("/api/jobs/%d/annotations", jobID), q, 0, &ann); err != nil {
		return false, fmt.Errorf("job %d annotations: %w", jobID, err)
	}
	return len(ann.Shapes) > 0 || len(ann.Tracks) > 0, nil
}

// JobFrameMeta returns the ordered frame list of a job.
func (c *Client) JobFrameMeta(ctx context.Context, jobID int) (*FrameMeta, error) {
	var meta FrameMeta
	if err := c.getJSON(ctx, fmt.Sprintf("/api/jobs/%d/data/meta", jobID), nil, metaTimeout, &meta); err != nil {
		return nil, fmt.Errorf("job %d frame meta: %w", jobID, err)
	}
	return &meta, nil
}

// createShapesRequest is the body of PATCH /api/jobs/{id}/annotations?action=create.
type createShapesRequest struct {
	Version int     `json:"version"`
	Tags    []Shape `json:"tags"`
	Shapes  []Shape `json:"shapes"`
	Tracks  []Track `json:"tracks"`
}

// CreateJobShapes appends shapes to a job's annotations.
func (c *Client) CreateJobShapes(ctx context.Context, jobID int, shapes []Shape) error {
	q := url.Values{}
	q.Set("action", "create")
	body := createShapesRequest{Tags: []Shape{}, Shapes: shapes, Tracks: []Track{}}
	err := c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/jobs/%d/annotations", jobID), q, body, uploadTimeout, nil)
	if err != nil {
		return fmt.Errorf("create shapes on job %d: %w", jobID, err)
	}
	log.Debug().Int("jobId", jobID).Int("shapes", len(shapes)).Msg("Shapes created")
	return nil
}

// assignRequest is the body of PATCH /api/jobs/{id}.
type assignRequest struct {
	Assignee int `json:"assignee"`
}

// AssignJob sets the assignee of a job.
func (c *Client) AssignJob(ctx context.Context, jobID, userID int) error {
	err := c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/jobs/%d", jobID), nil, assignRequest{Assignee: userID}, 0, nil)
	if err != nil {
		return fmt.Errorf("assign job %d to user %d: %w", jobID, userID, err)
	}
	log.Debug().Int("jobId", jobID).Int("userId", userID).Msg("Job assigned")
	return nil
}
