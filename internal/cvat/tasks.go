package cvat

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ListTasks returns every task visible in the client's organization.
// Errors propagate: no per-task work is meaningful without the list.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	tasks, err := listAll[Task](ctx, c, "/api/tasks", c.orgQuery(), taskPageSize)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	log.Info().Int("count", len(tasks)).Msg("Fetched task list")
	return tasks, nil
}

// GetTask returns one task.
func (c *Client) GetTask(ctx context.Context, taskID int) (*Task, error) {
	var task Task
	if err := c.getJSON(ctx, fmt.Sprintf("/api/tasks/%d", taskID), nil, 0, &task); err != nil {
		return nil, fmt.Errorf("get task %d: %w", taskID, err)
	}
	return &task, nil
}

// TaskFrameMeta returns the ordered frame list of a task.
func (c *Client) TaskFrameMeta(ctx context.Context, taskID int) (*FrameMeta, error) {
	var meta FrameMeta
	if err := c.getJSON(ctx, fmt.Sprintf("/api/tasks/%d/data/meta", taskID), nil, metaTimeout, &meta); err != nil {
		return nil, fmt.Errorf("task %d frame meta: %w", taskID, err)
	}
	return &meta, nil
}

// TaskLabels returns the label definitions of a task.
func (c *Client) TaskLabels(ctx context.Context, taskID int) ([]Label, error) {
	q := url.Values{}
	q.Set("task_id", fmt.Sprintf("%d", taskID))
	labels, err := listAll[Label](ctx, c, "/api/labels", q, membershipPageSize)
	if err != nil {
		return nil, fmt.Errorf("task %d labels: %w", taskID, err)
	}
	return labels, nil
}

// createTaskRequest is the body of POST /api/tasks.
type createTaskRequest struct {
	Name   string  `json:"name"`
	Labels []Label `json:"labels"`
}

// CreateTask creates an empty task with the given labels.
func (c *Client) CreateTask(ctx context.Context, name string, labels []Label) (*Task, error) {
	log.Debug().Str("name", name).Int("labels", len(labels)).Msg("Creating task")
	var task Task
	err := c.sendJSON(ctx, http.MethodPost, "/api/tasks", c.orgQuery(), createTaskRequest{Name: name, Labels: labels}, 0, &task)
	if err != nil {
		return nil, fmt.Errorf("create task %q: %w", name, err)
	}
	log.Info().Int("taskId", task.ID).Str("name", name).Str("org", c.org).Msg("Task created")
	return &task, nil
}

// AttachData submits cloud-storage files to a task. The platform processes
// the request asynchronously; use WaitForDataLoading to follow it.
func (c *Client) AttachData(ctx context.Context, taskID int, req DataRequest) error {
	log.Debug().
		Int("taskId", taskID).
		Int("files", len(req.ServerFiles)).
		Int("jobs", len(req.JobFileMapping)).
		Str("sorting", req.SortingMethod).
		Msg("Attaching data")
	err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/data", taskID), nil, req, uploadTimeout, nil)
	if err != nil {
		return fmt.Errorf("attach data to task %d: %w", taskID, err)
	}
	log.Info().Int("taskId", taskID).Int("files", len(req.ServerFiles)).Msg("Data attach request submitted")
	return nil
}

// UploadAnnotations posts a zip archive of annotations in the given format
// (e.g. "COCO 1.0") as the multipart field annotation_file.
func (c *Client) UploadAnnotations(ctx context.Context, taskID int, format string, archive []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="annotation_file"; filename="annotations.zip"`)
	header.Set("Content-Type", "application/zip")
	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(archive); err != nil {
		return fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	q := url.Values{}
	q.Set("format", format)
	path := fmt.Sprintf("/api/tasks/%d/annotations", taskID)
	_, err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		query:       q,
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
		timeout:     uploadTimeout,
	})
	if err != nil {
		return fmt.Errorf("upload annotations to task %d: %w", taskID, err)
	}
	log.Info().Int("taskId", taskID).Int("bytes", len(archive)).Str("format", format).Msg("Annotations uploaded")
	return nil
}

// ListRequests returns the asynchronous requests targeting a task.
func (c *Client) ListRequests(ctx context.Context, taskID int) ([]Request, error) {
	q := url.Values{}
	q.Set("target", fmt.Sprintf("task/%d", taskID))
	q.Set("page_size", fmt.Sprintf("%d", requestPageSize))
	var p page[Request]
	if err := c.getJSON(ctx, "/api/requests", q, 0, &p); err != nil {
		return nil, fmt.Errorf("list requests for task %d: %w", taskID, err)
	}
	return p.Results, nil
}

// WaitOptions bounds a polling loop.
type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// CompletionRatio is the fraction of expected frames that counts as
	// loaded; deduplication on the server may drop a few files.
	CompletionRatio float64
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Hour
	}
	if o.CompletionRatio <= 0 {
		o.CompletionRatio = 0.95
	}
	return o
}

// stalledPolls is the number of consecutive polls without any loaded frame
// after which loading is considered failed.
const stalledPolls = 10

// WaitForDataLoading polls the task size until it reaches the completion
// ratio of expected, the task fails, loading stalls at zero, or the timeout
// expires. Transient poll errors are logged and retried. Partial platform
// state is left in place on failure.
func (c *Client) WaitForDataLoading(ctx context.Context, taskID, expected int, opts WaitOptions) error {
	opts = opts.withDefaults()
	log.Info().Int("taskId", taskID).Int("expected", expected).Dur("interval", opts.Interval).Msg("Waiting for data loading")

	start := time.Now()
	deadline := start.Add(opts.Timeout)
	lastSize := 0
	noProgress := 0

	for {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Int("taskId", taskID).Msg("Task status poll error, retrying")
		} else {
			elapsed := time.Since(start)
			if task.Size != lastSize {
				evt := log.Info().Int("taskId", taskID).Int("size", task.Size).Int("expected", expected).Dur("elapsed", elapsed)
				if expected > 0 {
					evt = evt.Int("percent", task.Size*100/expected)
				}
				if task.Size > 0 && expected > task.Size {
					perFrame := elapsed / time.Duration(task.Size)
					evt = evt.Dur("remaining", perFrame*time.Duration(expected-task.Size))
				}
				evt.Msg("Data loading progress")
				lastSize = task.Size
				noProgress = 0
			} else {
				noProgress++
				if noProgress%5 == 0 {
					log.Info().Int("taskId", taskID).Int("size", task.Size).Int("expected", expected).Msg("Still waiting for data")
				}
			}

			if float64(task.Size) >= float64(expected)*opts.CompletionRatio {
				log.Info().Int("taskId", taskID).Int("size", task.Size).Dur("elapsed", elapsed).Msg("Data loading complete")
				return nil
			}
			if task.Status == TaskStatusFailed {
				return &RequestFailedError{TaskID: taskID, Operation: "data loading", Message: "task status is failed"}
			}
			if noProgress > stalledPolls && task.Size == 0 {
				return fmt.Errorf("task %d: no frames loaded after %d polls", taskID, noProgress)
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("task %d: timed out after %s waiting for data (%d/%d frames)", taskID, opts.Timeout, lastSize, expected)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

// WaitForRequest polls /api/requests until an operation whose type contains
// operation (e.g. "import:annotations") finishes or fails.
func (c *Client) WaitForRequest(ctx context.Context, taskID int, operation string, opts WaitOptions) error {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)

	for {
		reqs, err := c.ListRequests(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Int("taskId", taskID).Msg("Request status poll error, retrying")
		}
		for _, r := range reqs {
			if !containsOp(r.Operation.Type, operation) {
				continue
			}
			switch r.Status {
			case RequestFinished:
				log.Info().Int("taskId", taskID).Str("operation", r.Operation.Type).Msg("Request finished")
				return nil
			case RequestFailed:
				return &RequestFailedError{
					TaskID:    taskID,
					Operation: r.Operation.Type,
					Message:   r.Message,
					Hint:      ClassifyFailure(r.Message),
				}
			default:
				log.Info().Int("taskId", taskID).Str("status", r.Status).Float64("progress", r.Progress).Msg("Request in progress")
			}
			break
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("task %d: timed out after %s waiting for %s", taskID, opts.Timeout, operation)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

func containsOp(opType, want string) bool {
	return want == "" || strings.Contains(opType, want)
}
