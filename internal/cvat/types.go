package cvat

import (
	"strings"
)

// Task status values reported by the platform.
const (
	TaskStatusAnnotation = "annotation"
	TaskStatusValidation = "validation"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// Organization roles.
const (
	RoleOwner      = "owner"
	RoleMaintainer = "maintainer"
	RoleSupervisor = "supervisor"
	RoleWorker     = "worker"
)

// Task is a platform task.
type Task struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Size        int    `json:"size"`
	CreatedDate string `json:"created_date"`
	UpdatedDate string `json:"updated_date"`
	// Organization is the numeric id of the owning organization, if any.
	Organization *int `json:"organization"`
}

// User is a platform account. Jobs embed a reduced form with only
// id and username populated.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName returns "first last" when set, otherwise the username.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Job is a contiguous frame range of a task.
type Job struct {
	ID                  int    `json:"id"`
	TaskID              int    `json:"task_id"`
	StartFrame          int    `json:"start_frame"`
	StopFrame           int    `json:"stop_frame"`
	Assignee            *User  `json:"assignee"`
	State               string `json:"state"`
	Stage               string `json:"stage"`
	CreatedDate         string `json:"created_date"`
	UpdatedDate         string `json:"updated_date"`
	AssigneeUpdatedDate string `json:"assignee_updated_date"`
}

// FrameCount is the number of frames in the inclusive range.
func (j Job) FrameCount() int {
	return j.StopFrame - j.StartFrame + 1
}

// AssigneeID returns the assignee id, or 0 when the job is unassigned.
func (j Job) AssigneeID() int {
	if j.Assignee == nil {
		return 0
	}
	return j.Assignee.ID
}

// AssignedDate is the timestamp annotation work is measured from: the last
// assignee change, falling back to job creation.
func (j Job) AssignedDate() string {
	if j.AssigneeUpdatedDate != "" {
		return j.AssigneeUpdatedDate
	}
	return j.CreatedDate
}

// Membership links a user to an organization with a role.
type Membership struct {
	ID   int    `json:"id"`
	Role string `json:"role"`
	User User   `json:"user"`
}

// IsAnnotator reports whether the role does annotation work by default.
func (m Membership) IsAnnotator() bool {
	return m.Role == RoleWorker || m.Role == RoleSupervisor
}

// IsAdmin reports whether the role administers the organization.
func (m Membership) IsAdmin() bool {
	return m.Role == RoleOwner || m.Role == RoleMaintainer
}

// Label is a task label definition.
type Label struct {
	ID    int    `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Attribute is a shape attribute value.
type Attribute struct {
	SpecID int    `json:"spec_id"`
	Value  string `json:"value"`
}

// Shape is one annotated geometry on a frame.
type Shape struct {
	ID         int         `json:"id,omitempty"`
	Type       string      `json:"type"`
	Frame      int         `json:"frame"`
	LabelID    int         `json:"label_id"`
	Points     []float64   `json:"points"`
	Occluded   bool        `json:"occluded"`
	Outside    bool        `json:"outside,omitempty"`
	ZOrder     int         `json:"z_order"`
	Rotation   float64     `json:"rotation,omitempty"`
	Group      int         `json:"group"`
	Source     string      `json:"source"`
	Attributes []Attribute `json:"attributes"`
}

// Track is a shape followed across frames.
type Track struct {
	ID      int     `json:"id,omitempty"`
	Frame   int     `json:"frame"`
	LabelID int     `json:"label_id"`
	Group   int     `json:"group"`
	Source  string  `json:"source"`
	Shapes  []Shape `json:"shapes"`
}

// Annotations is the payload of a job's annotation endpoint.
type Annotations struct {
	Version int     `json:"version"`
	Tags    []Shape `json:"tags"`
	Shapes  []Shape `json:"shapes"`
	Tracks  []Track `json:"tracks"`
}

// AnnotatedFrames returns the set of frame indices touched by any shape,
// including shapes nested in tracks.
func (a Annotations) AnnotatedFrames() map[int]struct{} {
	frames := make(map[int]struct{})
	for _, s := range a.Shapes {
		frames[s.Frame] = struct{}{}
	}
	for _, t := range a.Tracks {
		for _, s := range t.Shapes {
			frames[s.Frame] = struct{}{}
		}
	}
	return frames
}

// Counts summarizes the payload.
func (a Annotations) Counts() AnnotationCounts {
	return AnnotationCounts{
		Shapes:          len(a.Shapes),
		Tracks:          len(a.Tracks),
		AnnotatedFrames: len(a.AnnotatedFrames()),
	}
}

// AnnotationCounts is the derived progress of one job.
type AnnotationCounts struct {
	Shapes          int
	Tracks          int
	AnnotatedFrames int
}

// Frame is one entry of a data/meta frame list.
type Frame struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FrameMeta is the payload of a task or job data/meta endpoint.
type FrameMeta struct {
	StartFrame int     `json:"start_frame"`
	StopFrame  int     `json:"stop_frame"`
	Size       int     `json:"size"`
	Frames     []Frame `json:"frames"`
}

// Names returns the frame names in order. Position i is frame i of the
// task or job; a frame without a name keeps an empty entry.
func (m FrameMeta) Names() []string {
	names := make([]string, len(m.Frames))
	for i, f := range m.Frames {
		names[i] = f.Name
	}
	return names
}

// FirstName returns the first non-empty frame name.
func (m FrameMeta) FirstName() (string, bool) {
	for _, f := range m.Frames {
		if f.Name != "" {
			return f.Name, true
		}
	}
	return "", false
}

// DataRequest is the body of POST /api/tasks/{id}/data. When JobFileMapping
// is set every file in it must also appear in ServerFiles.
type DataRequest struct {
	CloudStorageID int        `json:"cloud_storage_id"`
	ServerFiles    []string   `json:"server_files"`
	UseCache       bool       `json:"use_cache"`
	ImageQuality   int        `json:"image_quality"`
	StorageMethod  string     `json:"storage_method"`
	JobFileMapping [][]string `json:"job_file_mapping,omitempty"`
	SortingMethod  string     `json:"sorting_method,omitempty"`
}

// NewDataRequest fills the fixed attach parameters. A nil mapping falls
// back to natural sorting with platform-chosen job boundaries.
func NewDataRequest(cloudStorageID int, files []string, mapping [][]string) DataRequest {
	req := DataRequest{
		CloudStorageID: cloudStorageID,
		ServerFiles:    files,
		UseCache:       true,
		ImageQuality:   70,
		StorageMethod:  "cache",
	}
	if len(mapping) > 0 {
		req.JobFileMapping = mapping
	} else {
		req.SortingMethod = "natural"
	}
	return req
}

// RequestOperation describes what an asynchronous request does.
type RequestOperation struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	TaskID *int   `json:"task_id"`
	JobID  *int   `json:"job_id"`
}

// Request is an entry of /api/requests.
type Request struct {
	ID        string           `json:"id"`
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	Progress  float64          `json:"progress"`
	Operation RequestOperation `json:"operation"`
}

// Request status values.
const (
	RequestQueued   = "queued"
	RequestStarted  = "started"
	RequestFinished = "finished"
	RequestFailed   = "failed"
)

// page is the envelope of every paginated list endpoint.
type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}
