package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/coco"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/pathkey"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/platform"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
)

// AnnotationFormat is the platform import format of HumanSignal exports.
const AnnotationFormat = "COCO 1.0"

// importOperation is the request type of an annotation import.
const importOperation = "import:annotations"

// API is the platform surface used by imports.
type API interface {
	CreateTask(ctx context.Context, name string, labels []cvat.Label) (*cvat.Task, error)
	AttachData(ctx context.Context, taskID int, req cvat.DataRequest) error
	WaitForDataLoading(ctx context.Context, taskID, expected int, opts cvat.WaitOptions) error
	ListJobs(ctx context.Context, taskID int) ([]cvat.Job, error)
	AssignJob(ctx context.Context, jobID, userID int) error
	UploadAnnotations(ctx context.Context, taskID int, format string, archive []byte) error
	WaitForRequest(ctx context.Context, taskID int, operation string, opts cvat.WaitOptions) error
}

var _ API = (*cvat.Client)(nil)

// Importer runs task imports against one platform and cloud storage.
type Importer struct {
	api            API
	cloudStorageID int
	useMapping     bool
	wait           cvat.WaitOptions
	rec            *metrics.Recorder
}

// New creates an Importer from the loaded configuration.
func New(api API, cfg *config.Config, rec *metrics.Recorder) *Importer {
	return &Importer{
		api:            api,
		cloudStorageID: cfg.CloudStorage.ID,
		useMapping:     cfg.UseJobFileMapping,
		wait: cvat.WaitOptions{
			Interval:        cfg.PollInterval(),
			Timeout:         cfg.ImportTimeout(),
			CompletionRatio: cfg.Import.CompletionRatio,
		},
		rec: rec,
	}
}

// Load creates a task named name, attaches the batch and waits until the
// frames are loaded. The mapping is validated before any platform call.
// Jobs are returned ordered by start frame. On a failed wait the created
// task is left on the platform and returned with the error.
func (im *Importer) Load(ctx context.Context, name string, labels []cvat.Label, b *Batch) (*cvat.Task, []cvat.Job, error) {
	if len(b.Files) == 0 {
		return nil, nil, fmt.Errorf("no files to import")
	}
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}

	task, err := im.api.CreateTask(ctx, name, labels)
	if err != nil {
		return nil, nil, err
	}

	var mapping [][]string
	if im.useMapping {
		mapping = b.Mapping()
	}
	if err := im.api.AttachData(ctx, task.ID, cvat.NewDataRequest(im.cloudStorageID, b.Files, mapping)); err != nil {
		return task, nil, err
	}
	if err := im.api.WaitForDataLoading(ctx, task.ID, len(b.Files), im.wait); err != nil {
		return task, nil, err
	}

	jobs, err := im.api.ListJobs(ctx, task.ID)
	if err != nil {
		return task, nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].StartFrame < jobs[j].StartFrame })
	if im.useMapping && len(jobs) != len(b.Groups) {
		log.Warn().Int("taskId", task.ID).Int("expected", len(b.Groups)).Int("actual", len(jobs)).Msg("Job count differs from planned mapping")
	}
	if im.rec != nil {
		im.rec.Add(metrics.Jobs, len(jobs))
	}
	return task, jobs, nil
}

// AssignRoundRobin assigns jobs to assignees in turn. Failures are logged
// and counted.
func (im *Importer) AssignRoundRobin(ctx context.Context, jobs []cvat.Job, assignees []config.Assignee, sessions []string) (ok, failed int) {
	if len(assignees) == 0 {
		log.Info().Msg("No assignees configured, jobs left unassigned")
		return 0, 0
	}
	for i, job := range jobs {
		a := assignees[i%len(assignees)]
		if a.ID == 0 {
			continue
		}
		session := UnknownSession
		if i < len(sessions) {
			session = sessions[i]
		}
		if err := im.api.AssignJob(ctx, job.ID, a.ID); err != nil {
			log.Error().Err(err).Int("jobId", job.ID).Int("assignee", a.ID).Msg("Job assignment failed")
			failed++
			im.count(metrics.Failed)
			continue
		}
		log.Info().Int("jobId", job.ID).Str("session", session).Str("assignee", a.Name).Msg("Job assigned")
		ok++
		im.count(metrics.Success)
	}
	return ok, failed
}

// UploadDataset zips ds, uploads it to the task and waits for the platform
// to finish importing it.
func (im *Importer) UploadDataset(ctx context.Context, taskID int, ds *coco.Dataset) error {
	archive, err := coco.BuildArchive(ds)
	if err != nil {
		return err
	}
	log.Info().
		Int("taskId", taskID).
		Int("images", len(ds.Images)).
		Int("annotations", len(ds.Annotations)).
		Int("categories", len(ds.Categories)).
		Int("bytes", len(archive)).
		Msg("Uploading annotations")
	if err := im.api.UploadAnnotations(ctx, taskID, AnnotationFormat, archive); err != nil {
		return err
	}
	return im.api.WaitForRequest(ctx, taskID, importOperation, im.wait)
}

// JobMappings pairs jobs with the batch's sessions by position.
func JobMappings(jobs []cvat.Job, b *Batch) []report.JobMapping {
	var out []report.JobMapping
	for i, job := range jobs {
		if i >= len(b.Groups) {
			break
		}
		out = append(out, report.JobMapping{
			JobID:      job.ID,
			SessionID:  b.Groups[i].SessionID,
			StartFrame: job.StartFrame,
			StopFrame:  job.StopFrame,
			FrameCount: job.FrameCount(),
			ImageCount: len(b.Groups[i].Files),
		})
	}
	return out
}

// Labels converts configured labels to task label definitions.
func Labels(ls []config.Label) []cvat.Label {
	out := make([]cvat.Label, 0, len(ls))
	for _, l := range ls {
		out = append(out, cvat.Label{Name: l.Name, Color: l.Color})
	}
	return out
}

// LoadedSet indexes batch files for coco.Dataset.ForLoadedImages.
func (b *Batch) LoadedSet() map[string]bool {
	set := make(map[string]bool, len(b.Files))
	for _, f := range b.Files {
		set[f] = true
	}
	return set
}

func (im *Importer) count(name string) {
	if im.rec != nil {
		im.rec.Count(name)
	}
}

// ResolveMappings rebuilds the mapping of existing jobs from their frame
// metadata. Each job's session is the chunk of its first frame name; jobs
// whose metadata failed or whose names resolve to no chunk get an empty
// session id. jobs and metas must be index-aligned.
func ResolveMappings(jobs []cvat.Job, metas []platform.Result[*cvat.FrameMeta]) []report.JobMapping {
	out := make([]report.JobMapping, 0, len(jobs))
	for i, job := range jobs {
		m := report.JobMapping{
			JobID:      job.ID,
			StartFrame: job.StartFrame,
			StopFrame:  job.StopFrame,
			FrameCount: job.FrameCount(),
		}
		if i < len(metas) && metas[i].OK() && metas[i].Value != nil {
			m.ImageCount = len(metas[i].Value.Frames)
			if first, ok := metas[i].Value.FirstName(); ok {
				m.SessionID, _ = pathkey.ChunkID(first)
			}
		}
		out = append(out, m)
	}
	return out
}
