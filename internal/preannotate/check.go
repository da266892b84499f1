// Package preannotate inventories model-generated COCO bounding-box exports
// stored next to the frames, pushes them into unannotated jobs as rectangle
// shapes, and compares their coverage with human annotation progress.
package preannotate

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/coco"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/pathkey"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/s3util"
)

// BBoxSuffix marks a pre-annotation export.
const BBoxSuffix = "_bbox.json"

// maxReads bounds concurrent export downloads.
const maxReads = 10

// Report file names.
const (
	SummaryFile = "preannotation_summary.csv"
	DetailsFile = "preannotation_details.json"
	RecordsFile = "preannotation_records.json"
)

// FrameCount is the number of boxes on one exported image.
type FrameCount struct {
	ImageID         int    `json:"image_id"`
	FileName        string `json:"file_name"`
	AnnotationCount int    `json:"annotation_count"`
}

// ChunkSummary describes the export of one chunk.
type ChunkSummary struct {
	BBoxFile         string       `json:"bbox_file"`
	TotalFrames      int          `json:"total_frames"`
	AnnotatedFrames  int          `json:"annotated_frames"`
	TotalAnnotations int          `json:"total_annotations"`
	Frames           []FrameCount `json:"frames"`
}

// Details maps a chunk id to its export summary. It is the layout of
// preannotation_details.json.
type Details map[string]ChunkSummary

// Summarize counts frames and boxes in ds. Frames are ordered by image id.
func Summarize(key string, ds *coco.Dataset) ChunkSummary {
	perImage := make(map[int]int)
	for _, a := range ds.Annotations {
		perImage[a.ImageID]++
	}

	frames := make([]FrameCount, 0, len(ds.Images))
	for _, img := range ds.Images {
		frames = append(frames, FrameCount{
			ImageID:         img.ID,
			FileName:        img.FileName,
			AnnotationCount: perImage[img.ID],
		})
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].ImageID < frames[j].ImageID })

	return ChunkSummary{
		BBoxFile:         key,
		TotalFrames:      len(ds.Images),
		AnnotatedFrames:  ds.AnnotatedImages(),
		TotalAnnotations: len(ds.Annotations),
		Frames:           frames,
	}
}

// ChunkOf names the chunk an export belongs to, falling back to the key
// itself for exports outside the session layout.
func ChunkOf(key string) string {
	if id, ok := pathkey.ParseSessionID(key); ok {
		return id
	}
	return key
}

// Check lists every export under prefix and summarizes each by chunk.
// Unreadable exports are logged and left out. When two exports resolve to
// the same chunk the lexically first key wins.
func Check(ctx context.Context, client s3util.Client, bucket, prefix string, rec *metrics.Recorder) (Details, error) {
	keys, err := s3util.ListKeysWithSuffix(ctx, client, bucket, prefix, BBoxSuffix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	log.Info().Int("exports", len(keys)).Str("prefix", prefix).Msg("Pre-annotation exports found")

	summaries := make([]*ChunkSummary, len(keys))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxReads)
	for i, key := range keys {
		wg.Add(1)
		go func(idx int, k string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ds, err := s3util.GetJSON[coco.Dataset](ctx, client, bucket, k)
			if err != nil {
				log.Warn().Err(err).Str("key", k).Msg("Failed to read pre-annotation export")
				if rec != nil {
					rec.Count(metrics.Failed)
				}
				return
			}
			s := Summarize(k, &ds)
			summaries[idx] = &s
		}(i, key)
	}
	wg.Wait()

	details := make(Details, len(keys))
	for i, s := range summaries {
		if s == nil {
			continue
		}
		chunk := ChunkOf(keys[i])
		if _, dup := details[chunk]; dup {
			log.Warn().Str("chunk", chunk).Str("key", keys[i]).Msg("Duplicate export for chunk ignored")
			continue
		}
		details[chunk] = *s
		if rec != nil {
			rec.Count(metrics.Success)
		}
	}
	return details, nil
}

// SummaryHeader is the column list of preannotation_summary.csv.
var SummaryHeader = []string{"chunk_id", "bbox_file", "total_frames", "annotated_frames", "total_annotations"}

// SummaryRows renders d ordered by chunk id.
func (d Details) SummaryRows() [][]string {
	chunks := make([]string, 0, len(d))
	for c := range d {
		chunks = append(chunks, c)
	}
	sort.Strings(chunks)

	rows := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		s := d[c]
		rows = append(rows, []string{
			c,
			s.BBoxFile,
			strconv.Itoa(s.TotalFrames),
			strconv.Itoa(s.AnnotatedFrames),
			strconv.Itoa(s.TotalAnnotations),
		})
	}
	return rows
}

// Totals sums frames and boxes across chunks.
func (d Details) Totals() (frames, annotated, annotations int) {
	for _, s := range d {
		frames += s.TotalFrames
		annotated += s.AnnotatedFrames
		annotations += s.TotalAnnotations
	}
	return frames, annotated, annotations
}
