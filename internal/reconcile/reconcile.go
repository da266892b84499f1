// Package reconcile compares the images available in object storage with
// the images loaded and annotated on the platform.
package reconcile

import (
	"fmt"
	"strings"
)

// Result is the outcome of one reconciliation. Lists are sorted so repeated
// runs over the same inputs produce identical reports.
type Result struct {
	// NewImages are cloud basenames never attached to any task. Nil when the
	// run had no cloud inventory.
	NewImages          []string
	Annotated          []string
	LoadedNotAnnotated []string

	CloudTotal  int
	LoadedTotal int
	HasCloud    bool
}

// Reconcile computes new and not-yet-annotated images. A nil cloud set means
// object storage was not consulted and only platform state is reported.
func Reconcile(cloud, loaded, annotated Set) Result {
	r := Result{
		Annotated:          annotated.Sorted(),
		LoadedNotAnnotated: loaded.Minus(annotated).Sorted(),
		LoadedTotal:        len(loaded),
	}
	if cloud != nil {
		r.HasCloud = true
		r.CloudTotal = len(cloud)
		r.NewImages = cloud.Minus(loaded).Sorted()
	}
	return r
}

// CloudSummary is the report summary when object storage was scanned.
type CloudSummary struct {
	CloudTotal       int `json:"cloud_total"`
	CVATLoaded       int `json:"cvat_loaded"`
	CVATAnnotated    int `json:"cvat_annotated"`
	CVATNotAnnotated int `json:"cvat_not_annotated"`
	NewImages        int `json:"new_images"`
}

// PlatformSummary is the report summary without object storage.
type PlatformSummary struct {
	CVATTotal        int `json:"cvat_total"`
	CVATAnnotated    int `json:"cvat_annotated"`
	CVATNotAnnotated int `json:"cvat_not_annotated"`
}

// Report is the JSON document written by the status command.
type Report struct {
	Summary            interface{} `json:"summary"`
	NewImages          []string    `json:"new_images,omitempty"`
	AnnotatedImages    []string    `json:"annotated_images"`
	NotAnnotatedImages []string    `json:"not_annotated_images"`
}

// Report renders r in the status report layout.
func (r Result) Report() Report {
	rep := Report{
		AnnotatedImages:    nonNil(r.Annotated),
		NotAnnotatedImages: nonNil(r.LoadedNotAnnotated),
	}
	if r.HasCloud {
		rep.Summary = CloudSummary{
			CloudTotal:       r.CloudTotal,
			CVATLoaded:       r.LoadedTotal,
			CVATAnnotated:    len(r.Annotated),
			CVATNotAnnotated: len(r.LoadedNotAnnotated),
			NewImages:        len(r.NewImages),
		}
		rep.NewImages = nonNil(r.NewImages)
	} else {
		rep.Summary = PlatformSummary{
			CVATTotal:        r.LoadedTotal,
			CVATAnnotated:    len(r.Annotated),
			CVATNotAnnotated: len(r.LoadedNotAnnotated),
		}
	}
	return rep
}

// NewImageKeys resolves each new basename to its full storage key. Basenames
// missing from paths fall back to prefix + basename.
func (r Result) NewImageKeys(paths map[string]string, prefix string) []string {
	keys := make([]string, 0, len(r.NewImages))
	for _, b := range r.NewImages {
		if full, ok := paths[b]; ok {
			keys = append(keys, full)
			continue
		}
		keys = append(keys, prefix+b)
	}
	return keys
}

// String is a one-line summary for logs.
func (r Result) String() string {
	var sb strings.Builder
	if r.HasCloud {
		fmt.Fprintf(&sb, "cloud=%d new=%d ", r.CloudTotal, len(r.NewImages))
	}
	fmt.Fprintf(&sb, "loaded=%d annotated=%d not_annotated=%d", r.LoadedTotal, len(r.Annotated), len(r.LoadedNotAnnotated))
	return sb.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
