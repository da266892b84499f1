// Package importer creates platform tasks from object-storage files, one job
// per recorder chunk, and uploads HumanSignal COCO annotations into them.
package importer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/coco"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/pathkey"
)

// UnknownSession groups keys whose chunk cannot be resolved.
const UnknownSession = "unknown"

// Group is the files of one planned job.
type Group struct {
	SessionID string
	Files     []string
}

// Batch is a planned data attachment: the server files and their split
// into jobs.
type Batch struct {
	Files  []string
	Groups []Group
}

// Mapping is the job_file_mapping of the batch.
func (b *Batch) Mapping() [][]string {
	out := make([][]string, len(b.Groups))
	for i, g := range b.Groups {
		out[i] = g.Files
	}
	return out
}

// SessionIDs lists group ids in job order.
func (b *Batch) SessionIDs() []string {
	ids := make([]string, len(b.Groups))
	for i, g := range b.Groups {
		ids[i] = g.SessionID
	}
	return ids
}

// MappingError reports job_file_mapping entries absent from server_files.
// The platform rejects such a request, so it is never sent.
type MappingError struct {
	Missing []string
}

func (e *MappingError) Error() string {
	sample := e.Missing
	if len(sample) > 10 {
		sample = sample[:10]
	}
	return fmt.Sprintf("%d files in job_file_mapping are not in server_files: %s", len(e.Missing), strings.Join(sample, ", "))
}

// Validate checks that every mapped file is also a server file. Server files
// outside any job only produce a warning.
func (b *Batch) Validate() error {
	server := make(map[string]bool, len(b.Files))
	for _, f := range b.Files {
		server[f] = true
	}
	mapped := make(map[string]bool)
	var missing []string
	for _, g := range b.Groups {
		for _, f := range g.Files {
			if mapped[f] {
				continue
			}
			mapped[f] = true
			if !server[f] {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MappingError{Missing: missing}
	}

	extra := 0
	for _, f := range b.Files {
		if !mapped[f] {
			extra++
		}
	}
	if extra > 0 {
		log.Warn().Int("files", extra).Msg("Server files not assigned to any job")
	}
	log.Info().Int("serverFiles", len(b.Files)).Int("jobs", len(b.Groups)).Msg("Job file mapping is consistent")
	return nil
}

// GroupKeys splits storage keys into one group per chunk, ordered by chunk
// id. Keys keep their input order within a group. Unresolvable keys share
// the UnknownSession group.
func GroupKeys(keys []string) *Batch {
	byID := make(map[string][]string)
	for _, k := range keys {
		id, ok := pathkey.ChunkID(k)
		if !ok {
			id = UnknownSession
		}
		byID[id] = append(byID[id], k)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b := &Batch{}
	for _, id := range ids {
		b.Groups = append(b.Groups, Group{SessionID: id, Files: byID[id]})
		b.Files = append(b.Files, byID[id]...)
	}
	return b
}

// GroupDataset plans the attachment of a HumanSignal export. Each image maps
// to prefix + its stripped basename and is grouped by the legacy session id
// of its file name. A path shared by several sessions stays in the first
// session in id order. Images without a session id are left out.
func GroupDataset(ds *coco.Dataset, prefix string) *Batch {
	bySession := make(map[string][]string)
	for _, img := range ds.Images {
		id, ok := pathkey.LegacySessionID(img.FileName)
		if !ok {
			continue
		}
		bySession[id] = append(bySession[id], CloudPath(prefix, img.FileName))
	}

	ids := make([]string, 0, len(bySession))
	for id := range bySession {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b := &Batch{}
	owner := make(map[string]string)
	for _, id := range ids {
		var files []string
		for _, p := range bySession[id] {
			if _, taken := owner[p]; taken {
				continue
			}
			owner[p] = id
			files = append(files, p)
			b.Files = append(b.Files, p)
		}
		if len(files) > 0 {
			b.Groups = append(b.Groups, Group{SessionID: id, Files: files})
		}
	}
	return b
}

// CloudPath is the storage key of an exported image file name.
func CloudPath(prefix, fileName string) string {
	return prefix + pathkey.ParseBasename(fileName)
}
