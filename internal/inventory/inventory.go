// Package inventory groups the object keys of a bucket prefix into recorder
// sessions and decides which sessions are complete enough to annotate.
//
// A session is complete only when a JSON manifest exists somewhere under
// its session directory. Recorders upload the manifest last, so sessions
// without one are partially uploaded and are excluded entirely.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/pathkey"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/s3util"
)

// Session is one chunk of a recorder session.
type Session struct {
	// ID is the chunk-level identifier, e.g. session_20260121_200123_268461_0001.
	ID string
	// Root is the bare session directory shared by all chunks.
	Root        string
	Images      []string
	HasManifest bool
}

// Complete reports whether the session may be reconciled.
func (s *Session) Complete() bool {
	return s.HasManifest
}

// Inventory is the grouped listing of one prefix.
type Inventory struct {
	Bucket   string
	Prefix   string
	Sessions map[string]*Session
	// Unresolved holds keys with no session directory; they never take part
	// in reconciliation.
	Unresolved []string
	TotalKeys  int
}

// Scan lists every key under prefix and groups it. Listing errors propagate.
func Scan(ctx context.Context, client s3util.Lister, bucket, prefix string) (*Inventory, error) {
	keys, err := s3util.ListKeys(ctx, client, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s/%s: %w", bucket, prefix, err)
	}
	inv := Build(keys)
	inv.Bucket = bucket
	inv.Prefix = prefix

	complete, incomplete := inv.Split()
	log.Info().
		Int("keys", inv.TotalKeys).
		Int("completeSessions", len(complete)).
		Int("incompleteSessions", len(incomplete)).
		Int("unresolved", len(inv.Unresolved)).
		Msg("Cloud inventory scanned")
	for i, s := range incomplete {
		if i == 5 {
			log.Info().Int("more", len(incomplete)-5).Msg("Further incomplete sessions skipped")
			break
		}
		log.Info().Str("session", s.ID).Int("images", len(s.Images)).Msg("Skipping session without manifest")
	}
	if len(inv.Unresolved) > 0 {
		log.Debug().Int("count", len(inv.Unresolved)).Strs("sample", sample(inv.Unresolved, 5)).Msg("Keys without a session directory")
	}
	return inv, nil
}

// Build groups keys without touching storage. Manifest presence is tracked
// per session directory and applies to every chunk below it.
func Build(keys []string) *Inventory {
	inv := &Inventory{Sessions: make(map[string]*Session)}
	manifests := make(map[string]bool)

	for _, key := range keys {
		if pathkey.IsDirectory(key) {
			continue
		}
		inv.TotalKeys++

		root, ok := pathkey.SessionRoot(key)
		if !ok {
			inv.Unresolved = append(inv.Unresolved, key)
			continue
		}
		if pathkey.IsManifest(key) {
			manifests[root] = true
			continue
		}
		if !pathkey.IsImage(key) {
			continue
		}

		id, _ := pathkey.ParseSessionID(key)
		s, ok := inv.Sessions[id]
		if !ok {
			s = &Session{ID: id, Root: root}
			inv.Sessions[id] = s
		}
		s.Images = append(s.Images, key)
	}

	for _, s := range inv.Sessions {
		s.HasManifest = manifests[s.Root]
		sort.Strings(s.Images)
	}
	return inv
}

// Split returns complete and incomplete sessions, each sorted by ID.
func (inv *Inventory) Split() (complete, incomplete []*Session) {
	for _, id := range inv.sortedIDs() {
		s := inv.Sessions[id]
		if s.Complete() {
			complete = append(complete, s)
		} else {
			incomplete = append(incomplete, s)
		}
	}
	return complete, incomplete
}

// Basenames maps each image basename of the complete sessions to the first
// full key seen for it, in session then key order.
func (inv *Inventory) Basenames() map[string]string {
	out := make(map[string]string)
	complete, _ := inv.Split()
	for _, s := range complete {
		for _, key := range s.Images {
			base := pathkey.ParseBasename(key)
			if _, seen := out[base]; !seen {
				out[base] = key
			}
		}
	}
	return out
}

// BasenameSet is the key set of Basenames.
func (inv *Inventory) BasenameSet() map[string]struct{} {
	paths := inv.Basenames()
	set := make(map[string]struct{}, len(paths))
	for b := range paths {
		set[b] = struct{}{}
	}
	return set
}

func (inv *Inventory) sortedIDs() []string {
	ids := make([]string, 0, len(inv.Sessions))
	for id := range inv.Sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sample(keys []string, n int) []string {
	if len(keys) <= n {
		return keys
	}
	return keys[:n]
}
