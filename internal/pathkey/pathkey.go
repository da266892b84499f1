// Package pathkey derives session, chunk and basename identifiers from
// object-storage keys.
//
// Recorder uploads follow the layout
//
//	<device>/session_<date>_<time>_<micros>/<chunk>/down/labels/<dir>/frame_00089.jpg
//
// where the session directory plus the chunk directory identify one unit of
// annotation work. Older exports flattened the same information into the
// file name, e.g. 461ff0b4__3748_session_20251210_221855_834176_0002_000000.jpg.
package pathkey

import (
	"path"
	"strings"
)

const (
	sessionPrefix  = "session_"
	hashSeparator  = "__"
	labelsSegment  = "labels"
	bboxSuffix     = "_bbox.json"
	manifestSuffix = ".json"
)

// imageExtensions lists the frame formats produced by the recorder.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ParseSessionID returns the chunk-level session identifier of key: the first
// path segment starting with "session_" joined with the following segment,
// e.g. "session_20260121_200123_268461_0001". When the session segment is the
// last one it is returned alone. ok is false when no segment matches.
func ParseSessionID(key string) (id string, ok bool) {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		if !strings.HasPrefix(part, sessionPrefix) {
			continue
		}
		if i+1 < len(parts) {
			return part + "_" + parts[i+1], true
		}
		return part, true
	}
	return "", false
}

// SessionRoot returns the bare "session_<id>" directory of key, without the
// chunk number. Manifest completeness is tracked at this level.
func SessionRoot(key string) (string, bool) {
	for _, part := range strings.Split(key, "/") {
		if strings.HasPrefix(part, sessionPrefix) {
			return part, true
		}
	}
	return "", false
}

// ParseBasename returns the last path segment of key with an optional
// "<hash>__" prefix removed. Only the first separator is consumed.
func ParseBasename(key string) string {
	base := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		base = key[idx+1:]
	}
	if _, after, found := strings.Cut(base, hashSeparator); found {
		return after
	}
	return base
}

// LegacyChunkID extracts the chunk identifier from the flattened file names
// of older exports: the first six underscore-separated fields of the
// stripped basename, e.g. "3748_session_20251210_221855_834176_0002".
func LegacyChunkID(key string) (string, bool) {
	return legacyFields(key, 6)
}

// LegacySessionID is the session-level variant of LegacyChunkID used by the
// HumanSignal export, which keeps the first four fields.
func LegacySessionID(key string) (string, bool) {
	return legacyFields(key, 4)
}

func legacyFields(key string, n int) (string, bool) {
	base := ParseBasename(key)
	if !strings.Contains(base, "session") {
		return "", false
	}
	parts := strings.Split(base, "_")
	if len(parts) < n {
		return "", false
	}
	return strings.Join(parts[:n], "_"), true
}

// ChunkID resolves the chunk a key belongs to, trying the directory layout
// first and the legacy flattened name second.
func ChunkID(key string) (string, bool) {
	if id, ok := ParseSessionID(key); ok {
		return id, true
	}
	return LegacyChunkID(key)
}

// LabelsPrefix returns the key prefix up to and including the "labels/"
// directory, where the pre-annotation exports for a chunk live.
func LabelsPrefix(key string) (string, bool) {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		if part == labelsSegment && i > 0 {
			return strings.Join(parts[:i+1], "/") + "/", true
		}
	}
	return "", false
}

// IsImage reports whether key names a frame image.
func IsImage(key string) bool {
	return imageExtensions[strings.ToLower(path.Ext(key))]
}

// IsManifest reports whether key names a JSON sidecar. Any JSON file under a
// session marks the upload as finished.
func IsManifest(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), manifestSuffix)
}

// IsBBoxExport reports whether key is a COCO pre-annotation export.
func IsBBoxExport(key string) bool {
	return strings.HasSuffix(key, bboxSuffix)
}

// IsDirectory reports whether key is a zero-byte "folder" marker.
func IsDirectory(key string) bool {
	return strings.HasSuffix(key, "/")
}
