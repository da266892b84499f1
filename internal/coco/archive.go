package coco

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zip"
)

// ArchiveEntry is where the platform's COCO importer expects the dataset.
const ArchiveEntry = "annotations/instances_default.json"

// BuildArchive zips the dataset for a task annotation import.
func BuildArchive(d *Dataset) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal dataset: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: ArchiveEntry, Method: zip.Deflate})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", ArchiveEntry, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("write %s: %w", ArchiveEntry, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
