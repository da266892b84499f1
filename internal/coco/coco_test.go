package coco

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

func sample() *Dataset {
	return &Dataset{
		Images: []Image{
			{ID: 1, FileName: "images/aa__3748_session_1_2_f1.jpg"},
			{ID: 2, FileName: "images/bb__3748_session_1_2_f2.jpg"},
			{ID: 3, FileName: "images/cc__3748_session_1_2_f3.jpg"},
		},
		Annotations: []Annotation{
			{ID: 1, ImageID: 1, CategoryID: 0, BBox: []float64{10, 20, 30, 40}},
			{ID: 2, ImageID: 2, CategoryID: 5, BBox: []float64{1, 1, 1, 1}},
			{ID: 3, ImageID: 3, CategoryID: 0, BBox: []float64{0, 0, 2, 2}},
		},
		Categories: []Category{
			{ID: 5, Name: "right_hand"},
			{ID: 0, Name: "left_hand"},
		},
	}
}

func TestLabelsInCategoryOrder(t *testing.T) {
	labels := sample().Labels("#ff00ff")
	if len(labels) != 2 || labels[0].Name != "left_hand" || labels[1].Name != "right_hand" {
		t.Errorf("unexpected labels %+v", labels)
	}
}

func TestForLoadedImages(t *testing.T) {
	rename := func(name string) string {
		return "raw/images/" + filepath.Base(name)[4:]
	}
	loaded := map[string]bool{
		"raw/images/3748_session_1_2_f1.jpg": true,
		"raw/images/3748_session_1_2_f2.jpg": true,
	}

	out := sample().ForLoadedImages(rename, loaded)

	if len(out.Images) != 2 || out.Images[0].FileName != "raw/images/3748_session_1_2_f1.jpg" {
		t.Fatalf("unexpected images %+v", out.Images)
	}
	if len(out.Annotations) != 2 {
		t.Fatalf("expected annotations of loaded images only, got %+v", out.Annotations)
	}
	if out.Annotations[0].CategoryID != 1 || out.Annotations[1].CategoryID != 2 {
		t.Errorf("expected categories remapped to 1..n, got %d and %d", out.Annotations[0].CategoryID, out.Annotations[1].CategoryID)
	}
	if out.Categories[0].ID != 1 || out.Categories[0].Name != "left_hand" {
		t.Errorf("unexpected categories %+v", out.Categories)
	}
}

func TestFrameShapes(t *testing.T) {
	ds := sample()
	frames := ds.FrameMapping([]string{
		"raw/session_1/0002/down/labels/aa__3748_session_1_2_f1.jpg",
		"raw/session_1/0002/down/labels/3748_session_1_2_f2.jpg",
	}, 100)
	if frames[1] != 100 || frames[2] != 101 {
		t.Fatalf("unexpected frame mapping %v", frames)
	}

	shapes, missing := ds.FrameShapes(frames,
		map[string]string{"left_hand": "Left hand", "right_hand": "Right hand"},
		map[string]int{"Left hand": 11})

	if len(shapes) != 1 {
		t.Fatalf("expected one shape, got %+v", shapes)
	}
	s := shapes[0]
	if s.Type != "rectangle" || s.Frame != 100 || s.LabelID != 11 {
		t.Errorf("unexpected shape %+v", s)
	}
	want := []float64{10, 20, 40, 60}
	for i := range want {
		if s.Points[i] != want[i] {
			t.Errorf("points = %v, want %v", s.Points, want)
			break
		}
	}
	if len(missing) != 1 || missing[0] != "Right hand" {
		t.Errorf("expected Right hand reported missing, got %v", missing)
	}
}

func TestBuildArchive(t *testing.T) {
	data, err := BuildArchive(sample())
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != ArchiveEntry {
		t.Fatalf("unexpected entries %v", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)

	var ds Dataset
	if err := json.Unmarshal(body, &ds); err != nil {
		t.Fatal(err)
	}
	if len(ds.Images) != 3 || ds.AnnotatedImages() != 3 {
		t.Errorf("unexpected dataset %+v", ds)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	os.WriteFile(path, []byte(`{"images":[{"id":1,"file_name":"a.jpg"}],"annotations":[],"categories":[{"id":1,"name":"x"}],"info":{"v":1}}`), 0o644)
	ds, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Images) != 1 || string(ds.Info) != `{"v":1}` {
		t.Errorf("unexpected dataset %+v", ds)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFrameMappingKeepsPositionsAcrossUnnamedFrames(t *testing.T) {
	ds := sample()
	frames := ds.FrameMapping([]string{
		"raw/session_1/0002/down/labels/3748_session_1_2_f1.jpg",
		"",
		"raw/session_1/0002/down/labels/3748_session_1_2_f3.jpg",
	}, 10)
	if len(frames) != 2 || frames[1] != 10 || frames[3] != 12 {
		t.Errorf("unexpected frame mapping %v", frames)
	}
}
