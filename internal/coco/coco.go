// Package coco reads COCO detection datasets and converts them for the
// annotation platform: zipped task imports and per-job rectangle shapes.
package coco

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/pathkey"
)

// Dataset is a COCO detection file. Info and Licenses are carried through
// untouched.
type Dataset struct {
	Info        json.RawMessage `json:"info,omitempty"`
	Licenses    json.RawMessage `json:"licenses,omitempty"`
	Images      []Image         `json:"images"`
	Annotations []Annotation    `json:"annotations"`
	Categories  []Category      `json:"categories"`
}

type Image struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Annotation is one object. BBox is [x, y, width, height].
type Annotation struct {
	ID           int             `json:"id"`
	ImageID      int             `json:"image_id"`
	CategoryID   int             `json:"category_id"`
	BBox         []float64       `json:"bbox"`
	Area         float64         `json:"area,omitempty"`
	IsCrowd      int             `json:"iscrowd"`
	Segmentation json.RawMessage `json:"segmentation,omitempty"`
	Attributes   json.RawMessage `json:"attributes,omitempty"`
}

type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// ReadFile loads a dataset from disk.
func ReadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &ds, nil
}

// SortedCategories returns categories ordered by id.
func (d *Dataset) SortedCategories() []Category {
	cats := make([]Category, len(d.Categories))
	copy(cats, d.Categories)
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
	return cats
}

// Labels are the task labels for the dataset's categories, in id order, so
// label positions match the remapped category ids.
func (d *Dataset) Labels(color string) []cvat.Label {
	cats := d.SortedCategories()
	labels := make([]cvat.Label, len(cats))
	for i, c := range cats {
		labels[i] = cvat.Label{Name: c.Name, Color: color}
	}
	return labels
}

// ForLoadedImages rewrites image file names with rename, keeps only images
// whose new name is in loaded (all images when loaded is nil), keeps only
// their annotations, and remaps category ids to 1..n in id order. Unknown
// category ids become id+1.
func (d *Dataset) ForLoadedImages(rename func(string) string, loaded map[string]bool) *Dataset {
	out := &Dataset{Info: d.Info, Licenses: d.Licenses}

	keep := make(map[int]bool)
	for _, img := range d.Images {
		name := rename(img.FileName)
		if loaded != nil && !loaded[name] {
			continue
		}
		img.FileName = name
		out.Images = append(out.Images, img)
		keep[img.ID] = true
	}

	remap := make(map[int]int)
	for i, c := range d.SortedCategories() {
		remap[c.ID] = i + 1
		out.Categories = append(out.Categories, Category{ID: i + 1, Name: c.Name, Supercategory: c.Supercategory})
	}

	for _, a := range d.Annotations {
		if !keep[a.ImageID] {
			continue
		}
		if id, ok := remap[a.CategoryID]; ok {
			a.CategoryID = id
		} else {
			a.CategoryID++
		}
		out.Annotations = append(out.Annotations, a)
	}
	return out
}

// FrameShapes converts bounding boxes to rectangle shapes. frames maps a
// COCO image id to a task frame number; labelMap renames categories before
// they are looked up in labelIDs. Annotations whose image has no frame or
// whose label is unknown to the task are dropped and reported in missing.
func (d *Dataset) FrameShapes(frames map[int]int, labelMap map[string]string, labelIDs map[string]int) (shapes []cvat.Shape, missing []string) {
	names := make(map[int]string, len(d.Categories))
	for _, c := range d.Categories {
		names[c.ID] = c.Name
	}
	seen := make(map[string]bool)

	for _, a := range d.Annotations {
		name, ok := names[a.CategoryID]
		if !ok || len(a.BBox) < 4 {
			continue
		}
		if mapped, ok := labelMap[name]; ok {
			name = mapped
		}
		labelID, ok := labelIDs[name]
		if !ok {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			continue
		}
		frame, ok := frames[a.ImageID]
		if !ok {
			continue
		}
		shapes = append(shapes, cvat.Shape{
			Type:       "rectangle",
			Frame:      frame,
			LabelID:    labelID,
			Points:     Rectangle(a.BBox),
			Source:     "auto",
			Attributes: []cvat.Attribute{},
		})
	}
	return shapes, missing
}

// Rectangle converts [x, y, w, h] to [x1, y1, x2, y2].
func Rectangle(bbox []float64) []float64 {
	x, y, w, h := bbox[0], bbox[1], bbox[2], bbox[3]
	return []float64{x, y, x + w, y + h}
}

// FrameMapping matches job frames to dataset images by file name, falling
// back to the stripped basename. Frame i of the job is task frame
// startFrame+i; unnamed frames match nothing.
func (d *Dataset) FrameMapping(frameNames []string, startFrame int) map[int]int {
	byName := make(map[string]int, len(d.Images))
	byBase := make(map[string]int, len(d.Images))
	for _, img := range d.Images {
		byName[img.FileName] = img.ID
		base := pathkey.ParseBasename(img.FileName)
		if _, dup := byBase[base]; !dup {
			byBase[base] = img.ID
		}
	}

	out := make(map[int]int)
	for i, name := range frameNames {
		if name == "" {
			continue
		}
		id, ok := byName[name]
		if !ok {
			id, ok = byBase[pathkey.ParseBasename(name)]
		}
		if ok {
			out[id] = startFrame + i
		}
	}
	return out
}

// AnnotatedImages is the number of distinct images with at least one
// annotation.
func (d *Dataset) AnnotatedImages() int {
	ids := make(map[int]struct{})
	for _, a := range d.Annotations {
		ids[a.ImageID] = struct{}{}
	}
	return len(ids)
}
