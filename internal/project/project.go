// Package project provides viewer session files: which stack was open, the
// plane being shown, the zoom history and the regions of interest.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stackview/internal/roi"
	"stackview/pkg/geometry"
)

// Extension is the session file extension.
const Extension = ".svsession"

// CurrentVersion is the session format version written by Save.
const CurrentVersion = 1

// File represents a session file.
type File struct {
	Version  int       `json:"version"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// ImagePath is relative to the session file when possible.
	ImagePath string `json:"image"`

	Frame   int `json:"frame"`
	Channel int `json:"channel"`

	// Zoom holds the zoom history, outermost first, in image pixels.
	Zoom []geometry.Rect `json:"zoom,omitempty"`

	Regions []Region `json:"regions,omitempty"`
}

// Region is a persisted ROI.
type Region struct {
	Kind     string             `json:"kind"`
	Vertices []geometry.Point2D `json:"vertices"`
}

// New creates an empty session.
func New() *File {
	now := time.Now()
	return &File{
		Version:  CurrentVersion,
		Created:  now,
		Modified: now,
	}
}

// Load loads a session from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	if f.Version < 1 || f.Version > CurrentVersion {
		return nil, fmt.Errorf("session %s: unsupported version %d", path, f.Version)
	}
	return &f, nil
}

// Save writes the session to path.
func (p *File) Save(path string) error {
	p.Modified = time.Now()
	if p.Version == 0 {
		p.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SetImage records imagePath relative to the session file at sessionPath.
func (p *File) SetImage(sessionPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(sessionPath), imagePath)
	if err != nil {
		p.ImagePath = imagePath
	} else {
		p.ImagePath = rel
	}
	p.Modified = time.Now()
}

// GetImagePath returns the absolute path to the image.
func (p *File) GetImagePath(sessionPath string) string {
	if p.ImagePath == "" {
		return ""
	}
	if filepath.IsAbs(p.ImagePath) {
		return p.ImagePath
	}
	return filepath.Join(filepath.Dir(sessionPath), p.ImagePath)
}

// SetRegions records rois.
func (p *File) SetRegions(rois []roi.ROI) {
	p.Regions = p.Regions[:0]
	for _, r := range rois {
		p.Regions = append(p.Regions, Region{
			Kind:     r.Kind.String(),
			Vertices: append([]geometry.Point2D(nil), r.Vertices...),
		})
	}
}

// Shapes converts the persisted regions back into ROI shapes.
func (p *File) Shapes() ([]roi.Shape, error) {
	shapes := make([]roi.Shape, 0, len(p.Regions))
	for i, r := range p.Regions {
		switch r.Kind {
		case roi.KindRect.String():
			shapes = append(shapes, roi.RectShape(geometry.BoundingBox(r.Vertices)))
		case roi.KindPolygon.String():
			shapes = append(shapes, roi.PolygonShape(r.Vertices))
		default:
			return nil, fmt.Errorf("region %d: unknown kind %q", i, r.Kind)
		}
	}
	return shapes, nil
}
