// Package roi manages user-drawn regions of interest in image coordinates.
package roi

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"stackview/internal/logging"
	"stackview/internal/viewport"
	"stackview/pkg/geometry"
)

var (
	// ErrNotFound is returned for an unknown ROI id.
	ErrNotFound = errors.New("roi not found")
	// ErrInvalidShape is returned when a shape cannot enclose any area.
	ErrInvalidShape = errors.New("invalid roi shape")
)

// Kind is the shape of an ROI.
type Kind int

const (
	KindRect Kind = iota
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindRect:
		return "rect"
	case KindPolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Shape is the geometry of an ROI before it is registered.
type Shape struct {
	Kind     Kind
	Vertices []geometry.Point2D
}

// RectShape returns a rectangular shape.
func RectShape(r geometry.Rect) Shape {
	return Shape{Kind: KindRect, Vertices: r.Corners()}
}

// PolygonShape returns a polygon with the given vertices in order.
func PolygonShape(vertices []geometry.Point2D) Shape {
	vs := make([]geometry.Point2D, len(vertices))
	copy(vs, vertices)
	return Shape{Kind: KindPolygon, Vertices: vs}
}

func (s Shape) validate() error {
	switch s.Kind {
	case KindRect:
		if len(s.Vertices) != 4 || geometry.BoundingBox(s.Vertices).Empty() {
			return fmt.Errorf("%w: rectangle has no area", ErrInvalidShape)
		}
	case KindPolygon:
		if len(s.Vertices) < 3 {
			return fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrInvalidShape, len(s.Vertices))
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidShape, int(s.Kind))
	}
	return nil
}

// ROI is a registered region. Values returned by Manager are copies.
type ROI struct {
	ID       uuid.UUID
	Kind     Kind
	Vertices []geometry.Point2D
	Selected bool
}

// Bounds returns the axis-aligned bounding box of the ROI.
func (r ROI) Bounds() geometry.Rect {
	return geometry.BoundingBox(r.Vertices)
}

// Contains hit-tests an image-space point.
func (r ROI) Contains(p geometry.Point2D) bool {
	if r.Kind == KindRect {
		return r.Bounds().Contains(p)
	}
	return geometry.PointInPolygon(p, r.Vertices)
}

func (r ROI) clone() ROI {
	r.Vertices = append([]geometry.Point2D(nil), r.Vertices...)
	return r
}

// Overlay is an ROI outline in viewport pixels.
type Overlay struct {
	ID       uuid.UUID
	Kind     Kind
	Points   []geometry.Point2D
	Selected bool
}

// Manager owns the ROI set. It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	rois     map[uuid.UUID]*ROI
	order    []uuid.UUID // creation order
	selected uuid.UUID
	logger   *slog.Logger
}

// NewManager creates an empty manager. The logger may be nil.
func NewManager(logger *slog.Logger) *Manager {
	logger = logging.OrDiscard(logger)
	return &Manager{
		rois:   make(map[uuid.UUID]*ROI),
		logger: logger,
	}
}

// Create registers a shape and returns its id.
func (m *Manager) Create(s Shape) (uuid.UUID, error) {
	if err := s.validate(); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rois[id] = &ROI{
		ID:       id,
		Kind:     s.Kind,
		Vertices: append([]geometry.Point2D(nil), s.Vertices...),
	}
	m.order = append(m.order, id)
	m.logger.Debug("roi created", "id", id, "kind", s.Kind, "vertices", len(s.Vertices))
	return id, nil
}

// Delete removes an ROI.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rois[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.rois, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.selected == id {
		m.selected = uuid.Nil
	}
	return nil
}

// Select hit-tests p and marks the most recently created ROI under it as
// selected. ok is false, and the selection cleared, when nothing is hit.
func (m *Manager) Select(p geometry.Point2D) (id uuid.UUID, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, found := m.rois[m.selected]; found {
		prev.Selected = false
	}
	m.selected = uuid.Nil

	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.rois[m.order[i]]
		if r.Contains(p) {
			r.Selected = true
			m.selected = r.ID
			return r.ID, true
		}
	}
	return uuid.Nil, false
}

// HitTest returns the most recently created ROI containing p without
// changing the selection.
func (m *Manager) HitTest(p geometry.Point2D) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if r := m.rois[m.order[i]]; r.Contains(p) {
			return r.ID, true
		}
	}
	return uuid.Nil, false
}

// Selected returns the selected ROI id, if any.
func (m *Manager) Selected() (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected, m.selected != uuid.Nil
}

// Move translates an ROI by delta image pixels.
func (m *Manager) Move(id uuid.UUID, delta geometry.Point2D) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rois[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Vertices = geometry.TranslatePoints(r.Vertices, delta)
	return nil
}

// Get returns a copy of one ROI.
func (m *Manager) Get(id uuid.UUID) (ROI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rois[id]
	if !ok {
		return ROI{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.clone(), nil
}

// List returns copies of all ROIs in creation order.
func (m *Manager) List() []ROI {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ROI, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rois[id].clone())
	}
	return out
}

// Len returns the number of ROIs.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Clear removes every ROI.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) > 0 {
		m.logger.Debug("rois cleared", "count", len(m.order))
	}
	m.rois = make(map[uuid.UUID]*ROI)
	m.order = nil
	m.selected = uuid.Nil
}

// Overlays maps every ROI outline into viewport pixels through t.
func (m *Manager) Overlays(t viewport.Transform) []Overlay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Overlay, 0, len(m.order))
	for _, id := range m.order {
		r := m.rois[id]
		pts := make([]geometry.Point2D, len(r.Vertices))
		for i, v := range r.Vertices {
			pts[i] = t.ToViewport(v)
		}
		out = append(out, Overlay{ID: r.ID, Kind: r.Kind, Points: pts, Selected: r.Selected})
	}
	return out
}
