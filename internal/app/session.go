package app

import (
	"errors"
	"fmt"

	"stackview/internal/project"
	"stackview/internal/viewport"
	"stackview/pkg/geometry"
)

// ErrNoSource is returned when an operation needs an open file.
var ErrNoSource = errors.New("no file open")

// ErrNoSelection is returned when an operation needs a selected region.
var ErrNoSelection = errors.New("no region selected")

// ViewHistory returns the zoom history, outermost first.
func (s *State) ViewHistory() []geometry.Rect {
	var entries []geometry.Rect
	s.withView(func(v *viewport.Viewport) { entries = v.Stack().Entries() })
	return entries
}

// Session captures the open file, current plane, zoom history and regions
// as a session file to be written at sessionPath.
func (s *State) Session(sessionPath string) (*project.File, error) {
	path := s.Path()
	fs := s.Frames()
	if path == "" || fs == nil {
		return nil, ErrNoSource
	}
	f := project.New()
	f.SetImage(sessionPath, path)
	k := fs.Current()
	f.Frame, f.Channel = k.Frame, k.Channel
	f.Zoom = s.ViewHistory()
	f.SetRegions(s.rois.List())
	return f, nil
}

// SaveSession writes the current session to path.
func (s *State) SaveSession(path string) error {
	f, err := s.Session(path)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("session saved", "path", path)
	return nil
}

// RestoreSession reopens the file a session refers to and reapplies its
// plane, zoom history and regions. Zoom entries that no longer fit the
// viewport are skipped.
func (s *State) RestoreSession(path string) error {
	f, err := project.Load(path)
	if err != nil {
		return err
	}
	shapes, err := f.Shapes()
	if err != nil {
		return err
	}
	if err := s.OpenFile(f.GetImagePath(path)); err != nil {
		return err
	}
	if err := s.SetChannel(f.Channel); err != nil {
		return fmt.Errorf("restore channel: %w", err)
	}
	if err := s.SetFrame(f.Frame); err != nil {
		return fmt.Errorf("restore frame: %w", err)
	}
	for _, r := range f.Zoom {
		if !s.ZoomTo(r) {
			s.logger.Warn("skipping zoom entry", "rect", r)
		}
	}
	for _, shape := range shapes {
		if _, err := s.rois.Create(shape); err != nil {
			return fmt.Errorf("restore region: %w", err)
		}
	}
	s.logger.Info("session restored", "path", path)
	return nil
}
