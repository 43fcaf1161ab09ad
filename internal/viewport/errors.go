package viewport

import "errors"

var (
	// ErrInvalidViewport is returned when a transform cannot be built, either
	// because the viewport has no area or the scene rectangle is degenerate.
	ErrInvalidViewport = errors.New("invalid viewport")

	// ErrInvalidOptions is returned by Options.Validate.
	ErrInvalidOptions = errors.New("invalid viewport options")
)
