package viewport

import (
	"fmt"
	"strings"
)

// AspectMode selects how a scene rectangle whose aspect ratio differs from
// the viewport is mapped onto it.
type AspectMode int

const (
	// AspectIgnore scales x and y independently; the image distorts to fill the viewport.
	AspectIgnore AspectMode = iota
	// AspectKeepFit uses the smaller of the two scales; the scene is letterboxed.
	AspectKeepFit
	// AspectKeepFill uses the larger of the two scales; the scene overflows and is clipped.
	AspectKeepFill
)

var aspectNames = map[AspectMode]string{
	AspectIgnore:   "ignore",
	AspectKeepFit:  "keep-fit",
	AspectKeepFill: "keep-fill",
}

func (m AspectMode) String() string {
	if s, ok := aspectNames[m]; ok {
		return s
	}
	return fmt.Sprintf("AspectMode(%d)", int(m))
}

// ParseAspectMode parses "ignore", "keep-fit" or "keep-fill".
func ParseAspectMode(s string) (AspectMode, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for m, name := range aspectNames {
		if name == want {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown aspect ratio mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m AspectMode) MarshalText() ([]byte, error) {
	s, ok := aspectNames[m]
	if !ok {
		return nil, fmt.Errorf("unknown aspect ratio mode %d", int(m))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AspectMode) UnmarshalText(text []byte) error {
	v, err := ParseAspectMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
