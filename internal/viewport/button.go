package viewport

import (
	"fmt"
	"strings"
)

// Button identifies a pointer button. ButtonNone disables whatever
// controller it is assigned to.
type Button int

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

var buttonNames = map[Button]string{
	ButtonNone:   "none",
	ButtonLeft:   "left",
	ButtonMiddle: "middle",
	ButtonRight:  "right",
}

func (b Button) String() string {
	if s, ok := buttonNames[b]; ok {
		return s
	}
	return fmt.Sprintf("Button(%d)", int(b))
}

// ParseButton parses "none", "left", "middle" or "right". An empty string
// is treated as "none".
func ParseButton(s string) (Button, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	if want == "" {
		return ButtonNone, nil
	}
	for b, name := range buttonNames {
		if name == want {
			return b, nil
		}
	}
	return ButtonNone, fmt.Errorf("unknown button %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (b Button) MarshalText() ([]byte, error) {
	s, ok := buttonNames[b]
	if !ok {
		return nil, fmt.Errorf("unknown button %d", int(b))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Button) UnmarshalText(text []byte) error {
	v, err := ParseButton(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
