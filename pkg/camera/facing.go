// Package camera describes which physical camera a capture session uses.
// The value is forwarded untouched to the capture source.
package camera

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFacing is returned when parsing an unrecognized facing name.
var ErrUnknownFacing = errors.New("camera: unknown facing")

// Facing selects the front (user-facing) or back camera.
type Facing string

const (
	Front Facing = "front"
	Back  Facing = "back"
)

// DefaultFacing is used when no facing is configured.
const DefaultFacing = Front

// ParseFacing accepts "front", "back" and the aliases "user" and
// "environment". The empty string yields DefaultFacing.
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultFacing, nil
	case "front", "user", "selfie":
		return Front, nil
	case "back", "rear", "environment":
		return Back, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFacing, s)
	}
}

// Validate reports whether f is one of the known facings.
func (f Facing) Validate() error {
	switch f {
	case Front, Back:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFacing, string(f))
	}
}

func (f Facing) String() string {
	return string(f)
}
