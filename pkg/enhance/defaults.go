package enhance

import (
	"maps"

	"github.com/teslashibe/go-facelink/pkg/face"
)

// Built-in fallbacks for units missing from the tables.
const (
	DefaultUnitSensitivity = 1.0
	DefaultUnitDeadZone    = 0.02
)

// ML landmark back ends under-report subtle brow, cheek and lip motion and
// over-report eye gaze jitter.
var defaultSensitivity = map[face.ActionUnit]float64{
	face.BrowInnerUp:      1.5,
	face.BrowOuterUpLeft:  1.4,
	face.BrowOuterUpRight: 1.4,
	face.BrowDownLeft:     1.3,
	face.BrowDownRight:    1.3,
	face.CheekPuff:        1.6,
	face.CheekSquintLeft:  1.3,
	face.CheekSquintRight: 1.3,
	face.NoseSneerLeft:    1.5,
	face.NoseSneerRight:   1.5,
	face.MouthPucker:      1.3,
	face.MouthFunnel:      1.3,
	face.MouthRollLower:   1.2,
	face.MouthRollUpper:   1.2,
	face.MouthShrugLower:  1.2,
	face.MouthShrugUpper:  1.2,
	face.EyeWideLeft:      1.4,
	face.EyeWideRight:     1.4,
	face.JawOpen:          1.1,
	face.TongueOut:        1.2,
}

var defaultDeadZone = map[face.ActionUnit]float64{
	face.EyeLookDownLeft:  0.08,
	face.EyeLookInLeft:    0.08,
	face.EyeLookOutLeft:   0.08,
	face.EyeLookUpLeft:    0.08,
	face.EyeLookDownRight: 0.08,
	face.EyeLookInRight:   0.08,
	face.EyeLookOutRight:  0.08,
	face.EyeLookUpRight:   0.08,
	face.EyeSquintLeft:    0.05,
	face.EyeSquintRight:   0.05,
	face.MouthClose:       0.05,
	face.MouthPressLeft:   0.04,
	face.MouthPressRight:  0.04,
	face.MouthDimpleLeft:  0.04,
	face.MouthDimpleRight: 0.04,
	face.CheekSquintLeft:  0.04,
	face.CheekSquintRight: 0.04,
	face.JawOpen:          0.03,
}

// DefaultSensitivityMap returns a copy of the built-in sensitivity table.
func DefaultSensitivityMap() map[face.ActionUnit]float64 {
	return maps.Clone(defaultSensitivity)
}

// DefaultDeadZoneMap returns a copy of the built-in dead-zone table.
func DefaultDeadZoneMap() map[face.ActionUnit]float64 {
	return maps.Clone(defaultDeadZone)
}
