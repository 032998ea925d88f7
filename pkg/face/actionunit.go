// Package face defines the facial action-unit data model shared by every
// stage of the tracking pipeline: the 52 canonical action units, intensity
// maps, head transforms and the frames published to consumers.
package face

// ActionUnit identifies one of the 52 facial muscle-activation signals.
// Names follow the blend shape vocabulary used by the major AR and ML face
// tracking platforms.
type ActionUnit int

const (
	EyeBlinkLeft ActionUnit = iota
	EyeLookDownLeft
	EyeLookInLeft
	EyeLookOutLeft
	EyeLookUpLeft
	EyeSquintLeft
	EyeWideLeft
	EyeBlinkRight
	EyeLookDownRight
	EyeLookInRight
	EyeLookOutRight
	EyeLookUpRight
	EyeSquintRight
	EyeWideRight
	JawForward
	JawLeft
	JawRight
	JawOpen
	MouthClose
	MouthFunnel
	MouthPucker
	MouthLeft
	MouthRight
	MouthSmileLeft
	MouthSmileRight
	MouthFrownLeft
	MouthFrownRight
	MouthDimpleLeft
	MouthDimpleRight
	MouthStretchLeft
	MouthStretchRight
	MouthRollLower
	MouthRollUpper
	MouthShrugLower
	MouthShrugUpper
	MouthPressLeft
	MouthPressRight
	MouthLowerDownLeft
	MouthLowerDownRight
	MouthUpperUpLeft
	MouthUpperUpRight
	BrowDownLeft
	BrowDownRight
	BrowInnerUp
	BrowOuterUpLeft
	BrowOuterUpRight
	CheekPuff
	CheekSquintLeft
	CheekSquintRight
	NoseSneerLeft
	NoseSneerRight
	TongueOut
)

// Count is the number of action units.
const Count = 52

// NeutralCategory is the extra category emitted by ML landmark back ends.
// It is not an action unit.
const NeutralCategory = "_neutral"

var unitNames = [Count]string{
	EyeBlinkLeft:        "eyeBlinkLeft",
	EyeLookDownLeft:     "eyeLookDownLeft",
	EyeLookInLeft:       "eyeLookInLeft",
	EyeLookOutLeft:      "eyeLookOutLeft",
	EyeLookUpLeft:       "eyeLookUpLeft",
	EyeSquintLeft:       "eyeSquintLeft",
	EyeWideLeft:         "eyeWideLeft",
	EyeBlinkRight:       "eyeBlinkRight",
	EyeLookDownRight:    "eyeLookDownRight",
	EyeLookInRight:      "eyeLookInRight",
	EyeLookOutRight:     "eyeLookOutRight",
	EyeLookUpRight:      "eyeLookUpRight",
	EyeSquintRight:      "eyeSquintRight",
	EyeWideRight:        "eyeWideRight",
	JawForward:          "jawForward",
	JawLeft:             "jawLeft",
	JawRight:            "jawRight",
	JawOpen:             "jawOpen",
	MouthClose:          "mouthClose",
	MouthFunnel:         "mouthFunnel",
	MouthPucker:         "mouthPucker",
	MouthLeft:           "mouthLeft",
	MouthRight:          "mouthRight",
	MouthSmileLeft:      "mouthSmileLeft",
	MouthSmileRight:     "mouthSmileRight",
	MouthFrownLeft:      "mouthFrownLeft",
	MouthFrownRight:     "mouthFrownRight",
	MouthDimpleLeft:     "mouthDimpleLeft",
	MouthDimpleRight:    "mouthDimpleRight",
	MouthStretchLeft:    "mouthStretchLeft",
	MouthStretchRight:   "mouthStretchRight",
	MouthRollLower:      "mouthRollLower",
	MouthRollUpper:      "mouthRollUpper",
	MouthShrugLower:     "mouthShrugLower",
	MouthShrugUpper:     "mouthShrugUpper",
	MouthPressLeft:      "mouthPressLeft",
	MouthPressRight:     "mouthPressRight",
	MouthLowerDownLeft:  "mouthLowerDownLeft",
	MouthLowerDownRight: "mouthLowerDownRight",
	MouthUpperUpLeft:    "mouthUpperUpLeft",
	MouthUpperUpRight:   "mouthUpperUpRight",
	BrowDownLeft:        "browDownLeft",
	BrowDownRight:       "browDownRight",
	BrowInnerUp:         "browInnerUp",
	BrowOuterUpLeft:     "browOuterUpLeft",
	BrowOuterUpRight:    "browOuterUpRight",
	CheekPuff:           "cheekPuff",
	CheekSquintLeft:     "cheekSquintLeft",
	CheekSquintRight:    "cheekSquintRight",
	NoseSneerLeft:       "noseSneerLeft",
	NoseSneerRight:      "noseSneerRight",
	TongueOut:           "tongueOut",
}

var unitsByName = func() map[string]ActionUnit {
	m := make(map[string]ActionUnit, Count)
	for i, name := range unitNames {
		m[name] = ActionUnit(i)
	}
	return m
}()

// Valid reports whether u is one of the 52 action units.
func (u ActionUnit) Valid() bool {
	return u >= 0 && int(u) < Count
}

// String returns the canonical name, e.g. "jawOpen".
func (u ActionUnit) String() string {
	if !u.Valid() {
		return "ActionUnit(invalid)"
	}
	return unitNames[u]
}

// Parse returns the action unit with the given canonical name.
// The reserved neutral category and any unknown name report false.
func Parse(name string) (ActionUnit, bool) {
	u, ok := unitsByName[name]
	return u, ok
}

// All returns every action unit in canonical order.
func All() []ActionUnit {
	units := make([]ActionUnit, Count)
	for i := range units {
		units[i] = ActionUnit(i)
	}
	return units
}

// Names returns the canonical names in canonical order.
func Names() []string {
	names := make([]string, Count)
	copy(names, unitNames[:])
	return names
}
