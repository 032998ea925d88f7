package tracking

import "fmt"

// Phase is the coarse lifecycle position of a tracker.
type Phase int

const (
	Idle Phase = iota
	Starting
	Tracking
	Stopped
	Error
)

var phaseNames = [...]string{
	Idle:     "idle",
	Starting: "starting",
	Tracking: "tracking",
	Stopped:  "stopped",
	Error:    "error",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase as its lowercase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Active reports whether a capture session is open.
func (p Phase) Active() bool {
	return p == Starting || p == Tracking
}

// State is a tracker state. Reason is set only for Error.
type State struct {
	Phase  Phase  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

func (s State) String() string {
	if s.Phase == Error && s.Reason != "" {
		return fmt.Sprintf("error(%s)", s.Reason)
	}
	return s.Phase.String()
}

// ErrorState builds an Error state carrying reason.
func ErrorState(reason string) State {
	return State{Phase: Error, Reason: reason}
}
