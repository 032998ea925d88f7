package face

import "time"

// Frame is one processed inference cycle. Frames are values: each
// subscriber receives its own copy and nothing else retains a reference to
// its Data or Matrix.
type Frame struct {
	BlendShapes Data          `json:"blend_shapes"`
	Head        HeadTransform `json:"head"`
	IsTracking  bool          `json:"is_tracking"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewFrame builds a frame from private copies of data and head.
func NewFrame(data Data, head HeadTransform, tracking bool, ts time.Time) Frame {
	return Frame{
		BlendShapes: data.Complete(),
		Head:        head.Clone(),
		IsTracking:  tracking,
		Timestamp:   ts,
	}
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	f.BlendShapes = f.BlendShapes.Clone()
	f.Head = f.Head.Clone()
	return f
}
