package face

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MatrixSize is the element count of a homogeneous 4x4 pose matrix.
const MatrixSize = 16

// gimbalThreshold is how close |R[2,0]| must be to 1 before yaw and roll
// are treated as indistinguishable.
const gimbalThreshold = 1 - 1e-6

// HeadTransform is a head pose in Euler angles (degrees) plus translation
// (scene units). Roll is around the forward axis.
type HeadTransform struct {
	Pitch     float64 `json:"pitch"`
	Yaw       float64 `json:"yaw"`
	Roll      float64 `json:"roll"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
	PositionZ float64 `json:"position_z"`

	// Matrix is a private copy of the source pose matrix, nil when the
	// transform was not built from one.
	Matrix []float64 `json:"matrix,omitempty"`
}

// Clone returns a transform that shares no memory with t.
func (t HeadTransform) Clone() HeadTransform {
	if t.Matrix != nil {
		m := make([]float64, len(t.Matrix))
		copy(m, t.Matrix)
		t.Matrix = m
	}
	return t
}

// FromMatrix decomposes a column-major homogeneous transform into Euler
// angles and translation. Columns 0..2 hold the rotation basis and column 3
// the translation. The input is copied; later changes to m do not affect the
// returned transform.
func FromMatrix(m []float64) (HeadTransform, error) {
	if len(m) != MatrixSize {
		return HeadTransform{}, fmt.Errorf("%w: pose matrix has %d elements, want %d",
			ErrInvalidInput, len(m), MatrixSize)
	}

	snapshot := make([]float64, MatrixSize)
	copy(snapshot, m)

	// Reading column-major storage as row-major yields the transpose.
	buf := make([]float64, MatrixSize)
	copy(buf, m)
	pose := mat.NewDense(4, 4, buf).T()

	pitch, yaw, roll := rotationToEuler(pose)

	return HeadTransform{
		Pitch:     pitch,
		Yaw:       yaw,
		Roll:      roll,
		PositionX: pose.At(0, 3),
		PositionY: pose.At(1, 3),
		PositionZ: pose.At(2, 3),
		Matrix:    snapshot,
	}, nil
}

// rotationToEuler extracts pitch, yaw, roll in degrees from the upper-left
// 3x3 block of r.
func rotationToEuler(r mat.Matrix) (pitch, yaw, roll float64) {
	r20 := r.At(2, 0)

	// Clamp before asin; rounding error can push |r20| past 1.
	pitch = math.Asin(clamp(-r20, -1, 1))

	if math.Abs(r20) < gimbalThreshold {
		yaw = math.Atan2(r.At(1, 0), r.At(0, 0))
		roll = math.Atan2(r.At(2, 1), r.At(2, 2))
	} else {
		yaw = 0
		roll = math.Atan2(-r.At(1, 2), r.At(1, 1))
	}

	return degrees(pitch), degrees(yaw), degrees(roll)
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
