package face

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestActionUnitCount(t *testing.T) {
	if got := len(All()); got != Count {
		t.Fatalf("len(All()) = %d, want %d", got, Count)
	}
	if Count != 52 {
		t.Fatalf("Count = %d, want 52", Count)
	}
}

func TestActionUnitNames(t *testing.T) {
	tests := []struct {
		unit ActionUnit
		name string
	}{
		{EyeBlinkLeft, "eyeBlinkLeft"},
		{JawOpen, "jawOpen"},
		{MouthSmileLeft, "mouthSmileLeft"},
		{BrowInnerUp, "browInnerUp"},
		{CheekPuff, "cheekPuff"},
		{TongueOut, "tongueOut"},
		{NoseSneerLeft, "noseSneerLeft"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.unit.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			u, ok := Parse(tt.name)
			if !ok || u != tt.unit {
				t.Errorf("Parse(%q) = %v, %v, want %v, true", tt.name, u, ok, tt.unit)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, u := range All() {
		got, ok := Parse(u.String())
		if !ok {
			t.Fatalf("Parse(%q) not found", u.String())
		}
		if got != u {
			t.Errorf("Parse(%q) = %v, want %v", u.String(), got, u)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	for _, name := range []string{"", NeutralCategory, "unknownShape", "JawOpen"} {
		if u, ok := Parse(name); ok {
			t.Errorf("Parse(%q) = %v, want not found", name, u)
		}
	}
}

func TestNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range Names() {
		if seen[name] {
			t.Errorf("duplicate name %q", name)
		}
		seen[name] = true
	}
	if len(seen) != Count {
		t.Errorf("unique names = %d, want %d", len(seen), Count)
	}
}

func TestInvalidUnit(t *testing.T) {
	if ActionUnit(-1).Valid() || ActionUnit(Count).Valid() {
		t.Error("out of range units should be invalid")
	}
	if ActionUnit(Count).String() != "ActionUnit(invalid)" {
		t.Errorf("unexpected String() for invalid unit: %q", ActionUnit(Count).String())
	}
}

func TestEmptyData(t *testing.T) {
	d := EmptyData()
	if len(d) != Count {
		t.Fatalf("len(EmptyData()) = %d, want %d", len(d), Count)
	}
	for _, u := range All() {
		if v, ok := d[u]; !ok || v != 0 {
			t.Errorf("EmptyData()[%v] = %v, %v, want 0, true", u, v, ok)
		}
	}
}

func TestValueDefaultsToZero(t *testing.T) {
	d := Data{JawOpen: 0.8}
	if got := d.Value(JawOpen); got != 0.8 {
		t.Errorf("Value(JawOpen) = %v, want 0.8", got)
	}
	if got := d.Value(EyeBlinkLeft); got != 0 {
		t.Errorf("Value(EyeBlinkLeft) = %v, want 0", got)
	}
}

func TestDataCompleteAndClone(t *testing.T) {
	d := Data{JawOpen: 0.5, ActionUnit(99): 1}
	full := d.Complete()
	if len(full) != Count {
		t.Fatalf("len(Complete()) = %d, want %d", len(full), Count)
	}
	if full[JawOpen] != 0.5 {
		t.Errorf("Complete()[JawOpen] = %v, want 0.5", full[JawOpen])
	}

	c := d.Clone()
	c[JawOpen] = 0.1
	if d[JawOpen] != 0.5 {
		t.Error("Clone should not alias the original")
	}
}

func TestFromNames(t *testing.T) {
	got := FromNames(map[string]float64{
		"jawOpen":      1.4,
		"eyeBlinkLeft": -0.2,
		"cheekPuff":    0.3,
		"notAShape":    0.9,
	})

	want := EmptyData()
	want[JawOpen] = 1
	want[CheekPuff] = 0.3

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("FromNames mismatch (-want +got):\n%s", diff)
	}
}

func TestFromCategoriesSkipsNeutral(t *testing.T) {
	got := FromCategories([]Category{
		{Name: NeutralCategory, Score: 0.9},
		{Name: "mouthSmileLeft", Score: 0.6},
		{Name: "mouthSmileRight", Score: 0.4},
	})

	if len(got) != Count {
		t.Fatalf("len = %d, want %d", len(got), Count)
	}
	if got[MouthSmileLeft] != 0.6 || got[MouthSmileRight] != 0.4 {
		t.Errorf("smile values = %v/%v, want 0.6/0.4", got[MouthSmileLeft], got[MouthSmileRight])
	}
	if got[TongueOut] != 0 {
		t.Errorf("missing units should be zero, TongueOut = %v", got[TongueOut])
	}
}

func identity() []float64 {
	return []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func TestFromMatrixIdentity(t *testing.T) {
	tr, err := FromMatrix(identity())
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	for name, v := range map[string]float64{
		"pitch": tr.Pitch, "yaw": tr.Yaw, "roll": tr.Roll,
		"x": tr.PositionX, "y": tr.PositionY, "z": tr.PositionZ,
	} {
		if !approx(v, 0) {
			t.Errorf("%s = %v, want 0", name, v)
		}
	}
}

func TestFromMatrixTranslation(t *testing.T) {
	m := identity()
	m[12], m[13], m[14] = 5, 10, -3

	tr, err := FromMatrix(m)
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	if !approx(tr.PositionX, 5) || !approx(tr.PositionY, 10) || !approx(tr.PositionZ, -3) {
		t.Errorf("position = (%v, %v, %v), want (5, 10, -3)", tr.PositionX, tr.PositionY, tr.PositionZ)
	}
}

func TestFromMatrixRotations(t *testing.T) {
	s, c := math.Sin(math.Pi/6), math.Cos(math.Pi/6)

	tests := []struct {
		name             string
		m                []float64
		pitch, yaw, roll float64
	}{
		{
			name: "yaw 90",
			m: []float64{
				0, 1, 0, 0,
				-1, 0, 0, 0,
				0, 0, 1, 0,
				0, 0, 0, 1,
			},
			yaw: 90,
		},
		{
			name: "pitch 30",
			m: []float64{
				c, 0, -s, 0,
				0, 1, 0, 0,
				s, 0, c, 0,
				0, 0, 0, 1,
			},
			pitch: 30,
		},
		{
			name: "roll 30",
			m: []float64{
				1, 0, 0, 0,
				0, c, s, 0,
				0, -s, c, 0,
				0, 0, 0, 1,
			},
			roll: 30,
		},
		{
			name: "gimbal lock",
			m: []float64{
				0, 0, -1, 0,
				0, 1, 0, 0,
				1, 0, 0, 0,
				0, 0, 0, 1,
			},
			pitch: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := FromMatrix(tt.m)
			if err != nil {
				t.Fatalf("FromMatrix: %v", err)
			}
			if math.IsNaN(tr.Pitch) || math.IsNaN(tr.Yaw) || math.IsNaN(tr.Roll) {
				t.Fatalf("NaN angle: %+v", tr)
			}
			if !approx(tr.Pitch, tt.pitch) || !approx(tr.Yaw, tt.yaw) || !approx(tr.Roll, tt.roll) {
				t.Errorf("angles = (%v, %v, %v), want (%v, %v, %v)",
					tr.Pitch, tr.Yaw, tr.Roll, tt.pitch, tt.yaw, tt.roll)
			}
		})
	}
}

func TestFromMatrixClampsBeyondUnit(t *testing.T) {
	m := identity()
	m[2] = -1.0000001 // R[2,0] slightly past -1
	m[0] = 0

	tr, err := FromMatrix(m)
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	if math.IsNaN(tr.Pitch) {
		t.Fatal("pitch should not be NaN")
	}
	if !approx(tr.Pitch, 90) {
		t.Errorf("pitch = %v, want 90", tr.Pitch)
	}
}

func TestFromMatrixCopiesInput(t *testing.T) {
	m := identity()
	tr, err := FromMatrix(m)
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	if len(tr.Matrix) != MatrixSize {
		t.Fatalf("len(Matrix) = %d, want %d", len(tr.Matrix), MatrixSize)
	}

	m[12] = 999
	if tr.Matrix[12] != 0 {
		t.Errorf("Matrix[12] = %v after caller mutation, want 0", tr.Matrix[12])
	}
	if tr.PositionX != 0 {
		t.Errorf("PositionX = %v after caller mutation, want 0", tr.PositionX)
	}
}

func TestFromMatrixInvalidSize(t *testing.T) {
	for _, m := range [][]float64{nil, {1, 2, 3}, make([]float64, 17)} {
		_, err := FromMatrix(m)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("FromMatrix(len=%d) error = %v, want ErrInvalidInput", len(m), err)
		}
	}
}

func TestNewFrameIsIndependent(t *testing.T) {
	data := Data{JawOpen: 0.4}
	head, _ := FromMatrix(identity())

	f := NewFrame(data, head, true, time.Time{})
	data[JawOpen] = 0.9
	head.Matrix[0] = 42

	if f.BlendShapes[JawOpen] != 0.4 {
		t.Errorf("frame data aliased caller map: %v", f.BlendShapes[JawOpen])
	}
	if f.Head.Matrix[0] != 1 {
		t.Errorf("frame matrix aliased caller slice: %v", f.Head.Matrix[0])
	}
	if len(f.BlendShapes) != Count {
		t.Errorf("frame should carry all %d units, got %d", Count, len(f.BlendShapes))
	}
}
