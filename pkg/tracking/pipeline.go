package tracking

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-facelink/pkg/calibration"
	"github.com/teslashibe/go-facelink/pkg/enhance"
	"github.com/teslashibe/go-facelink/pkg/face"
	"github.com/teslashibe/go-facelink/pkg/smoothing"
)

// pipeline holds the per-session processing state. It is owned by the
// session goroutine and never touched concurrently.
type pipeline struct {
	enhancer   *enhance.Enhancer
	calibrator *calibration.Calibrator // nil when calibration is off
	filter     smoothing.Filter
}

func newPipeline(cfg Config) (*pipeline, error) {
	enhancer, err := enhance.New(cfg.Enhancer)
	if err != nil {
		return nil, fmt.Errorf("enhancer: %w", err)
	}
	filter, err := smoothing.New(cfg.Smoothing)
	if err != nil {
		return nil, fmt.Errorf("smoothing: %w", err)
	}

	p := &pipeline{enhancer: enhancer, filter: filter}
	if cfg.EnableCalibration {
		p.calibrator = calibration.New()
	}
	return p, nil
}

// process runs one raw frame through Enhancer, Calibrator and Smoothing.
// The pose is decoded first so a malformed frame leaves no stage
// partially updated. A frame without a matrix gets a zero transform.
func (p *pipeline) process(raw RawFrame) (face.Frame, error) {
	var head face.HeadTransform
	if len(raw.Matrix) > 0 {
		var err error
		if head, err = face.FromMatrix(raw.Matrix); err != nil {
			return face.Frame{}, err
		}
	}

	data := face.FromNames(raw.Scores)
	data = p.enhancer.Enhance(data)
	if p.calibrator != nil {
		data = p.calibrator.Calibrate(data)
	}
	data = p.filter.Smooth(data, raw.Timestamp)

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return face.NewFrame(data, head, raw.Tracking, ts), nil
}

// reset discards calibration bounds and filter history.
func (p *pipeline) reset() {
	if p.calibrator != nil {
		p.calibrator.Reset()
	}
	p.filter.Reset()
}
