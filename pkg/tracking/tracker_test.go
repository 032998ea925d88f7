package tracking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facelink/pkg/camera"
	"github.com/teslashibe/go-facelink/pkg/capture"
	"github.com/teslashibe/go-facelink/pkg/enhance"
	"github.com/teslashibe/go-facelink/pkg/face"
	"github.com/teslashibe/go-facelink/pkg/smoothing"
	"github.com/teslashibe/go-facelink/pkg/tracking"
)

const wait = 2 * time.Second

func rawConfig() tracking.Config {
	return tracking.Config{
		Smoothing:    smoothing.Disabled(),
		Enhancer:     enhance.Disabled(),
		CameraFacing: camera.Front,
	}
}

func newTracker(t *testing.T, cfg tracking.Config, src tracking.Source, opts ...tracking.Option) *tracking.Tracker {
	t.Helper()
	tr, err := tracking.New(cfg, src, opts...)
	require.NoError(t, err)
	t.Cleanup(tr.Release)
	return tr
}

func nextState(t *testing.T, sub *tracking.Subscription[tracking.State]) tracking.State {
	t.Helper()
	select {
	case s, ok := <-sub.C():
		require.True(t, ok, "state subscription closed")
		return s
	case <-time.After(wait):
		t.Fatal("timed out waiting for state")
	}
	return tracking.State{}
}

func nextFrame(t *testing.T, sub *tracking.Subscription[face.Frame]) face.Frame {
	t.Helper()
	select {
	case f, ok := <-sub.C():
		require.True(t, ok, "frame subscription closed")
		return f
	case <-time.After(wait):
		t.Fatal("timed out waiting for frame")
	}
	return face.Frame{}
}

func jaw(v float64) map[string]float64 {
	return map[string]float64{face.JawOpen.String(): v}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := rawConfig()
	cfg.Smoothing = smoothing.EMA(0)
	_, err := tracking.New(cfg, capture.NewMockSource())
	require.Error(t, err)
	assert.ErrorIs(t, err, smoothing.ErrInvalidConfig)

	cfg = rawConfig()
	cfg.CameraFacing = "sideways"
	_, err = tracking.New(cfg, capture.NewMockSource())
	assert.ErrorIs(t, err, camera.ErrUnknownFacing)

	_, err = tracking.New(rawConfig(), nil)
	assert.Error(t, err)
}

func TestInitialState(t *testing.T) {
	cfg := tracking.DefaultConfig()
	tr := newTracker(t, cfg, capture.NewMockSource())

	assert.Equal(t, tracking.Idle, tr.State().Phase)
	assert.Empty(t, tr.SessionID())
	assert.Equal(t, cfg, tr.Config())
	assert.False(t, tr.Released())
}

func TestStartReachesTrackingOnReady(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	states := tr.SubscribeStates()

	require.NoError(t, tr.Start(context.Background()))

	assert.Equal(t, tracking.Starting, nextState(t, states).Phase)
	assert.Equal(t, tracking.Tracking, nextState(t, states).Phase)
	assert.NotEmpty(t, tr.SessionID())
}

func TestStartReachesTrackingOnFirstFrame(t *testing.T) {
	src := capture.NewMockSource()
	tr := newTracker(t, rawConfig(), src)
	states := tr.SubscribeStates()
	frames := tr.SubscribeFrames()

	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, tracking.Starting, nextState(t, states).Phase)
	assert.Equal(t, tracking.Starting, tr.State().Phase)

	require.NoError(t, src.EmitScores(jaw(0.3)))
	assert.Equal(t, tracking.Tracking, nextState(t, states).Phase)
	f := nextFrame(t, frames)
	assert.InDelta(t, 0.3, f.BlendShapes[face.JawOpen], 1e-9)
	assert.True(t, f.IsTracking)
}

func TestStartFailure(t *testing.T) {
	src := capture.NewMockSource(capture.WithStartFailure("camera permission denied"))
	tr := newTracker(t, rawConfig(), src)
	states := tr.SubscribeStates()

	err := tr.Start(context.Background())
	require.Error(t, err)
	assert.True(t, tracking.IsStartError(err))

	var se *tracking.StartError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "camera permission denied", se.Reason)

	assert.Equal(t, tracking.Starting, nextState(t, states).Phase)
	errState := nextState(t, states)
	assert.Equal(t, tracking.ErrorState("camera permission denied"), errState)
	assert.Equal(t, errState, tr.State())
}

func TestStartFailureWrapsPlainErrors(t *testing.T) {
	src := capture.NewMockSource()
	require.NoError(t, src.Close())
	tr := newTracker(t, rawConfig(), src)

	err := tr.Start(context.Background())
	var se *tracking.StartError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, capture.ErrClosed)
	assert.Equal(t, tracking.Error, tr.State().Phase)
	assert.Equal(t, capture.ErrClosed.Error(), tr.State().Reason)
}

func TestStartIsNoOpWhileActive(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)

	require.NoError(t, tr.Start(context.Background()))
	id := tr.SessionID()
	require.NoError(t, tr.Start(context.Background()))

	assert.Equal(t, 1, src.Starts())
	assert.Equal(t, id, tr.SessionID())
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	src := capture.NewMockSource()
	tr := newTracker(t, rawConfig(), src)

	require.NoError(t, tr.Stop())
	assert.Equal(t, tracking.Idle, tr.State().Phase)
	assert.Equal(t, 0, src.Stops())
}

// handshakeSource blocks in Start until its handshake resolves. With
// honorCtx it gives up when ctx is done; otherwise it waits for release.
type handshakeSource struct {
	honorCtx bool
	release  chan struct{}
	entered  chan struct{}

	mu    sync.Mutex
	stops int
}

func newHandshakeSource(honorCtx bool) *handshakeSource {
	return &handshakeSource{
		honorCtx: honorCtx,
		release:  make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
}

func (s *handshakeSource) Start(ctx context.Context, _ tracking.SessionOptions) (<-chan tracking.Event, error) {
	s.entered <- struct{}{}
	if s.honorCtx {
		select {
		case <-ctx.Done():
			return nil, &tracking.StartError{Reason: "handshake timeout", Err: ctx.Err()}
		case <-s.release:
		}
	} else {
		<-s.release
	}
	return make(chan tracking.Event), nil
}

func (s *handshakeSource) Stop() error {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	return nil
}

func (s *handshakeSource) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func startAsync(tr *tracking.Tracker, src *handshakeSource) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- tr.Start(context.Background()) }()
	select {
	case <-src.entered:
	case <-time.After(wait):
	}
	return errc
}

func TestStopInterruptsHandshake(t *testing.T) {
	src := newHandshakeSource(true)
	tr := newTracker(t, rawConfig(), src)
	states := tr.SubscribeStates()

	errc := startAsync(tr, src)
	assert.Equal(t, tracking.Starting, nextState(t, states).Phase)

	began := time.Now()
	require.NoError(t, tr.Stop())
	assert.Less(t, time.Since(began), time.Second)
	assert.Equal(t, tracking.Stopped, tr.State().Phase)
	assert.Equal(t, tracking.Stopped, nextState(t, states).Phase)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, tracking.ErrStartInterrupted)
		assert.False(t, tracking.IsStartError(err))
	case <-time.After(wait):
		t.Fatal("Start did not return after Stop")
	}
}

func TestStopWaitsForLateHandshake(t *testing.T) {
	src := newHandshakeSource(false)
	tr := newTracker(t, rawConfig(), src)

	errc := startAsync(tr, src)
	stopped := make(chan error, 1)
	go func() { stopped <- tr.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the handshake unwound")
	case <-time.After(50 * time.Millisecond):
	}

	// The source comes up anyway and must be stopped again.
	close(src.release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("Stop did not return")
	}
	assert.ErrorIs(t, <-errc, tracking.ErrStartInterrupted)
	assert.Equal(t, tracking.Stopped, tr.State().Phase)
	assert.GreaterOrEqual(t, src.Stops(), 2)
}

func TestReleaseInterruptsHandshake(t *testing.T) {
	src := newHandshakeSource(true)
	tr := newTracker(t, rawConfig(), src)

	errc := startAsync(tr, src)
	tr.Release()

	assert.ErrorIs(t, <-errc, tracking.ErrStartInterrupted)
	assert.True(t, tr.Released())
	assert.Equal(t, tracking.Stopped, tr.State().Phase)
}

func TestStopGuaranteesNoFurtherFrames(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	frames := tr.SubscribeFrames()

	require.NoError(t, tr.Start(context.Background()))

	// Emit continuously until the session is gone.
	emitting := make(chan struct{})
	go func() {
		defer close(emitting)
		for src.EmitScores(jaw(0.5)) == nil {
		}
	}()
	nextFrame(t, frames)

	require.NoError(t, tr.Stop())
	assert.Equal(t, tracking.Stopped, tr.State().Phase)
	assert.Equal(t, 1, src.Stops())
	processed := tr.Stats().FramesProcessed

	<-emitting
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, processed, tr.Stats().FramesProcessed)

	// At most the frame buffered before Stop returned remains.
	drained := 0
	for {
		select {
		case <-frames.C():
			drained++
			continue
		default:
		}
		break
	}
	assert.LessOrEqual(t, drained, 1)

	select {
	case <-frames.C():
		t.Fatal("frame published after Stop returned")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRestartResetsPipelineState(t *testing.T) {
	cfg := rawConfig()
	cfg.Smoothing = smoothing.EMA(0.5)
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, cfg, src)
	frames := tr.SubscribeFrames()

	require.NoError(t, tr.Start(context.Background()))
	first := tr.SessionID()
	require.NoError(t, src.EmitScores(jaw(1)))
	assert.InDelta(t, 1.0, nextFrame(t, frames).BlendShapes[face.JawOpen], 1e-9)
	require.NoError(t, tr.Stop())

	require.NoError(t, tr.Start(context.Background()))
	assert.NotEqual(t, first, tr.SessionID())
	require.NoError(t, src.EmitScores(jaw(0)))
	// A fresh filter passes the first sample through.
	assert.InDelta(t, 0.0, nextFrame(t, frames).BlendShapes[face.JawOpen], 1e-9)
	assert.Equal(t, uint64(2), tr.Stats().Sessions)
}

func TestSourceFailureMovesToError(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	states := tr.SubscribeStates()

	require.NoError(t, tr.Start(context.Background()))
	nextState(t, states) // starting
	nextState(t, states) // tracking

	require.NoError(t, src.Fail(errors.New("camera interrupted")))
	assert.Equal(t, tracking.ErrorState("camera interrupted"), nextState(t, states))
	require.Eventually(t, func() bool { return src.Stops() == 1 }, wait, 10*time.Millisecond)

	// Stop from Error is a no-op.
	require.NoError(t, tr.Stop())
	assert.Equal(t, tracking.Error, tr.State().Phase)
}

func TestSourceDisconnectMovesToError(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	states := tr.SubscribeStates()

	require.NoError(t, tr.Start(context.Background()))
	nextState(t, states)
	nextState(t, states)

	src.Disconnect()
	s := nextState(t, states)
	assert.Equal(t, tracking.Error, s.Phase)
	assert.Equal(t, "capture source closed", s.Reason)
}

func TestRetryAfterError(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)

	require.NoError(t, tr.Start(context.Background()))
	require.Eventually(t, func() bool { return tr.State().Phase == tracking.Tracking }, wait, 5*time.Millisecond)
	require.NoError(t, src.Fail(errors.New("lost")))
	require.Eventually(t, func() bool { return tr.State().Phase == tracking.Error }, wait, 5*time.Millisecond)

	require.NoError(t, tr.Start(context.Background()))
	require.Eventually(t, func() bool { return tr.State().Phase == tracking.Tracking }, wait, 5*time.Millisecond)
	assert.Equal(t, 2, src.Starts())
}

func TestReleaseIsTerminal(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	states := tr.SubscribeStates()
	frames := tr.SubscribeFrames()

	require.NoError(t, tr.Start(context.Background()))
	nextState(t, states)
	nextState(t, states)

	tr.Release()
	tr.Release()
	assert.True(t, tr.Released())
	assert.Equal(t, 1, src.Stops())

	// Release from Tracking publishes Stopped before closing streams.
	assert.Equal(t, tracking.Stopped, nextState(t, states).Phase)
	_, ok := <-states.C()
	assert.False(t, ok)
	_, ok = <-frames.C()
	assert.False(t, ok)

	assert.ErrorIs(t, tr.Start(context.Background()), tracking.ErrIllegalState)
	assert.ErrorIs(t, tr.Stop(), tracking.ErrIllegalState)

	_, ok = <-tr.SubscribeFrames().C()
	assert.False(t, ok, "subscribing after release yields a closed stream")
}

func TestReleaseFromIdle(t *testing.T) {
	tr := newTracker(t, rawConfig(), capture.NewMockSource())
	tr.Release()
	assert.ErrorIs(t, tr.Start(context.Background()), tracking.ErrIllegalState)
	assert.Equal(t, tracking.Idle, tr.State().Phase)
}

func TestEndToEndEMA(t *testing.T) {
	cfg := rawConfig()
	cfg.Smoothing = smoothing.EMA(0.5)
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, cfg, src)
	frames := tr.SubscribeFrames()

	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, src.EmitScores(jaw(1)))
	f := nextFrame(t, frames)
	assert.InDelta(t, 1.0, f.BlendShapes[face.JawOpen], 1e-9)
	assert.Len(t, f.BlendShapes, face.Count)
	for _, u := range face.All() {
		if u != face.JawOpen {
			assert.Zero(t, f.BlendShapes[u], u.String())
		}
	}

	require.NoError(t, src.EmitScores(jaw(0)))
	assert.InDelta(t, 0.5, nextFrame(t, frames).BlendShapes[face.JawOpen], 1e-9)
}

func TestCalibrationStage(t *testing.T) {
	cfg := rawConfig()
	cfg.EnableCalibration = true
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, cfg, src)
	frames := tr.SubscribeFrames()

	require.NoError(t, tr.Start(context.Background()))
	for _, tc := range []struct{ in, want float64 }{
		{0.2, 0.2},
		{0.8, 1.0},
		{0.5, 0.5},
	} {
		require.NoError(t, src.EmitScores(jaw(tc.in)))
		assert.InDelta(t, tc.want, nextFrame(t, frames).BlendShapes[face.JawOpen], 1e-9)
	}
}

func TestEnhancerRunsBeforeCalibration(t *testing.T) {
	cfg := rawConfig()
	cfg.EnableCalibration = true
	cfg.Enhancer = enhance.Config{
		Enabled:              true,
		DeadZoneOverrides:    map[face.ActionUnit]float64{face.JawOpen: 0.5},
		SensitivityOverrides: map[face.ActionUnit]float64{face.JawOpen: 1},
		GeometricBlendWeight: 1,
	}
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, cfg, src)
	frames := tr.SubscribeFrames()

	require.NoError(t, tr.Start(context.Background()))

	// Both raw values fall inside the dead zone, so calibration sees a
	// constant 0 and passes it through.
	for _, v := range []float64{0.1, 0.4} {
		require.NoError(t, src.EmitScores(jaw(v)))
		assert.Zero(t, nextFrame(t, frames).BlendShapes[face.JawOpen])
	}
}

func TestHeadTransformDecoded(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	frames := tr.SubscribeFrames()
	require.NoError(t, tr.Start(context.Background()))

	m := capture.IdentityMatrix()
	m[12], m[13], m[14] = 5, 10, -3
	ts := time.UnixMilli(1700000000000)
	require.NoError(t, src.Emit(tracking.RawFrame{Scores: jaw(0.1), Matrix: m, Tracking: true, Timestamp: ts}))

	f := nextFrame(t, frames)
	assert.Equal(t, 5.0, f.Head.PositionX)
	assert.Equal(t, 10.0, f.Head.PositionY)
	assert.Equal(t, -3.0, f.Head.PositionZ)
	assert.True(t, f.Timestamp.Equal(ts))

	m[12] = 99
	assert.Equal(t, 5.0, f.Head.Matrix[12], "frame keeps its own matrix copy")
}

func TestMalformedMatrixRejected(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	frames := tr.SubscribeFrames()
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, src.Emit(tracking.RawFrame{Scores: jaw(0.9), Matrix: []float64{1, 2, 3}, Tracking: true}))
	require.NoError(t, src.EmitScores(jaw(0.2)))

	assert.InDelta(t, 0.2, nextFrame(t, frames).BlendShapes[face.JawOpen], 1e-9)
	stats := tr.Stats()
	assert.Equal(t, uint64(1), stats.FramesRejected)
	assert.Equal(t, uint64(1), stats.FramesProcessed)
	assert.Equal(t, tracking.Tracking, tr.State().Phase)
}

func TestCameraFacingForwarded(t *testing.T) {
	cfg := rawConfig()
	cfg.CameraFacing = camera.Back
	src := capture.NewMockSource()
	tr := newTracker(t, cfg, src)

	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, camera.Back, src.LastFacing())
}

func TestSlowSubscriberSeesLatestFrame(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	slow := tr.SubscribeFrames()
	require.NoError(t, tr.Start(context.Background()))

	for i := 1; i <= 5; i++ {
		require.NoError(t, src.EmitScores(jaw(float64(i)/10)))
	}
	require.Eventually(t, func() bool { return tr.Stats().FramesProcessed == 5 }, wait, 5*time.Millisecond)

	assert.InDelta(t, 0.5, nextFrame(t, slow).BlendShapes[face.JawOpen], 1e-9)
	assert.Equal(t, uint64(4), slow.Dropped())
	assert.Equal(t, uint64(4), tr.Stats().FramesDropped)
}

func TestSubscribersReceiveIndependentCopies(t *testing.T) {
	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src)
	a, b := tr.SubscribeFrames(), tr.SubscribeFrames()
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, src.EmitScores(jaw(0.4)))
	fa := nextFrame(t, a)
	fa.BlendShapes[face.JawOpen] = 1
	assert.InDelta(t, 0.4, nextFrame(t, b).BlendShapes[face.JawOpen], 1e-9)

	a.Close()
	assert.Equal(t, 1, tr.Stats().FrameSubscribers)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := tracking.NewMetrics(reg)
	require.NoError(t, err)

	src := capture.NewMockSource(capture.WithAutoReady())
	tr := newTracker(t, rawConfig(), src, tracking.WithMetrics(metrics))
	frames := tr.SubscribeFrames()
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, src.EmitScores(jaw(0.4)))
	nextFrame(t, frames)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				values[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, 1.0, values["facelink_frames_processed_total"])
	assert.Equal(t, 1.0, values["facelink_frame_processing_seconds"])
	assert.Equal(t, 2.0, values["facelink_state_transitions_total"])

	_, err = tracking.NewMetrics(reg)
	assert.Error(t, err, "registering twice fails")

	none, err := tracking.NewMetrics(nil)
	assert.NoError(t, err)
	assert.Nil(t, none)
}
