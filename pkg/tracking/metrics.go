package tracking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline activity. A nil *Metrics records nothing.
type Metrics struct {
	framesProcessed  prometheus.Counter
	framesRejected   prometheus.Counter
	framesDropped    *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	processing       prometheus.Histogram
}

// NewMetrics creates and registers the tracker collectors on reg.
// A nil reg returns nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facelink_frames_processed_total",
			Help: "Frames run through the pipeline and published.",
		}),
		framesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facelink_frames_rejected_total",
			Help: "Frames discarded because the pose matrix was malformed.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facelink_frames_dropped_total",
			Help: "Values discarded for slow subscribers.",
		}, []string{"stream"}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facelink_state_transitions_total",
			Help: "Tracker state transitions by target state.",
		}, []string{"state"}),
		processing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "facelink_frame_processing_seconds",
			Help:    "Time spent enhancing, calibrating and smoothing one frame.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.framesProcessed, m.framesRejected, m.framesDropped, m.stateTransitions, m.processing,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) frameProcessed(d time.Duration) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.processing.Observe(d.Seconds())
}

func (m *Metrics) frameRejected() {
	if m == nil {
		return
	}
	m.framesRejected.Inc()
}

func (m *Metrics) dropped(stream string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(stream).Inc()
}

func (m *Metrics) transition(p Phase) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(p.String()).Inc()
}
