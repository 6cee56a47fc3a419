package profiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stage labels.
const (
	StagePrepare     = "prepare"
	StageForward     = "forward"
	StageDecode      = "decode"
	StageSuppression = "suppression"
	StageRender      = "render"
)

// PipelineMetrics holds the Prometheus collectors of the detection pipeline.
type PipelineMetrics struct {
	Frames       prometheus.Counter
	Errors       *prometheus.CounterVec
	Candidates   prometheus.Histogram
	Detections   prometheus.Histogram
	StageLatency *prometheus.HistogramVec
	FPS          prometheus.Gauge
}

// NewPipelineMetrics creates the collectors and registers them on reg.
//
// Arguments:
//   - reg: The registerer, typically a fresh prometheus.NewRegistry().
//
// Returns:
//   - *PipelineMetrics: The registered collectors.
//   - error: An error if any collector is already registered.
func NewPipelineMetrics(reg prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goyolo",
			Name:      "frames_total",
			Help:      "Frames run through the detection pipeline.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goyolo",
			Name:      "errors_total",
			Help:      "Pipeline failures by stage.",
		}, []string{"stage"}),
		Candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goyolo",
			Name:      "candidates",
			Help:      "Candidates above the confidence threshold per frame.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		Detections: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goyolo",
			Name:      "detections",
			Help:      "Detections surviving suppression per frame.",
			Buckets:   prometheus.LinearBuckets(0, 5, 12),
		}),
		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "goyolo",
			Name:      "stage_duration_seconds",
			Help:      "Latency of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
		FPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "goyolo",
			Name:      "fps",
			Help:      "Frames per second of the display loop.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Frames, m.Errors, m.Candidates, m.Detections, m.StageLatency, m.FPS,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StartOperation begins timing a stage.
//
// Returns:
//   - A function to call when the stage completes.
func (m *PipelineMetrics) StartOperation(stage string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// ObserveFrame records one processed frame.
func (m *PipelineMetrics) ObserveFrame(candidates, detections int) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.Candidates.Observe(float64(candidates))
	m.Detections.Observe(float64(detections))
}

// ObserveError counts a failure in stage.
func (m *PipelineMetrics) ObserveError(stage string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(stage).Inc()
}

// SetFPS publishes a frame-rate reading.
func (m *PipelineMetrics) SetFPS(fps float64) {
	if m == nil {
		return
	}
	m.FPS.Set(fps)
}
