package profiler

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFPSMeter(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var readings []float64
	m := NewFPSMeter(WithClock(clock.now), WithObserver(func(fps float64) {
		readings = append(readings, fps)
	}))

	for i := 0; i < 29; i++ {
		clock.advance(30 * time.Millisecond)
		assert.Zero(t, m.Tick(), "no reading before the first window closes")
	}

	clock.advance(130 * time.Millisecond)
	fps := m.Tick()
	assert.InDelta(t, 30.0, fps, 1e-9)
	assert.Equal(t, fps, m.FPS())
	assert.Equal(t, []float64{fps}, readings)

	clock.advance(500 * time.Millisecond)
	assert.Equal(t, fps, m.Tick(), "reading held within the window")
}

func TestFPSMeterWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewFPSMeter(WithClock(clock.now), WithWindow(100*time.Millisecond))

	clock.advance(50 * time.Millisecond)
	m.Tick()
	clock.advance(50 * time.Millisecond)
	assert.InDelta(t, 20.0, m.Tick(), 1e-9)
}

func TestPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	m.ObserveFrame(12, 3)
	m.ObserveFrame(0, 0)
	m.ObserveError(StageForward)
	m.SetFPS(24.5)
	m.StartOperation(StageDecode)()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(StageForward)))
	assert.Equal(t, 24.5, testutil.ToFloat64(m.FPS))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageLatency))

	_, err = NewPipelineMetrics(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}

func TestNilPipelineMetrics(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.ObserveFrame(1, 1)
		m.ObserveError(StageDecode)
		m.SetFPS(1)
		m.StartOperation(StageForward)()
	})
}
