// Package profiler - Frame-rate measurement and pipeline metrics.
package profiler

import (
	"sync"
	"time"
)

// DefaultFPSWindow is how often FPSMeter refreshes its reading.
const DefaultFPSWindow = time.Second

// FPSMeter reports frames per second averaged over a fixed window.
//
// The reading is refreshed once per window, so the overlay does not flicker
// frame to frame. Until the first window closes FPS returns 0.
type FPSMeter struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	start    time.Time
	frames   int
	fps      float64
	observer func(float64)
}

// FPSOption configures an FPSMeter.
type FPSOption func(*FPSMeter)

// WithWindow overrides the averaging window.
func WithWindow(d time.Duration) FPSOption {
	return func(m *FPSMeter) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FPSOption {
	return func(m *FPSMeter) {
		m.now = now
	}
}

// WithObserver is called with every new reading.
func WithObserver(fn func(fps float64)) FPSOption {
	return func(m *FPSMeter) {
		m.observer = fn
	}
}

// NewFPSMeter creates a meter whose first window starts now.
func NewFPSMeter(opts ...FPSOption) *FPSMeter {
	m := &FPSMeter{window: DefaultFPSWindow, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.start = m.now()
	return m
}

// Tick records one frame and returns the current reading.
func (m *FPSMeter) Tick() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frames++
	now := m.now()
	elapsed := now.Sub(m.start)
	if elapsed >= m.window {
		m.fps = float64(m.frames) / elapsed.Seconds()
		m.frames = 0
		m.start = now
		if m.observer != nil {
			m.observer(m.fps)
		}
	}
	return m.fps
}

// FPS returns the last reading without recording a frame.
func (m *FPSMeter) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}
