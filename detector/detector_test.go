package detector

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/profiler"
)

// fakeBackend returns a canned head and records what it was given.
type fakeBackend struct {
	outputs []tensor.Tensor
	err     error
	blobs   []*tensor.Dense
	closed  int
}

func (f *fakeBackend) Forward(ctx context.Context, blob *tensor.Dense) ([]tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.blobs = append(f.blobs, blob)
	return f.outputs, f.err
}

func (f *fakeBackend) Close() error {
	f.closed++
	return nil
}

// head builds a channel-major [1, C, N] tensor from anchor-major rows.
func head(rows ...[]float32) *tensor.Dense {
	n := len(rows)
	c := len(rows[0])
	data := make([]float32, c*n)
	for i, row := range rows {
		for j, v := range row {
			data[j*n+i] = v
		}
	}
	return tensor.New(tensor.WithShape(1, c, n), tensor.WithBacking(data))
}

// fakeModel decodes every head into one fixed candidate and keeps whatever
// it is asked to suppress.
type fakeModel struct {
	options    model.BaseModel
	thresholds []float32
	suppressed [][]postprocess.Candidate
}

func (f *fakeModel) Options() model.BaseModel { return f.options }

func (f *fakeModel) Decode(outputs []tensor.Tensor, confThreshold float32) ([]postprocess.Candidate, error) {
	f.thresholds = append(f.thresholds, confThreshold)
	return []postprocess.Candidate{{CX: 3, CY: 4, W: 2, H: 2, Box: images.Rect{X: 2, Y: 3, Width: 2, Height: 2}, Score: 0.75, ClassID: 5}}, nil
}

func (f *fakeModel) Suppress(candidates []postprocess.Candidate, config postprocess.NMSConfig) []postprocess.Detection {
	f.suppressed = append(f.suppressed, candidates)
	detections := make([]postprocess.Detection, len(candidates))
	for i, c := range candidates {
		detections[i] = postprocess.Detection{Box: c.Box, ClassID: c.ClassID, Confidence: c.Score}
	}
	return detections
}

func scenarioConfig() Config {
	return Config{InputWidth: 640, InputHeight: 640, ConfThreshold: 0.5, NMSThreshold: 0.5}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"default", func(*Config) {}, ""},
		{"zero width", func(c *Config) { c.InputWidth = 0 }, "inputWidth"},
		{"negative height", func(c *Config) { c.InputHeight = -640 }, "inputHeight"},
		{"conf above one", func(c *Config) { c.ConfThreshold = 1.5 }, "confThreshold"},
		{"conf negative", func(c *Config) { c.ConfThreshold = -0.1 }, "confThreshold"},
		{"nms above one", func(c *Config) { c.NMSThreshold = 2 }, "nmsThreshold"},
		{"bounds are inclusive", func(c *Config) { c.ConfThreshold, c.NMSThreshold = 0, 1 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *model.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 640, cfg.InputWidth)
	assert.Equal(t, 640, cfg.InputHeight)
	assert.Equal(t, float32(0.25), cfg.ConfThreshold)
	assert.Equal(t, float32(0.45), cfg.NMSThreshold)
	assert.False(t, cfg.PerClassSuppression)
	assert.Equal(t, model.ModelNameYOLOv11, cfg.Arch)
}

func TestNew(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.True(t, model.IsConfigError(err))

	cfg := DefaultConfig()
	cfg.NMSThreshold = 1.2
	_, err = New(&fakeBackend{}, cfg)
	assert.True(t, model.IsConfigError(err))

	d, err := New(&fakeBackend{}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), d.Config())
	assert.Equal(t, model.ModelNameYOLOv11, d.Model().Options().Name)
}

func TestNewBuildsModelFromArch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Arch = model.ModelNameYOLOv8
	d, err := New(&fakeBackend{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, model.ModelNameYOLOv8, d.Model().Options().Name)
	assert.Equal(t, 640, d.Model().Options().InputWidth)

	cfg.Arch = "detr"
	_, err = New(&fakeBackend{}, cfg)
	assert.ErrorIs(t, err, models.ErrUnsupportedModel)
}

func TestNewModelResolutionMismatch(t *testing.T) {
	m, err := models.NewModel(model.NewModelArgs{InputWidth: 320, InputHeight: 320})
	require.NoError(t, err)

	_, err = New(&fakeBackend{}, DefaultConfig(), WithModel(m))
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "model", cfgErr.Field)
}

func TestPostProcessDelegatesToModel(t *testing.T) {
	fake := &fakeModel{options: model.BaseModel{InputWidth: 640, InputHeight: 640}}
	metrics, err := profiler.NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	d, err := New(&fakeBackend{}, scenarioConfig(), WithModel(fake), WithMetrics(metrics))
	require.NoError(t, err)
	assert.Same(t, fake, d.Model())

	detections, err := d.PostProcess([]tensor.Tensor{head([]float32{0, 0, 0, 0, 0})})
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, 5, detections[0].ClassID)

	assert.Equal(t, []float32{0.5}, fake.thresholds)
	require.Len(t, fake.suppressed, 1)
	assert.Len(t, fake.suppressed[0], 1)
	assert.True(t, metrics.StageLatency.DeleteLabelValues(profiler.StageDecode))
	assert.True(t, metrics.StageLatency.DeleteLabelValues(profiler.StageSuppression))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Frames))
}

func TestPostProcessScenario(t *testing.T) {
	d, err := New(&fakeBackend{}, scenarioConfig())
	require.NoError(t, err)

	detections, err := d.PostProcess([]tensor.Tensor{head(
		[]float32{10, 10, 4, 4, 0.9, 0.1},
		[]float32{10.5, 10, 4, 4, 0.05, 0.05},
	)})
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, images.Rect{X: 8, Y: 8, Width: 4, Height: 4}, detections[0].Box)
	assert.Equal(t, 0, detections[0].ClassID)
	assert.InDelta(t, 0.9, detections[0].Confidence, 1e-6)
}

func TestPostProcessSuppression(t *testing.T) {
	rows := [][]float32{
		{100, 100, 50, 50, 0.9, 0.0},
		{102, 101, 50, 50, 0.0, 0.8},
		{300, 300, 40, 40, 0.7, 0.0},
	}

	agnostic, err := New(&fakeBackend{}, scenarioConfig())
	require.NoError(t, err)
	detections, err := agnostic.PostProcess([]tensor.Tensor{head(rows...)})
	require.NoError(t, err)
	require.Len(t, detections, 2, "overlapping boxes of different classes suppress each other")
	assert.InDelta(t, 0.9, detections[0].Confidence, 1e-6)
	assert.InDelta(t, 0.7, detections[1].Confidence, 1e-6)

	cfg := scenarioConfig()
	cfg.PerClassSuppression = true
	perClass, err := New(&fakeBackend{}, cfg)
	require.NoError(t, err)
	detections, err = perClass.PostProcess([]tensor.Tensor{head(rows...)})
	require.NoError(t, err)
	require.Len(t, detections, 3)
	assert.Equal(t, []int{0, 1, 0}, []int{detections[0].ClassID, detections[1].ClassID, detections[2].ClassID})
}

func TestPostProcessEmpty(t *testing.T) {
	d, err := New(&fakeBackend{}, scenarioConfig())
	require.NoError(t, err)

	detections, err := d.PostProcess([]tensor.Tensor{head([]float32{10, 10, 4, 4, 0.2, 0.3})})
	require.NoError(t, err)
	assert.NotNil(t, detections)
	assert.Empty(t, detections)
}

func TestPostProcessShapeErrors(t *testing.T) {
	d, err := New(&fakeBackend{}, scenarioConfig())
	require.NoError(t, err)
	valid := head([]float32{10, 10, 4, 4, 0.9})

	tests := []struct {
		name    string
		outputs []tensor.Tensor
	}{
		{"no outputs", nil},
		{"two outputs", []tensor.Tensor{valid, valid}},
		{"batch of two", []tensor.Tensor{tensor.New(tensor.WithShape(2, 6, 1), tensor.WithBacking(make([]float32, 12)))}},
		{"no classes", []tensor.Tensor{tensor.New(tensor.WithShape(1, 4, 3), tensor.WithBacking(make([]float32, 12)))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.PostProcess(tt.outputs)
			var shapeErr *model.ShapeError
			assert.ErrorAs(t, err, &shapeErr)
		})
	}
}

func TestDetectImage(t *testing.T) {
	backend := &fakeBackend{outputs: []tensor.Tensor{head(
		[]float32{10, 10, 4, 4, 0.9, 0.1},
	)}}
	reg := prometheus.NewRegistry()
	metrics, err := profiler.NewPipelineMetrics(reg)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	cfg := scenarioConfig()
	cfg.InputWidth, cfg.InputHeight = 32, 16
	d, err := New(backend, cfg, WithMetrics(metrics), WithLogger(zap.New(core)))
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	img.Set(0, 0, color.White)
	detections, err := d.DetectImage(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, detections, 1)

	require.Len(t, backend.blobs, 1)
	assert.Equal(t, tensor.Shape{1, 3, 16, 32}, backend.blobs[0].Shape())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Frames))
	assert.Equal(t, 1, logs.FilterMessage("post-processed frame").Len())
}

func TestDetectBlobBackendError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("device lost")}
	reg := prometheus.NewRegistry()
	metrics, err := profiler.NewPipelineMetrics(reg)
	require.NoError(t, err)

	d, err := New(backend, scenarioConfig(), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = d.DetectBlob(context.Background(), tensor.New(tensor.WithShape(1, 3, 640, 640), tensor.Of(tensor.Float32)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues(profiler.StageForward)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.DetectBlob(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose(t *testing.T) {
	backend := &fakeBackend{}
	d, err := New(backend, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, backend.closed)

	_, err = d.DetectBlob(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClosed)
}
