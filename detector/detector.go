// Package detector - The detection pipeline: blob, forward pass, decode and suppression.
package detector

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/profiler"
)

// ErrClosed is returned by calls on a closed Detector.
var ErrClosed = errors.New("detector is closed")

// Detector runs frames through a backend and turns the raw head into
// detections.
//
// A Detector owns its backend. It keeps no state between calls beyond its
// configuration, but the backend it wraps is not safe for concurrent use.
type Detector struct {
	backend inference.Backend
	config  Config
	model   model.Model
	metrics *profiler.PipelineMetrics
	log     *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithMetrics records per-stage latency and per-frame counts.
func WithMetrics(m *profiler.PipelineMetrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// WithModel uses m instead of building the model named by Config.Arch. The
// model's input resolution must match the configuration.
func WithModel(m model.Model) Option {
	return func(d *Detector) {
		d.model = m
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// New creates a detector over backend.
//
// Arguments:
//   - backend: The forward pass. The detector takes ownership.
//   - cfg: The pipeline configuration.
//   - opts: Optional model, metrics and logger.
//
// Returns:
//   - *Detector: The detector.
//   - error: A *model.ConfigError for an invalid cfg, a nil backend or a
//     model whose input resolution differs from cfg; models.ErrUnsupportedModel
//     for an unknown cfg.Arch.
//
// Example:
//
// ```go
//
//	session, err := providers.NewSession(nil, providers.NewSessionArgs{
//	    ModelPath:   "yolo11n.onnx",
//	    InputWidth:  640,
//	    InputHeight: 640,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d, err := detector.New(session, detector.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
// ```
func New(backend inference.Backend, cfg Config, opts ...Option) (*Detector, error) {
	if backend == nil {
		return nil, &model.ConfigError{Field: "backend", Reason: "must not be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		backend: backend,
		config:  cfg,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.model == nil {
		m, err := models.NewModel(model.NewModelArgs{
			Name:        cfg.Arch,
			Family:      model.ModelFamilyYOLO,
			InputWidth:  cfg.InputWidth,
			InputHeight: cfg.InputHeight,
		})
		if err != nil {
			return nil, err
		}
		d.model = m
	}

	base := d.model.Options()
	if base.InputWidth != cfg.InputWidth || base.InputHeight != cfg.InputHeight {
		return nil, &model.ConfigError{
			Field:  "model",
			Value:  fmt.Sprintf("%dx%d", base.InputWidth, base.InputHeight),
			Reason: fmt.Sprintf("input resolution must match %dx%d", cfg.InputWidth, cfg.InputHeight),
		}
	}
	return d, nil
}

// Model returns the model decoding the backend outputs.
func (d *Detector) Model() model.Model {
	return d.model
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.config
}

// Detect runs one frame through the pipeline.
//
// Arguments:
//   - ctx: Cancels the call before the forward pass.
//   - frame: A BGR frame at the network resolution, see images.CropCentered.
//
// Returns:
//   - []postprocess.Detection: Detections in descending confidence order.
//   - error: A preparation, backend or *model.ShapeError.
func (d *Detector) Detect(ctx context.Context, frame gocv.Mat) ([]postprocess.Detection, error) {
	done := d.metrics.StartOperation(profiler.StagePrepare)
	blob, err := inference.PrepareBlob(frame, d.config.InputWidth, d.config.InputHeight)
	done()
	if err != nil {
		d.metrics.ObserveError(profiler.StagePrepare)
		return nil, err
	}
	return d.DetectBlob(ctx, blob)
}

// DetectImage is Detect for decoded images, resized to the network resolution.
func (d *Detector) DetectImage(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	done := d.metrics.StartOperation(profiler.StagePrepare)
	blob, err := inference.PrepareImage(img, d.config.InputWidth, d.config.InputHeight)
	done()
	if err != nil {
		d.metrics.ObserveError(profiler.StagePrepare)
		return nil, err
	}
	return d.DetectBlob(ctx, blob)
}

// DetectBlob runs the forward pass on a prepared [1, 3, H, W] blob and
// post-processes the result.
func (d *Detector) DetectBlob(ctx context.Context, blob *tensor.Dense) ([]postprocess.Detection, error) {
	if d.backend == nil {
		return nil, ErrClosed
	}

	done := d.metrics.StartOperation(profiler.StageForward)
	outputs, err := d.backend.Forward(ctx, blob)
	done()
	if err != nil {
		d.metrics.ObserveError(profiler.StageForward)
		return nil, errors.Wrap(err, "forward")
	}
	return d.PostProcess(outputs)
}

// PostProcess decodes the detection head and suppresses overlapping boxes.
//
// Arguments:
//   - outputs: The raw network outputs; exactly one [1, 4+K, N] float32 tensor.
//
// Returns:
//   - []postprocess.Detection: Survivors in the order suppression kept them,
//     an empty slice when nothing passes the threshold.
//   - error: A *model.ShapeError for a malformed output.
func (d *Detector) PostProcess(outputs []tensor.Tensor) ([]postprocess.Detection, error) {
	done := d.metrics.StartOperation(profiler.StageDecode)
	candidates, err := d.model.Decode(outputs, d.config.ConfThreshold)
	done()
	if err != nil {
		d.metrics.ObserveError(profiler.StageDecode)
		return nil, err
	}

	done = d.metrics.StartOperation(profiler.StageSuppression)
	detections := d.model.Suppress(candidates, d.config.NMSConfig())
	done()

	d.metrics.ObserveFrame(len(candidates), len(detections))
	d.log.Debug("post-processed frame",
		zap.Int("candidates", len(candidates)),
		zap.Int("detections", len(detections)),
	)

	return detections, nil
}

// Close releases the backend.
func (d *Detector) Close() error {
	if d.backend == nil {
		return nil
	}
	err := d.backend.Close()
	d.backend = nil
	return err
}
