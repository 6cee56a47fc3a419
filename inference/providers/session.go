package providers

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/models/model"
)

var environmentMu sync.Mutex

// Session represents a model session from the onnxruntime.
//
// The input and output tensors are preallocated once and reused by every
// Forward call, so a Session must not be shared between goroutines.
type Session struct {
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
	inputShape  []int
	outputShape []int
	provider    ProviderBackend
}

// NewSessionArgs represents the arguments for creating a new ONNX detector session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// SharedLibraryPath overrides the onnxruntime library location.
	SharedLibraryPath string
	// Graph node names; empty falls back to the Ultralytics export names.
	InputName  string
	OutputName string
	// InputWidth and InputHeight are the network resolution.
	InputWidth  int
	InputHeight int
	// OutputShape is the [1, 4+K, N] head shape. When empty it is read from
	// the model, which only works for exports with static output dimensions.
	OutputShape []int64
	// Optimization defaults to DefaultOptimizationConfig when nil.
	Optimization *OptimizationConfig
}

func (a NewSessionArgs) validate() error {
	if a.ModelPath == "" {
		return &model.ConfigError{Field: "modelPath", Value: a.ModelPath, Reason: "must not be empty"}
	}
	if err := model.CheckPositive("inputWidth", a.InputWidth); err != nil {
		return err
	}
	if err := model.CheckPositive("inputHeight", a.InputHeight); err != nil {
		return err
	}
	if len(a.OutputShape) > 0 && len(a.OutputShape) != 3 {
		return &model.ConfigError{Field: "outputShape", Value: a.OutputShape, Reason: "must have 3 dimensions"}
	}
	return nil
}

// NewSession creates a new ONNX detector session.
//
// This function creates a new ONNX Runtime session with preallocated input and output tensors,
// sets up session options, and execution providers (EPs).
//
// Order of operations:
//  1. Library path check: Ensures native runtime is accessible.
//  2. Environment setup: Required once per process to prepare ONNX Runtime internals.
//  3. Tensor allocation: Prepares fixed-shape buffers for input/output data.
//  4. Session options: Threading, optimization level and the execution provider.
//  5. Session creation: Loads model and binds resources.
//
// Arguments:
//   - provider: The provider for the session; nil means CPU.
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: Wrapped Session struct that holds the native session and tensors for inference.
//   - error: An error if the session creation fails.
func NewSession(provider ExecutionProvider, args NewSessionArgs) (*Session, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		provider = NewCPUProvider(CPUOptions{})
	}
	if args.InputName == "" {
		args.InputName = "images"
	}
	if args.OutputName == "" {
		args.OutputName = "output0"
	}

	if err := InitializeEnvironment(args.SharedLibraryPath); err != nil {
		return nil, err
	}

	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model %s", args.ModelPath)
	}

	outputShape := args.OutputShape
	if len(outputShape) == 0 {
		var err error
		outputShape, err = discoverOutputShape(args.ModelPath, args.OutputName)
		if err != nil {
			return nil, err
		}
	}

	// [batch, channels, height, width]
	input, err := ort.NewEmptyTensor[float32](
		ort.NewShape(1, 3, int64(args.InputHeight), int64(args.InputWidth)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	optimization := DefaultOptimizationConfig()
	if args.Optimization != nil {
		optimization = *args.Optimization
	}
	options, err := OptimizedSessionOptions(optimization, provider)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "create ORT session for %s", args.ModelPath)
	}

	return &Session{
		session:     session,
		input:       input,
		output:      output,
		inputShape:  []int{1, 3, args.InputHeight, args.InputWidth},
		outputShape: toInts(outputShape),
		provider:    provider.Backend(),
	}, nil
}

// InitializeEnvironment loads the onnxruntime shared library once per process.
func InitializeEnvironment(sharedLibraryPath string) error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	libPath, err := SharedLibraryPath(sharedLibraryPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s (set %s)", libPath, SharedLibraryEnv)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initialize ORT environment")
	}
	return nil
}

// DestroyEnvironment releases the process-wide onnxruntime state.
func DestroyEnvironment() error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return errors.Wrap(ort.DestroyEnvironment(), "destroy ORT environment")
}

func discoverOutputShape(modelPath, outputName string) ([]int64, error) {
	_, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read model info from %s", modelPath)
	}
	for _, info := range outputs {
		if info.Name != outputName {
			continue
		}
		dims := []int64(info.Dimensions)
		if len(dims) != 3 {
			return nil, model.NewShapeError(toInts(dims), "output %q must have 3 dimensions", outputName)
		}
		for _, d := range dims {
			if d <= 0 {
				return nil, model.NewShapeError(toInts(dims),
					"output %q has a dynamic dimension, set the output shape explicitly", outputName)
			}
		}
		return dims, nil
	}
	return nil, errors.Errorf("model %s has no output named %q", modelPath, outputName)
}

// Provider returns the execution provider the session was built with.
func (s *Session) Provider() ProviderBackend {
	return s.provider
}

// Forward runs the network on a [1, 3, H, W] float32 blob.
//
// Arguments:
//   - ctx: Checked before the run; the native call itself is not interruptible.
//   - blob: The prepared input, see inference.PrepareBlob.
//
// Returns:
//   - []tensor.Tensor: A single [1, 4+K, N] tensor holding a copy of the
//     network output.
//   - error: A *model.ShapeError when the blob does not match the session.
func (s *Session) Forward(ctx context.Context, blob *tensor.Dense) ([]tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	if blob == nil {
		return nil, model.NewShapeError(nil, "nil input blob")
	}
	if !equalShape(blob.Shape(), s.inputShape) {
		return nil, model.NewShapeError(blob.Shape(), "input blob must be %v", s.inputShape)
	}
	data, ok := blob.Data().([]float32)
	if !ok {
		return nil, model.NewShapeError(blob.Shape(), "input blob must be float32, got %v", blob.Dtype())
	}

	copy(s.input.GetData(), data)

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run inference")
	}

	out := make([]float32, len(s.output.GetData()))
	copy(out, s.output.GetData())

	return []tensor.Tensor{
		tensor.New(tensor.WithShape(s.outputShape...), tensor.WithBacking(out)),
	}, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		if err != nil {
			return errors.Wrap(err, "destroy ORT session")
		}
	}
	return nil
}

func toInts(dims []int64) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out
}

func equalShape(a tensor.Shape, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
