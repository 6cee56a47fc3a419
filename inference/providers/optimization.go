package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains the ONNX Runtime session settings the runtime
// exposes through the Go bindings.
type OptimizationConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization.
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graphOptimizationLevel" yaml:"graphOptimizationLevel"`
	// ExecutionMode controls sequential vs parallel execution.
	ExecutionMode ort.ExecutionMode `json:"executionMode"          yaml:"executionMode"`
	// IntraOpNumThreads sets threads for parallelizing ops. 0 lets the runtime decide.
	IntraOpNumThreads int `json:"intraOpNumThreads"      yaml:"intraOpNumThreads"`
	// InterOpNumThreads sets threads for parallelizing independent ops. 0 lets the runtime decide.
	InterOpNumThreads int `json:"interOpNumThreads"      yaml:"interOpNumThreads"`
}

// DefaultOptimizationConfig returns extended graph optimization with half the
// CPUs on intra-op work.
//
// A single-stage detector is a mostly linear graph, so parallel execution of
// independent nodes buys little; sequential mode keeps per-frame latency flat.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		ExecutionMode:          ort.ExecutionModeSequential,
		IntraOpNumThreads:      max(1, runtime.NumCPU()/2),
		InterOpNumThreads:      1,
	}
}

// OptimizedSessionOptions applies config and the execution provider to a
// fresh set of session options.
//
// Arguments:
//   - config: Optimization configuration to apply.
//   - provider: The execution provider to append; nil means CPU only.
//
// Returns:
//   - *ort.SessionOptions: Configured session options, owned by the caller.
//   - error: Configuration error if any.
//
// Example:
//
// ```go
//
//	options, err := OptimizedSessionOptions(DefaultOptimizationConfig(), NewCPUProvider(CPUOptions{}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer options.Destroy()
//
// ```
func OptimizedSessionOptions(config OptimizationConfig, provider ExecutionProvider) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}

	if err := applyOptimization(options, config); err != nil {
		options.Destroy()
		return nil, err
	}

	if provider != nil {
		if err := provider.Append(options); err != nil {
			options.Destroy()
			return nil, errors.Wrapf(err, "configure %s provider", provider.Backend())
		}
	}

	return options, nil
}

func applyOptimization(options *ort.SessionOptions, config OptimizationConfig) error {
	if err := options.SetGraphOptimizationLevel(config.GraphOptimizationLevel); err != nil {
		return errors.Wrap(err, "set graph optimization level")
	}
	if err := options.SetExecutionMode(config.ExecutionMode); err != nil {
		return errors.Wrap(err, "set execution mode")
	}
	if err := options.SetIntraOpNumThreads(config.IntraOpNumThreads); err != nil {
		return errors.Wrap(err, "set intra-op threads")
	}
	if err := options.SetInterOpNumThreads(config.InterOpNumThreads); err != nil {
		return errors.Wrap(err, "set inter-op threads")
	}
	return nil
}
