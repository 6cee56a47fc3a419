// Package inference - Forward-pass backends and network input preparation.
package inference

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// BackendType names a forward-pass implementation.
type BackendType string

const (
	// BackendONNXRuntime runs the network with onnxruntime (see providers.Session).
	BackendONNXRuntime BackendType = "onnxruntime"
	// BackendOpenCV runs the network with the OpenCV DNN module.
	BackendOpenCV BackendType = "opencv"
)

// ErrUnsupportedBackend is returned for a BackendType outside Backends.
var ErrUnsupportedBackend = errors.New("unsupported inference backend")

// Backends is a list of all supported backends.
var Backends = []BackendType{BackendONNXRuntime, BackendOpenCV}

// Backend runs the network forward pass as a black box.
//
// Implementations own native resources and are not safe for concurrent use;
// Close must be called exactly once when the backend is no longer needed.
type Backend interface {
	// Forward takes a [1, 3, H, W] float32 blob and returns the raw network
	// outputs. The returned tensors are owned by the caller.
	Forward(ctx context.Context, blob *tensor.Dense) ([]tensor.Tensor, error)
	// Close releases the backend's native resources.
	Close() error
}
