// Package providers - ONNX Runtime execution providers and sessions.
package providers

import (
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

// ErrUnsupportedBackend is returned for a backend name with no provider.
var ErrUnsupportedBackend = errors.New("unsupported execution provider")

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend returns the provider's name.
	Backend() ProviderBackend
	// Options returns the provider-specific options.
	Options() ProviderOptions
	// Append registers the provider on the session options. The CPU provider
	// is always present and appends nothing.
	Append(options *ort.SessionOptions) error
}

// Backends lists every provider NewProvider can build.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CUDAProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
}

// ParseBackend resolves a case-insensitive provider name. An empty name is CPU.
//
// Arguments:
//   - name: The provider name, e.g. "cuda".
//
// Returns:
//   - ProviderBackend: The matching backend.
//   - error: ErrUnsupportedBackend when nothing matches.
func ParseBackend(name string) (ProviderBackend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return CPUProviderBackend, nil
	}
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedBackend, "%q", name)
}

// NewProvider creates a new provider based on the type of its options.
//
// Arguments:
//   - options: The options for the provider.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the options type has no provider.
func NewProvider(options ProviderOptions) (ExecutionProvider, error) {
	switch opts := options.(type) {
	case nil:
		return NewCPUProvider(CPUOptions{}), nil
	case CPUOptions:
		return NewCPUProvider(opts), nil
	case CoreMLOptions:
		return NewCoreMLProvider(opts), nil
	case OpenVINOOptions:
		return NewOpenVINOProvider(opts), nil
	case CUDAOptions:
		return NewCUDAProvider(opts), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "options type %T", opts)
	}
}

// NewDefaultProvider builds the provider for backend with its default options.
func NewDefaultProvider(backend ProviderBackend) (ExecutionProvider, error) {
	switch backend {
	case CPUProviderBackend, "":
		return NewProvider(CPUOptions{})
	case CUDAProviderBackend:
		return NewProvider(DefaultCUDAOptions())
	case CoreMLProviderBackend:
		return NewProvider(CoreMLOptions{})
	case OpenVINOProviderBackend:
		return NewProvider(DefaultOpenVINOOptions())
	default:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "%q", backend)
	}
}
