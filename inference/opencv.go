package inference

import (
	"context"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/models/model"
)

// OpenCVBackend runs an ONNX model through the OpenCV DNN module on the CPU.
type OpenCVBackend struct {
	net       gocv.Net
	modelPath string
}

// NewOpenCVBackend loads an ONNX model into an OpenCV network.
//
// Arguments:
//   - modelPath: The path to the ONNX model file.
//
// Returns:
//   - *OpenCVBackend: The backend, owning the network until Close.
//   - error: An error if the model cannot be read.
func NewOpenCVBackend(modelPath string) (*OpenCVBackend, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "model %s", modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		net.Close()
		return nil, errors.Errorf("read ONNX model %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set DNN backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set DNN target")
	}

	return &OpenCVBackend{net: net, modelPath: modelPath}, nil
}

// Forward runs the network on a [1, 3, H, W] float32 blob.
func (b *OpenCVBackend) Forward(ctx context.Context, blob *tensor.Dense) ([]tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if blob == nil || blob.Dims() != 4 {
		return nil, model.NewShapeError(shapeOf(blob), "input blob must be [1, 3, H, W]")
	}
	data, ok := blob.Data().([]float32)
	if !ok || len(data) == 0 {
		return nil, model.NewShapeError(blob.Shape(), "input blob must be non-empty float32")
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
	input, err := gocv.NewMatWithSizesFromBytes(blob.Shape(), gocv.MatTypeCV32F, raw)
	if err != nil {
		return nil, errors.Wrap(err, "wrap input blob")
	}
	defer input.Close()

	b.net.SetInput(input, "")
	output := b.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, errors.Errorf("forward %s: empty output", b.modelPath)
	}

	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read network output")
	}
	backing := make([]float32, len(values))
	copy(backing, values)

	return []tensor.Tensor{
		tensor.New(tensor.WithShape(output.Size()...), tensor.WithBacking(backing)),
	}, nil
}

// Close releases the network.
func (b *OpenCVBackend) Close() error {
	return b.net.Close()
}

func shapeOf(t *tensor.Dense) []int {
	if t == nil {
		return nil
	}
	return t.Shape()
}
