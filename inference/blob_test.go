package inference

import (
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/models/model"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPrepareImage(t *testing.T) {
	img := solidImage(4, 2, color.RGBA{R: 255, G: 0, B: 51, A: 255})

	blob, err := PrepareImage(img, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 2, 4}, blob.Shape())

	data := blob.Data().([]float32)
	require.Len(t, data, 24)
	assert.InDelta(t, 1.0, data[0], 1e-6, "red plane first")
	assert.InDelta(t, 0.0, data[8], 1e-6, "green plane second")
	assert.InDelta(t, 0.2, data[16], 1e-6, "blue plane last")
}

func TestPrepareImageResizes(t *testing.T) {
	img := solidImage(64, 48, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	blob, err := PrepareImage(img, 32, 32)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 32, 32}, blob.Shape())
	for _, v := range blob.Data().([]float32) {
		assert.InDelta(t, 128.0/255.0, v, 0.01)
	}
}

func TestPrepareImageErrors(t *testing.T) {
	_, err := PrepareImage(nil, 640, 640)
	assert.Error(t, err)

	_, err = PrepareImage(solidImage(2, 2, color.RGBA{}), 0, 640)
	assert.True(t, model.IsConfigError(err))
}

func TestPrepareBlob(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(51, 0, 255, 0), 20, 30, gocv.MatTypeCV8UC3)
	defer frame.Close()

	blob, err := PrepareBlob(frame, 16, 8)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 8, 16}, blob.Shape())

	data := blob.Data().([]float32)
	plane := 16 * 8
	assert.InDelta(t, 1.0, data[0], 1e-6, "BGR red lands in the first plane")
	assert.InDelta(t, 0.0, data[plane], 1e-6)
	assert.InDelta(t, 0.2, data[2*plane], 1e-6)
}

func TestPrepareBlobErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := PrepareBlob(empty, 640, 640)
	assert.Error(t, err)

	frame := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer frame.Close()
	_, err = PrepareBlob(frame, 640, -1)
	assert.True(t, model.IsConfigError(err))
}

func TestNewOpenCVBackendMissingModel(t *testing.T) {
	_, err := NewOpenCVBackend("does-not-exist.onnx")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
