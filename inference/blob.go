package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/models/model"
)

// PixelScale maps 8-bit channel values into [0, 1].
const PixelScale = 1.0 / 255.0

// PrepareBlob converts a BGR frame into a [1, 3, H, W] float32 network input.
//
// The frame is resized to width x height without cropping, scaled by 1/255
// and swapped to RGB, matching what Ultralytics exports expect.
//
// Arguments:
//   - frame: The BGR frame, typically already center-cropped.
//   - width: The network input width.
//   - height: The network input height.
//
// Returns:
//   - *tensor.Dense: The NCHW blob.
//   - error: An error for an empty frame or a non-positive size.
func PrepareBlob(frame gocv.Mat, width, height int) (*tensor.Dense, error) {
	if err := checkInputSize(width, height); err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, errors.New("prepare blob: empty frame")
	}

	blob := gocv.BlobFromImage(frame, PixelScale, image.Pt(width, height), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read blob data")
	}

	backing := make([]float32, len(data))
	copy(backing, data)

	return tensor.New(tensor.WithShape(1, 3, height, width), tensor.WithBacking(backing)), nil
}

// PrepareImage is the pure-Go counterpart of PrepareBlob for decoded images,
// used when replaying frames from disk.
//
// Arguments:
//   - img: The image to prepare.
//   - width: The network input width.
//   - height: The network input height.
//
// Returns:
//   - *tensor.Dense: The NCHW blob, RGB order, scaled into [0, 1].
//   - error: An error for a nil image or a non-positive size.
func PrepareImage(img image.Image, width, height int) (*tensor.Dense, error) {
	if err := checkInputSize(width, height); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("prepare image: nil image")
	}

	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
		bounds = img.Bounds()
	}

	channelSize := width * height
	data := make([]float32, 3*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) * PixelScale
			green[i] = float32(g>>8) * PixelScale
			blue[i] = float32(b>>8) * PixelScale
			i++
		}
	}

	return tensor.New(tensor.WithShape(1, 3, height, width), tensor.WithBacking(data)), nil
}

func checkInputSize(width, height int) error {
	if err := model.CheckPositive("inputWidth", width); err != nil {
		return err
	}
	return model.CheckPositive("inputHeight", height)
}
