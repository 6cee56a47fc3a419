package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrCropOutOfRange is returned when a requested crop cannot be cut from the
// source frame.
var ErrCropOutOfRange = errors.New("crop out of range")

// CropCentered cuts a width x height window out of the middle of img.
//
// The returned Mat is a region view that shares pixels with img, so it must
// be closed before img is reused for the next frame.
//
// Arguments:
//   - img: The source frame.
//   - width: The crop width in pixels.
//   - height: The crop height in pixels.
//
// Returns:
//   - gocv.Mat: The cropped view.
//   - error: ErrCropOutOfRange (wrapped) when img is empty, a dimension is
//     zero or the crop is larger than img.
func CropCentered(img gocv.Mat, width, height int) (gocv.Mat, error) {
	bounds, err := CenteredWindow(img.Cols(), img.Rows(), width, height)
	if err != nil {
		return gocv.NewMat(), err
	}
	return img.Region(bounds), nil
}

// CenteredWindow computes the rectangle CropCentered cuts from a
// srcWidth x srcHeight frame.
func CenteredWindow(srcWidth, srcHeight, width, height int) (image.Rectangle, error) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return image.Rectangle{}, errors.Wrap(ErrCropOutOfRange, "input image is empty")
	}
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, errors.Wrapf(ErrCropOutOfRange,
			"crop size must be non-zero, got %dx%d", width, height)
	}
	if width > srcWidth || height > srcHeight {
		return image.Rectangle{}, errors.Wrapf(ErrCropOutOfRange,
			"crop %dx%d is larger than image %dx%d", width, height, srcWidth, srcHeight)
	}

	x := (srcWidth - width) / 2
	y := (srcHeight - height) / 2
	return image.Rect(x, y, x+width, y+height), nil
}
