// Package camera - Scoped ownership of a video capture device.
package camera

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when the device yields no frame.
var ErrEmptyFrame = errors.New("camera returned an empty frame")

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("camera is closed")

// Camera owns an open capture device until Close.
type Camera struct {
	source  any
	capture *gocv.VideoCapture
}

// Open opens a local capture device by index.
//
// Arguments:
//   - deviceID: The device index, 0 for the default camera.
//
// Returns:
//   - *Camera: The open camera.
//   - error: An error if the device cannot be opened.
func Open(deviceID int) (*Camera, error) {
	return open(deviceID)
}

// OpenPath opens a video file or stream URL.
func OpenPath(path string) (*Camera, error) {
	return open(path)
}

func open(source any) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture %v", source)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("capture %v did not open", source)
	}
	return &Camera{source: source, capture: capture}, nil
}

// Read grabs the next frame into dst.
//
// Returns:
//   - error: ErrEmptyFrame when the device fails or returns no pixels,
//     ErrClosed after Close.
func (c *Camera) Read(dst *gocv.Mat) error {
	if c.capture == nil {
		return ErrClosed
	}
	if ok := c.capture.Read(dst); !ok || dst.Empty() {
		return errors.Wrapf(ErrEmptyFrame, "source %v", c.source)
	}
	return nil
}

// Size returns the capture's reported frame width and height.
func (c *Camera) Size() (width, height int) {
	if c.capture == nil {
		return 0, 0
	}
	return int(c.capture.Get(gocv.VideoCaptureFrameWidth)), int(c.capture.Get(gocv.VideoCaptureFrameHeight))
}

// Close releases the device. It is safe to call more than once.
func (c *Camera) Close() error {
	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return errors.Wrap(err, "close capture")
}
