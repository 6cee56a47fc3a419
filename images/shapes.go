// Package images - Image geometry and cropping utilities.
package images

import (
	"image"
	"math"

	"github.com/chewxy/math32"
)

// Rect is an axis-aligned box in pixel coordinates with a top-left origin.
//
// Width and Height are stored as-is: a Rect decoded from a model output may
// carry negative coordinates or extend past the frame, clamping is left to
// whoever draws it.
type Rect struct {
	X      int `json:"x"      yaml:"x"`
	Y      int `json:"y"      yaml:"y"`
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// RectFromCenter converts a center/size box into a top-left Rect.
//
// Every component is truncated toward zero (not rounded), so a center of
// (10.5, 10) with size 4x4 lands at (8, 8). NaN components become 0 and
// values outside the int32 range, infinities included, saturate at its ends.
//
// Arguments:
//   - cx, cy: The box center.
//   - w, h: The box width and height.
//
// Returns:
//   - Rect: The top-left form of the box.
func RectFromCenter(cx, cy, w, h float32) Rect {
	return Rect{
		X:      truncPixel(cx - w/2),
		Y:      truncPixel(cy - h/2),
		Width:  truncPixel(w),
		Height: truncPixel(h),
	}
}

func truncPixel(v float32) int {
	switch {
	case math32.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(math32.Trunc(v))
}

// X2 returns the exclusive right edge.
func (r Rect) X2() int { return r.X + r.Width }

// Y2 returns the exclusive bottom edge.
func (r Rect) Y2() int { return r.Y + r.Height }

// Area returns Width*Height, or 0 for a degenerate box.
func (r Rect) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Empty reports whether the box covers no pixels.
func (r Rect) Empty() bool {
	return r.Area() == 0
}

// ToRectangle converts r to an image.Rectangle for drawing.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X2(), r.Y2())
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// IoU is the area both boxes share divided by the area they cover together:
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
// 1.0 means the boxes are identical, 0.0 means they do not touch. A box with
// zero or negative width or height has no area and therefore an IoU of 0
// with anything, including itself.
//
// Arguments:
//   - r: The first box.
//   - o: The box to compare against.
//
// Returns:
//   - float32: A value in [0, 1].
//
// Example:
//
// ```go
//
//	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
//	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	areaR := r.Area()
	areaO := o.Area()
	if areaR == 0 || areaO == 0 {
		return 0.0
	}

	// The overlap starts where both boxes have started and ends where the
	// first one ends.
	interW := min(r.X2(), o.X2()) - max(r.X, o.X)
	interH := min(r.Y2(), o.Y2()) - max(r.Y, o.Y)
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	return float32(interArea) / float32(areaR+areaO-interArea)
}
