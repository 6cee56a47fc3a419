// Package render - Draws detections and the frame rate onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/profiler"
)

// Visual parameters.
const (
	BoxThickness   = 2
	LabelFontScale = 0.5
	LabelThickness = 1
	// LabelBaselinePad is extra padding below the label text.
	LabelBaselinePad = 2

	FPSFontScale = 0.7
	FPSThickness = 2
	FPSMargin    = 10

	// hueStep spreads neighbouring class ids across the hue wheel.
	hueStep = 37
)

// UnknownLabel is drawn for class ids outside the class table.
const UnknownLabel = "Unknown"

var textColor = color.RGBA{A: 255}

// ClassColor returns the box color for classID.
//
// The hue walks the OpenCV half-degree wheel in steps of 37 at full
// saturation and value, so the same id always gets the same color.
func ClassColor(classID int) color.RGBA {
	hue := ((classID*hueStep)%180 + 180) % 180
	r, g, b := colorful.Hsv(float64(hue)*2, 1, 1).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Label returns "<name> <confidence>" with two decimals, or UnknownLabel when
// the class id has no name.
func Label(det postprocess.Detection, classes []string) string {
	if det.ClassID < 0 || det.ClassID >= len(classes) {
		return UnknownLabel
	}
	return fmt.Sprintf("%s %.2f", classes[det.ClassID], det.Confidence)
}

// LabelPlacement positions a label of textSize over box.
//
// The label sits on the box's top edge, or is pushed down inside the box
// when the box touches the top of the frame.
//
// Returns:
//   - background: The filled rectangle behind the text.
//   - origin: The text baseline origin for PutText.
func LabelPlacement(box image.Rectangle, textSize image.Point, baseline int) (background image.Rectangle, origin image.Point) {
	baseline += LabelBaselinePad
	top := max(box.Min.Y, textSize.Y)
	background = image.Rect(box.Min.X, top-textSize.Y-baseline, box.Min.X+textSize.X, top)
	origin = image.Pt(box.Min.X, top-baseline)
	return background, origin
}

// FPSOrigin positions text of textSize in the top-right corner of a frame of
// the given width.
func FPSOrigin(frameWidth int, textSize image.Point) image.Point {
	return image.Pt(frameWidth-textSize.X-FPSMargin, FPSMargin+textSize.Y)
}

// DrawDetections draws every box with its label onto frame.
//
// Arguments:
//   - frame: The frame to draw on, in place.
//   - detections: The detections, in frame coordinates.
//   - classes: The class-name table.
func DrawDetections(frame *gocv.Mat, detections []postprocess.Detection, classes []string) {
	for _, det := range detections {
		c := ClassColor(det.ClassID)
		box := det.Box.ToRectangle()
		gocv.Rectangle(frame, box, c, BoxThickness)

		label := Label(det, classes)
		size, baseline := gocv.GetTextSizeWithBaseline(label, gocv.FontHersheySimplex, LabelFontScale, LabelThickness)
		background, origin := LabelPlacement(box, size, baseline)

		gocv.Rectangle(frame, background, c, -1)
		gocv.PutText(frame, label, origin, gocv.FontHersheySimplex, LabelFontScale, textColor, LabelThickness)
	}
}

// DrawFPS writes "FPS: n.n" into the top-right corner of frame.
func DrawFPS(frame *gocv.Mat, fps float64) {
	label := fmt.Sprintf("FPS: %.1f", fps)
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, FPSFontScale, FPSThickness)
	gocv.PutText(frame, label, FPSOrigin(frame.Cols(), size), gocv.FontHersheySimplex, FPSFontScale, textColor, FPSThickness)
}

// Annotate draws the detections and the frame rate, timing both under the
// render stage of metrics. A nil metrics only draws.
func Annotate(frame *gocv.Mat, detections []postprocess.Detection, classes []string, fps float64, metrics *profiler.PipelineMetrics) {
	done := metrics.StartOperation(profiler.StageRender)
	defer done()

	DrawDetections(frame, detections, classes)
	DrawFPS(frame, fps)
}
