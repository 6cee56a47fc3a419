// Package yolov11 - decodes YOLOv8/YOLOv11 detection heads.
package yolov11

import (
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// boxParams is the number of leading box columns (cx, cy, w, h) in each row.
const boxParams = 4

// Decoder turns a [1, 4+K, N] detection head into candidates.
type Decoder struct {
	threshold float32
}

// NewDecoder creates a decoder that keeps class scores strictly above
// confThreshold.
func NewDecoder(confThreshold float32) *Decoder {
	return &Decoder{threshold: confThreshold}
}

// Decode reads every anchor row of t and emits at most one candidate per row.
//
// The tensor is stored channel-major ([1, C, N]); rows are read through an
// anchor-major view without copying it. A row qualifies when one of its class
// scores exceeds the threshold; the row's candidate takes the highest such
// score, the lowest class index winning ties. Box coordinates are truncated to
// whole pixels and never clamped.
//
// Arguments:
//   - t: The detection head. It is not modified.
//
// Returns:
//   - []postprocess.Candidate: Candidates in row order, possibly empty.
//   - error: A *model.ShapeError if t is not a single-batch float32 3-D tensor.
func (d *Decoder) Decode(t tensor.Tensor) ([]postprocess.Candidate, error) {
	view, err := newAnchorView(t)
	if err != nil {
		return nil, err
	}

	candidates := make([]postprocess.Candidate, 0)
	scores := make([]float32, view.classes())
	for row := 0; row < view.anchors; row++ {
		view.classScores(row, scores)
		classID, score, ok := BestClass(scores, d.threshold)
		if !ok {
			continue
		}

		cx, cy, w, h := view.box(row)
		candidates = append(candidates, postprocess.Candidate{
			Row:     row,
			CX:      cx,
			CY:      cy,
			W:       w,
			H:       h,
			Box:     images.RectFromCenter(cx, cy, w, h),
			ClassID: classID,
			Score:   score,
		})
	}

	return candidates, nil
}

// classScore is the running state of the per-row class fold.
type classScore struct {
	id    int
	score float32
}

// fold admits score for class id if it beats both the threshold and every
// class seen so far. Seeding the fold with the threshold makes that a single
// strict comparison.
func (c classScore) fold(id int, score float32) classScore {
	if score > c.score {
		return classScore{id: id, score: score}
	}
	return c
}

// BestClass returns the highest score strictly above threshold and its index.
//
// Arguments:
//   - scores: The per-class scores of one row.
//   - threshold: The score a class must exceed to be considered at all.
//
// Returns:
//   - classID: The winning class, or postprocess.NoClass.
//   - score: The winning score.
//   - ok: False when no class exceeded threshold.
func BestClass(scores []float32, threshold float32) (classID int, score float32, ok bool) {
	best := classScore{id: postprocess.NoClass, score: threshold}
	for id, s := range scores {
		best = best.fold(id, s)
	}
	if best.id == postprocess.NoClass {
		return postprocess.NoClass, 0, false
	}
	return best.id, best.score, true
}

// anchorView reads a channel-major [1, C, N] buffer as N rows of C columns.
type anchorView struct {
	data     []float32
	channels int
	anchors  int
}

func newAnchorView(t tensor.Tensor) (*anchorView, error) {
	if t == nil {
		return nil, model.NewShapeError(nil, "missing output tensor")
	}

	shape := []int(t.Shape())
	if t.Dtype() != tensor.Float32 {
		return nil, model.NewShapeError(shape, "expected float32 elements, got %v", t.Dtype())
	}
	if len(shape) != 3 {
		return nil, model.NewShapeError(shape, "expected 3 dimensions [1, 4+K, N], got %d", len(shape))
	}
	if shape[0] != 1 {
		return nil, model.NewShapeError(shape, "expected batch size 1, got %d", shape[0])
	}
	if shape[1] <= boxParams {
		return nil, model.NewShapeError(shape, "expected more than %d channels, got %d", boxParams, shape[1])
	}

	if d, ok := t.(*tensor.Dense); ok && d.IsMaterializable() {
		t = d.Materialize()
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, model.NewShapeError(shape, "tensor data is %T, not []float32", t.Data())
	}
	if len(data) != shape[1]*shape[2] {
		return nil, model.NewShapeError(shape, "backing holds %d values, want %d", len(data), shape[1]*shape[2])
	}

	return &anchorView{data: data, channels: shape[1], anchors: shape[2]}, nil
}

func (v *anchorView) classes() int {
	return v.channels - boxParams
}

// at returns column col of row, i.e. element [0, col, row] of the tensor.
func (v *anchorView) at(row, col int) float32 {
	return v.data[col*v.anchors+row]
}

func (v *anchorView) box(row int) (cx, cy, w, h float32) {
	return v.at(row, 0), v.at(row, 1), v.at(row, 2), v.at(row, 3)
}

// classScores copies the class columns of row into dst.
func (v *anchorView) classScores(row int, dst []float32) {
	for j := range dst {
		dst[j] = v.at(row, boxParams+j)
	}
}
