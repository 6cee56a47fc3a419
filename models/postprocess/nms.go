// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"

	"github.com/nvr-ai/go-yolo/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// ScoreThreshold drops boxes whose score is not strictly above it.
	ScoreThreshold float32 `json:"scoreThreshold" yaml:"scoreThreshold"`
	// IoUThreshold suppresses boxes overlapping a kept box by strictly more.
	IoUThreshold float32 `json:"iouThreshold" yaml:"iouThreshold"`
	// ClassAware restricts suppression to boxes of the same class.
	ClassAware bool `json:"classAware" yaml:"classAware"`
}

// NMSBoxes performs class-agnostic greedy Non-Maximum Suppression.
//
// Boxes are visited in descending score order (equal scores keep their
// original order). Each visited box that has not been suppressed is kept, and
// every later box whose IoU with it exceeds config.IoUThreshold is
// suppressed. Boxes of any class suppress each other.
//
// Arguments:
//   - boxes: The candidate boxes.
//   - scores: The score of each box, parallel to boxes.
//   - config: NMS configuration. ClassAware is ignored.
//
// Returns:
//   - The indices of the kept boxes in descending score order. Neither input
//     is modified.
func NMSBoxes(boxes []images.Rect, scores []float32, config NMSConfig) []int {
	return suppress(boxes, scores, nil, config)
}

// NMSBoxesBatched performs greedy Non-Maximum Suppression independently per
// class: a kept box only suppresses boxes that share its class id. The result
// is still a single list ordered by descending score.
//
// Arguments:
//   - boxes: The candidate boxes.
//   - scores: The score of each box, parallel to boxes.
//   - classIDs: The class of each box, parallel to boxes.
//   - config: NMS configuration.
//
// Returns:
//   - The indices of the kept boxes in descending score order.
func NMSBoxesBatched(boxes []images.Rect, scores []float32, classIDs []int, config NMSConfig) []int {
	return suppress(boxes, scores, classIDs, config)
}

// Suppress dispatches to NMSBoxes or NMSBoxesBatched depending on
// config.ClassAware.
func Suppress(boxes []images.Rect, scores []float32, classIDs []int, config NMSConfig) []int {
	if config.ClassAware {
		return NMSBoxesBatched(boxes, scores, classIDs, config)
	}
	return NMSBoxes(boxes, scores, config)
}

// suppress is the shared greedy loop. classIDs == nil means class-agnostic.
func suppress(boxes []images.Rect, scores []float32, classIDs []int, config NMSConfig) []int {
	n := min(len(boxes), len(scores))
	if classIDs != nil {
		n = min(n, len(classIDs))
	}

	// rank[i] is the visiting position of box i, or -1 if it never competes.
	rank := make([]int, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		rank[i] = -1
		if scores[i] > config.ScoreThreshold {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return []int{}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	for r, i := range order {
		rank[i] = r
	}

	index := newBoxIndex(boxes[:n])
	suppressed := make([]bool, n)
	kept := make([]int, 0, len(order))

	for _, i := range order {
		if suppressed[i] {
			continue
		}
		kept = append(kept, i)

		anchor := boxes[i]
		if anchor.Empty() {
			continue
		}
		for _, j := range index.overlapping(anchor) {
			if rank[j] <= rank[i] || suppressed[j] {
				continue
			}
			if classIDs != nil && classIDs[j] != classIDs[i] {
				continue
			}
			if images.CalculateIoU(anchor, boxes[j]) > config.IoUThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}

// boxIndex is a static spatial index over the candidate boxes, so that each
// kept box is only compared against boxes it can actually overlap.
type boxIndex struct {
	fb *flatbush.Flatbush[int64]
}

func newBoxIndex(boxes []images.Rect) *boxIndex {
	fb := flatbush.NewFlatbush[int64]()
	fb.Reserve(len(boxes))
	for _, b := range boxes {
		x1, y1, x2, y2 := extent(b)
		fb.Add(x1, y1, x2, y2)
	}
	fb.Finish()
	return &boxIndex{fb: fb}
}

// overlapping returns the indices of every box whose extent touches r.
func (bi *boxIndex) overlapping(r images.Rect) []int {
	x1, y1, x2, y2 := extent(r)
	return bi.fb.Search(x1, y1, x2, y2)
}

// extent returns the normalized corners of r, so that degenerate boxes still
// produce a valid index entry.
func extent(r images.Rect) (x1, y1, x2, y2 int64) {
	x1, x2 = int64(r.X), int64(r.X2())
	y1, y2 = int64(r.Y), int64(r.Y2())
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return x1, y1, x2, y2
}
