// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-yolo/images"

// NoClass is the class id of a detection whose class is unknown.
const NoClass = -1

// Candidate is one anchor row that cleared the confidence threshold.
//
// It only lives for the duration of a single PostProcess call.
type Candidate struct {
	// Row is the anchor index the candidate was decoded from.
	Row int
	// CX, CY, W, H are the raw box parameters in input-resolution pixels.
	CX, CY, W, H float32
	// Box is the truncated top-left form of CX, CY, W, H.
	Box images.Rect
	// ClassID is the best-scoring class of the row.
	ClassID int
	// Score is the score of ClassID.
	Score float32
}

// Detection is a finalized object in pixel coordinates.
type Detection struct {
	// The bounding box of the object, top-left origin, not clamped.
	Box images.Rect `json:"box"`
	// Index into the class-name table, or NoClass.
	ClassID int `json:"classID"`
	// Confidence in [0, 1].
	Confidence float32 `json:"confidence"`
}

// NewDetection returns a detection for box with an unknown class and zero
// confidence.
func NewDetection(box images.Rect) Detection {
	return Detection{Box: box, ClassID: NoClass}
}

// CandidateBoxes splits candidates into the parallel box and score slices the
// suppressor consumes.
//
// Arguments:
//   - candidates: The decoded candidates.
//
// Returns:
//   - []images.Rect: The box of each candidate.
//   - []float32: The score of each candidate.
//   - []int: The class of each candidate.
func CandidateBoxes(candidates []Candidate) ([]images.Rect, []float32, []int) {
	boxes := make([]images.Rect, len(candidates))
	scores := make([]float32, len(candidates))
	classes := make([]int, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.Box
		scores[i] = c.Score
		classes[i] = c.ClassID
	}
	return boxes, scores, classes
}
