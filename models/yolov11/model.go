package yolov11

import (
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Default graph node names of an Ultralytics ONNX export.
const (
	DefaultInputName  = "images"
	DefaultOutputName = "output0"
)

// YOLOv11 is the instance of the YOLOv11 (or YOLOv8, same head) model.
type YOLOv11 struct {
	options model.BaseModel
}

// NewModel creates a new model.
//
// Arguments:
//   - args: The arguments for creating a new model. Missing node names fall
//     back to the Ultralytics defaults.
//
// Returns:
//   - *YOLOv11: The model.
//   - error: A *model.ConfigError for a non-positive input resolution.
func NewModel(args model.NewModelArgs) (*YOLOv11, error) {
	if err := model.CheckPositive("inputWidth", args.InputWidth); err != nil {
		return nil, err
	}
	if err := model.CheckPositive("inputHeight", args.InputHeight); err != nil {
		return nil, err
	}

	name := args.Name
	if name == "" {
		name = model.ModelNameYOLOv11
	}
	inputs := args.Inputs
	if len(inputs) == 0 {
		inputs = []string{DefaultInputName}
	}
	outputs := args.Outputs
	if len(outputs) == 0 {
		outputs = []string{DefaultOutputName}
	}

	return &YOLOv11{
		options: model.BaseModel{
			Name:        name,
			Family:      model.ModelFamilyYOLO,
			Path:        args.Path,
			InputWidth:  args.InputWidth,
			InputHeight: args.InputHeight,
			Inputs:      inputs,
			Outputs:     outputs,
		},
	}, nil
}

// Options returns the options for the YOLOv11 model.
func (m *YOLOv11) Options() model.BaseModel {
	return m.options
}

// Decode reads the single detection head into candidates.
//
// Arguments:
//   - outputs: The inference outputs; exactly one [1, 4+K, N] tensor.
//   - confThreshold: The class score a row must strictly exceed.
//
// Returns:
//   - []postprocess.Candidate: Candidates in row order, possibly empty.
//   - error: A *model.ShapeError for a malformed output.
func (m *YOLOv11) Decode(outputs []tensor.Tensor, confThreshold float32) ([]postprocess.Candidate, error) {
	if len(outputs) != 1 {
		return nil, model.NewShapeError(nil, "expected exactly 1 output tensor, got %d", len(outputs))
	}
	return NewDecoder(confThreshold).Decode(outputs[0])
}

// Suppress runs non-maximum suppression over candidates and materializes the
// survivors in the order the suppressor returned them.
func (m *YOLOv11) Suppress(candidates []postprocess.Candidate, config postprocess.NMSConfig) []postprocess.Detection {
	boxes, scores, classes := postprocess.CandidateBoxes(candidates)
	kept := postprocess.Suppress(boxes, scores, classes, config)

	detections := make([]postprocess.Detection, 0, len(kept))
	for _, idx := range kept {
		detections = append(detections, postprocess.Detection{
			Box:        candidates[idx].Box,
			ClassID:    candidates[idx].ClassID,
			Confidence: candidates[idx].Score,
		})
	}
	return detections
}
