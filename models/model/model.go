// Package model - Contract shared by detection models.
package model

import (
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the anchor-free YOLO family (v8, v11) trained on COCO.
	ModelFamilyYOLO Family = "yolo"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv8 is the name of the YOLOv8 detection model.
	ModelNameYOLOv8 Name = "yolov8"
	// ModelNameYOLOv11 is the name of the YOLOv11 detection model.
	ModelNameYOLOv11 Name = "yolov11"
)

// BaseModel describes a model independently of how it is run.
type BaseModel struct {
	Name   Name
	Family Family
	Path   string
	// InputWidth and InputHeight are the fixed resolution the network was
	// exported with.
	InputWidth  int
	InputHeight int
	// Inputs and Outputs are the graph node names.
	Inputs  []string
	Outputs []string
}

// Model turns raw network outputs into detections in two steps, so callers
// can observe each one separately.
type Model interface {
	Options() BaseModel
	// Decode reads the network outputs into candidates scoring strictly above
	// confThreshold. It returns a *ShapeError for outputs of the wrong layout.
	Decode(outputs []tensor.Tensor, confThreshold float32) ([]postprocess.Candidate, error)
	// Suppress reduces candidates to the final detections, highest
	// confidence first.
	Suppress(candidates []postprocess.Candidate, config postprocess.NMSConfig) []postprocess.Detection
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name        Name     `json:"name"        yaml:"name"`
	Path        string   `json:"path"        yaml:"path"`
	Family      Family   `json:"family"      yaml:"family"`
	InputWidth  int      `json:"inputWidth"  yaml:"inputWidth"`
	InputHeight int      `json:"inputHeight" yaml:"inputHeight"`
	Inputs      []string `json:"inputs"      yaml:"inputs"`
	Outputs     []string `json:"outputs"     yaml:"outputs"`
}
