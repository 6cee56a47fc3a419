// Package models - registry for models and their class tables.
package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/yolov11"
)

// ErrUnsupportedModel is returned by NewModel for a name it cannot build.
var ErrUnsupportedModel = errors.New("unsupported model name")

// NewModel creates a new detection model instance based on the specified model name.
//
// YOLOv8 and YOLOv11 share the same anchor-free head, so both resolve to the
// yolov11 implementation. An empty name defaults to YOLOv11 and an empty
// family to the YOLO family.
//
// Arguments:
//   - args: Configuration parameters specifying the model type and location.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//   - error: ErrUnsupportedModel for an unknown name or family, or the
//     constructor's validation error.
//
// Example:
//
// ```go
//
//	m, err := NewModel(model.NewModelArgs{
//	    Name:        model.ModelNameYOLOv11,
//	    Path:        "/models/yolo11n.onnx",
//	    InputWidth:  640,
//	    InputHeight: 640,
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create detection model: %v", err)
//	}
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	if args.Family != "" && args.Family != model.ModelFamilyYOLO {
		return nil, errors.Wrapf(ErrUnsupportedModel, "family %q", args.Family)
	}

	switch args.Name {
	case model.ModelNameYOLOv11, model.ModelNameYOLOv8, "":
		m, err := yolov11.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedModel, "%q", args.Name)
	}
}
