package detector

import (
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Config holds the detection pipeline parameters.
type Config struct {
	// Arch names the registered model that decodes the backend outputs.
	Arch model.Name `json:"arch" yaml:"arch"`
	// InputWidth and InputHeight are the network resolution.
	InputWidth  int `json:"inputWidth"  yaml:"inputWidth"`
	InputHeight int `json:"inputHeight" yaml:"inputHeight"`
	// ConfThreshold is the class score a candidate must strictly exceed.
	ConfThreshold float32 `json:"confThreshold" yaml:"confThreshold"`
	// NMSThreshold is the IoU above which a lower-scored box is suppressed.
	NMSThreshold float32 `json:"nmsThreshold" yaml:"nmsThreshold"`
	// PerClassSuppression restricts suppression to boxes of the same class.
	// The default suppresses across classes.
	PerClassSuppression bool `json:"perClassSuppression" yaml:"perClassSuppression"`
}

// DefaultConfig returns a 640x640 YOLOv11 pipeline with conf 0.25 and NMS 0.45.
func DefaultConfig() Config {
	return Config{
		Arch:          model.ModelNameYOLOv11,
		InputWidth:    640,
		InputHeight:   640,
		ConfThreshold: 0.25,
		NMSThreshold:  0.45,
	}
}

// Validate rejects non-positive sizes and thresholds outside [0, 1].
//
// Returns:
//   - error: A *model.ConfigError naming the first offending field.
func (c Config) Validate() error {
	if err := model.CheckPositive("inputWidth", c.InputWidth); err != nil {
		return err
	}
	if err := model.CheckPositive("inputHeight", c.InputHeight); err != nil {
		return err
	}
	if err := model.CheckUnit("confThreshold", c.ConfThreshold); err != nil {
		return err
	}
	return model.CheckUnit("nmsThreshold", c.NMSThreshold)
}

// NMSConfig returns the suppression settings for c.
func (c Config) NMSConfig() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		ScoreThreshold: c.ConfThreshold,
		IoUThreshold:   c.NMSThreshold,
		ClassAware:     c.PerClassSuppression,
	}
}
