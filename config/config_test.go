package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/models/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	d := cfg.Detector()
	assert.Equal(t, 640, d.InputWidth)
	assert.Equal(t, 640, d.InputHeight)
	assert.Equal(t, float32(0.25), d.ConfThreshold)
	assert.Equal(t, float32(0.45), d.NMSThreshold)
	assert.False(t, d.PerClassSuppression)
	assert.Equal(t, model.ModelNameYOLOv11, d.Arch)
	assert.Equal(t, inference.BackendONNXRuntime, cfg.Backend)
	assert.Equal(t, providers.CPUProviderBackend, cfg.Provider)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
model: models/yolo11s.onnx
classes: coco.names
backend: opencv
deviceID: 2
input:
  width: 320
  height: 256
confThreshold: 0.4
perClassSuppression: true
metricsAddr: ":9090"
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "models/yolo11s.onnx", cfg.Model)
	assert.Equal(t, "coco.names", cfg.Classes)
	assert.Equal(t, inference.BackendOpenCV, cfg.Backend)
	assert.Equal(t, 2, cfg.DeviceID)
	assert.Equal(t, Input{Width: 320, Height: 256}, cfg.Input)
	assert.Equal(t, float32(0.4), cfg.ConfThreshold)
	assert.Equal(t, float32(0.45), cfg.NMSThreshold, "unset keys keep defaults")
	assert.True(t, cfg.PerClassSuppression)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.yaml", "input: [1, 2"), "")
	assert.Error(t, err)

	_, err = Load(writeFile(t, "invalid.yaml", "nmsThreshold: 1.5\n"), "")
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "nmsThreshold", cfgErr.Field)
}

func TestReadDefersValidation(t *testing.T) {
	path := writeFile(t, "config.yaml", "nmsThreshold: 1.5\narch: yolov8\n")

	cfg, err := Read(path, "")
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), cfg.NMSThreshold)
	assert.Equal(t, model.ModelNameYOLOv8, cfg.Detector().Arch)

	// A later override can repair what the file got wrong.
	cfg.NMSThreshold = 0.5
	assert.NoError(t, cfg.Validate())

	_, err = Load(path, "")
	assert.True(t, model.IsConfigError(err))
}

func TestLoadEnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "GOYOLO_INPUT_WIDTH=416\nGOYOLO_PROVIDER=cuda\n")
	t.Cleanup(func() {
		os.Unsetenv("GOYOLO_INPUT_WIDTH")
		os.Unsetenv("GOYOLO_PROVIDER")
	})

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 416, cfg.Input.Width)
	assert.Equal(t, providers.CUDAProviderBackend, cfg.Provider)

	_, err = Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err, "a missing .env file is not an error")
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "confThreshold: 0.4\n")
	t.Setenv("GOYOLO_CONF_THRESHOLD", "0.6")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, float32(0.6), cfg.ConfThreshold)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"GOYOLO_MODEL":                 "m.onnx",
		"GOYOLO_ARCH":                  "YOLOv8",
		"GOYOLO_BACKEND":               "OpenCV",
		"GOYOLO_DEVICE_ID":             "1",
		"GOYOLO_INPUT_HEIGHT":          "480",
		"GOYOLO_NMS_THRESHOLD":         "0.3",
		"GOYOLO_PER_CLASS_SUPPRESSION": "true",
		"GOYOLO_SHOW_WINDOW":           "false",
		"GOYOLO_FRAMES_DIR":            "",
		"MODEL":                        "ignored.onnx",
	}))
	require.NoError(t, err)

	assert.Equal(t, "m.onnx", cfg.Model)
	assert.Equal(t, model.ModelNameYOLOv8, cfg.Arch)
	assert.Equal(t, inference.BackendOpenCV, cfg.Backend)
	assert.Equal(t, 1, cfg.DeviceID)
	assert.Equal(t, 480, cfg.Input.Height)
	assert.Equal(t, float32(0.3), cfg.NMSThreshold)
	assert.True(t, cfg.PerClassSuppression)
	assert.False(t, cfg.ShowWindow)
	assert.Empty(t, cfg.FramesDir)
}

func TestApplyEnvMalformed(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"GOYOLO_INPUT_WIDTH": "wide",
		"GOYOLO_SHOW_WINDOW": "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOYOLO_INPUT_WIDTH")
	assert.Equal(t, 640, cfg.Input.Width)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no model", func(c *Config) { c.Model = "" }, "model"},
		{"backend", func(c *Config) { c.Backend = "tensorrt" }, "backend"},
		{"provider", func(c *Config) { c.Provider = "dnnl" }, "provider"},
		{"device", func(c *Config) { c.DeviceID = -1 }, "deviceID"},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }, "logLevel"},
		{"width", func(c *Config) { c.Input.Width = 0 }, "inputWidth"},
		{"conf", func(c *Config) { c.ConfThreshold = -1 }, "confThreshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			var cfgErr *model.ConfigError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
