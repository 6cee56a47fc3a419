// Package config - Application configuration from YAML, .env and the environment.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolo/detector"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models/model"
)

// EnvPrefix prefixes every environment override, e.g. GOYOLO_MODEL.
const EnvPrefix = "GOYOLO_"

// Input is the network input resolution.
type Input struct {
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Config is the application configuration.
type Config struct {
	// Model is the path to the ONNX model.
	Model string `json:"model" yaml:"model"`
	// Arch is the registered model architecture, e.g. "yolov11".
	Arch model.Name `json:"arch" yaml:"arch"`
	// Classes is the class-name file; empty uses the COCO names.
	Classes string `json:"classes" yaml:"classes"`
	// Backend selects the forward pass: "onnxruntime" or "opencv".
	Backend inference.BackendType `json:"backend" yaml:"backend"`
	// Provider is the onnxruntime execution provider.
	Provider providers.ProviderBackend `json:"provider" yaml:"provider"`
	// SharedLibraryPath overrides the onnxruntime library location.
	SharedLibraryPath string `json:"sharedLibraryPath" yaml:"sharedLibraryPath"`
	// DeviceID is the capture device index.
	DeviceID int   `json:"deviceID" yaml:"deviceID"`
	Input    Input `json:"input"    yaml:"input"`
	// ConfThreshold is the class score a candidate must exceed.
	ConfThreshold float32 `json:"confThreshold" yaml:"confThreshold"`
	// NMSThreshold is the suppression IoU threshold.
	NMSThreshold float32 `json:"nmsThreshold" yaml:"nmsThreshold"`
	// PerClassSuppression only suppresses boxes of the same class.
	PerClassSuppression bool `json:"perClassSuppression" yaml:"perClassSuppression"`
	// ShowWindow displays annotated frames.
	ShowWindow bool `json:"showWindow" yaml:"showWindow"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `json:"metricsAddr" yaml:"metricsAddr"`
	// LogLevel is a zap level name.
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	// FramesDir replays images from a directory instead of the camera.
	FramesDir string `json:"framesDir" yaml:"framesDir"`
}

// Default returns a 640x640 ONNX Runtime CPU pipeline on device 0 with
// conf 0.25 and NMS 0.45.
func Default() Config {
	d := detector.DefaultConfig()
	return Config{
		Model:         "yolo11n.onnx",
		Arch:          d.Arch,
		Backend:       inference.BackendONNXRuntime,
		Provider:      providers.CPUProviderBackend,
		Input:         Input{Width: d.InputWidth, Height: d.InputHeight},
		ConfThreshold: d.ConfThreshold,
		NMSThreshold:  d.NMSThreshold,
		ShowWindow:    true,
		LogLevel:      "info",
	}
}

// Load reads the configuration with Read and validates the result.
//
// Returns:
//   - Config: The validated configuration.
//   - error: A read, parse or *model.ConfigError.
func Load(path, envFile string) (Config, error) {
	cfg, err := Read(path, envFile)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read builds the configuration: defaults, then the YAML file at path (if
// non-empty), then the .env file at envFile (if present), then GOYOLO_*
// environment overrides. The result is not validated so that callers can
// layer further overrides first.
//
// Arguments:
//   - path: The YAML config file; empty to skip.
//   - envFile: The .env file; a missing file is ignored.
//
// Returns:
//   - Config: The merged configuration.
//   - error: A read or parse error.
func Read(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "load env file %s", envFile)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GOYOLO_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.asString("MODEL", &c.Model)
	var arch string
	if e.asString("ARCH", &arch) {
		c.Arch = model.Name(strings.ToLower(arch))
	}
	e.asString("CLASSES", &c.Classes)
	var backend, provider string
	if e.asString("BACKEND", &backend) {
		c.Backend = inference.BackendType(strings.ToLower(backend))
	}
	if e.asString("PROVIDER", &provider) {
		c.Provider = providers.ProviderBackend(strings.ToLower(provider))
	}
	e.asString("SHARED_LIBRARY_PATH", &c.SharedLibraryPath)
	e.asInt("DEVICE_ID", &c.DeviceID)
	e.asInt("INPUT_WIDTH", &c.Input.Width)
	e.asInt("INPUT_HEIGHT", &c.Input.Height)
	e.asFloat32("CONF_THRESHOLD", &c.ConfThreshold)
	e.asFloat32("NMS_THRESHOLD", &c.NMSThreshold)
	e.asBool("PER_CLASS_SUPPRESSION", &c.PerClassSuppression)
	e.asBool("SHOW_WINDOW", &c.ShowWindow)
	e.asString("METRICS_ADDR", &c.MetricsAddr)
	e.asString("LOG_LEVEL", &c.LogLevel)
	e.asString("FRAMES_DIR", &c.FramesDir)

	return e.err
}

// Validate checks every field that can be checked without touching files.
//
// Returns:
//   - error: A *model.ConfigError naming the first offending field.
func (c Config) Validate() error {
	if c.Model == "" {
		return &model.ConfigError{Field: "model", Value: c.Model, Reason: "must not be empty"}
	}
	switch c.Backend {
	case inference.BackendONNXRuntime, inference.BackendOpenCV:
	default:
		return &model.ConfigError{Field: "backend", Value: c.Backend, Reason: "must be onnxruntime or opencv"}
	}
	if _, err := providers.ParseBackend(string(c.Provider)); err != nil {
		return &model.ConfigError{Field: "provider", Value: c.Provider, Reason: err.Error()}
	}
	if c.DeviceID < 0 {
		return &model.ConfigError{Field: "deviceID", Value: c.DeviceID, Reason: "must not be negative"}
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return &model.ConfigError{Field: "logLevel", Value: c.LogLevel, Reason: err.Error()}
	}
	return c.Detector().Validate()
}

// Detector returns the pipeline part of the configuration.
func (c Config) Detector() detector.Config {
	return detector.Config{
		Arch:                c.Arch,
		InputWidth:          c.Input.Width,
		InputHeight:         c.Input.Height,
		ConfThreshold:       c.ConfThreshold,
		NMSThreshold:        c.NMSThreshold,
		PerClassSuppression: c.PerClassSuppression,
	}
}

// envReader parses prefixed variables and keeps the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = errors.Wrapf(err, "%s%s=%q", EnvPrefix, key, value)
	}
}

func (e *envReader) asString(key string, dst *string) bool {
	v, ok := e.get(key)
	if ok {
		*dst = v
	}
	return ok
}

func (e *envReader) asInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) asFloat32(key string, dst *float32) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = float32(f)
	}
}

func (e *envReader) asBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}
