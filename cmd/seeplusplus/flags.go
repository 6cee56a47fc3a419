package main

import (
	"strconv"

	"github.com/akamensky/argparse"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/models/model"
)

// cliArgs holds the parsed command line. Empty strings, nil numbers and false
// switches leave the loaded configuration untouched.
type cliArgs struct {
	configFile string
	envFile    string
	json       bool

	arch      string
	modelPath string
	classes   string
	backend   string
	provider  string
	library   string
	device    *int
	width     *int
	height    *int
	conf      *float64
	nms       *float64
	perClass  bool
	noWindow  bool
	framesDir string
	metrics   string
	logLevel  string
}

func parseArgs(args []string) (*cliArgs, error) {
	parser := argparse.NewParser("seeplusplus", "Run YOLO object detection on a camera or a directory of frames")

	configFile := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file", Default: ""})
	envFile := parser.String("", "env", &argparse.Options{Help: ".env file with GOYOLO_* overrides", Default: ".env"})
	jsonLogs := parser.Flag("", "json", &argparse.Options{Help: "Log JSON instead of console output", Default: false})
	arch := parser.String("a", "arch", &argparse.Options{Help: "Model architecture (yolov8, yolov11)", Default: ""})
	modelPath := parser.String("m", "model", &argparse.Options{Help: "ONNX model file", Default: ""})
	classes := parser.String("", "classes", &argparse.Options{Help: "Class name file, one name per line", Default: ""})
	backend := parser.String("b", "backend", &argparse.Options{Help: "Inference backend (onnxruntime, opencv)", Default: ""})
	provider := parser.String("p", "provider", &argparse.Options{Help: "ONNX Runtime execution provider (cpu, cuda, coreml, openvino)", Default: ""})
	library := parser.String("", "ort-lib", &argparse.Options{Help: "Path to the onnxruntime shared library", Default: ""})
	device := parser.String("d", "device", &argparse.Options{Help: "Capture device index", Default: ""})
	width := parser.String("", "width", &argparse.Options{Help: "Network input width", Default: ""})
	height := parser.String("", "height", &argparse.Options{Help: "Network input height", Default: ""})
	conf := parser.String("", "conf", &argparse.Options{Help: "Confidence threshold", Default: ""})
	nms := parser.String("", "nms", &argparse.Options{Help: "NMS IoU threshold", Default: ""})
	perClass := parser.Flag("", "per-class", &argparse.Options{Help: "Only suppress overlapping boxes of the same class", Default: false})
	noWindow := parser.Flag("", "no-window", &argparse.Options{Help: "Do not display annotated frames", Default: false})
	framesDir := parser.String("f", "frames", &argparse.Options{Help: "Replay images from this directory instead of the camera", Default: ""})
	metrics := parser.String("", "metrics", &argparse.Options{Help: "Serve Prometheus metrics on this address (eg :9090)", Default: ""})
	logLevel := parser.String("l", "log-level", &argparse.Options{Help: "Log level (debug, info, warn, error)", Default: ""})

	if err := parser.Parse(args); err != nil {
		return nil, &usageError{usage: parser.Usage(err), err: err}
	}

	a := &cliArgs{
		configFile: *configFile,
		envFile:    *envFile,
		json:       *jsonLogs,
		arch:       *arch,
		modelPath:  *modelPath,
		classes:    *classes,
		backend:    *backend,
		provider:   *provider,
		library:    *library,
		perClass:   *perClass,
		noWindow:   *noWindow,
		framesDir:  *framesDir,
		metrics:    *metrics,
		logLevel:   *logLevel,
	}

	var err error
	for _, n := range []struct {
		name  string
		value string
		dst   **int
	}{
		{"device", *device, &a.device},
		{"width", *width, &a.width},
		{"height", *height, &a.height},
	} {
		if *n.dst, err = optionalInt(n.name, n.value); err != nil {
			return nil, &usageError{usage: parser.Usage(err), err: err}
		}
	}
	for _, n := range []struct {
		name  string
		value string
		dst   **float64
	}{
		{"conf", *conf, &a.conf},
		{"nms", *nms, &a.nms},
	} {
		if *n.dst, err = optionalFloat(n.name, n.value); err != nil {
			return nil, &usageError{usage: parser.Usage(err), err: err}
		}
	}
	return a, nil
}

// optionalInt parses value, returning nil when the flag was not given.
func optionalInt(name, value string) (*int, error) {
	if value == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, errors.Wrapf(err, "--%s", name)
	}
	return &n, nil
}

// optionalFloat parses value, returning nil when the flag was not given.
func optionalFloat(name, value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "--%s", name)
	}
	return &f, nil
}

// apply overrides cfg with every flag that was given. The caller validates.
func (a *cliArgs) apply(cfg *config.Config) {
	if a.arch != "" {
		cfg.Arch = model.Name(a.arch)
	}
	if a.modelPath != "" {
		cfg.Model = a.modelPath
	}
	if a.classes != "" {
		cfg.Classes = a.classes
	}
	if a.backend != "" {
		cfg.Backend = inference.BackendType(a.backend)
	}
	if a.provider != "" {
		cfg.Provider = providers.ProviderBackend(a.provider)
	}
	if a.library != "" {
		cfg.SharedLibraryPath = a.library
	}
	if a.device != nil {
		cfg.DeviceID = *a.device
	}
	if a.width != nil {
		cfg.Input.Width = *a.width
	}
	if a.height != nil {
		cfg.Input.Height = *a.height
	}
	if a.conf != nil {
		cfg.ConfThreshold = float32(*a.conf)
	}
	if a.nms != nil {
		cfg.NMSThreshold = float32(*a.nms)
	}
	if a.perClass {
		cfg.PerClassSuppression = true
	}
	if a.noWindow {
		cfg.ShowWindow = false
	}
	if a.framesDir != "" {
		cfg.FramesDir = a.framesDir
	}
	if a.metrics != "" {
		cfg.MetricsAddr = a.metrics
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
}

type usageError struct {
	usage string
	err   error
}

func (e *usageError) Error() string { return e.usage }

func (e *usageError) Unwrap() error { return e.err }
