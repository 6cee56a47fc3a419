// Command seeplusplus runs YOLO detection on a live camera or on a directory
// of frames and displays the annotated result.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/camera"
	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/detector"
	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/profiler"
	"github.com/nvr-ai/go-yolo/render"
	"github.com/nvr-ai/go-yolo/util"
)

const (
	windowName = "Camera"
	keyEscape  = 27
)

func main() {
	args, err := parseArgs(os.Args)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(2)
	}

	// Reinstalled by run once the configured level is known.
	if err := logger.InitDevelopment("info"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(args); err != nil {
		logger.S().Errorf("seeplusplus: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(args *cliArgs) error {
	cfg, err := config.Read(args.configFile, args.envFile)
	if err != nil {
		return err
	}
	args.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if args.json {
		err = logger.InitProduction(cfg.LogLevel)
	} else {
		err = logger.InitDevelopment(cfg.LogLevel)
	}
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Log()

	classes := models.YOLOClasses
	if cfg.Classes != "" {
		if classes, err = models.LoadClassFile(cfg.Classes); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := profiler.NewPipelineMetrics(reg)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	arch, err := models.NewModel(model.NewModelArgs{
		Name:        cfg.Arch,
		Path:        cfg.Model,
		Family:      model.ModelFamilyYOLO,
		InputWidth:  cfg.Input.Width,
		InputHeight: cfg.Input.Height,
	})
	if err != nil {
		return err
	}

	if cfg.Backend == inference.BackendONNXRuntime {
		defer func() {
			if err := providers.DestroyEnvironment(); err != nil {
				log.Warn("destroy onnxruntime environment", zap.Error(err))
			}
		}()
	}
	backend, err := newBackend(cfg, arch.Options())
	if err != nil {
		return err
	}

	det, err := detector.New(backend, cfg.Detector(),
		detector.WithModel(arch),
		detector.WithMetrics(metrics),
		detector.WithLogger(log),
	)
	if err != nil {
		closeBackend(backend, log)
		return err
	}
	defer det.Close()

	fields := []zap.Field{
		zap.String("model", cfg.Model),
		zap.String("arch", string(det.Model().Options().Name)),
		zap.String("backend", string(cfg.Backend)),
		zap.Int("classes", len(classes)),
	}
	if session, ok := backend.(*providers.Session); ok {
		fields = append(fields, zap.String("provider", string(session.Provider())))
	}
	log.Info("detector ready", fields...)

	if cfg.FramesDir != "" {
		return replay(ctx, det, cfg, classes, log)
	}
	return live(ctx, det, cfg, classes, metrics, log)
}

func newBackend(cfg config.Config, arch model.BaseModel) (inference.Backend, error) {
	switch cfg.Backend {
	case inference.BackendOpenCV:
		return inference.NewOpenCVBackend(cfg.Model)
	case inference.BackendONNXRuntime:
		backend, err := providers.ParseBackend(string(cfg.Provider))
		if err != nil {
			return nil, err
		}
		provider, err := providers.NewDefaultProvider(backend)
		if err != nil {
			return nil, err
		}
		return providers.NewSession(provider, providers.NewSessionArgs{
			ModelPath:         cfg.Model,
			SharedLibraryPath: cfg.SharedLibraryPath,
			InputName:         arch.Inputs[0],
			OutputName:        arch.Outputs[0],
			InputWidth:        cfg.Input.Width,
			InputHeight:       cfg.Input.Height,
		})
	default:
		return nil, pkgerrors.Wrapf(inference.ErrUnsupportedBackend, "%q", cfg.Backend)
	}
}

// closeBackend releases a backend that never reached a detector.
func closeBackend(backend inference.Backend, log *zap.Logger) {
	if err := backend.Close(); err != nil {
		log.Warn("close backend", zap.Error(err))
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

// live reads the camera until it runs dry, the user quits or ctx is done.
func live(ctx context.Context, det *detector.Detector, cfg config.Config, classes []string, metrics *profiler.PipelineMetrics, log *zap.Logger) error {
	cam, err := camera.Open(cfg.DeviceID)
	if err != nil {
		return err
	}
	defer cam.Close()

	w, h := cam.Size()
	log.Info("camera open", zap.Int("device", cfg.DeviceID), zap.Int("width", w), zap.Int("height", h))

	var window *gocv.Window
	if cfg.ShowWindow {
		window = gocv.NewWindow(windowName)
		defer window.Close()
	}

	frame := gocv.NewMat()
	defer frame.Close()

	fps := profiler.NewFPSMeter(profiler.WithObserver(metrics.SetFPS))

	for ctx.Err() == nil {
		if err := cam.Read(&frame); err != nil {
			if errors.Is(err, camera.ErrEmptyFrame) {
				log.Info("empty frame, stopping", zap.Error(err))
				return nil
			}
			return err
		}

		if !processFrame(ctx, det, frame, classes, fps, window, metrics, log) {
			return nil
		}
	}
	return nil
}

// processFrame detects and draws one frame. It returns false when the user
// asked to quit.
func processFrame(
	ctx context.Context,
	det *detector.Detector,
	frame gocv.Mat,
	classes []string,
	fps *profiler.FPSMeter,
	window *gocv.Window,
	metrics *profiler.PipelineMetrics,
	log *zap.Logger,
) bool {
	cfg := det.Config()
	roi, err := images.CropCentered(frame, cfg.InputWidth, cfg.InputHeight)
	if err != nil {
		log.Warn("skipping frame", zap.Error(err))
		return true
	}
	defer roi.Close()

	detections, err := det.Detect(ctx, roi)
	if err != nil {
		log.Warn("detection failed", zap.Error(err))
		return true
	}
	rate := fps.Tick()

	if window == nil {
		log.Debug("frame", zap.Int("detections", len(detections)), zap.Float64("fps", rate))
		return true
	}

	render.Annotate(&roi, detections, classes, rate, metrics)
	window.IMShow(roi)

	key := window.WaitKey(1)
	if key == 'q' || key == 'Q' || key == keyEscape {
		return false
	}
	return window.GetWindowProperty(gocv.WindowPropertyVisible) >= 1
}

// replay runs every image in cfg.FramesDir through the detector in frame order.
func replay(ctx context.Context, det *detector.Detector, cfg config.Config, classes []string, log *zap.Logger) error {
	files, err := util.LoadDirectoryImageFiles(cfg.FramesDir)
	if err != nil {
		return err
	}
	log.Info("replaying frames", zap.String("dir", cfg.FramesDir), zap.Int("files", len(files)))

	for _, file := range files {
		if ctx.Err() != nil {
			return nil
		}

		img, err := file.Image()
		if err != nil {
			log.Warn("skipping file", zap.String("path", file.Path), zap.Error(err))
			continue
		}

		detections, err := det.DetectImage(ctx, img)
		if err != nil {
			log.Warn("detection failed", zap.String("path", file.Path), zap.Error(err))
			continue
		}

		labels := make([]string, len(detections))
		for i, d := range detections {
			labels[i] = render.Label(d, classes)
		}
		log.Info("frame",
			zap.String("path", file.Path),
			zap.Int("frame", file.Frame),
			zap.Strings("detections", labels),
		)
	}
	return nil
}
