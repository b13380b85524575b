package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-fire/alarm"
	"github.com/nvr-ai/go-fire/audio"
	"github.com/nvr-ai/go-fire/capture"
	"github.com/nvr-ai/go-fire/config"
	"github.com/nvr-ai/go-fire/events"
	"github.com/nvr-ai/go-fire/fire"
	"github.com/nvr-ai/go-fire/logging"
	"github.com/nvr-ai/go-fire/profiler"
	"github.com/nvr-ai/go-fire/render"
)

// windowTitle is the title of the visualization window.
const windowTitle = "Fire Detection"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.Int("device", 0, "Camera device ID")
	flag.String("video", "", "Path to video file (.mp4, .avi, .mov, .mkv)")
	flag.String("image", "", "Path to image file (.jpg, .jpeg, .png, .bmp)")
	flag.String("dir", "", "Directory of image frames (frame-N.jpg)")
	flag.Bool("show-window", false, "Show visualization window")
	flag.String("sounds", "", "Directory holding alarm.mp3 or alert.mp3")
	flag.String("journal", "", "SQLite file recording fire episodes")
	flag.String("snapshots", "", "Directory for episode thumbnails")
	flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Float64("fire-area", fire.DefaultFireAreaThreshold, "Minimum region area counted as fire")
	flag.Float64("fire-intensity", fire.DefaultFireIntensityThreshold, "Minimum mean region intensity counted as fire")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("fire detection stopped")
		stop()
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over the configuration.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		getter, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		v := getter.Get()
		switch f.Name {
		case "device":
			cfg.Input.Device = v.(int)
		case "video":
			cfg.Input.Video = v.(string)
		case "image":
			cfg.Input.Image = v.(string)
		case "dir":
			cfg.Input.Directory = v.(string)
		case "show-window":
			cfg.ShowWindow = v.(bool)
		case "sounds":
			cfg.Sound.Dir = v.(string)
		case "journal":
			cfg.Journal.Path = v.(string)
		case "snapshots":
			cfg.Journal.SnapshotDir = v.(string)
		case "log-level":
			cfg.Log.Level = v.(string)
		case "fire-area":
			cfg.Detection.FireAreaThreshold = v.(float64)
		case "fire-intensity":
			cfg.Detection.FireIntensityThreshold = v.(float64)
		}
	})
}

// metricsFunc adapts a function to profiler.MetricsCollector.
type metricsFunc func() map[string]float64

func (f metricsFunc) CollectMetrics() map[string]float64 { return f() }

// loadSound resolves and decodes the alarm asset. A nil Sound means audio is unavailable.
func loadSound(device *audio.Device, cfg config.Sound, logger zerolog.Logger) alarm.Sound {
	path, err := audio.ResolveSound(cfg.Dir, cfg.Names...)
	if err != nil {
		logger.Warn().Err(err).Msg("alarm sound not found")
		return nil
	}
	snd, err := device.Load(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("alarm sound could not be loaded")
		return nil
	}
	logger.Info().Str("path", path).Dur("length", snd.Duration()).Msg("alarm sound loaded")
	return snd
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	input, err := capture.ResolveInput(cfg.Input.Device, cfg.Input.Video, cfg.Input.Image, cfg.Input.Directory)
	if err != nil {
		return err
	}

	detector, err := fire.NewDetector(cfg.Detection)
	if err != nil {
		return err
	}
	defer detector.Close()

	device := audio.NewDevice()
	defer device.Close()

	coordinator, err := alarm.New(device, loadSound(device, cfg.Sound, logger), cfg.Alarm, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := coordinator.Close(); err != nil {
			logger.Warn().Err(err).Msg("alarm shutdown incomplete")
		}
	}()

	var saver events.Saver
	if cfg.Journal.Path != "" {
		store, err := events.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		saver = store
	}
	var snapshots *events.SnapshotWriter
	if cfg.Journal.SnapshotDir != "" {
		format, err := events.ParseSnapshotFormat(cfg.Journal.SnapshotFormat)
		if err != nil {
			return err
		}
		if snapshots, err = events.NewSnapshotWriter(cfg.Journal.SnapshotDir, cfg.Journal.SnapshotWidth); err != nil {
			return err
		}
		snapshots.WithFormat(format)
	}
	recorder := events.NewRecorder(saver, snapshots, logger)
	defer func() { recorder.Flush(time.Now()) }()

	prof := profiler.New(profiler.Options{
		ReportInterval: cfg.Profiler.ReportInterval,
		Logger:         logger,
	})
	prof.AddMetricsCollector(metricsFunc(func() map[string]float64 {
		return map[string]float64{"alarm_workers": float64(coordinator.Active())}
	}))
	if cfg.Profiler.ReportInterval > 0 {
		prof.Start()
		defer prof.Stop()
	}

	source, err := capture.Open(*input)
	if err != nil {
		return err
	}
	defer source.Close()

	var window *gocv.Window
	if cfg.ShowWindow {
		window = gocv.NewWindow(windowTitle)
		defer window.Close()
	}

	detection := detector.Config()
	logger.Info().
		Str("input", input.Describe()).
		Float64("fire_area_threshold", detection.FireAreaThreshold).
		Float64("fire_intensity_threshold", detection.FireIntensityThreshold).
		Float64("min_contour_area", detection.MinContourArea).
		Int("kernel_size", detection.KernelSize).
		Int("bands", len(detection.Bands)).
		Bool("journal", saver != nil).
		Bool("show_window", window != nil).
		Msg("fire detection system started")

	img := gocv.NewMat()
	defer img.Close()

	frameCounter := 0
	for ctx.Err() == nil {
		stopTiming := prof.StartOperation("frame_processing")

		if err := source.Read(&img); err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				logger.Info().Int("frames", frameCounter).Msg("end of input")
				if window != nil && input.Type == capture.InputImage {
					window.WaitKey(0)
				}
				return nil
			}
			return errors.Wrap(err, "could not read frame")
		}

		detectTiming := prof.StartOperation("detect")
		res, err := detector.Detect(img)
		detectTiming()
		if err != nil {
			logger.Warn().Err(err).Int("frame", frameCounter).Msg("frame skipped")
			stopTiming()
			continue
		}

		coordinator.Update(res.Detected)
		recorder.Observe(time.Now(), res.Detected, res.TotalArea, len(res.Regions), func() (image.Image, error) {
			return img.ToImage()
		})
		prof.RecordMetric("fire_area", res.TotalArea)

		logger.Debug().
			Int("frame", frameCounter).
			Bool("fire", res.Detected).
			Int("regions", len(res.Regions)).
			Float64("area", res.TotalArea).
			Msg("frame processed")

		quit := false
		if window != nil {
			render.Annotate(&img, res)
			window.IMShow(img)
			if key := window.WaitKey(1); key == 'q' || key == 27 {
				quit = true
			}
		}

		res.Close()
		stopTiming()
		frameCounter++

		if quit {
			break
		}
	}

	logger.Info().Int("frames", frameCounter).Msg("fire detection system stopped")
	return nil
}
