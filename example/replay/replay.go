package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/pkg/errors"
	"github.com/swdee/go-tracklet"
	"github.com/swdee/go-tracklet/config"
	"github.com/swdee/go-tracklet/render"
	"github.com/swdee/go-tracklet/tracker"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// errInterrupted is returned when the demo is stopped by a signal
var errInterrupted = errors.New("interrupted by user")

// Demo defines the struct for running the tracking replay demo
type Demo struct {
	cfg    config.Config
	logger *slog.Logger
	// scene generates the synthetic detections
	scene *Scene
	// engine tracks the detections and reconciles the visual pool
	engine *tracklet.Engine
	// boxes are the visuals bound to the pool slots
	boxes *render.BoxPool
	// trail keeps the position history of each tracklet
	trail *tracker.Trail
	// labels are the class names
	labels []string
	// stream serves the rendered frames as MJPEG
	stream *mjpeg.Stream
	font   render.Font
	style  render.TrailStyle
}

// NewDemo returns an instance of Demo
func NewDemo(cfg config.Config, logger *slog.Logger, labelFile string) (*Demo, error) {

	d := &Demo{
		cfg:    cfg,
		logger: logger,
		boxes:  render.NewBoxPool(render.DefaultFont(), 2),
		trail:  tracker.NewTrail(60),
		stream: mjpeg.NewStream(),
		font:   render.DefaultFont(),
		style:  render.DefaultTrailStyle(),
	}

	if labelFile != "" {
		var err error
		d.labels, err = tracklet.LoadLabels(labelFile)

		if err != nil {
			return nil, errors.Wrap(err, "error loading labels")
		}
	}

	var err error

	d.engine, err = tracklet.NewEngine(cfg.EngineParams(), d.boxes.Template(),
		tracklet.WithLogger(logger), tracklet.WithLabels(d.labels))

	if err != nil {
		return nil, errors.Wrap(err, "error creating engine")
	}

	d.scene = NewScene(cfg.Scene, len(cfg.Tracker.MaxCountPerClass))

	return d, nil
}

// Run processes frames at the configured FPS until the context is cancelled
func (d *Demo) Run(ctx context.Context) error {

	logger := d.logger.With("coroutine", "processor")

	interval := time.Second / time.Duration(d.cfg.Stream.FPS)
	dt := interval.Seconds()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frameNum := 0
	timestamp := 0.0

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cancelled by context")
			return context.Canceled

		case <-ticker.C:
			frameNum++
			timestamp += dt

			start := time.Now()
			frame := d.engine.Update(d.scene.Step(dt), timestamp)

			for _, out := range frame.Predictions {
				d.trail.Add(out)
			}

			d.trail.Prune(frame.Predictions)

			if err := d.publish(frame, frameNum, time.Since(start)); err != nil {
				logger.Error("Can't encode frame", "error", err)
				return err
			}

			if frameNum%(d.cfg.Stream.FPS*10) == 0 {
				tracked, untracked := d.engine.Tracker().Count()
				logger.Info("Stats", "frame", frameNum, "tracked", tracked,
					"untracked", untracked, "outputs", len(frame.Predictions))
			}
		}
	}
}

// publish renders the frame and pushes it to the MJPEG stream
func (d *Demo) publish(frame tracklet.Frame, frameNum int, took time.Duration) error {

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 90, 20, 0),
		d.cfg.Stream.Height, d.cfg.Stream.Width, gocv.MatTypeCV8UC3)
	defer img.Close()

	d.boxes.Draw(&img)
	render.Trail(&img, frame.Predictions, d.trail, d.style)
	render.TrackerMarkers(&img, frame.Predictions, d.labels, d.font, 4)

	gocv.PutText(&img, fmt.Sprintf("Frame: %d, Detections: %d, Tracklets: %d, Update: %.2fms",
		frameNum, len(frame.Detections), len(frame.Predictions),
		float64(took)/float64(time.Millisecond)),
		image.Pt(4, 14), gocv.FontHersheyDuplex, 0.5, render.White, 1)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)

	if err != nil {
		return err
	}

	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	d.stream.UpdateJPEG(data)

	return nil
}

// Serve runs the HTTP server streaming the rendered frames until the context
// is cancelled
func (d *Demo) Serve(ctx context.Context) error {

	logger := d.logger.With("coroutine", "webserver")

	mux := http.NewServeMux()
	mux.Handle("/stream", d.stream)

	server := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", d.cfg.Stream.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(d.cfg.Stream.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(d.cfg.Stream.WriteTimeoutSec) * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		errChan <- server.ListenAndServe()
	}()

	logger.Info("Open browser and view video", "url",
		fmt.Sprintf("http://localhost:%d/stream", d.cfg.Stream.Port))

	select {
	case err := <-errChan:
		logger.Error("Server failed", "port", d.cfg.Stream.Port, "error", err)
		return err

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(d.cfg.Stream.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	logger.Info("Shut down", "error", err)

	return context.Canceled
}

// control waits for an interrupt signal
func control(ctx context.Context, logger *slog.Logger) error {

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	select {
	case <-ctx.Done():
		return context.Canceled
	case <-interrupt:
		logger.Info("Cancelled by user")
		return errInterrupted
	}
}

func main() {

	cfgFile := flag.String("c", "../data/replay.toml", "TOML configuration file")
	labelFile := flag.String("l", "", "Text file containing class labels, overrides the config")

	flag.Parse()

	cfg, err := config.Load(*cfgFile)

	if err != nil {
		slog.Error("Config file not loaded", "path", *cfgFile, "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Logging.Level)
	logger := config.NewLogger(level, os.Stdout)

	labels := *labelFile

	if labels == "" && cfg.Scene.Labels != "" {
		// labels path in the config is relative to the config file
		labels = filepath.Join(filepath.Dir(*cfgFile), cfg.Scene.Labels)
	}

	demo, err := NewDemo(cfg, logger, labels)

	if err != nil {
		logger.Error("Error creating demo", "error", err)
		os.Exit(1)
	}

	eg, ctx := errgroup.WithContext(context.Background())

	eg.Go(func() error {
		return demo.Serve(ctx)
	})

	eg.Go(func() error {
		return demo.Run(ctx)
	})

	eg.Go(func() error {
		return control(ctx, logger)
	})

	err = eg.Wait()

	if err != nil && !errors.Is(err, errInterrupted) && !errors.Is(err, context.Canceled) {
		logger.Error("Stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Stopped")
}
