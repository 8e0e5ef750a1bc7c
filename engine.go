package tracklet

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/swdee/go-tracklet/pool"
	"github.com/swdee/go-tracklet/postprocess"
	"github.com/swdee/go-tracklet/postprocess/result"
	"github.com/swdee/go-tracklet/tracker"
)

// NMSParams defines the Non-Maximum Suppression applied to detections before
// tracking
type NMSParams struct {
	// Enabled turns suppression on
	Enabled bool
	// ScoreThreshold drops detections with a lower probability
	ScoreThreshold float64
	// IOUThreshold suppresses same class detections overlapping a higher
	// scoring one by this much or more
	IOUThreshold float64
}

// DefaultNMSParams returns default suppression parameters
func DefaultNMSParams() NMSParams {
	return NMSParams{
		Enabled:        true,
		ScoreThreshold: 0.25,
		IOUThreshold:   0.45,
	}
}

// Validate checks the suppression thresholds are within [0,1]
func (p NMSParams) Validate() error {

	if p.ScoreThreshold < 0 || p.ScoreThreshold > 1 {
		return errors.Errorf("nms score threshold must be within [0,1], got %v", p.ScoreThreshold)
	}

	if p.IOUThreshold < 0 || p.IOUThreshold > 1 {
		return errors.Errorf("nms iou threshold must be within [0,1], got %v", p.IOUThreshold)
	}

	return nil
}

// Params are the parameters of every stage of the Engine
type Params struct {
	NMS     NMSParams
	Tracker tracker.Params
	Pool    pool.Params
}

// DefaultParams returns default parameters for numClasses classes allowing
// perClass tracklets each, with a visual pool of poolSize slots
func DefaultParams(numClasses, perClass, poolSize int) Params {
	return Params{
		NMS:     DefaultNMSParams(),
		Tracker: tracker.DefaultParams(numClasses, perClass),
		Pool:    pool.DefaultParams(poolSize),
	}
}

// Validate checks the parameters of every stage
func (p Params) Validate() error {

	if err := p.NMS.Validate(); err != nil {
		return err
	}

	if err := p.Tracker.Validate(); err != nil {
		return errors.Wrap(err, "invalid tracker params")
	}

	if err := p.Pool.Validate(); err != nil {
		return errors.Wrap(err, "invalid pool params")
	}

	return nil
}

// Frame is the result of processing one frame of detections
type Frame struct {
	// Detections after ID stamping, labelling and suppression
	Detections []postprocess.DetectResult
	// Predictions are the live tracklets
	Predictions []tracker.Output
	// Slots is the state of the visual pool, nil when the Engine has no pool
	Slots []pool.SlotState
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger passed down to the tracker and pool
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLabels sets the class names given to detections without a label
func WithLabels(labels []string) Option {
	return func(e *Engine) {
		e.labels = append([]string(nil), labels...)
	}
}

// Engine runs detections through suppression, tracking and visual pool
// reconciliation
type Engine struct {
	params  Params
	tracker *tracker.Tracker
	pool    *pool.Reconciler
	idGen   *result.IDGenerator
	labels  []string
	logger  *slog.Logger
	frames  int
}

// NewEngine creates an Engine.  When template is nil no visual pool is
// created and the pool parameters are ignored
func NewEngine(p Params, template pool.Template, opts ...Option) (*Engine, error) {

	if err := p.NMS.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		params: p,
		idGen:  result.NewIDGenerator(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(e)
	}

	var err error

	e.tracker, err = tracker.NewTracker(p.Tracker,
		tracker.WithLogger(e.logger.With("component", "tracker")))

	if err != nil {
		return nil, err
	}

	if template != nil {
		e.pool, err = pool.NewReconciler(p.Pool, template,
			pool.WithLogger(e.logger.With("component", "pool")))

		if err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Tracker returns the tracker used by the Engine
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

// Pool returns the visual pool reconciler, nil when the Engine has no pool
func (e *Engine) Pool() *pool.Reconciler {
	return e.pool
}

// Update processes the detections of a frame taken at timestamp seconds.
// The given detections are not modified
func (e *Engine) Update(dets []postprocess.DetectResult, timestamp float64) Frame {

	e.frames++

	stamped := make([]postprocess.DetectResult, len(dets))

	for i, det := range dets {
		det.ID = e.idGen.GetNext()

		if det.Label == "" && det.Class >= 0 && det.Class < len(e.labels) {
			det.Label = e.labels[det.Class]
		}

		stamped[i] = det
	}

	if e.params.NMS.Enabled {
		stamped = postprocess.NMS(stamped, e.params.NMS.ScoreThreshold,
			e.params.NMS.IOUThreshold)
	}

	frame := Frame{
		Detections:  stamped,
		Predictions: e.tracker.Update(stamped, timestamp),
	}

	if e.pool != nil {
		frame.Slots = e.pool.Reconcile(stamped)
	}

	e.logger.Debug("frame processed", "frame", e.frames, "timestamp", timestamp,
		"detections", len(dets), "kept", len(stamped),
		"tracklets", len(frame.Predictions))

	return frame
}

// Reset clears all tracklets, deactivates every pool slot and restarts
// detection IDs
func (e *Engine) Reset() {

	e.tracker.Reset()

	if e.pool != nil {
		e.pool.Reset()
	}

	e.idGen.Reset()
	e.frames = 0
}
