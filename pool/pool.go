package pool

import (
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/swdee/go-tracklet/postprocess"
)

// VisualHandle is the rendering resource bound to a slot.  The reconciler
// only ever moves, labels and shows or hides it
type VisualHandle interface {
	// SetAnchor moves the visual to the given box
	SetAnchor(box postprocess.Box)
	// SetLabel sets the text shown with the visual
	SetLabel(label string)
	// SetActive shows or hides the visual
	SetActive(active bool)
}

// Template is a VisualHandle that can be copied to fill the pool
type Template interface {
	VisualHandle
	// Clone returns an independent copy of the handle
	Clone() VisualHandle
}

// Params defines the reconciler parameters
type Params struct {
	// PoolSize is the fixed number of slots
	PoolSize int
	// Matching enables IOU matching of detections to slots, when disabled
	// slot i is bound to detection i
	Matching bool
	// MatchThreshold is the minimum IOU for a detection to stay bound to a
	// slot
	MatchThreshold float64
	// LostFramesThreshold is the number of unmatched frames a slot stays
	// visible for
	LostFramesThreshold int
	// SmoothingCoefficient in [0,1] smooths the anchor of matched slots,
	// zero snaps to the detection
	SmoothingCoefficient float64
}

// DefaultParams returns default reconciler parameters for a pool of size
// slots
func DefaultParams(size int) Params {
	return Params{
		PoolSize:             size,
		Matching:             true,
		MatchThreshold:       0.5,
		LostFramesThreshold:  2,
		SmoothingCoefficient: 0.5,
	}
}

// Validate checks the reconciler parameters are usable
func (p Params) Validate() error {

	if p.PoolSize <= 0 {
		return errors.Errorf("pool size must be positive, got %d", p.PoolSize)
	}

	if p.MatchThreshold < 0 || p.MatchThreshold > 1 {
		return errors.Errorf("match threshold must be within [0,1], got %v", p.MatchThreshold)
	}

	if p.LostFramesThreshold < 0 {
		return errors.Errorf("lost frames threshold must not be negative, got %d", p.LostFramesThreshold)
	}

	if p.SmoothingCoefficient < 0 || p.SmoothingCoefficient > 1 {
		return errors.Errorf("smoothing coefficient must be within [0,1], got %v", p.SmoothingCoefficient)
	}

	return nil
}

// SlotState is a snapshot of a slot for rendering
type SlotState struct {
	// Index of the slot in the pool
	Index int
	// Active is set when the slot is showing a detection
	Active bool
	// Anchor is the current, possibly smoothed, box of the slot
	Anchor postprocess.Box
	// Label of the bound detection
	Label string
	// Class of the bound detection
	Class int
	// DetectionID of the bound detection
	DetectionID int64
	// LostFrames is the number of consecutive unmatched frames
	LostFrames int
	// Updated is set when the slot was bound to a detection this frame
	Updated bool
}

// slot is a pool entry owning one visual handle
type slot struct {
	// handle is the visual owned by the slot
	handle VisualHandle
	// anchor is the current, possibly smoothed, box shown
	anchor postprocess.Box
	// det is a copy of the bound detection, nil when inactive
	det *postprocess.DetectResult
	// label is the text last set on the handle
	label string
	// active is set while the handle is shown
	active bool
	// updated is set when the slot was bound this frame
	updated bool
	// lostFrames is the number of consecutive unmatched frames
	lostFrames int
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the logger used for slot events
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Reconciler maps the detections of each frame onto a fixed pool of reusable
// visual slots
type Reconciler struct {
	params Params
	slots  []*slot
	logger *slog.Logger
}

// NewReconciler creates a pool of PoolSize slots, the first slot uses
// template and the remaining ones clones of it.  All slots start inactive
func NewReconciler(p Params, template Template, opts ...Option) (*Reconciler, error) {

	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pool params")
	}

	if template == nil {
		return nil, errors.New("pool template handle is nil")
	}

	r := &Reconciler{
		params: p,
		slots:  make([]*slot, p.PoolSize),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	for i := range r.slots {

		var handle VisualHandle = template

		if i > 0 {
			handle = template.Clone()

			if handle == nil {
				return nil, errors.Errorf("template clone for slot %d is nil", i)
			}
		}

		handle.SetActive(false)
		r.slots[i] = &slot{handle: handle}
	}

	return r, nil
}

// Size returns the number of slots in the pool
func (r *Reconciler) Size() int {
	return len(r.slots)
}

// Reset deactivates every slot
func (r *Reconciler) Reset() {
	for _, s := range r.slots {
		r.release(s)
		s.updated = false
	}
}

// Reconcile binds the detections of a frame to the pool and returns the state
// of every slot
func (r *Reconciler) Reconcile(dets []postprocess.DetectResult) []SlotState {

	for _, s := range r.slots {
		s.updated = false
	}

	if r.params.Matching {
		r.reconcileMatched(dets)
	} else {
		r.reconcilePositional(dets)
	}

	return r.States()
}

// reconcilePositional binds slot i to detection i
func (r *Reconciler) reconcilePositional(dets []postprocess.DetectResult) {

	for i, s := range r.slots {

		if i >= len(dets) {
			r.release(s)
			continue
		}

		r.bind(s, dets[i], s.active)
	}
}

// reconcileMatched keeps slots bound to the detection of the same class that
// overlaps them most, ages unmatched slots and places leftover detections
// into expired or free slots
func (r *Reconciler) reconcileMatched(dets []postprocess.DetectResult) {

	used := make([]bool, len(dets))
	var expired []*slot

	for _, s := range r.slots {

		if !s.active {
			continue
		}

		best := -1
		bestIOU := 0.0

		for j := range dets {

			if used[j] || dets[j].Class != s.det.Class {
				continue
			}

			iou := postprocess.IOU(s.det.Box, dets[j].Box)

			// the first same class detection is a candidate even with no
			// overlap so a zero threshold always keeps the slot bound
			if best < 0 || iou > bestIOU {
				best = j
				bestIOU = iou
			}
		}

		if best >= 0 && bestIOU >= r.params.MatchThreshold {
			used[best] = true
			r.bind(s, dets[best], true)
			continue
		}

		s.lostFrames++

		if s.lostFrames > r.params.LostFramesThreshold {
			expired = append(expired, s)
		}
	}

	// leftover detections by descending score
	var leftover []int

	for j := range dets {
		if !used[j] {
			leftover = append(leftover, j)
		}
	}

	sort.SliceStable(leftover, func(a, b int) bool {
		return dets[leftover[a]].Probability > dets[leftover[b]].Probability
	})

	// expired slots are reused first so they stay visible
	free := append([]*slot(nil), expired...)

	for _, s := range r.slots {
		if !s.active {
			free = append(free, s)
		}
	}

	for _, j := range leftover {

		if len(free) == 0 {
			break
		}

		s := free[0]
		free = free[1:]

		if s.active {
			r.logger.Debug("pool slot reused", "class", dets[j].Class,
				"previous_class", s.det.Class, "lost_frames", s.lostFrames)
		}

		r.bind(s, dets[j], false)
	}

	// expired slots that were not reused are released
	for _, s := range expired {
		if !s.updated {
			r.logger.Debug("pool slot released", "class", s.det.Class,
				"lost_frames", s.lostFrames)
			r.release(s)
		}
	}
}

// bind attaches a detection to a slot.  When continuing the anchor is
// smoothed toward the detection box, otherwise it snaps
func (r *Reconciler) bind(s *slot, det postprocess.DetectResult, continuing bool) {

	if continuing && r.params.SmoothingCoefficient > 0 {
		s.anchor = lerpBox(s.anchor, det.Box, 1-r.params.SmoothingCoefficient*0.95)
	} else {
		s.anchor = det.Box
	}

	label := det.Label

	if label == "" {
		label = strconv.Itoa(det.Class)
	}

	if !s.active || label != s.label {
		s.handle.SetLabel(label)
		s.label = label
	}

	s.handle.SetAnchor(s.anchor)

	if !s.active {
		s.handle.SetActive(true)
		s.active = true
	}

	bound := det
	s.det = &bound
	s.updated = true
	s.lostFrames = 0
}

// release deactivates a slot
func (r *Reconciler) release(s *slot) {

	if s.active {
		s.handle.SetActive(false)
	}

	s.active = false
	s.det = nil
	s.label = ""
	s.lostFrames = 0
}

// States returns a snapshot of every slot
func (r *Reconciler) States() []SlotState {

	states := make([]SlotState, len(r.slots))

	for i, s := range r.slots {

		states[i] = SlotState{
			Index:      i,
			Active:     s.active,
			Anchor:     s.anchor,
			Label:      s.label,
			LostFrames: s.lostFrames,
			Updated:    s.updated,
		}

		if s.det != nil {
			states[i].Class = s.det.Class
			states[i].DetectionID = s.det.ID
		}
	}

	return states
}

// lerpBox interpolates from a toward b by t
func lerpBox(a, b postprocess.Box, t float64) postprocess.Box {
	return postprocess.Box{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		W: a.W + (b.W-a.W)*t,
		H: a.H + (b.H-a.H)*t,
	}
}
