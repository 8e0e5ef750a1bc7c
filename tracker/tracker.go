package tracker

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/swdee/go-tracklet/postprocess"
	"gonum.org/v1/gonum/spatial/r3"
)

// Params defines the tracker parameters
type Params struct {
	// MaxDistance is the distance below which a prediction matches a
	// tracklet, it also defines when an untracked tracklet duplicates a
	// tracked one
	MaxDistance float64
	// MergeDistance is the distance below which predictions are merged
	MergeDistance float64
	// MaxTracklets caps the number of outputs per frame
	MaxTracklets int
	// MaxLostTime is the number of seconds an untracked tracklet survives
	MaxLostTime float64
	// MaxCountPerClass is the maximum number of tracklets per class index
	MaxCountPerClass []int
	// VoteWindow is the number of class assignments kept for majority vote
	VoteWindow int
	// Filter are the position smoothing parameters
	Filter FilterParams
}

// DefaultParams returns default parameters for normalized coordinates that
// allow perClass tracklets for each of numClasses classes
func DefaultParams(numClasses, perClass int) Params {

	maxCount := make([]int, numClasses)

	for i := range maxCount {
		maxCount[i] = perClass
	}

	return Params{
		MaxDistance:      0.1,
		MergeDistance:    0.02,
		MaxTracklets:     64,
		MaxLostTime:      1.0,
		MaxCountPerClass: maxCount,
		VoteWindow:       10,
		Filter:           DefaultFilterParams(),
	}
}

// Validate checks the tracker parameters are usable
func (p Params) Validate() error {

	if p.MaxDistance <= 0 {
		return errors.Errorf("max distance must be positive, got %v", p.MaxDistance)
	}

	if p.MergeDistance < 0 {
		return errors.Errorf("merge distance must not be negative, got %v", p.MergeDistance)
	}

	if p.MaxTracklets <= 0 {
		return errors.Errorf("max tracklets must be positive, got %d", p.MaxTracklets)
	}

	if p.MaxLostTime < 0 {
		return errors.Errorf("max lost time must not be negative, got %v", p.MaxLostTime)
	}

	if len(p.MaxCountPerClass) == 0 {
		return errors.New("max count per class must list at least one class")
	}

	for i, n := range p.MaxCountPerClass {
		if n < 0 {
			return errors.Errorf("max count for class %d must not be negative, got %d", i, n)
		}
	}

	if p.VoteWindow <= 0 {
		return errors.Errorf("vote window must be positive, got %d", p.VoteWindow)
	}

	return errors.Wrap(p.Filter.Validate(), "invalid filter params")
}

// Output is a snapshot of a tracklet returned from a tracker update, it
// holds no references into the tracker
type Output struct {
	// TrackID is the incremental ID of the tracklet
	TrackID int
	// UUID is the globally unique ID of the tracklet
	UUID uuid.UUID
	// Position is the filtered position
	Position r3.Vec
	// Class is the resolved class
	Class int
	// Score is the highest class candidate score
	Score float64
	// State is the tracklet state, Tracked or Untracked
	State TrackletState
	// LostFrames is the number of consecutive frames without a match
	LostFrames int
	// Candidates are the class candidates from the last match
	Candidates []ClassScore
}

// Option configures a Tracker
type Option func(*Tracker)

// WithLogger sets the logger used for tracklet lifecycle events
func WithLogger(logger *slog.Logger) Option {
	return func(tr *Tracker) {
		if logger != nil {
			tr.logger = logger
		}
	}
}

// Tracker follows objects across frames giving each a persistent identity,
// smoothed position and stable class
type Tracker struct {
	// params are the tracker parameters
	params Params
	// allocator enforces the per class limits
	allocator *Allocator
	// logger for lifecycle events
	logger *slog.Logger
	// trackIDCount is the counter for assigning track IDs
	trackIDCount int
	// frameID is the number of updates run
	frameID int
	// tracked are the tracklets matched or created on the last frame
	tracked []*Tracklet
	// untracked are the tracklets lost but not yet expired
	untracked []*Tracklet
	// lastTime is the timestamp of the last update
	lastTime float64
	// started is set after the first update
	started bool
}

// NewTracker initializes and returns a new Tracker
func NewTracker(p Params, opts ...Option) (*Tracker, error) {

	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid tracker params")
	}

	p.MaxCountPerClass = append([]int(nil), p.MaxCountPerClass...)

	tr := &Tracker{
		params:    p,
		allocator: NewAllocator(p.MaxCountPerClass),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(tr)
	}

	return tr, nil
}

// Params returns the parameters the tracker was created with
func (tr *Tracker) Params() Params {
	p := tr.params
	p.MaxCountPerClass = append([]int(nil), tr.params.MaxCountPerClass...)
	return p
}

// Reset clears the tracked data and resets everything
func (tr *Tracker) Reset() {
	tr.trackIDCount = 0
	tr.frameID = 0
	tr.tracked = nil
	tr.untracked = nil
	tr.lastTime = 0
	tr.started = false
}

// Count returns the number of tracked and untracked tracklets held
func (tr *Tracker) Count() (tracked, untracked int) {
	return len(tr.tracked), len(tr.untracked)
}

// Update updates the tracker with the detections of a frame taken at
// timestamp seconds
func (tr *Tracker) Update(dets []postprocess.DetectResult, timestamp float64) []Output {
	return tr.UpdatePredictions(DetectionsToPredictions(dets), timestamp)
}

// UpdatePredictions updates the tracker with the predictions of a frame taken
// at timestamp seconds and returns the live tracklets.  Timestamps must not
// decrease, an earlier timestamp is replaced by the previous one
func (tr *Tracker) UpdatePredictions(preds []Prediction, timestamp float64) []Output {

	timestamp = tr.clampTime(timestamp)
	tr.frameID++

	// Step 1: merge near duplicate predictions
	merged := MergePredictions(preds, tr.params.MergeDistance)

	// Step 2: match tracked tracklets to their nearest prediction
	claimed := make([]bool, len(merged))

	var currentTracked, currentLost []*Tracklet

	for _, t := range tr.tracked {

		best := tr.nearest(t.GetPosition(), merged, claimed)

		if best < 0 {
			currentLost = append(currentLost, t)
			continue
		}

		claimed[best] = true
		t.Update(merged[best], timestamp)
		currentTracked = append(currentTracked, t)
	}

	// Step 3: init new tracklets
	for j, pred := range merged {

		if claimed[j] {
			continue
		}

		tr.trackIDCount++
		t := NewTracklet(tr.trackIDCount, pred, timestamp,
			NewSmoother(tr.params.Filter), tr.params.VoteWindow)

		tr.logger.Debug("tracklet created", "track_id", t.GetTrackID(),
			"uuid", t.GetUUID(), "frame", tr.frameID)

		currentTracked = append(currentTracked, t)
	}

	// Step 4: age untracked tracklets
	for _, t := range tr.untracked {
		t.MarkUntracked()
	}

	for _, t := range currentLost {
		t.MarkUntracked()
	}

	var remainUntracked []*Tracklet

	for _, t := range jointTracklets(tr.untracked, currentLost) {

		switch {
		case t.expired(timestamp, tr.params.MaxLostTime):
			tr.destroy(t, "expired")

		case tr.duplicates(t, currentTracked):
			tr.destroy(t, "duplicate")

		default:
			remainUntracked = append(remainUntracked, t)
		}
	}

	tr.tracked = currentTracked
	tr.untracked = remainUntracked

	// Step 5: resolve classes and emit
	return tr.outputs()
}

// clampTime guards the smoothers against timestamps going backwards
func (tr *Tracker) clampTime(timestamp float64) float64 {

	if tr.started && timestamp < tr.lastTime {
		tr.logger.Warn("timestamp went backwards, using previous",
			"timestamp", timestamp, "previous", tr.lastTime)
		timestamp = tr.lastTime
	}

	tr.lastTime = timestamp
	tr.started = true

	return timestamp
}

// nearest returns the index of the unclaimed prediction nearest to pos and
// strictly closer than MaxDistance, or -1.  The first found wins ties
func (tr *Tracker) nearest(pos r3.Vec, preds []Prediction, claimed []bool) int {

	best := -1
	bestDist := tr.params.MaxDistance

	for j := range preds {

		if claimed[j] {
			continue
		}

		if d := distance(pos, preds[j].Position); d < bestDist {
			best = j
			bestDist = d
		}
	}

	return best
}

// duplicates reports whether an untracked tracklet lies within MaxDistance of
// any tracked tracklet
func (tr *Tracker) duplicates(t *Tracklet, tracked []*Tracklet) bool {

	for _, other := range tracked {
		if distance(t.GetPosition(), other.GetPosition()) < tr.params.MaxDistance {
			return true
		}
	}

	return false
}

// destroy marks a tracklet as removed
func (tr *Tracker) destroy(t *Tracklet, reason string) {

	t.MarkDestroyed()

	tr.logger.Debug("tracklet destroyed", "track_id", t.GetTrackID(),
		"uuid", t.GetUUID(), "reason", reason, "frame", tr.frameID)
}

// outputs runs the class allocation over all live tracklets and returns
// copies of those allocated, capped at MaxTracklets
func (tr *Tracker) outputs() []Output {

	live := make([]*Tracklet, 0, len(tr.tracked)+len(tr.untracked))
	live = append(live, tr.tracked...)
	live = append(live, tr.untracked...)

	order := tr.allocator.Allocate(live)

	if len(order) > tr.params.MaxTracklets {
		order = order[:tr.params.MaxTracklets]
	}

	out := make([]Output, 0, len(order))

	for _, i := range order {

		t := live[i]

		out = append(out, Output{
			TrackID:    t.GetTrackID(),
			UUID:       t.GetUUID(),
			Position:   t.GetPosition(),
			Class:      t.class,
			Score:      t.GetScore(),
			State:      t.GetState(),
			LostFrames: t.GetLostFrames(),
			Candidates: append([]ClassScore(nil), t.candidates...),
		})
	}

	return out
}

// jointTracklets combines two lists of tracklets, avoiding duplicates
func jointTracklets(aList, bList []*Tracklet) []*Tracklet {

	// create a map to track the existence of track IDs
	exists := make(map[int]bool)
	res := make([]*Tracklet, 0, len(aList)+len(bList))

	for _, t := range aList {
		exists[t.GetTrackID()] = true
		res = append(res, t)
	}

	for _, t := range bList {
		if !exists[t.GetTrackID()] {
			exists[t.GetTrackID()] = true
			res = append(res, t)
		}
	}

	return res
}
