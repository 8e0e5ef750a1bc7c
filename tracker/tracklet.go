package tracker

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// TrackletState represents the state of a tracklet
type TrackletState int

const (
	// Tracked is a tracklet matched or created this frame
	Tracked TrackletState = 0
	// Untracked is a tracklet that has gone unmatched but has not yet expired
	Untracked TrackletState = 1
	// Destroyed is a tracklet removed from the tracker
	Destroyed TrackletState = 2
)

// String returns the name of the state
func (s TrackletState) String() string {
	switch s {
	case Tracked:
		return "tracked"
	case Untracked:
		return "untracked"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

// Tracklet is a single persistent identity followed across frames
type Tracklet struct {
	// trackID is the incremental ID of the tracklet
	trackID int
	// uuid is a globally unique ID for the tracklet
	uuid uuid.UUID
	// smoother filters the raw positions, it is owned by this tracklet only
	smoother Smoother
	// position is the current filtered position
	position r3.Vec
	// candidates are the class candidates from the last matched prediction
	candidates []ClassScore
	// votes is the window of classes assigned by the allocator
	votes *classVotes
	// class is the resolved class
	class int
	// hasClass is set once the allocator has resolved a class
	hasClass bool
	// allocated is set when the class was assigned from a candidate in the
	// last allocation pass rather than by fallback
	allocated bool
	// state is the current lifecycle state
	state TrackletState
	// startTime is the timestamp the tracklet was created
	startTime float64
	// lastSeen is the timestamp the tracklet was last matched
	lastSeen float64
	// lostFrames is the number of consecutive frames without a match
	lostFrames int
	// hits is the number of frames the tracklet has been matched on
	hits int
}

// NewTracklet creates a new Tracklet from a prediction.  The smoother is
// seeded with the raw position
func NewTracklet(trackID int, pred Prediction, timestamp float64,
	smoother Smoother, voteWindow int) *Tracklet {

	t := &Tracklet{
		trackID:    trackID,
		uuid:       uuid.New(),
		smoother:   smoother,
		candidates: append([]ClassScore(nil), pred.Candidates...),
		votes:      newClassVotes(voteWindow),
		state:      Tracked,
		startTime:  timestamp,
		lastSeen:   timestamp,
		hits:       1,
	}

	t.position = smoother.Filter(pred.Position, timestamp)

	return t
}

// GetTrackID returns the incremental ID of the tracklet
func (t *Tracklet) GetTrackID() int {
	return t.trackID
}

// GetUUID returns the globally unique ID of the tracklet
func (t *Tracklet) GetUUID() uuid.UUID {
	return t.uuid
}

// GetPosition returns the filtered position
func (t *Tracklet) GetPosition() r3.Vec {
	return t.position
}

// GetState returns the lifecycle state
func (t *Tracklet) GetState() TrackletState {
	return t.state
}

// GetClass returns the resolved class and whether one has been resolved
func (t *Tracklet) GetClass() (int, bool) {
	return t.class, t.hasClass
}

// GetScore returns the highest class candidate score
func (t *Tracklet) GetScore() float64 {
	if len(t.candidates) == 0 {
		return 0
	}
	return t.candidates[0].Score
}

// GetLastSeen returns the timestamp the tracklet was last matched
func (t *Tracklet) GetLastSeen() float64 {
	return t.lastSeen
}

// GetLostFrames returns the number of consecutive unmatched frames
func (t *Tracklet) GetLostFrames() int {
	return t.lostFrames
}

// Update applies a matched prediction to the tracklet
func (t *Tracklet) Update(pred Prediction, timestamp float64) {

	t.position = t.smoother.Filter(pred.Position, timestamp)
	t.candidates = append(t.candidates[:0], pred.Candidates...)
	t.state = Tracked
	t.lastSeen = timestamp
	t.lostFrames = 0
	t.hits++
}

// MarkUntracked records a frame without a match
func (t *Tracklet) MarkUntracked() {
	t.state = Untracked
	t.lostFrames++
}

// MarkDestroyed marks the tracklet as removed
func (t *Tracklet) MarkDestroyed() {
	t.state = Destroyed
}

// expired reports whether an untracked tracklet has been lost for at least
// maxLostTime seconds
func (t *Tracklet) expired(now, maxLostTime float64) bool {
	return now-t.lastSeen >= maxLostTime
}

// resolve sets the resolved class from an allocation pass
func (t *Tracklet) resolve(class int, allocated bool) {
	t.class = class
	t.hasClass = true
	t.allocated = allocated
}
