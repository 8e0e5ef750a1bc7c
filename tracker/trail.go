package tracker

import "sync"

// Point represents the x,y coordinates of a tracklet position
type Point struct {
	X, Y float64
}

// Track represents a track history
type Track struct {
	points []Point
}

// Trail is the struct to keep a history of tracklet positions used for
// drawing a trail
type Trail struct {
	// size is the maximum number of most recent points to keep in history
	size int
	// history of tracked points keyed by track ID
	history map[int]*Track
	sync.Mutex
}

// NewTrail returns a new trail history track instance.  Size is the number
// of most recent positions to keep and specifies the maximum length of the
// trail to maintain
func NewTrail(size int) *Trail {
	return &Trail{
		size:    size,
		history: make(map[int]*Track),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int]*Track)
}

// Add the position of a tracker output to the history
func (t *Trail) Add(out Output) {
	t.Lock()
	defer t.Unlock()

	// init map if no history exists yet for track id
	track, exists := t.history[out.TrackID]

	if !exists {
		track = &Track{}
		t.history[out.TrackID] = track
	}

	track.points = append(track.points, Point{
		X: out.Position.X,
		Y: out.Position.Y,
	})

	// check if history is exceeded and drop oldest point
	if len(track.points) > t.size {
		track.points = track.points[1:]
	}
}

// Prune drops the history of every track not in the given outputs
func (t *Trail) Prune(outs []Output) {
	t.Lock()
	defer t.Unlock()

	live := make(map[int]bool, len(outs))

	for _, out := range outs {
		live[out.TrackID] = true
	}

	for id := range t.history {
		if !live[id] {
			delete(t.history, id)
		}
	}
}

// GetPoints gets a copy of the point history for a specific track id
func (t *Trail) GetPoints(id int) []Point {
	t.Lock()
	defer t.Unlock()

	if track, exists := t.history[id]; exists {
		return append([]Point(nil), track.points...)
	}

	// no history yet
	return nil
}
