package tracker

// ring is a fixed size circular buffer that overwrites its oldest entry once
// full
type ring[T any] struct {
	// buf holds the entries
	buf []T
	// next is the index the next entry is written to
	next int
	// size is the number of entries held
	size int
}

// newRing returns a ring holding up to capacity entries
func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{
		buf: make([]T, capacity),
	}
}

// Len returns the number of entries held
func (r *ring[T]) Len() int {
	return r.size
}

// Push adds an entry, evicting the oldest one when the ring is full
func (r *ring[T]) Push(v T) {

	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)

	if r.size < len(r.buf) {
		r.size++
	}
}

// At returns the i'th entry counting from the oldest
func (r *ring[T]) At(i int) T {
	start := (r.next - r.size + len(r.buf)) % len(r.buf)
	return r.buf[(start+i)%len(r.buf)]
}

// Values returns the entries from oldest to newest
func (r *ring[T]) Values() []T {

	out := make([]T, r.size)

	for i := range out {
		out[i] = r.At(i)
	}

	return out
}

// classVotes is the sliding window of classes assigned to a tracklet, the
// stable class of the tracklet is the most frequent one
type classVotes struct {
	votes *ring[int]
}

// newClassVotes returns a vote window of the given size
func newClassVotes(window int) *classVotes {
	return &classVotes{
		votes: newRing[int](window),
	}
}

// Push records a class vote
func (c *classVotes) Push(class int) {
	c.votes.Push(class)
}

// Len returns the number of votes held
func (c *classVotes) Len() int {
	return c.votes.Len()
}

// Mode returns the most frequent class in the window, frequency ties go to
// the class voted most recently.  An empty window returns false
func (c *classVotes) Mode() (int, bool) {
	return modeOf(c.votes.Values())
}

// ModeWith returns what Mode would return after pushing class, without
// recording the vote
func (c *classVotes) ModeWith(class int) int {

	values := c.votes.Values()

	// a full window drops its oldest vote on push
	if len(values) == len(c.votes.buf) && len(values) > 0 {
		values = values[1:]
	}

	mode, _ := modeOf(append(values, class))

	return mode
}

// modeOf returns the most frequent value, ties go to the value whose latest
// occurrence is closest to the end of the slice
func modeOf(values []int) (int, bool) {

	if len(values) == 0 {
		return 0, false
	}

	counts := make(map[int]int)
	last := make(map[int]int)

	for i, v := range values {
		counts[v]++
		last[v] = i
	}

	best := values[len(values)-1]

	for v, n := range counts {
		if n > counts[best] || (n == counts[best] && last[v] > last[best]) {
			best = v
		}
	}

	return best, true
}
