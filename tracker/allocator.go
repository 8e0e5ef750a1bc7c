package tracker

import (
	"sort"
)

// idScore is a class candidate of a tracklet offered to the allocation pass
type idScore struct {
	class    int
	score    float64
	tracklet int
}

// Allocator enforces a maximum number of tracklets per class.  Candidates of
// all tracklets compete by score and each tracklet resolves its stable class
// by majority vote over its recent assignments
type Allocator struct {
	// maxCountPerClass is the capacity of each class index
	maxCountPerClass []int
	// counts is the number of tracklets resolved to each class this pass
	counts []int
}

// NewAllocator returns an Allocator for the given per class capacities
func NewAllocator(maxCountPerClass []int) *Allocator {
	return &Allocator{
		maxCountPerClass: append([]int(nil), maxCountPerClass...),
		counts:           make([]int, len(maxCountPerClass)),
	}
}

// known reports whether class is within the configured range
func (a *Allocator) known(class int) bool {
	return class >= 0 && class < len(a.maxCountPerClass)
}

// capacity returns the remaining capacity of a class, classes outside the
// configured range have none
func (a *Allocator) capacity(class int) int {
	if !a.known(class) {
		return 0
	}
	return a.maxCountPerClass[class] - a.counts[class]
}

// leastUsed returns the class with the fewest resolved tracklets that still
// has capacity, or -1 when every class is full
func (a *Allocator) leastUsed() int {

	best := -1

	for c := range a.maxCountPerClass {
		if a.capacity(c) <= 0 {
			continue
		}
		if best < 0 || a.counts[c] < a.counts[best] {
			best = c
		}
	}

	return best
}

// Allocate resolves a class for each tracklet and returns the indices of the
// tracklets that received one.  Tracklets assigned from their own candidates
// come first in descending score order, followed by those given the least
// used class as a fallback.  Tracklets left out had no class with capacity
// remaining
func (a *Allocator) Allocate(tracklets []*Tracklet) []int {

	for i := range a.counts {
		a.counts[i] = 0
	}

	// flatten all candidates
	var scores []idScore

	for i, t := range tracklets {
		for _, c := range t.candidates {
			scores = append(scores, idScore{
				class:    c.Class,
				score:    c.Score,
				tracklet: i,
			})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	assigned := make([]bool, len(tracklets))
	order := make([]int, 0, len(tracklets))

	for _, s := range scores {

		if assigned[s.tracklet] || !a.known(s.class) {
			continue
		}

		t := tracklets[s.tracklet]

		// the class counted is the one the vote resolves to
		class := t.votes.ModeWith(s.class)

		if a.capacity(class) <= 0 {
			continue
		}

		t.votes.Push(s.class)
		t.resolve(class, true)
		a.counts[class]++

		assigned[s.tracklet] = true
		order = append(order, s.tracklet)
	}

	// fallback for tracklets whose candidates were all full
	var rest []int

	for i := range tracklets {
		if !assigned[i] {
			rest = append(rest, i)
		}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return tracklets[rest[i]].GetScore() > tracklets[rest[j]].GetScore()
	})

	for _, i := range rest {

		class := a.leastUsed()

		if class < 0 {
			tracklets[i].allocated = false
			continue
		}

		tracklets[i].resolve(class, false)
		a.counts[class]++
		order = append(order, i)
	}

	return order
}

// Count returns the number of tracklets resolved to class in the last pass
func (a *Allocator) Count(class int) int {
	if class < 0 || class >= len(a.counts) {
		return 0
	}
	return a.counts[class]
}
