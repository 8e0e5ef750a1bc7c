package tracker

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// ClassScore is a single class candidate offered for an object
type ClassScore struct {
	// Class is the class index
	Class int
	// Score is the confidence of the class in the range [0,1]
	Score float64
}

// Prediction is a per frame, possibly merged, detection that has not yet
// been resolved to a Tracklet
type Prediction struct {
	// Position of the object
	Position r3.Vec
	// Candidates are the class candidates ordered by descending score
	Candidates []ClassScore
	// Class is the resolved class, only valid when HasClass is set
	Class int
	// HasClass indicates Class has been resolved
	HasClass bool
}

// TopScore returns the highest candidate score or zero when there are no
// candidates
func (p Prediction) TopScore() float64 {
	if len(p.Candidates) == 0 {
		return 0
	}
	return p.Candidates[0].Score
}

// distance returns the euclidean distance between two positions
func distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// sortCandidates orders candidates by descending score keeping the existing
// order for equal scores
func sortCandidates(c []ClassScore) {
	sort.SliceStable(c, func(i, j int) bool {
		return c[i].Score > c[j].Score
	})
}

// MergePredictions collapses predictions within mergeDistance of each other
// into a single prediction.  It is a single greedy pass in input order, each
// prediction not yet merged absorbs every later prediction not yet merged
// that lies within mergeDistance of it, keeping its own position and taking
// the union of the class candidates.  A prediction can only absorb those after
// it so the result depends on input order.  The input is not modified
func MergePredictions(preds []Prediction, mergeDistance float64) []Prediction {

	merged := make([]bool, len(preds))
	out := make([]Prediction, 0, len(preds))

	for i := range preds {

		if merged[i] {
			continue
		}

		next := Prediction{
			Position:   preds[i].Position,
			Candidates: append([]ClassScore(nil), preds[i].Candidates...),
			Class:      preds[i].Class,
			HasClass:   preds[i].HasClass,
		}

		absorbed := false

		for j := i + 1; j < len(preds); j++ {

			if merged[j] {
				continue
			}

			if distance(preds[i].Position, preds[j].Position) < mergeDistance {
				merged[j] = true
				absorbed = true
				next.Candidates = append(next.Candidates, preds[j].Candidates...)
			}
		}

		if absorbed {
			sortCandidates(next.Candidates)

			if next.HasClass && len(next.Candidates) > 0 {
				next.Class = next.Candidates[0].Class
			}
		}

		out = append(out, next)
	}

	return out
}
