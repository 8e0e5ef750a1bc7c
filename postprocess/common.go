package postprocess

import (
	"math"
	"sort"
)

// IOU calculates the Intersection over Union of two center format boxes.
// Areas and the intersection are taken from the same edges so a box overlaps
// itself exactly.  Boxes with no union area are treated as having zero overlap
func IOU(a, b Box) float64 {

	w := math.Max(0, math.Min(a.Right(), b.Right())-math.Max(a.Left(), b.Left()))
	h := math.Max(0, math.Min(a.Bottom(), b.Bottom())-math.Max(a.Top(), b.Top()))
	inter := w * h

	union := a.Area() + b.Area() - inter

	if union <= 0 {
		return 0
	}

	return inter / union
}

// NMS implements a Non-Maximum Suppression (NMS) algorithm over detection
// results.  Detections with a Probability below scoreThreshold are dropped,
// the remainder are ordered by descending Probability and any detection
// of the same Class overlapping a higher scoring one by iouThreshold or more
// is suppressed.  Detections with equal Probability keep their input order
func NMS(dets []DetectResult, scoreThreshold, iouThreshold float64) []DetectResult {

	order := make([]DetectResult, 0, len(dets))

	for _, det := range dets {
		if det.Probability < scoreThreshold {
			continue
		}
		order = append(order, det)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Probability > order[j].Probability
	})

	suppressed := make([]bool, len(order))
	keep := make([]DetectResult, 0, len(order))

	for i := range order {

		if suppressed[i] {
			continue
		}

		keep = append(keep, order[i])

		for j := i + 1; j < len(order); j++ {

			if suppressed[j] || order[j].Class != order[i].Class {
				continue
			}

			if IOU(order[i].Box, order[j].Box) >= iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return keep
}
