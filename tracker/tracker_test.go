package tracker

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-tracklet/postprocess"
)

// newTestTracker is a helper returning a tracker with default parameters
// adjusted by modify
func newTestTracker(t *testing.T, modify func(p *Params)) *Tracker {
	t.Helper()

	p := DefaultParams(3, 5)

	if modify != nil {
		modify(&p)
	}

	tr, err := NewTracker(p)
	require.NoError(t, err)

	return tr
}

// det is a helper creating a small box detection centered at x,y
func det(x, y float64, class int, score float64) postprocess.DetectResult {
	return postprocess.DetectResult{
		Class:       class,
		Box:         postprocess.Box{X: x, Y: y, W: 0.05, H: 0.05},
		Probability: score,
	}
}

func TestTrackerParamsValidate(t *testing.T) {

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{name: "zero max distance", modify: func(p *Params) { p.MaxDistance = 0 }},
		{name: "negative merge distance", modify: func(p *Params) { p.MergeDistance = -0.1 }},
		{name: "zero max tracklets", modify: func(p *Params) { p.MaxTracklets = 0 }},
		{name: "negative lost time", modify: func(p *Params) { p.MaxLostTime = -1 }},
		{name: "no classes", modify: func(p *Params) { p.MaxCountPerClass = nil }},
		{name: "negative class count", modify: func(p *Params) { p.MaxCountPerClass = []int{1, -1} }},
		{name: "zero vote window", modify: func(p *Params) { p.VoteWindow = 0 }},
		{name: "bad filter", modify: func(p *Params) { p.Filter.Beta = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams(2, 1)
			tc.modify(&p)

			tr, err := NewTracker(p)
			assert.Error(t, err)
			assert.Nil(t, tr)
		})
	}

	_, err := NewTracker(DefaultParams(2, 1))
	assert.NoError(t, err)
}

func TestTrackerStationaryDetection(t *testing.T) {

	tr := newTestTracker(t, func(p *Params) {
		p.MaxCountPerClass = []int{1}
	})

	for frame := 0; frame < 5; frame++ {

		outs := tr.Update([]postprocess.DetectResult{det(0.4, 0.6, 0, 0.9)}, float64(frame)/30)

		require.Len(t, outs, 1, "frame %d", frame)
		assert.Equal(t, 1, outs[0].TrackID)
		assert.Equal(t, 0, outs[0].Class)
		assert.Equal(t, Tracked, outs[0].State)
		assert.InDelta(t, 0.4, outs[0].Position.X, 1e-9)
		assert.InDelta(t, 0.6, outs[0].Position.Y, 1e-9)
	}
}

func TestTrackerIdentityStability(t *testing.T) {

	tr := newTestTracker(t, nil)

	outs := tr.Update([]postprocess.DetectResult{det(0.1, 0.5, 1, 0.8)}, 0)
	require.Len(t, outs, 1)

	id := outs[0].TrackID
	uid := outs[0].UUID

	for frame := 1; frame < 30; frame++ {

		// each detection lies just inside MaxDistance of the previous output
		prev := outs[0].Position
		next := det(prev.X+0.09, prev.Y+0.01, 1, 0.8)

		outs = tr.Update([]postprocess.DetectResult{next}, float64(frame)/30)

		require.Len(t, outs, 1, "frame %d", frame)
		assert.Equal(t, id, outs[0].TrackID, "frame %d", frame)
		assert.Equal(t, uid, outs[0].UUID, "frame %d", frame)
		assert.Equal(t, Tracked, outs[0].State)
	}

	tracked, untracked := tr.Count()
	assert.Equal(t, 1, tracked)
	assert.Equal(t, 0, untracked)
}

func TestTrackerLostTimeExpiry(t *testing.T) {

	const eps = 0.01

	tr := newTestTracker(t, func(p *Params) {
		p.MaxLostTime = 1.0
	})

	outs := tr.Update([]postprocess.DetectResult{det(0.5, 0.5, 0, 0.9)}, 0)
	require.Len(t, outs, 1)

	outs = tr.Update(nil, 0.5)
	require.Len(t, outs, 1)
	assert.Equal(t, Untracked, outs[0].State)
	assert.Equal(t, 1, outs[0].LostFrames)
	assert.Equal(t, 0, outs[0].Class)

	outs = tr.Update(nil, 1.0-eps)
	require.Len(t, outs, 1)
	assert.Equal(t, 2, outs[0].LostFrames)

	outs = tr.Update(nil, 1.0+eps)
	assert.Empty(t, outs)

	tracked, untracked := tr.Count()
	assert.Zero(t, tracked)
	assert.Zero(t, untracked)
}

func TestTrackerDuplicateSuppression(t *testing.T) {

	tr := newTestTracker(t, func(p *Params) {
		p.MaxDistance = 0.1
		p.MergeDistance = 0.01
	})

	outs := tr.Update([]postprocess.DetectResult{
		det(0.5, 0.5, 0, 0.9),
		det(0.56, 0.5, 0, 0.8),
	}, 0)
	require.Len(t, outs, 2)

	// only one detection remains, the first tracklet claims it and the
	// second is a ghost within MaxDistance of it
	outs = tr.Update([]postprocess.DetectResult{det(0.53, 0.5, 0, 0.9)}, 1.0/30)

	require.Len(t, outs, 1)
	assert.Equal(t, 1, outs[0].TrackID)

	tracked, untracked := tr.Count()
	assert.Equal(t, 1, tracked)
	assert.Equal(t, 0, untracked)
}

func TestTrackerUntrackedFarAwaySurvives(t *testing.T) {

	tr := newTestTracker(t, nil)

	tr.Update([]postprocess.DetectResult{det(0.1, 0.1, 0, 0.9)}, 0)
	outs := tr.Update([]postprocess.DetectResult{det(0.9, 0.9, 0, 0.9)}, 0.1)

	require.Len(t, outs, 2)

	states := map[int]TrackletState{}
	for _, out := range outs {
		states[out.TrackID] = out.State
	}

	assert.Equal(t, Untracked, states[1])
	assert.Equal(t, Tracked, states[2])
}

func TestTrackerReappearanceReplacesUntracked(t *testing.T) {

	tr := newTestTracker(t, nil)

	tr.Update([]postprocess.DetectResult{det(0.5, 0.5, 0, 0.9)}, 0)
	tr.Update(nil, 0.1)

	// untracked tracklets are not matched, the new tracklet replaces the ghost
	outs := tr.Update([]postprocess.DetectResult{det(0.5, 0.5, 0, 0.9)}, 0.2)

	require.Len(t, outs, 1)
	assert.Equal(t, 2, outs[0].TrackID)
	assert.Equal(t, Tracked, outs[0].State)
}

func TestTrackerMergesNearDuplicates(t *testing.T) {

	tr := newTestTracker(t, func(p *Params) {
		p.MergeDistance = 0.25
	})

	outs := tr.Update([]postprocess.DetectResult{
		det(0.5, 0.5, 0, 0.7),
		det(0.6, 0.5, 0, 0.9),
	}, 0)

	require.Len(t, outs, 1)
	assert.Equal(t, []ClassScore{{Class: 0, Score: 0.9}, {Class: 0, Score: 0.7}}, outs[0].Candidates)
	assert.InDelta(t, 0.9, outs[0].Score, 1e-12)
}

func TestTrackerClassCapacityInvariant(t *testing.T) {

	caps := []int{1, 2, 1}

	tr := newTestTracker(t, func(p *Params) {
		p.MaxCountPerClass = caps
		p.MaxDistance = 0.08
		p.MergeDistance = 0.01
	})

	rng := rand.New(rand.NewSource(42))

	for frame := 0; frame < 60; frame++ {

		var dets []postprocess.DetectResult

		for i := 0; i < 6; i++ {
			dets = append(dets, det(rng.Float64(), rng.Float64(), rng.Intn(3), rng.Float64()))
		}

		outs := tr.Update(dets, float64(frame)/30)

		counts := make([]int, len(caps))

		for _, out := range outs {
			require.True(t, out.Class >= 0 && out.Class < len(caps), "class %d out of range", out.Class)
			counts[out.Class]++
		}

		for c, n := range counts {
			assert.LessOrEqual(t, n, caps[c], "frame %d class %d", frame, c)
		}
	}
}

func TestTrackerMaxTrackletsCap(t *testing.T) {

	tr := newTestTracker(t, func(p *Params) {
		p.MaxTracklets = 3
		p.MaxCountPerClass = []int{10}
	})

	outs := tr.Update([]postprocess.DetectResult{
		det(0.1, 0.1, 0, 0.5),
		det(0.3, 0.3, 0, 0.9),
		det(0.5, 0.5, 0, 0.6),
		det(0.7, 0.7, 0, 0.8),
		det(0.9, 0.9, 0, 0.7),
	}, 0)

	require.Len(t, outs, 3)

	var scores []float64
	for _, out := range outs {
		scores = append(scores, out.Score)
	}

	assert.Equal(t, []float64{0.9, 0.8, 0.7}, scores)

	// tracklets beyond the cap are still alive
	tracked, _ := tr.Count()
	assert.Equal(t, 5, tracked)
}

func TestTrackerNoDetections(t *testing.T) {

	tr := newTestTracker(t, nil)

	for frame := 0; frame < 3; frame++ {
		assert.Empty(t, tr.Update(nil, float64(frame)))
	}
}

func TestTrackerTimestampBackwards(t *testing.T) {

	tr := newTestTracker(t, nil)

	tr.Update([]postprocess.DetectResult{det(0.5, 0.5, 0, 0.9)}, 1.0)
	outs := tr.Update([]postprocess.DetectResult{det(0.52, 0.5, 0, 0.9)}, 0.5)

	require.Len(t, outs, 1)
	assert.Equal(t, 1, outs[0].TrackID)
	assert.False(t, math.IsNaN(outs[0].Position.X))
	assert.False(t, math.IsInf(outs[0].Position.X, 0))
}

func TestTrackerKalmanSmoother(t *testing.T) {

	tr := newTestTracker(t, func(p *Params) {
		p.Filter.Kind = FilterKalman
	})

	var outs []Output

	for frame := 0; frame < 10; frame++ {
		outs = tr.Update([]postprocess.DetectResult{det(0.2+0.01*float64(frame), 0.5, 2, 0.9)}, float64(frame)/30)
	}

	require.Len(t, outs, 1)
	assert.Equal(t, 1, outs[0].TrackID)
	assert.Equal(t, 2, outs[0].Class)
}

func TestTrackerOutputsAreCopies(t *testing.T) {

	tr := newTestTracker(t, nil)

	outs := tr.Update([]postprocess.DetectResult{det(0.5, 0.5, 1, 0.9)}, 0)
	require.Len(t, outs, 1)

	outs[0].Candidates[0].Class = 2
	outs[0].Position.X = 42

	again := tr.Update([]postprocess.DetectResult{det(0.5, 0.5, 1, 0.9)}, 1.0/30)
	require.Len(t, again, 1)

	assert.Equal(t, 1, again[0].Candidates[0].Class)
	assert.InDelta(t, 0.5, again[0].Position.X, 1e-9)
}

func TestTrackerReset(t *testing.T) {

	tr := newTestTracker(t, nil)

	tr.Update([]postprocess.DetectResult{det(0.5, 0.5, 0, 0.9), det(0.1, 0.1, 0, 0.9)}, 0)
	tr.Reset()

	tracked, untracked := tr.Count()
	assert.Zero(t, tracked)
	assert.Zero(t, untracked)

	outs := tr.Update([]postprocess.DetectResult{det(0.5, 0.5, 0, 0.9)}, 0)
	require.Len(t, outs, 1)
	assert.Equal(t, 1, outs[0].TrackID)
}

func TestTrailHistory(t *testing.T) {

	trail := NewTrail(3)

	for i := 0; i < 5; i++ {
		out := Output{TrackID: 7}
		out.Position.X = float64(i)
		trail.Add(out)
	}

	points := trail.GetPoints(7)
	require.Len(t, points, 3)
	assert.Equal(t, 2.0, points[0].X)
	assert.Equal(t, 4.0, points[2].X)

	assert.Nil(t, trail.GetPoints(8))

	trail.Add(Output{TrackID: 8})
	trail.Prune([]Output{{TrackID: 8}})

	assert.Nil(t, trail.GetPoints(7))
	assert.Len(t, trail.GetPoints(8), 1)

	trail.Reset()
	assert.Nil(t, trail.GetPoints(8))
}
