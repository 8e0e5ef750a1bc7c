package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-tracklet/postprocess"
)

// fakeHandle records the calls made on a visual handle
type fakeHandle struct {
	anchor      postprocess.Box
	label       string
	active      bool
	activations []bool
	clones      []*fakeHandle
}

func (f *fakeHandle) SetAnchor(box postprocess.Box) {
	f.anchor = box
}

func (f *fakeHandle) SetLabel(label string) {
	f.label = label
}

func (f *fakeHandle) SetActive(active bool) {
	f.active = active
	f.activations = append(f.activations, active)
}

func (f *fakeHandle) Clone() VisualHandle {
	c := &fakeHandle{}
	f.clones = append(f.clones, c)
	return c
}

// newTestReconciler is a helper returning a reconciler and its template
func newTestReconciler(t *testing.T, p Params) (*Reconciler, *fakeHandle) {
	t.Helper()

	template := &fakeHandle{}
	r, err := NewReconciler(p, template)
	require.NoError(t, err)

	return r, template
}

// boxDet is a helper creating a detection
func boxDet(x, y float64, class int, score float64, id int64) postprocess.DetectResult {
	return postprocess.DetectResult{
		Class:       class,
		Box:         postprocess.Box{X: x, Y: y, W: 0.2, H: 0.2},
		Probability: score,
		ID:          id,
	}
}

func TestParamsValidate(t *testing.T) {

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{name: "zero pool size", modify: func(p *Params) { p.PoolSize = 0 }},
		{name: "match threshold above one", modify: func(p *Params) { p.MatchThreshold = 1.5 }},
		{name: "negative match threshold", modify: func(p *Params) { p.MatchThreshold = -0.1 }},
		{name: "negative lost frames", modify: func(p *Params) { p.LostFramesThreshold = -1 }},
		{name: "smoothing above one", modify: func(p *Params) { p.SmoothingCoefficient = 2 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams(4)
			tc.modify(&p)

			r, err := NewReconciler(p, &fakeHandle{})
			assert.Error(t, err)
			assert.Nil(t, r)
		})
	}

	_, err := NewReconciler(DefaultParams(4), nil)
	assert.Error(t, err)
}

func TestNewReconcilerClonesTemplate(t *testing.T) {

	r, template := newTestReconciler(t, DefaultParams(3))

	assert.Equal(t, 3, r.Size())
	assert.Len(t, template.clones, 2)
	assert.Equal(t, []bool{false}, template.activations)

	for _, c := range template.clones {
		assert.Equal(t, []bool{false}, c.activations)
	}

	for _, s := range r.States() {
		assert.False(t, s.Active)
	}
}

func TestReconcileLostFramesScenario(t *testing.T) {

	p := DefaultParams(2)
	p.MatchThreshold = 0.5
	p.LostFramesThreshold = 2
	p.SmoothingCoefficient = 0

	r, template := newTestReconciler(t, p)

	states := r.Reconcile([]postprocess.DetectResult{boxDet(0.5, 0.5, 0, 0.9, 1)})
	require.True(t, states[0].Active)
	assert.Equal(t, int64(1), states[0].DetectionID)
	assert.False(t, states[1].Active)

	// IOU with the bound box is 0.6
	moved := boxDet(0.55, 0.5, 0, 0.9, 2)
	require.InDelta(t, 0.6, postprocess.IOU(states[0].Anchor, moved.Box), 1e-9)

	states = r.Reconcile([]postprocess.DetectResult{moved})
	assert.True(t, states[0].Active)
	assert.True(t, states[0].Updated)
	assert.Equal(t, int64(2), states[0].DetectionID)
	assert.Equal(t, moved.Box, states[0].Anchor)
	assert.False(t, states[1].Active)

	// object vanishes, slot stays visible up to the threshold
	for lost := 1; lost <= 2; lost++ {
		states = r.Reconcile(nil)
		assert.True(t, states[0].Active, "lost frame %d", lost)
		assert.False(t, states[0].Updated)
		assert.Equal(t, lost, states[0].LostFrames)
	}

	states = r.Reconcile(nil)
	assert.False(t, states[0].Active)
	assert.False(t, template.active)
	assert.Equal(t, []bool{false, true, false}, template.activations)
}

func TestReconcileBelowMatchThreshold(t *testing.T) {

	p := DefaultParams(2)
	p.MatchThreshold = 0.5
	p.LostFramesThreshold = 2

	r, _ := newTestReconciler(t, p)

	r.Reconcile([]postprocess.DetectResult{boxDet(0.5, 0.5, 0, 0.9, 1)})

	// IOU 1/3 is below the threshold so a second slot is used
	states := r.Reconcile([]postprocess.DetectResult{boxDet(0.6, 0.5, 0, 0.9, 2)})

	assert.True(t, states[0].Active)
	assert.Equal(t, 1, states[0].LostFrames)
	assert.Equal(t, int64(1), states[0].DetectionID)

	assert.True(t, states[1].Active)
	assert.Equal(t, int64(2), states[1].DetectionID)
}

func TestReconcileZeroThresholdKeepsSlot(t *testing.T) {

	p := DefaultParams(2)
	p.MatchThreshold = 0
	p.SmoothingCoefficient = 0

	r, _ := newTestReconciler(t, p)

	r.Reconcile([]postprocess.DetectResult{boxDet(0.2, 0.2, 0, 0.9, 1)})

	// no overlap with the bound box
	states := r.Reconcile([]postprocess.DetectResult{boxDet(0.8, 0.8, 0, 0.9, 2)})

	assert.True(t, states[0].Active)
	assert.True(t, states[0].Updated)
	assert.Zero(t, states[0].LostFrames)
	assert.Equal(t, int64(2), states[0].DetectionID)
	assert.Equal(t, 0.8, states[0].Anchor.X)
	assert.False(t, states[1].Active)
}

func TestReconcileIdenticalBoxFullThreshold(t *testing.T) {

	p := DefaultParams(2)
	p.MatchThreshold = 1
	p.SmoothingCoefficient = 0

	r, _ := newTestReconciler(t, p)

	for i := int64(1); i <= 3; i++ {
		states := r.Reconcile([]postprocess.DetectResult{boxDet(0.5, 0.5, 0, 0.9, i)})

		assert.True(t, states[0].Active)
		assert.Equal(t, i, states[0].DetectionID)
		assert.Zero(t, states[0].LostFrames)
		assert.False(t, states[1].Active)
	}
}

func TestReconcileClassMustMatch(t *testing.T) {

	r, _ := newTestReconciler(t, DefaultParams(2))

	r.Reconcile([]postprocess.DetectResult{boxDet(0.5, 0.5, 0, 0.9, 1)})
	states := r.Reconcile([]postprocess.DetectResult{boxDet(0.5, 0.5, 1, 0.9, 2)})

	assert.Equal(t, 0, states[0].Class)
	assert.Equal(t, 1, states[0].LostFrames)
	assert.Equal(t, 1, states[1].Class)
	assert.True(t, states[1].Active)
}

func TestReconcileSmoothing(t *testing.T) {

	p := DefaultParams(1)
	p.SmoothingCoefficient = 0.5

	r, template := newTestReconciler(t, p)

	r.Reconcile([]postprocess.DetectResult{boxDet(0.5, 0.5, 0, 0.9, 1)})
	assert.Equal(t, 0.5, template.anchor.X)

	states := r.Reconcile([]postprocess.DetectResult{boxDet(0.55, 0.5, 0, 0.9, 2)})

	// moves 1 - 0.5*0.95 of the way
	assert.InDelta(t, 0.5+0.05*0.525, states[0].Anchor.X, 1e-12)
	assert.InDelta(t, 0.5, states[0].Anchor.Y, 1e-12)
	assert.Equal(t, states[0].Anchor, template.anchor)
}

func TestReconcileNewAssignmentSnaps(t *testing.T) {

	p := DefaultParams(1)
	p.SmoothingCoefficient = 1
	p.LostFramesThreshold = 0

	r, _ := newTestReconciler(t, p)

	r.Reconcile([]postprocess.DetectResult{boxDet(0.2, 0.2, 0, 0.9, 1)})
	states := r.Reconcile([]postprocess.DetectResult{boxDet(0.8, 0.8, 0, 0.9, 2)})

	require.True(t, states[0].Active)
	assert.Equal(t, 0.8, states[0].Anchor.X)
	assert.Equal(t, int64(2), states[0].DetectionID)
}

func TestReconcilePrefersExpiredSlot(t *testing.T) {

	p := DefaultParams(2)
	p.LostFramesThreshold = 0

	r, template := newTestReconciler(t, p)

	r.Reconcile([]postprocess.DetectResult{boxDet(0.2, 0.2, 0, 0.9, 1)})
	states := r.Reconcile([]postprocess.DetectResult{boxDet(0.8, 0.8, 1, 0.9, 2)})

	assert.True(t, states[0].Active)
	assert.Equal(t, 1, states[0].Class)
	assert.False(t, states[1].Active)

	// the slot was never hidden while being reused
	assert.Equal(t, []bool{false, true}, template.activations)
	assert.Equal(t, "1", template.label)
}

func TestReconcileDropsExtraDetections(t *testing.T) {

	r, _ := newTestReconciler(t, DefaultParams(1))

	states := r.Reconcile([]postprocess.DetectResult{
		boxDet(0.2, 0.2, 0, 0.4, 1),
		boxDet(0.8, 0.8, 0, 0.9, 2),
	})

	require.Len(t, states, 1)
	assert.Equal(t, int64(2), states[0].DetectionID)
}

func TestReconcilePositional(t *testing.T) {

	p := DefaultParams(3)
	p.Matching = false
	p.SmoothingCoefficient = 0

	r, template := newTestReconciler(t, p)

	states := r.Reconcile([]postprocess.DetectResult{
		boxDet(0.2, 0.2, 0, 0.4, 1),
		boxDet(0.8, 0.8, 1, 0.9, 2),
	})

	assert.True(t, states[0].Active)
	assert.Equal(t, int64(1), states[0].DetectionID)
	assert.True(t, states[1].Active)
	assert.Equal(t, int64(2), states[1].DetectionID)
	assert.False(t, states[2].Active)

	states = r.Reconcile([]postprocess.DetectResult{boxDet(0.5, 0.5, 2, 0.4, 3)})

	assert.True(t, states[0].Active)
	assert.Equal(t, 2, states[0].Class)
	assert.Equal(t, 0.5, states[0].Anchor.X)
	assert.False(t, states[1].Active)
	assert.False(t, template.clones[0].active)
}

func TestReconcileLabels(t *testing.T) {

	r, template := newTestReconciler(t, DefaultParams(2))

	named := boxDet(0.2, 0.2, 3, 0.9, 1)
	named.Label = "cue ball"

	states := r.Reconcile([]postprocess.DetectResult{named, boxDet(0.8, 0.8, 4, 0.8, 2)})

	assert.Equal(t, "cue ball", states[0].Label)
	assert.Equal(t, "cue ball", template.label)
	assert.Equal(t, "4", states[1].Label)
	assert.Equal(t, "4", template.clones[0].label)
}

func TestReconcilerReset(t *testing.T) {

	r, template := newTestReconciler(t, DefaultParams(1))

	r.Reconcile([]postprocess.DetectResult{boxDet(0.2, 0.2, 0, 0.9, 1)})
	r.Reset()

	states := r.States()
	assert.False(t, states[0].Active)
	assert.False(t, template.active)
}
