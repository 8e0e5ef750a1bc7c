package render

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-tracklet/pool"
	"github.com/swdee/go-tracklet/postprocess"
	"github.com/swdee/go-tracklet/tracker"
)

// compile time check BoxVisual can back the visual pool
var _ pool.Template = (*BoxVisual)(nil)

func TestBoxPoolCloneRegisters(t *testing.T) {

	boxes := NewBoxPool(DefaultFont(), 2)
	template := boxes.Template()

	r, err := pool.NewReconciler(pool.DefaultParams(3), template)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Size())

	visuals := boxes.Visuals()
	require.Len(t, visuals, 3)
	assert.Same(t, template, visuals[0])

	for i, v := range visuals {
		assert.Equal(t, SlotColor(i), v.Color())
		assert.False(t, v.Active())
	}

	r.Reconcile([]postprocess.DetectResult{
		{Class: 0, Label: "ball", Box: postprocess.Box{X: 0.5, Y: 0.5, W: 0.5, H: 0.5}, Probability: 0.9},
	})

	assert.True(t, visuals[0].Active())
	assert.Equal(t, "ball", visuals[0].label)
	assert.Equal(t, image.Rect(25, 25, 75, 75), visuals[0].Rect(100, 100))
	assert.False(t, visuals[1].Active())
}

func TestTrackColor(t *testing.T) {

	assert.Equal(t, TrackColor(7), TrackColor(7))
	assert.NotEqual(t, TrackColor(1), TrackColor(2))
	assert.Equal(t, uint8(255), TrackColor(-3).A)
}

func TestSlotColorWraps(t *testing.T) {
	assert.Equal(t, SlotColor(0), SlotColor(len(classColors)))
	assert.Equal(t, SlotColor(1), SlotColor(-1))
}

func TestClassName(t *testing.T) {

	names := []string{"cue", "red"}

	assert.Equal(t, "red", className(names, 1))
	assert.Equal(t, "5", className(names, 5))
	assert.Equal(t, "-1", className(nil, -1))
}

func TestTrailPixels(t *testing.T) {

	points := []tracker.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0.25}, {X: 1, Y: 1}}

	got := trailPixels(points, 640, 480)

	assert.Equal(t, []image.Point{image.Pt(0, 0), image.Pt(320, 120), image.Pt(640, 480)}, got)
}
