package tracker

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// lowPass is an exponential smoothing filter keeping the last output
type lowPass struct {
	// last filtered value
	value float64
	// initialized is set once the first value has been seen
	initialized bool
}

// filter smooths x with the given alpha in the range (0,1]
func (l *lowPass) filter(x, alpha float64) float64 {

	if !l.initialized {
		l.value = x
		l.initialized = true
		return x
	}

	l.value = alpha*x + (1-alpha)*l.value
	return l.value
}

// smoothingAlpha returns the exponential smoothing factor for a cutoff
// frequency at the given sampling frequency
func smoothingAlpha(cutoff, freq float64) float64 {
	tau := 1.0 / (2 * math.Pi * cutoff)
	te := 1.0 / freq
	return 1.0 / (1.0 + tau/te)
}

// oneEuro is the scalar speed adaptive filter applied to one axis
type oneEuro struct {
	minCutoff float64
	beta      float64
	dCutoff   float64
	x         lowPass
	dx        lowPass
}

// filter smooths x at sampling frequency freq
func (o *oneEuro) filter(x, freq float64) float64 {

	// speed estimate from the previous filtered value
	dx := 0.0

	if o.x.initialized {
		dx = (x - o.x.value) * freq
	}

	edx := o.dx.filter(dx, smoothingAlpha(o.dCutoff, freq))
	cutoff := o.minCutoff + o.beta*math.Abs(edx)

	return o.x.filter(x, smoothingAlpha(cutoff, freq))
}

// OneEuroFilter is a one pole low pass filter whose cutoff frequency rises
// with the speed of the signal, giving low jitter when an object is still
// and low lag when it moves.  Each axis of the position is filtered
// independently
type OneEuroFilter struct {
	// axes filters for x, y and z
	axes [3]oneEuro
	// freq is the current sampling frequency estimate
	freq float64
	// lastTime is the timestamp of the previous sample
	lastTime float64
	// started is set once a sample has been filtered
	started bool
}

// NewOneEuroFilter returns a new OneEuroFilter
func NewOneEuroFilter(minCutoff, beta, dCutoff, freq float64) *OneEuroFilter {

	f := &OneEuroFilter{
		freq: freq,
	}

	for i := range f.axes {
		f.axes[i] = oneEuro{
			minCutoff: minCutoff,
			beta:      beta,
			dCutoff:   dCutoff,
		}
	}

	return f
}

// Filter smooths the position sampled at timestamp.  A timestamp equal to the
// previous one reuses the last sampling frequency
func (f *OneEuroFilter) Filter(pos r3.Vec, timestamp float64) r3.Vec {

	if f.started && timestamp > f.lastTime {
		f.freq = 1.0 / (timestamp - f.lastTime)
	}

	f.lastTime = timestamp
	f.started = true

	return r3.Vec{
		X: f.axes[0].filter(pos.X, f.freq),
		Y: f.axes[1].filter(pos.Y, f.freq),
		Z: f.axes[2].filter(pos.Z, f.freq),
	}
}
