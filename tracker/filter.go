package tracker

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Smoother filters a stream of positions.  Each Tracklet owns its own
// Smoother and feeds it non-decreasing timestamps in seconds
type Smoother interface {
	Filter(pos r3.Vec, timestamp float64) r3.Vec
}

// FilterKind selects the Smoother implementation used for tracklets
type FilterKind string

const (
	// FilterOneEuro is the speed adaptive one pole low pass filter
	FilterOneEuro FilterKind = "one_euro"
	// FilterKalman is a constant velocity Kalman filter
	FilterKalman FilterKind = "kalman"
)

// FilterParams defines the parameters of the tracklet position filter
type FilterParams struct {
	// Kind of filter to use, defaults to FilterOneEuro when empty
	Kind FilterKind
	// MinCutoff is the minimum cutoff frequency in Hz
	MinCutoff float64
	// Beta is the speed coefficient, higher values reduce lag on fast
	// moving objects
	Beta float64
	// DerivativeCutoff is the cutoff frequency in Hz used for the speed
	// estimate
	DerivativeCutoff float64
	// Frequency is the expected sampling frequency in Hz, used until two
	// distinct timestamps have been seen
	Frequency float64
	// ProcessNoise is the Kalman acceleration noise
	ProcessNoise float64
	// MeasurementNoise is the Kalman position measurement noise
	MeasurementNoise float64
}

// DefaultFilterParams returns the default filter parameters for a 30 FPS
// detection source
func DefaultFilterParams() FilterParams {
	return FilterParams{
		Kind:             FilterOneEuro,
		MinCutoff:        1.0,
		Beta:             0.1,
		DerivativeCutoff: 1.0,
		Frequency:        30,
		ProcessNoise:     1e-2,
		MeasurementNoise: 1e-3,
	}
}

// Validate checks the filter parameters are usable
func (p FilterParams) Validate() error {

	if p.Frequency <= 0 {
		return errors.Errorf("filter frequency must be positive, got %v", p.Frequency)
	}

	switch p.Kind {
	case FilterOneEuro, "":
		if p.MinCutoff <= 0 {
			return errors.Errorf("filter min cutoff must be positive, got %v", p.MinCutoff)
		}
		if p.Beta <= 0 {
			return errors.Errorf("filter beta must be positive, got %v", p.Beta)
		}
		if p.DerivativeCutoff <= 0 {
			return errors.Errorf("filter derivative cutoff must be positive, got %v", p.DerivativeCutoff)
		}

	case FilterKalman:
		if p.ProcessNoise <= 0 {
			return errors.Errorf("filter process noise must be positive, got %v", p.ProcessNoise)
		}
		if p.MeasurementNoise <= 0 {
			return errors.Errorf("filter measurement noise must be positive, got %v", p.MeasurementNoise)
		}

	default:
		return errors.Errorf("unknown filter kind %q", p.Kind)
	}

	return nil
}

// NewSmoother creates a new Smoother instance for the given parameters which
// must have passed Validate
func NewSmoother(p FilterParams) Smoother {

	if p.Kind == FilterKalman {
		return NewKalmanFilter(p.ProcessNoise, p.MeasurementNoise)
	}

	return NewOneEuroFilter(p.MinCutoff, p.Beta, p.DerivativeCutoff, p.Frequency)
}
