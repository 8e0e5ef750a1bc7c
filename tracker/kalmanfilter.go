package tracker

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// kfStateDim is the state size, position then velocity for x, y, z
	kfStateDim = 6
	// kfMeasureDim is the measurement size, position x, y, z
	kfMeasureDim = 3
)

// KalmanFilter is a constant velocity Kalman filter over a 3D point, the
// state is the position and velocity on each axis and only the position is
// measured
type KalmanFilter struct {
	// processNoise is the white acceleration noise intensity
	processNoise float64
	// measurementNoise is the variance of a position measurement
	measurementNoise float64
	// updateMat projects the state into measurement space
	updateMat *mat.Dense
	// mean is the state vector
	mean *mat.VecDense
	// covariance is the state covariance matrix
	covariance *mat.Dense
	// lastTime is the timestamp of the previous measurement
	lastTime float64
	// started is set once Initiate has run
	started bool
}

// NewKalmanFilter initializes and returns a new KalmanFilter
func NewKalmanFilter(processNoise, measurementNoise float64) *KalmanFilter {

	// create updateMat as a 3x6 matrix with first 3 diagonal elements set to 1
	updateMat := mat.NewDense(kfMeasureDim, kfStateDim, nil)

	for i := 0; i < kfMeasureDim; i++ {
		updateMat.Set(i, i, 1.0)
	}

	return &KalmanFilter{
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
		updateMat:        updateMat,
		mean:             mat.NewVecDense(kfStateDim, nil),
		covariance:       mat.NewDense(kfStateDim, kfStateDim, nil),
	}
}

// Initiate initializes the state mean and covariance from the first
// measurement
func (kf *KalmanFilter) Initiate(measurement r3.Vec) {

	kf.mean.SetVec(0, measurement.X)
	kf.mean.SetVec(1, measurement.Y)
	kf.mean.SetVec(2, measurement.Z)

	// velocity starts at rest
	for i := kfMeasureDim; i < kfStateDim; i++ {
		kf.mean.SetVec(i, 0)
	}

	kf.covariance.Zero()

	for i := 0; i < kfMeasureDim; i++ {
		kf.covariance.Set(i, i, kf.measurementNoise)
		kf.covariance.Set(kfMeasureDim+i, kfMeasureDim+i, 1.0)
	}

	kf.started = true
}

// motion returns the state transition matrix for time step dt
func (kf *KalmanFilter) motion(dt float64) *mat.Dense {

	motionMat := mat.NewDense(kfStateDim, kfStateDim, nil)

	for i := 0; i < kfStateDim; i++ {
		motionMat.Set(i, i, 1.0)
	}

	for i := 0; i < kfMeasureDim; i++ {
		motionMat.Set(i, kfMeasureDim+i, dt)
	}

	return motionMat
}

// motionCov returns the process noise covariance for a white acceleration
// model over time step dt
func (kf *KalmanFilter) motionCov(dt float64) *mat.Dense {

	q := kf.processNoise
	cov := mat.NewDense(kfStateDim, kfStateDim, nil)

	for i := 0; i < kfMeasureDim; i++ {
		v := kfMeasureDim + i
		cov.Set(i, i, q*dt*dt*dt*dt/4)
		cov.Set(i, v, q*dt*dt*dt/2)
		cov.Set(v, i, q*dt*dt*dt/2)
		cov.Set(v, v, q*dt*dt)
	}

	return cov
}

// Predict advances the state mean and covariance by time step dt
func (kf *KalmanFilter) Predict(dt float64) {

	motionMat := kf.motion(dt)

	var mean mat.VecDense
	mean.MulVec(motionMat, kf.mean)
	kf.mean.CopyVec(&mean)

	var cov mat.Dense
	cov.Mul(motionMat, kf.covariance)
	cov.Mul(&cov, motionMat.T())
	cov.Add(&cov, kf.motionCov(dt))
	kf.covariance.Copy(&cov)
}

// Update corrects the state mean and covariance with a position measurement
func (kf *KalmanFilter) Update(measurement r3.Vec) error {

	// project the state covariance to measurement space
	projectedCov := kf.project()

	// perform Cholesky factorization of the projected covariance matrix
	chol := mat.Cholesky{}

	if ok := chol.Factorize(projectedCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// B = H * P, solving S * K^T = B gives the transposed Kalman gain
	B := mat.NewDense(kfMeasureDim, kfStateDim, nil)
	B.Mul(kf.updateMat, kf.covariance)

	var gainT mat.Dense

	if err := chol.SolveTo(&gainT, B); err != nil {
		return errors.Wrap(err, "failed to compute kalman gain")
	}

	// compute the innovation (measurement residual)
	innovation := mat.NewVecDense(kfMeasureDim, []float64{
		measurement.X - kf.mean.AtVec(0),
		measurement.Y - kf.mean.AtVec(1),
		measurement.Z - kf.mean.AtVec(2),
	})

	// update the state mean with the innovation
	var delta mat.VecDense
	delta.MulVec(gainT.T(), innovation)
	kf.mean.AddVec(kf.mean, &delta)

	// update the state covariance, P = P - K S K^T
	var temp mat.Dense
	temp.Mul(gainT.T(), projectedCov)

	var temp2 mat.Dense
	temp2.Mul(&temp, &gainT)

	kf.covariance.Sub(kf.covariance, &temp2)

	return nil
}

// project returns the state covariance projected to measurement space with
// the measurement noise added
func (kf *KalmanFilter) project() *mat.SymDense {

	temp := mat.NewDense(kfMeasureDim, kfStateDim, nil)
	temp.Mul(kf.updateMat, kf.covariance)

	temp2 := mat.NewDense(kfMeasureDim, kfMeasureDim, nil)
	temp2.Mul(temp, kf.updateMat.T())

	projectedCov := mat.NewSymDense(kfMeasureDim, nil)

	for i := 0; i < kfMeasureDim; i++ {
		for j := i; j < kfMeasureDim; j++ {
			// average off diagonal terms to absorb rounding asymmetry
			projectedCov.SetSym(i, j, (temp2.At(i, j)+temp2.At(j, i))/2)
		}
		projectedCov.SetSym(i, i, projectedCov.At(i, i)+kf.measurementNoise)
	}

	return projectedCov
}

// Position returns the position held in the state mean
func (kf *KalmanFilter) Position() r3.Vec {
	return r3.Vec{X: kf.mean.AtVec(0), Y: kf.mean.AtVec(1), Z: kf.mean.AtVec(2)}
}

// Velocity returns the velocity held in the state mean
func (kf *KalmanFilter) Velocity() r3.Vec {
	return r3.Vec{X: kf.mean.AtVec(3), Y: kf.mean.AtVec(4), Z: kf.mean.AtVec(5)}
}

// Filter runs a predict and update cycle for the position measured at
// timestamp and returns the filtered position.  The first call initiates the
// filter and returns the measurement unchanged
func (kf *KalmanFilter) Filter(pos r3.Vec, timestamp float64) r3.Vec {

	if !kf.started {
		kf.Initiate(pos)
		kf.lastTime = timestamp
		return pos
	}

	dt := timestamp - kf.lastTime

	if dt < 0 {
		dt = 0
	}

	kf.lastTime = timestamp
	kf.Predict(dt)

	if err := kf.Update(pos); err != nil {
		// covariance is no longer positive definite, restart from the
		// measurement
		kf.Initiate(pos)
		return pos
	}

	return kf.Position()
}
