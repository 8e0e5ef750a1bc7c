package main

import (
	"math"
	"math/rand"

	"github.com/swdee/go-tracklet/config"
	"github.com/swdee/go-tracklet/postprocess"
)

const (
	// objectSize is the normalized width and height of an object box
	objectSize = 0.04
	// minBound and maxBound are the limits objects bounce between
	minBound = objectSize
	maxBound = 1 - objectSize
)

// object is a simulated moving object
type object struct {
	x, y   float64
	vx, vy float64
	class  int
}

// Scene generates noisy detections of objects bouncing around the frame
type Scene struct {
	cfg        config.SceneConfig
	numClasses int
	rnd        *rand.Rand
	objects    []object
}

// NewScene creates a scene of cfg.Objects objects spread over numClasses
// classes.  The first object is class 0 and the last is the final class,
// the remainder alternate over the classes in between
func NewScene(cfg config.SceneConfig, numClasses int) *Scene {

	s := &Scene{
		cfg:        cfg,
		numClasses: numClasses,
		rnd:        rand.New(rand.NewSource(cfg.Seed)),
	}

	for i := 0; i < cfg.Objects; i++ {

		angle := s.rnd.Float64() * 2 * math.Pi
		speed := cfg.Speed * (0.5 + s.rnd.Float64())

		s.objects = append(s.objects, object{
			x:     minBound + s.rnd.Float64()*(maxBound-minBound),
			y:     minBound + s.rnd.Float64()*(maxBound-minBound),
			vx:    math.Cos(angle) * speed,
			vy:    math.Sin(angle) * speed,
			class: s.classOf(i),
		})
	}

	return s
}

// classOf returns the class of the object at index i
func (s *Scene) classOf(i int) int {

	switch {
	case s.numClasses <= 1 || i == 0:
		return 0
	case i == s.cfg.Objects-1:
		return s.numClasses - 1
	case s.numClasses <= 2:
		return 1
	}

	return 1 + (i-1)%(s.numClasses-2)
}

// Step advances the objects by dt seconds and returns the detections seen in
// the frame
func (s *Scene) Step(dt float64) []postprocess.DetectResult {

	dets := make([]postprocess.DetectResult, 0, len(s.objects))

	for i := range s.objects {

		o := &s.objects[i]
		o.x, o.vx = bounce(o.x+o.vx*dt, o.vx)
		o.y, o.vy = bounce(o.y+o.vy*dt, o.vy)

		if s.rnd.Float64() < s.cfg.DropRate {
			continue
		}

		class := o.class

		if s.numClasses > 1 && s.rnd.Float64() < s.cfg.FlipRate {
			class = (class + 1 + s.rnd.Intn(s.numClasses-1)) % s.numClasses
		}

		dets = append(dets, postprocess.DetectResult{
			Class: class,
			Box: postprocess.Box{
				X: o.x + s.rnd.NormFloat64()*s.cfg.Jitter,
				Y: o.y + s.rnd.NormFloat64()*s.cfg.Jitter,
				W: objectSize,
				H: objectSize,
			},
			Probability: 0.5 + 0.5*s.rnd.Float64(),
		})
	}

	return dets
}

// bounce reflects a position and velocity off the scene bounds
func bounce(pos, vel float64) (float64, float64) {

	if pos < minBound {
		return 2*minBound - pos, -vel
	}

	if pos > maxBound {
		return 2*maxBound - pos, -vel
	}

	return pos, vel
}
