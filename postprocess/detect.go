package postprocess

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an axis aligned bounding box in center format with all values
// normalized to the [0,1] range of the source frame
type Box struct {
	// X is the center x coordinate
	X float64
	// Y is the center y coordinate
	Y float64
	// W is the box width
	W float64
	// H is the box height
	H float64
}

// NewBox creates a center format Box from top-left and bottom-right corners
func NewBox(left, top, right, bottom float64) Box {
	return Box{
		X: (left + right) / 2,
		Y: (top + bottom) / 2,
		W: right - left,
		H: bottom - top,
	}
}

// Left returns the x coordinate of the left edge
func (b Box) Left() float64 {
	return b.X - b.W/2
}

// Right returns the x coordinate of the right edge
func (b Box) Right() float64 {
	return b.X + b.W/2
}

// Top returns the y coordinate of the top edge
func (b Box) Top() float64 {
	return b.Y - b.H/2
}

// Bottom returns the y coordinate of the bottom edge
func (b Box) Bottom() float64 {
	return b.Y + b.H/2
}

// Area returns the area of the box measured between its edges, degenerate
// boxes have an area of zero
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return (b.Right() - b.Left()) * (b.Bottom() - b.Top())
}

// Center returns the center of the box as a position on the z=0 plane
func (b Box) Center() r3.Vec {
	return r3.Vec{X: b.X, Y: b.Y}
}

// DetectResult defines the attributes of a single object detected
type DetectResult struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// Label is an optional display label for the Class
	Label string
	// Box are the bounding box dimensions of the object location
	Box Box
	// Point is the position of a point detection, only valid when HasPoint
	// is set
	Point r3.Vec
	// HasPoint indicates the detection carries a Point rather than relying
	// on the Box center
	HasPoint bool
	// Probability is the confidence score of the object detected
	Probability float64
	// ID is a unique ID assigned to the detection result
	ID int64
}

// Position returns the point of a point detection, otherwise the center of
// the bounding box
func (d DetectResult) Position() r3.Vec {
	if d.HasPoint {
		return d.Point
	}
	return d.Box.Center()
}
