package render

import (
	"image"
	"image/color"

	"github.com/swdee/go-tracklet/tracker"
	"gocv.io/x/gocv"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the
	// same color as that of the tracklet marker.  If set to false then use
	// the color specified at LineColor
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame defines if the color of the head circle should be the
	// same color as that of the tracklet marker.  If set to false then use
	// the color specified at CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      false,
		LineColor:     Yellow,
		LineThickness: 1,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  3,
	}
}

// Trail draws the position history of each tracklet on the image.  Trail
// points are in normalized coordinates and scaled to the image size
func Trail(img *gocv.Mat, outs []tracker.Output, trail *tracker.Trail,
	style TrailStyle) {

	width, height := img.Cols(), img.Rows()

	for _, out := range outs {

		objClr := TrackColor(out.TrackID)

		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		pts := trailPixels(trail.GetPoints(out.TrackID), width, height)

		if len(pts) < 2 {
			continue
		}

		for i := 1; i < len(pts); i++ {
			gocv.Line(img, pts[i-1], pts[i], lineClr, style.LineThickness)
		}

		// head of the trail at the current position
		gocv.Circle(img, pts[len(pts)-1], style.CircleRadius, circleClr, -1)
	}
}

// trailPixels converts trail points to pixel coordinates
func trailPixels(points []tracker.Point, width, height int) []image.Point {

	pts := make([]image.Point, len(points))

	for i, p := range points {
		pts[i] = pixelPoint(p.X, p.Y, width, height)
	}

	return pts
}
