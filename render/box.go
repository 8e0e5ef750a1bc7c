package render

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/swdee/go-tracklet/pool"
	"github.com/swdee/go-tracklet/postprocess"
	"github.com/swdee/go-tracklet/tracker"
	"gocv.io/x/gocv"
)

// BoxVisual is a bounding box overlay that can be bound to a slot of the
// visual pool
type BoxVisual struct {
	boxes  *BoxPool
	index  int
	clr    color.RGBA
	anchor postprocess.Box
	label  string
	active bool
}

// SetAnchor moves the box, the anchor is in normalized image coordinates
func (v *BoxVisual) SetAnchor(box postprocess.Box) {
	v.anchor = box
}

// SetLabel sets the text rendered above the box
func (v *BoxVisual) SetLabel(label string) {
	v.label = label
}

// SetActive shows or hides the box
func (v *BoxVisual) SetActive(active bool) {
	v.active = active
}

// Clone returns a new box registered with the same BoxPool using the next
// palette color
func (v *BoxVisual) Clone() pool.VisualHandle {
	return v.boxes.add()
}

// Active returns if the box is shown
func (v *BoxVisual) Active() bool {
	return v.active
}

// Color returns the color the box is drawn in
func (v *BoxVisual) Color() color.RGBA {
	return v.clr
}

// Rect returns the pixel rectangle of the box on an image of the given size
func (v *BoxVisual) Rect(width, height int) image.Rectangle {
	return pixelRect(v.anchor, width, height)
}

// BoxPool holds every BoxVisual created from its template so they can be
// drawn together
type BoxPool struct {
	visuals       []*BoxVisual
	font          Font
	lineThickness int
}

// NewBoxPool returns a BoxPool drawing boxes with the given font and line
// thickness
func NewBoxPool(font Font, lineThickness int) *BoxPool {
	return &BoxPool{
		font:          font,
		lineThickness: lineThickness,
	}
}

// Template returns the first visual of the pool, creating it when needed.
// Pass it to pool.NewReconciler which clones it for the remaining slots
func (b *BoxPool) Template() *BoxVisual {
	if len(b.visuals) == 0 {
		return b.add()
	}
	return b.visuals[0]
}

// Visuals returns the visuals created so far in slot order
func (b *BoxPool) Visuals() []*BoxVisual {
	return b.visuals
}

func (b *BoxPool) add() *BoxVisual {

	v := &BoxVisual{
		boxes: b,
		index: len(b.visuals),
		clr:   SlotColor(len(b.visuals)),
	}

	b.visuals = append(b.visuals, v)
	return v
}

// Draw renders every active box and its label onto the image
func (b *BoxPool) Draw(img *gocv.Mat) {

	width, height := img.Cols(), img.Rows()
	labels := make([]boxLabel, 0, len(b.visuals))

	for _, v := range b.visuals {

		if !v.active {
			continue
		}

		rect := v.Rect(width, height)
		gocv.Rectangle(img, rect, v.clr, b.lineThickness)

		if v.label != "" {
			labels = append(labels, b.font.placeLabel(rect, v.label, v.clr, b.lineThickness))
		}
	}

	b.font.drawLabels(img, labels)
}

// TrackerMarkers renders a marker at the position of each tracklet with a
// label of its class name and track ID.  Tracked tracklets are drawn filled
// and untracked ones as an outline
func TrackerMarkers(img *gocv.Mat, outs []tracker.Output, classNames []string,
	font Font, radius int) {

	width, height := img.Cols(), img.Rows()
	labels := make([]boxLabel, 0, len(outs))

	for _, out := range outs {

		clr := TrackColor(out.TrackID)
		pt := pixelPoint(out.Position.X, out.Position.Y, width, height)

		thickness := -1

		if out.State != tracker.Tracked {
			thickness = 1
		}

		gocv.Circle(img, pt, radius, clr, thickness)

		rect := image.Rect(pt.X-radius, pt.Y-radius, pt.X+radius, pt.Y+radius)
		text := fmt.Sprintf("%s %d", className(classNames, out.Class), out.TrackID)
		labels = append(labels, font.placeLabel(rect, text, clr, 1))
	}

	font.drawLabels(img, labels)
}

// className returns the name of a class or its number when no name is known
func className(classNames []string, class int) string {
	if class >= 0 && class < len(classNames) {
		return classNames[class]
	}
	return strconv.Itoa(class)
}

// pixelRect converts a normalized box to a pixel rectangle
func pixelRect(box postprocess.Box, width, height int) image.Rectangle {
	return image.Rect(
		int(box.Left()*float64(width)),
		int(box.Top()*float64(height)),
		int(box.Right()*float64(width)),
		int(box.Bottom()*float64(height)),
	)
}

// pixelPoint converts normalized coordinates to a pixel point
func pixelPoint(x, y float64, width, height int) image.Point {
	return image.Pt(int(x*float64(width)), int(y*float64(height)))
}
