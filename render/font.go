package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
		Alignment: Left,
	}
}

// TextSize returns the pixel size of text rendered in this font
func (f Font) TextSize(text string) image.Point {
	return gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)
}

// boxLabel defines where a label is rendered on the image
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// placeLabel calculates the label background and text position above rect
// according to the font alignment
func (f Font) placeLabel(rect image.Rectangle, text string, clr color.RGBA,
	lineThickness int) boxLabel {

	textSize := f.TextSize(text)

	var centerX int

	switch f.Alignment {
	case Center:
		centerX = (rect.Min.X + rect.Max.X) / 2

	case Right:
		centerX = rect.Max.X - (textSize.X / 2) - f.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = rect.Min.X + (textSize.X / 2) + f.LeftPad - (lineThickness / 2)
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-f.LeftPad,
			rect.Min.Y-textSize.Y-f.TopPad-f.BottomPad,
			centerX+textSize.X/2+f.RightPad, rect.Min.Y),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, rect.Min.Y-f.BottomPad),
	}
}

// drawLabels renders labels as the top most layer of the image
func (f Font) drawLabels(img *gocv.Mat, labels []boxLabel) {
	for _, l := range labels {
		gocv.Rectangle(img, l.rect, l.clr, -1)
		gocv.PutTextWithParams(img, l.text, l.textPos, f.Face, f.Scale,
			f.Color, f.Thickness, f.LineType, false)
	}
}
