package attendance

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const boxThickness = 2

var (
	knownColor    = color.RGBA{R: 0, G: 102, B: 255, A: 255}
	strangerColor = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	labelText     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func cloneFrame(frame image.Image) *image.RGBA {
	bounds := frame.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, frame, bounds.Min, draw.Src)
	return dst
}

func drawKnown(dst *image.RGBA, region image.Rectangle, label string) {
	drawBox(dst, region, knownColor)
	drawLabel(dst, region.Min.X, region.Min.Y, label, knownColor)
}

func drawStranger(dst *image.RGBA, region image.Rectangle, label string) {
	drawBox(dst, region, strangerColor)
	drawLabel(dst, region.Min.X, region.Min.Y, label, strangerColor)
	drawLabel(dst, region.Min.X, region.Max.Y+labelHeight, "! STRANGER", strangerColor)
}

func drawBox(dst *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setClamped(dst, x, r.Min.Y+t, col)
			setClamped(dst, x, r.Max.Y-1-t, col)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setClamped(dst, r.Min.X+t, y, col)
			setClamped(dst, r.Max.X-1-t, y, col)
		}
	}
}

const labelHeight = 14

// drawLabel paints the text on a filled background just above (x, y) for
// readability over the video frame.
func drawLabel(dst *image.RGBA, x, y int, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 6

	bgRect := image.Rect(x, y-labelHeight, x+width, y).Intersect(dst.Bounds())
	if bgRect.Empty() {
		return
	}
	draw.Draw(dst, bgRect, &image.Uniform{C: bg}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: labelText},
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x + 3),
			Y: fixed.I(y - 3),
		},
	}
	drawer.DrawString(text)
}

func setClamped(dst *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetRGBA(x, y, col)
	}
}
