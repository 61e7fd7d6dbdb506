// Package render draws the analysis artifacts: the rule-of-thirds grid, the
// annotated subject box and the palette swatch.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/shot-analyzer/pkg/types"
)

// Swatch proportions
const (
	SwatchWidth  = 500
	SwatchHeight = 100
)

var (
	GridColor  = color.NRGBA{0, 255, 0, 255}
	BoxColor   = color.NRGBA{0, 0, 255, 255}
	GridStroke = 2
	BoxStroke  = 3
)

// GridOverlay returns a copy of img with rule-of-thirds lines drawn on it
func GridOverlay(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	w := dst.Bounds().Dx()
	h := dst.Bounds().Dy()

	for s := 0; s < GridStroke; s++ {
		drawHLine(dst, h/3+s, 0, w, GridColor)
		drawHLine(dst, 2*h/3+s, 0, w, GridColor)
		drawVLine(dst, w/3+s, 0, h, GridColor)
		drawVLine(dst, 2*w/3+s, 0, h, GridColor)
	}
	return dst
}

// Annotate returns a copy of img with the subject box and its confidence drawn.
// The label sits just above the top-left corner of the box.
func Annotate(img image.Image, box types.BoundingBox, confidence float64) *image.NRGBA {
	dst := imaging.Clone(img)
	DrawBox(dst, box, BoxColor, BoxStroke)

	face := basicfont.Face7x13
	y := box.Y1 - 10
	if y < face.Ascent {
		y = face.Ascent
	}
	DrawLabel(dst, fmt.Sprintf("%.2f", confidence), box.X1, y, BoxColor)
	return dst
}

// Swatch paints the palette as equal-width vertical bands on a 500x100 canvas.
// Band width is 500/n; leftover columns stay black.
func Swatch(palette types.Palette) *image.NRGBA {
	dst := imaging.New(SwatchWidth, SwatchHeight, color.NRGBA{0, 0, 0, 255})
	if len(palette) == 0 {
		return dst
	}

	band := SwatchWidth / len(palette)
	for i, c := range palette {
		fill := color.NRGBA{c.R, c.G, c.B, 255}
		for y := 0; y < SwatchHeight; y++ {
			drawHLine(dst, y, i*band, (i+1)*band, fill)
		}
	}
	return dst
}

// DrawBox strokes the rectangle edges inward from the box bounds
func DrawBox(img *image.NRGBA, box types.BoundingBox, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := box.X1, box.Y1, box.X2+1, box.Y2+1
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

// DrawLabel writes text with its baseline at (x, y)
func DrawLabel(img *image.NRGBA, text string, x, y int, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
