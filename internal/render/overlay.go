package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const ringWidth = 6

var (
	alertRed = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	white    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black    = color.RGBA{A: 255}
)

// ringMask is an alpha mask selecting an annulus around c.
type ringMask struct {
	c     image.Point
	r     float64
	width float64
}

func (m ringMask) ColorModel() color.Model { return color.AlphaModel }

func (m ringMask) Bounds() image.Rectangle {
	outer := int(math.Ceil(m.r + m.width/2))
	return image.Rect(m.c.X-outer, m.c.Y-outer, m.c.X+outer+1, m.c.Y+outer+1)
}

func (m ringMask) At(x, y int) color.Color {
	d := math.Hypot(float64(x-m.c.X), float64(y-m.c.Y))
	if math.Abs(d-m.r) <= m.width/2 {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

// drawShockwave draws the epicentre dot and four fading rings starting at base.
func drawShockwave(dst draw.Image, base int) {
	c := image.Pt((dst.Bounds().Min.X+dst.Bounds().Max.X)/2, (dst.Bounds().Min.Y+dst.Bounds().Max.Y)/2)
	for i := 0; i < 4; i++ {
		m := ringMask{c: c, r: float64(base + 40*i), width: ringWidth}
		alpha := uint8(255 * (0.5 - 0.1*float64(i)))
		src := image.NewUniform(color.NRGBA{R: 255, A: alpha})
		draw.DrawMask(dst, m.Bounds(), src, image.Point{}, m, m.Bounds().Min, draw.Over)
	}
	dot := ringMask{c: c, r: 3, width: 8}
	draw.DrawMask(dst, dot.Bounds(), image.NewUniform(alertRed), image.Point{}, dot, dot.Bounds().Min, draw.Over)
}

func (r *Renderer) drawText(dst draw.Image, req models.RenderRequest) {
	b := dst.Bounds()
	h := b.Dy()
	scale := max(1, h/300)
	local := req.OriginUTC.In(r.config.Local)

	drawLabel(dst, "EARTHQUAKE ALERT!", b.Dx()/2, h*8/100, scale*2, alertRed, white)
	drawLabel(dst, fmt.Sprintf("M%.1f MAGNITUDE", req.Magnitude), b.Dx()/2, h*80/100, scale*2, alertRed, white)
	drawLabel(dst, strings.ToUpper(local.Format("03:04 PM")), b.Dx()/2, h*86/100, scale, white, black)
	drawLabel(dst, local.Format("02/01/2006"), b.Dx()/2, h*91/100, scale, white, black)

	if r.config.Footer != "" {
		bar := image.Rect(b.Min.X, b.Max.Y-h*4/100, b.Max.X, b.Max.Y)
		draw.Draw(dst, bar, image.NewUniform(alertRed), image.Point{}, draw.Src)
		drawLabel(dst, strings.ToUpper(r.config.Footer), b.Dx()/2, b.Max.Y-h*2/100, max(1, scale/2), white, alertRed)
	}
}

// drawLabel renders text centred at (cx, cy), magnified by scale, with a
// one-step outline in stroke.
func drawLabel(dst draw.Image, text string, cx, cy, scale int, fill, stroke color.Color) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	if w == 0 {
		return
	}
	metrics := face.Metrics()
	hgt := (metrics.Ascent + metrics.Descent).Ceil()

	glyphs := func(c color.Color) *image.RGBA {
		img := image.NewRGBA(image.Rect(0, 0, w, hgt))
		d := font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face, Dot: fixed.P(0, metrics.Ascent.Ceil())}
		d.DrawString(text)
		return img
	}

	sw, sh := w*scale, hgt*scale
	origin := image.Pt(cx-sw/2, cy-sh/2)
	outline := glyphs(stroke)
	for _, off := range []image.Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		at := origin.Add(off.Mul(max(1, scale/2)))
		draw.NearestNeighbor.Scale(dst, image.Rectangle{Min: at, Max: at.Add(image.Pt(sw, sh))}, outline, outline.Bounds(), draw.Over, nil)
	}
	draw.NearestNeighbor.Scale(dst, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(sw, sh))}, glyphs(fill), image.Rect(0, 0, w, hgt), draw.Over, nil)
}
