package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// HeatmapOptions tunes RenderHeatmap. The zero value is not useful; start
// from DefaultHeatmapOptions.
type HeatmapOptions struct {
	// RadiusScale multiplies max(width, height) of a region to get the
	// gradient radius.
	RadiusScale float64

	// Opacity of the heat layer when composited over the source.
	Opacity float64

	// BlurRadius softens the heat layer. Zero disables blurring.
	BlurRadius float64
}

// DefaultHeatmapOptions returns the settings used by the heatmap service.
func DefaultHeatmapOptions() HeatmapOptions {
	return HeatmapOptions{
		RadiusScale: 0.75,
		Opacity:     0.6,
		BlurRadius:  1.5,
	}
}

// gradientStop is a colour at an offset along the gradient radius.
type gradientStop struct {
	offset float64
	color  colorful.Color
	alpha  float64
}

var heatStops = []gradientStop{
	{offset: 0, color: colorful.Color{R: 1, G: 0, B: 0}, alpha: 0.8},         // red centre
	{offset: 0.5, color: colorful.Color{R: 1, G: 165.0 / 255, B: 0}, alpha: 0.5}, // orange middle
	{offset: 1, color: colorful.Color{R: 1, G: 1, B: 0}, alpha: 0},           // transparent yellow edge
}

// gradientAt returns the colour and alpha of the heat gradient at t in [0, 1].
func gradientAt(t float64) (colorful.Color, float64) {
	if t <= heatStops[0].offset {
		return heatStops[0].color, heatStops[0].alpha
	}
	for i := 1; i < len(heatStops); i++ {
		lo, hi := heatStops[i-1], heatStops[i]
		if t <= hi.offset {
			f := (t - lo.offset) / (hi.offset - lo.offset)
			return lo.color.BlendRgb(hi.color, f), lo.alpha + (hi.alpha-lo.alpha)*f
		}
	}
	last := heatStops[len(heatStops)-1]
	return last.color, last.alpha
}

// RenderHeatmap draws a radial gradient centred on every region and
// composites the resulting heat layer over img.
//
// Regions are in img's coordinate space. Gradients of overlapping regions
// accumulate with source-over blending, so dense areas read hotter.
func RenderHeatmap(img image.Image, regions []image.Rectangle, opts HeatmapOptions) *image.NRGBA {
	bounds := img.Bounds()
	heat := image.NewNRGBA(bounds)

	for _, r := range regions {
		r = r.Canon()
		if r.Empty() {
			continue
		}
		paintGradient(heat, r, opts.RadiusScale)
	}

	var layer image.Image = heat
	if opts.BlurRadius > 0 {
		layer = blur.Gaussian(heat, opts.BlurRadius)
	}

	base := imaging.Clone(img)
	// bild and imaging both rebase results to a (0,0) origin.
	return imaging.Overlay(base, layer, image.Pt(0, 0), opts.Opacity)
}

// paintGradient blends one radial gradient into heat.
func paintGradient(heat *image.NRGBA, r image.Rectangle, radiusScale float64) {
	cx := float64(r.Min.X) + float64(r.Dx())/2
	cy := float64(r.Min.Y) + float64(r.Dy())/2
	radius := math.Max(float64(r.Dx()), float64(r.Dy())) * radiusScale
	if radius <= 0 {
		return
	}

	area := image.Rect(
		int(math.Floor(cx-radius)), int(math.Floor(cy-radius)),
		int(math.Ceil(cx+radius)), int(math.Ceil(cy+radius)),
	).Intersect(heat.Bounds())

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			t := math.Sqrt(dx*dx+dy*dy) / radius
			if t >= 1 {
				continue
			}
			c, a := gradientAt(t)
			blendOver(heat, x, y, c, a)
		}
	}
}

// blendOver composites colour c with alpha a over the pixel at (x, y).
func blendOver(dst *image.NRGBA, x, y int, c colorful.Color, a float64) {
	if a <= 0 {
		return
	}
	cur := dst.NRGBAAt(x, y)
	da := float64(cur.A) / 255
	outA := a + da*(1-a)
	if outA <= 0 {
		return
	}

	mix := func(src float64, d uint8) uint8 {
		v := (src*a + float64(d)/255*da*(1-a)) / outA
		return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
	}

	dst.SetNRGBA(x, y, color.NRGBA{
		R: mix(c.R, cur.R),
		G: mix(c.G, cur.G),
		B: mix(c.B, cur.B),
		A: uint8(math.Round(outA * 255)),
	})
}
