package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestGradientAt(t *testing.T) {
	tests := []struct {
		name      string
		t         float64
		wantG     float64
		wantAlpha float64
	}{
		{"centre", 0, 0, 0.8},
		{"middle", 0.5, 165.0 / 255, 0.5},
		{"edge", 1, 1, 0},
		{"past edge", 1.5, 1, 0},
		{"quarter", 0.25, 165.0 / 255 / 2, 0.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, a := gradientAt(tt.t)
			if math.Abs(c.R-1) > 1e-9 {
				t.Errorf("red channel: got %v, want 1", c.R)
			}
			if math.Abs(c.G-tt.wantG) > 1e-6 {
				t.Errorf("green channel: got %v, want %v", c.G, tt.wantG)
			}
			if math.Abs(a-tt.wantAlpha) > 1e-9 {
				t.Errorf("alpha: got %v, want %v", a, tt.wantAlpha)
			}
		})
	}
}

func TestRenderHeatmap_NoRegions(t *testing.T) {
	img := newSolidImage(40, 30, color.White)

	out := RenderHeatmap(img, nil, DefaultHeatmapOptions())
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 30 {
		t.Fatalf("dimensions: got %dx%d, want 40x30", out.Bounds().Dx(), out.Bounds().Dy())
	}

	for _, p := range []image.Point{{0, 0}, {20, 15}, {39, 29}} {
		c := out.NRGBAAt(p.X, p.Y)
		if c.R != 255 || c.G != 255 || c.B != 255 {
			t.Errorf("pixel %v changed without regions: %v", p, c)
		}
	}
}

func TestRenderHeatmap_HotCentre(t *testing.T) {
	img := newSolidImage(100, 100, color.White)
	regions := []image.Rectangle{image.Rect(40, 40, 60, 60)}

	out := RenderHeatmap(img, regions, DefaultHeatmapOptions())

	centre := out.NRGBAAt(50, 50)
	if centre.R < 250 {
		t.Errorf("centre should stay fully red, got R=%d", centre.R)
	}
	if centre.G >= 200 || centre.B >= 200 {
		t.Errorf("centre should be tinted towards red, got %v", centre)
	}
	if centre.G <= centre.B {
		t.Logf("centre colour %v", centre)
	}

	corner := out.NRGBAAt(0, 0)
	if corner.R != 255 || corner.G != 255 || corner.B != 255 {
		t.Errorf("corner outside the gradient radius changed: %v", corner)
	}
}

func TestRenderHeatmap_OverlapIsHotter(t *testing.T) {
	img := newSolidImage(100, 100, color.White)
	one := RenderHeatmap(img, []image.Rectangle{image.Rect(40, 40, 60, 60)}, DefaultHeatmapOptions())
	two := RenderHeatmap(img, []image.Rectangle{
		image.Rect(40, 40, 60, 60),
		image.Rect(40, 40, 60, 60),
	}, DefaultHeatmapOptions())

	// Blue drops as more red/orange accumulates
	if two.NRGBAAt(50, 50).B > one.NRGBAAt(50, 50).B {
		t.Errorf("overlapping regions should not be cooler: one=%v two=%v",
			one.NRGBAAt(50, 50), two.NRGBAAt(50, 50))
	}
}

func TestRenderHeatmap_SkipsEmptyRegions(t *testing.T) {
	img := newSolidImage(20, 20, color.White)
	out := RenderHeatmap(img, []image.Rectangle{image.Rect(5, 5, 5, 5)}, DefaultHeatmapOptions())

	c := out.NRGBAAt(5, 5)
	if c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("empty region should not paint: %v", c)
	}
}

func TestBlendOver(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	c, a := gradientAt(0)

	blendOver(dst, 0, 0, c, a)
	got := dst.NRGBAAt(0, 0)
	if got.R != 255 || got.G != 0 || got.B != 0 {
		t.Errorf("colour over transparent: got %v, want pure red", got)
	}
	if got.A != 204 {
		t.Errorf("alpha over transparent: got %d, want 204", got.A)
	}

	// Zero alpha leaves the pixel untouched
	blendOver(dst, 0, 0, c, 0)
	if dst.NRGBAAt(0, 0) != got {
		t.Error("zero alpha should not change the pixel")
	}
}
