package detection

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// (X1, Y1) is the inclusive top-left corner, (X2, Y2) the exclusive
// bottom-right corner.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width is X2 - X1.
func (b Bounds) Width() int { return b.X2 - b.X1 }

// Height is Y2 - Y1.
func (b Bounds) Height() int { return b.Y2 - b.Y1 }

// Area is Width × Height.
func (b Bounds) Area() int { return b.Width() * b.Height() }

// regionsOverlap checks if two bounds overlap
func regionsOverlap(a, b Bounds) bool {
	return a.X1 < b.X2 && a.X2 > b.X1 && a.Y1 < b.Y2 && a.Y2 > b.Y1
}

// contains reports whether inner lies entirely within outer.
func contains(outer, inner Bounds) bool {
	return inner.X1 >= outer.X1 && inner.Y1 >= outer.Y1 &&
		inner.X2 <= outer.X2 && inner.Y2 <= outer.Y2
}

// mergeBounds combines two bounds into their union
func mergeBounds(a, b Bounds) Bounds {
	return Bounds{
		X1: minInt(a.X1, b.X1),
		Y1: minInt(a.Y1, b.Y1),
		X2: maxInt(a.X2, b.X2),
		Y2: maxInt(a.Y2, b.Y2),
	}
}

// scaleBounds multiplies every coordinate by f, rounding outward so the
// scaled box still covers the original region.
func scaleBounds(b Bounds, f float64) Bounds {
	return Bounds{
		X1: int(float64(b.X1) * f),
		Y1: int(float64(b.Y1) * f),
		X2: int(float64(b.X2)*f + 0.999),
		Y2: int(float64(b.Y2)*f + 0.999),
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
