package detection

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// minComponentPixels discards specks such as dust and stray dots.
const minComponentPixels = 10

// findContours finds connected components in a binary mask.
//
// Uses flood-fill to group connected pixels. Connectivity is 8-connected
// (includes diagonals). Components smaller than minComponentPixels are
// discarded as noise.
func findContours(mask [][]bool, width, height int) [][]Point {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]Point, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y][x] && !visited[y][x] {
				contour := make([]Point, 0)
				floodFill(mask, visited, x, y, width, height, &contour)
				if len(contour) >= minComponentPixels {
					contours = append(contours, contour)
				}
			}
		}
	}

	return contours
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large components. Marks visited pixels and appends them to the contour.
func floodFill(mask, visited [][]bool, startX, startY, width, height int, contour *[]Point) {
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !mask[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		*contour = append(*contour, p)

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// contourBounds returns the bounding box of a component with an exclusive
// bottom-right corner.
func contourBounds(contour []Point) Bounds {
	b := Bounds{X1: contour[0].X, Y1: contour[0].Y, X2: contour[0].X + 1, Y2: contour[0].Y + 1}
	for _, p := range contour[1:] {
		b.X1 = minInt(b.X1, p.X)
		b.Y1 = minInt(b.Y1, p.Y)
		b.X2 = maxInt(b.X2, p.X+1)
		b.Y2 = maxInt(b.Y2, p.Y+1)
	}
	return b
}
