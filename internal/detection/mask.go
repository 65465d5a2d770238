package detection

import "image"

// inkMask marks every pixel whose luminance is below threshold.
//
// The mask is indexed [y][x] relative to the image's top-left corner.
func inkMask(img image.Image, threshold uint8) [][]bool {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	mask := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			mask[y][x] = grayValue(img, x+bounds.Min.X, y+bounds.Min.Y) < threshold
		}
	}
	return mask
}

// grayValue converts a pixel to grayscale using ITU-R BT.601 luminance weights.
// Formula: Y = 0.299*R + 0.587*G + 0.114*B
func grayValue(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8((float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114))
}

// smearHorizontal returns a copy of mask where background runs of at most
// gap pixels lying between two ink pixels on the same row are filled.
func smearHorizontal(mask [][]bool, gap int) [][]bool {
	out := make([][]bool, len(mask))
	for y, row := range mask {
		out[y] = make([]bool, len(row))
		copy(out[y], row)

		last := -1
		for x, ink := range row {
			if !ink {
				continue
			}
			if last >= 0 && x-last > 1 && x-last-1 <= gap {
				for fx := last + 1; fx < x; fx++ {
					out[y][fx] = true
				}
			}
			last = x
		}
	}
	return out
}

// smearVertical is smearHorizontal applied to columns.
func smearVertical(mask [][]bool, gap int) [][]bool {
	height := len(mask)
	out := make([][]bool, height)
	for y := range mask {
		out[y] = make([]bool, len(mask[y]))
		copy(out[y], mask[y])
	}
	if height == 0 {
		return out
	}

	width := len(mask[0])
	for x := 0; x < width; x++ {
		last := -1
		for y := 0; y < height; y++ {
			if !mask[y][x] {
				continue
			}
			if last >= 0 && y-last > 1 && y-last-1 <= gap {
				for fy := last + 1; fy < y; fy++ {
					out[fy][x] = true
				}
			}
			last = y
		}
	}
	return out
}
