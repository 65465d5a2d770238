package layout

import (
	"image"
	"math"
)

// Block is one detected region in image pixel coordinates.
type Block struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Score float64 `json:"score"`
	Type  string  `json:"type"`
}

// Coordinates returns (x1, y1, x2, y2).
func (b Block) Coordinates() (x1, y1, x2, y2 float64) {
	return b.X1, b.Y1, b.X2, b.Y2
}

func (b Block) Width() float64  { return b.X2 - b.X1 }
func (b Block) Height() float64 { return b.Y2 - b.Y1 }

// Rect converts the block to an integer rectangle covering it.
func (b Block) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.X1)), int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)), int(math.Ceil(b.Y2)),
	)
}

// Layout is the ordered result of one detection pass.
type Layout []Block

// OfType returns the blocks whose type is one of types.
func (l Layout) OfType(types ...string) Layout {
	out := make(Layout, 0)
	for _, b := range l {
		for _, t := range types {
			if b.Type == t {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// Prediction is the raw output of a backend before filtering and labelling.
type Prediction struct {
	Box   [4]float64 `json:"box"`
	Score float64    `json:"score"`
	Class int        `json:"class"`
}
