package layout

import (
	"image"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Detection is the output form of one block.
type Detection struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Label  string `json:"label"`

	// Text holds recognised text when OCR is enabled.
	Text string `json:"text,omitempty"`
}

// ErrorPayload is printed instead of detections when a run fails.
type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// FormatLayout converts blocks to detections. Coordinates are truncated
// toward zero; width and height are computed before truncation.
//
// The result is never nil so an empty layout serialises as [].
func FormatLayout(l Layout) []Detection {
	out := make([]Detection, 0, len(l))
	for _, b := range l {
		out = append(out, Detection{
			X:      int(b.X1),
			Y:      int(b.Y1),
			Width:  int(b.X2 - b.X1),
			Height: int(b.Y2 - b.Y1),
			Label:  b.Type,
		})
	}
	return out
}

// DetectionRects converts detections to rectangles. Heatmaps are painted
// from these so they match the reported integer boxes exactly.
func DetectionRects(dets []Detection) []image.Rectangle {
	rects := make([]image.Rectangle, 0, len(dets))
	for _, d := range dets {
		rects = append(rects, image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height))
	}
	return rects
}

// WriteJSON writes v to w as one line of JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}
