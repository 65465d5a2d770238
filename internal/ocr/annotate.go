package ocr

import (
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/layout"
)

// TextRecognizer is satisfied by *Recognizer.
type TextRecognizer interface {
	Recognize(img image.Image, rect image.Rectangle) (string, error)
}

// TextLabels are the block types that carry readable text.
var TextLabels = []string{"text", "title", "list"}

// Annotate fills dets[i].Text for every text-like block of l. dets must be
// FormatLayout(l). It returns the number of blocks recognised.
func Annotate(rec TextRecognizer, img image.Image, l layout.Layout, dets []layout.Detection, logger logrus.FieldLogger) int {
	recognised := 0
	for i, b := range l {
		if i >= len(dets) || !isTextLabel(b.Type) {
			continue
		}

		text, err := rec.Recognize(img, b.Rect())
		if err != nil {
			logger.WithFields(logrus.Fields{
				"block": i,
				"label": b.Type,
				"error": err,
			}).Warn("OCR failed for block")
			continue
		}
		dets[i].Text = text
		recognised++
	}
	return recognised
}

func isTextLabel(label string) bool {
	for _, l := range TextLabels {
		if l == label {
			return true
		}
	}
	return false
}
