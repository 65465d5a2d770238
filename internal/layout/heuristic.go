package layout

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/detection"
)

// HeuristicBackend segments pages without a trained model. Its class
// indices follow PubLayNet, so the default label map applies unchanged.
type HeuristicBackend struct {
	opts   detection.Options
	logger logrus.FieldLogger
}

// NewHeuristicBackend returns a backend using detection.DefaultOptions.
func NewHeuristicBackend(logger logrus.FieldLogger) *HeuristicBackend {
	return &HeuristicBackend{
		opts:   detection.DefaultOptions(),
		logger: logger,
	}
}

func (h *HeuristicBackend) Name() string { return "heuristic" }

// Load always succeeds; there are no weights to fetch.
func (h *HeuristicBackend) Load(ctx context.Context) error {
	return ctx.Err()
}

func (h *HeuristicBackend) Infer(ctx context.Context, img image.Image) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blocks, err := detection.Segment(img, h.opts)
	if err != nil {
		return nil, err
	}
	h.logger.WithField("blocks", len(blocks)).Debug("segmented page")

	preds := make([]Prediction, 0, len(blocks))
	for _, b := range blocks {
		preds = append(preds, Prediction{
			Box:   [4]float64{float64(b.Bounds.X1), float64(b.Bounds.Y1), float64(b.Bounds.X2), float64(b.Bounds.Y2)},
			Score: b.Confidence,
			Class: int(b.Kind),
		})
	}
	return preds, nil
}

func (h *HeuristicBackend) Close() error { return nil }
