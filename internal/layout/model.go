package layout

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/config"
)

// ErrNilImage is returned by Detect when called without an image.
var ErrNilImage = errors.New("nil image")

// Model is a loaded backend plus the label map and score threshold applied
// to its predictions. Detect calls are serialised.
type Model struct {
	backend   Backend
	labels    LabelMap
	threshold float64
	timeout   time.Duration
	logger    logrus.FieldLogger

	mu sync.Mutex
}

// NewModel loads backend and returns a ready model. The backend is closed
// if loading fails.
func NewModel(ctx context.Context, cfg config.ModelConfig, backend Backend, logger logrus.FieldLogger) (*Model, error) {
	labels := LabelMap(cfg.LabelMap).Clone()
	if len(labels) == 0 {
		labels = PubLayNetLabels()
	}

	m := &Model{
		backend:   backend,
		labels:    labels,
		threshold: cfg.ScoreThreshold,
		timeout:   cfg.Timeout,
		logger:    logger,
	}

	loadCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := backend.Load(loadCtx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to load %s backend: %w", backend.Name(), err)
	}
	logger.WithFields(logrus.Fields{
		"backend":   backend.Name(),
		"threshold": m.threshold,
		"labels":    labels.Names(),
		"elapsed":   time.Since(start).String(),
	}).Info("model loaded")

	return m, nil
}

// Labels returns a copy of the model's label map.
func (m *Model) Labels() LabelMap {
	return m.labels.Clone()
}

// Threshold returns the minimum score kept by Detect.
func (m *Model) Threshold() float64 {
	return m.threshold
}

// Backend returns the name of the underlying backend.
func (m *Model) Backend() string {
	return m.backend.Name()
}

// Detect runs the backend on img and returns the labelled blocks.
//
// Predictions scoring below the threshold or carrying a class absent from
// the label map are dropped. Boxes are clamped to the image bounds and boxes
// left empty by clamping are dropped. Backend order is preserved.
func (m *Model) Detect(ctx context.Context, img image.Image) (Layout, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inferCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	preds, err := m.backend.Infer(inferCtx, img)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	out := make(Layout, 0, len(preds))
	dropped := 0
	for _, p := range preds {
		if math.IsNaN(p.Score) || p.Score < m.threshold {
			dropped++
			continue
		}
		label, ok := m.labels.Lookup(p.Class)
		if !ok {
			m.logger.WithField("class", p.Class).Debug("dropping prediction with unknown class")
			dropped++
			continue
		}
		b, ok := clampBox(p.Box, bounds)
		if !ok {
			dropped++
			continue
		}
		b.Score = p.Score
		b.Type = label
		out = append(out, b)
	}

	m.logger.WithFields(logrus.Fields{
		"predictions": len(preds),
		"kept":        len(out),
		"dropped":     dropped,
	}).Debug("detection finished")
	return out, nil
}

// Close releases the backend.
func (m *Model) Close() error {
	return m.backend.Close()
}

func (m *Model) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}

// clampBox limits box to bounds. It reports false for boxes that are empty
// after clamping or contain non-finite coordinates.
func clampBox(box [4]float64, bounds image.Rectangle) (Block, bool) {
	for _, v := range box {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Block{}, false
		}
	}

	minX, minY := float64(bounds.Min.X), float64(bounds.Min.Y)
	maxX, maxY := float64(bounds.Max.X), float64(bounds.Max.Y)

	b := Block{
		X1: math.Max(minX, math.Min(box[0], maxX)),
		Y1: math.Max(minY, math.Min(box[1], maxY)),
		X2: math.Max(minX, math.Min(box[2], maxX)),
		Y2: math.Max(minY, math.Min(box[3], maxY)),
	}
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return Block{}, false
	}
	return b, true
}
