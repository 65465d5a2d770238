// Package pipeline ties configuration, model loading, image loading,
// detection and formatting into the one-shot flow shared by every binary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/config"
	"github.com/ironsheep/layout-detect/internal/imaging"
	"github.com/ironsheep/layout-detect/internal/layout"
	"github.com/ironsheep/layout-detect/internal/ocr"
)

// Stage sentinels. Every error returned by a Pipeline matches exactly one
// of them with errors.Is.
var (
	ErrModelLoad = errors.New("model load failed")
	ErrImageLoad = errors.New("image load failed")
	ErrDetect    = errors.New("detection failed")
)

// stageMessages are the error strings printed in the JSON error payload.
var stageMessages = map[error]string{
	ErrModelLoad: "Failed to load model",
	ErrImageLoad: "Failed to load image",
	ErrDetect:    "Detection failed",
}

// StageError records which stage failed and why.
type StageError struct {
	Stage error
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage.Error() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() []error {
	return []error{e.Stage, e.Err}
}

func stageErr(stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Payload converts err to the JSON error object. Errors outside the known
// stages are reported as detection failures.
func Payload(err error) layout.ErrorPayload {
	var se *StageError
	if errors.As(err, &se) {
		return layout.ErrorPayload{Error: stageMessages[se.Stage], Details: se.Err.Error()}
	}
	return layout.ErrorPayload{Error: stageMessages[ErrDetect], Details: err.Error()}
}

// Pipeline owns a loaded model and, when enabled, an OCR recognizer.
type Pipeline struct {
	cfg    *config.Config
	model  *layout.Model
	rec    ocr.TextRecognizer
	closer func() error
	logger logrus.FieldLogger
}

// New builds the configured backend and loads the model. Failures match
// ErrModelLoad.
func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Pipeline, error) {
	backend, err := layout.NewBackend(cfg.Model, logger)
	if err != nil {
		return nil, stageErr(ErrModelLoad, err)
	}
	return NewWithBackend(ctx, cfg, backend, logger)
}

// NewWithBackend is New with an explicit backend.
func NewWithBackend(ctx context.Context, cfg *config.Config, backend layout.Backend, logger logrus.FieldLogger) (*Pipeline, error) {
	model, err := layout.NewModel(ctx, cfg.Model, backend, logger)
	if err != nil {
		return nil, stageErr(ErrModelLoad, err)
	}

	p := &Pipeline{cfg: cfg, model: model, logger: logger, closer: func() error { return nil }}

	if cfg.OCR.Enabled {
		rec, err := ocr.NewRecognizer(cfg.OCR.Language)
		if err != nil {
			model.Close()
			return nil, stageErr(ErrModelLoad, fmt.Errorf("ocr: %w", err))
		}
		p.rec = rec
		p.closer = rec.Close
	}
	return p, nil
}

// Model returns the loaded model.
func (p *Pipeline) Model() *layout.Model {
	return p.model
}

// LoadImage reads path, rendering PDFs at the configured page and DPI.
// Failures match ErrImageLoad.
func (p *Pipeline) LoadImage(path string) (image.Image, error) {
	img, err := imaging.LoadDocument(path, p.cfg.Input.PDFPage, p.cfg.Input.PDFDPI)
	if err != nil {
		return nil, stageErr(ErrImageLoad, err)
	}
	return img, nil
}

// Process detects the layout of img and formats it. With OCR enabled,
// text-like detections carry their recognised text. Failures match ErrDetect.
func (p *Pipeline) Process(ctx context.Context, img image.Image) ([]layout.Detection, layout.Layout, error) {
	l, err := p.model.Detect(ctx, img)
	if err != nil {
		return nil, nil, stageErr(ErrDetect, err)
	}

	dets := layout.FormatLayout(l)
	if p.rec != nil {
		n := ocr.Annotate(p.rec, img, l, dets, p.logger)
		p.logger.WithField("blocks", n).Debug("OCR finished")
	}
	return dets, l, nil
}

// Close releases the model and the recognizer.
func (p *Pipeline) Close() error {
	return errors.Join(p.model.Close(), p.closer())
}
