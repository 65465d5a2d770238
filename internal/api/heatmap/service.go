package heatmap

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/imaging"
	"github.com/ironsheep/layout-detect/internal/layout"
)

// Detector is satisfied by *pipeline.Pipeline.
type Detector interface {
	Process(ctx context.Context, img image.Image) ([]layout.Detection, layout.Layout, error)
}

// Fetcher is satisfied by *Downloader.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type IHeatmapService interface {
	Process(ctx context.Context, screenshotURL string) (*ProcessResponse, error)
}

type heatmapService struct {
	detector  Detector
	fetcher   Fetcher
	staticDir string
	opts      imaging.HeatmapOptions
	log       logrus.FieldLogger
}

func NewHeatmapService(detector Detector, fetcher Fetcher, staticDir string, log logrus.FieldLogger) IHeatmapService {
	return &heatmapService{
		detector:  detector,
		fetcher:   fetcher,
		staticDir: staticDir,
		opts:      imaging.DefaultHeatmapOptions(),
		log:       log,
	}
}

// Process downloads the screenshot, detects its layout and saves a heatmap
// of the detections under the static directory.
func (s *heatmapService) Process(ctx context.Context, screenshotURL string) (*ProcessResponse, error) {
	data, err := s.fetcher.Fetch(ctx, screenshotURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	dets, _, err := s.detector.Process(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}

	heat := imaging.RenderHeatmap(img, layout.DetectionRects(dets), s.opts)

	filename := uuid.NewString() + ".png"
	if err := imaging.SavePNG(heat, filepath.Join(s.staticDir, filename)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveHeatmap, err)
	}

	s.log.WithFields(logrus.Fields{
		"url":        screenshotURL,
		"detections": len(dets),
		"file":       filename,
	}).Info("heatmap rendered")

	return &ProcessResponse{
		HeatmapURL: "/static/" + filename,
		Detections: dets,
	}, nil
}
