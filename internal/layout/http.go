package layout

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/config"
	"github.com/ironsheep/layout-detect/internal/imaging"
)

// maxResponseBytes caps the prediction payload read from the server.
const maxResponseBytes = 8 << 20

// HTTPBackend posts PNG-encoded images to a remote inference server, for
// example a TorchServe handler wrapping the same PubLayNet model.
type HTTPBackend struct {
	endpoint  string
	healthURL string
	client    *http.Client
	logger    logrus.FieldLogger
}

// NewHTTPBackend returns a backend for cfg.Endpoint. Call timeouts come from
// the context passed by Model.
func NewHTTPBackend(cfg config.ModelConfig, logger logrus.FieldLogger) *HTTPBackend {
	return &HTTPBackend{
		endpoint:  cfg.Endpoint,
		healthURL: cfg.HealthURL,
		client:    &http.Client{},
		logger:    logger,
	}
}

func (h *HTTPBackend) Name() string { return "http" }

// Load probes the health URL when one is configured.
func (h *HTTPBackend) Load(ctx context.Context) error {
	if h.healthURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.healthURL, nil)
	if err != nil {
		return fmt.Errorf("invalid health url: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference server unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference server unhealthy: %s", resp.Status)
	}
	h.logger.WithField("url", h.healthURL).Debug("inference server healthy")
	return nil
}

func (h *HTTPBackend) Infer(ctx context.Context, img image.Image) ([]Prediction, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference server returned %s: %s", resp.Status, tail(string(body), maxStderrTail))
	}

	var preds []Prediction
	if err := jsoniter.Unmarshal(body, &preds); err != nil {
		return nil, fmt.Errorf("invalid inference response: %w", err)
	}
	if preds == nil {
		preds = []Prediction{}
	}
	return preds, nil
}

func (h *HTTPBackend) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
