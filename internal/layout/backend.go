// Package layout runs document layout detection through a pluggable
// inference backend and reshapes the results into labelled blocks.
package layout

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/config"
)

// Backend produces raw predictions for an image.
//
// Load is called once before any Infer. Implementations must be safe for
// sequential reuse; the heatmap service serialises calls per model.
type Backend interface {
	Name() string
	Load(ctx context.Context) error
	Infer(ctx context.Context, img image.Image) ([]Prediction, error)
	Close() error
}

// ErrUnknownBackend is returned by NewBackend for unregistered names.
var ErrUnknownBackend = errors.New("unknown backend")

type backendFactory func(cfg config.ModelConfig, logger logrus.FieldLogger) Backend

var backends = map[string]backendFactory{
	"heuristic": func(cfg config.ModelConfig, logger logrus.FieldLogger) Backend {
		return NewHeuristicBackend(logger)
	},
	"exec": func(cfg config.ModelConfig, logger logrus.FieldLogger) Backend {
		return NewExecBackend(cfg, logger)
	},
	"http": func(cfg config.ModelConfig, logger logrus.FieldLogger) Backend {
		return NewHTTPBackend(cfg, logger)
	},
}

// NewBackend builds the backend named by cfg.Backend.
func NewBackend(cfg config.ModelConfig, logger logrus.FieldLogger) (Backend, error) {
	factory, ok := backends[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownBackend, cfg.Backend, BackendNames())
	}
	return factory(cfg, logger.WithField("backend", cfg.Backend)), nil
}

// BackendNames lists the registered backends.
func BackendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
