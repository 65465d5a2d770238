// Package api hosts the heatmap HTTP service.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/layout-detect/internal/api/heatmap"
	"github.com/ironsheep/layout-detect/internal/config"
	"github.com/ironsheep/layout-detect/internal/middleware"
	"github.com/ironsheep/layout-detect/internal/response"
)

// shutdownTimeout bounds the wait for in-flight requests on shutdown.
const shutdownTimeout = 30 * time.Second

type handler interface {
	Start(srv fiber.Router)
}

// Server wires the fiber app, middleware and handlers together.
type Server struct {
	engine   *fiber.App
	cfg      config.ServerConfig
	log      logrus.FieldLogger
	handlers []handler
	backend  string
}

func NewFiber(cfg config.ServerConfig) *fiber.App {
	return fiber.New(
		fiber.Config{
			AppName:               "layout-heatmapd",
			BodyLimit:             cfg.BodyLimit,
			StrictRouting:         true,
			CaseSensitive:         true,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler:          errorHandler,
		})
}

// errorHandler renders errors that escape handlers (404, body limit, ...)
// as {"error": ...}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	var re *response.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &re):
		code = re.Code
	}
	return c.Status(code).JSON(response.Body{Error: err.Error()})
}

// NewServer builds the service around svc. backend is reported by /health.
func NewServer(cfg config.ServerConfig, log logrus.FieldLogger, svc heatmap.IHeatmapService, backend string) *Server {
	s := &Server{
		engine:  NewFiber(cfg),
		cfg:     cfg,
		log:     log,
		backend: backend,
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.handlers = append(s.handlers, heatmap.New(log, validator.New(), svc, limiter.Handler))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.Use(middleware.NewRequestID(), middleware.NewLogger(s.log))

	s.engine.Get("/health", s.health)
	s.engine.Static("/static", s.cfg.StaticDir)

	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	res := heatmap.HealthResponse{Status: "ok", Backend: s.backend}
	if vm, err := mem.VirtualMemoryWithContext(c.UserContext()); err == nil {
		res.MemoryUsedPercent = vm.UsedPercent
	} else {
		s.log.WithError(err).Debug("memory stats unavailable")
	}
	return c.JSON(res)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	g.Go(func() error {
		s.log.WithField("addr", addr).Info("Server listening")
		if err := s.engine.Listen(addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.engine.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}
