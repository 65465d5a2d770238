package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/api"
	"github.com/ironsheep/layout-detect/internal/api/heatmap"
	"github.com/ironsheep/layout-detect/internal/config"
	"github.com/ironsheep/layout-detect/internal/logging"
	"github.com/ironsheep/layout-detect/internal/pipeline"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("layout-heatmapd %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("layout-heatmapd - layout heatmap HTTP service")
			fmt.Println()
			fmt.Println("Usage: layout-heatmapd")
			fmt.Println()
			fmt.Println("Endpoints:")
			fmt.Println(`  POST /process   {"screenshot_url": "..."} -> {"heatmap_url": "/static/<id>.png", "detections": [...]}`)
			fmt.Println("  GET  /static/*  saved heatmaps")
			fmt.Println("  GET  /health    liveness and backend name")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  PORT=3000                 listen port")
			fmt.Println("  LAYOUT_STATIC_DIR=static  heatmap output directory")
			fmt.Println("  LAYOUT_RATE_LIMIT=2       requests per second per client")
			fmt.Println("  LAYOUT_CONFIG             YAML configuration file")
			fmt.Println("  LAYOUT_LOG_LEVEL=debug    enable debug logging")
			return
		}
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:        cfg.Log.Level,
		DefaultLevel: logrus.InfoLevel,
		File:         cfg.Log.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"version": Version,
		"commit":  GitCommit,
	}).Info("layout-heatmapd starting")

	if err := os.MkdirAll(cfg.Server.StaticDir, 0o755); err != nil {
		logger.Fatalf("Failed to create static dir: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to load model: %v", err)
	}
	defer p.Close()

	svc := heatmap.NewHeatmapService(
		p,
		heatmap.NewDownloader(cfg.Model.Timeout, cfg.Server.DownloadLimit),
		cfg.Server.StaticDir,
		logger,
	)
	server := api.NewServer(cfg.Server, logger, svc, p.Model().Backend())

	if err := server.Run(ctx); err != nil {
		logger.Errorf("Server error: %v", err)
		p.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
