package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/config"
	"github.com/ironsheep/layout-detect/internal/logging"
	"github.com/ironsheep/layout-detect/internal/pipeline"
	"github.com/ironsheep/layout-detect/internal/server"
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
			fmt.Printf("layout-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("layout-mcp - MCP server for document layout detection")
			fmt.Println()
			fmt.Println("Usage: layout-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  LAYOUT_CONFIG             YAML configuration file")
			fmt.Println("  LAYOUT_BACKEND=heuristic  heuristic, exec or http")
			fmt.Println("  LAYOUT_LOG_LEVEL=debug    enable debug logging")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the MCP stream
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
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("Layout MCP server starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to load model: %v", err)
	}

	srv := server.New(p, p.Model().Backend(), cfg.Input, Version, logger)
	runErr := srv.Run(ctx, os.Stdin, os.Stdout)
	if err := p.Close(); err != nil {
		logger.WithError(err).Warn("Failed to release model")
	}
	if runErr != nil {
		logger.Fatalf("Server error: %v", runErr)
	}
}
