package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/layout-detect/internal/pipeline"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := pipeline.Run(ctx, os.Args[1:], os.Stdout, os.Stderr, pipeline.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	})
	stop()
	os.Exit(code)
}
