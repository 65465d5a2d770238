package pipeline

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/config"
	"github.com/ironsheep/layout-detect/internal/layout"
	"github.com/ironsheep/layout-detect/internal/logging"
)

// Exit codes of Run.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// UsageLine is printed when the arguments are wrong.
const UsageLine = "Usage: layout-detect [flags] <image_path>"

// BuildInfo is set by ldflags in the main package.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

type cliFlags struct {
	configPath string
	backend    string
	threshold  float64
	page       int
	dpi        int
	ocr        bool
}

func newFlagSet(out io.Writer, f *cliFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("layout-detect", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file (default $LAYOUT_CONFIG)")
	fs.StringVar(&f.backend, "backend", "", "inference backend: heuristic, exec or http")
	fs.Float64Var(&f.threshold, "threshold", -1, "minimum detection score (default 0.5)")
	fs.IntVar(&f.page, "page", -1, "0-based page for PDF input (default 0)")
	fs.IntVar(&f.dpi, "dpi", 0, "render resolution for PDF input (default 150)")
	fs.BoolVar(&f.ocr, "ocr", false, "recognise text inside text, title and list blocks")
	return fs
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "layout-detect - document layout detection")
	fmt.Fprintln(w)
	fmt.Fprintln(w, UsageLine)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Prints a JSON array of detected regions:")
	fmt.Fprintln(w, `  [{"x":0,"y":0,"width":0,"height":0,"label":"text"}]`)
	fmt.Fprintln(w, "Labels: text, title, list, table, figure.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	var f cliFlags
	fs := newFlagSet(w, &f)
	fs.PrintDefaults()
	fmt.Fprintln(w, "  --version, -v")
	fmt.Fprintln(w, "    \tprint version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  LAYOUT_CONFIG            YAML configuration file")
	fmt.Fprintln(w, "  LAYOUT_BACKEND           heuristic, exec or http")
	fmt.Fprintln(w, "  LAYOUT_COMMAND           interpreter for the exec backend (default python3)")
	fmt.Fprintln(w, "  LAYOUT_ENDPOINT          prediction URL for the http backend")
	fmt.Fprintln(w, "  LAYOUT_SCORE_THRESHOLD   minimum detection score")
	fmt.Fprintln(w, "  LAYOUT_OCR=true          enable OCR")
	fmt.Fprintln(w, "  LAYOUT_LOG_LEVEL=debug   enable debug logging")
	fmt.Fprintln(w, "  LAYOUT_LOG_FILE          also log to a rotating file")
}

// Run executes one detection pass and returns the process exit code.
//
// stdout receives exactly one payload: the detections array, the error
// object, or the usage text. Logs go to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, info BuildInfo) int {
	if len(args) == 1 {
		switch args[0] {
		case "--version", "-v":
			fmt.Fprintf(stdout, "layout-detect %s\n", info.Version)
			fmt.Fprintf(stdout, "  Build time: %s\n", info.BuildTime)
			fmt.Fprintf(stdout, "  Git commit: %s\n", info.GitCommit)
			return ExitOK
		case "--help", "-h", "-help":
			printHelp(stdout)
			return ExitOK
		}
	}

	var f cliFlags
	fs := newFlagSet(stderr, &f)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printHelp(stdout)
			return ExitOK
		}
		fmt.Fprintln(stdout, UsageLine)
		return ExitFailure
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stdout, UsageLine)
		return ExitFailure
	}
	imagePath := fs.Arg(0)

	cfg, err := loadConfig(f)
	if err != nil {
		return fail(stdout, stageErr(ErrModelLoad, err))
	}

	logger, err := logging.New(logging.Options{
		Level:        cfg.Log.Level,
		DefaultLevel: logrus.WarnLevel,
		File:         cfg.Log.File,
		Output:       stderr,
	})
	if err != nil {
		return fail(stdout, stageErr(ErrModelLoad, err))
	}
	log := logger.WithField("image", imagePath)

	p, err := New(ctx, cfg, logger)
	if err != nil {
		log.WithError(err).Error("model load failed")
		return fail(stdout, err)
	}
	defer p.Close()

	img, err := p.LoadImage(imagePath)
	if err != nil {
		log.WithError(err).Error("image load failed")
		return fail(stdout, err)
	}

	dets, _, err := p.Process(ctx, img)
	if err != nil {
		log.WithError(err).Error("detection failed")
		return fail(stdout, err)
	}

	log.WithField("detections", len(dets)).Info("done")
	if err := layout.WriteJSON(stdout, dets); err != nil {
		log.WithError(err).Error("failed to write output")
		return ExitFailure
	}
	return ExitOK
}

// loadConfig resolves the configuration, applies flag overrides and
// validates the result.
func loadConfig(f cliFlags) (*config.Config, error) {
	cfg, err := config.Resolve(f.configPath)
	if err != nil {
		return nil, err
	}

	if f.backend != "" {
		cfg.Model.Backend = f.backend
	}
	if f.threshold >= 0 {
		cfg.Model.ScoreThreshold = f.threshold
	}
	if f.page >= 0 {
		cfg.Input.PDFPage = f.page
	}
	if f.dpi > 0 {
		cfg.Input.PDFDPI = f.dpi
	}
	if f.ocr {
		cfg.OCR.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fail(stdout io.Writer, err error) int {
	layout.WriteJSON(stdout, Payload(err))
	return ExitFailure
}
