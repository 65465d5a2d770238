// Package config loads runtime settings for the layout detection tools.
//
// Settings are resolved in three layers, later layers winning:
//
//  1. Built-in defaults (PubLayNet label map, 0.5 score threshold, heuristic backend)
//  2. An optional YAML file, named by -config or LAYOUT_CONFIG
//  3. Environment variables (LAYOUT_* and PORT), optionally seeded from a .env file
//
// The resolved Config is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultModelConfig is the PubLayNet Faster R-CNN model the sidecar backend loads.
const DefaultModelConfig = "lp://PubLayNet/faster_rcnn_R_50_FPN_3x/config"

// Config holds every tunable of the CLI, the heatmap service and the MCP server.
type Config struct {
	Model  ModelConfig  `yaml:"model"`
	Input  InputConfig  `yaml:"input"`
	OCR    OCRConfig    `yaml:"ocr"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ModelConfig selects and parameterises the inference backend.
type ModelConfig struct {
	// Backend is one of "heuristic", "exec" or "http".
	Backend string `yaml:"backend" validate:"required,oneof=heuristic exec http"`

	// ConfigPath identifies the pretrained model handed to the sidecar.
	ConfigPath string `yaml:"config_path" validate:"required"`

	// ScoreThreshold drops predictions scoring below it.
	ScoreThreshold float64 `yaml:"score_threshold" validate:"gte=0,lte=1"`

	// LabelMap maps backend class indices to region names.
	LabelMap map[int]string `yaml:"label_map" validate:"required,min=1,dive,required"`

	// Command is the interpreter (plus leading args) used by the exec backend.
	Command []string `yaml:"command" validate:"required_if=Backend exec"`

	// Script overrides the embedded sidecar script for the exec backend. It
	// must speak the same ready-line and one-path-per-line protocol.
	Script string `yaml:"script"`

	// Endpoint is the prediction URL of the http backend.
	Endpoint string `yaml:"endpoint" validate:"required_if=Backend http,omitempty,url"`

	// HealthURL is probed when the http backend loads. Empty skips the probe.
	HealthURL string `yaml:"health_url" validate:"omitempty,url"`

	// Timeout bounds a single load or inference call.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// InputConfig controls how documents are turned into bitmaps.
type InputConfig struct {
	// PDFPage is the 0-based page rendered from PDF inputs.
	PDFPage int `yaml:"pdf_page" validate:"gte=0"`

	// PDFDPI is the rendering resolution for PDF inputs.
	PDFDPI int `yaml:"pdf_dpi" validate:"gte=36,lte=600"`
}

// OCRConfig controls optional text extraction for text-like regions.
type OCRConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language" validate:"required"`
}

// ServerConfig is used by the heatmap HTTP service.
type ServerConfig struct {
	Port      int     `yaml:"port" validate:"gt=0,lte=65535"`
	StaticDir string  `yaml:"static_dir" validate:"required"`
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gt=0"`
	BodyLimit int     `yaml:"body_limit" validate:"gt=0"`

	// DownloadLimit caps the size of a fetched screenshot in bytes.
	DownloadLimit int64 `yaml:"download_limit" validate:"gt=0"`
}

// LogConfig controls logging verbosity and the optional log file.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	File  string `yaml:"file"`
}

// PubLayNetLabels returns the label map of the PubLayNet dataset.
func PubLayNetLabels() map[int]string {
	return map[int]string{
		0: "text",
		1: "title",
		2: "list",
		3: "table",
		4: "figure",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:        "heuristic",
			ConfigPath:     DefaultModelConfig,
			ScoreThreshold: 0.5,
			LabelMap:       PubLayNetLabels(),
			Command:        []string{"python3"},
			Timeout:        120 * time.Second,
		},
		Input: InputConfig{
			PDFPage: 0,
			PDFDPI:  150,
		},
		OCR: OCRConfig{
			Language: "eng",
		},
		Server: ServerConfig{
			Port:          3000,
			StaticDir:     "./static",
			RateLimit:     2,
			RateBurst:     4,
			BodyLimit:     1 * 1024 * 1024,
			DownloadLimit: 25 * 1024 * 1024,
		},
	}
}

// Load resolves the configuration from defaults, the optional YAML file at
// path and the environment, then validates it. An empty path falls back to
// LAYOUT_CONFIG.
func Load(path string) (*Config, error) {
	cfg, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve is Load without validation, for callers that apply their own
// overrides before calling Validate.
func Resolve(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("LAYOUT_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML document at path onto c.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// A label map in the file replaces the default one instead of merging into it.
	var peek struct {
		Model struct {
			LabelMap map[int]string `yaml:"label_map"`
		} `yaml:"model"`
	}
	if err := yaml.Unmarshal(data, &peek); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if peek.Model.LabelMap != nil {
		c.Model.LabelMap = nil
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables onto c. lookup is os.LookupEnv
// outside of tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = n
		}
		return nil
	}
	float := func(key string, dst *float64) error {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = f
		}
		return nil
	}

	str("LAYOUT_BACKEND", &c.Model.Backend)
	str("LAYOUT_MODEL_CONFIG", &c.Model.ConfigPath)
	str("LAYOUT_SCRIPT", &c.Model.Script)
	str("LAYOUT_ENDPOINT", &c.Model.Endpoint)
	str("LAYOUT_HEALTH_URL", &c.Model.HealthURL)
	str("LAYOUT_OCR_LANGUAGE", &c.OCR.Language)
	str("LAYOUT_STATIC_DIR", &c.Server.StaticDir)
	str("LAYOUT_LOG_LEVEL", &c.Log.Level)
	str("LAYOUT_LOG_FILE", &c.Log.File)

	if v, ok := lookup("LAYOUT_COMMAND"); ok && strings.TrimSpace(v) != "" {
		c.Model.Command = strings.Fields(v)
	}
	if v, ok := lookup("LAYOUT_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LAYOUT_TIMEOUT %q: %w", v, err)
		}
		c.Model.Timeout = d
	}
	if v, ok := lookup("LAYOUT_OCR"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LAYOUT_OCR %q: %w", v, err)
		}
		c.OCR.Enabled = b
	}

	if err := float("LAYOUT_SCORE_THRESHOLD", &c.Model.ScoreThreshold); err != nil {
		return err
	}
	if err := float("LAYOUT_RATE_LIMIT", &c.Server.RateLimit); err != nil {
		return err
	}
	if err := integer("LAYOUT_PDF_PAGE", &c.Input.PDFPage); err != nil {
		return err
	}
	if err := integer("LAYOUT_PDF_DPI", &c.Input.PDFDPI); err != nil {
		return err
	}
	if err := integer("LAYOUT_RATE_BURST", &c.Server.RateBurst); err != nil {
		return err
	}
	if err := integer("PORT", &c.Server.Port); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
