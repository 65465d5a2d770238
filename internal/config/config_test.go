package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Model.Backend != "heuristic" {
		t.Errorf("Backend: got %s, want heuristic", cfg.Model.Backend)
	}
	if cfg.Model.ScoreThreshold != 0.5 {
		t.Errorf("ScoreThreshold: got %v, want 0.5", cfg.Model.ScoreThreshold)
	}
	if cfg.Model.ConfigPath != DefaultModelConfig {
		t.Errorf("ConfigPath: got %s, want %s", cfg.Model.ConfigPath, DefaultModelConfig)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Port: got %d, want 3000", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestPubLayNetLabels(t *testing.T) {
	want := []string{"text", "title", "list", "table", "figure"}
	labels := PubLayNetLabels()
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d", len(labels), len(want))
	}
	for i, name := range want {
		if labels[i] != name {
			t.Errorf("label %d: got %s, want %s", i, labels[i], name)
		}
	}

	// Callers get their own copy
	labels[0] = "changed"
	if PubLayNetLabels()[0] != "text" {
		t.Error("PubLayNetLabels should return a fresh map")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envFrom(map[string]string{
		"LAYOUT_BACKEND":         "http",
		"LAYOUT_ENDPOINT":        "http://localhost:8080/predictions/publaynet",
		"LAYOUT_SCORE_THRESHOLD": "0.7",
		"LAYOUT_COMMAND":         "python3 -u",
		"LAYOUT_TIMEOUT":         "30s",
		"LAYOUT_OCR":             "true",
		"LAYOUT_PDF_PAGE":        "2",
		"PORT":                   "8081",
	}))
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Model.Backend != "http" {
		t.Errorf("Backend: got %s, want http", cfg.Model.Backend)
	}
	if cfg.Model.ScoreThreshold != 0.7 {
		t.Errorf("ScoreThreshold: got %v, want 0.7", cfg.Model.ScoreThreshold)
	}
	if len(cfg.Model.Command) != 2 || cfg.Model.Command[1] != "-u" {
		t.Errorf("Command: got %v, want [python3 -u]", cfg.Model.Command)
	}
	if cfg.Model.Timeout != 30*time.Second {
		t.Errorf("Timeout: got %v, want 30s", cfg.Model.Timeout)
	}
	if !cfg.OCR.Enabled {
		t.Error("OCR should be enabled")
	}
	if cfg.Input.PDFPage != 2 {
		t.Errorf("PDFPage: got %d, want 2", cfg.Input.PDFPage)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Port: got %d, want 8081", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config should validate: %v", err)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"threshold", map[string]string{"LAYOUT_SCORE_THRESHOLD": "high"}},
		{"timeout", map[string]string{"LAYOUT_TIMEOUT": "soon"}},
		{"port", map[string]string{"PORT": "eighty"}},
		{"ocr", map[string]string{"LAYOUT_OCR": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.applyEnv(envFrom(tt.env)); err == nil {
				t.Error("expected error for invalid value")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Model.Backend = "onnx" }, true},
		{"threshold above one", func(c *Config) { c.Model.ScoreThreshold = 1.5 }, true},
		{"negative threshold", func(c *Config) { c.Model.ScoreThreshold = -0.1 }, true},
		{"http without endpoint", func(c *Config) { c.Model.Backend = "http" }, true},
		{"http with endpoint", func(c *Config) {
			c.Model.Backend = "http"
			c.Model.Endpoint = "http://localhost:8080/predict"
		}, false},
		{"exec without command", func(c *Config) {
			c.Model.Backend = "exec"
			c.Model.Command = nil
		}, true},
		{"empty label map", func(c *Config) { c.Model.LabelMap = map[int]string{} }, true},
		{"empty label name", func(c *Config) { c.Model.LabelMap = map[int]string{0: ""} }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	content := `model:
  backend: exec
  score_threshold: 0.8
  timeout: 45s
  label_map:
    0: paragraph
    1: heading
input:
  pdf_dpi: 200
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		t.Fatalf("mergeFile failed: %v", err)
	}

	if cfg.Model.Backend != "exec" {
		t.Errorf("Backend: got %s, want exec", cfg.Model.Backend)
	}
	if cfg.Model.ScoreThreshold != 0.8 {
		t.Errorf("ScoreThreshold: got %v, want 0.8", cfg.Model.ScoreThreshold)
	}
	if cfg.Model.Timeout != 45*time.Second {
		t.Errorf("Timeout: got %v, want 45s", cfg.Model.Timeout)
	}
	if len(cfg.Model.LabelMap) != 2 {
		t.Errorf("LabelMap should be replaced, got %v", cfg.Model.LabelMap)
	}
	if cfg.Model.LabelMap[1] != "heading" {
		t.Errorf("LabelMap[1]: got %s, want heading", cfg.Model.LabelMap[1])
	}
	if cfg.Input.PDFDPI != 200 {
		t.Errorf("PDFDPI: got %d, want 200", cfg.Input.PDFDPI)
	}
	// Untouched sections keep their defaults
	if cfg.Server.Port != 3000 {
		t.Errorf("Port: got %d, want 3000", cfg.Server.Port)
	}
}

func TestMergeFile_Errors(t *testing.T) {
	if err := Default().mergeFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("model: [unterminated"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := Default().mergeFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestResolveSkipsValidation(t *testing.T) {
	t.Setenv("LAYOUT_CONFIG", "")
	t.Setenv("LAYOUT_BACKEND", "bogus")

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Model.Backend != "bogus" {
		t.Errorf("backend: got %q", cfg.Model.Backend)
	}
	if _, err := Load(""); err == nil {
		t.Error("Load should reject an unknown backend")
	}

	cfg.Model.Backend = "heuristic"
	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config should validate: %v", err)
	}
}
