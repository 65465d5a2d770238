package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/layout-detect/internal/layout"
)

var testInfo = BuildInfo{Version: "1.2.3", BuildTime: "today", GitCommit: "abc123"}

// writePage writes a 400x300 white PNG with an optional solid block.
func writePage(t *testing.T, withFigure bool) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			c := color.Color(color.White)
			if withFigure && x >= 100 && x < 250 && y >= 100 && y < 200 {
				c = color.Black
			}
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "page.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr, testInfo)
	return code, stdout.String(), stderr.String()
}

func decodeError(t *testing.T, out string) layout.ErrorPayload {
	t.Helper()
	var p layout.ErrorPayload
	if err := jsoniter.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("stdout is not an error object: %q (%v)", out, err)
	}
	return p
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"two arguments", []string{"a.png", "b.png"}},
		{"unknown flag", []string{"-bogus", "a.png"}},
		{"flag without path", []string{"-ocr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := run(tt.args...)
			if code != ExitFailure {
				t.Errorf("exit code: got %d, want %d", code, ExitFailure)
			}
			if strings.TrimSpace(out) != UsageLine {
				t.Errorf("stdout: got %q, want usage", out)
			}
		})
	}
}

func TestRun_VersionAndHelp(t *testing.T) {
	code, out, _ := run("--version")
	if code != ExitOK || !strings.Contains(out, "layout-detect 1.2.3") || !strings.Contains(out, "abc123") {
		t.Errorf("--version: code=%d out=%q", code, out)
	}

	code, out, _ = run("--help")
	if code != ExitOK || !strings.Contains(out, UsageLine) || !strings.Contains(out, "-threshold") {
		t.Errorf("--help: code=%d out=%q", code, out)
	}
}

func TestRun_PathNamedLikeCommand(t *testing.T) {
	page, err := os.ReadFile(writePage(t, true))
	if err != nil {
		t.Fatalf("failed to read page: %v", err)
	}
	dir := t.TempDir()
	for _, name := range []string{"help", "version"} {
		if err := os.WriteFile(filepath.Join(dir, name), page, 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	t.Chdir(dir)

	for _, name := range []string{"help", "version"} {
		code, out, _ := run(name)
		if code != ExitOK || !strings.Contains(out, `"label":"figure"`) {
			t.Errorf("%s: code=%d out=%q", name, code, out)
		}
	}
}

func TestRun_Detections(t *testing.T) {
	code, out, _ := run(writePage(t, true))
	if code != ExitOK {
		t.Fatalf("exit code %d, stdout %q", code, out)
	}

	var dets []layout.Detection
	if err := jsoniter.Unmarshal([]byte(out), &dets); err != nil {
		t.Fatalf("stdout is not a detection list: %q", out)
	}
	want := layout.Detection{X: 100, Y: 100, Width: 150, Height: 100, Label: "figure"}
	if len(dets) != 1 || dets[0] != want {
		t.Errorf("got %+v, want [%+v]", dets, want)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected exactly one line of output, got %q", out)
	}
}

func TestRun_BlankPage(t *testing.T) {
	code, out, _ := run(writePage(t, false))
	if code != ExitOK {
		t.Fatalf("exit code %d", code)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("got %q, want []", out)
	}
}

func TestRun_ThresholdFlag(t *testing.T) {
	// Heuristic figures score 0.8
	code, out, _ := run("-threshold", "0.85", writePage(t, true))
	if code != ExitOK || strings.TrimSpace(out) != "[]" {
		t.Errorf("code=%d out=%q", code, out)
	}
}

func TestRun_ImageLoadFailure(t *testing.T) {
	code, out, _ := run(filepath.Join(t.TempDir(), "missing.png"))
	if code != ExitFailure {
		t.Errorf("exit code: got %d", code)
	}
	p := decodeError(t, out)
	if p.Error != "Failed to load image" || p.Details == "" {
		t.Errorf("payload: %+v", p)
	}

	notImage := filepath.Join(t.TempDir(), "notes.png")
	os.WriteFile(notImage, []byte("plain text"), 0o644)
	code, out, _ = run(notImage)
	if code != ExitFailure || decodeError(t, out).Error != "Failed to load image" {
		t.Errorf("undecodable image: code=%d out=%q", code, out)
	}
}

func TestRun_ModelLoadFailure(t *testing.T) {
	t.Setenv("LAYOUT_COMMAND", "layout-detect-no-such-interpreter")

	code, out, _ := run("-backend", "exec", writePage(t, false))
	if code != ExitFailure {
		t.Errorf("exit code: got %d", code)
	}
	p := decodeError(t, out)
	if p.Error != "Failed to load model" || !strings.Contains(p.Details, "not found") {
		t.Errorf("payload: %+v", p)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"threshold out of range", []string{"-threshold", "2"}},
		{"unknown backend", []string{"-backend", "onnx"}},
		{"missing config file", []string{"-config", "/nonexistent/layout.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := run(append(tt.args, "page.png")...)
			if code != ExitFailure {
				t.Errorf("exit code: got %d", code)
			}
			if p := decodeError(t, out); p.Error != "Failed to load model" {
				t.Errorf("payload: %+v", p)
			}
		})
	}
}

func TestRun_FlagFixesInvalidEnv(t *testing.T) {
	t.Setenv("LAYOUT_BACKEND", "bogus")
	page := writePage(t, true)

	code, out, _ := run(page)
	if code != ExitFailure || decodeError(t, out).Error != "Failed to load model" {
		t.Errorf("without flag: code=%d out=%q", code, out)
	}

	code, out, _ = run("-backend", "heuristic", page)
	if code != ExitOK || !strings.Contains(out, `"label":"figure"`) {
		t.Errorf("with -backend: code=%d out=%q", code, out)
	}
}

func TestRun_DetectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := writeConfig(t, "model:\n  backend: http\n  endpoint: "+srv.URL+"/predict\n")
	code, out, _ := run("-config", cfg, writePage(t, false))
	if code != ExitFailure {
		t.Errorf("exit code: got %d", code)
	}
	p := decodeError(t, out)
	if p.Error != "Detection failed" || !strings.Contains(p.Details, "CUDA out of memory") {
		t.Errorf("payload: %+v", p)
	}
}

func TestRun_ConfigFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"box":[10.7,20.2,110.9,70.5],"score":0.97,"class":1},{"box":[0,0,5,5],"score":0.99,"class":9}]`))
	}))
	defer srv.Close()

	cfg := writeConfig(t, "model:\n  backend: http\n  endpoint: "+srv.URL+"\n")
	code, out, _ := run("-config", cfg, writePage(t, false))
	if code != ExitOK {
		t.Fatalf("exit code %d, stdout %q", code, out)
	}
	want := `[{"x":10,"y":20,"width":100,"height":50,"label":"title"}]`
	if strings.TrimSpace(out) != want {
		t.Errorf("got %s, want %s", strings.TrimSpace(out), want)
	}
}

func TestPayload(t *testing.T) {
	cause := errors.New("disk on fire")
	tests := []struct {
		err  error
		want string
	}{
		{stageErr(ErrModelLoad, cause), "Failed to load model"},
		{stageErr(ErrImageLoad, cause), "Failed to load image"},
		{stageErr(ErrDetect, cause), "Detection failed"},
		{cause, "Detection failed"},
	}

	for _, tt := range tests {
		p := Payload(tt.err)
		if p.Error != tt.want || p.Details != "disk on fire" {
			t.Errorf("Payload(%v) = %+v", tt.err, p)
		}
	}

	err := stageErr(ErrImageLoad, cause)
	if !errors.Is(err, ErrImageLoad) || !errors.Is(err, cause) || errors.Is(err, ErrDetect) {
		t.Error("StageError does not unwrap to its stage and cause")
	}
}
