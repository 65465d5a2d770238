package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/layout-detect/internal/config"
	"github.com/ironsheep/layout-detect/internal/layout"
	"github.com/ironsheep/layout-detect/internal/logging"
)

// fakeDetector returns a fixed layout and counts calls.
type fakeDetector struct {
	layout layout.Layout
	err    error
	calls  int
}

func (f *fakeDetector) Process(ctx context.Context, img image.Image) ([]layout.Detection, layout.Layout, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return layout.FormatLayout(f.layout), f.layout, nil
}

func newTestServer(det Detector) *Server {
	return New(det, "fake", config.Default().Input, "test", logging.Discard())
}

// writePNG writes a white w x h PNG into a temp dir and returns its path.
func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	path := filepath.Join(t.TempDir(), "page.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return path
}

// exchange runs the server over the given request lines and returns the
// decoded responses.
func exchange(t *testing.T, s *Server, requests ...string) []MCPResponse {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var responses []MCPResponse
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var resp MCPResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("response is not JSON: %s", scanner.Text())
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestRun_Protocol(t *testing.T) {
	s := newTestServer(&fakeDetector{})
	responses := exchange(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":"p","method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
	)

	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d: %+v", len(responses), responses)
	}

	initResult, ok := responses[0].Result.(map[string]interface{})
	if !ok {
		t.Fatalf("initialize result: %#v", responses[0].Result)
	}
	if initResult["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion: %v", initResult["protocolVersion"])
	}
	info := initResult["serverInfo"].(map[string]interface{})
	if info["name"] != "layout-detect-mcp" || info["version"] != "test" {
		t.Errorf("serverInfo: %v", info)
	}

	if responses[1].ID != "p" || responses[1].Error != nil {
		t.Errorf("ping: %+v", responses[1])
	}

	if responses[2].Error == nil || responses[2].Error.Code != -32601 {
		t.Errorf("unknown method: %+v", responses[2])
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	s := newTestServer(&fakeDetector{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never delivers a line.
	r, w := io.Pipe()
	defer w.Close()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, r, &bytes.Buffer{}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestToolsList(t *testing.T) {
	s := newTestServer(&fakeDetector{})
	responses := exchange(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if len(responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responses))
	}

	result := responses[0].Result.(map[string]interface{})
	tools := result["tools"].([]interface{})
	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	want := "layout_detect,layout_heatmap,image_dimensions"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("tools: got %s, want %s", got, want)
	}
}

func TestErrorData(t *testing.T) {
	if got := errorData(errors.New("plain")); got != "plain" {
		t.Errorf("plain error: got %v", got)
	}
}
