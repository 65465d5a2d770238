package server

import (
	"context"
	"errors"
	"fmt"
	"image"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/layout-detect/internal/imaging"
	"github.com/ironsheep/layout-detect/internal/layout"
	"github.com/ironsheep/layout-detect/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "layout_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.WithError(err).WithField("tool", params.Name).Warn("Tool execution failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", errorData(err))
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// errorData renders pipeline failures as the CLI's error object and
// anything else as its message.
func errorData(err error) interface{} {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return pipeline.Payload(err)
	}
	return err.Error()
}

func (s *Server) executeTool(ctx context.Context, name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	case "layout_detect":
		return s.handleLayoutDetect(ctx, args)
	case "layout_heatmap":
		return s.handleLayoutHeatmap(ctx, args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// pageArgs is embedded by every tool.
type pageArgs struct {
	Path string `json:"path"`
	Page *int   `json:"page,omitempty"`
}

func parseArgs(raw jsoniter.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		raw = jsoniter.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// load returns the requested page, falling back to the configured PDF page.
func (s *Server) load(a pageArgs) (image.Image, error) {
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	page := s.input.PDFPage
	if a.Page != nil {
		if *a.Page < 0 {
			return nil, fmt.Errorf("page must be >= 0, got %d", *a.Page)
		}
		page = *a.Page
	}
	img, err := s.cache.Load(a.Path, page, s.input.PDFDPI)
	if err != nil {
		return nil, &pipeline.StageError{Stage: pipeline.ErrImageLoad, Err: err}
	}
	return img, nil
}

// === Detection Handlers ===

// DetectResult is the layout_detect tool output.
type DetectResult struct {
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Backend    string             `json:"backend"`
	Detections []layout.Detection `json:"detections"`
}

func (s *Server) handleLayoutDetect(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a pageArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a)
	if err != nil {
		return nil, err
	}
	dets, _, err := s.detector.Process(ctx, img)
	if err != nil {
		return nil, err
	}
	dim := imaging.GetDimensions(img)
	return &DetectResult{
		Width:      dim.Width,
		Height:     dim.Height,
		Backend:    s.backend,
		Detections: dets,
	}, nil
}

type layoutHeatmapArgs struct {
	pageArgs
	Opacity *float64 `json:"opacity,omitempty"`
}

// HeatmapResult is the layout_heatmap tool output.
type HeatmapResult struct {
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	MimeType    string             `json:"mime_type"`
	ImageBase64 string             `json:"image_base64"`
	Detections  []layout.Detection `json:"detections"`
}

func (s *Server) handleLayoutHeatmap(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a layoutHeatmapArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	opts := s.heat
	if a.Opacity != nil {
		if *a.Opacity < 0 || *a.Opacity > 1 {
			return nil, fmt.Errorf("opacity must be in [0, 1], got %g", *a.Opacity)
		}
		opts.Opacity = *a.Opacity
	}

	img, err := s.load(a.pageArgs)
	if err != nil {
		return nil, err
	}
	dets, _, err := s.detector.Process(ctx, img)
	if err != nil {
		return nil, err
	}

	heat := imaging.RenderHeatmap(img, layout.DetectionRects(dets), opts)
	encoded, err := imaging.EncodeBase64PNG(heat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode heatmap: %w", err)
	}
	dim := imaging.GetDimensions(heat)
	return &HeatmapResult{
		Width:       dim.Width,
		Height:      dim.Height,
		MimeType:    "image/png",
		ImageBase64: encoded,
		Detections:  dets,
	}, nil
}

// === Basic Image Information Handlers ===

func (s *Server) handleImageDimensions(args jsoniter.RawMessage) (interface{}, error) {
	var a pageArgs
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a)
	if err != nil {
		return nil, err
	}
	return imaging.GetDimensions(img), nil
}
