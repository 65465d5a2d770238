package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image or PDF file",
	}
}

func pageProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"description": "0-based PDF page. Ignored for images. Defaults to the configured page (usually 0)",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "layout_detect",
			Description: "Detect document layout regions (text, title, list, table, figure) using the PubLayNet label map. " +
				"Returns integer pixel boxes {x, y, width, height, label} for every region scoring at or above the model threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"page": pageProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "layout_heatmap",
			Description: "Detect layout regions and overlay them as a red-to-yellow heatmap. Returns the heatmap as base64-encoded PNG plus the detections.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"page": pageProperty(),
					"opacity": map[string]interface{}{
						"type":        "number",
						"minimum":     0,
						"maximum":     1,
						"description": "Opacity of the heat layer. Default 0.6",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file or a rendered PDF page.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"page": pageProperty(),
				},
				"required": []string{"path"},
			},
		},
	}
}
