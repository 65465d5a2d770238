package heatmap

import "github.com/ironsheep/layout-detect/internal/layout"

type ProcessRequest struct {
	ScreenshotURL string `json:"screenshot_url" validate:"required,http_url"`
}

type ProcessResponse struct {
	HeatmapURL string             `json:"heatmap_url"`
	Detections []layout.Detection `json:"detections"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`

	// MemoryUsedPercent is host memory in use. Omitted when unavailable.
	MemoryUsedPercent float64 `json:"memory_used_percent,omitempty"`
}
