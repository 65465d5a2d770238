package heatmap

import (
	"net/http"

	"github.com/ironsheep/layout-detect/internal/response"
)

var (
	ErrURLRequired    = response.NewError(http.StatusBadRequest, "screenshot_url is required")
	ErrInvalidURL     = response.NewError(http.StatusBadRequest, "screenshot_url must be an http or https URL")
	ErrInvalidBody    = response.NewError(http.StatusBadRequest, "invalid request body")
	ErrDownload       = response.NewError(http.StatusInternalServerError, "Failed to download image")
	ErrDecode         = response.NewError(http.StatusInternalServerError, "Failed to decode image")
	ErrDetection      = response.NewError(http.StatusInternalServerError, "LayoutParser detection failed")
	ErrSaveHeatmap    = response.NewError(http.StatusInternalServerError, "Failed to save heatmap")
	ErrInternalServer = response.NewError(http.StatusInternalServerError, "internal server error")
)
