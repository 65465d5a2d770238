package heatmap

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/layout-detect/internal/middleware"
	"github.com/ironsheep/layout-detect/internal/response"
)

type HeatmapHandler struct {
	log            logrus.FieldLogger
	validator      *validator.Validate
	heatmapService IHeatmapService
	limiter        fiber.Handler
}

func New(
	log logrus.FieldLogger,
	validator *validator.Validate,
	hs IHeatmapService,
	limiter fiber.Handler,
) *HeatmapHandler {
	return &HeatmapHandler{
		log:            log,
		validator:      validator,
		heatmapService: hs,
		limiter:        limiter,
	}
}

func (h *HeatmapHandler) Start(srv fiber.Router) {
	if h.limiter != nil {
		srv.Post("/process", h.limiter, h.Process)
		return
	}
	srv.Post("/process", h.Process)
}

func (h *HeatmapHandler) Process(c *fiber.Ctx) error {
	var req ProcessRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.handleError(c, ErrInvalidBody, err)
		}
	}

	if err := h.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
			return h.handleError(c, ErrURLRequired, err)
		}
		return h.handleError(c, ErrInvalidURL, err)
	}

	res, err := h.heatmapService.Process(c.UserContext(), req.ScreenshotURL)
	if err != nil {
		return h.handleError(c, err, err)
	}

	return c.JSON(res)
}

// handleError writes the status and message of the *response.Error inside
// err and logs cause. Anything else becomes a 500.
func (h *HeatmapHandler) handleError(c *fiber.Ctx, err error, cause error) error {
	var respErr *response.Error
	if !errors.As(err, &respErr) {
		errors.As(ErrInternalServer, &respErr)
	}

	entry := h.log.WithFields(logrus.Fields{
		"request_id": middleware.GetRequestID(c),
		"code":       respErr.Code,
		"error":      cause.Error(),
	})
	if respErr.Code >= fiber.StatusInternalServerError {
		entry.Error("heatmap request failed")
	} else {
		entry.Warn("heatmap request rejected")
	}

	return c.Status(respErr.Code).JSON(response.Body{Error: respErr.Error()})
}
