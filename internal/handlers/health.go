package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vidsift/vidsift/internal/healthcheck"
)

type HealthHandler struct {
	logger  *slog.Logger
	service *healthcheck.Service
}

func NewHealthHandler(log *slog.Logger, service *healthcheck.Service) *HealthHandler {
	return &HealthHandler{
		logger:  log.With(slog.String("handler", "health")),
		service: service,
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

// Health runs all registered checks. The response code follows the overall
// status so load balancers can act on it without parsing the body.
func (h *HealthHandler) Health(c echo.Context) error {
	results := h.service.Run(c.Request().Context())
	overall := healthcheck.Overall(results)
	code := http.StatusOK
	if overall == healthcheck.StatusError {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]any{
		"status": overall,
		"checks": results,
	})
}

func (h *HealthHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
