package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Reporter builds the plain text status report.
type Reporter interface {
	Report(ctx context.Context) string
}

type StatusHandler struct {
	logger   *slog.Logger
	reporter Reporter
}

func NewStatusHandler(log *slog.Logger, reporter Reporter) *StatusHandler {
	return &StatusHandler{
		logger:   log.With(slog.String("handler", "status")),
		reporter: reporter,
	}
}

func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/status", h.Status)
}

func (h *StatusHandler) Status(c echo.Context) error {
	return c.String(http.StatusOK, h.reporter.Report(c.Request().Context()))
}
