package sessionchecker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vidsift/vidsift/internal/healthcheck"
	"github.com/vidsift/vidsift/internal/session"
)

const checkTypeSessionConnection = "session.connection"

// SessionObserver reads the chat session connection state.
type SessionObserver interface {
	Stats() session.Stats
}

// Checker evaluates chat session health checks.
type Checker struct {
	logger   *slog.Logger
	observer SessionObserver
}

// NewChecker creates a session health checker.
func NewChecker(log *slog.Logger, observer SessionObserver) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_session")),
		observer: observer,
	}
}

// ListChecks evaluates the chat session connection.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.observer == nil {
		if c.logger != nil {
			c.logger.Warn("session healthcheck dependency is unavailable")
		}
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeSessionConnection + ".service",
				Type:    checkTypeSessionConnection,
				Status:  healthcheck.StatusWarn,
				Summary: "Session checker service is not available.",
				Detail:  "session observer is nil",
			},
		}
	}

	stats := c.observer.Stats()
	item := healthcheck.CheckResult{
		ID:   checkTypeSessionConnection,
		Type: checkTypeSessionConnection,
		Metadata: map[string]any{
			"state":         string(stats.State),
			"attempt_count": stats.AttemptCount,
		},
	}
	switch stats.State {
	case session.StateOpen:
		item.Status = healthcheck.StatusOK
		item.Summary = "Chat session is connected."
	case session.StateConnecting, session.StateClosedRetrying:
		item.Status = healthcheck.StatusWarn
		item.Summary = "Chat session is reconnecting."
		item.Detail = strings.TrimSpace(stats.LastError)
	case session.StateClosedTerminal:
		item.Status = healthcheck.StatusError
		item.Summary = "Chat session is down and will not reconnect on its own."
		item.Detail = strings.TrimSpace(stats.LastError)
	default:
		item.Status = healthcheck.StatusUnknown
		item.Summary = "Chat session has not started."
	}
	return []healthcheck.CheckResult{item}
}
