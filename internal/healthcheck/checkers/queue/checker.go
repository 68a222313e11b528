package queuechecker

import (
	"context"
	"log/slog"

	"github.com/vidsift/vidsift/internal/healthcheck"
	"github.com/vidsift/vidsift/internal/queue"
)

const checkTypeQueueConnection = "queue.connection"

// QueueObserver reads the broker queue state.
type QueueObserver interface {
	Status(ctx context.Context) (queue.Status, error)
}

// Checker evaluates queue health checks.
type Checker struct {
	logger   *slog.Logger
	observer QueueObserver
}

// NewChecker creates a queue health checker.
func NewChecker(log *slog.Logger, observer QueueObserver) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_queue")),
		observer: observer,
	}
}

// ListChecks evaluates the queue connection and consumer presence.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.observer == nil {
		if c.logger != nil {
			c.logger.Warn("queue healthcheck dependency is unavailable")
		}
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeQueueConnection + ".service",
				Type:    checkTypeQueueConnection,
				Status:  healthcheck.StatusWarn,
				Summary: "Queue checker service is not available.",
				Detail:  "queue observer is nil",
			},
		}
	}

	item := healthcheck.CheckResult{
		ID:   checkTypeQueueConnection,
		Type: checkTypeQueueConnection,
	}
	status, err := c.observer.Status(ctx)
	if err != nil {
		item.Status = healthcheck.StatusError
		item.Summary = "Queue connection failed."
		item.Detail = err.Error()
		return []healthcheck.CheckResult{item}
	}

	item.Metadata = map[string]any{
		"messages":  status.Messages,
		"consumers": status.Consumers,
	}
	if status.Consumers == 0 {
		item.Status = healthcheck.StatusWarn
		item.Summary = "Queue is reachable but has no consumers."
		return []healthcheck.CheckResult{item}
	}
	item.Status = healthcheck.StatusOK
	item.Summary = "Queue is reachable."
	return []healthcheck.CheckResult{item}
}
