package storechecker

import (
	"context"
	"log/slog"

	"github.com/vidsift/vidsift/internal/healthcheck"
)

const checkTypeStoreConnection = "store.connection"

// StoreObserver reads the document store connection state.
type StoreObserver interface {
	Ping(ctx context.Context) error
	CountSuggestions(ctx context.Context) (int64, error)
}

// Checker evaluates document store health checks.
type Checker struct {
	logger   *slog.Logger
	observer StoreObserver
}

// NewChecker creates a document store health checker.
func NewChecker(log *slog.Logger, observer StoreObserver) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_store")),
		observer: observer,
	}
}

// ListChecks evaluates the document store connection.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.observer == nil {
		if c.logger != nil {
			c.logger.Warn("store healthcheck dependency is unavailable")
		}
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeStoreConnection + ".service",
				Type:    checkTypeStoreConnection,
				Status:  healthcheck.StatusWarn,
				Summary: "Store checker service is not available.",
				Detail:  "store observer is nil",
			},
		}
	}

	item := healthcheck.CheckResult{
		ID:   checkTypeStoreConnection,
		Type: checkTypeStoreConnection,
	}
	if err := c.observer.Ping(ctx); err != nil {
		item.Status = healthcheck.StatusError
		item.Summary = "Document store connection failed."
		item.Detail = err.Error()
		return []healthcheck.CheckResult{item}
	}

	item.Status = healthcheck.StatusOK
	item.Summary = "Document store is reachable."
	if count, err := c.observer.CountSuggestions(ctx); err == nil {
		item.Metadata = map[string]any{"suggestions": count}
	}
	return []healthcheck.CheckResult{item}
}
