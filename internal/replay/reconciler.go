package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const runTimeout = time.Minute

// Reconciler periodically republishes suggestions whose publish failed at
// ingest time, so a queue outage only delays delivery instead of losing it.
type Reconciler struct {
	service  *Service
	schedule string
	limit    int64
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewReconciler creates a reconciler running service on a cron schedule.
func NewReconciler(log *slog.Logger, service *Service, schedule string, limit int64) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		service:  service,
		schedule: schedule,
		limit:    limit,
		logger:   log.With(slog.String("component", "reconciler")),
	}
}

// Start validates the schedule and begins the periodic runs.
func (r *Reconciler) Start() error {
	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := r.service.Run(ctx, false, r.limit); err != nil {
			r.logger.Warn("reconcile run failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid replay schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("reconciler started", slog.String("schedule", r.schedule))
	return nil
}

// Stop halts scheduling and waits for a running job to finish or ctx to be
// done.
func (r *Reconciler) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
