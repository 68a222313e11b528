// Package report renders the operator status report sent into the chat and
// printed by the CLI.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/vidsift/vidsift/internal/queue"
	"github.com/vidsift/vidsift/internal/session"
)

const probeTimeout = 10 * time.Second

// StoreStatus is the document store surface the report probes.
type StoreStatus interface {
	Ping(ctx context.Context) error
	CountSuggestions(ctx context.Context) (int64, error)
}

// QueueStatus is the queue surface the report probes.
type QueueStatus interface {
	Status(ctx context.Context) (queue.Status, error)
}

// SessionStatus exposes the connection state.
type SessionStatus interface {
	Stats() session.Stats
}

// Builder assembles the status report. Each section degrades on its own, so
// one unreachable dependency never hides the rest of the report.
type Builder struct {
	store     StoreStatus
	queue     QueueStatus
	session   SessionStatus
	startedAt time.Time
	logger    *slog.Logger
}

// NewBuilder creates a report builder. Process uptime counts from this call.
func NewBuilder(log *slog.Logger, st StoreStatus, q QueueStatus, sess SessionStatus) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		store:     st,
		queue:     q,
		session:   sess,
		startedAt: time.Now(),
		logger:    log.With(slog.String("component", "report")),
	}
}

// Report builds the report text.
func (b *Builder) Report(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("vidsift status\n")
	sb.WriteString(b.storeLine(ctx))
	sb.WriteString(b.queueLine(ctx))
	sb.WriteString(b.sessionLine())
	sb.WriteString(fmt.Sprintf("uptime: %s\n", time.Since(b.startedAt).Truncate(time.Second)))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	sb.WriteString(fmt.Sprintf("memory: %.1f MiB", float64(mem.Alloc)/1024/1024))
	return sb.String()
}

func (b *Builder) storeLine(ctx context.Context) string {
	if err := b.store.Ping(ctx); err != nil {
		return fmt.Sprintf("store: unreachable (%v)\n", err)
	}
	count, err := b.store.CountSuggestions(ctx)
	if err != nil {
		return fmt.Sprintf("store: connected, count unavailable (%v)\n", err)
	}
	return fmt.Sprintf("store: connected, %d suggestions recorded\n", count)
}

func (b *Builder) queueLine(ctx context.Context) string {
	status, err := b.queue.Status(ctx)
	if err != nil {
		return fmt.Sprintf("queue: unreachable (%v)\n", err)
	}
	return fmt.Sprintf("queue: %d queued, %d consumers\n", status.Messages, status.Consumers)
}

func (b *Builder) sessionLine() string {
	if b.session == nil {
		return "session: not running\n"
	}
	st := b.session.Stats()
	switch st.State {
	case session.StateOpen:
		return fmt.Sprintf("session: open, up %s\n", st.Uptime.Truncate(time.Second))
	case session.StateClosedRetrying, session.StateConnecting:
		return fmt.Sprintf("session: reconnecting (attempt %d, last error: %s)\n", st.AttemptCount, st.LastError)
	case session.StateClosedTerminal:
		return fmt.Sprintf("session: down (%s)\n", st.LastError)
	default:
		return fmt.Sprintf("session: %s\n", st.State)
	}
}
