// Package session keeps one transport session alive against an unreliable
// network. The manager owns the connect loop: it classifies every disconnect
// by cause, backs off according to the matching retry policy, resets
// credentials on protocol version mismatches, and goes terminal when the
// session is invalidated upstream or the retry budget runs out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vidsift/vidsift/internal/transport"
)

var (
	// ErrSessionInvalidated is returned once the upstream has revoked the
	// pairing. Reconnecting is pointless until an operator re-pairs.
	ErrSessionInvalidated = errors.New("session invalidated, re-pairing required")
	// ErrNotConnected is returned for sends while no session is open.
	ErrNotConnected = errors.New("session not connected")
)

// State is the connection lifecycle state.
type State string

const (
	StateIdle           State = "idle"
	StateConnecting     State = "connecting"
	StateOpen           State = "open"
	StateClosedRetrying State = "closed_retrying"
	StateClosedTerminal State = "closed_terminal"
)

// Stats is a snapshot of the manager for status reporting.
type Stats struct {
	State              State           `json:"state"`
	AttemptCount       int             `json:"attempt_count"`
	ServiceUnavailable int64           `json:"service_unavailable"`
	InternalErrors     int64           `json:"internal_errors"`
	Timeouts           int64           `json:"timeouts"`
	OtherFailures      int64           `json:"other_failures"`
	LastError          string          `json:"last_error,omitempty"`
	LastErrorCause     transport.Cause `json:"last_error_cause,omitempty"`
	LastErrorAt        time.Time       `json:"last_error_at"`
	LastConnectedAt    time.Time       `json:"last_connected_at"`
	Uptime             time.Duration   `json:"uptime"`
	Healthy            bool            `json:"healthy"`
}

// BatchHandler consumes one delivered message batch. Batches are handed over
// in arrival order, one at a time.
type BatchHandler func(ctx context.Context, msgs []transport.Message)

// Manager supervises a single transport session.
type Manager struct {
	dialer      transport.Dialer
	credentials transport.CredentialStore
	policies    Policies
	logger      *slog.Logger

	mu           sync.Mutex
	state        State
	sess         transport.Session
	connecting   bool
	attemptCount int
	retryTimer   *time.Timer
	stopped      bool
	notify       chan struct{}
	handler      BatchHandler
	runCtx       context.Context
	runCancel    context.CancelFunc

	lastOpenAt  time.Time
	lastError   string
	lastCause   transport.Cause
	lastErrorAt time.Time
	unavailable int64
	internal    int64
	timeouts    int64
	other       int64
}

// NewManager creates a manager that dials through dialer and resets pairing
// credentials through creds on version mismatches.
func NewManager(log *slog.Logger, dialer transport.Dialer, creds transport.CredentialStore, policies Policies) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		dialer:      dialer,
		credentials: creds,
		policies:    policies,
		logger:      log.With(slog.String("component", "session")),
		state:       StateIdle,
		notify:      make(chan struct{}),
	}
}

// OnBatch registers the handler for inbound message batches. Set it before
// Connect; batches arriving without a handler are dropped.
func (m *Manager) OnBatch(h BatchHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Connect starts the connect loop if it is not already running and blocks
// until the session opens, the state goes terminal, or ctx is done. The loop
// itself outlives ctx; cancellation only abandons the wait.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("session manager closed")
	}
	if m.runCtx == nil {
		m.runCtx, m.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	started := m.state == StateOpen || m.state == StateConnecting || m.connecting || m.retryTimer != nil
	if !started {
		if m.state == StateClosedTerminal {
			m.attemptCount = 0
		}
		m.state = StateConnecting
		go m.attempt()
	}
	m.mu.Unlock()

	for {
		m.mu.Lock()
		state := m.state
		cause := m.lastCause
		lastErr := m.lastError
		ch := m.notify
		m.mu.Unlock()

		switch state {
		case StateOpen:
			return nil
		case StateClosedTerminal:
			if cause == transport.CauseSessionInvalidated {
				return ErrSessionInvalidated
			}
			return fmt.Errorf("reconnect attempts exhausted: %s", lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (m *Manager) attempt() {
	m.mu.Lock()
	if m.stopped || m.connecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	ctx := m.runCtx
	if ctx == nil || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.connecting = true
	m.state = StateConnecting
	m.retryTimer = nil
	attempt := m.attemptCount
	m.mu.Unlock()

	m.logger.Info("connecting", slog.Int("attempt", attempt))
	sess, err := m.dialer.Dial(ctx)
	if err != nil {
		m.dialFailed(err)
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = sess.Close()
		return
	}
	m.sess = sess
	m.mu.Unlock()

	go m.watch(sess)
}

func (m *Manager) watch(sess transport.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case transport.EventOpen:
			m.handleOpen(sess)
		case transport.EventMessages:
			m.dispatch(ev.Messages)
		case transport.EventPairing:
			m.logger.Info("pairing required, link the device to continue", slog.String("code", ev.Pairing))
		case transport.EventClosed:
			m.sessionClosed(sess, ev.Code, ev.Reason)
		}
	}
	m.sessionClosed(sess, 0, "event stream ended")
}

func (m *Manager) handleOpen(sess transport.Session) {
	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	m.state = StateOpen
	m.connecting = false
	m.attemptCount = 0
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.lastOpenAt = time.Now()
	m.notifyLocked()
	m.mu.Unlock()
	m.logger.Info("session open")
}

// dispatch hands a batch to the handler inline so batch arrival order is
// preserved through processing.
func (m *Manager) dispatch(msgs []transport.Message) {
	m.mu.Lock()
	handler := m.handler
	ctx := m.runCtx
	m.mu.Unlock()
	if handler == nil || len(msgs) == 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	handler(ctx, msgs)
}

func (m *Manager) dialFailed(err error) {
	m.mu.Lock()
	m.connecting = false
	reason := err.Error()
	m.recordFailureLocked(transport.CauseUnknown, reason)
	m.scheduleRetryLocked(transport.CauseUnknown, reason)
}

func (m *Manager) sessionClosed(sess transport.Session, code int, reason string) {
	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	m.connecting = false
	if reason == "" {
		reason = "connection closed"
	}
	cause := transport.CauseFromCode(code)
	m.recordFailureLocked(cause, reason)
	m.scheduleRetryLocked(cause, reason)
}

func (m *Manager) recordFailureLocked(cause transport.Cause, reason string) {
	m.lastError = reason
	m.lastCause = cause
	m.lastErrorAt = time.Now()
	switch cause {
	case transport.CauseServiceUnavailable:
		m.unavailable++
	case transport.CauseInternalError:
		m.internal++
	case transport.CauseTimeout:
		m.timeouts++
	default:
		m.other++
	}
}

// scheduleRetryLocked decides what happens after a failure. m.mu must be held
// on entry and is released on every path.
func (m *Manager) scheduleRetryLocked(cause transport.Cause, reason string) {
	if m.stopped || (m.runCtx != nil && m.runCtx.Err() != nil) {
		m.mu.Unlock()
		return
	}

	switch cause {
	case transport.CauseSessionInvalidated:
		m.state = StateClosedTerminal
		m.notifyLocked()
		m.mu.Unlock()
		m.logger.Error("session invalidated, re-pairing required", slog.String("reason", reason))
		return
	case transport.CauseVersionMismatch:
		m.attemptCount = 0
		m.state = StateClosedRetrying
		m.notifyLocked()
		m.mu.Unlock()
		m.logger.Warn("protocol version mismatch, resetting credentials", slog.String("reason", reason))
		if m.credentials != nil {
			if err := m.credentials.Clear(); err != nil {
				m.logger.Warn("clear credentials failed", slog.Any("error", err))
			}
		}
		go m.attempt()
		return
	}

	policy := m.policies.forCause(cause)
	if policy.Exhausted(m.attemptCount) {
		attempts := m.attemptCount
		m.state = StateClosedTerminal
		m.notifyLocked()
		m.mu.Unlock()
		m.logger.Error("reconnect attempts exhausted",
			slog.Int("attempts", attempts),
			slog.String("cause", cause.String()),
			slog.String("reason", reason))
		return
	}
	if m.retryTimer != nil {
		m.mu.Unlock()
		return
	}

	delay := policy.Delay(m.attemptCount)
	attempt := m.attemptCount
	m.attemptCount++
	m.state = StateClosedRetrying
	m.retryTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.retryTimer = nil
		m.mu.Unlock()
		m.attempt()
	})
	m.notifyLocked()
	m.mu.Unlock()
	m.logger.Warn("session closed, reconnect scheduled",
		slog.String("cause", cause.String()),
		slog.String("reason", reason),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))
}

// notifyLocked wakes Connect waiters. m.mu must be held.
func (m *Manager) notifyLocked() {
	close(m.notify)
	m.notify = make(chan struct{})
}

// Session returns the live session while the state is open.
func (m *Manager) Session() (transport.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen || m.sess == nil {
		return nil, false
	}
	return m.sess, true
}

// SendMessage sends through the live session.
func (m *Manager) SendMessage(ctx context.Context, chatID, text string) error {
	sess, ok := m.Session()
	if !ok {
		return ErrNotConnected
	}
	return sess.SendMessage(ctx, chatID, text)
}

// React adds a reaction through the live session.
func (m *Manager) React(ctx context.Context, chatID, messageID, emoji string) error {
	sess, ok := m.Session()
	if !ok {
		return ErrNotConnected
	}
	return sess.React(ctx, chatID, messageID, emoji)
}

// Stats snapshots the manager state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{
		State:              m.state,
		AttemptCount:       m.attemptCount,
		ServiceUnavailable: m.unavailable,
		InternalErrors:     m.internal,
		Timeouts:           m.timeouts,
		OtherFailures:      m.other,
		LastError:          m.lastError,
		LastErrorCause:     m.lastCause,
		LastErrorAt:        m.lastErrorAt,
		LastConnectedAt:    m.lastOpenAt,
		Healthy:            m.state == StateOpen,
	}
	if m.state == StateOpen && !m.lastOpenAt.IsZero() {
		st.Uptime = time.Since(m.lastOpenAt)
	}
	return st
}

// Close stops the connect loop and tears down any live session.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	if m.runCancel != nil {
		m.runCancel()
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	sess := m.sess
	m.sess = nil
	m.state = StateIdle
	m.notifyLocked()
	m.mu.Unlock()

	if sess != nil {
		return sess.Close()
	}
	return nil
}
