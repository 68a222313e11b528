package transport

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Close status codes delivered by the bridge when a session drops.
const (
	CodeSessionInvalidated = 401
	CodeTimedOut           = 408
	CodeVersionMismatch    = 411
	CodeInternalError      = 500
	CodeServiceUnavailable = 503
)

// Cause classifies why a transport session closed.
type Cause string

const (
	// CauseSessionInvalidated means the stored credentials were revoked.
	// Reconnecting without re-pairing would loop on the same rejection.
	CauseSessionInvalidated Cause = "session_invalidated"
	// CauseVersionMismatch means the pairing was made against an older
	// protocol version and the credentials must be reset before reconnecting.
	CauseVersionMismatch Cause = "version_mismatch"
	// CauseServiceUnavailable means the upstream service is overloaded or down.
	CauseServiceUnavailable Cause = "service_unavailable"
	// CauseInternalError means the upstream reported an internal failure.
	CauseInternalError Cause = "internal_error"
	// CauseTimeout means the session timed out.
	CauseTimeout Cause = "timeout"
	// CauseUnknown covers everything else, including raw socket drops.
	CauseUnknown Cause = "unknown"
)

func (c Cause) String() string {
	return string(c)
}

// CauseFromCode maps a close status code to its Cause.
func CauseFromCode(code int) Cause {
	switch code {
	case CodeSessionInvalidated:
		return CauseSessionInvalidated
	case CodeVersionMismatch:
		return CauseVersionMismatch
	case CodeServiceUnavailable:
		return CauseServiceUnavailable
	case CodeInternalError:
		return CauseInternalError
	case CodeTimedOut:
		return CauseTimeout
	default:
		return CauseUnknown
	}
}

// EventKind discriminates session events.
type EventKind string

const (
	EventOpen     EventKind = "open"
	EventClosed   EventKind = "closed"
	EventMessages EventKind = "messages"
	EventPairing  EventKind = "pairing"
)

// Event is one lifecycle or delivery event emitted by a session.
type Event struct {
	Kind     EventKind
	Code     int    // close status code, set for EventClosed
	Reason   string // close reason, set for EventClosed
	Pairing  string // pairing payload, set for EventPairing
	Messages []Message
}

// MessageKindText marks a plain text message payload.
const MessageKindText = "text"

// Message is one inbound chat message as delivered by the transport.
// Kind is empty when the event carried no usable content payload.
type Message struct {
	ID          string
	ChatID      string
	SenderID    string
	SenderName  string
	Kind        string
	Text        string
	TimestampMs int64
	FromSelf    bool
}

// Session is a live, event-driven transport session. Events delivers
// lifecycle and message events in arrival order; the channel is closed when
// the session ends.
type Session interface {
	SendMessage(ctx context.Context, chatID, text string) error
	React(ctx context.Context, chatID, messageID, emoji string) error
	Events() <-chan Event
	Close() error
}

// Dialer establishes transport sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// CredentialStore owns the persisted pairing credentials for the transport.
type CredentialStore interface {
	Clear() error
}

// FileCredentials clears pairing credentials persisted as files under a
// directory shared with the bridge process. Removing the directory forces a
// fresh pairing on the next connect.
type FileCredentials struct {
	Dir string
}

// Clear removes the credential directory. A missing directory is not an error.
func (f FileCredentials) Clear() error {
	dir := strings.TrimSpace(f.Dir)
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
