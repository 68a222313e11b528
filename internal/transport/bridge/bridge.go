// Package bridge implements the transport against the local websocket bridge
// that fronts the chat network. The bridge speaks a small JSON frame protocol:
// inbound frames carry session state changes, pairing payloads, and message
// batches; outbound frames carry sends and reactions.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vidsift/vidsift/internal/transport"
)

const eventBuffer = 16

// Dialer dials the bridge websocket endpoint.
type Dialer struct {
	url    string
	logger *slog.Logger
}

// NewDialer creates a dialer for the bridge at url.
func NewDialer(log *slog.Logger, url string) *Dialer {
	if log == nil {
		log = slog.Default()
	}
	return &Dialer{
		url:    url,
		logger: log.With(slog.String("component", "bridge")),
	}
}

// Dial opens a websocket to the bridge and starts the read loop. The returned
// session emits events until the socket closes.
func (d *Dialer) Dial(ctx context.Context) (transport.Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge: %w", err)
	}

	id := uuid.NewString()
	s := &session{
		id:     id,
		conn:   conn,
		logger: d.logger.With(slog.String("session_id", id)),
		events: make(chan transport.Event, eventBuffer),
	}
	go s.readLoop()
	return s, nil
}

type session struct {
	id      string
	conn    *websocket.Conn
	logger  *slog.Logger
	events  chan transport.Event
	writeMu sync.Mutex
	closed  atomic.Bool
}

// frame is the bridge wire format, shared by both directions. Unused fields
// stay zero and are omitted on the wire.
type frame struct {
	Type      string         `json:"type"`
	Status    string         `json:"status,omitempty"`
	Code      int            `json:"code,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	QR        string         `json:"qr,omitempty"`
	Messages  []frameMessage `json:"messages,omitempty"`
	ChatID    string         `json:"chat_id,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Emoji     string         `json:"emoji,omitempty"`
	Text      string         `json:"text,omitempty"`
}

type frameMessage struct {
	ID          string `json:"id"`
	ChatID      string `json:"chat_id"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	Kind        string `json:"kind"`
	Text        string `json:"text"`
	TimestampMs int64  `json:"timestamp_ms"`
	FromSelf    bool   `json:"from_self"`
}

func (s *session) readLoop() {
	defer close(s.events)
	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if !s.closed.Load() {
				code := 0
				if ce, ok := err.(*websocket.CloseError); ok {
					code = ce.Code
				}
				s.logger.Warn("bridge socket closed", slog.Any("error", err))
				s.events <- transport.Event{Kind: transport.EventClosed, Code: code, Reason: err.Error()}
			}
			return
		}
		if ev, ok := decodeFrame(f); ok {
			s.events <- ev
		} else {
			s.logger.Debug("unknown bridge frame skipped", slog.String("type", f.Type))
		}
	}
}

func decodeFrame(f frame) (transport.Event, bool) {
	switch f.Type {
	case "state":
		switch f.Status {
		case "open":
			return transport.Event{Kind: transport.EventOpen}, true
		case "closed":
			return transport.Event{Kind: transport.EventClosed, Code: f.Code, Reason: f.Reason}, true
		}
		return transport.Event{}, false
	case "messages":
		msgs := make([]transport.Message, 0, len(f.Messages))
		for _, fm := range f.Messages {
			msgs = append(msgs, transport.Message{
				ID:          fm.ID,
				ChatID:      fm.ChatID,
				SenderID:    fm.SenderID,
				SenderName:  fm.SenderName,
				Kind:        fm.Kind,
				Text:        fm.Text,
				TimestampMs: fm.TimestampMs,
				FromSelf:    fm.FromSelf,
			})
		}
		return transport.Event{Kind: transport.EventMessages, Messages: msgs}, true
	case "pairing":
		return transport.Event{Kind: transport.EventPairing, Pairing: f.QR}, true
	}
	return transport.Event{}, false
}

func (s *session) SendMessage(ctx context.Context, chatID, text string) error {
	return s.write(ctx, frame{Type: "send", ChatID: chatID, Text: text})
}

func (s *session) React(ctx context.Context, chatID, messageID, emoji string) error {
	return s.write(ctx, frame{Type: "react", ChatID: chatID, MessageID: messageID, Emoji: emoji})
}

func (s *session) write(ctx context.Context, f frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return fmt.Errorf("bridge session closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	return nil
}

func (s *session) Events() <-chan transport.Event {
	return s.events
}

// Close tears down the socket. The read loop drains and closes the event
// channel once the socket errors out.
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}
