package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vidsift/vidsift/internal/transport"
)

var upgrader = websocket.Upgrader{}

func wsURL(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, sess transport.Session) transport.Event {
	t.Helper()
	select {
	case ev, ok := <-sess.Events():
		if !ok {
			t.Fatalf("event channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return transport.Event{}
}

func TestDialDeliversEvents(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(frame{Type: "state", Status: "open"})
		_ = conn.WriteJSON(frame{Type: "pairing", QR: "scan-me"})
		_ = conn.WriteJSON(frame{Type: "messages", Messages: []frameMessage{{
			ID:          "wamid.1",
			ChatID:      "chat@g.us",
			SenderID:    "sender@s.net",
			SenderName:  "Dana",
			Kind:        "text",
			Text:        "hello",
			TimestampMs: 1700000000000,
		}}})
		// Hold the socket open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	d := NewDialer(nil, wsURL(t, srv))
	sess, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer sess.Close()

	if ev := nextEvent(t, sess); ev.Kind != transport.EventOpen {
		t.Fatalf("expected open event, got %q", ev.Kind)
	}
	if ev := nextEvent(t, sess); ev.Kind != transport.EventPairing || ev.Pairing != "scan-me" {
		t.Fatalf("expected pairing event, got kind=%q pairing=%q", ev.Kind, ev.Pairing)
	}

	ev := nextEvent(t, sess)
	if ev.Kind != transport.EventMessages {
		t.Fatalf("expected messages event, got %q", ev.Kind)
	}
	if len(ev.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ev.Messages))
	}
	msg := ev.Messages[0]
	if msg.ID != "wamid.1" || msg.ChatID != "chat@g.us" || msg.Text != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.SenderName != "Dana" || msg.Kind != "text" || msg.TimestampMs != 1700000000000 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestDialEmitsClosedOnServerDrop(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "maintenance"),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}))
	defer srv.Close()

	d := NewDialer(nil, wsURL(t, srv))
	sess, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer sess.Close()

	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				t.Fatalf("channel closed without a closed event")
			}
			if ev.Kind == transport.EventClosed {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for closed event")
		}
	}
}

func TestSendMessageWritesFrame(t *testing.T) {
	t.Parallel()

	got := make(chan frame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var f frame
		if err := conn.ReadJSON(&f); err == nil {
			got <- f
		}
	}))
	defer srv.Close()

	d := NewDialer(nil, wsURL(t, srv))
	sess, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer sess.Close()

	if err := sess.SendMessage(context.Background(), "chat@g.us", "status ready"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	select {
	case f := <-got:
		if f.Type != "send" || f.ChatID != "chat@g.us" || f.Text != "status ready" {
			t.Fatalf("unexpected frame: %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

func TestSendMessageAfterClose(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	d := NewDialer(nil, wsURL(t, srv))
	sess, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := sess.SendMessage(context.Background(), "chat@g.us", "late"); err == nil {
		t.Fatalf("expected error sending on closed session")
	}
}

func TestDecodeFrameSkipsUnknownTypes(t *testing.T) {
	t.Parallel()

	if _, ok := decodeFrame(frame{Type: "presence"}); ok {
		t.Fatalf("expected presence frame to be skipped")
	}
	if _, ok := decodeFrame(frame{Type: "state", Status: "connecting"}); ok {
		t.Fatalf("expected intermediate state frame to be skipped")
	}
}
