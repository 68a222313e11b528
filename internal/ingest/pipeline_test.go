package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vidsift/vidsift/internal/queue"
	"github.com/vidsift/vidsift/internal/store"
	"github.com/vidsift/vidsift/internal/transport"
)

const monitoredChannel = "watch@g.us"

type fakeStore struct {
	saveFunc          func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error)
	markPublishedFunc func(ctx context.Context, sourceMessageID string) error
}

func (f *fakeStore) Save(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
	if f.saveFunc != nil {
		return f.saveFunc(ctx, s)
	}
	return s, nil
}

func (f *fakeStore) MarkPublished(ctx context.Context, sourceMessageID string) error {
	if f.markPublishedFunc != nil {
		return f.markPublishedFunc(ctx, sourceMessageID)
	}
	return nil
}

type fakePublisher struct {
	publishFunc func(ctx context.Context, p queue.Payload) error
}

func (f *fakePublisher) Publish(ctx context.Context, p queue.Payload) error {
	if f.publishFunc != nil {
		return f.publishFunc(ctx, p)
	}
	return nil
}

type fakeResponder struct {
	sendFunc  func(ctx context.Context, chatID, text string) error
	reactFunc func(ctx context.Context, chatID, messageID, emoji string) error
}

func (f *fakeResponder) SendMessage(ctx context.Context, chatID, text string) error {
	if f.sendFunc != nil {
		return f.sendFunc(ctx, chatID, text)
	}
	return nil
}

func (f *fakeResponder) React(ctx context.Context, chatID, messageID, emoji string) error {
	if f.reactFunc != nil {
		return f.reactFunc(ctx, chatID, messageID, emoji)
	}
	return nil
}

type fakeReporter struct {
	reportFunc func(ctx context.Context) string
}

func (f *fakeReporter) Report(ctx context.Context) string {
	if f.reportFunc != nil {
		return f.reportFunc(ctx)
	}
	return "all good"
}

func textMessage(id, text string) transport.Message {
	return transport.Message{
		ID:          id,
		ChatID:      monitoredChannel,
		SenderID:    "dana@s.net",
		SenderName:  "Dana",
		Kind:        transport.MessageKindText,
		Text:        text,
		TimestampMs: 1700000000000,
	}
}

func TestHandleBatchRecordsAndPublishes(t *testing.T) {
	t.Parallel()

	var savedSuggestion store.VideoSuggestion
	saves := 0
	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		saves++
		savedSuggestion = s
		return s, nil
	}}

	var published queue.Payload
	publishes := 0
	pub := &fakePublisher{publishFunc: func(ctx context.Context, p queue.Payload) error {
		publishes++
		published = p
		return nil
	}}

	marked := ""
	st.markPublishedFunc = func(ctx context.Context, sourceMessageID string) error {
		marked = sourceMessageID
		return nil
	}

	reactions := 0
	resp := &fakeResponder{reactFunc: func(ctx context.Context, chatID, messageID, emoji string) error {
		reactions++
		if emoji != successReactionEmoji {
			t.Errorf("expected success reaction, got %q", emoji)
		}
		if chatID != monitoredChannel || messageID != "wamid.1" {
			t.Errorf("reaction targeted chat=%q message=%q", chatID, messageID)
		}
		return nil
	}}

	p := NewPipeline(nil, st, pub, resp, NewDedupCache(time.Minute), monitoredChannel)
	p.HandleBatch(context.Background(), []transport.Message{
		textMessage("wamid.1", "check this out https://youtu.be/abc123 !"),
	})

	if saves != 1 {
		t.Fatalf("expected 1 save, got %d", saves)
	}
	if savedSuggestion.URL != "https://youtu.be/abc123" {
		t.Fatalf("unexpected url %q", savedSuggestion.URL)
	}
	if savedSuggestion.Text != "check this out https://youtu.be/abc123 !" {
		t.Fatalf("unexpected text %q", savedSuggestion.Text)
	}
	if savedSuggestion.SuggestedBy != "Dana" {
		t.Fatalf("unexpected suggestedBy %q", savedSuggestion.SuggestedBy)
	}
	if savedSuggestion.SourceMessageID != "wamid.1" {
		t.Fatalf("unexpected sourceMessageId %q", savedSuggestion.SourceMessageID)
	}
	if savedSuggestion.ChannelID != monitoredChannel {
		t.Fatalf("unexpected channelId %q", savedSuggestion.ChannelID)
	}
	if savedSuggestion.CreatedAtEpochMs != 1700000000000 {
		t.Fatalf("unexpected createdAtEpochMs %d", savedSuggestion.CreatedAtEpochMs)
	}
	if savedSuggestion.Status != store.StatusPending {
		t.Fatalf("unexpected status %q", savedSuggestion.Status)
	}

	if publishes != 1 {
		t.Fatalf("expected 1 publish, got %d", publishes)
	}
	if published.URL != savedSuggestion.URL ||
		published.Text != savedSuggestion.Text ||
		published.SuggestedBy != savedSuggestion.SuggestedBy ||
		published.SourceMessageID != savedSuggestion.SourceMessageID {
		t.Fatalf("payload does not match saved suggestion: %+v", published)
	}
	if marked != "wamid.1" {
		t.Fatalf("expected mark published for wamid.1, got %q", marked)
	}
	if reactions != 1 {
		t.Fatalf("expected 1 reaction, got %d", reactions)
	}
}

func TestHandleBatchSkipsDuplicates(t *testing.T) {
	t.Parallel()

	saves := 0
	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		saves++
		return s, nil
	}}

	p := NewPipeline(nil, st, &fakePublisher{}, &fakeResponder{}, NewDedupCache(time.Minute), monitoredChannel)
	msg := textMessage("wamid.1", "https://youtu.be/abc123")
	p.HandleBatch(context.Background(), []transport.Message{msg, msg})
	p.HandleBatch(context.Background(), []transport.Message{msg})

	if saves != 1 {
		t.Fatalf("expected 1 save, got %d", saves)
	}
}

func TestHandleBatchIgnoresOtherChannels(t *testing.T) {
	t.Parallel()

	saves := 0
	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		saves++
		return s, nil
	}}
	reactions := 0
	resp := &fakeResponder{reactFunc: func(ctx context.Context, chatID, messageID, emoji string) error {
		reactions++
		return nil
	}}

	p := NewPipeline(nil, st, &fakePublisher{}, resp, NewDedupCache(time.Minute), monitoredChannel)
	msg := textMessage("wamid.1", "https://youtu.be/abc123")
	msg.ChatID = "other@g.us"
	p.HandleBatch(context.Background(), []transport.Message{msg})

	if saves != 0 {
		t.Fatalf("expected no saves, got %d", saves)
	}
	if reactions != 0 {
		t.Fatalf("expected no reactions, got %d", reactions)
	}
}

func TestHandleBatchSkipsNonTextMessages(t *testing.T) {
	t.Parallel()

	saves := 0
	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		saves++
		return s, nil
	}}

	p := NewPipeline(nil, st, &fakePublisher{}, &fakeResponder{}, NewDedupCache(time.Minute), monitoredChannel)

	image := textMessage("wamid.1", "")
	image.Kind = "image"
	empty := textMessage("wamid.2", "https://youtu.be/abc123")
	empty.Kind = ""
	own := textMessage("wamid.3", "https://youtu.be/abc123")
	own.FromSelf = true
	blank := textMessage("wamid.4", "   ")

	p.HandleBatch(context.Background(), []transport.Message{image, empty, own, blank})

	if saves != 0 {
		t.Fatalf("expected no saves, got %d", saves)
	}
}

func TestHandleBatchIgnoresTextWithoutLink(t *testing.T) {
	t.Parallel()

	saves := 0
	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		saves++
		return s, nil
	}}

	p := NewPipeline(nil, st, &fakePublisher{}, &fakeResponder{}, NewDedupCache(time.Minute), monitoredChannel)
	p.HandleBatch(context.Background(), []transport.Message{
		textMessage("wamid.1", "anyone seen that clip?"),
	})

	if saves != 0 {
		t.Fatalf("expected no saves, got %d", saves)
	}
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	saves := 0
	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		saves++
		return s, nil
	}}
	sentTo := ""
	sentText := ""
	resp := &fakeResponder{sendFunc: func(ctx context.Context, chatID, text string) error {
		sentTo = chatID
		sentText = text
		return nil
	}}

	p := NewPipeline(nil, st, &fakePublisher{}, resp, NewDedupCache(time.Minute), monitoredChannel)
	p.SetStatusToken("status")
	p.SetReporter(&fakeReporter{reportFunc: func(ctx context.Context) string {
		return "vidsift status\nstore: connected"
	}})

	p.HandleBatch(context.Background(), []transport.Message{
		textMessage("wamid.1", "  STATUS "),
	})

	if sentTo != monitoredChannel {
		t.Fatalf("expected report sent to %q, got %q", monitoredChannel, sentTo)
	}
	if !strings.Contains(sentText, "vidsift status") {
		t.Fatalf("unexpected report text %q", sentText)
	}
	if saves != 0 {
		t.Fatalf("status command must not be recorded, got %d saves", saves)
	}
}

func TestSaveFailureSkipsPublishAndNotifiesOperator(t *testing.T) {
	t.Parallel()

	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		return store.VideoSuggestion{}, fmt.Errorf("document store unreachable")
	}}
	publishes := 0
	pub := &fakePublisher{publishFunc: func(ctx context.Context, p queue.Payload) error {
		publishes++
		return nil
	}}

	var sentTo []string
	var sentText []string
	reactEmoji := ""
	resp := &fakeResponder{
		sendFunc: func(ctx context.Context, chatID, text string) error {
			sentTo = append(sentTo, chatID)
			sentText = append(sentText, text)
			return nil
		},
		reactFunc: func(ctx context.Context, chatID, messageID, emoji string) error {
			reactEmoji = emoji
			return nil
		},
	}

	p := NewPipeline(nil, st, pub, resp, NewDedupCache(time.Minute), monitoredChannel)
	p.SetOperatorID("operator@s.net")
	p.HandleBatch(context.Background(), []transport.Message{
		textMessage("wamid.1", "https://youtu.be/abc123"),
	})

	if publishes != 0 {
		t.Fatalf("expected no publish after failed save, got %d", publishes)
	}
	if reactEmoji != failureReactionEmoji {
		t.Fatalf("expected failure reaction, got %q", reactEmoji)
	}
	if len(sentTo) != 1 || sentTo[0] != "operator@s.net" {
		t.Fatalf("expected operator notification, got %v", sentTo)
	}
	if !strings.Contains(sentText[0], "document store unreachable") {
		t.Fatalf("expected the cause in the notification, got %q", sentText[0])
	}
}

func TestPublishFailureLeavesSuggestionUnpublished(t *testing.T) {
	t.Parallel()

	marks := 0
	st := &fakeStore{markPublishedFunc: func(ctx context.Context, sourceMessageID string) error {
		marks++
		return nil
	}}
	pub := &fakePublisher{publishFunc: func(ctx context.Context, p queue.Payload) error {
		return fmt.Errorf("queue connection refused")
	}}
	reactEmoji := ""
	resp := &fakeResponder{reactFunc: func(ctx context.Context, chatID, messageID, emoji string) error {
		reactEmoji = emoji
		return nil
	}}

	p := NewPipeline(nil, st, pub, resp, NewDedupCache(time.Minute), monitoredChannel)
	p.HandleBatch(context.Background(), []transport.Message{
		textMessage("wamid.1", "https://youtu.be/abc123"),
	})

	if marks != 0 {
		t.Fatalf("expected no mark after failed publish, got %d", marks)
	}
	if reactEmoji != successReactionEmoji {
		t.Fatalf("recorded suggestion still gets the success reaction, got %q", reactEmoji)
	}
}

func TestMarkPublishedFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	st := &fakeStore{markPublishedFunc: func(ctx context.Context, sourceMessageID string) error {
		return fmt.Errorf("write conflict")
	}}
	reactEmoji := ""
	resp := &fakeResponder{reactFunc: func(ctx context.Context, chatID, messageID, emoji string) error {
		reactEmoji = emoji
		return nil
	}}

	p := NewPipeline(nil, st, &fakePublisher{}, resp, NewDedupCache(time.Minute), monitoredChannel)
	p.HandleBatch(context.Background(), []transport.Message{
		textMessage("wamid.1", "https://youtu.be/abc123"),
	})

	if reactEmoji != successReactionEmoji {
		t.Fatalf("expected success reaction, got %q", reactEmoji)
	}
}

func TestAlreadyPublishedSuggestionNotRepublished(t *testing.T) {
	t.Parallel()

	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		s.PublishedToQueue = true
		return s, nil
	}}
	publishes := 0
	pub := &fakePublisher{publishFunc: func(ctx context.Context, p queue.Payload) error {
		publishes++
		return nil
	}}

	p := NewPipeline(nil, st, pub, &fakeResponder{}, NewDedupCache(time.Minute), monitoredChannel)
	p.HandleBatch(context.Background(), []transport.Message{
		textMessage("wamid.1", "https://youtu.be/abc123"),
	})

	if publishes != 0 {
		t.Fatalf("expected no republish, got %d", publishes)
	}
}

func TestReactionFailureDoesNotBlockBatch(t *testing.T) {
	t.Parallel()

	saves := 0
	st := &fakeStore{saveFunc: func(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error) {
		saves++
		return s, nil
	}}
	resp := &fakeResponder{reactFunc: func(ctx context.Context, chatID, messageID, emoji string) error {
		return fmt.Errorf("reaction rejected")
	}}

	p := NewPipeline(nil, st, &fakePublisher{}, resp, NewDedupCache(time.Minute), monitoredChannel)
	p.HandleBatch(context.Background(), []transport.Message{
		textMessage("wamid.1", "https://youtu.be/abc123"),
		textMessage("wamid.2", "https://youtu.be/def456"),
	})

	if saves != 2 {
		t.Fatalf("expected both messages processed, got %d saves", saves)
	}
}
