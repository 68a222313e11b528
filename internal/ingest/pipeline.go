// Package ingest turns inbound chat messages into recorded video
// suggestions. Messages flow through a fixed gate order: duplicates, then
// channel authorization, then content checks, then the status command, then
// link extraction. Only messages that clear every gate touch storage.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vidsift/vidsift/internal/extract"
	"github.com/vidsift/vidsift/internal/queue"
	"github.com/vidsift/vidsift/internal/store"
	"github.com/vidsift/vidsift/internal/transport"
)

const (
	successReactionEmoji = "✅"
	failureReactionEmoji = "⚠️"
)

// SuggestionStore records suggestions durably.
type SuggestionStore interface {
	Save(ctx context.Context, s store.VideoSuggestion) (store.VideoSuggestion, error)
	MarkPublished(ctx context.Context, sourceMessageID string) error
}

// Publisher hands recorded suggestions to the queue.
type Publisher interface {
	Publish(ctx context.Context, p queue.Payload) error
}

// Responder sends feedback into the chat.
type Responder interface {
	SendMessage(ctx context.Context, chatID, text string) error
	React(ctx context.Context, chatID, messageID, emoji string) error
}

// StatusReporter builds the status report text.
type StatusReporter interface {
	Report(ctx context.Context) string
}

// Pipeline processes inbound message batches from the monitored channel.
type Pipeline struct {
	store       SuggestionStore
	publisher   Publisher
	responder   Responder
	reporter    StatusReporter
	dedup       *DedupCache
	channelID   string
	operatorID  string
	statusToken string
	logger      *slog.Logger
}

// NewPipeline creates a pipeline watching channelID.
func NewPipeline(log *slog.Logger, st SuggestionStore, pub Publisher, resp Responder, dedup *DedupCache, channelID string) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if dedup == nil {
		dedup = NewDedupCache(0)
	}
	return &Pipeline{
		store:     st,
		publisher: pub,
		responder: resp,
		dedup:     dedup,
		channelID: channelID,
		logger:    log.With(slog.String("component", "ingest")),
	}
}

// SetReporter wires the status report used for the status command.
func (p *Pipeline) SetReporter(r StatusReporter) {
	p.reporter = r
}

// SetOperatorID sets the chat handle notified about persistent failures.
func (p *Pipeline) SetOperatorID(id string) {
	p.operatorID = id
}

// SetStatusToken sets the trigger word for the status command.
func (p *Pipeline) SetStatusToken(token string) {
	p.statusToken = token
}

// HandleBatch processes the messages of one delivery batch in order.
func (p *Pipeline) HandleBatch(ctx context.Context, msgs []transport.Message) {
	for _, msg := range msgs {
		p.handleMessage(ctx, msg)
	}
}

func (p *Pipeline) handleMessage(ctx context.Context, msg transport.Message) {
	if msg.Kind == "" || msg.FromSelf {
		return
	}
	if p.dedup.Seen(msg.ChatID, msg.ID) {
		p.logger.Debug("duplicate message skipped", slog.String("message_id", msg.ID))
		return
	}
	if msg.ChatID != p.channelID {
		return
	}
	if msg.Kind != transport.MessageKindText {
		p.logger.Info("unsupported message kind skipped",
			slog.String("message_id", msg.ID),
			slog.String("kind", msg.Kind))
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if p.statusToken != "" && strings.EqualFold(text, p.statusToken) {
		p.sendStatusReport(ctx, msg)
		return
	}

	match, ok := extract.FirstLink(text)
	if !ok {
		return
	}
	p.processSuggestion(ctx, msg, match)
}

func (p *Pipeline) processSuggestion(ctx context.Context, msg transport.Message, match extract.Match) {
	suggestion := store.VideoSuggestion{
		URL:              match.URL,
		Text:             msg.Text,
		SuggestedBy:      msg.SenderName,
		SourceMessageID:  msg.ID,
		ChannelID:        msg.ChatID,
		CreatedAtEpochMs: msg.TimestampMs,
		Status:           store.StatusPending,
	}

	saved, err := p.store.Save(ctx, suggestion)
	if err != nil {
		p.logger.Error("record suggestion failed",
			slog.String("message_id", msg.ID),
			slog.String("url", match.URL),
			slog.Any("error", err))
		p.react(ctx, msg, failureReactionEmoji)
		p.notifyOperator(ctx, fmt.Sprintf("recording a suggestion failed (message %s): %v", msg.ID, err))
		return
	}

	if saved.PublishedToQueue {
		// Redelivered after the dedup window: the record exists and already
		// reached the queue.
		p.logger.Debug("suggestion already recorded and published",
			slog.String("message_id", saved.SourceMessageID))
		p.react(ctx, msg, successReactionEmoji)
		return
	}

	p.logger.Info("suggestion recorded",
		slog.String("message_id", saved.SourceMessageID),
		slog.String("url", saved.URL),
		slog.String("platform", match.Platform),
		slog.String("suggested_by", saved.SuggestedBy))

	if err := p.publisher.Publish(ctx, queue.Payload{
		URL:             saved.URL,
		Text:            saved.Text,
		SuggestedBy:     saved.SuggestedBy,
		SourceMessageID: saved.SourceMessageID,
	}); err != nil {
		p.logger.Warn("publish failed, suggestion left for replay",
			slog.String("message_id", saved.SourceMessageID),
			slog.Any("error", err))
	} else if err := p.store.MarkPublished(ctx, saved.SourceMessageID); err != nil {
		p.logger.Warn("mark published failed",
			slog.String("message_id", saved.SourceMessageID),
			slog.Any("error", err))
	}

	p.react(ctx, msg, successReactionEmoji)
}

func (p *Pipeline) sendStatusReport(ctx context.Context, msg transport.Message) {
	if p.reporter == nil || p.responder == nil {
		return
	}
	report := p.reporter.Report(ctx)
	if err := p.responder.SendMessage(ctx, msg.ChatID, report); err != nil {
		p.logger.Warn("send status report failed", slog.Any("error", err))
	}
}

// react is best effort: reaction failures never affect the recorded
// suggestion.
func (p *Pipeline) react(ctx context.Context, msg transport.Message, emoji string) {
	if p.responder == nil {
		return
	}
	if err := p.responder.React(ctx, msg.ChatID, msg.ID, emoji); err != nil {
		p.logger.Warn("reaction failed",
			slog.String("message_id", msg.ID),
			slog.Any("error", err))
	}
}

func (p *Pipeline) notifyOperator(ctx context.Context, text string) {
	if p.responder == nil || p.operatorID == "" {
		return
	}
	if err := p.responder.SendMessage(ctx, p.operatorID, text); err != nil {
		p.logger.Warn("notify operator failed", slog.Any("error", err))
	}
}
