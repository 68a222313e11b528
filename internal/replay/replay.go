// Package replay re-drives recorded suggestions into the queue. It backs
// both the replay CLI command and the scheduled reconciler that picks up
// suggestions whose first publish failed.
package replay

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vidsift/vidsift/internal/queue"
	"github.com/vidsift/vidsift/internal/store"
)

// Store is the document store surface replay reads from.
type Store interface {
	FindUnpublished(ctx context.Context, limit int64) ([]store.VideoSuggestion, error)
	FindAll(ctx context.Context, limit int64) ([]store.VideoSuggestion, error)
	MarkPublished(ctx context.Context, sourceMessageID string) error
}

// Publisher hands suggestions to the queue.
type Publisher interface {
	Publish(ctx context.Context, p queue.Payload) error
}

// Summary is the outcome of one replay run.
type Summary struct {
	RunID     string `json:"run_id"`
	Scanned   int    `json:"scanned"`
	Published int    `json:"published"`
	Failed    int    `json:"failed"`
}

// Service republishes recorded suggestions.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// NewService creates a replay service.
func NewService(log *slog.Logger, st Store, pub Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     st,
		publisher: pub,
		logger:    log.With(slog.String("component", "replay")),
	}
}

// Run publishes pending suggestions. With all set, every recorded suggestion
// is republished regardless of its published flag; otherwise only
// unpublished ones go out. limit caps the batch, zero or less means no cap.
func (s *Service) Run(ctx context.Context, all bool, limit int64) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}

	var (
		suggestions []store.VideoSuggestion
		err         error
	)
	if all {
		suggestions, err = s.store.FindAll(ctx, limit)
	} else {
		suggestions, err = s.store.FindUnpublished(ctx, limit)
	}
	if err != nil {
		return summary, err
	}
	summary.Scanned = len(suggestions)

	for _, suggestion := range suggestions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		payload := queue.Payload{
			URL:             suggestion.URL,
			Text:            suggestion.Text,
			SuggestedBy:     suggestion.SuggestedBy,
			SourceMessageID: suggestion.SourceMessageID,
		}
		if err := s.publisher.Publish(ctx, payload); err != nil {
			summary.Failed++
			s.logger.Warn("replay publish failed",
				slog.String("run_id", summary.RunID),
				slog.String("message_id", suggestion.SourceMessageID),
				slog.Any("error", err))
			continue
		}
		summary.Published++
		if err := s.store.MarkPublished(ctx, suggestion.SourceMessageID); err != nil {
			s.logger.Warn("mark published failed",
				slog.String("run_id", summary.RunID),
				slog.String("message_id", suggestion.SourceMessageID),
				slog.Any("error", err))
		}
	}

	s.logger.Info("replay run complete",
		slog.String("run_id", summary.RunID),
		slog.Int("scanned", summary.Scanned),
		slog.Int("published", summary.Published),
		slog.Int("failed", summary.Failed))
	return summary, nil
}
