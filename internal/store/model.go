package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status tracks a suggestion through the downstream processing lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// VideoSuggestion is one extracted video link recorded for processing.
// SourceMessageID carries a unique index so a redelivered chat message can
// never produce a second document.
type VideoSuggestion struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	URL              string             `bson:"url" json:"url"`
	Text             string             `bson:"text" json:"text"`
	SuggestedBy      string             `bson:"suggestedBy" json:"suggestedBy"`
	SourceMessageID  string             `bson:"sourceMessageId" json:"sourceMessageId"`
	ChannelID        string             `bson:"channelId" json:"channelId"`
	CreatedAtEpochMs int64              `bson:"createdAtEpochMs" json:"createdAtEpochMs"`
	Status           Status             `bson:"status" json:"status"`
	PublishedToQueue bool               `bson:"publishedToQueue" json:"publishedToQueue"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	PublishedAt      *time.Time         `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
}
