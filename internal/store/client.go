// Package store persists video suggestions in a document database. Writes
// are idempotent per source message through a unique index, so replays and
// duplicate deliveries cannot create duplicate records.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client is a lazy document store client. The first operation connects with
// bounded retries; later operations reuse the cached connection and reconnect
// when the server went away in between.
type Client struct {
	uri        string
	database   string
	collection string
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	client *mongo.Client
}

// NewClient creates a client for the given deployment. attempts bounds the
// connection retries per operation and retryDelay spaces them out.
func NewClient(log *slog.Logger, uri, database, collection string, attempts int, retryDelay time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		uri:        uri,
		database:   database,
		collection: collection,
		attempts:   attempts,
		retryDelay: retryDelay,
		logger:     log.With(slog.String("component", "store")),
	}
}

// connect returns a live collection handle, dialing if needed. Concurrent
// callers serialize here so only one dial happens at a time.
func (c *Client) connect(ctx context.Context) (*mongo.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		if err := c.client.Ping(ctx, nil); err == nil {
			return c.client.Database(c.database).Collection(c.collection), nil
		}
		c.logger.Warn("cached connection is stale, reconnecting")
		_ = c.client.Disconnect(context.WithoutCancel(ctx))
		c.client = nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri))
		if err == nil {
			err = client.Ping(ctx, nil)
			if err == nil {
				err = c.ensureIndexes(ctx, client)
			}
			if err == nil {
				c.client = client
				return client.Database(c.database).Collection(c.collection), nil
			}
			_ = client.Disconnect(context.WithoutCancel(ctx))
		}
		lastErr = err
		c.logger.Warn("document store connect failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.attempts),
			slog.Any("error", err))
		if attempt < c.attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, Classify(lastErr)
}

// ensureIndexes creates the unique source message index. Without it the
// duplicate guard does not hold, so index failure fails the connection.
func (c *Client) ensureIndexes(ctx context.Context, client *mongo.Client) error {
	coll := client.Database(c.database).Collection(c.collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sourceMessageId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensure unique index on sourceMessageId: %w", err)
	}
	return nil
}

// Save inserts the suggestion and returns it with its assigned ID. If a
// document for the same source message already exists, the existing document
// is returned instead and no new one is written.
func (c *Client) Save(ctx context.Context, s VideoSuggestion) (VideoSuggestion, error) {
	coll, err := c.connect(ctx)
	if err != nil {
		return VideoSuggestion{}, err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}

	res, err := coll.InsertOne(ctx, s)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, findErr := c.FindBySourceMessageID(ctx, s.SourceMessageID)
			if findErr != nil {
				return VideoSuggestion{}, fmt.Errorf("load existing suggestion: %w", findErr)
			}
			return existing, nil
		}
		return VideoSuggestion{}, Classify(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		s.ID = id
	}
	return s, nil
}

// MarkPublished flags the suggestion for sourceMessageID as handed to the
// queue.
func (c *Client) MarkPublished(ctx context.Context, sourceMessageID string) error {
	coll, err := c.connect(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := coll.UpdateOne(ctx,
		bson.M{"sourceMessageId": sourceMessageID},
		bson.M{"$set": bson.M{"publishedToQueue": true, "publishedAt": now}},
	)
	if err != nil {
		return Classify(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("no suggestion found for source message %s", sourceMessageID)
	}
	return nil
}

// FindBySourceMessageID loads the suggestion recorded for a source message.
func (c *Client) FindBySourceMessageID(ctx context.Context, sourceMessageID string) (VideoSuggestion, error) {
	coll, err := c.connect(ctx)
	if err != nil {
		return VideoSuggestion{}, err
	}
	var out VideoSuggestion
	if err := coll.FindOne(ctx, bson.M{"sourceMessageId": sourceMessageID}).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return VideoSuggestion{}, fmt.Errorf("no suggestion found for source message %s", sourceMessageID)
		}
		return VideoSuggestion{}, Classify(err)
	}
	return out, nil
}

// FindUnpublished lists suggestions that never made it to the queue, oldest
// first. A limit of zero or less means no limit.
func (c *Client) FindUnpublished(ctx context.Context, limit int64) ([]VideoSuggestion, error) {
	return c.find(ctx, bson.M{"publishedToQueue": false}, limit)
}

// FindAll lists recorded suggestions, oldest first. A limit of zero or less
// means no limit.
func (c *Client) FindAll(ctx context.Context, limit int64) ([]VideoSuggestion, error) {
	return c.find(ctx, bson.M{}, limit)
}

func (c *Client) find(ctx context.Context, filter bson.M, limit int64) ([]VideoSuggestion, error) {
	coll, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, Classify(err)
	}
	defer cursor.Close(ctx)
	var out []VideoSuggestion
	if err := cursor.All(ctx, &out); err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

// CountSuggestions counts all recorded suggestions.
func (c *Client) CountSuggestions(ctx context.Context) (int64, error) {
	coll, err := c.connect(ctx)
	if err != nil {
		return 0, err
	}
	count, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, Classify(err)
	}
	return count, nil
}

// Ping checks the connection, dialing if needed.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.connect(ctx)
	return err
}

// Close disconnects the cached client, if any.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}
