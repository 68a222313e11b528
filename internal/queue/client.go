// Package queue publishes recorded suggestions to a durable broker queue for
// downstream workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Payload is the message body published per suggestion.
type Payload struct {
	URL             string `json:"url"`
	Text            string `json:"text"`
	SuggestedBy     string `json:"suggestedBy"`
	SourceMessageID string `json:"sourceMessageId"`
}

// Status describes the queue as seen by the broker.
type Status struct {
	Messages  int `json:"messages"`
	Consumers int `json:"consumers"`
}

// Client is a lazy broker client. The first operation connects with bounded
// retries and declares the queue durable; a close notification from the
// broker invalidates the cached connection so the next operation redials.
type Client struct {
	url        string
	queue      string
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewClient creates a client publishing to the named queue.
func NewClient(log *slog.Logger, url, queue string, attempts int, retryDelay time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		url:        url,
		queue:      queue,
		attempts:   attempts,
		retryDelay: retryDelay,
		logger:     log.With(slog.String("component", "queue")),
	}
}

func (c *Client) channel(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		return c.ch, nil
	}
	c.conn = nil
	c.ch = nil

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		conn, err := amqp.Dial(c.url)
		if err == nil {
			var ch *amqp.Channel
			ch, err = conn.Channel()
			if err == nil {
				_, err = ch.QueueDeclare(c.queue, true, false, false, false, nil)
			}
			if err == nil {
				c.conn = conn
				c.ch = ch
				go c.watchClose(conn, ch)
				return ch, nil
			}
			_ = conn.Close()
		}
		lastErr = err
		c.logger.Warn("queue connect failed",
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

// watchClose invalidates the cached connection when the broker hangs up, so
// the next publish redials instead of failing on a dead channel.
func (c *Client) watchClose(conn *amqp.Connection, ch *amqp.Channel) {
	var reason *amqp.Error
	select {
	case reason = <-conn.NotifyClose(make(chan *amqp.Error, 1)):
	case reason = <-ch.NotifyClose(make(chan *amqp.Error, 1)):
	}
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.ch = nil
	}
	c.mu.Unlock()
	if reason != nil {
		c.logger.Warn("queue connection lost", slog.Any("error", reason))
	}
}

// Publish sends one payload as a persistent JSON message.
func (c *Client) Publish(ctx context.Context, p Payload) error {
	ch, err := c.channel(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	err = ch.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		c.invalidate()
		return Classify(err)
	}
	return nil
}

// Status inspects the queue for its current depth and consumer count.
func (c *Client) Status(ctx context.Context) (Status, error) {
	ch, err := c.channel(ctx)
	if err != nil {
		return Status{}, err
	}
	q, err := ch.QueueInspect(c.queue)
	if err != nil {
		c.invalidate()
		return Status{}, Classify(err)
	}
	return Status{Messages: q.Messages, Consumers: q.Consumers}, nil
}

// Purge drops all ready messages from the queue and returns how many were
// removed.
func (c *Client) Purge(ctx context.Context) (int, error) {
	ch, err := c.channel(ctx)
	if err != nil {
		return 0, err
	}
	n, err := ch.QueuePurge(c.queue, false)
	if err != nil {
		c.invalidate()
		return 0, Classify(err)
	}
	return n, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.ch = nil
	c.mu.Unlock()
}

// Close shuts the broker connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.ch = nil
	return err
}
