package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrConnectionRefused = errors.New("queue connection refused, check the broker is running")
	ErrAuthentication    = errors.New("queue authentication failed, check credentials")
	ErrTimeout           = errors.New("queue operation timed out, check the broker and the network")
	ErrChannelFault      = errors.New("queue channel fault, check the queue declaration")
)

// Classify maps a broker error onto a category sentinel, keeping the
// original error wrapped.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		switch amqpErr.Code {
		case amqp.AccessRefused:
			return fmt.Errorf("%w: %w", ErrAuthentication, err)
		case amqp.NotFound, amqp.PreconditionFailed, amqp.ResourceLocked, amqp.ChannelError:
			return fmt.Errorf("%w: %w", ErrChannelFault, err)
		}
	}

	msg := strings.ToLower(err.Error())
	var netErr net.Error
	switch {
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	case strings.Contains(msg, "access refused") || strings.Contains(msg, "username or password"):
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("queue error: %w", err)
	}
}
