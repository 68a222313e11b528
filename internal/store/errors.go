package store

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Connection failures classified into actionable categories so logs and the
// status report can say what to check instead of dumping driver internals.
var (
	ErrTLS             = errors.New("document store TLS handshake failed, check certificates")
	ErrAuthentication  = errors.New("document store authentication failed, check credentials")
	ErrServerSelection = errors.New("document store server selection timed out, check the deployment is reachable")
	ErrNetworkTimeout  = errors.New("document store unreachable, check the network and that the server is running")
)

// Classify maps a driver error onto one of the category sentinels, keeping
// the original error wrapped. Unrecognized errors pass through wrapped only.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tls") || strings.Contains(msg, "x509") || strings.Contains(msg, "certificate"):
		return fmt.Errorf("%w: %w", ErrTLS, err)
	case strings.Contains(msg, "auth") || strings.Contains(msg, "sasl") || strings.Contains(msg, "credential"):
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	case strings.Contains(msg, "server selection"):
		return fmt.Errorf("%w: %w", ErrServerSelection, err)
	case mongo.IsTimeout(err) || mongo.IsNetworkError(err):
		return fmt.Errorf("%w: %w", ErrNetworkTimeout, err)
	case strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no reachable servers") ||
		strings.Contains(msg, "network"):
		return fmt.Errorf("%w: %w", ErrNetworkTimeout, err)
	default:
		return fmt.Errorf("document store error: %w", err)
	}
}
