package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultDedupRetention = 5 * time.Minute
	defaultEvictionPeriod = time.Minute
)

// DedupCache remembers recently processed message IDs so redelivered
// messages are dropped instead of reprocessed. Entries expire after the
// retention window.
type DedupCache struct {
	retention time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewDedupCache creates a cache with the given retention window.
func NewDedupCache(retention time.Duration) *DedupCache {
	if retention <= 0 {
		retention = defaultDedupRetention
	}
	return &DedupCache{
		retention: retention,
		seen:      make(map[string]time.Time),
		now:       time.Now,
	}
}

// Seen records the message and reports whether it was already seen within
// the retention window. Messages without an origin or ID are never treated
// as duplicates.
func (c *DedupCache) Seen(origin, messageID string) bool {
	if origin == "" || messageID == "" {
		return false
	}
	key := origin + ":" + messageID

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if seenAt, ok := c.seen[key]; ok && now.Sub(seenAt) < c.retention {
		return true
	}
	c.seen[key] = now
	return false
}

// Evict removes entries older than the retention window and returns how many
// were dropped.
func (c *DedupCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, seenAt := range c.seen {
		if now.Sub(seenAt) >= c.retention {
			delete(c.seen, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked entries.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// StartJanitor evicts expired entries on a fixed period until ctx is done.
func (c *DedupCache) StartJanitor(ctx context.Context, period time.Duration, log *slog.Logger) {
	if period <= 0 {
		period = defaultEvictionPeriod
	}
	if log == nil {
		log = slog.Default()
	}
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.Evict(); removed > 0 {
					log.Debug("dedup entries evicted", slog.Int("removed", removed))
				}
			}
		}
	}()
}
