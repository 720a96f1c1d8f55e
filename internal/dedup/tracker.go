// Package dedup tracks which active calls have already been reported,
// backed by a Redis seen-set with TTL so entries age out on their own.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
	"github.com/GodspeedAgent/dpd-dispatch/internal/tracker"
)

// keyPrefix namespaces the seen-set keys in Redis.
const keyPrefix = "dispatch:seen:"

// DefaultSeenTTL ages out seen entries; active calls rarely stay open
// longer than a shift.
const DefaultSeenTTL = 12 * time.Hour

// Tracker is a Redis-backed seen-set for active calls. A Redis outage
// degrades to treating every call as new, with a warning: the watch loop
// must keep reporting when Redis is down.
type Tracker struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    logger.Logger
}

// NewTracker creates a seen-tracker. A non-positive TTL falls back to the
// default.
func NewTracker(client redis.UniversalClient, ttl time.Duration, log logger.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Tracker{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func (t *Tracker) key(record map[string]any) string {
	return keyPrefix + tracker.RecordIdentity(record)
}

// MarkSeen records the call and reports whether it was new. SetNX makes
// the check-and-mark atomic; the TTL refreshes only on first sight, so a
// long-running call is reported once per TTL window at most.
func (t *Tracker) MarkSeen(ctx context.Context, record map[string]any) bool {
	key := t.key(record)

	isNew, err := t.client.SetNX(ctx, key, "1", t.ttl).Result()
	if err != nil {
		t.log.Warn("seen-tracker unavailable, treating call as new",
			logger.String("key", key), logger.Error(err))
		return true
	}

	if isNew {
		t.log.Debug("new call", logger.String("key", key))
	}
	return isNew
}

// SeenCount returns the number of calls currently in the seen-set.
func (t *Tracker) SeenCount(ctx context.Context) (int, error) {
	var count int
	var cursor uint64
	for {
		keys, next, err := t.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}
