package gateway

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

// ProcessedTracker is the fast-path deduplication layer for inbound webhook
// deliveries, backed by Redis SETNX with a TTL. It is an optimization only:
// the database's unique index on (conversation, provider message id) is the
// correctness layer, so tracker failures degrade to letting events through.
type ProcessedTracker struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewProcessedTracker creates a tracker. ttl bounds how long a delivery id is
// remembered; gateways retry within minutes, not days.
func NewProcessedTracker(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *ProcessedTracker {
	return &ProcessedTracker{rdb: rdb, ttl: ttl, logger: log}
}

func processedKey(providerMessageID string) string {
	return "processed:" + providerMessageID
}

// MarkProcessed atomically records the delivery id and reports whether it was
// seen before. Redis being down means "not seen": the event proceeds and the
// database dedupes it.
func (t *ProcessedTracker) MarkProcessed(ctx context.Context, providerMessageID string) (alreadySeen bool, err error) {
	if providerMessageID == "" {
		return false, nil
	}
	set, err := t.rdb.SetNX(ctx, processedKey(providerMessageID), 1, t.ttl).Result()
	if err != nil {
		t.logger.Warn("processed tracker unavailable, falling through to store dedupe",
			zap.Error(err))
		return false, nil
	}
	return !set, nil
}

// Forget drops a delivery id so a failed turn can be retried by the gateway.
func (t *ProcessedTracker) Forget(ctx context.Context, providerMessageID string) {
	if providerMessageID == "" {
		return
	}
	if err := t.rdb.Del(ctx, processedKey(providerMessageID)).Err(); err != nil {
		t.logger.Warn("processed tracker delete failed", zap.Error(err))
	}
}
