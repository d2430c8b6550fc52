package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"atelier/internal/domain/billing"
	"atelier/internal/shared/logger"
)

const (
	// eventAckKeyPrefix is the prefix for all cached event acknowledgments
	eventAckKeyPrefix = "billing_event_ack:"
)

// EventAckCache decorates a DedupStore with a Redis read-through cache of
// completed acks. Provider redeliveries are bursty and heavily skewed toward
// very recent events, so most duplicate lookups never touch the database.
// Redis failures degrade to the underlying store; the cache is never the
// source of truth for the idempotency decision.
type EventAckCache struct {
	store  billing.DedupStore
	client *redis.Client
	ttl    time.Duration
	logger logger.Interface
}

func NewEventAckCache(store billing.DedupStore, client *redis.Client, ttl time.Duration, log logger.Interface) billing.DedupStore {
	return &EventAckCache{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func (c *EventAckCache) buildKey(eventID string) string {
	return fmt.Sprintf("%s%s", eventAckKeyPrefix, eventID)
}

func (c *EventAckCache) Begin(ctx context.Context, eventID string) (bool, *billing.Ack, error) {
	if ack := c.getCached(ctx, eventID); ack != nil {
		return false, ack, nil
	}

	winner, prior, err := c.store.Begin(ctx, eventID)
	if err != nil {
		return false, nil, err
	}
	if prior != nil {
		c.setCached(ctx, eventID, *prior)
	}
	return winner, prior, nil
}

// Complete delegates without caching. Completion may run inside a database
// transaction, and a cached ack for a rolled-back commit would drop the
// event on redelivery; the cache populates read-through from committed rows.
func (c *EventAckCache) Complete(ctx context.Context, eventID string, ack billing.Ack) error {
	return c.store.Complete(ctx, eventID, ack)
}

func (c *EventAckCache) Release(ctx context.Context, eventID string) error {
	return c.store.Release(ctx, eventID)
}

func (c *EventAckCache) PurgeOlderThan(ctx context.Context, window time.Duration) (int64, error) {
	// Cached keys expire on their own TTL; only the durable rows need purging.
	return c.store.PurgeOlderThan(ctx, window)
}

func (c *EventAckCache) getCached(ctx context.Context, eventID string) *billing.Ack {
	data, err := c.client.Get(ctx, c.buildKey(eventID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warnw("event ack cache read failed", "event_id", eventID, "error", err)
		}
		return nil
	}

	var ack billing.Ack
	if err := json.Unmarshal(data, &ack); err != nil {
		c.logger.Warnw("event ack cache entry corrupt", "event_id", eventID, "error", err)
		return nil
	}
	return &ack
}

func (c *EventAckCache) setCached(ctx context.Context, eventID string, ack billing.Ack) {
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.buildKey(eventID), data, c.ttl).Err(); err != nil {
		c.logger.Warnw("event ack cache write failed", "event_id", eventID, "error", err)
	}
}
