package cache

import (
	"context"
	"delivery-tracker/internal/domain"
	"delivery-tracker/internal/platform/obs"
	"delivery-tracker/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "delivery-tracker:deliveries:"

// RedisDeliveryCache is a read-through cache in front of a DeliveryRepository.
//
// Redis failures never fail a read: the cache is bypassed and the wrapped
// repository answers.
type RedisDeliveryCache struct {
	client redis.Cmdable
	next   ports.DeliveryRepository
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewRedisDeliveryCache(client redis.Cmdable, next ports.DeliveryRepository, ttl time.Duration, logger *slog.Logger) (*RedisDeliveryCache, error) {
	if client == nil {
		return nil, errors.New("delivery cache: redis client is nil")
	}
	if next == nil {
		return nil, errors.New("delivery cache: repository is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisDeliveryCache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: defaultKeyPrefix,
		logger: logger,
	}, nil
}

func (c *RedisDeliveryCache) key(userID string) string { return c.prefix + userID }

func (c *RedisDeliveryCache) FindAllForUser(ctx context.Context, userID string) (_ []domain.Delivery, err error) {
	defer obs.Time(ctx, "delivery.cache.FindAllForUser")(&err)

	key := c.key(userID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []domain.Delivery
		if uerr := json.Unmarshal(raw, &cached); uerr == nil {
			return cached, nil
		}
		c.logger.Warn("delivery cache entry unreadable, refetching", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("delivery cache get failed", "key", key, "err", err)
	}

	deliveries, err := c.next.FindAllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(deliveries)
	if err != nil {
		return nil, fmt.Errorf("delivery cache: encode: %w", err)
	}
	if serr := c.client.Set(ctx, key, b, c.ttl).Err(); serr != nil {
		c.logger.Warn("delivery cache set failed", "key", key, "err", serr)
	}

	return deliveries, nil
}

// Invalidate drops the user's entry and forwards to the wrapped repository
// when it caches as well.
func (c *RedisDeliveryCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("delivery cache: invalidate %q: %w", userID, err)
	}
	if inv, ok := c.next.(ports.CacheInvalidator); ok {
		return inv.Invalidate(ctx, userID)
	}
	return nil
}
