package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domainchat "campusmarket/internal/domain/chat"
)

// UnreadCache stores per-viewer global unread totals with a TTL. Misses and
// transport failures are reported so callers can fall back to recomputation.
type UnreadCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewUnreadCache(client *goredis.Client, ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UnreadCache{client: client, ttl: ttl}
}

func (c *UnreadCache) SetTotal(ctx context.Context, viewer domainchat.UserID, total int) error {
	return c.client.Set(ctx, unreadKey(viewer), total, c.ttl).Err()
}

func (c *UnreadCache) Total(ctx context.Context, viewer domainchat.UserID) (int, bool, error) {
	raw, err := c.client.Get(ctx, unreadKey(viewer)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	total, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return total, true, nil
}

func unreadKey(viewer domainchat.UserID) string {
	return "unread:total:" + string(viewer)
}
