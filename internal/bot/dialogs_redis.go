package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDialogs snapshots dialog state so authoring flows survive a process
// restart. Stale flows are dropped by TTL rather than explicit cleanup.
type RedisDialogs struct {
	client *redis.Client
	ttl    time.Duration
}

var _ DialogStore = (*RedisDialogs)(nil)

func NewRedisDialogs(client *redis.Client, ttl time.Duration) *RedisDialogs {
	return &RedisDialogs{client: client, ttl: ttl}
}

func (r *RedisDialogs) key(userID int64) string {
	return "bot:dialog:" + strconv.FormatInt(userID, 10)
}

func (r *RedisDialogs) Get(ctx context.Context, userID int64) (*Dialog, bool, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dialog get: %w", err)
	}
	var d Dialog
	if err := json.Unmarshal(raw, &d); err != nil {
		// Unreadable snapshot: treat as no active flow.
		return nil, false, nil
	}
	return &d, true, nil
}

func (r *RedisDialogs) Set(ctx context.Context, userID int64, d *Dialog) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("dialog marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("dialog set: %w", err)
	}
	return nil
}

func (r *RedisDialogs) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("dialog clear: %w", err)
	}
	return nil
}
