package rate

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/rueidis"
)

// GlobalKeyPrefix is the prefix for shared global rate limit keys in Redis.
const GlobalKeyPrefix = "discord_global_ratelimit"

// RedisGlobal shares global rate limit windows between processes that use
// the same token. The key expires with the window, so nothing outlives it.
type RedisGlobal struct {
	client rueidis.Client
	key    string
}

// NewRedisGlobal creates a shared global window for token. The token itself
// is never written to Redis, only its FNV-1a hash.
func NewRedisGlobal(client rueidis.Client, token string) *RedisGlobal {
	h := fnv.New64a()
	h.Write([]byte(token))

	return &RedisGlobal{
		client: client,
		key:    fmt.Sprintf("%s:%s", GlobalKeyPrefix, strconv.FormatUint(h.Sum64(), 16)),
	}
}

// Hold publishes a global limit lasting d.
func (s *RedisGlobal) Hold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	err := s.client.Do(ctx, s.client.B().Set().Key(s.key).Value("1").Px(d).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to publish global rate limit: %w", err)
	}
	return nil
}

// Remaining returns how long the shared global limit still applies.
func (s *RedisGlobal) Remaining(ctx context.Context) (time.Duration, error) {
	ttl, err := s.client.Do(ctx, s.client.B().Pttl().Key(s.key).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to read global rate limit: %w", err)
	}

	// -2 means no key, -1 means no expiry; neither is a live window
	if ttl <= 0 {
		return 0, nil
	}
	return time.Duration(ttl) * time.Millisecond, nil
}
