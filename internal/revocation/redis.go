package revocation

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chaisthra/vibetrack/internal/clock"
	"github.com/chaisthra/vibetrack/internal/model"
)

// redisAPI is the subset of the go-redis client used here.
type redisAPI interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
}

var _ model.RevocationStore = (*Redis)(nil)

// Redis stores revoked token IDs as keys that expire together with the
// token, so revocations survive restarts and need no sweeping.
type Redis struct {
	client redisAPI
	prefix string
	clock  clock.Clock
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRedis creates a Redis-backed revocation store.
func NewRedis(client redisAPI, clk clock.Clock) *Redis {
	return &Redis{
		client: client,
		prefix: "revoked:",
		clock:  clk,
	}
}

func (r *Redis) key(tokenID string) string {
	return r.prefix + tokenID
}

// Revoke stores tokenID until expiresAt. Tokens already past expiry are
// ignored since verification rejects them anyway.
func (r *Redis) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: revoke token: %v", model.ErrStorage, err)
	}
	return nil
}

func (r *Redis) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: check revocation: %v", model.ErrStorage, err)
	}
	return n > 0, nil
}

// Cleanup is a no-op: redis expires keys itself.
func (r *Redis) Cleanup(context.Context, time.Time) (int, error) {
	return 0, nil
}
