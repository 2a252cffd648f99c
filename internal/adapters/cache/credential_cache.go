package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/config"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

const credentialKeyPrefix = "auth:cv:"

// KV is the subset of the Redis client used by the cache. *redis.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// CredentialVersionCache keeps users' credential versions in Redis. Every
// failure degrades to a miss so callers fall back to the database.
type CredentialVersionCache struct {
	rdb    KV
	ttl    time.Duration
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ ports.CredentialVersionCache = (*CredentialVersionCache)(nil)

func NewCredentialVersionCache(rdb KV, ttl time.Duration, logger *zap.Logger) *CredentialVersionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialVersionCache{
		rdb:    rdb,
		ttl:    ttl,
		cb:     config.NewCircuitBreaker(config.BreakerRedisCredentials, logger),
		logger: logger,
	}
}

func (c *CredentialVersionCache) Get(ctx context.Context, userID string) (int, bool) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		val, err := c.rdb.Get(ctx, credentialKeyPrefix+userID).Result()
		if errors.Is(err, redis.Nil) {
			// A miss is not a failure.
			return "", nil
		}
		return val, err
	})
	if err != nil {
		c.logger.Warn("credential cache read failed", zap.String("user_id", userID), zap.Error(err))
		return 0, false
	}

	raw, _ := res.(string)
	if raw == "" {
		return 0, false
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return version, true
}

func (c *CredentialVersionCache) Set(ctx context.Context, userID string, version int) {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.rdb.Set(ctx, credentialKeyPrefix+userID, strconv.Itoa(version), c.ttl).Err()
	})
	if err != nil {
		c.logger.Warn("credential cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (c *CredentialVersionCache) Fill(ctx context.Context, userID string, version int) {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.rdb.SetNX(ctx, credentialKeyPrefix+userID, strconv.Itoa(version), c.ttl).Err()
	})
	if err != nil {
		c.logger.Warn("credential cache fill failed", zap.String("user_id", userID), zap.Error(err))
	}
}
