package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"smartfuel/internal/models"
)

// GuidanceCache stores generated guidance in Redis, keyed by a digest of the request inputs.
type GuidanceCache struct {
	redisClient *redis.Client
	prefix      string
	ttl         time.Duration
	logger      *zap.Logger
}

func NewGuidanceCache(redisClient *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *GuidanceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuidanceCache{
		redisClient: redisClient,
		prefix:      prefix,
		ttl:         ttl,
		logger:      logger,
	}
}

type keyMaterial struct {
	UserID       string               `json:"user_id"`
	RulesVersion string               `json:"rules_version"`
	Signals      models.HealthSignals `json:"signals"`
}

// Key derives the cache key for a request. The rules version is part of the
// digest, so a reload never serves guidance built from the previous rule pack.
func (c *GuidanceCache) Key(userID, rulesVersion string, signals models.HealthSignals) (string, error) {
	raw, err := json.Marshal(keyMaterial{
		UserID:       userID,
		RulesVersion: rulesVersion,
		Signals:      signals,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return c.prefix + hex.EncodeToString(sum[:]), nil
}

// Get returns the cached guidance and whether it was found.
func (c *GuidanceCache) Get(ctx context.Context, key string) (*models.SmartFuelGuidance, bool, error) {
	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache: %w", err)
	}

	var g models.SmartFuelGuidance
	if err := json.Unmarshal([]byte(val), &g); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal guidance: %w", err)
	}

	c.logger.Debug("Guidance cache hit", zap.String("key", key))
	return &g, true, nil
}

func (c *GuidanceCache) Set(ctx context.Context, key string, g models.SmartFuelGuidance) error {
	jsonData, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal guidance: %w", err)
	}

	if err := c.redisClient.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Guidance cached",
		zap.String("key", key),
		zap.Duration("ttl", c.ttl),
	)
	return nil
}
