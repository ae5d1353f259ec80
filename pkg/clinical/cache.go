package clinical

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hai-surveillance-server/internal/domain"
)

// CacheClient wraps Redis with caching for note text and extraction
// responses. Cache failures degrade to misses so an unavailable Redis
// never blocks classification.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a cache client and verifies connectivity.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// cachedExtraction is a cached extraction payload with metadata.
type cachedExtraction struct {
	Payload   *extractionPayload `json:"payload"`
	CachedAt  time.Time          `json:"cached_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// GetExtraction retrieves a cached extraction payload for a note-text hash.
func (c *CacheClient) GetExtraction(ctx context.Context, haiType domain.HAIType, textHash string) (*extractionPayload, bool) {
	key := extractionKey(haiType, textHash)

	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false // miss, including transport errors
	}

	var cached cachedExtraction
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false
	}
	return cached.Payload, true
}

// SetExtraction caches an extraction payload.
func (c *CacheClient) SetExtraction(ctx context.Context, haiType domain.HAIType, textHash string, payload *extractionPayload, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	data, err := json.Marshal(cachedExtraction{
		Payload:   payload,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return
	}
	c.redis.Set(ctx, extractionKey(haiType, textHash), data, ttl)
}

// Close releases the Redis connection pool.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func extractionKey(haiType domain.HAIType, textHash string) string {
	return fmt.Sprintf("hai:extraction:%s:%s", haiType, textHash)
}

// hashText derives the cache key component for a note-text blob.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum[:16])
}
