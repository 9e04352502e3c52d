package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"gatekeeper/internal/logger"
)

const tokenCachePrefix = "auth:token:"

// TokenCache keeps recently verified access token claims in redis so
// repeated requests skip signature verification. All methods are safe
// on a nil receiver, which is how the service runs without redis.
type TokenCache struct {
	client *redis.Client
	log    *logger.Logger
}

func NewTokenCache(client *redis.Client, log *logger.Logger) *TokenCache {
	if client == nil {
		return nil
	}
	return &TokenCache{client: client, log: log}
}

func (c *TokenCache) Get(ctx context.Context, token string) (*Claims, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, cacheKey(token)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("CACHE", "token cache read failed: "+err.Error())
		}
		return nil, false
	}
	var claims Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, false
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, false
	}
	return &claims, true
}

func (c *TokenCache) Set(ctx context.Context, token string, claims *Claims, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	// Never cache past the token's own expiry.
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(claims)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(token), data, ttl).Err(); err != nil {
		c.log.Warn("CACHE", "token cache write failed: "+err.Error())
	}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenCachePrefix + hex.EncodeToString(sum[:])
}
