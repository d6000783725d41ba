// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package cache wraps Redis for token revocation, second-factor codes,
// cached identities and page caching.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mwiecke/storefront/internal/config"
	"github.com/mwiecke/storefront/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// IdentityTTL is the sliding lifetime of a cached user record.
	IdentityTTL = 1800 * time.Second
	// SecondFactorTTL is the lifetime of an emailed OTP code.
	SecondFactorTTL = 600 * time.Second
	// pageTTL is the lifetime of a cached product page.
	pageTTL = 7 * 24 * time.Hour

	blacklistSentinel = "blacklisted"
)

// Cache is the Redis-backed revocation and lookup cache.
type Cache struct {
	rdb *redis.Client
}

// New wraps an existing Redis client.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// NewClient connects a Redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// BlacklistToken marks a token as revoked for its remaining lifetime.
// A non-positive TTL means the token is already expired; nothing to do.
func (c *Cache) BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, blacklistKey(token), blacklistSentinel, ttl).Err()
}

// IsBlacklisted reports whether the token has been revoked.
func (c *Cache) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	val, err := c.rdb.Get(ctx, blacklistKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == blacklistSentinel, nil
}

// SetSecondFactorCode stores the emailed OTP for the user, replacing
// any earlier code. Expires after SecondFactorTTL.
func (c *Cache) SetSecondFactorCode(ctx context.Context, userID, code string) error {
	return c.rdb.Set(ctx, secondFactorKey(userID), code, SecondFactorTTL).Err()
}

// GetSecondFactorCode returns the stored OTP, or ok=false when none is
// present or it has expired.
func (c *Cache) GetSecondFactorCode(ctx context.Context, userID string) (code string, ok bool, err error) {
	val, err := c.rdb.Get(ctx, secondFactorKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// DeleteSecondFactorCode consumes the OTP so it cannot be replayed.
func (c *Cache) DeleteSecondFactorCode(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, secondFactorKey(userID)).Err()
}

// GetUser returns the cached identity for the user id, or ok=false on
// a miss. Corrupt entries are dropped and reported as a miss.
func (c *Cache) GetUser(ctx context.Context, id string) (*models.User, bool, error) {
	val, err := c.rdb.Get(ctx, userKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var user models.User
	if err := json.Unmarshal([]byte(val), &user); err != nil {
		_ = c.rdb.Del(ctx, userKey(id)).Err()
		return nil, false, nil
	}
	return &user, true, nil
}

// SetUser caches the identity with the full IdentityTTL.
func (c *Cache) SetUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, userKey(user.ID), data, IdentityTTL).Err()
}

// TouchUser slides the cached identity's expiry back to IdentityTTL.
func (c *Cache) TouchUser(ctx context.Context, id string) error {
	return c.rdb.Expire(ctx, userKey(id), IdentityTTL).Err()
}

// InvalidateUser drops the cached identity.
func (c *Cache) InvalidateUser(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, userKey(id)).Err()
}

// GetOrSetJSON serves dest from cache when present, otherwise calls
// loader, caches its result and fills dest with it.
func (c *Cache) GetOrSetJSON(ctx context.Context, key string, dest any, loader func() (any, error)) error {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if unmarshalErr := json.Unmarshal([]byte(val), dest); unmarshalErr == nil {
			return nil
		}
		// fall through on corrupt entry
	} else if !errors.Is(err, redis.Nil) {
		return err
	}

	fresh, err := loader()
	if err != nil {
		return err
	}
	data, err := json.Marshal(fresh)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, data, pageTTL).Err(); err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// InvalidatePrefix deletes all keys matching prefix*. Used to drop
// cached product pages after catalog mutations.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func blacklistKey(token string) string { return "blacklist:" + token }
func secondFactorKey(id string) string { return "2fa:" + id }
func userKey(id string) string         { return "user:" + id }

// PageKey builds the cache key for a product listing page.
func PageKey(page int) string { return fmt.Sprintf("page:%d", page) }
