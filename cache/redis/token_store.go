// Package redis keeps bearer tokens in Redis so several console processes
// on one host can share a login.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/pilab-dev/shadow-admin/cache"
	"github.com/redis/go-redis/v9"
)

// TokenStore implements cache.TokenStore using Redis.
type TokenStore struct {
	client redis.Cmdable
	key    string
}

// NewTokenStore creates a TokenStore for origin. Keys look like
// "<prefix>:token:<origin>".
func NewTokenStore(client redis.Cmdable, prefix, origin string) *TokenStore {
	if prefix == "" {
		prefix = "adminctl"
	}
	return &TokenStore{
		client: client,
		key:    fmt.Sprintf("%s:token:%s", prefix, origin),
	}
}

// Key returns the Redis key this store writes.
func (r *TokenStore) Key() string {
	return r.key
}

// Get implements cache.TokenStore.Get.
func (r *TokenStore) Get(ctx context.Context) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get token from Redis: %w", err)
	}
	return val, true, nil
}

// Set implements cache.TokenStore.Set. The key has no expiry.
func (r *TokenStore) Set(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to set token in Redis: %w", err)
	}
	return nil
}

// Clear implements cache.TokenStore.Clear.
func (r *TokenStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from Redis: %w", err)
	}
	return nil
}

var _ cache.TokenStore = (*TokenStore)(nil)
