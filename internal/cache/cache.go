// Package cache is the content-addressed response cache. Keys are a stable
// fingerprint over (user, message) so repeated input within the TTL window is
// answered without another model call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is the fixed expiry for cached responses.
const TTL = time.Hour

type Cache struct {
	Rdb *redis.Client
}

func New(rdb *redis.Client) *Cache { return &Cache{Rdb: rdb} }

// Key fingerprints (userID, message) with SHA-256 over the UTF-8 bytes.
// The hash must not vary across restarts or instances: the key doubles as a
// dedup token for identical messages within the TTL window.
func Key(userID, message string) string {
	sum := sha256.Sum256([]byte(userID + "\n" + message))
	return fmt.Sprintf("chat:%s:%s", userID, hex.EncodeToString(sum[:]))
}

// Get returns the cached payload and whether it was present. Backend errors
// surface so callers can log them, but a miss is never an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.Rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return c.Rdb.Set(ctx, key, payload, ttl).Err()
}
