// Package storagetest provides a Redis-backed storage.Store for tests.
package storagetest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/rx_cart/storefront/internal/storage"
	"github.com/redis/go-redis/v9"
)

// NewRedisStore starts an in-memory Redis server for the lifetime of t.
func NewRedisStore(t testing.TB) (*storage.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
	})

	return storage.NewRedisStore(client), mr
}
