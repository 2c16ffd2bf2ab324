package loom_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom"
)

func TestTTLCache(t *testing.T) {
	ctx := context.Background()

	t.Run("GetSet", func(t *testing.T) {
		c := loom.NewTTLCache(time.Minute)
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)

		c.Set(ctx, "k", []byte("v"), 0)
		v, ok := c.Get(ctx, "k")
		assert.True(t, ok)
		assert.Equal(t, []byte("v"), v)
	})

	t.Run("Expiry", func(t *testing.T) {
		c := loom.NewTTLCache(time.Minute)
		c.Set(ctx, "k", []byte("v"), time.Nanosecond)
		time.Sleep(time.Millisecond)
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("Delete", func(t *testing.T) {
		c := loom.NewTTLCache(time.Minute)
		c.Set(ctx, "k", []byte("v"), 0)
		c.Delete(ctx, "k")
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("DeletePrefix", func(t *testing.T) {
		c := loom.NewTTLCache(time.Minute)
		c.Set(ctx, "users:findById:1", []byte("a"), 0)
		c.Set(ctx, "users:findOne:x", []byte("b"), 0)
		c.Set(ctx, "posts:findById:1", []byte("c"), 0)

		c.DeletePrefix(ctx, loom.TablePrefix("users"))
		assert.Equal(t, 1, c.Len())
		_, ok := c.Get(ctx, "posts:findById:1")
		assert.True(t, ok)
	})

	t.Run("Clear", func(t *testing.T) {
		c := loom.NewTTLCache(time.Minute)
		c.Set(ctx, "a", []byte("1"), 0)
		c.Set(ctx, "b", []byte("2"), 0)
		c.Clear(ctx)
		assert.Equal(t, 0, c.Len())
	})
}

func TestCacheKey(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		k1, err := loom.CacheKey("users", "findById", 42)
		require.NoError(t, err)
		k2, err := loom.CacheKey("users", "findById", 42)
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
	})

	t.Run("DistinctArgs", func(t *testing.T) {
		k1, err := loom.CacheKey("users", "findById", 1)
		require.NoError(t, err)
		k2, err := loom.CacheKey("users", "findById", 2)
		require.NoError(t, err)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("TablePrefix", func(t *testing.T) {
		k, err := loom.CacheKey("users", "findOne", "email", "a@b.c")
		require.NoError(t, err)
		assert.True(t, len(k) > len(loom.TablePrefix("users")))
		assert.Equal(t, loom.TablePrefix("users"), k[:len(loom.TablePrefix("users"))])
	})
}
