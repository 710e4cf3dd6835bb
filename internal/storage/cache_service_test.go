package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedRow struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

func TestCacheService_GenerateCacheKey(t *testing.T) {
	cache, _ := testRedis(t)
	svc := NewCacheService(cache, time.Minute)

	params := map[string]interface{}{"walletId": "w1", "year": 2024}
	key1, err := svc.GenerateCacheKey(CacheKeyCategoryTotals, "user-1", params)
	require.NoError(t, err)
	key2, err := svc.GenerateCacheKey(CacheKeyCategoryTotals, "user-1", params)
	require.NoError(t, err)
	assert.Equal(t, key1, key2, "same params must produce the same key")
	assert.True(t, strings.HasPrefix(key1, "analytics:categories:user-1:"), key1)
	assert.Len(t, strings.TrimPrefix(key1, "analytics:categories:user-1:"), 24)

	other, err := svc.GenerateCacheKey(CacheKeyCategoryTotals, "user-1", map[string]interface{}{"walletId": "w2"})
	require.NoError(t, err)
	assert.NotEqual(t, key1, other)

	_, err = svc.GenerateCacheKey(CacheKeyBalances, "user-1", make(chan int))
	assert.Error(t, err)
}

func TestCacheService_SetGet(t *testing.T) {
	cache, mr := testRedis(t)
	svc := NewCacheService(cache, 5*time.Minute)
	ctx := testContext(t)

	var miss []cachedRow
	found, err := svc.Get(ctx, "analytics:balances:u:abc", &miss)
	require.NoError(t, err)
	assert.False(t, found)

	rows := []cachedRow{{Name: "Food", Total: 120}, {Name: "Rent", Total: 900}}
	require.NoError(t, svc.Set(ctx, "analytics:balances:u:abc", rows))
	assert.Equal(t, 5*time.Minute, mr.TTL("analytics:balances:u:abc"))

	var got []cachedRow
	found, err = svc.Get(ctx, "analytics:balances:u:abc", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rows, got)
	assert.Equal(t, 5*time.Minute, svc.TTL())
}

func TestCacheService_GetCorruptValue(t *testing.T) {
	cache, mr := testRedis(t)
	svc := NewCacheService(cache, time.Minute)

	require.NoError(t, mr.Set("analytics:summaries:u:bad", "{not json"))

	var dest []cachedRow
	found, err := svc.Get(testContext(t), "analytics:summaries:u:bad", &dest)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestCacheService_Invalidate(t *testing.T) {
	cache, mr := testRedis(t)
	svc := NewCacheService(cache, time.Minute)
	ctx := testContext(t)

	keys := []string{
		"analytics:categories:user-1:aaa",
		"analytics:balances:user-1:bbb",
		"analytics:categories:user-2:ccc",
		"analytics:composition:user-2:ddd",
	}
	for _, key := range keys {
		require.NoError(t, svc.Set(ctx, key, cachedRow{Name: key}))
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, svc.Invalidate(ctx))
	require.NoError(t, svc.Invalidate(ctx, keys[3]))
	assert.False(t, mr.Exists(keys[3]))

	n, err := svc.InvalidateUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists(keys[0]))
	assert.False(t, mr.Exists(keys[1]))
	assert.True(t, mr.Exists(keys[2]))

	n, err = svc.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("unrelated"))

	n, err = svc.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
