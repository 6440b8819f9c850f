package lookup_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/lookup"
	"github.com/snagmail/snagmail/pkg/readmodel"
	rmmem "github.com/snagmail/snagmail/pkg/readmodel/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheFixture(t *testing.T) (*miniredis.Miniredis, *redis.Client, readmodel.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store, err := rmmem.New(config.ReadModel{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return mr, rdb, store
}

func cacheConfig() config.Cache {
	return config.Cache{Prefix: "snagmail", ScanCount: 10}
}

func putSubdomain(t *testing.T, store readmodel.Store, rec readmodel.SubdomainLookup) {
	t.Helper()
	doc, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), readmodel.SubdomainCollection, rec.DomainName, doc))
}

func putChaos(t *testing.T, store readmodel.Store, key string, rec readmodel.ChaosAddressLookup) {
	t.Helper()
	doc, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), readmodel.ChaosCollection, key, doc))
}

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	_, rdb, store := cacheFixture(t)
	cache := lookup.NewSubdomainCache(rdb, cacheConfig(), store)

	putSubdomain(t, store, readmodel.SubdomainLookup{
		SubdomainID: "sd1", DomainName: "mail.example.com", CatchAll: true,
	})

	// First read populates the cache from the read model.
	rec, err := cache.Get(ctx, "mail.example.com", false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sd1", rec.SubdomainID)

	// A read-model change invisible to the cache proves the second read
	// was served from the cache.
	putSubdomain(t, store, readmodel.SubdomainLookup{
		SubdomainID: "sd1", DomainName: "mail.example.com", IsSuspended: true,
	})
	rec, err = cache.Get(ctx, "mail.example.com", false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.IsSuspended, "expected the cached entry")

	// forceRefresh bypasses the cache and re-populates it.
	rec, err = cache.Get(ctx, "mail.example.com", true)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsSuspended)
}

func TestCacheMissNotCached(t *testing.T) {
	ctx := context.Background()
	mr, rdb, store := cacheFixture(t)
	cache := lookup.NewSubdomainCache(rdb, cacheConfig(), store)

	rec, err := cache.Get(ctx, "unknown.example.com", false)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, mr.Keys(), "negative lookups must not be cached")

	// The key appearing later must be visible on the next read.
	putSubdomain(t, store, readmodel.SubdomainLookup{
		SubdomainID: "sd1", DomainName: "unknown.example.com",
	})
	rec, err = cache.Get(ctx, "unknown.example.com", false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sd1", rec.SubdomainID)
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	_, rdb, store := cacheFixture(t)
	cache := lookup.NewSubdomainCache(rdb, cacheConfig(), store)

	putSubdomain(t, store, readmodel.SubdomainLookup{
		SubdomainID: "sd1", DomainName: "mail.example.com",
	})
	_, err := cache.Get(ctx, "mail.example.com", false)
	require.NoError(t, err)

	putSubdomain(t, store, readmodel.SubdomainLookup{
		SubdomainID: "sd1", DomainName: "mail.example.com", IsSuspended: true,
	})
	cache.Invalidate(ctx, "mail.example.com")

	rec, err := cache.Get(ctx, "mail.example.com", false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsSuspended, "invalidation must evict the stale entry")

	// Invalidating an absent entry is a no-op success.
	cache.Invalidate(ctx, "never-cached.example.com")
}

func TestCacheInvalidateSubdomainPattern(t *testing.T) {
	ctx := context.Background()
	mr, rdb, store := cacheFixture(t)
	cache := lookup.NewAddressCache(rdb, cacheConfig(), store)

	keys := []string{"a@mail.example.com", "b@mail.example.com", "a@mail.other.com"}
	for _, key := range keys {
		putChaos(t, store, key, readmodel.ChaosAddressLookup{ChaosAddressID: key, Mode: "reject"})
		_, err := cache.Get(ctx, key, false)
		require.NoError(t, err)
	}
	require.Len(t, mr.Keys(), 3)

	cache.InvalidateSubdomain(ctx, "mail.example.com")

	remaining := mr.Keys()
	require.Len(t, remaining, 1, "only the other domain's entry should survive")
	assert.Contains(t, remaining[0], "a@mail.other.com")
}

func TestCacheBackendDownDegrades(t *testing.T) {
	ctx := context.Background()
	mr, rdb, store := cacheFixture(t)
	cache := lookup.NewSubdomainCache(rdb, cacheConfig(), store)

	putSubdomain(t, store, readmodel.SubdomainLookup{
		SubdomainID: "sd1", DomainName: "mail.example.com",
	})
	mr.Close()

	// Reads, writes and invalidations must all degrade to the read model.
	rec, err := cache.Get(ctx, "mail.example.com", false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sd1", rec.SubdomainID)
	cache.Set(ctx, "mail.example.com", rec)
	cache.Invalidate(ctx, "mail.example.com")
	cache.InvalidatePattern(ctx, "*")
}

func TestCacheNilClientDisabled(t *testing.T) {
	ctx := context.Background()
	store, err := rmmem.New(config.ReadModel{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	cache := lookup.NewSubdomainCache(nil, cacheConfig(), store)

	putSubdomain(t, store, readmodel.SubdomainLookup{
		SubdomainID: "sd1", DomainName: "mail.example.com",
	})
	rec, err := cache.Get(ctx, "mail.example.com", false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sd1", rec.SubdomainID)
	cache.Set(ctx, "mail.example.com", rec)
	cache.Invalidate(ctx, "mail.example.com")
}

func TestCacheSourceErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	_, rdb, _ := cacheFixture(t)
	boom := errors.New("store down")
	cache := lookup.NewCache(rdb, "test", 0, 10,
		func(context.Context, string) (*string, error) { return nil, boom })

	_, err := cache.Get(ctx, "key", false)
	assert.ErrorIs(t, err, boom, "read-model failures must surface")
}

func TestCacheUndecodableEntryOverwritten(t *testing.T) {
	ctx := context.Background()
	mr, rdb, store := cacheFixture(t)
	cache := lookup.NewSubdomainCache(rdb, cacheConfig(), store)

	putSubdomain(t, store, readmodel.SubdomainLookup{
		SubdomainID: "sd1", DomainName: "mail.example.com",
	})
	require.NoError(t, mr.Set("snagmail:sd:mail.example.com", "not json"))

	rec, err := cache.Get(ctx, "mail.example.com", false)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sd1", rec.SubdomainID)
}
