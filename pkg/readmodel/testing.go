package readmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory builds an empty Store for the test suite, returning a
// destroy func to release it.
type StoreFactory func(t *testing.T) (store Store, destroy func())

// StoreSuite runs the shared backend contract tests against a Store
// implementation.
func StoreSuite(t *testing.T, factory StoreFactory) {
	t.Helper()
	tests := []struct {
		name string
		test func(*testing.T, Store)
	}{
		{"PutGet", suitePutGet},
		{"Overwrite", suiteOverwrite},
		{"Delete", suiteDelete},
		{"DeleteAll", suiteDeleteAll},
		{"Visit", suiteVisit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, destroy := factory(t)
			defer destroy()
			tc.test(t, store)
		})
	}
}

func suitePutGet(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "c1", "k1", []byte(`{"v":1}`)))

	doc, err := store.Get(ctx, "c1", "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), doc)

	_, err = store.Get(ctx, "c1", "absent")
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = store.Get(ctx, "absent", "k1")
	assert.ErrorIs(t, err, ErrNoDocument)
}

func suiteOverwrite(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "c1", "k1", []byte(`{"v":1}`)))
	require.NoError(t, store.Put(ctx, "c1", "k1", []byte(`{"v":2}`)))

	doc, err := store.Get(ctx, "c1", "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), doc)
}

func suiteDelete(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "c1", "k1", []byte(`{}`)))
	require.NoError(t, store.Delete(ctx, "c1", "k1"))
	_, err := store.Get(ctx, "c1", "k1")
	assert.ErrorIs(t, err, ErrNoDocument)

	// Deleting an absent document is a no-op.
	require.NoError(t, store.Delete(ctx, "c1", "k1"))
}

func suiteDeleteAll(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "c1", "k1", []byte(`{}`)))
	require.NoError(t, store.Put(ctx, "c1", "k2", []byte(`{}`)))
	require.NoError(t, store.Put(ctx, "c2", "k1", []byte(`{}`)))
	require.NoError(t, store.DeleteAll(ctx, "c1"))

	_, err := store.Get(ctx, "c1", "k1")
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = store.Get(ctx, "c2", "k1")
	assert.NoError(t, err)
}

func suiteVisit(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "c1", "k1", []byte(`1`)))
	require.NoError(t, store.Put(ctx, "c1", "k2", []byte(`2`)))

	seen := make(map[string]string)
	err := store.Visit(ctx, "c1", func(key string, doc []byte) bool {
		seen[key] = string(doc)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k1": "1", "k2": "2"}, seen)

	count := 0
	err = store.Visit(ctx, "c1", func(string, []byte) bool {
		count++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
