package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LogFactory builds an empty Log for the test suite, returning a destroy
// func to release it.
type LogFactory func(t *testing.T) (log Log, destroy func())

// LogSuite runs the shared backend contract tests against a Log
// implementation.
func LogSuite(t *testing.T, factory LogFactory) {
	t.Helper()
	tests := []struct {
		name string
		test func(*testing.T, Log)
	}{
		{"AppendRead", suiteAppendRead},
		{"EmptyStream", suiteEmptyStream},
		{"VersionConflict", suiteVersionConflict},
		{"AppendAfterConflict", suiteAppendAfterConflict},
		{"VisitAllOrder", suiteVisitAllOrder},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, destroy := factory(t)
			defer destroy()
			tc.test(t, log)
		})
	}
}

func suiteAppendRead(t *testing.T, log Log) {
	ctx := context.Background()
	stored, err := log.Append(ctx, "subdomain", "sd-1", 0, []Event{
		{Name: "created", Data: []byte(`{"a":1}`)},
		{Name: "suspended", Data: []byte(`{"b":2}`)},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, int64(1), stored[0].Sequence)
	assert.Equal(t, int64(2), stored[1].Sequence)
	assert.Equal(t, "sd-1", stored[0].StreamID)
	assert.False(t, stored[0].Recorded.IsZero())

	events, err := log.Read(ctx, "subdomain", "sd-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "created", events[0].Name)
	assert.Equal(t, []byte(`{"a":1}`), events[0].Data)
	assert.Equal(t, "suspended", events[1].Name)
	assert.Equal(t, int64(2), events[1].Sequence)
}

func suiteEmptyStream(t *testing.T, log Log) {
	events, err := log.Read(context.Background(), "subdomain", "absent")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func suiteVersionConflict(t *testing.T, log Log) {
	ctx := context.Background()
	_, err := log.Append(ctx, "apikey", "ak-1", 0, []Event{{Name: "issued", Data: []byte(`{}`)}})
	require.NoError(t, err)

	// Stale writer still expects an empty stream.
	_, err = log.Append(ctx, "apikey", "ak-1", 0, []Event{{Name: "revoked", Data: []byte(`{}`)}})
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Conflicted append must not have written anything.
	events, err := log.Read(ctx, "apikey", "ak-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func suiteAppendAfterConflict(t *testing.T, log Log) {
	ctx := context.Background()
	_, err := log.Append(ctx, "apikey", "ak-2", 0, []Event{{Name: "issued", Data: []byte(`{}`)}})
	require.NoError(t, err)
	_, err = log.Append(ctx, "apikey", "ak-2", 0, []Event{{Name: "revoked", Data: []byte(`{}`)}})
	require.ErrorIs(t, err, ErrVersionConflict)

	// Retry with the current version succeeds.
	stored, err := log.Append(ctx, "apikey", "ak-2", 1, []Event{{Name: "revoked", Data: []byte(`{}`)}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored[0].Sequence)
}

func suiteVisitAllOrder(t *testing.T, log Log) {
	ctx := context.Background()
	_, err := log.Append(ctx, "subdomain", "sd-b", 0, []Event{
		{Name: "created", Data: []byte(`{}`)},
		{Name: "suspended", Data: []byte(`{}`)},
	})
	require.NoError(t, err)
	_, err = log.Append(ctx, "subdomain", "sd-a", 0, []Event{{Name: "created", Data: []byte(`{}`)}})
	require.NoError(t, err)

	// Streams arrive whole, each in sequence order.
	var visited []string
	lastSeq := make(map[string]int64)
	err = log.VisitAll(ctx, func(ev Event) bool {
		visited = append(visited, ev.StreamID)
		assert.Equal(t, lastSeq[ev.StreamID]+1, ev.Sequence)
		lastSeq[ev.StreamID] = ev.Sequence
		return true
	})
	require.NoError(t, err)
	assert.Len(t, visited, 3)
	assert.Equal(t, int64(2), lastSeq["sd-b"])
	assert.Equal(t, int64(1), lastSeq["sd-a"])

	// Early stop is honored.
	count := 0
	err = log.VisitAll(ctx, func(Event) bool {
		count++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
