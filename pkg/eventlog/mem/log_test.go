package mem

import (
	"context"
	"sync"
	"testing"

	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/eventlog"
	"github.com/stretchr/testify/require"
)

// TestSuite runs the eventlog contract suite on the memory log.
func TestSuite(t *testing.T) {
	eventlog.LogSuite(t, func(t *testing.T) (eventlog.Log, func()) {
		l, err := New(config.EventLog{})
		require.NoError(t, err)
		return l, func() {}
	})
}

// TestConcurrentAppend verifies exactly one of many racing writers at the
// same expected version wins.
func TestConcurrentAppend(t *testing.T) {
	l, err := New(config.EventLog{})
	require.NoError(t, err)
	ctx := context.Background()

	const writers = 8
	results := make(chan error, writers)
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := l.Append(ctx, "subdomain", "sd-1", 0,
				[]eventlog.Event{{Name: "created", Data: []byte(`{}`)}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case err == eventlog.ErrVersionConflict:
			conflicts++
		default:
			t.Fatalf("unexpected append error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, writers-1, conflicts)

	events, err := l.Read(ctx, "subdomain", "sd-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}
