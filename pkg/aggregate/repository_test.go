package aggregate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/snagmail/snagmail/pkg/aggregate"
	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/eventlog"
	"github.com/snagmail/snagmail/pkg/eventlog/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a minimal aggregate used to exercise the repository contract.
type counter struct {
	aggregate.Base

	total int
}

type counterStarted struct {
	ID string `json:"id"`
}

type counterBumped struct {
	By int `json:"by"`
}

func (counterStarted) EventName() string { return "counter.started" }
func (counterBumped) EventName() string  { return "counter.bumped" }

func newCounter() *counter { return &counter{} }

func (c *counter) Start(id string) {
	aggregate.Raise(c, &counterStarted{ID: id})
}

func (c *counter) Bump(by int) {
	aggregate.Raise(c, &counterBumped{By: by})
}

func (c *counter) ApplyEvent(ev aggregate.Event) {
	switch e := ev.(type) {
	case *counterStarted:
		c.SetID(e.ID)
	case *counterBumped:
		c.total += e.By
	}
}

func decodeCounterEvent(name string, data []byte) (aggregate.Event, error) {
	var ev aggregate.Event
	switch name {
	case "counter.started":
		ev = &counterStarted{}
	case "counter.bumped":
		ev = &counterBumped{}
	default:
		return nil, fmt.Errorf("unknown counter event %q", name)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// recordingProjector captures the committed events handed to the inline
// projection hook.
type recordingProjector struct {
	events []eventlog.Event
}

func (p *recordingProjector) ApplyCommitted(_ context.Context, events []eventlog.Event) error {
	p.events = append(p.events, events...)
	return nil
}

func newCounterRepo(t *testing.T, projector aggregate.InlineProjector) *aggregate.Repository[*counter] {
	t.Helper()
	elog, err := mem.New(config.EventLog{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = elog.Close() })
	return aggregate.NewRepository(elog, "counter", newCounter, decodeCounterEvent, projector)
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	repo := newCounterRepo(t, nil)
	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, aggregate.ErrNotFound)
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newCounterRepo(t, nil)

	c := newCounter()
	c.Start("c1")
	c.Bump(3)
	c.Bump(4)
	require.NoError(t, repo.Save(ctx, c))
	assert.Empty(t, c.UncommittedEvents(), "save must mark events committed")
	assert.Equal(t, int64(3), c.Version())

	loaded, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", loaded.ID())
	assert.Equal(t, int64(3), loaded.Version())
	assert.Equal(t, 7, loaded.total, "state must be rebuilt from history")
	assert.Empty(t, loaded.UncommittedEvents())
}

func TestRepositorySaveNothingPending(t *testing.T) {
	ctx := context.Background()
	repo := newCounterRepo(t, nil)

	c := newCounter()
	c.Start("c1")
	require.NoError(t, repo.Save(ctx, c))

	// A second save with nothing raised is a no-op success.
	loaded, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, int64(1), loaded.Version())
}

func TestRepositoryOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := newCounterRepo(t, nil)

	c := newCounter()
	c.Start("c1")
	require.NoError(t, repo.Save(ctx, c))

	// Two writers load the same version.
	first, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)

	first.Bump(1)
	require.NoError(t, repo.Save(ctx, first))

	// The stale writer must conflict, not silently interleave.
	second.Bump(10)
	err = repo.Save(ctx, second)
	require.ErrorIs(t, err, eventlog.ErrVersionConflict)

	// Retrying means reloading and re-deciding against current state.
	retry, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, retry.total)
	retry.Bump(10)
	require.NoError(t, repo.Save(ctx, retry))

	final, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 11, final.total)
	assert.Equal(t, int64(3), final.Version())
}

func TestRepositoryInlineProjection(t *testing.T) {
	ctx := context.Background()
	projector := &recordingProjector{}
	repo := newCounterRepo(t, projector)

	c := newCounter()
	c.Start("c1")
	c.Bump(2)
	require.NoError(t, repo.Save(ctx, c))

	require.Len(t, projector.events, 2)
	assert.Equal(t, "counter", projector.events[0].StreamType)
	assert.Equal(t, "c1", projector.events[0].StreamID)
	assert.Equal(t, int64(1), projector.events[0].Sequence)
	assert.Equal(t, "counter.started", projector.events[0].Name)
	assert.Equal(t, int64(2), projector.events[1].Sequence)
	assert.Equal(t, "counter.bumped", projector.events[1].Name)
}

func TestLoadFromHistoryDeterminism(t *testing.T) {
	history := []aggregate.Event{
		&counterStarted{ID: "c1"},
		&counterBumped{By: 5},
		&counterBumped{By: -2},
	}

	a := newCounter()
	aggregate.LoadFromHistory(a, history)
	b := newCounter()
	aggregate.LoadFromHistory(b, history)

	assert.Equal(t, a.total, b.total, "same history must produce same state")
	assert.Equal(t, a.Version(), b.Version())
	assert.Equal(t, int64(3), a.Version())
	assert.Empty(t, a.UncommittedEvents(), "loading history must not raise events")
}
