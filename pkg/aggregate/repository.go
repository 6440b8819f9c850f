package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/eventlog"
)

// ErrNotFound indicates no events exist for the requested aggregate.
var ErrNotFound = errors.New("aggregate not found")

// DecodeFunc turns a stored event name and payload back into the owning
// aggregate's typed event.
type DecodeFunc func(name string, data []byte) (Event, error)

// InlineProjector folds freshly committed events into read models as part
// of the save path.  Satisfied by projection.Engine.
type InlineProjector interface {
	ApplyCommitted(ctx context.Context, events []eventlog.Event) error
}

// Repository loads and saves one aggregate type by replaying and appending
// its event stream.  Version conflicts and storage failures pass through as
// eventlog.ErrVersionConflict and eventlog.ErrUnavailable; the repository
// never retries on the caller's behalf, since a retry must re-validate
// business invariants against the current state.
type Repository[T Root] struct {
	log        eventlog.Log
	streamType string
	factory    func() T
	decode     DecodeFunc
	projector  InlineProjector
}

// NewRepository creates a repository for one aggregate type.  projector may
// be nil when no inline projections are wired (tests, offline tools).
func NewRepository[T Root](
	elog eventlog.Log,
	streamType string,
	factory func() T,
	decode DecodeFunc,
	projector InlineProjector,
) *Repository[T] {
	return &Repository[T]{
		log:        elog,
		streamType: streamType,
		factory:    factory,
		decode:     decode,
		projector:  projector,
	}
}

// GetByID reconstructs an aggregate from its event stream.  Returns
// ErrNotFound when the stream is empty or absent.
func (r *Repository[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	stored, err := r.log.Read(ctx, r.streamType, id)
	if err != nil {
		return zero, fmt.Errorf("read stream %s/%s: %w", r.streamType, id, err)
	}
	if len(stored) == 0 {
		return zero, ErrNotFound
	}
	events := make([]Event, 0, len(stored))
	for _, se := range stored {
		ev, err := r.decode(se.Name, se.Data)
		if err != nil {
			return zero, fmt.Errorf("decode event %q seq %d in %s/%s: %w",
				se.Name, se.Sequence, r.streamType, id, err)
		}
		events = append(events, ev)
	}
	agg := r.factory()
	LoadFromHistory(agg, events)
	return agg, nil
}

// Save appends the aggregate's uncommitted events with an expected-version
// check, marks them committed, then folds them into the inline read models.
// Saving an aggregate with no uncommitted events succeeds as a no-op.
func (r *Repository[T]) Save(ctx context.Context, agg T) error {
	pending := agg.UncommittedEvents()
	if len(pending) == 0 {
		return nil
	}
	toStore := make([]eventlog.Event, 0, len(pending))
	for _, ev := range pending {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %q: %w", ev.EventName(), err)
		}
		toStore = append(toStore, eventlog.Event{Name: ev.EventName(), Data: data})
	}
	stored, err := r.log.Append(ctx, r.streamType, agg.ID(), agg.Version(), toStore)
	if err != nil {
		return fmt.Errorf("append to %s/%s: %w", r.streamType, agg.ID(), err)
	}
	agg.MarkEventsCommitted()
	if r.projector != nil {
		// The append is already durable; a projection failure here is
		// surfaced so the operator can rebuild, it cannot be rolled back.
		if err := r.projector.ApplyCommitted(ctx, stored); err != nil {
			log.Error().Str("module", "aggregate").Err(err).
				Str("stream", r.streamType+"/"+agg.ID()).
				Msg("Inline projection failed after commit")
			return fmt.Errorf("inline projection for %s/%s: %w", r.streamType, agg.ID(), err)
		}
	}
	return nil
}
