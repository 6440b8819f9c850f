// Package aggregate provides the event-sourced aggregate base contract and
// the generic repository that loads and saves aggregates through the event
// log.
//
// An aggregate's observable state is always a pure function of the ordered
// event sequence applied to it.  Behavior methods on concrete aggregates
// validate invariants against current state and raise events only for
// accepted transitions; no event is ever raised for a rejected one.
package aggregate

// Event is an immutable fact about something that happened to one
// aggregate.  Concrete events are small data records dispatched through the
// owning aggregate's single ApplyEvent switch.
type Event interface {
	// EventName returns the stable wire name used in the event log.
	EventName() string
}

// Root is the contract between concrete aggregates and the repository.
// Concrete types embed Base and implement ApplyEvent.
type Root interface {
	ID() string
	Version() int64

	// ApplyEvent mutates internal state from one event.  Applying events
	// out of their natural order is a programming error.
	ApplyEvent(Event)

	UncommittedEvents() []Event
	MarkEventsCommitted()

	record(Event)
	advance(int64)
}

// Base carries the identity, committed version and uncommitted event list
// shared by all aggregates.
type Base struct {
	id          string
	version     int64
	uncommitted []Event
}

// ID returns the stable aggregate identifier, assigned at creation.
func (b *Base) ID() string { return b.id }

// SetID records the aggregate identifier; called from the ApplyEvent case
// of the creation event.
func (b *Base) SetID(id string) { b.id = id }

// Version returns the number of committed events at load time, advanced
// when new events are marked committed.
func (b *Base) Version() int64 { return b.version }

// UncommittedEvents returns events raised since the aggregate was loaded.
func (b *Base) UncommittedEvents() []Event { return b.uncommitted }

// MarkEventsCommitted clears the uncommitted list and advances the version
// past the newly durable events.  Called by the repository after a
// successful append.
func (b *Base) MarkEventsCommitted() {
	b.version += int64(len(b.uncommitted))
	b.uncommitted = nil
}

func (b *Base) record(ev Event) { b.uncommitted = append(b.uncommitted, ev) }
func (b *Base) advance(n int64) { b.version += n }

// Raise queues ev for persistence and immediately applies it, so the
// in-memory aggregate reflects its own new events before they are saved.
func Raise(r Root, ev Event) {
	r.record(ev)
	r.ApplyEvent(ev)
}

// LoadFromHistory folds a previously committed sequence through ApplyEvent
// to reconstruct state.  The uncommitted list is untouched.
func LoadFromHistory(r Root, events []Event) {
	for _, ev := range events {
		r.ApplyEvent(ev)
	}
	r.advance(int64(len(events)))
}
