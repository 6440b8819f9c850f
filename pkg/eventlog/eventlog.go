// Package eventlog defines the append-only per-stream event log this core
// persists aggregates to.  Backends register themselves in Constructors;
// the log itself never interprets event payloads.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snagmail/snagmail/pkg/config"
)

var (
	// ErrVersionConflict indicates the stream advanced past the expected
	// version while a save was in flight.  Callers must reload the
	// aggregate and re-run the business operation; the log never retries.
	ErrVersionConflict = errors.New("stream version conflict")

	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("event storage unavailable")
)

// Event is the stored envelope for one committed fact.  Sequence numbers
// are 1-based within a stream; a stream's version is the sequence of its
// last event.
type Event struct {
	StreamType string
	StreamID   string
	Sequence   int64
	Name       string
	Data       []byte
	Recorded   time.Time
}

// Log is an append-only store of per-stream event sequences.
type Log interface {
	// Append atomically adds events to the identified stream, but only if
	// the stream's current version equals expectedVersion.  All events are
	// written or none are.  The stored envelopes are returned with stream,
	// sequence and timestamp fields populated.
	Append(ctx context.Context, streamType, streamID string, expectedVersion int64, events []Event) ([]Event, error)

	// Read returns the full event sequence for one stream, oldest first.
	// An absent stream yields an empty slice, not an error.
	Read(ctx context.Context, streamType, streamID string) ([]Event, error)

	// VisitAll walks every stored event, grouped by stream with each
	// stream in sequence order.  Used by projection rebuild.  Visiting
	// stops when visit returns false.
	VisitAll(ctx context.Context, visit func(Event) bool) error

	// Close releases backend resources.
	Close() error
}

// Constructors tracks registered log backends by type name.
var Constructors = make(map[string]func(config.EventLog) (Log, error))

// FromConfig creates an instance of the configured log backend.
func FromConfig(cfg config.EventLog) (Log, error) {
	if cons, ok := Constructors[cfg.Type]; ok {
		return cons(cfg)
	}
	return nil, fmt.Errorf("unknown event log type %q", cfg.Type)
}
