// Package mem implements an in-memory event log, used for tests and
// ephemeral deployments.
package mem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/eventlog"
)

// Log implements an in-memory event log.
type Log struct {
	sync.Mutex
	streams map[string]*stream
}

type stream struct {
	sync.RWMutex
	streamType string
	streamID   string
	events     []eventlog.Event
}

var _ eventlog.Log = &Log{}

// New returns an empty memory log.
func New(_ config.EventLog) (eventlog.Log, error) {
	return &Log{streams: make(map[string]*stream)}, nil
}

// Append adds events to a stream after checking the expected version.
func (l *Log) Append(
	ctx context.Context,
	streamType, streamID string,
	expectedVersion int64,
	events []eventlog.Event,
) ([]eventlog.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stored []eventlog.Event
	var conflict bool
	l.withStream(streamType, streamID, true, func(s *stream) {
		if int64(len(s.events)) != expectedVersion {
			conflict = true
			return
		}
		now := time.Now()
		stored = make([]eventlog.Event, 0, len(events))
		for i, ev := range events {
			ev.StreamType = streamType
			ev.StreamID = streamID
			ev.Sequence = expectedVersion + int64(i) + 1
			ev.Recorded = now
			stored = append(stored, ev)
		}
		s.events = append(s.events, stored...)
	})
	if conflict {
		return nil, eventlog.ErrVersionConflict
	}
	return stored, nil
}

// Read returns a copy of the stream's event sequence.
func (l *Log) Read(
	ctx context.Context, streamType, streamID string,
) ([]eventlog.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var events []eventlog.Event
	l.withStream(streamType, streamID, false, func(s *stream) {
		events = make([]eventlog.Event, len(s.events))
		copy(events, s.events)
	})
	return events, nil
}

// VisitAll walks every stream in a stable order.
func (l *Log) VisitAll(ctx context.Context, visit func(eventlog.Event) bool) error {
	// Lock log, snapshot stream keys.
	l.Lock()
	keys := make([]string, 0, len(l.streams))
	for k := range l.streams {
		keys = append(keys, k)
	}
	l.Unlock()
	sort.Strings(keys)
	// Process streams.
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.Lock()
		s := l.streams[key]
		l.Unlock()
		if s == nil {
			continue
		}
		events, err := l.Read(ctx, s.streamType, s.streamID)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if !visit(ev) {
				return nil
			}
		}
	}
	return nil
}

// Close is a no-op for the memory log.
func (l *Log) Close() error {
	return nil
}

// withStream gets or creates a stream, locks it, then calls f.
func (l *Log) withStream(streamType, streamID string, writeLock bool, f func(s *stream)) {
	key := streamType + "\x00" + streamID
	l.Lock()
	s, ok := l.streams[key]
	if !ok {
		s = &stream{streamType: streamType, streamID: streamID}
		l.streams[key] = s
	}
	l.Unlock()
	if writeLock {
		s.Lock()
	} else {
		s.RLock()
	}
	defer func() {
		if writeLock {
			s.Unlock()
		} else {
			s.RUnlock()
		}
	}()
	f(s)
}
