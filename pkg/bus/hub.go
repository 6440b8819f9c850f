package bus

import (
	"container/ring"
	"context"
)

// Length of hub operation queue.
const opChanLen = 100

// Listener receives the contents of the history buffer, followed by new
// integration events.  Delivery is at-least-once and unordered across
// event types; listeners must be idempotent.
type Listener interface {
	Receive(ev Event) error
}

// Hub relays integration events on to its listeners.  All hub state is
// owned by a single goroutine consuming opChan, so listeners never race.
type Hub struct {
	// history buffer, points next event to write.  Proceeding non-nil entry is oldest event.
	history   *ring.Ring
	listeners map[Listener]struct{} // listeners interested in new events
	opChan    chan func(h *Hub)     // operations queued for this actor
}

// New constructs a new Hub which will retain historyLen events in memory
// for playback to future listeners.  Call Start to begin processing.
func New(historyLen int) *Hub {
	return &Hub{
		history:   ring.New(historyLen),
		listeners: make(map[Listener]struct{}),
		opChan:    make(chan func(h *Hub), opChanLen),
	}
}

// Start runs the hub processing loop until the context is canceled.
func (hub *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Shutdown
			close(hub.opChan)
			return
		case op := <-hub.opChan:
			op(hub)
		}
	}
}

// Dispatch queues an event for broadcast by the hub.  The event will be
// placed into the history buffer and then relayed to all registered
// listeners.  Publish is fire-and-forget for the caller.
func (hub *Hub) Dispatch(ev Event) {
	hub.opChan <- func(h *Hub) {
		if h.history != nil {
			// Add to history buffer
			h.history.Value = ev
			h.history = h.history.Next()

			// Deliver event to all listeners, removing listeners if they return an error
			for l := range h.listeners {
				if err := l.Receive(ev); err != nil {
					delete(h.listeners, l)
				}
			}
		}
	}
}

// AddListener registers a listener to receive broadcasted events, replaying
// the history buffer to it first.
func (hub *Hub) AddListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		// Playback log
		h.history.Do(func(v interface{}) {
			if v != nil {
				_ = l.Receive(v.(Event))
			}
		})

		// Add to listeners
		h.listeners[l] = struct{}{}
	}
}

// RemoveListener deletes a listener registration, it will cease to receive
// events.
func (hub *Hub) RemoveListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		delete(h.listeners, l)
	}
}

// Sync blocks until the hub has processed its queue up to this point,
// useful for unit tests.
func (hub *Hub) Sync() {
	done := make(chan struct{})
	hub.opChan <- func(h *Hub) {
		close(done)
	}
	<-done
}
