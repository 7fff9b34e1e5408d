package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// broker keeps the last events in a ring and fans new ones out to stream
// subscribers. A subscriber that falls behind misses events rather than
// stalling the poller.
type broker struct {
	mu     sync.Mutex
	limit  int
	nextID int64
	ring   []Event
	subs   map[chan Event]struct{}
}

func newBroker(limit int) *broker {
	return &broker{limit: limit, subs: make(map[chan Event]struct{})}
}

// publish stamps ev with the next ID and delivers it.
func (b *broker) publish(ev Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ev.ID = b.nextID
	b.ring = append(b.ring, ev)
	if over := len(b.ring) - b.limit; over > 0 {
		b.ring = append(b.ring[:0], b.ring[over:]...)
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// recent copies the buffered events, oldest first.
func (b *broker) recent() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.ring...)
}

// subscribe registers a buffered channel. The returned func unregisters it.
func (b *broker) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
}

func (b *broker) counts() (events, subscribers int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring), len(b.subs)
}

// writeSSE frames ev as a server-sent event named after its type.
func writeSSE(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
	return err
}
