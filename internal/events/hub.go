// Package events fans transmission results out to live subscribers.
package events

import (
	"log"
	"sync"
	"time"
)

// Event describes one finished dispatch.
type Event struct {
	Time       time.Time `json:"time"`
	Device     int       `json:"device"`
	Command    string    `json:"command"`
	Frame      string    `json:"frame"`
	Repeats    int       `json:"repeats"`
	Pulses     int       `json:"pulses"`
	DurationMs float64   `json:"duration_ms"`
	Result     string    `json:"result"` // "OK" or an error code
	Error      string    `json:"error,omitempty"`
}

type subscriber struct {
	id string
	ch chan Event
}

// Hub delivers every published event to every subscriber. A subscriber
// whose buffer is full misses that event; publishers never block.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]subscriber
	nextID int
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscriber)}
}

// Subscribe registers a listener called name with room for buffer pending
// events. The returned cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(name string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	s := subscriber{id: name, ch: make(chan Event, buffer)}
	h.subs[id] = s
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Publish hands e to every subscriber that has room for it.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		select {
		case s.ch <- e:
		default:
			log.Printf("[DEBUG] Event subscriber %s is behind, skipping event", s.id)
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
