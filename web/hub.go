package web

import (
	"sync"

	"studium/session"
)

// Hub fans analysis progress events out to websocket subscribers, keyed
// by class id. The pipeline goroutine only enqueues; subscribers drain
// their own buffered channels.
type Hub struct {
	mu   sync.Mutex
	subs map[int64]map[chan session.Progress]bool
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int64]map[chan session.Progress]bool),
	}
}

// Subscribe registers interest in one class's progress events.
func (h *Hub) Subscribe(classID int64) chan session.Progress {
	ch := make(chan session.Progress, 64)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[classID] == nil {
		h.subs[classID] = make(map[chan session.Progress]bool)
	}
	h.subs[classID][ch] = true
	return ch
}

func (h *Hub) Unsubscribe(classID int64, ch chan session.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[classID]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.subs, classID)
		}
	}
}

// Observer returns a session observer that broadcasts into this hub.
// Delivery is best-effort: a subscriber that stops draining loses events
// rather than stalling the pipeline.
func (h *Hub) Observer(classID int64) session.Observer {
	return func(p session.Progress) {
		h.mu.Lock()
		defer h.mu.Unlock()
		for ch := range h.subs[classID] {
			select {
			case ch <- p:
			default:
			}
		}
	}
}
