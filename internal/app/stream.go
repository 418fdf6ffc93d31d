package app

import (
	"sync"

	"github.com/vk/crosspipe/internal/engine"
)

// eventHub fans engine events out to status-server subscribers. Late
// subscribers receive the backlog first so a client connecting mid-run still
// sees the whole history.
type eventHub struct {
	mutex       sync.Mutex
	backlog     []engine.Event
	subscribers map[chan engine.Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subscribers: make(map[chan engine.Event]struct{})}
}

// Publish records the event and delivers it to every subscriber. A slow
// subscriber's event is dropped rather than blocking the engine.
func (h *eventHub) Publish(ev engine.Event) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.backlog = append(h.backlog, ev)
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel replaying the backlog followed by live events,
// and a cancel function the caller must invoke when done.
func (h *eventHub) Subscribe() (<-chan engine.Event, func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	ch := make(chan engine.Event, 64+len(h.backlog))
	for _, ev := range h.backlog {
		ch <- ev
	}
	h.subscribers[ch] = struct{}{}

	cancel := func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}
