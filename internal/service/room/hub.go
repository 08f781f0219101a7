package room

import (
	"sync"

	"github.com/nsong/lingotalk/internal/transport"
)

const subscriberBuffer = 32

// Subscriber receives one room's live messages. The channel closes on
// Unsubscribe.
type Subscriber struct {
	C chan transport.Payload
}

// Hub fans room messages out to live subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe attaches a new listener to a room's stream.
func (h *Hub) Subscribe(code string) *Subscriber {
	sub := &Subscriber{C: make(chan transport.Payload, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[code]; !ok {
		h.subs[code] = make(map[*Subscriber]struct{})
	}
	h.subs[code][sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a listener and closes its channel.
func (h *Hub) Unsubscribe(code string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[code]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, code)
	}
	close(sub.C)
}

// Subscribers reports the number of live listeners on a room.
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[code])
}

// Broadcast delivers a message to every live subscriber of a room.
// Slow consumers are skipped rather than allowed to stall the room;
// they recover the gap through backfill on their next reconnect.
func (h *Hub) Broadcast(code string, payload transport.Payload) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[code] {
		select {
		case sub.C <- payload:
		default:
		}
	}
}
