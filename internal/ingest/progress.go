package ingest

import (
	"sync"
)

// subscriberBuffer is how many events a slow subscriber may lag before events are dropped.
const subscriberBuffer = 32

// ProgressHub fans OCR progress out to subscribers keyed by a client-chosen upload id.
// Publishing never blocks: a subscriber with a full buffer misses the event. The terminal event
// is the exception; it is always delivered, after which the subscriber channels are closed.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan Progress]struct{}
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[string]map[chan Progress]struct{})}
}

// Subscribe registers for events of uploadID. The returned cancel func unsubscribes and closes
// the channel; it is safe to call more than once.
func (h *ProgressHub) Subscribe(uploadID string) (<-chan Progress, func()) {
	ch := make(chan Progress, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[uploadID]
	if !ok {
		set = make(map[chan Progress]struct{})
		h.subs[uploadID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[uploadID]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, uploadID)
				}
			}
		})
	}
}

// Publish delivers p to every subscriber of uploadID without blocking.
func (h *ProgressHub) Publish(uploadID string, p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[uploadID] {
		select {
		case ch <- p:
		default:
		}
	}
}

// Reporter returns a ProgressFunc publishing to uploadID. An empty id yields a no-op.
func (h *ProgressHub) Reporter(uploadID string) ProgressFunc {
	if uploadID == "" {
		return func(Progress) {}
	}
	return func(p Progress) { h.Publish(uploadID, p) }
}

// Finish delivers the terminal event for uploadID to every subscriber, evicting the oldest
// buffered event where a buffer is full, then closes and forgets those subscribers.
func (h *ProgressHub) Finish(uploadID string, err error) {
	if uploadID == "" {
		return
	}
	final := Progress{Stage: "complete", Percent: 100, Done: true}
	if err != nil {
		final = Progress{Stage: "failed", Done: true, Error: err.Error()}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[uploadID] {
		select {
		case ch <- final:
		default:
			// only senders hold h.mu, so one free slot is enough
			select {
			case <-ch:
			default:
			}
			ch <- final
		}
		close(ch)
	}
	delete(h.subs, uploadID)
}

// Subscribers reports how many subscribers uploadID has.
func (h *ProgressHub) Subscribers(uploadID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[uploadID])
}
