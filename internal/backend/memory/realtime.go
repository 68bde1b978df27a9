package memory

import (
	"context"
	"sync"

	"github.com/dalemusser/freshershub/internal/backend"
)

const subscriberBuffer = 64

type hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan backend.ChangeEvent
}

func newHub() *hub {
	return &hub{subs: map[string]map[int]chan backend.ChangeEvent{}}
}

// Subscribe registers a change feed on table. The feed also ends when ctx is done.
func (h *hub) Subscribe(ctx context.Context, table string) (*backend.Subscription, error) {
	ch := make(chan backend.ChangeEvent, subscriberBuffer)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[table] == nil {
		h.subs[table] = map[int]chan backend.ChangeEvent{}
	}
	h.subs[table][id] = ch
	h.mu.Unlock()

	done := make(chan struct{})
	stop := func() {
		h.mu.Lock()
		delete(h.subs[table], id)
		close(ch)
		h.mu.Unlock()
		close(done)
	}
	sub := backend.NewSubscription(ch, stop)

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-done:
		}
	}()
	return sub, nil
}

// publish delivers ev to every subscriber of its table. Slow subscribers
// whose buffer is full miss the event.
func (h *hub) publish(ev backend.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[ev.Table] {
		select {
		case ch <- ev:
		default:
		}
	}
}
