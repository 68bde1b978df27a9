package eventstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// Watcher keeps a store's event list current by re-fetching on every
// change to the events table.
type Watcher struct {
	store   *Store
	cancel  context.CancelFunc
	done    chan struct{}
	updates chan struct{}
	once    sync.Once
}

// Watch subscribes to event changes, fetches once, and re-fetches on each
// change until Stop is called or the change feed ends. The watcher outlives
// ctx's cancellation but keeps its values.
func (s *Store) Watch(ctx context.Context) (*Watcher, error) {
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := s.client.Realtime.Subscribe(wctx, EventsTable)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to events: %w", err)
	}
	if err := s.FetchEvents(ctx); err != nil {
		s.log.Warn("initial events fetch failed", zap.Error(err))
	}

	w := &Watcher{
		store:   s,
		cancel:  cancel,
		done:    make(chan struct{}),
		updates: make(chan struct{}, 1),
	}
	go func() {
		defer close(w.done)
		defer sub.Unsubscribe()
		for ev := range sub.Events() {
			metrics.RealtimeEvents.WithLabelValues(ev.Table).Inc()
			if err := s.FetchEvents(wctx); err != nil {
				s.log.Warn("events re-fetch after change failed",
					zap.String("op", ev.Op), zap.String("id", ev.ID), zap.Error(err))
				continue
			}
			select {
			case w.updates <- struct{}{}:
			default:
			}
		}
		if wctx.Err() == nil {
			s.log.Error("events change feed ended; schedule is no longer live")
		}
	}()
	return w, nil
}

// Updates receives a signal after each successful re-fetch. Signals are
// coalesced when nobody is listening.
func (w *Watcher) Updates() <-chan struct{} { return w.updates }

// Done is closed once the watcher has exited, after Stop or when the change
// feed ends on its own. The store's list is stale from then on.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Stop ends the subscription and waits for the watcher to exit. Safe to
// call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}
