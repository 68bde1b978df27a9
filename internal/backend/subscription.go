package backend

import "sync"

// Subscription is a live change feed. Events is closed once the feed ends,
// either because Unsubscribe was called or the underlying stream failed.
type Subscription struct {
	events <-chan ChangeEvent
	stop   func()
	once   sync.Once
}

// NewSubscription wraps a change channel and the function that tears it down.
func NewSubscription(events <-chan ChangeEvent, stop func()) *Subscription {
	return &Subscription{events: events, stop: stop}
}

// Events returns the change channel.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Unsubscribe stops the feed. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
