package testutil

import (
	"context"

	"github.com/dalemusser/freshershub/internal/backend"
)

// EndedFeed is a Realtime whose subscriptions close straight away, the way
// a change stream does after a server error.
type EndedFeed struct{}

func (EndedFeed) Subscribe(ctx context.Context, table string) (*backend.Subscription, error) {
	ch := make(chan backend.ChangeEvent)
	close(ch)
	return backend.NewSubscription(ch, nil), nil
}

// WithEndedFeed returns a client over b whose change feeds end at once.
func WithEndedFeed(c *backend.Client) *backend.Client {
	return backend.NewClient(c.Auth, c.DB, c.Storage, EndedFeed{})
}
