// Package notificationstore backs the notification bell: the signed-in
// member's recent notifications and their unread count.
package notificationstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/cache"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/app/system/workers"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultLimit caps how many notifications FetchNotifications loads.
const DefaultLimit = 50

// DefaultUnreadTTL is used when New is given no TTL.
const DefaultUnreadTTL = 30 * time.Second

// State is a point-in-time copy of the store.
type State struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
	Loading       bool                  `json:"loading"`
	Error         string                `json:"error,omitempty"`
}

// Store holds the current member's notifications.
type Store struct {
	client *backend.Client
	log    *zap.Logger
	cache  *cache.Client
	ttl    time.Duration

	mu      sync.RWMutex
	list    []models.Notification
	unread  int64
	loading bool
	err     string
}

// New builds a store acting through client. unreadCache may be nil.
func New(client *backend.Client, logger *zap.Logger, unreadCache *cache.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultUnreadTTL
	}
	return &Store{client: client, log: logger, cache: unreadCache, ttl: ttl}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Notifications: append([]models.Notification{}, s.list...),
		Unread:        s.unread,
		Loading:       s.loading,
		Error:         s.err,
	}
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) end(op string, err error) error {
	metrics.Op("notifications", op, err)
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
	return err
}

func (s *Store) userID() (string, error) {
	sess := s.client.Session()
	if sess == nil || sess.User.ID == "" {
		return "", backend.ErrNoSession
	}
	return sess.User.ID, nil
}

// FetchNotifications replaces the list with the newest notifications.
func (s *Store) FetchNotifications(ctx context.Context) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	s.begin()
	list, err := backend.FindAll[models.Notification](ctx, s.client.DB,
		backend.From(notify.NotificationsTable).
			Eq("user_id", uid).
			OrderBy("created_at", true).
			Limit(DefaultLimit))
	if err != nil {
		return s.end("fetch", fmt.Errorf("fetch notifications: %w", err))
	}
	s.mu.Lock()
	s.list = list
	s.mu.Unlock()
	return s.end("fetch", nil)
}

// UnreadCount returns how many notifications are unread, served from the
// cache when present.
func (s *Store) UnreadCount(ctx context.Context) (int64, error) {
	uid, err := s.userID()
	if err != nil {
		return 0, err
	}
	if n, ok := s.cache.GetInt(ctx, notify.UnreadKey(uid)); ok {
		s.setUnread(n)
		return n, nil
	}
	n, err := s.client.DB.Count(ctx,
		backend.From(notify.NotificationsTable).Eq("user_id", uid).Eq("read", false))
	if err != nil {
		return 0, s.end("unread", fmt.Errorf("count unread: %w", err))
	}
	s.cache.SetInt(ctx, notify.UnreadKey(uid), n, s.ttl)
	s.setUnread(n)
	return n, nil
}

func (s *Store) setUnread(n int64) {
	s.mu.Lock()
	s.unread = n
	s.mu.Unlock()
}

// MarkRead marks one of the member's notifications read. Marking an
// already-read notification is not an error.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	s.begin()
	n, err := s.client.DB.Update(ctx,
		backend.From(notify.NotificationsTable).Eq("_id", id).Eq("user_id", uid),
		backend.Set{"read": true})
	if err == nil && n == 0 {
		err = backend.ErrNotFound
	}
	if err != nil {
		return s.end("read", fmt.Errorf("mark read: %w", err))
	}
	s.cache.Delete(ctx, notify.UnreadKey(uid))

	s.mu.Lock()
	for i := range s.list {
		if s.list[i].ID == id && !s.list[i].Read {
			s.list[i].Read = true
			if s.unread > 0 {
				s.unread--
			}
		}
	}
	s.mu.Unlock()
	return s.end("read", nil)
}

// MarkAllRead marks every unread notification of the member read.
func (s *Store) MarkAllRead(ctx context.Context) (int64, error) {
	uid, err := s.userID()
	if err != nil {
		return 0, err
	}
	s.begin()
	n, err := s.client.DB.Update(ctx,
		backend.From(notify.NotificationsTable).Eq("user_id", uid).Eq("read", false),
		backend.Set{"read": true})
	if err != nil {
		return 0, s.end("read_all", fmt.Errorf("mark all read: %w", err))
	}
	s.cache.Delete(ctx, notify.UnreadKey(uid))

	s.mu.Lock()
	for i := range s.list {
		s.list[i].Read = true
	}
	s.unread = 0
	s.mu.Unlock()
	return n, s.end("read_all", nil)
}

// refresh re-reads the list and the unread count.
func (s *Store) refresh(ctx context.Context) error {
	if err := s.FetchNotifications(ctx); err != nil {
		return err
	}
	_, err := s.UnreadCount(ctx)
	return err
}

// Poller re-fetches notifications on an interval.
type Poller struct {
	w *workers.Periodic
}

// StartPolling refreshes the store immediately and then every interval
// until Stop. A non-positive interval falls back to
// workers.DefaultInterval.
func (s *Store) StartPolling(interval time.Duration) *Poller {
	w := workers.NewPeriodic("notifications", s.log, interval, 0, s.refresh)
	w.Start(true)
	return &Poller{w: w}
}

// Stop ends polling and waits for an in-flight refresh. Safe to call twice.
func (p *Poller) Stop() {
	p.w.Stop()
}
