// Package ratelimit throttles sign-in and sign-up attempts per client IP and
// per account email.
package ratelimit

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"golang.org/x/time/rate"
)

// ErrTooManyAttempts is returned by Guard.Check when a key is exhausted.
var ErrTooManyAttempts = errors.New("too many attempts, please wait and try again")

// Keyed holds one token bucket per key. A bucket allows burst requests
// and refills fully over window.
type Keyed struct {
	burst  int
	every  rate.Limit
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewKeyed builds a keyed limiter allowing burst requests per window.
func NewKeyed(burst int, window time.Duration) *Keyed {
	if burst < 1 {
		burst = 1
	}
	return &Keyed{
		burst:   burst,
		every:   rate.Every(window / time.Duration(burst)),
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes a token for key.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	k.pruneLocked(now)
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(k.every, k.burst)}
		k.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Reset forgets key, giving it a full bucket.
func (k *Keyed) Reset(key string) {
	k.mu.Lock()
	delete(k.buckets, key)
	k.mu.Unlock()
}

// Len reports how many keys are tracked.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// pruneLocked drops buckets idle for a full window; they would be full again.
func (k *Keyed) pruneLocked(now time.Time) {
	if now.Sub(k.lastPrune) < k.window {
		return
	}
	k.lastPrune = now
	for key, b := range k.buckets {
		if now.Sub(b.seen) >= k.window {
			delete(k.buckets, key)
		}
	}
}

// Guard combines an IP limiter with an email limiter.
type Guard struct {
	ip    *Keyed
	email *Keyed
}

// NewGuard builds a guard with explicit limits.
func NewGuard(ipBurst int, ipWindow time.Duration, emailBurst int, emailWindow time.Duration) *Guard {
	return &Guard{ip: NewKeyed(ipBurst, ipWindow), email: NewKeyed(emailBurst, emailWindow)}
}

// DefaultGuard allows 10 attempts per IP per minute and 5 per email per
// 5 minutes.
func DefaultGuard() *Guard {
	return NewGuard(10, time.Minute, 5, 5*time.Minute)
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Check spends one attempt for the request's IP and, when given, the email.
// A nil guard allows everything.
func (g *Guard) Check(r *http.Request, email string) error {
	if g == nil {
		return nil
	}
	if !g.ip.Allow(auditlog.ClientIP(r)) {
		return ErrTooManyAttempts
	}
	if key := emailKey(email); key != "" && !g.email.Allow(key) {
		return ErrTooManyAttempts
	}
	return nil
}

// Succeeded clears the email's attempts after a successful sign-in.
func (g *Guard) Succeeded(email string) {
	if g == nil {
		return
	}
	if key := emailKey(email); key != "" {
		g.email.Reset(key)
	}
}
