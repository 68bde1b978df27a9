// Package timeouts holds the deadlines handlers put on backend calls.
//
// Levels:
//   - Ping: health checks
//   - Short: single-row reads and the per-request session refresh
//   - Medium: list fetches and single writes
//   - Long: multi-step mutations (event fan-out, user deletion, bulk actions)
//   - Upload: object uploads and exports
package timeouts

import (
	"sync"
	"time"
)

// Defaults used until Configure is called.
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultUpload = 2 * time.Minute
)

var (
	mu      sync.RWMutex
	current = defaults()
)

// Config holds timeout values. Zero fields keep the current value.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Upload time.Duration
}

func defaults() Config {
	return Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
		Upload: DefaultUpload,
	}
}

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(current)
}

func Ping() time.Duration   { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration  { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration   { return get(func(c Config) time.Duration { return c.Long }) }
func Upload() time.Duration { return get(func(c Config) time.Duration { return c.Upload }) }

// Configure overrides the non-zero fields of cfg. Call it during startup.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&current.Ping, cfg.Ping)
	set(&current.Short, cfg.Short)
	set(&current.Medium, cfg.Medium)
	set(&current.Long, cfg.Long)
	set(&current.Upload, cfg.Upload)
}

// Reset restores the defaults. Tests only.
func Reset() {
	mu.Lock()
	current = defaults()
	mu.Unlock()
}

// Current returns the active values, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
