// internal/app/system/workers/periodic.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval replaces a non-positive interval given to NewPeriodic.
const DefaultInterval = time.Minute

// Periodic runs a task on a fixed interval until stopped.
type Periodic struct {
	name     string
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
	task     func(ctx context.Context) error

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPeriodic creates a worker that calls task every interval. A
// non-positive interval is logged and replaced by DefaultInterval. Each call
// gets a context bounded by timeout; a zero timeout uses the interval.
func NewPeriodic(name string, logger *zap.Logger, interval, timeout time.Duration, task func(ctx context.Context) error) *Periodic {
	if interval <= 0 {
		logger.Warn("non-positive worker interval; using default",
			zap.String("worker", name),
			zap.Duration("interval", interval),
			zap.Duration("default", DefaultInterval))
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = interval
	}
	return &Periodic{
		name:     name,
		log:      logger,
		interval: interval,
		timeout:  timeout,
		task:     task,
		stopCh:   make(chan struct{}),
	}
}

// Interval returns the tick interval in use.
func (w *Periodic) Interval() time.Duration { return w.interval }

// Start begins the loop. When immediate is true the task runs once before
// the first tick.
func (w *Periodic) Start(immediate bool) {
	w.wg.Add(1)
	go w.run(immediate)
	w.log.Debug("worker started",
		zap.String("worker", w.name),
		zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish. Calling it
// more than once is safe.
func (w *Periodic) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Debug("worker stopped", zap.String("worker", w.name))
	})
}

func (w *Periodic) run(immediate bool) {
	defer w.wg.Done()

	if immediate {
		w.tick()
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Periodic) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	// Stop cancels an in-flight task.
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := w.task(ctx); err != nil {
		w.log.Warn("worker task failed", zap.String("worker", w.name), zap.Error(err))
	}
}
