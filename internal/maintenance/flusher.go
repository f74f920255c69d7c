// Package maintenance provides an auto-commit scheduler for embedding
// applications. The engine itself stays commit-explicit; a Flusher runs
// Driver.Commit on a cron expression or fixed interval so long-running
// applications do not lose everything on shutdown.
package maintenance

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Committer is the slice of the driver the flusher needs.
type Committer interface {
	Commit() error
}

// Flusher schedules periodic commits. The engine provides no internal
// locking, so when other goroutines touch the driver a shared sync.Locker
// must be supplied via WithLocker; the flusher holds it around each
// commit.
type Flusher struct {
	committer Committer
	logger    *slog.Logger
	locker    sync.Locker
	cron      *cron.Cron

	mu      sync.Mutex // guards started
	started bool
	useCron bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	running sync.Mutex // no-overlap guard around commits
}

// FlusherOption configures a Flusher.
type FlusherOption func(*Flusher)

// WithFlusherLogger configures structured logging for scheduled commits.
func WithFlusherLogger(logger *slog.Logger) FlusherOption {
	return func(f *Flusher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLocker supplies the mutex the embedding application uses to
// serialize driver access. The flusher holds it for the duration of each
// commit.
func WithLocker(l sync.Locker) FlusherOption {
	return func(f *Flusher) {
		f.locker = l
	}
}

// NewFlusher builds a flusher around a driver (or anything exposing
// Commit).
func NewFlusher(c Committer, opts ...FlusherOption) *Flusher {
	f := &Flusher{
		committer: c,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.cron = cron.New()
	return f
}

// StartCron schedules commits by cron expression (standard five-field
// format, e.g. "*/5 * * * *").
func (f *Flusher) StartCron(expr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return fmt.Errorf("flusher already started")
	}
	if _, err := f.cron.AddFunc(expr, f.flush); err != nil {
		return fmt.Errorf("cron expression %q: %w", expr, err)
	}
	f.cron.Start()
	f.started = true
	f.useCron = true
	f.logger.Info("auto-commit started", "cron", expr)
	return nil
}

// StartInterval schedules commits at a fixed interval. Intervals below
// one second are honored, unlike cron schedules.
func (f *Flusher) StartInterval(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return fmt.Errorf("flusher already started")
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %v", d)
	}
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	go f.runInterval(d)
	f.started = true
	f.logger.Info("auto-commit started", "interval", d)
	return nil
}

func (f *Flusher) runInterval(d time.Duration) {
	defer close(f.doneCh)
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.flush()
		}
	}
}

// Stop halts the schedule and waits for an in-flight commit to finish.
func (f *Flusher) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return
	}
	if f.useCron {
		ctx := f.cron.Stop()
		<-ctx.Done()
	} else {
		close(f.stopCh)
		<-f.doneCh
	}
	// Wait out a commit that was running when the schedule stopped.
	f.running.Lock()
	f.running.Unlock() //nolint:staticcheck // immediate unlock: the lock is only a barrier
	f.started = false
	f.logger.Info("auto-commit stopped")
}

// flush runs one commit. Overlapping ticks are skipped, not queued.
func (f *Flusher) flush() {
	if !f.running.TryLock() {
		f.logger.Warn("auto-commit tick skipped, previous commit still running")
		return
	}
	defer f.running.Unlock()
	if f.locker != nil {
		f.locker.Lock()
		defer f.locker.Unlock()
	}
	start := time.Now()
	if err := f.committer.Commit(); err != nil {
		f.logger.Error("auto-commit failed", "error", err)
		return
	}
	f.logger.Debug("auto-commit", "elapsed", time.Since(start))
}
