package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"finlink/internal/repository"
)

// DefaultReapInterval is how often the reaper sweeps expired sessions.
const DefaultReapInterval = time.Minute

// SessionReaper periodically evicts expired linking sessions and their
// sub-flow state. It runs independently of the request flow and relies on
// the repository's per-session locks, so it never evicts a session while
// a writer holds it mid-transition.
type SessionReaper struct {
	sessions repository.SessionRepository
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewSessionReaper creates a reaper. A non-positive interval selects the
// default of one minute.
func NewSessionReaper(sessions repository.SessionRepository, interval time.Duration, logger *slog.Logger) *SessionReaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionReaper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep goroutine. Starting a running reaper is a
// no-op. The goroutine ends when ctx is done or Stop is called.
func (r *SessionReaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.logger.Warn("session reaper already running")
		return
	}
	r.running = true

	go func() {
		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
		}()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("session reaper started", "interval", r.interval)
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("session reaper stopping, context done")
				return
			case <-r.stop:
				r.logger.Info("session reaper stopping")
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

// Stop signals the sweep goroutine to end.
func (r *SessionReaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	select {
	case r.stop <- struct{}{}:
	default:
	}
}

// Sweep runs one eviction pass immediately. Exposed for tests and for
// operational tooling.
func (r *SessionReaper) Sweep(ctx context.Context) (int, error) {
	return r.sessions.DeleteExpired(ctx)
}

func (r *SessionReaper) sweep(ctx context.Context) {
	reaped, err := r.sessions.DeleteExpired(ctx)
	if err != nil {
		r.logger.Error("session sweep failed", "error", err)
		return
	}
	if reaped > 0 {
		r.logger.Info("reaped expired sessions", "count", reaped)
	}
}
