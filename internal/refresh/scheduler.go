// Package refresh runs the periodic session-bound data refresh.
package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"flightdeck-go/internal/metrics"
)

// FetchFunc performs one refresh cycle for the given member. silent cycles
// must not surface loading state to the UI.
type FetchFunc func(ctx context.Context, userID string, silent bool) error

// DefaultInterval is the cadence between silent refresh cycles.
const DefaultInterval = 30 * time.Second

// Executor runs a cycle off the scheduler's timer goroutine. Implemented by
// worker.Pool; Submit returns false when the cycle cannot run right now.
type Executor interface {
	Submit(fn func()) bool
}

// Scheduler drives periodic refreshes for exactly one member at a time.
// Starting it for a new member fully stops the previous schedule first, so
// there is never more than one timer alive.
type Scheduler struct {
	interval time.Duration
	fetch    FetchFunc
	exec     Executor
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	userID string
}

// NewScheduler builds a Scheduler. exec may be nil, in which case cycles run
// inline on the timer goroutine.
func NewScheduler(interval time.Duration, fetch FetchFunc, exec Executor, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		fetch:    fetch,
		exec:     exec,
		logger:   logger,
	}
}

// Start begins refreshing for userID: one immediate loud cycle, then silent
// cycles on the interval. Any schedule already running is stopped first and
// its timer torn down before the new one starts.
func (s *Scheduler) Start(userID string) {
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel
	s.userID = userID
	s.mu.Unlock()

	s.logger.Info("refresh schedule started",
		zap.String("user_id", userID),
		zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.dispatch(ctx, userID, false)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.dispatch(ctx, userID, true)
			}
		}
	}()
}

// dispatch runs one cycle, off-thread when an executor is present. A cycle
// that cannot be queued is skipped, not retried; the next tick covers it.
func (s *Scheduler) dispatch(ctx context.Context, userID string, silent bool) {
	mode := "loud"
	if silent {
		mode = "silent"
	}

	cycle := func() {
		if err := s.fetch(ctx, userID, silent); err != nil {
			// Failures never stop the schedule.
			metrics.RefreshCycles.WithLabelValues(mode, "error").Inc()
			s.logger.Warn("refresh cycle failed",
				zap.String("user_id", userID),
				zap.String("mode", mode),
				zap.Error(err))
			return
		}
		metrics.RefreshCycles.WithLabelValues(mode, "ok").Inc()
	}

	if s.exec == nil {
		cycle()
		return
	}
	if !s.exec.Submit(cycle) {
		metrics.RefreshCycles.WithLabelValues(mode, "skipped").Inc()
		s.logger.Debug("refresh tick skipped, previous cycle still running",
			zap.String("user_id", userID))
	}
}

// Stop tears the current schedule down and waits for its goroutine to exit.
// Safe to call when nothing is running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.userID = ""
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Running reports whether a schedule is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// UserID returns the member the current schedule is bound to, or empty.
func (s *Scheduler) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}
