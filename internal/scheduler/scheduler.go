// Package scheduler runs periodic and on-demand dumps of every recorder type.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/internal/errors"
)

// Dumper flushes every recorder type to its output files.
type Dumper interface {
	DumpAll() error
	Initialized() bool
}

// Status values reported for the last dump cycle.
const (
	StatusNever   = "never"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Cycle describes one completed dump cycle.
type Cycle struct {
	ID       string
	Reason   string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Scheduler triggers DumpAll on a fixed interval and on request. Requests
// that arrive while one is already pending are coalesced.
type Scheduler struct {
	dumper   Dumper
	interval time.Duration
	clock    clockz.Clock
	logger   *zap.Logger

	requests chan string
	started  atomic.Bool
	running  atomic.Bool
	cycles   atomic.Uint64
	done     chan struct{}

	mu   sync.RWMutex
	last *Cycle
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source. Defaults to clockz.RealClock.
func WithClock(clock clockz.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a scheduler. A non-positive interval disables periodic dumps;
// only Trigger and DumpNow then cause a dump.
func New(dumper Dumper, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		dumper:   dumper,
		interval: interval,
		clock:    clockz.RealClock,
		logger:   zap.NewNop(),
		requests: make(chan string, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the dump loop. The ticker is created before Start returns.
// The loop exits when ctx is cancelled. Only the first call has any effect.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Warn("dump scheduler already started")
		return
	}

	var tick <-chan time.Time
	var ticker interface {
		C() <-chan time.Time
		Stop()
	}
	if s.interval > 0 {
		ticker = s.clock.NewTicker(s.interval)
		tick = ticker.C()
	}

	s.running.Store(true)
	s.logger.Info("dump scheduler started", zap.Duration("interval", s.interval))

	go func() {
		defer close(s.done)
		defer s.running.Store(false)
		if ticker != nil {
			defer ticker.Stop()
		}

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("dump scheduler stopped", zap.Uint64("cycles", s.cycles.Load()))
				return
			case <-tick:
				s.run("interval")
			case reason := <-s.requests:
				s.run(reason)
			}
		}
	}()
}

// Done is closed once the loop started by Start has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Trigger requests an immediate dump. It returns false if a request is
// already pending, in which case this one is folded into it.
func (s *Scheduler) Trigger(reason string) bool {
	select {
	case s.requests <- reason:
		return true
	default:
		return false
	}
}

// DumpNow runs a dump cycle on the caller's goroutine. It must not be called
// while the loop is running.
func (s *Scheduler) DumpNow(reason string) error {
	return s.run(reason).Err
}

// Cycles returns the number of completed dump cycles.
func (s *Scheduler) Cycles() uint64 {
	return s.cycles.Load()
}

// LastCycle returns the most recent cycle, or nil if none has run.
func (s *Scheduler) LastCycle() *Cycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	c := *s.last
	return &c
}

func (s *Scheduler) run(reason string) Cycle {
	c := Cycle{
		ID:      uuid.NewString(),
		Reason:  reason,
		Started: s.clock.Now(),
	}

	c.Err = s.dumper.DumpAll()
	c.Duration = s.clock.Now().Sub(c.Started)

	fields := []zap.Field{
		zap.String("cycle_id", c.ID),
		zap.String("reason", reason),
		zap.Duration("elapsed", c.Duration),
	}
	switch {
	case c.Err == nil:
		s.logger.Info("dump cycle completed", fields...)
	case errors.IsRetryable(c.Err):
		s.logger.Warn("dump cycle failed, retrying next cycle", append(fields, zap.Error(c.Err))...)
	default:
		s.logger.Error("dump cycle failed", append(fields, zap.Error(c.Err))...)
	}

	s.mu.Lock()
	s.last = &c
	s.mu.Unlock()
	s.cycles.Add(1)

	return c
}

// Liveness reports whether the dump loop is running.
func (s *Scheduler) Liveness() bool {
	return s.running.Load()
}

// Readiness reports whether at least one recorder type is initialized.
func (s *Scheduler) Readiness(ctx context.Context) bool {
	return s.dumper.Initialized()
}

// IsHealthy reports liveness and readiness together.
func (s *Scheduler) IsHealthy() bool {
	return s.Liveness() && s.dumper.Initialized()
}

// GetStatus returns per-component status strings for the readiness probe.
func (s *Scheduler) GetStatus() map[string]string {
	status := map[string]string{
		"scheduler": "stopped",
		"recorder":  "uninitialized",
		"last_dump": StatusNever,
	}
	if s.Liveness() {
		status["scheduler"] = "running"
	}
	if s.dumper.Initialized() {
		status["recorder"] = "initialized"
	}

	if c := s.LastCycle(); c != nil {
		status["last_dump"] = StatusSuccess
		if c.Err != nil {
			status["last_dump"] = StatusFailed
			status["last_dump_error"] = c.Err.Error()
		}
		status["last_dump_id"] = c.ID
		status["last_dump_at"] = c.Started.UTC().Format(time.RFC3339)
	}
	return status
}
