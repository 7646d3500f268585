package scheduler

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/jittakal/audiomemlog/internal/errors"
)

type fakeDumper struct {
	mu          sync.Mutex
	calls       int
	err         error
	initialized bool
	block       chan struct{}
}

func (f *fakeDumper) DumpAll() error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeDumper) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

func (f *fakeDumper) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitForCycles(t *testing.T, s *Scheduler, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Cycles() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d cycles, have %d", n, s.Cycles())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_IntervalDumps(t *testing.T) {
	clock := clockz.NewFakeClockAt(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	dumper := &fakeDumper{initialized: true}
	s := New(dumper, time.Minute, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	for i := 1; i <= 3; i++ {
		clock.Advance(time.Minute)
		waitForCycles(t, s, uint64(i))
	}

	cancel()
	<-s.Done()

	if dumper.Calls() != 3 {
		t.Errorf("DumpAll calls = %d, want 3", dumper.Calls())
	}
	if c := s.LastCycle(); c == nil || c.Reason != "interval" {
		t.Errorf("LastCycle() = %+v, want interval cycle", c)
	}
	if s.Liveness() {
		t.Error("Liveness() should be false after stop")
	}
}

func TestScheduler_NoIntervalWaitsForTrigger(t *testing.T) {
	clock := clockz.NewFakeClockAt(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	dumper := &fakeDumper{initialized: true}
	s := New(dumper, 0, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	if s.Cycles() != 0 {
		t.Fatalf("Cycles() = %d, want 0 without a trigger", s.Cycles())
	}

	if !s.Trigger("signal") {
		t.Fatal("Trigger() = false, want true")
	}
	waitForCycles(t, s, 1)

	if c := s.LastCycle(); c.Reason != "signal" {
		t.Errorf("reason = %q, want signal", c.Reason)
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dumper := &fakeDumper{initialized: true}
	s := New(dumper, 0, WithLogger(zap.New(core)))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	s.Start(ctx)

	if logs.FilterMessage("dump scheduler already started").Len() != 1 {
		t.Error("second Start should be ignored with a warning")
	}

	s.Trigger("manual")
	waitForCycles(t, s, 1)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if s.Cycles() != 1 {
		t.Errorf("Cycles() = %d, want 1 from a single loop", s.Cycles())
	}
}

func TestScheduler_TriggerCoalesces(t *testing.T) {
	dumper := &fakeDumper{initialized: true, block: make(chan struct{})}
	s := New(dumper, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	// first request is picked up by the loop and blocks in DumpAll
	if !s.Trigger("http") {
		t.Fatal("first Trigger() = false")
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(s.requests) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("loop never picked up the first request")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !s.Trigger("http") {
		t.Error("second Trigger() = false, want true while slot is free")
	}
	if s.Trigger("http") {
		t.Error("third Trigger() = true, want false while one is pending")
	}

	close(dumper.block)
	waitForCycles(t, s, 2)
	time.Sleep(20 * time.Millisecond)

	if got := dumper.Calls(); got != 2 {
		t.Errorf("DumpAll calls = %d, want 2", got)
	}
}

func TestScheduler_DumpNowLogsByRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{"success", nil, zapcore.InfoLevel, "dump cycle completed"},
		{"retryable", &apperrors.IOError{Operation: "write", Path: "/logs/kpi.bin", Err: fs.ErrClosed}, zapcore.WarnLevel, "dump cycle failed, retrying next cycle"},
		{"permanent", fmt.Errorf("dump: %w", &apperrors.IOError{Operation: "delete", Err: fs.ErrPermission}), zapcore.ErrorLevel, "dump cycle failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			s := New(&fakeDumper{err: tt.err}, 0, WithLogger(zap.New(core)))

			err := s.DumpNow("shutdown")
			if err != tt.err {
				t.Errorf("DumpNow() error = %v, want %v", err, tt.err)
			}

			entries := logs.FilterMessage(tt.wantMsg).All()
			if len(entries) != 1 {
				t.Fatalf("found %d %q entries, want 1", len(entries), tt.wantMsg)
			}
			if entries[0].Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.wantLevel)
			}
			ctx := entries[0].ContextMap()
			if ctx["reason"] != "shutdown" {
				t.Errorf("reason field = %v", ctx["reason"])
			}
			if id, _ := ctx["cycle_id"].(string); len(id) != 36 {
				t.Errorf("cycle_id = %q, want a uuid", id)
			}
		})
	}
}

func TestScheduler_HealthStatus(t *testing.T) {
	dumper := &fakeDumper{}
	s := New(dumper, 0)

	status := s.GetStatus()
	if status["scheduler"] != "stopped" || status["recorder"] != "uninitialized" || status["last_dump"] != StatusNever {
		t.Errorf("initial status = %v", status)
	}
	if s.Readiness(context.Background()) || s.IsHealthy() {
		t.Error("uninitialized recorder should not be ready")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	dumper.mu.Lock()
	dumper.initialized = true
	dumper.err = &apperrors.IOError{Operation: "open", Path: "/logs", Err: fs.ErrPermission}
	dumper.mu.Unlock()

	s.Trigger("http")
	waitForCycles(t, s, 1)

	status = s.GetStatus()
	if status["scheduler"] != "running" || status["recorder"] != "initialized" {
		t.Errorf("running status = %v", status)
	}
	if status["last_dump"] != StatusFailed || status["last_dump_error"] == "" {
		t.Errorf("last dump status = %v", status)
	}
	if !s.IsHealthy() {
		t.Error("IsHealthy() = false, want true")
	}

	cancel()
	<-s.Done()
	if s.IsHealthy() {
		t.Error("stopped scheduler should not be healthy")
	}
}
