// Package memlog is the registry of per-kind record queues and counter
// arrays. Every mutating operation and every dump runs under one lock shared
// by all kinds.
package memlog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/internal/buffer"
	"github.com/jittakal/audiomemlog/internal/dump"
	apperrors "github.com/jittakal/audiomemlog/internal/errors"
	"github.com/jittakal/audiomemlog/pkg/record"
)

// TypeConfig holds the settings of one queue or counter kind.
type TypeConfig struct {
	Enabled bool
	// SizeBytes is the ring budget. Ignored for counter kinds.
	SizeBytes  int64
	OutputFile string
	MaxFiles   int
}

// Config is the immutable per-kind configuration of a Recorder. Kinds
// missing from the maps are disabled.
type Config struct {
	PrintTime bool
	Queues    map[record.QueueKind]TypeConfig
	Counters  map[record.CounterKind]TypeConfig
}

// MetricsCollector defines metrics operations for the recorder.
type MetricsCollector interface {
	dump.MetricsCollector
	IncRecordsEnqueued(kind string)
	IncRecordsOverwritten(kind string)
	SetQueueDepth(kind string, depth int)
	IncCounterIncrements(kind string)
}

type entryState uint8

const (
	stateUninitialized entryState = iota
	stateInitialized
	stateDeinitialized
)

func (s entryState) String() string {
	switch s {
	case stateInitialized:
		return "initialized"
	case stateDeinitialized:
		return "deinitialized"
	default:
		return "uninitialized"
	}
}

type queueEntry struct {
	cfg    TypeConfig
	target dump.Target
	state  entryState
	ring   *buffer.Ring
}

type counterEntry struct {
	cfg      TypeConfig
	target   dump.Target
	state    entryState
	counters *buffer.Counters
}

// Recorder owns one entry per queue kind and per counter kind.
type Recorder struct {
	mu sync.Mutex
	// live counts initialized entries that own memory. The recorder is
	// considered initialized while it is non-zero.
	live int

	queues   []queueEntry
	counters []counterEntry

	printTime bool
	maxArena  int64

	writer  *dump.Writer
	clock   clockz.Clock
	logger  *zap.Logger
	metrics MetricsCollector

	dumpOpts []dump.Option
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithClock sets the clock used for timestamps and file names.
func WithClock(clock clockz.Clock) Option {
	return func(r *Recorder) { r.clock = clock }
}

// WithFs sets the filesystem dumps are written to.
func WithFs(fs afero.Fs) Option {
	return func(r *Recorder) { r.dumpOpts = append(r.dumpOpts, dump.WithFs(fs)) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithMaxArenaBytes caps the arena size of any single queue. Zero disables
// the cap.
func WithMaxArenaBytes(n int64) Option {
	return func(r *Recorder) { r.maxArena = n }
}

// WithTimestampFormat sets the strftime format used in dump file names.
func WithTimestampFormat(format string) Option {
	return func(r *Recorder) { r.dumpOpts = append(r.dumpOpts, dump.WithTimestampFormat(format)) }
}

// WithSkipEmpty suppresses dump files for empty queues.
func WithSkipEmpty(skip bool) Option {
	return func(r *Recorder) { r.dumpOpts = append(r.dumpOpts, dump.WithSkipEmpty(skip)) }
}

// New creates a Recorder. No memory is allocated until the kinds are
// initialized.
func New(cfg Config, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		queues:    make([]queueEntry, len(record.QueueKinds())),
		counters:  make([]counterEntry, len(record.CounterKinds())),
		printTime: cfg.PrintTime,
		clock:     clockz.RealClock,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for kind, tc := range cfg.Queues {
		if !kind.Valid() {
			return nil, &apperrors.ConfigError{Field: "queue", Reason: fmt.Sprintf("unknown queue kind %d", uint8(kind))}
		}
		if tc.Enabled && tc.OutputFile == "" {
			return nil, &apperrors.ConfigError{Field: kind.String() + ".outputFile", Reason: "required for an enabled queue"}
		}
		if tc.MaxFiles < 0 {
			return nil, &apperrors.ConfigError{Field: kind.String() + ".maxBinFiles", Reason: "must not be negative"}
		}
		r.queues[kind] = queueEntry{cfg: tc, target: dump.ParseTarget(tc.OutputFile)}
	}

	for kind, tc := range cfg.Counters {
		if !kind.Valid() {
			return nil, &apperrors.ConfigError{Field: "statbuf", Reason: fmt.Sprintf("unknown counter kind %d", uint8(kind))}
		}
		if tc.Enabled && tc.OutputFile == "" {
			return nil, &apperrors.ConfigError{Field: kind.String() + ".outputFile", Reason: "required for an enabled counter array"}
		}
		if tc.MaxFiles < 0 {
			return nil, &apperrors.ConfigError{Field: kind.String() + ".maxBinFiles", Reason: "must not be negative"}
		}
		r.counters[kind] = counterEntry{cfg: tc, target: dump.ParseTarget(tc.OutputFile)}
	}

	writerOpts := append([]dump.Option{
		dump.WithClock(r.clock),
		dump.WithLogger(r.logger),
	}, r.dumpOpts...)
	if r.metrics != nil {
		writerOpts = append(writerOpts, dump.WithMetrics(r.metrics))
	}

	writer, err := dump.NewWriter(writerOpts...)
	if err != nil {
		return nil, err
	}
	r.writer = writer

	return r, nil
}

func (r *Recorder) queue(op string, kind record.QueueKind) (*queueEntry, error) {
	if !kind.Valid() {
		return nil, &apperrors.TypeError{Op: op, Type: kind.String(), Err: apperrors.ErrInvalidType}
	}
	return &r.queues[kind], nil
}

func (r *Recorder) counterSet(op string, kind record.CounterKind) (*counterEntry, error) {
	if !kind.Valid() {
		return nil, &apperrors.TypeError{Op: op, Type: kind.String(), Err: apperrors.ErrInvalidType}
	}
	return &r.counters[kind], nil
}

func (r *Recorder) trace(op string, kind fmt.Stringer, start time.Time) {
	if !r.printTime {
		return
	}
	r.logger.Info("memlog timing",
		zap.String("op", op),
		zap.Stringer("type", kind),
		zap.Int64("start_ms", start.UnixMilli()),
		zap.Duration("elapsed", r.clock.Now().Sub(start)),
	)
}

// InitQueue allocates the ring for an enabled queue kind.
func (r *Recorder) InitQueue(kind record.QueueKind) error {
	defer r.trace("init_queue", kind, r.clock.Now())

	e, err := r.queue("init", kind)
	if err != nil {
		return err
	}
	if !e.cfg.Enabled {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e.state == stateInitialized {
		return &apperrors.TypeError{Op: "init", Type: kind.String(), Err: apperrors.ErrAlreadyInitialized}
	}

	ring, err := buffer.NewRing(kind.Size(), e.cfg.SizeBytes, r.maxArena)
	if err != nil {
		return &apperrors.TypeError{Op: "init", Type: kind.String(), Err: err}
	}

	e.ring = ring
	e.state = stateInitialized
	r.live++

	r.logger.Info("queue initialized",
		zap.Stringer("type", kind),
		zap.Int("capacity", ring.Cap()),
		zap.Int("record_size", ring.RecordSize()),
		zap.String("output", e.cfg.OutputFile),
	)
	return nil
}

// DeinitQueue frees the ring of a queue kind.
func (r *Recorder) DeinitQueue(kind record.QueueKind) error {
	defer r.trace("deinit_queue", kind, r.clock.Now())

	e, err := r.queue("deinit", kind)
	if err != nil {
		return err
	}
	if !e.cfg.Enabled {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e.state != stateInitialized {
		return &apperrors.TypeError{Op: "deinit", Type: kind.String(), Err: apperrors.ErrNotInitialized}
	}

	e.ring.Release()
	e.ring = nil
	e.state = stateDeinitialized
	r.live--

	if r.metrics != nil {
		r.metrics.SetQueueDepth(kind.String(), 0)
	}
	r.logger.Info("queue deinitialized", zap.Stringer("type", kind))
	return nil
}

// InitCounters zero-fills the counter array for an enabled counter kind.
func (r *Recorder) InitCounters(kind record.CounterKind) error {
	defer r.trace("init_counters", kind, r.clock.Now())

	e, err := r.counterSet("init", kind)
	if err != nil {
		return err
	}
	if !e.cfg.Enabled {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e.state == stateInitialized {
		return &apperrors.TypeError{Op: "init", Type: kind.String(), Err: apperrors.ErrAlreadyInitialized}
	}

	e.counters = buffer.NewCounters(kind.Length())
	e.state = stateInitialized
	r.live++

	r.logger.Info("counters initialized",
		zap.Stringer("type", kind),
		zap.Int("length", kind.Length()),
		zap.String("output", e.cfg.OutputFile),
	)
	return nil
}

// DeinitCounters clears and frees the counter array of a counter kind.
func (r *Recorder) DeinitCounters(kind record.CounterKind) error {
	defer r.trace("deinit_counters", kind, r.clock.Now())

	e, err := r.counterSet("deinit", kind)
	if err != nil {
		return err
	}
	if !e.cfg.Enabled {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e.state != stateInitialized {
		return &apperrors.TypeError{Op: "deinit", Type: kind.String(), Err: apperrors.ErrNotInitialized}
	}

	e.counters.Clear()
	e.counters = nil
	e.state = stateDeinitialized
	r.live--

	r.logger.Info("counters deinitialized", zap.Stringer("type", kind))
	return nil
}

// InitAll initializes every kind. Failures are joined; kinds that
// initialize successfully stay initialized.
func (r *Recorder) InitAll() error {
	var errs []error
	for _, kind := range record.QueueKinds() {
		if err := r.InitQueue(kind); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kind := range record.CounterKinds() {
		if err := r.InitCounters(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeinitAll deinitializes every initialized kind.
func (r *Recorder) DeinitAll() error {
	var errs []error
	for _, kind := range record.QueueKinds() {
		if err := r.DeinitQueue(kind); err != nil && !apperrors.Is(err, apperrors.ErrNotInitialized) {
			errs = append(errs, err)
		}
	}
	for _, kind := range record.CounterKinds() {
		if err := r.DeinitCounters(kind); err != nil && !apperrors.Is(err, apperrors.ErrNotInitialized) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Initialized reports whether any kind currently owns memory.
func (r *Recorder) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live > 0
}

// FetchTimestamp returns the current time in milliseconds since the epoch.
func (r *Recorder) FetchTimestamp() uint64 {
	return uint64(r.clock.Now().UnixMilli())
}
