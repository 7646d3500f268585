// Package generator produces synthetic diagnostic traffic for the recorder:
// stream lifecycles, timing probes, graph operations and subsystem resets.
package generator

import (
	"errors"
	"math/rand"

	"github.com/jaswdr/faker"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/pkg/record"
)

// Sink receives generated records. *memlog.Recorder satisfies it.
type Sink interface {
	Enqueue(rec record.Record) error
	Increment(kind record.CounterKind, index int) error
	FetchTimestamp() uint64
}

// Config tunes the traffic mix.
type Config struct {
	// MaxStreams caps the number of concurrently open streams.
	MaxStreams int
	// FailureRate is the probability (0..1) that a transition or graph
	// operation fails.
	FailureRate float64
}

// DefaultConfig returns the mix used by the simulator.
func DefaultConfig() Config {
	return Config{MaxStreams: 8, FailureRate: 0.05}
}

// Stream types as logged in PalStateRecord.StreamType.
const (
	StreamTypeLowLatency uint16 = 1
	StreamTypeDeepBuffer uint16 = 2
	StreamTypeVoiceCall  uint16 = 6
	StreamTypeACD        uint16 = 20
)

var streamTypes = []uint16{StreamTypeLowLatency, StreamTypeDeepBuffer, StreamTypeVoiceCall, StreamTypeACD}

var palFunctions = []string{
	"pal_stream_open",
	"pal_stream_start",
	"pal_stream_stop",
	"pal_stream_close",
	"pal_stream_pause",
	"pal_stream_resume",
	"pal_stream_set_device",
	"pal_stream_set_volume",
}

var sampleRates = []uint32{16000, 44100, 48000, 96000}

// lifecycle is the state a stream moves to next.
var lifecycle = map[record.StreamState]record.StreamState{
	record.StreamInit:    record.StreamOpened,
	record.StreamOpened:  record.StreamStarted,
	record.StreamStarted: record.StreamStopped,
	record.StreamPaused:  record.StreamStarted,
	record.StreamStopped: record.StreamClosed,
}

type stream struct {
	handle     uint64
	session    uint64
	state      record.StreamState
	streamType uint16
	direction  int8
	devices    [record.MaxDevices]record.DeviceAttr
}

// Generator emits records into a Sink. A Generator is not safe for
// concurrent use; give each producer goroutine its own.
type Generator struct {
	config  Config
	faker   faker.Faker
	sink    Sink
	logger  *zap.Logger
	streams []*stream
}

// New creates a generator seeded with seed. Equal seeds give equal traffic.
func New(config Config, seed int64, sink Sink, logger *zap.Logger) *Generator {
	if config.MaxStreams <= 0 {
		config.MaxStreams = DefaultConfig().MaxStreams
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		config: config,
		faker:  faker.NewWithSeed(rand.NewSource(seed)),
		sink:   sink,
		logger: logger,
	}
}

// OpenStreams returns the number of streams the generator currently holds
// open.
func (g *Generator) OpenStreams() int {
	return len(g.streams)
}

// Step emits one randomly chosen event and returns the number of records
// enqueued.
func (g *Generator) Step() (int, error) {
	switch roll := g.faker.IntBetween(1, 100); {
	case roll <= 40:
		return g.KPIPair(g.faker.RandomStringElement(palFunctions))
	case roll <= 75:
		return g.AdvanceStream()
	case roll <= 95:
		return g.GraphOp(record.GraphState(g.faker.IntBetween(0, int(record.NumGraphStates)-1)))
	default:
		return g.SPFReset()
	}
}

// KPIPair emits an enter probe followed by an exit probe for fn.
func (g *Generator) KPIPair(fn string) (int, error) {
	pid := uint16(g.faker.IntBetween(1000, 9999))
	enter := &record.KPIRecord{
		Timestamp: g.sink.FetchTimestamp(),
		PID:       pid,
		Function:  fn,
		Enter:     true,
	}
	if err := g.sink.Enqueue(enter); err != nil {
		return 0, err
	}

	exit := &record.KPIRecord{
		Timestamp: g.sink.FetchTimestamp() + uint64(g.faker.IntBetween(0, 20)),
		PID:       pid,
		Function:  fn,
	}
	if err := g.sink.Enqueue(exit); err != nil {
		return 1, err
	}
	return 2, nil
}

// AdvanceStream opens a new stream when there is room, otherwise moves a
// random open stream to its next lifecycle state. A failed transition leaves
// the stream where it was.
func (g *Generator) AdvanceStream() (int, error) {
	if len(g.streams) < g.config.MaxStreams && (len(g.streams) == 0 || g.faker.Bool()) {
		s := g.newStream()
		g.streams = append(g.streams, s)
		return 1, g.sink.Enqueue(g.stateRecord(s, record.StreamInit, 0))
	}

	idx := g.faker.IntBetween(0, len(g.streams)-1)
	s := g.streams[idx]

	next, ok := lifecycle[s.state]
	if s.state == record.StreamStarted && g.faker.IntBetween(1, 4) == 1 {
		next = record.StreamPaused
	}
	if !ok {
		next = record.StreamClosed
	}

	var code int32
	if g.failed() {
		code = -int32(g.faker.IntBetween(1, 22))
	} else {
		s.state = next
	}

	if err := g.sink.Enqueue(g.stateRecord(s, next, code)); err != nil {
		return 0, err
	}

	if s.state == record.StreamClosed {
		g.streams = append(g.streams[:idx], g.streams[idx+1:]...)
		g.logger.Debug("stream closed", zap.Uint64("stream_handle", s.handle))
	}
	return 1, nil
}

// GraphOp emits a graph operation record; failures also bump the matching
// GraphCounters slot.
func (g *Generator) GraphOp(state record.GraphState) (int, error) {
	var handle uint64
	if len(g.streams) > 0 {
		handle = g.streams[g.faker.IntBetween(0, len(g.streams)-1)].handle
	} else {
		handle = g.faker.UInt64()
	}

	var result int32
	if g.failed() {
		result = -int32(g.faker.IntBetween(1, 22))
	}

	rec := &record.GraphRecord{
		Timestamp:    g.sink.FetchTimestamp(),
		State:        state,
		Result:       result,
		StreamHandle: handle,
	}
	if err := g.sink.Enqueue(rec); err != nil {
		return 0, err
	}
	if result != 0 {
		return 1, g.sink.Increment(record.GraphCounters, int(state))
	}
	return 1, nil
}

// SPFReset emits a down/up restart pair and counts both.
func (g *Generator) SPFReset() (int, error) {
	var errs []error
	n := 0
	for _, state := range []record.ResetState{record.ResetDown, record.ResetUp} {
		rec := &record.SPFResetRecord{Timestamp: g.sink.FetchTimestamp(), State: state}
		if err := g.sink.Enqueue(rec); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
		if err := g.sink.Increment(record.SPFResetCounters, int(state)); err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

func (g *Generator) failed() bool {
	return g.faker.IntBetween(1, 10000) <= int(g.config.FailureRate*10000)
}

func (g *Generator) newStream() *stream {
	s := &stream{
		handle:     g.faker.UInt64(),
		session:    g.faker.UInt64(),
		state:      record.StreamInit,
		streamType: streamTypes[g.faker.IntBetween(0, len(streamTypes)-1)],
		direction:  int8(g.faker.IntBetween(1, 2)),
	}
	for i := 0; i < g.faker.IntBetween(1, record.MaxDevices); i++ {
		s.devices[i] = record.DeviceAttr{
			SampleRate: sampleRates[g.faker.IntBetween(0, len(sampleRates)-1)],
			Device:     uint16(g.faker.IntBetween(1, 60)),
			BitWidth:   []uint8{16, 24, 32}[g.faker.IntBetween(0, 2)],
			Channels:   uint8(g.faker.IntBetween(1, 8)),
		}
	}
	return s
}

func (g *Generator) stateRecord(s *stream, state record.StreamState, code int32) *record.PalStateRecord {
	rec := &record.PalStateRecord{
		Timestamp:     g.sink.FetchTimestamp(),
		StreamHandle:  s.handle,
		Devices:       s.devices,
		State:         state,
		Error:         code,
		StreamType:    s.streamType,
		Direction:     s.direction,
		SessionHandle: s.session,
	}
	if s.streamType == StreamTypeACD {
		rec.ACD = record.ACDInfo{
			State:          record.ACDActive,
			EngineState:    record.ACDEngineActive,
			EventID:        uint32(g.faker.IntBetween(1, 64)),
			ContextID:      uint32(g.faker.IntBetween(1, 16)),
			CaptureProfile: "CP_" + g.faker.Lorem().Word(),
			ModelID:        uint8(g.faker.IntBetween(0, 7)),
		}
	}
	return rec
}
