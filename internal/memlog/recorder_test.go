package memlog

import (
	"errors"
	"math"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/jittakal/audiomemlog/internal/errors"
	"github.com/jittakal/audiomemlog/pkg/record"
)

const testFormat = "_%Y%m%d-%H%M%S"

// denyFs refuses to open files under prefix.
type denyFs struct {
	afero.Fs
	prefix string
}

func (d denyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if strings.HasPrefix(name, d.prefix) {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return d.Fs.OpenFile(name, flag, perm)
}

func testConfig() Config {
	return Config{
		Queues: map[record.QueueKind]TypeConfig{
			record.PalState: {Enabled: true, SizeBytes: 136 * 16, OutputFile: "/logs/pal_state.bin", MaxFiles: 3},
			record.KPI:      {Enabled: true, SizeBytes: 72 * 16, OutputFile: "/logs/kpi.bin", MaxFiles: 3},
			record.Graph:    {Enabled: true, SizeBytes: 24 * 3, OutputFile: "/logs/graph.bin", MaxFiles: 3},
			record.SPFReset: {Enabled: false, SizeBytes: 16 * 4, OutputFile: "/logs/spf_reset.bin", MaxFiles: 3},
		},
		Counters: map[record.CounterKind]TypeConfig{
			record.GraphCounters:    {Enabled: true, OutputFile: "/stats/graph_stats.bin", MaxFiles: 2},
			record.SPFResetCounters: {Enabled: false, OutputFile: "/stats/spf_stats.bin", MaxFiles: 2},
		},
	}
}

func newTestRecorder(t *testing.T, cfg Config, fs afero.Fs, opts ...Option) *Recorder {
	t.Helper()
	base := []Option{
		WithFs(fs),
		WithClock(clockz.NewFakeClockAt(time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC))),
		WithTimestampFormat(testFormat),
	}
	r, err := New(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func graphRecord(ts uint64) *record.GraphRecord {
	return &record.GraphRecord{Timestamp: ts, State: record.GraphStart, StreamHandle: 0xabc}
}

func TestNew_ConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "unknown queue kind",
			cfg:  Config{Queues: map[record.QueueKind]TypeConfig{record.QueueKind(42): {}}},
		},
		{
			name: "enabled queue without output",
			cfg:  Config{Queues: map[record.QueueKind]TypeConfig{record.KPI: {Enabled: true, SizeBytes: 72}}},
		},
		{
			name: "negative max files",
			cfg:  Config{Counters: map[record.CounterKind]TypeConfig{record.GraphCounters: {OutputFile: "x.bin", MaxFiles: -1}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, apperrors.ErrConfigParseFailure) {
				t.Errorf("New() error = %v, want ErrConfigParseFailure", err)
			}
		})
	}
}

func TestRecorder_Lifecycle(t *testing.T) {
	r := newTestRecorder(t, testConfig(), afero.NewMemMapFs())

	if r.Initialized() {
		t.Fatal("fresh recorder should not be initialized")
	}

	if err := r.Enqueue(graphRecord(1)); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("Enqueue() before init error = %v, want ErrNotInitialized", err)
	}

	if err := r.InitQueue(record.Graph); err != nil {
		t.Fatalf("InitQueue() error = %v", err)
	}
	if !r.Initialized() {
		t.Error("recorder should be initialized after first init")
	}
	if err := r.InitQueue(record.Graph); !errors.Is(err, apperrors.ErrAlreadyInitialized) {
		t.Errorf("second InitQueue() error = %v, want ErrAlreadyInitialized", err)
	}

	if err := r.InitCounters(record.GraphCounters); err != nil {
		t.Fatalf("InitCounters() error = %v", err)
	}

	if err := r.DeinitQueue(record.Graph); err != nil {
		t.Fatalf("DeinitQueue() error = %v", err)
	}
	if !r.Initialized() {
		t.Error("recorder should stay initialized while counters are live")
	}
	if err := r.DeinitQueue(record.Graph); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("second DeinitQueue() error = %v, want ErrNotInitialized", err)
	}
	if _, err := r.QueueSize(record.Graph); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("QueueSize() after deinit error = %v", err)
	}

	if err := r.DeinitCounters(record.GraphCounters); err != nil {
		t.Fatalf("DeinitCounters() error = %v", err)
	}
	if r.Initialized() {
		t.Error("recorder should not be initialized after every kind is deinitialized")
	}

	// Init after deinit starts fresh.
	if err := r.InitQueue(record.Graph); err != nil {
		t.Fatalf("re-InitQueue() error = %v", err)
	}
	if n, _ := r.QueueSize(record.Graph); n != 0 {
		t.Errorf("QueueSize() after re-init = %d, want 0", n)
	}
}

func TestRecorder_InvalidKind(t *testing.T) {
	r := newTestRecorder(t, testConfig(), afero.NewMemMapFs())
	r.InitAll()

	bad := record.QueueKind(200)
	badCounters := record.CounterKind(200)

	checks := map[string]error{
		"InitQueue":      r.InitQueue(bad),
		"DeinitQueue":    r.DeinitQueue(bad),
		"DumpQueue":      r.DumpQueue(bad),
		"InitCounters":   r.InitCounters(badCounters),
		"DeinitCounters": r.DeinitCounters(badCounters),
		"Increment":      r.Increment(badCounters, 0),
		"SetCounter":     r.SetCounter(badCounters, 0, 1),
		"DumpCounters":   r.DumpCounters(badCounters),
	}
	_, checks["QueueSize"] = r.QueueSize(bad)
	_, checks["IsQueueEmpty"] = r.IsQueueEmpty(bad)
	_, checks["IsQueueEnabled"] = r.IsQueueEnabled(bad)
	_, checks["IsCountersEnabled"] = r.IsCountersEnabled(badCounters)
	_, _, checks["Counter"] = r.Counter(badCounters, 0)
	_, checks["dequeue"] = r.dequeue(bad)

	for op, err := range checks {
		if !errors.Is(err, apperrors.ErrInvalidType) {
			t.Errorf("%s() error = %v, want ErrInvalidType", op, err)
		}
	}

	if err := r.Enqueue(nil); !errors.Is(err, apperrors.ErrInvalidType) {
		t.Errorf("Enqueue(nil) error = %v, want ErrInvalidType", err)
	}
}

func TestRecorder_EnqueueNilPointer(t *testing.T) {
	r := newTestRecorder(t, testConfig(), afero.NewMemMapFs())
	r.InitAll()

	err := r.Enqueue((*record.GraphRecord)(nil))
	if !errors.Is(err, record.ErrNilRecord) {
		t.Errorf("Enqueue() error = %v, want ErrNilRecord", err)
	}
	if n, _ := r.QueueSize(record.Graph); n != 0 {
		t.Errorf("QueueSize() = %d, want 0", n)
	}
}

func TestRecorder_DisabledKind(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestRecorder(t, testConfig(), fs)

	if err := r.InitAll(); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	if err := r.Enqueue(&record.SPFResetRecord{Timestamp: 1, State: record.ResetUp}); err != nil {
		t.Errorf("Enqueue() error = %v", err)
	}
	if n, err := r.QueueSize(record.SPFReset); err != nil || n != 0 {
		t.Errorf("QueueSize() = %d, %v; want 0, nil", n, err)
	}
	if empty, err := r.IsQueueEmpty(record.SPFReset); err != nil || !empty {
		t.Errorf("IsQueueEmpty() = %v, %v; want true, nil", empty, err)
	}
	if enabled, _ := r.IsQueueEnabled(record.SPFReset); enabled {
		t.Error("IsQueueEnabled() = true, want false")
	}
	if err := r.DumpQueue(record.SPFReset); err != nil {
		t.Errorf("DumpQueue() error = %v", err)
	}

	if err := r.Increment(record.SPFResetCounters, 99); err != nil {
		t.Errorf("Increment() error = %v", err)
	}
	if _, ok, err := r.Counter(record.SPFResetCounters, 0); ok || err != nil {
		t.Errorf("Counter() ok = %v, err = %v; want false, nil", ok, err)
	}
	if err := r.DumpCounters(record.SPFResetCounters); err != nil {
		t.Errorf("DumpCounters() error = %v", err)
	}

	for _, dir := range []string{"/logs", "/stats"} {
		infos, _ := afero.ReadDir(fs, dir)
		for _, info := range infos {
			if strings.HasPrefix(info.Name(), "spf") {
				t.Errorf("disabled kind created file %s", info.Name())
			}
		}
	}
}

func TestRecorder_UnconfiguredKindIsDisabled(t *testing.T) {
	r := newTestRecorder(t, Config{}, afero.NewMemMapFs())

	if err := r.InitAll(); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	if r.Initialized() {
		t.Error("no kind owns memory, recorder should not be initialized")
	}
	if err := r.Enqueue(graphRecord(1)); err != nil {
		t.Errorf("Enqueue() error = %v", err)
	}
}

func TestRecorder_OverwriteScenario(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestRecorder(t, testConfig(), fs)
	r.InitAll()

	for ts := uint64(1); ts <= 5; ts++ {
		if err := r.Enqueue(graphRecord(ts)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	if n, _ := r.QueueSize(record.Graph); n != 3 {
		t.Fatalf("QueueSize() = %d, want 3", n)
	}

	if err := r.DumpQueue(record.Graph); err != nil {
		t.Fatalf("DumpQueue() error = %v", err)
	}
	if empty, _ := r.IsQueueEmpty(record.Graph); !empty {
		t.Error("queue should be empty after dump")
	}

	data, err := afero.ReadFile(fs, "/logs/graph_20261018-120000.bin")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) != 3*record.GraphSize {
		t.Fatalf("file size = %d, want %d", len(data), 3*record.GraphSize)
	}

	records, err := record.DecodeAll(record.Graph, data)
	if err != nil {
		t.Fatalf("DecodeAll() error = %v", err)
	}
	for i, rec := range records {
		want := uint64(i + 3)
		if got := rec.(*record.GraphRecord).Timestamp; got != want {
			t.Errorf("record %d timestamp = %d, want %d", i, got, want)
		}
	}
}

func TestRecorder_Dequeue(t *testing.T) {
	r := newTestRecorder(t, testConfig(), afero.NewMemMapFs())
	r.InitAll()

	r.Enqueue(&record.KPIRecord{Timestamp: 10, PID: 7, Function: "pal_stream_open", Enter: true})
	r.Enqueue(&record.KPIRecord{Timestamp: 12, PID: 7, Function: "pal_stream_open"})

	for _, wantTS := range []uint64{10, 12} {
		raw, err := r.dequeue(record.KPI)
		if err != nil {
			t.Fatalf("dequeue() error = %v", err)
		}
		rec, err := record.Decode(record.KPI, raw)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got := rec.(*record.KPIRecord).Timestamp; got != wantTS {
			t.Errorf("timestamp = %d, want %d", got, wantTS)
		}
	}

	if _, err := r.dequeue(record.KPI); !errors.Is(err, apperrors.ErrEmpty) {
		t.Errorf("dequeue() on empty error = %v, want ErrEmpty", err)
	}
}

func TestRecorder_Counters(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestRecorder(t, testConfig(), fs)
	r.InitAll()

	for i := 0; i < 4; i++ {
		r.Increment(record.GraphCounters, int(record.GraphOpen))
	}
	r.Increment(record.GraphCounters, int(record.GraphResume))

	v, ok, err := r.Counter(record.GraphCounters, int(record.GraphOpen))
	if err != nil || !ok || v != 4 {
		t.Errorf("Counter() = %d, %v, %v; want 4, true, nil", v, ok, err)
	}

	if err := r.Increment(record.GraphCounters, int(record.NumGraphStates)); !errors.Is(err, apperrors.ErrOutOfRange) {
		t.Errorf("Increment() error = %v, want ErrOutOfRange", err)
	}
	if _, _, err := r.Counter(record.GraphCounters, -1); !errors.Is(err, apperrors.ErrOutOfRange) {
		t.Errorf("Counter() error = %v, want ErrOutOfRange", err)
	}

	// a value that a signed sentinel would alias is reported as present
	if err := r.SetCounter(record.GraphCounters, 0, math.MaxUint64); err != nil {
		t.Fatalf("SetCounter() error = %v", err)
	}
	if v, ok, _ := r.Counter(record.GraphCounters, 0); !ok || v != math.MaxUint64 {
		t.Errorf("Counter() = %d, %v; want MaxUint64, true", v, ok)
	}
	r.Increment(record.GraphCounters, 0)
	if v, _, _ := r.Counter(record.GraphCounters, 0); v != 0 {
		t.Errorf("Counter() after wrap = %d, want 0", v)
	}

	if err := r.DumpCounters(record.GraphCounters); err != nil {
		t.Fatalf("DumpCounters() error = %v", err)
	}

	data, err := afero.ReadFile(fs, "/stats/graph_stats_20261018-120000.bin")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) != record.GraphCounters.Length()*record.CounterWidth {
		t.Errorf("file size = %d, want %d", len(data), 6*8)
	}
	if v, _, _ := r.Counter(record.GraphCounters, int(record.GraphOpen)); v != 0 {
		t.Errorf("counter after dump = %d, want 0", v)
	}
}

func TestRecorder_DumpAllContinuesPastFailures(t *testing.T) {
	mem := afero.NewMemMapFs()
	r := newTestRecorder(t, testConfig(), denyFs{Fs: mem, prefix: "/stats/"})
	if err := r.InitAll(); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}

	r.Enqueue(graphRecord(1))
	r.Increment(record.GraphCounters, 0)

	err := r.DumpAll()
	if !errors.Is(err, apperrors.ErrIOFailure) {
		t.Fatalf("DumpAll() error = %v, want ErrIOFailure", err)
	}

	if exists, _ := afero.Exists(mem, "/logs/graph_20261018-120000.bin"); !exists {
		t.Error("queue dump should still be written")
	}
	if v, _, _ := r.Counter(record.GraphCounters, 0); v != 1 {
		t.Errorf("counter = %d, want 1 retained after failed dump", v)
	}
}

func TestRecorder_DumpNotInitialized(t *testing.T) {
	r := newTestRecorder(t, testConfig(), afero.NewMemMapFs())

	if err := r.DumpQueue(record.KPI); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("DumpQueue() error = %v, want ErrNotInitialized", err)
	}
	if err := r.DumpCounters(record.GraphCounters); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("DumpCounters() error = %v, want ErrNotInitialized", err)
	}
}

func TestRecorder_AllocationFailure(t *testing.T) {
	cfg := Config{Queues: map[record.QueueKind]TypeConfig{
		record.PalState: {Enabled: true, SizeBytes: 100, OutputFile: "/logs/pal.bin"},
		record.KPI:      {Enabled: true, SizeBytes: 72 * 1024, OutputFile: "/logs/kpi.bin"},
	}}
	r := newTestRecorder(t, cfg, afero.NewMemMapFs(), WithMaxArenaBytes(4096))

	err := r.InitAll()
	if !errors.Is(err, apperrors.ErrAllocationFailure) {
		t.Fatalf("InitAll() error = %v, want ErrAllocationFailure", err)
	}
	if r.Initialized() {
		t.Error("failed allocations must not leave entries initialized")
	}
}

func TestRecorder_DeinitAll(t *testing.T) {
	r := newTestRecorder(t, testConfig(), afero.NewMemMapFs())
	r.InitQueue(record.KPI)

	if err := r.DeinitAll(); err != nil {
		t.Fatalf("DeinitAll() error = %v", err)
	}
	if r.Initialized() {
		t.Error("recorder should not be initialized")
	}
}

func TestRecorder_FetchTimestamp(t *testing.T) {
	at := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	r, err := New(Config{}, WithClock(clockz.NewFakeClockAt(at)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := r.FetchTimestamp(); got != uint64(at.UnixMilli()) {
		t.Errorf("FetchTimestamp() = %d, want %d", got, at.UnixMilli())
	}
}

func TestRecorder_PrintTime(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := testConfig()
	cfg.PrintTime = true

	r := newTestRecorder(t, cfg, afero.NewMemMapFs(), WithLogger(zap.New(core)))
	r.InitQueue(record.Graph)
	r.Enqueue(graphRecord(1))

	if n := logs.FilterMessage("memlog timing").FilterField(zap.String("op", "enqueue")).Len(); n != 1 {
		t.Errorf("enqueue timing entries = %d, want 1", n)
	}
}

func TestRecorder_ConcurrentProducers(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := Config{Queues: map[record.QueueKind]TypeConfig{
		record.Graph: {Enabled: true, SizeBytes: 24 * 10000, OutputFile: "/logs/graph.bin"},
	}, Counters: map[record.CounterKind]TypeConfig{
		record.GraphCounters: {Enabled: true, OutputFile: "/stats/graph.bin"},
	}}
	r := newTestRecorder(t, cfg, fs)
	r.InitAll()

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				r.Enqueue(graphRecord(uint64(p*perProducer + i)))
				r.Increment(record.GraphCounters, i%int(record.NumGraphStates))
			}
		}(p)
	}

	stop := make(chan struct{})
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		for {
			select {
			case <-stop:
				return
			default:
				r.DumpQueue(record.Graph)
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-flushed

	remaining, _ := r.QueueSize(record.Graph)
	data, _ := afero.ReadFile(fs, "/logs/graph_20261018-120000.bin")

	if len(data)%record.GraphSize != 0 {
		t.Fatalf("dump holds a partial record: %d bytes", len(data))
	}
	if got := len(data)/record.GraphSize + remaining; got != producers*perProducer {
		t.Errorf("dumped + queued = %d, want %d", got, producers*perProducer)
	}

	var total uint64
	for i := 0; i < int(record.NumGraphStates); i++ {
		v, _, _ := r.Counter(record.GraphCounters, i)
		total += v
	}
	if total != producers*perProducer {
		t.Errorf("counter total = %d, want %d", total, producers*perProducer)
	}
}
