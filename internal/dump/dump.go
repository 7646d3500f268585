// Package dump writes recorder contents to timestamped binary files and
// keeps the number of files per type bounded.
package dump

import (
	"fmt"
	"os"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/spf13/afero"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/internal/buffer"
	"github.com/jittakal/audiomemlog/internal/errors"
)

// DefaultTimestampFormat is the strftime format inserted between a target's
// name and extension.
const DefaultTimestampFormat = "_%a_%b_%e_%H-%M-%S_%Y"

// MetricsCollector defines metrics operations for dumps.
type MetricsCollector interface {
	IncDumps(kind, status string)
	ObserveDumpBytes(kind string, size float64)
	ObserveDumpDuration(kind string, seconds float64)
	IncFilesRotated(kind string, n int)
	IncDumpErrors(kind, operation string)
}

// Result describes one completed dump.
type Result struct {
	Path    string
	Records int
	Bytes   int64
	Rotated int
	Skipped bool
}

// Writer dumps rings and counter arrays to files on an afero filesystem.
//
// Writer holds no mutable state of its own; callers serialize access to the
// ring or counters being dumped.
type Writer struct {
	fs        afero.Fs
	clock     clockz.Clock
	format    string
	layout    string
	skipEmpty bool
	logger    *zap.Logger
	metrics   MetricsCollector
}

// Option configures a Writer.
type Option func(*Writer)

// WithFs sets the filesystem. Default is the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(w *Writer) { w.fs = fs }
}

// WithClock sets the clock used for file timestamps.
func WithClock(clock clockz.Clock) Option {
	return func(w *Writer) { w.clock = clock }
}

// WithTimestampFormat sets the strftime format for file timestamps.
func WithTimestampFormat(format string) Option {
	return func(w *Writer) { w.format = format }
}

// WithSkipEmpty suppresses file creation when a queue holds no records.
func WithSkipEmpty(skip bool) Option {
	return func(w *Writer) { w.skipEmpty = skip }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(w *Writer) { w.metrics = m }
}

// NewWriter creates a dump writer.
func NewWriter(opts ...Option) (*Writer, error) {
	w := &Writer{
		fs:     afero.NewOsFs(),
		clock:  clockz.RealClock,
		format: DefaultTimestampFormat,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.format == "" {
		return nil, &errors.ConfigError{Field: "dump.timestamp_format", Reason: "must not be empty"}
	}

	// Formats whose literals collide with Go layout elements cannot be parsed
	// back; rotation then orders those files by modification time.
	if layout, err := strftime.Layout(w.format); err == nil {
		w.layout = layout
	} else {
		w.logger.Debug("timestamp format has no parse layout",
			zap.String("format", w.format),
			zap.Error(err),
		)
	}

	return w, nil
}

// FileName returns the path the next dump for target would be written to.
func (w *Writer) FileName(target Target) string {
	return target.Path(strftime.Format(w.format, w.clock.Now()))
}

// prepare creates the target directory and evicts old files. A rotation
// failure aborts the dump so the file count never exceeds maxFiles.
func (w *Writer) prepare(kind string, target Target, maxFiles int) (string, int, error) {
	if target.Dir != "" {
		if err := w.fs.MkdirAll(target.Dir, 0o755); err != nil {
			w.incErrors(kind, "mkdir")
			return "", 0, &errors.IOError{Operation: "mkdir", Path: target.Dir, Err: err}
		}
	}

	path := w.FileName(target)

	rotated, err := w.EnforceMaxFiles(target, maxFiles, path)
	if rotated > 0 && w.metrics != nil {
		w.metrics.IncFilesRotated(kind, rotated)
	}
	if err != nil {
		w.incErrors(kind, "rotate")
		return "", rotated, err
	}

	return path, rotated, nil
}

// DumpQueue drains ring into a new file for target, oldest record first.
// If old files cannot be rotated out, no file is created and ring is left
// untouched.
// A failed write stops the drain; the record being written is lost and the
// rest stay queued. The first error encountered is returned.
func (w *Writer) DumpQueue(kind string, target Target, maxFiles int, ring *buffer.Ring) (Result, error) {
	if w.skipEmpty && ring.IsEmpty() {
		w.logger.Debug("skipping dump of empty queue", zap.String("type", kind))
		return Result{Skipped: true}, nil
	}

	start := w.clock.Now()

	path, rotated, err := w.prepare(kind, target, maxFiles)
	res := Result{Path: path, Rotated: rotated}
	if err != nil {
		w.finish(kind, res, start, err)
		return res, err
	}

	f, err := w.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		w.incErrors(kind, "open")
		err = &errors.IOError{Operation: "open", Path: path, Err: err}
		w.finish(kind, res, start, err)
		return res, err
	}

	n, err := ring.Drain(func(rec []byte) error {
		written, err := f.Write(rec)
		res.Bytes += int64(written)
		if err != nil {
			return &errors.IOError{Operation: "write", Path: path, Err: err}
		}
		return nil
	})
	res.Records = n
	firstErr := err
	if err != nil {
		w.incErrors(kind, "write")
	}

	if err := f.Close(); err != nil {
		w.incErrors(kind, "close")
		if firstErr == nil {
			firstErr = &errors.IOError{Operation: "close", Path: path, Err: err}
		}
	}

	w.finish(kind, res, start, firstErr)
	return res, firstErr
}

// DumpCounters writes all counters to a new file for target in one write.
// The counters are cleared only once the file is written and closed. A
// rotation failure leaves them untouched and creates no file.
func (w *Writer) DumpCounters(kind string, target Target, maxFiles int, counters *buffer.Counters) (Result, error) {
	start := w.clock.Now()

	path, rotated, err := w.prepare(kind, target, maxFiles)
	res := Result{Path: path, Rotated: rotated}
	if err != nil {
		w.finish(kind, res, start, err)
		return res, err
	}

	data, _ := counters.AppendBinary(make([]byte, 0, counters.Len()*8))

	f, err := w.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		w.incErrors(kind, "open")
		err = &errors.IOError{Operation: "open", Path: path, Err: err}
		w.finish(kind, res, start, err)
		return res, err
	}

	written, writeErr := f.Write(data)
	res.Bytes = int64(written)
	if writeErr == nil && written < len(data) {
		writeErr = fmt.Errorf("short write: %d of %d bytes", written, len(data))
	}
	if writeErr != nil {
		w.incErrors(kind, "write")
		writeErr = &errors.IOError{Operation: "write", Path: path, Err: writeErr}
	}

	closeErr := f.Close()
	if closeErr != nil {
		w.incErrors(kind, "close")
		closeErr = &errors.IOError{Operation: "close", Path: path, Err: closeErr}
	}

	if writeErr == nil && closeErr == nil {
		counters.Clear()
		res.Records = counters.Len()
	}

	firstErr := writeErr
	if firstErr == nil {
		firstErr = closeErr
	}

	w.finish(kind, res, start, firstErr)
	return res, firstErr
}

func (w *Writer) incErrors(kind, operation string) {
	if w.metrics != nil {
		w.metrics.IncDumpErrors(kind, operation)
	}
}

func (w *Writer) finish(kind string, res Result, start time.Time, err error) {
	duration := w.clock.Now().Sub(start)

	if err != nil {
		w.logger.Error("dump failed",
			zap.String("type", kind),
			zap.String("path", res.Path),
			zap.Int("records", res.Records),
			zap.Error(err),
		)
		if w.metrics != nil {
			w.metrics.IncDumps(kind, "failure")
		}
		return
	}

	w.logger.Info("dumped records to file",
		zap.String("type", kind),
		zap.String("path", res.Path),
		zap.Int("records", res.Records),
		zap.Int64("file_size", res.Bytes),
		zap.Int("rotated", res.Rotated),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)

	if w.metrics != nil {
		w.metrics.IncDumps(kind, "success")
		w.metrics.ObserveDumpBytes(kind, float64(res.Bytes))
		w.metrics.ObserveDumpDuration(kind, duration.Seconds())
	}
}
