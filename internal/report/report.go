// Package report decodes dump files written by the recorder and renders them
// as human-readable text reports.
package report

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/internal/validator"
	"github.com/jittakal/audiomemlog/pkg/record"
)

// Source identifies which record or counter kind a dump file holds.
type Source struct {
	Counters bool
	Queue    record.QueueKind
	Counter  record.CounterKind
}

func (s Source) String() string {
	if s.Counters {
		return s.Counter.String()
	}
	return s.Queue.String()
}

// ParseSource resolves a configuration name such as "KPI_Q" or
// "GRAPH_STATBUF".
func ParseSource(name string) (Source, error) {
	if k, ok := record.ParseQueueKind(name); ok {
		return Source{Queue: k}, nil
	}
	if k, ok := record.ParseCounterKind(name); ok {
		return Source{Counters: true, Counter: k}, nil
	}
	return Source{}, fmt.Errorf("unknown type %q", name)
}

// DetectSource guesses the kind from a dump file name. Names containing
// "statbuf" or "stats" are counter dumps.
func DetectSource(path string) (Source, error) {
	base := strings.ToLower(filepath.Base(path))
	counters := strings.Contains(base, "statbuf") || strings.Contains(base, "stats")

	switch {
	case strings.Contains(base, "spf"):
		if counters {
			return Source{Counters: true, Counter: record.SPFResetCounters}, nil
		}
		return Source{Queue: record.SPFReset}, nil
	case strings.Contains(base, "graph"):
		if counters {
			return Source{Counters: true, Counter: record.GraphCounters}, nil
		}
		return Source{Queue: record.Graph}, nil
	case strings.Contains(base, "kpi"):
		return Source{Queue: record.KPI}, nil
	case strings.Contains(base, "pal_state"), strings.Contains(base, "palstate"), strings.Contains(base, "state"):
		return Source{Queue: record.PalState}, nil
	}
	return Source{}, fmt.Errorf("cannot infer type from file name %q", filepath.Base(path))
}

// Parser reads dump files and writes reports.
type Parser struct {
	fs     afero.Fs
	logger *zap.Logger
}

// NewParser creates a parser reading from fs.
func NewParser(fs afero.Fs, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{fs: fs, logger: logger}
}

// ParseFile decodes path as src and writes its report to w. A trailing
// partial record is reported after the complete records and returned as an
// error.
func (p *Parser) ParseFile(path string, src Source, w io.Writer) error {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return fmt.Errorf("read dump %s: %w", path, err)
	}

	p.logger.Debug("parsing dump",
		zap.String("path", path),
		zap.Stringer("type", src),
		zap.Int("bytes", len(data)),
	)

	return Render(w, src, data)
}

// Render decodes data as src and writes the matching report.
func Render(w io.Writer, src Source, data []byte) error {
	bw := bufio.NewWriter(w)

	var decodeErr error
	if src.Counters {
		values, err := record.DecodeCounters(src.Counter, data)
		if err != nil {
			return err
		}
		writeCounters(bw, src.Counter, values)
	} else {
		records, err := record.DecodeAll(src.Queue, data)
		decodeErr = err
		switch src.Queue {
		case record.PalState:
			writePalState(bw, AnalyzePalState(palStateRecords(records)))
		case record.KPI:
			writeKPI(bw, AnalyzeKPI(kpiRecords(records)))
		case record.Graph:
			writeGraph(bw, records)
		case record.SPFReset:
			writeSPFReset(bw, records)
		}
		writeInvalid(bw, records)
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return decodeErr
}

// FormatTimestamp renders milliseconds since the Unix epoch in UTC.
func FormatTimestamp(ms uint64) string {
	return time.UnixMilli(int64(ms)).UTC().Format("2006-01-02 15:04:05.000")
}

// Invalid pairs a record index with the reason it failed validation.
type Invalid struct {
	Index int
	Err   error
}

// FindInvalid validates every record and returns the failures in order.
func FindInvalid(records []record.Record) []Invalid {
	v := validator.NewRecordValidator()
	var out []Invalid
	for i, rec := range records {
		if err := v.Validate(rec); err != nil {
			out = append(out, Invalid{Index: i, Err: err})
		}
	}
	return out
}

func writeInvalid(w io.Writer, records []record.Record) {
	invalid := FindInvalid(records)
	if len(invalid) == 0 {
		return
	}
	fmt.Fprintln(w)
	header(w, fmt.Sprintf("INVALID RECORDS (%d)", len(invalid)))
	for _, inv := range invalid {
		fmt.Fprintf(w, "record %d: %v\n", inv.Index, inv.Err)
	}
}

const rule = "-----------------------------------------"

func header(w io.Writer, title string) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintln(w, rule)
}
