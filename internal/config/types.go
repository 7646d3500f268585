package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/afero"

	"github.com/jittakal/audiomemlog/internal/config/dto"
	apperrors "github.com/jittakal/audiomemlog/internal/errors"
	"github.com/jittakal/audiomemlog/internal/memlog"
	"github.com/jittakal/audiomemlog/pkg/record"
)

// XML element and attribute names of the per-type config file.
const (
	elemPrintTime = "printtime"
	elemQueue     = "queue"
	elemStatbuf   = "statbuf"

	attrName    = "name"
	attrSize    = "size"
	attrEnable  = "enable"
	attrOutput  = "outputFile"
	attrMaxBins = "maxBinFiles"
)

// LoadTypes reads the per-type XML config at path.
func LoadTypes(fs afero.Fs, path string) (memlog.Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return memlog.Config{}, &apperrors.ConfigError{Field: "memlogger.config_file", Reason: "cannot open " + path, Err: err}
	}
	defer f.Close()

	return ParseTypes(f)
}

// ParseTypes decodes a per-type XML config such as
//
//	<memlogger>
//	  <printtime enable="true"/>
//	  <queue name="KPI_Q" size="7200" enable="true" outputFile="/data/kpi.bin" maxBinFiles="5"/>
//	  <statbuf name="GRAPH_STATBUF" enable="true" outputFile="/data/graph_stats.bin" maxBinFiles="5"/>
//	</memlogger>
//
// Elements may appear at any depth. Unknown element names are ignored.
func ParseTypes(r io.Reader) (memlog.Config, error) {
	cfg := memlog.Config{
		Queues:   make(map[record.QueueKind]memlog.TypeConfig),
		Counters: make(map[record.CounterKind]memlog.TypeConfig),
	}

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return memlog.Config{}, &apperrors.ConfigError{Field: "xml", Reason: "malformed document", Err: err}
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case elemPrintTime:
			// The first attribute toggles timing traces regardless of its name.
			if len(start.Attr) > 0 {
				cfg.PrintTime = start.Attr[0].Value == "true"
			}
		case elemQueue:
			tc, err := parseTypeAttrs(elemQueue, start.Attr, true)
			if err != nil {
				return memlog.Config{}, err
			}
			kind, ok := record.ParseQueueKind(tc.Name)
			if !ok {
				return memlog.Config{}, &apperrors.ConfigError{Field: "queue.name", Reason: fmt.Sprintf("unknown queue %q", tc.Name)}
			}
			cfg.Queues[kind] = toTypeConfig(tc)
		case elemStatbuf:
			tc, err := parseTypeAttrs(elemStatbuf, start.Attr, false)
			if err != nil {
				return memlog.Config{}, err
			}
			kind, ok := record.ParseCounterKind(tc.Name)
			if !ok {
				return memlog.Config{}, &apperrors.ConfigError{Field: "statbuf.name", Reason: fmt.Sprintf("unknown statbuf %q", tc.Name)}
			}
			cfg.Counters[kind] = toTypeConfig(tc)
		}
	}

	return cfg, nil
}

func parseTypeAttrs(elem string, attrs []xml.Attr, sized bool) (dto.TypeConfig, error) {
	var tc dto.TypeConfig
	for _, a := range attrs {
		switch a.Name.Local {
		case attrName:
			tc.Name = a.Value
		case attrEnable:
			tc.Enable = a.Value == "true"
		case attrOutput:
			tc.OutputFile = a.Value
		case attrSize:
			if !sized {
				continue
			}
			n, err := strconv.ParseInt(a.Value, 10, 64)
			if err != nil || n < 0 {
				return tc, &apperrors.ConfigError{Field: elem + "." + attrSize, Reason: fmt.Sprintf("invalid size %q", a.Value), Err: err}
			}
			tc.Size = n
		case attrMaxBins:
			n, err := strconv.Atoi(a.Value)
			if err != nil || n < 0 {
				return tc, &apperrors.ConfigError{Field: elem + "." + attrMaxBins, Reason: fmt.Sprintf("invalid count %q", a.Value), Err: err}
			}
			tc.MaxBinFiles = n
		}
	}

	if tc.Name == "" {
		return tc, &apperrors.ConfigError{Field: elem + "." + attrName, Reason: "missing"}
	}
	if tc.Enable && tc.OutputFile == "" {
		return tc, &apperrors.ConfigError{Field: elem + "." + attrOutput, Reason: "required for " + tc.Name}
	}
	return tc, nil
}

func toTypeConfig(tc dto.TypeConfig) memlog.TypeConfig {
	return memlog.TypeConfig{
		Enabled:    tc.Enable,
		SizeBytes:  tc.Size,
		OutputFile: tc.OutputFile,
		MaxFiles:   tc.MaxBinFiles,
	}
}

// RecorderConfig builds the recorder configuration from the application
// config, reading the XML file when one is configured. print_time is enabled
// when either source enables it.
func RecorderConfig(fs afero.Fs, app *dto.ApplicationConfig) (memlog.Config, error) {
	if app.MemLogger.ConfigFile != "" {
		cfg, err := LoadTypes(fs, app.MemLogger.ConfigFile)
		if err != nil {
			return memlog.Config{}, err
		}
		cfg.PrintTime = cfg.PrintTime || app.MemLogger.PrintTime
		return cfg, nil
	}

	cfg := memlog.Config{
		PrintTime: app.MemLogger.PrintTime,
		Queues:    make(map[record.QueueKind]memlog.TypeConfig),
		Counters:  make(map[record.CounterKind]memlog.TypeConfig),
	}
	for _, q := range app.MemLogger.Queues {
		kind, ok := record.ParseQueueKind(q.Name)
		if !ok {
			return memlog.Config{}, &apperrors.ConfigError{Field: "memlogger.queues.name", Reason: fmt.Sprintf("unknown queue %q", q.Name)}
		}
		cfg.Queues[kind] = toTypeConfig(q)
	}
	for _, s := range app.MemLogger.Statbufs {
		kind, ok := record.ParseCounterKind(s.Name)
		if !ok {
			return memlog.Config{}, &apperrors.ConfigError{Field: "memlogger.statbufs.name", Reason: fmt.Sprintf("unknown statbuf %q", s.Name)}
		}
		cfg.Counters[kind] = toTypeConfig(s)
	}
	return cfg, nil
}
