package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/internal/observability"
	"github.com/jittakal/audiomemlog/internal/report"
)

var (
	typeName  = flag.String("type", "", "Dump type (e.g. PAL_STATE_Q, KPI_Q, GRAPH_STATBUF); inferred from the file name when empty")
	outputDir = flag.String("output-dir", "", "Write one <dump>.txt report per file into this directory instead of stdout")
	logLevel  = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] dump.bin...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  *logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	fs := afero.NewOsFs()
	parser := report.NewParser(fs, logger)

	failed := 0
	for _, path := range flag.Args() {
		if err := parseOne(fs, parser, path); err != nil {
			logger.Error("failed to parse dump", zap.String("path", path), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func parseOne(fs afero.Fs, parser *report.Parser, path string) error {
	var src report.Source
	var err error
	if *typeName != "" {
		src, err = report.ParseSource(*typeName)
	} else {
		src, err = report.DetectSource(path)
	}
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *outputDir != "" {
		if err := fs.MkdirAll(*outputDir, 0o755); err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".txt"
		f, err := fs.Create(filepath.Join(*outputDir, name))
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		fmt.Fprintf(os.Stderr, "generating %s\n", f.Name())
	}

	return parser.ParseFile(path, src, w)
}
