package report

import (
	"fmt"
	"io"

	"github.com/jittakal/audiomemlog/pkg/record"
)

func writeGraph(w io.Writer, records []record.Record) {
	header(w, fmt.Sprintf("GRAPH QUEUE (%d records)", len(records)))
	for _, r := range records {
		rec, ok := r.(*record.GraphRecord)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "Timestamp:....%s\n", FormatTimestamp(rec.Timestamp))
		fmt.Fprintf(w, "State:........%s\n", rec.State)
		fmt.Fprintf(w, "Result:.......%d\n", rec.Result)
		fmt.Fprintf(w, "Graph Handle:.%#x\n", rec.StreamHandle)
		fmt.Fprintln(w, rule)
	}
}

func writeSPFReset(w io.Writer, records []record.Record) {
	header(w, fmt.Sprintf("SPF RESET QUEUE (%d records)", len(records)))
	for _, r := range records {
		rec, ok := r.(*record.SPFResetRecord)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "Timestamp:....%s\n", FormatTimestamp(rec.Timestamp))
		fmt.Fprintf(w, "Result:.......%s\n", rec.State)
		fmt.Fprintln(w, rule)
	}
}

func writeCounters(w io.Writer, kind record.CounterKind, values []uint64) {
	header(w, kind.String())
	for i, v := range values {
		switch kind {
		case record.GraphCounters:
			fmt.Fprintf(w, "%s Failures:....%d\n", record.GraphState(i), v)
		case record.SPFResetCounters:
			fmt.Fprintf(w, "%s Instances:....%d\n", record.ResetState(i), v)
		default:
			fmt.Fprintf(w, "[%d]:....%d\n", i, v)
		}
	}
}
