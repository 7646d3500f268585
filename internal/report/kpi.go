package report

import (
	"fmt"
	"io"

	"github.com/jittakal/audiomemlog/pkg/record"
)

// KPIStat aggregates completed enter/exit pairs of one function.
type KPIStat struct {
	Function    string
	Occurrences int
	TotalMs     uint64
	// Unmatched counts exits without a preceding enter and enters still open
	// at the end of the dump.
	Unmatched int
}

// AverageMs returns the mean enter-to-exit time, or 0 with no occurrences.
func (s KPIStat) AverageMs() float64 {
	if s.Occurrences == 0 {
		return 0
	}
	return float64(s.TotalMs) / float64(s.Occurrences)
}

type kpiKey struct {
	pid uint16
	fn  string
}

// AnalyzeKPI pairs each exit with the most recent open enter of the same
// function and pid. Stats are returned in order of first appearance.
func AnalyzeKPI(records []*record.KPIRecord) []KPIStat {
	var order []string
	stats := make(map[string]*KPIStat)
	open := make(map[kpiKey][]uint64)

	stat := func(fn string) *KPIStat {
		s, ok := stats[fn]
		if !ok {
			s = &KPIStat{Function: fn}
			stats[fn] = s
			order = append(order, fn)
		}
		return s
	}

	for _, rec := range records {
		s := stat(rec.Function)
		key := kpiKey{pid: rec.PID, fn: rec.Function}

		if rec.Enter {
			open[key] = append(open[key], rec.Timestamp)
			continue
		}

		stack := open[key]
		if len(stack) == 0 {
			s.Unmatched++
			continue
		}
		enter := stack[len(stack)-1]
		open[key] = stack[:len(stack)-1]

		s.Occurrences++
		if rec.Timestamp > enter {
			s.TotalMs += rec.Timestamp - enter
		}
	}

	for key, stack := range open {
		stats[key.fn].Unmatched += len(stack)
	}

	out := make([]KPIStat, 0, len(order))
	for _, fn := range order {
		out = append(out, *stats[fn])
	}
	return out
}

func kpiRecords(records []record.Record) []*record.KPIRecord {
	out := make([]*record.KPIRecord, 0, len(records))
	for _, r := range records {
		if rec, ok := r.(*record.KPIRecord); ok {
			out = append(out, rec)
		}
	}
	return out
}

func writeKPI(w io.Writer, stats []KPIStat) {
	header(w, "KPI QUEUE STATS")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\n", s.Function)
		fmt.Fprintf(w, "\tnumber of occurrences %d\n", s.Occurrences)
		if s.Occurrences > 0 {
			fmt.Fprintf(w, "\taverage time in milliseconds %.3f\n", s.AverageMs())
		}
		if s.Unmatched > 0 {
			fmt.Fprintf(w, "\tunmatched probes %d\n", s.Unmatched)
		}
		fmt.Fprintln(w, rule)
	}
}
