package report

import (
	"fmt"
	"io"

	"github.com/jittakal/audiomemlog/pkg/record"
)

// PalStateReport summarizes a PAL state dump.
type PalStateReport struct {
	Records []*record.PalStateRecord
	// Active holds the last successful non-closed state of every stream
	// still open at the end of the dump.
	Active []*record.PalStateRecord
	// Failures holds every transition with a non-zero error code.
	Failures []*record.PalStateRecord
}

// AnalyzePalState replays state transitions in order. A successful
// transition replaces the stream's previous entry; a failed one leaves it in
// place.
func AnalyzePalState(records []*record.PalStateRecord) PalStateReport {
	rep := PalStateReport{Records: records}

	for _, rec := range records {
		if rec.Error != 0 {
			rep.Failures = append(rep.Failures, rec)
			continue
		}

		kept := rep.Active[:0]
		for _, a := range rep.Active {
			if a.StreamHandle != rec.StreamHandle {
				kept = append(kept, a)
			}
		}
		rep.Active = kept

		if rec.State != record.StreamClosed {
			rep.Active = append(rep.Active, rec)
		}
	}
	return rep
}

func palStateRecords(records []record.Record) []*record.PalStateRecord {
	out := make([]*record.PalStateRecord, 0, len(records))
	for _, r := range records {
		if rec, ok := r.(*record.PalStateRecord); ok {
			out = append(out, rec)
		}
	}
	return out
}

func writePalState(w io.Writer, rep PalStateReport) {
	header(w, fmt.Sprintf("PAL STATE QUEUE (%d records)", len(rep.Records)))
	for _, rec := range rep.Records {
		writePalStateRecord(w, rec)
	}

	fmt.Fprintln(w)
	if len(rep.Active) == 0 {
		header(w, "NO ACTIVE STREAMS")
	} else {
		header(w, fmt.Sprintf("STREAMS STILL ACTIVE (%d)", len(rep.Active)))
		for _, rec := range rep.Active {
			writePalStateRecord(w, rec)
		}
	}

	fmt.Fprintln(w)
	if len(rep.Failures) == 0 {
		header(w, "NO TRANSITION FAILURES")
	} else {
		header(w, fmt.Sprintf("TRANSITION FAILURES (%d)", len(rep.Failures)))
		for _, rec := range rep.Failures {
			writePalStateRecord(w, rec)
		}
	}
}

func writePalStateRecord(w io.Writer, rec *record.PalStateRecord) {
	fmt.Fprintf(w, "Timestamp:........%s\n", FormatTimestamp(rec.Timestamp))
	fmt.Fprintf(w, "stream_handle:....%#x\n", rec.StreamHandle)
	fmt.Fprintf(w, "session_handle:...%#x\n", rec.SessionHandle)
	fmt.Fprintf(w, "state:............%s\n", rec.State)
	fmt.Fprintf(w, "stream_type:......%d\n", rec.StreamType)
	fmt.Fprintf(w, "direction:........%d\n", rec.Direction)
	if rec.Error != 0 {
		fmt.Fprintf(w, "error:............transition failed (%d)\n", rec.Error)
	}
	for _, d := range rec.Devices {
		if d.Device == 0 {
			continue
		}
		fmt.Fprintf(w, "  device %d: sample_rate=%d bit_width=%d channels=%d\n",
			d.Device, d.SampleRate, d.BitWidth, d.Channels)
	}
	if rec.ACD.CaptureProfile != "" || rec.ACD.State != record.ACDNone {
		fmt.Fprintf(w, "  acd: state=%d engine_state=%d event_id=%d context_id=%d profile=%s model_id=%d\n",
			rec.ACD.State, rec.ACD.EngineState, rec.ACD.EventID, rec.ACD.ContextID,
			rec.ACD.CaptureProfile, rec.ACD.ModelID)
	}
	fmt.Fprintln(w, rule)
}
