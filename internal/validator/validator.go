// Package validator checks decoded records against their field enumerations.
package validator

import (
	"fmt"

	"github.com/jittakal/audiomemlog/internal/errors"
	"github.com/jittakal/audiomemlog/pkg/record"
)

// RecordValidator validates records.
type RecordValidator struct{}

// NewRecordValidator creates a new record validator.
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{}
}

// Validate returns a *errors.ValidationError for the first field out of
// range, or nil.
func (v *RecordValidator) Validate(rec record.Record) error {
	if rec == nil {
		return &errors.ValidationError{Field: "record", Reason: "record is nil"}
	}

	switch r := rec.(type) {
	case *record.PalStateRecord:
		return v.validatePalState(r)
	case *record.KPIRecord:
		return v.validateKPI(r)
	case *record.GraphRecord:
		return v.validateGraph(r)
	case *record.SPFResetRecord:
		return v.validateSPFReset(r)
	default:
		return &errors.ValidationError{
			Type:   rec.Kind().String(),
			Field:  "record",
			Reason: fmt.Sprintf("unsupported record type %T", rec),
		}
	}
}

func (v *RecordValidator) validatePalState(r *record.PalStateRecord) error {
	fail := func(field, reason string) error {
		return &errors.ValidationError{Type: record.PalState.String(), Field: field, Reason: reason}
	}

	if r.Timestamp == 0 {
		return fail("timestamp", "required field is missing")
	}
	if r.State > record.StreamStopped {
		return fail("state", fmt.Sprintf("unknown stream state %d", uint32(r.State)))
	}
	for i, d := range r.Devices {
		if d.Device == 0 {
			continue
		}
		switch d.BitWidth {
		case 8, 16, 24, 32:
		default:
			return fail(fmt.Sprintf("devices[%d].bit_width", i), fmt.Sprintf("unsupported bit width %d", d.BitWidth))
		}
		if d.SampleRate == 0 {
			return fail(fmt.Sprintf("devices[%d].sample_rate", i), "sample rate is zero")
		}
	}
	if r.ACD.State > record.ACDDetected {
		return fail("acd.state", fmt.Sprintf("unknown ACD state %d", uint32(r.ACD.State)))
	}
	if r.ACD.EngineState > record.ACDEngineDetected {
		return fail("acd.engine_state", fmt.Sprintf("unknown ACD engine state %d", uint32(r.ACD.EngineState)))
	}
	return nil
}

func (v *RecordValidator) validateKPI(r *record.KPIRecord) error {
	if r.Timestamp == 0 {
		return &errors.ValidationError{Type: record.KPI.String(), Field: "timestamp", Reason: "required field is missing"}
	}
	if r.Function == "" {
		return &errors.ValidationError{Type: record.KPI.String(), Field: "function", Reason: "required field is missing"}
	}
	return nil
}

func (v *RecordValidator) validateGraph(r *record.GraphRecord) error {
	if r.Timestamp == 0 {
		return &errors.ValidationError{Type: record.Graph.String(), Field: "timestamp", Reason: "required field is missing"}
	}
	if r.State >= record.NumGraphStates {
		return &errors.ValidationError{
			Type:   record.Graph.String(),
			Field:  "state",
			Reason: fmt.Sprintf("unknown graph state %d", uint32(r.State)),
		}
	}
	return nil
}

func (v *RecordValidator) validateSPFReset(r *record.SPFResetRecord) error {
	if r.Timestamp == 0 {
		return &errors.ValidationError{Type: record.SPFReset.String(), Field: "timestamp", Reason: "required field is missing"}
	}
	if r.State >= record.NumResetStates {
		return &errors.ValidationError{
			Type:   record.SPFReset.String(),
			Field:  "state",
			Reason: fmt.Sprintf("unknown reset state %d", uint32(r.State)),
		}
	}
	return nil
}
