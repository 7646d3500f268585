package record

import (
	"encoding/binary"
	"fmt"
)

// SPFResetSize is the serialized size of an SPFResetRecord.
const SPFResetSize = 16

// ResetState is a signal processing framework restart notification. It also
// indexes the SPFResetCounters array.
type ResetState uint32

// Reset states.
const (
	ResetDown ResetState = iota
	ResetUp

	NumResetStates
)

func (s ResetState) String() string {
	switch s {
	case ResetDown:
		return "SPF_RESET_DOWN"
	case ResetUp:
		return "SPF_RESET_UP"
	default:
		return fmt.Sprintf("SPF_RESET(%d)", uint32(s))
	}
}

// SPFResetRecord logs a subsystem restart notification.
type SPFResetRecord struct {
	Timestamp uint64
	State     ResetState
}

// Kind implements Record.
func (r *SPFResetRecord) Kind() QueueKind { return SPFReset }

// AppendBinary implements Record.
func (r *SPFResetRecord) AppendBinary(b []byte) ([]byte, error) {
	if r == nil {
		return b, ErrNilRecord
	}
	var buf [SPFResetSize]byte
	binary.LittleEndian.PutUint64(buf[0:], r.Timestamp)
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.State))
	return append(b, buf[:]...), nil
}

// UnmarshalBinary decodes an SPFResetSize byte record.
func (r *SPFResetRecord) UnmarshalBinary(data []byte) error {
	if err := checkSize(SPFReset, data); err != nil {
		return err
	}
	r.Timestamp = binary.LittleEndian.Uint64(data[0:])
	r.State = ResetState(binary.LittleEndian.Uint32(data[8:]))
	return nil
}
