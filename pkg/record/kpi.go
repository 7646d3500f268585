package record

import (
	"encoding/binary"
)

// KPISize is the serialized size of a KPIRecord.
const KPISize = 72

// FuncNameLen is the fixed width of the function name field, terminator
// included.
const FuncNameLen = 61

// KPIRecord is a timing probe marking entry to or exit from a function.
type KPIRecord struct {
	Timestamp uint64
	PID       uint16
	Function  string
	// Enter is true on function entry and false on exit.
	Enter bool
}

// Kind implements Record.
func (r *KPIRecord) Kind() QueueKind { return KPI }

// AppendBinary implements Record.
func (r *KPIRecord) AppendBinary(b []byte) ([]byte, error) {
	if r == nil {
		return b, ErrNilRecord
	}
	var buf [KPISize]byte
	binary.LittleEndian.PutUint64(buf[0:], r.Timestamp)
	binary.LittleEndian.PutUint16(buf[8:], r.PID)
	putCString(buf[10:10+FuncNameLen], r.Function)
	if r.Enter {
		buf[71] = 1
	}
	return append(b, buf[:]...), nil
}

// UnmarshalBinary decodes a KPISize byte record.
func (r *KPIRecord) UnmarshalBinary(data []byte) error {
	if err := checkSize(KPI, data); err != nil {
		return err
	}
	r.Timestamp = binary.LittleEndian.Uint64(data[0:])
	r.PID = binary.LittleEndian.Uint16(data[8:])
	r.Function = cString(data[10 : 10+FuncNameLen])
	r.Enter = data[71] != 0
	return nil
}
