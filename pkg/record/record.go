// Package record defines the closed set of diagnostic record kinds logged by
// the audio subsystem and their fixed-size binary encodings.
//
// Every queue kind serializes to exactly Size() bytes using little-endian
// integers laid out like the C structs the dump parsers expect, padding
// included. Counter kinds describe fixed-length arrays of uint64 tallies.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNilRecord is returned when encoding a nil record pointer.
var ErrNilRecord = errors.New("nil record")

// QueueKind identifies a ring-buffered record kind.
type QueueKind uint8

// Queue kinds.
const (
	PalState QueueKind = iota
	KPI
	Graph
	SPFReset

	numQueueKinds
)

var queueNames = [numQueueKinds]string{
	PalState: "PAL_STATE_Q",
	KPI:      "KPI_Q",
	Graph:    "GRAPH_Q",
	SPFReset: "SPF_RESET_Q",
}

var queueSizes = [numQueueKinds]int{
	PalState: PalStateSize,
	KPI:      KPISize,
	Graph:    GraphSize,
	SPFReset: SPFResetSize,
}

// QueueKinds returns every queue kind in enumeration order.
func QueueKinds() []QueueKind {
	kinds := make([]QueueKind, 0, numQueueKinds)
	for k := QueueKind(0); k < numQueueKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is a known queue kind.
func (k QueueKind) Valid() bool {
	return k < numQueueKinds
}

// Size returns the serialized size in bytes of one record of this kind,
// or 0 for an unknown kind.
func (k QueueKind) Size() int {
	if !k.Valid() {
		return 0
	}
	return queueSizes[k]
}

// String returns the configuration name of the kind.
func (k QueueKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("QueueKind(%d)", uint8(k))
	}
	return queueNames[k]
}

// ParseQueueKind resolves a configuration name such as "KPI_Q".
func ParseQueueKind(name string) (QueueKind, bool) {
	for k, n := range queueNames {
		if n == name {
			return QueueKind(k), true
		}
	}
	return 0, false
}

// CounterKind identifies a fixed-length counter array kind.
type CounterKind uint8

// Counter kinds.
const (
	GraphCounters CounterKind = iota
	SPFResetCounters

	numCounterKinds
)

var counterNames = [numCounterKinds]string{
	GraphCounters:    "GRAPH_STATBUF",
	SPFResetCounters: "SPF_RESET_STATBUF",
}

var counterLengths = [numCounterKinds]int{
	GraphCounters:    int(NumGraphStates),
	SPFResetCounters: int(NumResetStates),
}

// CounterWidth is the serialized width of one counter.
const CounterWidth = 8

// CounterKinds returns every counter kind in enumeration order.
func CounterKinds() []CounterKind {
	kinds := make([]CounterKind, 0, numCounterKinds)
	for k := CounterKind(0); k < numCounterKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is a known counter kind.
func (k CounterKind) Valid() bool {
	return k < numCounterKinds
}

// Length returns the number of counters (the state cardinality) of the kind.
func (k CounterKind) Length() int {
	if !k.Valid() {
		return 0
	}
	return counterLengths[k]
}

// String returns the configuration name of the kind.
func (k CounterKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("CounterKind(%d)", uint8(k))
	}
	return counterNames[k]
}

// ParseCounterKind resolves a configuration name such as "GRAPH_STATBUF".
func ParseCounterKind(name string) (CounterKind, bool) {
	for k, n := range counterNames {
		if n == name {
			return CounterKind(k), true
		}
	}
	return 0, false
}

// Record is a single diagnostic entry destined for a queue.
// AppendBinary must append exactly Kind().Size() bytes.
type Record interface {
	Kind() QueueKind
	AppendBinary(b []byte) ([]byte, error)
}

// Decode parses one serialized record of the given kind.
func Decode(kind QueueKind, data []byte) (Record, error) {
	switch kind {
	case PalState:
		var r PalStateRecord
		if err := r.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return &r, nil
	case KPI:
		var r KPIRecord
		if err := r.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return &r, nil
	case Graph:
		var r GraphRecord
		if err := r.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return &r, nil
	case SPFReset:
		var r SPFResetRecord
		if err := r.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("unknown queue kind %d", uint8(kind))
	}
}

// DecodeAll splits a queue dump into records. Trailing bytes that do not
// form a whole record are reported as an error after the complete records.
func DecodeAll(kind QueueKind, data []byte) ([]Record, error) {
	size := kind.Size()
	if size == 0 {
		return nil, fmt.Errorf("unknown queue kind %d", uint8(kind))
	}

	records := make([]Record, 0, len(data)/size)
	for off := 0; off+size <= len(data); off += size {
		r, err := Decode(kind, data[off:off+size])
		if err != nil {
			return records, fmt.Errorf("record %d: %w", off/size, err)
		}
		records = append(records, r)
	}

	if rem := len(data) % size; rem != 0 {
		return records, fmt.Errorf("truncated dump: %d trailing bytes", rem)
	}
	return records, nil
}

func checkSize(kind QueueKind, data []byte) error {
	if len(data) != kind.Size() {
		return fmt.Errorf("%s: expected %d bytes, got %d", kind, kind.Size(), len(data))
	}
	return nil
}

// putCString copies s into dst, truncating so that at least one NUL remains.
func putCString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	clear(dst[n:])
}

// cString returns the bytes of b up to the first NUL.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// DecodeCounters parses a counter dump of the given kind. The data must hold
// exactly Length() little-endian uint64 values.
func DecodeCounters(kind CounterKind, data []byte) ([]uint64, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown counter kind %d", uint8(kind))
	}
	if want := kind.Length() * CounterWidth; len(data) != want {
		return nil, fmt.Errorf("%s: expected %d bytes, got %d", kind, want, len(data))
	}

	out := make([]uint64, kind.Length())
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[i*CounterWidth:])
	}
	return out, nil
}
