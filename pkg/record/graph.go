package record

import (
	"encoding/binary"
	"fmt"
)

// GraphSize is the serialized size of a GraphRecord.
const GraphSize = 24

// GraphState is a graph lifecycle operation. It also indexes the
// GraphCounters array.
type GraphState uint32

// Graph states.
const (
	GraphStart GraphState = iota
	GraphStop
	GraphOpen
	GraphClose
	GraphPause
	GraphResume

	NumGraphStates
)

func (s GraphState) String() string {
	switch s {
	case GraphStart:
		return "GRAPH_START"
	case GraphStop:
		return "GRAPH_STOP"
	case GraphOpen:
		return "GRAPH_OPEN"
	case GraphClose:
		return "GRAPH_CLOSE"
	case GraphPause:
		return "GRAPH_PAUSE"
	case GraphResume:
		return "GRAPH_RESUME"
	default:
		return fmt.Sprintf("GRAPH_STATE(%d)", uint32(s))
	}
}

// GraphRecord logs the result of one graph operation.
type GraphRecord struct {
	Timestamp    uint64
	State        GraphState
	Result       int32
	StreamHandle uint64
}

// Kind implements Record.
func (r *GraphRecord) Kind() QueueKind { return Graph }

// AppendBinary implements Record.
func (r *GraphRecord) AppendBinary(b []byte) ([]byte, error) {
	if r == nil {
		return b, ErrNilRecord
	}
	var buf [GraphSize]byte
	binary.LittleEndian.PutUint64(buf[0:], r.Timestamp)
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.State))
	binary.LittleEndian.PutUint32(buf[12:], uint32(r.Result))
	binary.LittleEndian.PutUint64(buf[16:], r.StreamHandle)
	return append(b, buf[:]...), nil
}

// UnmarshalBinary decodes a GraphSize byte record.
func (r *GraphRecord) UnmarshalBinary(data []byte) error {
	if err := checkSize(Graph, data); err != nil {
		return err
	}
	r.Timestamp = binary.LittleEndian.Uint64(data[0:])
	r.State = GraphState(binary.LittleEndian.Uint32(data[8:]))
	r.Result = int32(binary.LittleEndian.Uint32(data[12:]))
	r.StreamHandle = binary.LittleEndian.Uint64(data[16:])
	return nil
}
