package record

import (
	"encoding/binary"
	"fmt"
)

// PalStateSize is the serialized size of a PalStateRecord.
const PalStateSize = 136

// MaxDevices is the number of device attribute slots per state record.
const MaxDevices = 3

// CaptureProfileLen is the fixed width of the capture profile name,
// terminator included.
const CaptureProfileLen = 55

// StreamState is the session state a PAL stream transitioned to.
type StreamState uint32

// Stream states.
const (
	StreamClosed StreamState = iota
	StreamInit
	StreamOpened
	StreamStarted
	StreamPaused
	StreamSuspended
	StreamStopped
)

func (s StreamState) String() string {
	switch s {
	case StreamClosed:
		return "CLOSED"
	case StreamInit:
		return "INIT"
	case StreamOpened:
		return "OPENED"
	case StreamStarted:
		return "STARTED"
	case StreamPaused:
		return "PAUSED"
	case StreamSuspended:
		return "SUSPENDED"
	case StreamStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("STATE(%d)", uint32(s))
	}
}

// ACDState is the acoustic context detection stream state.
type ACDState uint32

// ACD stream states.
const (
	ACDNone ACDState = iota
	ACDSSR
	ACDIdle
	ACDLoaded
	ACDActive
	ACDDetected
)

// ACDEngineState is the state of the ACD engine backing a stream.
type ACDEngineState uint32

// ACD engine states.
const (
	ACDEngineIdle ACDEngineState = iota
	ACDEngineLoaded
	ACDEngineActive
	ACDEngineDetected
)

// DeviceAttr describes one device attached to a stream.
type DeviceAttr struct {
	SampleRate uint32
	Device     uint16
	BitWidth   uint8
	Channels   uint8
}

// ACDInfo carries stream-type specific data for ACD streams.
type ACDInfo struct {
	State          ACDState
	EngineState    ACDEngineState
	EventID        uint32
	ContextID      uint32
	CaptureProfile string
	ModelID        uint8
}

// PalStateRecord logs one audio session state transition.
type PalStateRecord struct {
	Timestamp     uint64
	StreamHandle  uint64
	Devices       [MaxDevices]DeviceAttr
	State         StreamState
	Error         int32
	StreamType    uint16
	Direction     int8
	SessionHandle uint64
	ACD           ACDInfo
}

// Kind implements Record.
func (r *PalStateRecord) Kind() QueueKind { return PalState }

// AppendBinary implements Record.
func (r *PalStateRecord) AppendBinary(b []byte) ([]byte, error) {
	if r == nil {
		return b, ErrNilRecord
	}
	var buf [PalStateSize]byte
	le := binary.LittleEndian

	le.PutUint64(buf[0:], r.Timestamp)
	le.PutUint64(buf[8:], r.StreamHandle)
	for i, d := range r.Devices {
		off := 16 + i*8
		le.PutUint32(buf[off:], d.SampleRate)
		le.PutUint16(buf[off+4:], d.Device)
		buf[off+6] = d.BitWidth
		buf[off+7] = d.Channels
	}
	le.PutUint32(buf[40:], uint32(r.State))
	le.PutUint32(buf[44:], uint32(r.Error))
	le.PutUint16(buf[48:], r.StreamType)
	buf[50] = byte(r.Direction)
	// 51..55 padding
	le.PutUint64(buf[56:], r.SessionHandle)
	le.PutUint32(buf[64:], uint32(r.ACD.State))
	le.PutUint32(buf[68:], uint32(r.ACD.EngineState))
	le.PutUint32(buf[72:], r.ACD.EventID)
	le.PutUint32(buf[76:], r.ACD.ContextID)
	putCString(buf[80:80+CaptureProfileLen], r.ACD.CaptureProfile)
	buf[135] = r.ACD.ModelID

	return append(b, buf[:]...), nil
}

// UnmarshalBinary decodes a PalStateSize byte record.
func (r *PalStateRecord) UnmarshalBinary(data []byte) error {
	if err := checkSize(PalState, data); err != nil {
		return err
	}
	le := binary.LittleEndian

	r.Timestamp = le.Uint64(data[0:])
	r.StreamHandle = le.Uint64(data[8:])
	for i := range r.Devices {
		off := 16 + i*8
		r.Devices[i] = DeviceAttr{
			SampleRate: le.Uint32(data[off:]),
			Device:     le.Uint16(data[off+4:]),
			BitWidth:   data[off+6],
			Channels:   data[off+7],
		}
	}
	r.State = StreamState(le.Uint32(data[40:]))
	r.Error = int32(le.Uint32(data[44:]))
	r.StreamType = le.Uint16(data[48:])
	r.Direction = int8(data[50])
	r.SessionHandle = le.Uint64(data[56:])
	r.ACD = ACDInfo{
		State:          ACDState(le.Uint32(data[64:])),
		EngineState:    ACDEngineState(le.Uint32(data[68:])),
		EventID:        le.Uint32(data[72:]),
		ContextID:      le.Uint32(data[76:]),
		CaptureProfile: cString(data[80 : 80+CaptureProfileLen]),
		ModelID:        data[135],
	}
	return nil
}
