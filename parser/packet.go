package parser

// Type identifies a Socket.IO packet type on the wire.
type Type byte

const (
	Connect Type = iota
	Disconnect
	Event
	Ack
	Error
	BinaryEvent
	BinaryAck
)

// Packet is the unit exchanged between server and client within a namespace.
type Packet struct {
	Type      Type
	Namespace string
	Data      interface{}
	ID        *uint64

	attachments int
}

// Frame is one transport frame produced by an Encoder or consumed by a
// Decoder. A packet without binary payloads maps to a single text frame;
// binary packets map to a text frame followed by their attachment frames.
type Frame struct {
	Data   []byte
	Binary bool
}

// NewID returns a heap-allocated ack id, convenient for Packet literals.
func NewID(id uint64) *uint64 {
	i := new(uint64)
	*i = id
	return i
}

// String returns the packet type as a string
func (t Type) String() string {
	switch t {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case Event:
		return "event"
	case Ack:
		return "ack"
	case Error:
		return "error"
	case BinaryEvent:
		return "binary_event"
	case BinaryAck:
		return "binary_ack"
	default:
		return "unknown"
	}
}
