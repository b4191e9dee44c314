package parser

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Msgpack is an alternate wire codec encoding each packet as a single
// msgpack map with "type", "nsp", "data" and "id" keys. Binary payloads ride
// inline, so every packet is exactly one binary frame and the BINARY_* types
// need no attachment frames.
var Msgpack Parser = msgpackParser{}

type msgpackParser struct{}

func (msgpackParser) Encode(p *Packet) ([]Frame, error) {
	o := make([]byte, 0, 32+msgp.GuessSize(p.Data))
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "type")
	o = msgp.AppendByte(o, byte(p.Type))
	o = msgp.AppendString(o, "nsp")
	o = msgp.AppendString(o, p.Namespace)
	o = msgp.AppendString(o, "data")
	o, err := msgp.AppendIntf(o, p.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal packet data: %w", err)
	}
	o = msgp.AppendString(o, "id")
	if p.ID == nil {
		o = msgp.AppendNil(o)
	} else {
		o = msgp.AppendUint64(o, *p.ID)
	}
	return []Frame{{Data: o, Binary: true}}, nil
}

func (msgpackParser) NewDecoder() Decoder {
	return &msgpackDecoder{}
}

type msgpackDecoder struct {
	onDecoded func(*Packet)
}

func (d *msgpackDecoder) OnDecoded(fn func(*Packet)) {
	d.onDecoded = fn
}

func (d *msgpackDecoder) Add(f Frame) error {
	p, err := decodeMsgpack(f.Data)
	if err != nil {
		return err
	}
	if d.onDecoded != nil {
		d.onDecoded(p)
	}
	return nil
}

func (d *msgpackDecoder) Destroy() {}

func decodeMsgpack(bts []byte) (*Packet, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
	}
	p := &Packet{Namespace: "/"}
	for ; sz > 0; sz-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
		}
		switch msgp.UnsafeString(field) {
		case "type":
			var b byte
			b, bts, err = msgp.ReadByteBytes(bts)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
			}
			if Type(b) > BinaryAck {
				return nil, fmt.Errorf("%w: invalid type %d", ErrBadPacket, b)
			}
			p.Type = Type(b)
		case "nsp":
			p.Namespace, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
			}
		case "data":
			p.Data, bts, err = msgp.ReadIntfBytes(bts)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
			}
		case "id":
			if msgp.IsNil(bts) {
				bts, err = msgp.ReadNilBytes(bts)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
				}
			} else {
				var id uint64
				id, bts, err = msgp.ReadUint64Bytes(bts)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
				}
				p.ID = NewID(id)
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
			}
		}
	}
	if p.Namespace == "" {
		p.Namespace = "/"
	}
	return p, nil
}
