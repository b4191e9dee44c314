// Package parser implements the Socket.IO wire codec.
//
// A packet encodes to one text frame of the form
//
//	<type>[<attachments>-][<namespace>,][<ack id>][<json data>]
//
// followed, for binary packet types, by one binary frame per extracted
// attachment. The Decoder accepts frames one at a time and surfaces whole
// packets once all expected attachments have arrived.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrBadPacket is returned when a frame violates the wire format.
	ErrBadPacket = errors.New("bad packet")
)

// Encoder turns packets into transport frames.
type Encoder interface {
	Encode(p *Packet) ([]Frame, error)
}

// Decoder reassembles packets from transport frames. Implementations hold
// partial state between frames of one binary packet; Destroy releases it.
type Decoder interface {
	Add(f Frame) error
	OnDecoded(fn func(*Packet))
	Destroy()
}

// Parser couples an Encoder with a Decoder factory. One Decoder is created
// per connection; the Encoder is stateless and shared.
type Parser interface {
	Encoder
	NewDecoder() Decoder
}

type defaultParser struct{}

// Default is the JSON text parser speaking the standard Socket.IO format.
var Default Parser = defaultParser{}

func (defaultParser) Encode(p *Packet) ([]Frame, error) {
	var b strings.Builder
	b.WriteByte(byte('0' + p.Type))

	var buffers [][]byte
	data := p.Data
	if p.Type == BinaryEvent || p.Type == BinaryAck {
		data = deconstruct(data, &buffers)
		b.WriteString(strconv.Itoa(len(buffers)))
		b.WriteByte('-')
	}

	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}

	if p.ID != nil {
		b.WriteString(strconv.FormatUint(*p.ID, 10))
	}

	if data != nil {
		enc, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal packet data: %w", err)
		}
		b.Write(enc)
	}

	frames := make([]Frame, 0, 1+len(buffers))
	frames = append(frames, Frame{Data: []byte(b.String())})
	for _, buf := range buffers {
		frames = append(frames, Frame{Data: buf, Binary: true})
	}
	return frames, nil
}

func (defaultParser) NewDecoder() Decoder {
	return &defaultDecoder{}
}

type defaultDecoder struct {
	onDecoded func(*Packet)
	pending   *Packet
	buffers   [][]byte
}

func (d *defaultDecoder) OnDecoded(fn func(*Packet)) {
	d.onDecoded = fn
}

// Add feeds one frame in. Binary frames are only legal while a binary packet
// is awaiting attachments.
func (d *defaultDecoder) Add(f Frame) error {
	if f.Binary {
		if d.pending == nil {
			return fmt.Errorf("%w: unexpected binary frame", ErrBadPacket)
		}
		d.buffers = append(d.buffers, f.Data)
		if len(d.buffers) == d.pending.attachments {
			p := d.pending
			p.Data = reconstruct(p.Data, d.buffers)
			d.pending = nil
			d.buffers = nil
			d.emit(p)
		}
		return nil
	}

	if d.pending != nil {
		// A text frame interleaved into an attachment sequence.
		d.pending = nil
		d.buffers = nil
		return fmt.Errorf("%w: expected binary frame", ErrBadPacket)
	}

	p, err := decodeString(f.Data)
	if err != nil {
		return err
	}
	if (p.Type == BinaryEvent || p.Type == BinaryAck) && p.attachments > 0 {
		d.pending = p
		return nil
	}
	d.emit(p)
	return nil
}

func (d *defaultDecoder) Destroy() {
	d.pending = nil
	d.buffers = nil
}

func (d *defaultDecoder) emit(p *Packet) {
	if d.onDecoded != nil {
		d.onDecoded(p)
	}
}

func decodeString(s []byte) (*Packet, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrBadPacket)
	}

	p := &Packet{Namespace: "/"}
	pos := 0

	if s[pos] < '0' || s[pos] > '0'+byte(BinaryAck) {
		return nil, fmt.Errorf("%w: invalid type %q", ErrBadPacket, s[pos])
	}
	p.Type = Type(s[pos] - '0')
	pos++

	// Attachment count, only present on binary types.
	if p.Type == BinaryEvent || p.Type == BinaryAck {
		start := pos
		for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
			pos++
		}
		if pos == start || pos >= len(s) || s[pos] != '-' {
			return nil, fmt.Errorf("%w: missing attachment count", ErrBadPacket)
		}
		n, err := strconv.Atoi(string(s[start:pos]))
		if err != nil {
			return nil, fmt.Errorf("%w: attachment count: %v", ErrBadPacket, err)
		}
		p.attachments = n
		pos++
	}

	if pos >= len(s) {
		return p, nil
	}

	if s[pos] == '/' {
		end := pos
		for end < len(s) && s[end] != ',' {
			end++
		}
		p.Namespace = string(s[pos:end])
		if end == len(s) {
			return p, nil
		}
		pos = end + 1
	}

	if pos >= len(s) {
		return p, nil
	}

	if s[pos] >= '0' && s[pos] <= '9' {
		end := pos
		var id uint64
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			id = id*10 + uint64(s[end]-'0')
			end++
		}
		p.ID = NewID(id)
		pos = end
	}

	if pos < len(s) {
		if err := json.Unmarshal(s[pos:], &p.Data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
		}
	}

	return p, nil
}
