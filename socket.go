package sio

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/pelmenek/sio/parser"
)

// ErrAckOnBroadcast is returned when an emit with target rooms or the
// broadcast flag carries a trailing ack callback.
var ErrAckOnBroadcast = errors.New("Callbacks are not supported when broadcasting")

// Socket is a peer endpoint within one namespace. A client holds at most one
// socket per namespace; the socket id is "<namespace>#<connection id>".
type Socket struct {
	emitter

	id        string
	nsp       *Namespace
	client    *Client
	handshake *Handshake

	stateMu      sync.Mutex
	connected    bool
	disconnected bool

	roomsMu sync.RWMutex
	rooms   map[string]bool

	acksMu sync.Mutex
	acks   map[uint64]func(...interface{})

	emitMu    sync.Mutex
	emitRooms []string
	flags     Flags

	data sync.Map
}

func newSocket(nsp *Namespace, client *Client) *Socket {
	return &Socket{
		id:        nsp.name + "#" + client.id,
		nsp:       nsp,
		client:    client,
		handshake: newHandshake(client.conn.Request()),
		rooms:     make(map[string]bool),
		acks:      make(map[uint64]func(...interface{})),
		flags:     defaultFlags(),
	}
}

// ID returns the socket ID
func (s *Socket) ID() string {
	return s.id
}

// Namespace returns the namespace the socket belongs to.
func (s *Socket) Namespace() *Namespace {
	return s.nsp
}

// Handshake returns the handshake snapshot captured at socket creation.
func (s *Socket) Handshake() *Handshake {
	return s.handshake
}

// Connected reports whether the socket is currently connected.
func (s *Socket) Connected() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.connected
}

// Emit sends an event to the client. A trailing func(...interface{})
// argument is registered as an ack callback and invoked with the client's
// reply. Reserved event names fire local listeners only. When target rooms
// or the broadcast flag are set the event fans out through the adapter,
// excluding this socket; ack callbacks are rejected in that mode.
func (s *Socket) Emit(event string, args ...interface{}) error {
	rooms, flags := s.takeEmitState()

	if _, reserved := socketEvents[event]; reserved {
		s.emitLocal(event, args...)
		return nil
	}

	var ack func(...interface{})
	if len(args) > 0 {
		if fn, ok := args[len(args)-1].(func(...interface{})); ok {
			ack = fn
			args = args[:len(args)-1]
		}
	}

	data := make([]interface{}, 0, len(args)+1)
	data = append(data, event)
	data = append(data, args...)

	packet := &parser.Packet{
		Type:      parser.Event,
		Namespace: s.nsp.name,
		Data:      data,
	}
	if !flags.JSON && parser.HasBinary(data) {
		packet.Type = parser.BinaryEvent
	}

	if len(rooms) > 0 || flags.Broadcast {
		if ack != nil {
			return ErrAckOnBroadcast
		}
		return s.nsp.Adapter().Broadcast(packet, &BroadcastOptions{
			Rooms:  rooms,
			Except: []string{s.id},
			Flags:  flags,
		})
	}

	if ack != nil {
		id := s.nsp.nextAckID()
		s.acksMu.Lock()
		s.acks[id] = ack
		s.acksMu.Unlock()
		packet.ID = parser.NewID(id)
	}

	s.packet(packet, flags)
	return nil
}

// Send emits a "message" event with the given arguments.
func (s *Socket) Send(args ...interface{}) error {
	return s.Emit("message", args...)
}

// Write is an alias for Send.
func (s *Socket) Write(args ...interface{}) error {
	return s.Send(args...)
}

// To targets a room for the next emit; chainable.
func (s *Socket) To(room string) *Socket {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for _, r := range s.emitRooms {
		if r == room {
			return s
		}
	}
	s.emitRooms = append(s.emitRooms, room)
	return s
}

// In is an alias for To.
func (s *Socket) In(room string) *Socket {
	return s.To(room)
}

// Broadcast flags the next emit to fan out to the namespace, excluding
// this socket.
func (s *Socket) Broadcast() *Socket {
	s.emitMu.Lock()
	s.flags.Broadcast = true
	s.emitMu.Unlock()
	return s
}

// Volatile flags the next emit to be dropped if the transport is not
// immediately writable.
func (s *Socket) Volatile() *Socket {
	s.emitMu.Lock()
	s.flags.Volatile = true
	s.emitMu.Unlock()
	return s
}

// JSON flags the next emit to skip binary detection.
func (s *Socket) JSON() *Socket {
	s.emitMu.Lock()
	s.flags.JSON = true
	s.emitMu.Unlock()
	return s
}

// Compress sets per-frame compression for the next emit.
func (s *Socket) Compress(compress bool) *Socket {
	s.emitMu.Lock()
	s.flags.Compress = compress
	s.emitMu.Unlock()
	return s
}

func (s *Socket) takeEmitState() ([]string, Flags) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	rooms, flags := s.emitRooms, s.flags
	s.emitRooms = nil
	s.flags = defaultFlags()
	return rooms, flags
}

// Join adds the socket to a room; joining a room twice is a no-op.
func (s *Socket) Join(room string) error {
	s.roomsMu.RLock()
	joined := s.rooms[room]
	s.roomsMu.RUnlock()
	if joined {
		return nil
	}

	if err := s.nsp.Adapter().Add(s.id, room); err != nil {
		return err
	}

	s.roomsMu.Lock()
	s.rooms[room] = true
	s.roomsMu.Unlock()
	return nil
}

// Leave removes the socket from a room
func (s *Socket) Leave(room string) error {
	if err := s.nsp.Adapter().Del(s.id, room); err != nil {
		return err
	}

	s.roomsMu.Lock()
	delete(s.rooms, room)
	s.roomsMu.Unlock()
	return nil
}

// LeaveAll removes the socket from every room.
func (s *Socket) LeaveAll() {
	s.nsp.Adapter().DelAll(s.id)

	s.roomsMu.Lock()
	s.rooms = make(map[string]bool)
	s.roomsMu.Unlock()
}

// Rooms returns all rooms the socket is in
func (s *Socket) Rooms() []string {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Set stores arbitrary data on the socket
func (s *Socket) Set(key string, value interface{}) {
	s.data.Store(key, value)
}

// Get retrieves data from the socket
func (s *Socket) Get(key string) (interface{}, bool) {
	return s.data.Load(key)
}

// OnDisconnect registers a disconnect handler
func (s *Socket) OnDisconnect(handler func(string)) {
	s.On("disconnect", func(args ...interface{}) {
		reason := ""
		if len(args) > 0 {
			reason, _ = args[0].(string)
		}
		handler(reason)
	})
}

// Disconnect closes the socket. With close set the entire client transport
// is torn down; otherwise a DISCONNECT packet is sent and only this socket
// closes. No-op once the socket is disconnected.
func (s *Socket) Disconnect(close bool) {
	s.stateMu.Lock()
	connected := s.connected
	s.stateMu.Unlock()
	if !connected {
		return
	}

	if close {
		s.client.disconnect()
		return
	}

	s.packet(&parser.Packet{Type: parser.Disconnect, Namespace: s.nsp.name}, defaultFlags())
	s.onclose("server namespace disconnect")
}

func (s *Socket) packet(p *parser.Packet, flags Flags) {
	s.client.packet(p, writeOptions{
		Volatile: flags.Volatile,
		Compress: flags.Compress,
	})
}

// onconnect finalizes admission: the socket becomes connected, joins its own
// room and confirms the namespace connection to the client.
func (s *Socket) onconnect() {
	s.stateMu.Lock()
	s.connected = true
	s.stateMu.Unlock()

	s.nsp.addConnected(s)
	s.Join(s.id)
	s.packet(&parser.Packet{Type: parser.Connect, Namespace: s.nsp.name}, defaultFlags())
}

// onpacket dispatches a decoded packet addressed to this socket.
func (s *Socket) onpacket(p *parser.Packet) {
	switch p.Type {
	case parser.Event, parser.BinaryEvent:
		s.onevent(p)
	case parser.Ack, parser.BinaryAck:
		s.onack(p)
	case parser.Disconnect:
		s.onclose("client namespace disconnect")
	case parser.Error:
		s.onerror(p.Data)
	}
}

func (s *Socket) onevent(p *parser.Packet) {
	data, ok := p.Data.([]interface{})
	if !ok || len(data) == 0 {
		return
	}

	event, ok := data[0].(string)
	if !ok {
		return
	}

	args := data[1:]
	if p.ID != nil {
		args = append(args, s.ack(*p.ID))
	}

	s.emitLocal(event, args...)
}

// ack builds the single-shot reply callback handed to event handlers when
// the incoming packet requested an acknowledgement.
func (s *Socket) ack(id uint64) func(...interface{}) {
	var once sync.Once
	return func(args ...interface{}) {
		once.Do(func() {
			packet := &parser.Packet{
				Type:      parser.Ack,
				Namespace: s.nsp.name,
				Data:      args,
				ID:        parser.NewID(id),
			}
			if parser.HasBinary(args) {
				packet.Type = parser.BinaryAck
			}
			s.packet(packet, defaultFlags())
		})
	}
}

func (s *Socket) onack(p *parser.Packet) {
	if p.ID == nil {
		return
	}

	s.acksMu.Lock()
	handler, ok := s.acks[*p.ID]
	delete(s.acks, *p.ID)
	s.acksMu.Unlock()
	if !ok {
		return
	}

	args, _ := p.Data.([]interface{})
	handler(args...)
}

// onclose transitions the socket to its terminal disconnected state.
// Idempotent; pending acks are discarded without being invoked.
func (s *Socket) onclose(reason string) {
	s.stateMu.Lock()
	if s.disconnected {
		s.stateMu.Unlock()
		return
	}
	s.connected = false
	s.disconnected = true
	s.stateMu.Unlock()

	s.nsp.delConnected(s.id)
	s.LeaveAll()
	s.client.remove(s)
	s.nsp.remove(s)

	s.acksMu.Lock()
	s.acks = make(map[uint64]func(...interface{}))
	s.acksMu.Unlock()

	s.emitLocal("disconnect", reason)
}

// onerror delivers err to the local error listeners, or reports it to the
// log sink when none are registered. The socket remains usable.
func (s *Socket) onerror(err interface{}) {
	if s.hasListeners("error") {
		s.emitLocal("error", err)
		return
	}
	slog.Error("unhandled socket error", "socket", s.id, "error", err)
}
