package engineio

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session states as observed through State.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// Session represents an Engine.IO session
type Session struct {
	id           string
	conn         *websocket.Conn
	server       *Server
	request      *http.Request
	outgoing     chan *Packet
	pingTimer    *time.Timer
	pingTimeout  *time.Timer
	closeOnce    sync.Once
	closed       chan struct{}
	mu           sync.RWMutex
	onMessage    func(data []byte, binary bool)
	onClose      func(string)
	lastActivity time.Time
}

// NewSession creates a new Engine.IO session
func NewSession(id string, conn *websocket.Conn, request *http.Request, server *Server) *Session {
	s := &Session{
		id:           id,
		conn:         conn,
		server:       server,
		request:      request,
		outgoing:     make(chan *Packet, 256),
		closed:       make(chan struct{}),
		lastActivity: time.Now(),
	}

	return s
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// Request returns the HTTP request the session was established with.
func (s *Session) Request() *http.Request {
	return s.request
}

// State reports the session state, "open" or "closed".
func (s *Session) State() string {
	select {
	case <-s.closed:
		return StateClosed
	default:
		return StateOpen
	}
}

// Writable reports whether a send would be accepted without backpressure.
func (s *Session) Writable() bool {
	return s.State() == StateOpen && len(s.outgoing) < cap(s.outgoing)
}

// Start starts the session loops
func (s *Session) Start() {
	go s.writeLoop()
	go s.readLoop()
	s.schedulePing()
}

// Send enqueues one message frame for the client.
func (s *Session) Send(data []byte, binary, compress bool) error {
	return s.sendPacket(&Packet{
		Type:     PacketTypeMessage,
		Data:     data,
		Binary:   binary,
		Compress: compress,
	})
}

func (s *Session) sendPacket(packet *Packet) error {
	select {
	case s.outgoing <- packet:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	default:
		// Channel full, connection might be slow
		return ErrSlowClient
	}
}

// Close closes the session
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		close(s.closed)

		if s.pingTimer != nil {
			s.pingTimer.Stop()
		}
		if s.pingTimeout != nil {
			s.pingTimeout.Stop()
		}

		// Send close packet
		packet := &Packet{Type: PacketTypeClose}
		s.conn.WriteMessage(websocket.TextMessage, packet.Encode())

		s.conn.Close()

		if s.server != nil {
			s.server.sessions.Delete(s.id)
		}

		s.mu.RLock()
		handler := s.onClose
		s.mu.RUnlock()

		if handler != nil {
			handler(reason)
		}
	})
}

// OnMessage sets the message handler
func (s *Session) OnMessage(fn func(data []byte, binary bool)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// OnClose sets the close handler
func (s *Session) OnClose(fn func(string)) {
	s.mu.Lock()
	s.onClose = fn
	s.mu.Unlock()
}

func (s *Session) readLoop() {
	defer s.Close("read error")

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		s.updateActivity()

		if mt == websocket.BinaryMessage {
			s.handleMessage(data, true)
			continue
		}

		packet, err := DecodePacket(data)
		if err != nil {
			continue
		}

		s.handlePacket(packet)
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case packet := <-s.outgoing:
			s.conn.EnableWriteCompression(packet.Compress)
			var err error
			if packet.Binary {
				err = s.conn.WriteMessage(websocket.BinaryMessage, packet.Data)
			} else {
				err = s.conn.WriteMessage(websocket.TextMessage, packet.Encode())
			}
			if err != nil {
				s.Close("write error")
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Session) handlePacket(packet *Packet) {
	switch packet.Type {
	case PacketTypePing:
		s.handlePing()
	case PacketTypePong:
		s.handlePong()
	case PacketTypeMessage:
		s.handleMessage(packet.Data, false)
	case PacketTypeClose:
		s.Close("client closed")
	}
}

func (s *Session) handlePing() {
	s.sendPacket(&Packet{Type: PacketTypePong})
}

func (s *Session) handlePong() {
	if s.pingTimeout != nil {
		s.pingTimeout.Stop()
	}
	s.schedulePing()
}

func (s *Session) handleMessage(data []byte, binary bool) {
	s.mu.RLock()
	handler := s.onMessage
	s.mu.RUnlock()

	if handler != nil {
		handler(data, binary)
	}
}

func (s *Session) schedulePing() {
	s.pingTimer = time.AfterFunc(time.Duration(s.server.config.PingInterval)*time.Millisecond, func() {
		s.sendPacket(&Packet{Type: PacketTypePing})
		s.schedulePingTimeout()
	})
}

func (s *Session) schedulePingTimeout() {
	s.pingTimeout = time.AfterFunc(time.Duration(s.server.config.PingTimeout)*time.Millisecond, func() {
		s.Close("ping timeout")
	})
}

func (s *Session) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}
