package sio

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/pelmenek/sio/engineio"
	"github.com/pelmenek/sio/parser"
)

// Authorization is the legacy handshake hook installed through
// Set("authorization", ...); it runs as a middleware on the default
// namespace.
type Authorization func(handshake *Handshake, next func(error))

// Server holds the namespaces and accepts engine connections. The default
// namespace's API is proxied at the top level, so server.Emit(...) is
// server.Of("/").Emit(...).
type Server struct {
	eio       *engineio.Server
	eioConfig *engineio.Config
	parser    parser.Parser
	path      string

	adapterMu      sync.RWMutex
	adapterFactory AdapterFactory

	nsMu       sync.RWMutex
	namespaces map[string]*Namespace
}

// Config represents Socket.IO server configuration
type Config struct {
	// Path is the HTTP mount point; defaults to "/socket.io".
	Path string

	// Origins restricts accepted Origin headers; empty allows any.
	Origins []string

	// Parser selects the wire codec; defaults to parser.Default.
	Parser parser.Parser

	// Adapter builds each namespace's adapter; defaults to NewMemoryAdapter.
	Adapter AdapterFactory

	PingInterval int // milliseconds
	PingTimeout  int // milliseconds
	MaxPayload   int // bytes
}

// NewServer creates a new Socket.IO server
func NewServer(config *Config) *Server {
	if config == nil {
		config = &Config{}
	}

	eioConfig := engineio.DefaultConfig()
	if config.PingInterval != 0 {
		eioConfig.PingInterval = config.PingInterval
	}
	if config.PingTimeout != 0 {
		eioConfig.PingTimeout = config.PingTimeout
	}
	if config.MaxPayload != 0 {
		eioConfig.MaxPayload = config.MaxPayload
	}
	eioConfig.Origins = config.Origins

	server := &Server{
		eio:        engineio.NewServer(eioConfig),
		eioConfig:  eioConfig,
		parser:     config.Parser,
		path:       config.Path,
		namespaces: make(map[string]*Namespace),
	}
	if server.parser == nil {
		server.parser = parser.Default
	}
	if server.path == "" {
		server.path = "/socket.io"
	}
	server.adapterFactory = config.Adapter
	if server.adapterFactory == nil {
		server.adapterFactory = NewMemoryAdapter
	}

	// Create default namespace
	server.Of("/")

	// Handle Engine.IO connections
	server.eio.OnConnect(server.handleConnection)

	return server
}

// Of returns a namespace, creating it if it doesn't exist. Names are
// normalized to a leading slash. Optional handlers are registered for the
// namespace's connection event.
func (s *Server) Of(name string, handlers ...func(*Socket)) *Namespace {
	name = normalizeNamespace(name)

	s.nsMu.RLock()
	ns, exists := s.namespaces[name]
	s.nsMu.RUnlock()

	if !exists {
		s.nsMu.Lock()
		// Double-check after acquiring write lock
		if ns, exists = s.namespaces[name]; !exists {
			ns = NewNamespace(name, s)
			s.namespaces[name] = ns
		}
		s.nsMu.Unlock()
	}

	for _, handler := range handlers {
		ns.OnConnect(handler)
	}
	return ns
}

func normalizeNamespace(name string) string {
	if name == "" {
		return "/"
	}
	if !strings.HasPrefix(name, "/") {
		return "/" + name
	}
	return name
}

// namespace looks a namespace up without creating it.
func (s *Server) namespace(name string) (*Namespace, bool) {
	s.nsMu.RLock()
	defer s.nsMu.RUnlock()
	ns, ok := s.namespaces[name]
	return ns, ok
}

// AdapterFactory returns the factory namespaces are initialized with.
func (s *Server) AdapterFactory() AdapterFactory {
	s.adapterMu.RLock()
	defer s.adapterMu.RUnlock()
	return s.adapterFactory
}

// SetAdapter replaces the adapter factory and re-initializes the adapter of
// every existing namespace.
func (s *Server) SetAdapter(factory AdapterFactory) {
	s.adapterMu.Lock()
	s.adapterFactory = factory
	s.adapterMu.Unlock()

	s.nsMu.RLock()
	defer s.nsMu.RUnlock()
	for _, ns := range s.namespaces {
		ns.initAdapter(factory)
	}
}

// Set supports the legacy configuration keys: "authorization" (an
// Authorization middleware on the default namespace), "origins", "resource"
// (alias for the mount path), "heartbeat timeout", "heartbeat interval",
// "destroy buffer size" and "transports".
func (s *Server) Set(key string, value interface{}) error {
	switch key {
	case "authorization":
		fn, ok := value.(Authorization)
		if !ok {
			if raw, okRaw := value.(func(*Handshake, func(error))); okRaw {
				fn = raw
				ok = true
			}
		}
		if !ok {
			return fmt.Errorf("authorization value must be an Authorization func")
		}
		s.Use(func(socket *Socket, next func(error)) {
			fn(socket.Handshake(), next)
		})
	case "origins":
		switch v := value.(type) {
		case string:
			s.eio.SetOrigins([]string{v})
		case []string:
			s.eio.SetOrigins(v)
		default:
			return fmt.Errorf("origins value must be a string or []string")
		}
	case "resource", "path":
		path, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s value must be a string", key)
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		s.path = path
	case "heartbeat timeout":
		ms, ok := value.(int)
		if !ok {
			return fmt.Errorf("heartbeat timeout value must be an int")
		}
		s.eioConfig.PingTimeout = ms
	case "heartbeat interval":
		ms, ok := value.(int)
		if !ok {
			return fmt.Errorf("heartbeat interval value must be an int")
		}
		s.eioConfig.PingInterval = ms
	case "destroy buffer size":
		size, ok := value.(int)
		if !ok {
			return fmt.Errorf("destroy buffer size value must be an int")
		}
		s.eioConfig.MaxPayload = size
	case "transports":
		// WebSocket is the only transport; accepted for compatibility.
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	return nil
}

// OnConnect sets the connection handler for the default namespace
func (s *Server) OnConnect(handler func(*Socket)) {
	s.Of("/").OnConnect(handler)
}

// On registers an event handler on the default namespace.
func (s *Server) On(event string, handler EventHandler) {
	s.Of("/").On(event, handler)
}

// Use appends a middleware to the default namespace.
func (s *Server) Use(fn Middleware) *Server {
	s.Of("/").Use(fn)
	return s
}

// Emit broadcasts to all clients in the default namespace
func (s *Server) Emit(event string, args ...interface{}) error {
	return s.Of("/").Emit(event, args...)
}

// Send emits a "message" event on the default namespace.
func (s *Server) Send(args ...interface{}) error {
	return s.Of("/").Send(args...)
}

// Write is an alias for Send.
func (s *Server) Write(args ...interface{}) error {
	return s.Send(args...)
}

// To targets a room on the default namespace for the next emit.
func (s *Server) To(room string) *Namespace {
	return s.Of("/").To(room)
}

// In is an alias for To.
func (s *Server) In(room string) *Namespace {
	return s.Of("/").In(room)
}

// Clients enumerates socket IDs on the default namespace.
func (s *Server) Clients() []string {
	return s.Of("/").Clients()
}

// Compress sets per-frame compression for the next default-namespace emit.
func (s *Server) Compress(compress bool) *Namespace {
	return s.Of("/").Compress(compress)
}

// Volatile flags the next default-namespace emit as volatile.
func (s *Server) Volatile() *Namespace {
	return s.Of("/").Volatile()
}

// JSON flags the next default-namespace emit to skip binary detection.
func (s *Server) JSON() *Namespace {
	return s.Of("/").JSON()
}

// Sockets returns the admitted sockets of the default namespace.
func (s *Server) Sockets() []*Socket {
	return s.Of("/").Sockets()
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.path && !strings.HasPrefix(r.URL.Path, s.path+"/") {
		http.NotFound(w, r)
		return
	}

	// Delegate to Engine.IO
	s.eio.ServeHTTP(w, r)
}

// Close force-closes every client of the default namespace, then shuts the
// engine transport down.
func (s *Server) Close() error {
	for _, socket := range s.Of("/").Sockets() {
		socket.client.close()
	}

	s.eio.Close()

	s.nsMu.RLock()
	defer s.nsMu.RUnlock()
	for _, ns := range s.namespaces {
		ns.Adapter().Close()
	}

	return nil
}

// handleConnection attaches a new engine connection: a client demultiplexer
// is created and admission to the default namespace begins.
func (s *Server) handleConnection(session *engineio.Session) {
	client := newClient(s, session)
	client.connect("/")
}
