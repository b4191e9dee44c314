package sio

import (
	"sync"
	"sync/atomic"

	"github.com/pelmenek/sio/parser"
)

// Middleware inspects a socket before it is admitted to a namespace. Each
// middleware must call next exactly once; a non-nil error aborts admission
// and is reported to the client as an ERROR packet.
type Middleware func(socket *Socket, next func(error))

// ErrorData lets a middleware rejection carry a structured payload to the
// client in place of the error message.
type ErrorData interface {
	error
	Data() interface{}
}

// Namespace is a named event-space multiplexed over the server's
// connections. Sockets on different namespaces of the same client are
// independent endpoints.
type Namespace struct {
	emitter

	name   string
	server *Server
	ackID  uint64

	mu        sync.RWMutex
	sockets   map[string]*Socket
	connected map[string]*Socket

	midMu      sync.RWMutex
	middleware []Middleware

	adapterMu sync.RWMutex
	adapter   Adapter

	emitMu    sync.Mutex
	emitRooms []string
	flags     Flags
}

// NewNamespace creates a new namespace
func NewNamespace(name string, server *Server) *Namespace {
	ns := &Namespace{
		name:      name,
		server:    server,
		sockets:   make(map[string]*Socket),
		connected: make(map[string]*Socket),
		flags:     defaultFlags(),
	}

	ns.initAdapter(server.AdapterFactory())

	return ns
}

// Name returns the namespace name
func (ns *Namespace) Name() string {
	return ns.name
}

// Adapter returns the namespace's adapter.
func (ns *Namespace) Adapter() Adapter {
	ns.adapterMu.RLock()
	defer ns.adapterMu.RUnlock()
	return ns.adapter
}

func (ns *Namespace) initAdapter(factory AdapterFactory) {
	ns.adapterMu.Lock()
	ns.adapter = factory(ns)
	ns.adapterMu.Unlock()
}

// Use appends a middleware to the admission chain; returns the namespace
// for chaining.
func (ns *Namespace) Use(fn Middleware) *Namespace {
	ns.midMu.Lock()
	ns.middleware = append(ns.middleware, fn)
	ns.midMu.Unlock()
	return ns
}

// OnConnect registers a handler invoked for every admitted socket.
func (ns *Namespace) OnConnect(handler func(*Socket)) {
	ns.On("connection", func(args ...interface{}) {
		if socket, ok := args[0].(*Socket); ok {
			handler(socket)
		}
	})
}

// To targets a room for the next broadcast emit; chainable.
func (ns *Namespace) To(room string) *Namespace {
	ns.emitMu.Lock()
	defer ns.emitMu.Unlock()
	for _, r := range ns.emitRooms {
		if r == room {
			return ns
		}
	}
	ns.emitRooms = append(ns.emitRooms, room)
	return ns
}

// In is an alias for To.
func (ns *Namespace) In(room string) *Namespace {
	return ns.To(room)
}

// Volatile flags the next emit to skip sockets whose transport is not
// immediately writable.
func (ns *Namespace) Volatile() *Namespace {
	ns.emitMu.Lock()
	ns.flags.Volatile = true
	ns.emitMu.Unlock()
	return ns
}

// JSON flags the next emit to skip binary detection.
func (ns *Namespace) JSON() *Namespace {
	ns.emitMu.Lock()
	ns.flags.JSON = true
	ns.emitMu.Unlock()
	return ns
}

// Compress sets per-frame compression for the next emit.
func (ns *Namespace) Compress(compress bool) *Namespace {
	ns.emitMu.Lock()
	ns.flags.Compress = compress
	ns.emitMu.Unlock()
	return ns
}

func (ns *Namespace) takeEmitState() ([]string, Flags) {
	ns.emitMu.Lock()
	defer ns.emitMu.Unlock()
	rooms, flags := ns.emitRooms, ns.flags
	ns.emitRooms = nil
	ns.flags = defaultFlags()
	return rooms, flags
}

// Emit broadcasts an event to every connected socket of the namespace, or
// to the targeted rooms. Ack callbacks are not supported on broadcasts.
// Reserved event names fire local listeners only.
func (ns *Namespace) Emit(event string, args ...interface{}) error {
	rooms, flags := ns.takeEmitState()

	if _, reserved := namespaceEvents[event]; reserved {
		ns.emitLocal(event, args...)
		return nil
	}

	if len(args) > 0 {
		if _, ok := args[len(args)-1].(func(...interface{})); ok {
			return ErrAckOnBroadcast
		}
	}

	data := make([]interface{}, 0, len(args)+1)
	data = append(data, event)
	data = append(data, args...)

	packet := &parser.Packet{
		Type:      parser.Event,
		Namespace: ns.name,
		Data:      data,
	}
	if !flags.JSON && parser.HasBinary(data) {
		packet.Type = parser.BinaryEvent
	}

	return ns.Adapter().Broadcast(packet, &BroadcastOptions{
		Rooms: rooms,
		Flags: flags,
	})
}

// Send emits a "message" event with the given arguments.
func (ns *Namespace) Send(args ...interface{}) error {
	return ns.Emit("message", args...)
}

// Write is an alias for Send.
func (ns *Namespace) Write(args ...interface{}) error {
	return ns.Send(args...)
}

// Clients enumerates the socket IDs in the rooms targeted with To, or every
// connected socket when none are targeted. Transient rooms are consumed.
func (ns *Namespace) Clients() []string {
	rooms, _ := ns.takeEmitState()
	return ns.Adapter().Clients(rooms...)
}

// Sockets returns all admitted sockets.
func (ns *Namespace) Sockets() []*Socket {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	sockets := make([]*Socket, 0, len(ns.sockets))
	for _, socket := range ns.sockets {
		sockets = append(sockets, socket)
	}
	return sockets
}

// GetSocket retrieves a socket by ID
func (ns *Namespace) GetSocket(id string) (*Socket, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	socket, ok := ns.sockets[id]
	return socket, ok
}

// Add creates a socket for client, runs the middleware chain and, on
// success, finalizes admission: the socket is registered, connected, handed
// to onAdmit and announced through the connect and connection events. A
// middleware error aborts admission and is sent to the client as an ERROR
// packet carrying the error's Data or message.
func (ns *Namespace) Add(client *Client, onAdmit func(*Socket)) *Socket {
	socket := newSocket(ns, client)

	ns.run(socket, func(err error) {
		if err != nil {
			payload := interface{}(err.Error())
			if ed, ok := err.(ErrorData); ok {
				payload = ed.Data()
			}
			socket.packet(&parser.Packet{
				Type:      parser.Error,
				Namespace: ns.name,
				Data:      payload,
			}, defaultFlags())
			return
		}

		if client.conn.State() != stateOpen {
			return
		}

		ns.mu.Lock()
		ns.sockets[socket.id] = socket
		ns.mu.Unlock()

		socket.onconnect()
		if onAdmit != nil {
			onAdmit(socket)
		}

		ns.emitLocal("connect", socket)
		ns.emitLocal("connection", socket)
	})

	return socket
}

// run executes the middleware chain strictly in registration order. The
// first error short-circuits; done is invoked exactly once.
func (ns *Namespace) run(socket *Socket, done func(error)) {
	ns.midMu.RLock()
	chain := make([]Middleware, len(ns.middleware))
	copy(chain, ns.middleware)
	ns.midMu.RUnlock()

	var once sync.Once
	finish := func(err error) {
		once.Do(func() { done(err) })
	}

	if len(chain) == 0 {
		finish(nil)
		return
	}

	var step func(i int)
	step = func(i int) {
		chain[i](socket, func(err error) {
			if err != nil {
				finish(err)
				return
			}
			if i+1 == len(chain) {
				finish(nil)
				return
			}
			step(i + 1)
		})
	}
	step(0)
}

// remove deletes the socket from the namespace indices.
func (ns *Namespace) remove(socket *Socket) {
	ns.mu.Lock()
	delete(ns.sockets, socket.id)
	delete(ns.connected, socket.id)
	ns.mu.Unlock()
}

func (ns *Namespace) addConnected(socket *Socket) {
	ns.mu.Lock()
	ns.connected[socket.id] = socket
	ns.mu.Unlock()
}

func (ns *Namespace) delConnected(id string) {
	ns.mu.Lock()
	delete(ns.connected, id)
	ns.mu.Unlock()
}

func (ns *Namespace) connectedSocket(id string) (*Socket, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	socket, ok := ns.connected[id]
	return socket, ok
}

func (ns *Namespace) connectedIDs() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	ids := make([]string, 0, len(ns.connected))
	for id := range ns.connected {
		ids = append(ids, id)
	}
	return ids
}

func (ns *Namespace) nextAckID() uint64 {
	return atomic.AddUint64(&ns.ackID, 1) - 1
}
