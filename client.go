package sio

import (
	"log/slog"
	"sync"

	"github.com/pelmenek/sio/parser"
)

// writeOptions qualify one packet write on a client.
type writeOptions struct {
	// Volatile drops the write when the transport is not writable.
	Volatile bool

	// Compress requests per-frame compression.
	Compress bool
}

// Client demultiplexes one engine connection into its namespace sockets. It
// owns the decoder, buffers CONNECTs that arrive before the default
// namespace is admitted, and fans the transport close out to every socket.
type Client struct {
	server  *Server
	conn    Conn
	id      string
	decoder parser.Decoder

	mu            sync.Mutex
	sockets       map[string]*Socket
	namespaces    map[string]*Socket
	connectBuffer []string
	destroyed     bool
}

func newClient(server *Server, conn Conn) *Client {
	c := &Client{
		server:     server,
		conn:       conn,
		id:         conn.ID(),
		decoder:    server.parser.NewDecoder(),
		sockets:    make(map[string]*Socket),
		namespaces: make(map[string]*Socket),
	}

	c.decoder.OnDecoded(c.ondecoded)
	conn.OnMessage(c.ondata)
	conn.OnClose(c.onclose)

	return c
}

// ID returns the engine-assigned connection id.
func (c *Client) ID() string {
	return c.id
}

// connect admits the client to the named namespace. Unknown namespaces are
// answered with an ERROR packet. CONNECTs for subsidiary namespaces that
// arrive before the default namespace is admitted are buffered and replayed
// in arrival order once it is.
func (c *Client) connect(name string) {
	nsp, ok := c.server.namespace(name)
	if !ok {
		c.packet(&parser.Packet{
			Type:      parser.Error,
			Namespace: name,
			Data:      "Invalid namespace",
		}, writeOptions{Compress: true})
		return
	}

	if name != "/" {
		c.mu.Lock()
		if _, admitted := c.namespaces["/"]; !admitted {
			c.connectBuffer = append(c.connectBuffer, name)
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}

	nsp.Add(c, func(socket *Socket) {
		c.mu.Lock()
		c.sockets[socket.id] = socket
		c.namespaces[nsp.name] = socket

		var buffered []string
		if nsp.name == "/" {
			buffered = c.connectBuffer
			c.connectBuffer = nil
		}
		c.mu.Unlock()

		for _, pending := range buffered {
			c.connect(pending)
		}
	})
}

// packet encodes and writes one packet; drops silently when the transport
// is closed, or unwritable under the volatile flag.
func (c *Client) packet(p *parser.Packet, opts writeOptions) {
	frames, err := c.server.parser.Encode(p)
	if err != nil {
		slog.Error("packet encode failed", "client", c.id, "error", err)
		return
	}
	c.writeFrames(frames, opts)
}

// writeFrames writes pre-encoded frames through the transport.
func (c *Client) writeFrames(frames []parser.Frame, opts writeOptions) {
	if c.conn.State() != stateOpen {
		return
	}
	if opts.Volatile && !c.conn.Writable() {
		return
	}
	for _, f := range frames {
		c.conn.Send(f.Data, f.Binary, opts.Compress)
	}
}

// ondata feeds one transport frame to the decoder.
func (c *Client) ondata(data []byte, binary bool) {
	if err := c.decoder.Add(parser.Frame{Data: data, Binary: binary}); err != nil {
		c.onerror(err)
	}
}

// ondecoded routes a whole packet: CONNECTs open namespaces, everything
// else dispatches to the namespace's socket. Packets for namespaces the
// client is not connected to are dropped.
func (c *Client) ondecoded(p *parser.Packet) {
	if p.Type == parser.Connect {
		c.connect(p.Namespace)
		return
	}

	c.mu.Lock()
	socket := c.namespaces[p.Namespace]
	c.mu.Unlock()

	if socket != nil {
		socket.onpacket(p)
	}
}

// remove deletes the socket from the client indices.
func (c *Client) remove(socket *Socket) {
	c.mu.Lock()
	delete(c.sockets, socket.id)
	delete(c.namespaces, socket.nsp.name)
	c.mu.Unlock()
}

// disconnect cleanly disconnects every socket, then closes the transport.
func (c *Client) disconnect() {
	for _, socket := range c.snapshot() {
		socket.Disconnect(false)
	}
	c.close()
}

// close tears down the transport; the close notification fans out through
// onclose.
func (c *Client) close() {
	if c.conn.State() == stateOpen {
		c.conn.Close("forced server close")
	}
}

// onerror forwards a protocol or transport error to every socket, then
// closes the connection.
func (c *Client) onerror(err error) {
	for _, socket := range c.snapshot() {
		socket.onerror(err)
	}
	c.conn.Close("client error")
}

// onclose releases the client: every socket observes the reason, the
// indices empty and the decoder drops partial state. Idempotent.
func (c *Client) onclose(reason string) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	sockets := make([]*Socket, 0, len(c.sockets))
	for _, socket := range c.sockets {
		sockets = append(sockets, socket)
	}
	c.sockets = make(map[string]*Socket)
	c.namespaces = make(map[string]*Socket)
	c.connectBuffer = nil
	c.mu.Unlock()

	for _, socket := range sockets {
		socket.onclose(reason)
	}

	c.decoder.Destroy()
}

func (c *Client) snapshot() []*Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	sockets := make([]*Socket, 0, len(c.sockets))
	for _, socket := range c.sockets {
		sockets = append(sockets, socket)
	}
	return sockets
}
