package sio

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pelmenek/sio/parser"
	"github.com/stretchr/testify/require"
)

// sentFrame records one frame written through a fake connection.
type sentFrame struct {
	data     []byte
	binary   bool
	compress bool
}

// fakeConn is an in-memory Conn used to drive the core without a network.
type fakeConn struct {
	id       string
	state    string
	writable bool
	request  *http.Request

	sent      []sentFrame
	onMessage func(data []byte, binary bool)
	onClose   func(reason string)
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:       id,
		state:    stateOpen,
		writable: true,
		request:  httptest.NewRequest(http.MethodGet, "/socket.io/?transport=websocket&token=t0", nil),
	}
}

func (f *fakeConn) ID() string             { return f.id }
func (f *fakeConn) Request() *http.Request { return f.request }
func (f *fakeConn) State() string          { return f.state }
func (f *fakeConn) Writable() bool         { return f.writable }

func (f *fakeConn) Send(data []byte, binary, compress bool) error {
	f.sent = append(f.sent, sentFrame{data: data, binary: binary, compress: compress})
	return nil
}

func (f *fakeConn) OnMessage(fn func(data []byte, binary bool)) { f.onMessage = fn }
func (f *fakeConn) OnClose(fn func(reason string))              { f.onClose = fn }

func (f *fakeConn) Close(reason string) {
	if f.state != stateOpen {
		return
	}
	f.state = "closed"
	if f.onClose != nil {
		f.onClose(reason)
	}
}

// receive feeds a client-side packet into the connection as wire frames.
func (f *fakeConn) receive(t *testing.T, p *parser.Packet) {
	t.Helper()
	frames, err := parser.Default.Encode(p)
	require.NoError(t, err)
	for _, fr := range frames {
		f.onMessage(fr.Data, fr.Binary)
	}
}

// packets decodes every frame sent so far.
func (f *fakeConn) packets(t *testing.T) []*parser.Packet {
	t.Helper()
	dec := parser.Default.NewDecoder()
	var out []*parser.Packet
	dec.OnDecoded(func(p *parser.Packet) { out = append(out, p) })
	for _, fr := range f.sent {
		require.NoError(t, dec.Add(parser.Frame{Data: fr.data, Binary: fr.binary}))
	}
	return out
}

func (f *fakeConn) reset() {
	f.sent = nil
}

// connectClient attaches a fake connection to the server and admits it to
// the default namespace.
func connectClient(t *testing.T, server *Server, id string) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn(id)
	client := newClient(server, conn)
	client.connect("/")
	return client, conn
}

// defaultSocket fetches the client's default-namespace socket.
func defaultSocket(t *testing.T, server *Server, id string) *Socket {
	t.Helper()
	socket, ok := server.Of("/").GetSocket("/#" + id)
	require.True(t, ok)
	return socket
}
