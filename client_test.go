package sio

import (
	"testing"

	"github.com/pelmenek/sio/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderErrorClosesClient(t *testing.T) {
	server := NewServer(nil)
	client, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	var errs []interface{}
	socket.On("error", func(args ...interface{}) { errs = append(errs, args...) })

	var reason string
	socket.OnDisconnect(func(r string) { reason = r })

	// A malformed frame is a protocol violation.
	conn.onMessage([]byte("garbage"), false)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].(error), parser.ErrBadPacket)
	assert.Equal(t, "client error", reason)
	assert.Equal(t, "closed", conn.State())
	assert.Empty(t, client.sockets)
}

func TestPacketsDroppedAfterClose(t *testing.T) {
	server := NewServer(nil)
	client, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	conn.Close("transport close")
	conn.reset()

	client.packet(&parser.Packet{Type: parser.Event, Namespace: "/", Data: []interface{}{"x"}}, writeOptions{Compress: true})
	socket.Emit("x")

	assert.Empty(t, conn.sent)
}

func TestClientCloseIdempotent(t *testing.T) {
	server := NewServer(nil)
	client, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	var count int
	socket.OnDisconnect(func(string) { count++ })

	conn.Close("transport close")
	client.onclose("again")

	assert.Equal(t, 1, count)
}

func TestPacketsForUnknownNamespaceDropped(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	var fired bool
	socket.On("ev", func(...interface{}) { fired = true })

	// An EVENT for a namespace this client never connected to.
	conn.receive(t, &parser.Packet{Type: parser.Event, Namespace: "/ghost", Data: []interface{}{"ev"}})

	assert.False(t, fired)
	assert.Equal(t, stateOpen, conn.State())
}

func TestClientDisconnectClosesEverything(t *testing.T) {
	server := NewServer(nil)
	server.Of("/a")
	client, conn := connectClient(t, server, "abc")
	conn.receive(t, &parser.Packet{Type: parser.Connect, Namespace: "/a"})

	reasons := make(map[string]string)
	for _, socket := range client.snapshot() {
		socket := socket
		socket.OnDisconnect(func(r string) { reasons[socket.ID()] = r })
	}

	client.disconnect()

	// Sockets disconnect cleanly before the transport closes.
	assert.Equal(t, "server namespace disconnect", reasons["/#abc"])
	assert.Equal(t, "server namespace disconnect", reasons["/a#abc"])
	assert.Equal(t, "closed", conn.State())
	assert.Empty(t, client.sockets)
}

func TestConnectBufferEmptyInvariant(t *testing.T) {
	server := NewServer(nil)
	server.Of("/chat")
	client, conn := connectClient(t, server, "abc")

	// Once the default namespace is connected, further CONNECTs admit
	// immediately and never touch the buffer.
	conn.receive(t, &parser.Packet{Type: parser.Connect, Namespace: "/chat"})
	assert.Empty(t, client.connectBuffer)

	_, ok := client.namespaces["/chat"]
	assert.True(t, ok)
}
