package sio

import (
	"testing"

	"github.com/pelmenek/sio/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcknowledgedEvent(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	conn.reset()

	var replies []interface{}
	require.NoError(t, socket.Emit("ping", 1, 2, func(args ...interface{}) {
		replies = append(replies, args...)
	}))

	packets := conn.packets(t)
	require.Len(t, packets, 1)
	assert.Equal(t, parser.Event, packets[0].Type)
	assert.Equal(t, []interface{}{"ping", float64(1), float64(2)}, packets[0].Data)
	require.NotNil(t, packets[0].ID)
	assert.Equal(t, uint64(0), *packets[0].ID)

	// The reply routes back to the callback exactly once.
	conn.receive(t, &parser.Packet{
		Type:      parser.Ack,
		Namespace: "/",
		ID:        parser.NewID(0),
		Data:      []interface{}{"pong"},
	})
	assert.Equal(t, []interface{}{"pong"}, replies)
	assert.Empty(t, socket.acks)

	// A duplicate reply is dropped.
	conn.receive(t, &parser.Packet{
		Type:      parser.Ack,
		Namespace: "/",
		ID:        parser.NewID(0),
		Data:      []interface{}{"pong"},
	})
	assert.Equal(t, []interface{}{"pong"}, replies)
}

func TestInboundEventWithAck(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	socket.On("sum", func(args ...interface{}) {
		require.Len(t, args, 3)
		ack, ok := args[2].(func(...interface{}))
		require.True(t, ok)
		ack(args[0].(float64) + args[1].(float64))
		// A second invocation must not produce another packet.
		ack("again")
	})
	conn.reset()

	conn.receive(t, &parser.Packet{
		Type:      parser.Event,
		Namespace: "/",
		ID:        parser.NewID(12),
		Data:      []interface{}{"sum", 2, 3},
	})

	packets := conn.packets(t)
	require.Len(t, packets, 1)
	assert.Equal(t, parser.Ack, packets[0].Type)
	require.NotNil(t, packets[0].ID)
	assert.Equal(t, uint64(12), *packets[0].ID)
	assert.Equal(t, []interface{}{float64(5)}, packets[0].Data)
}

func TestRoomBroadcastWithExclusion(t *testing.T) {
	server := NewServer(nil)
	_, connA := connectClient(t, server, "a")
	_, connB := connectClient(t, server, "b")
	_, connC := connectClient(t, server, "c")

	a := defaultSocket(t, server, "a")
	b := defaultSocket(t, server, "b")
	c := defaultSocket(t, server, "c")

	require.NoError(t, a.Join("r"))
	require.NoError(t, b.Join("r"))
	require.NoError(t, c.Join("r"))

	connA.reset()
	connB.reset()
	connC.reset()

	require.NoError(t, a.To("r").Emit("x", 42))

	for _, conn := range []*fakeConn{connB, connC} {
		packets := conn.packets(t)
		require.Len(t, packets, 1)
		assert.Equal(t, parser.Event, packets[0].Type)
		assert.Equal(t, []interface{}{"x", float64(42)}, packets[0].Data)
	}
	assert.Empty(t, connA.sent)
	assert.Empty(t, a.emitRooms)
}

func TestBroadcastFlagExcludesSender(t *testing.T) {
	server := NewServer(nil)
	_, connA := connectClient(t, server, "a")
	_, connB := connectClient(t, server, "b")

	a := defaultSocket(t, server, "a")
	connA.reset()
	connB.reset()

	require.NoError(t, a.Broadcast().Emit("x"))

	assert.Empty(t, connA.sent)
	assert.Len(t, connB.packets(t), 1)
}

func TestAckOnBroadcastRejected(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "a")
	socket := defaultSocket(t, server, "a")
	conn.reset()

	err := socket.To("r").Emit("x", func(...interface{}) {})
	assert.ErrorIs(t, err, ErrAckOnBroadcast)
	assert.Empty(t, conn.sent)
	assert.Empty(t, socket.emitRooms)
}

func TestVolatileDrop(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	conn.reset()

	conn.writable = false
	require.NoError(t, socket.Volatile().Emit("tick"))

	assert.Empty(t, conn.sent)
	assert.Equal(t, defaultFlags(), socket.flags)

	// Writable again: packets flow.
	conn.writable = true
	require.NoError(t, socket.Emit("tick"))
	assert.Len(t, conn.packets(t), 1)
}

func TestFlagsResetAfterEmit(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	conn.reset()

	require.NoError(t, socket.Compress(false).JSON().Emit("x"))

	require.Len(t, conn.sent, 1)
	assert.False(t, conn.sent[0].compress)
	assert.Equal(t, defaultFlags(), socket.flags)

	require.NoError(t, socket.Emit("y"))
	require.Len(t, conn.sent, 2)
	assert.True(t, conn.sent[1].compress)
}

func TestReservedEventsStayLocal(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	conn.reset()

	var fired bool
	socket.On("error", func(args ...interface{}) { fired = true })
	require.NoError(t, socket.Emit("error", "local only"))

	assert.True(t, fired)
	assert.Empty(t, conn.sent)
}

func TestWriteForwardsArguments(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	conn.reset()

	require.NoError(t, socket.Write("a", "b"))

	packets := conn.packets(t)
	require.Len(t, packets, 1)
	assert.Equal(t, []interface{}{"message", "a", "b"}, packets[0].Data)
}

func TestBinaryEmitUsesBinaryEvent(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	conn.reset()

	require.NoError(t, socket.Emit("blob", []byte{1, 2, 3}))

	require.Len(t, conn.sent, 2)
	assert.False(t, conn.sent[0].binary)
	assert.True(t, conn.sent[1].binary)

	packets := conn.packets(t)
	require.Len(t, packets, 1)
	assert.Equal(t, parser.BinaryEvent, packets[0].Type)
}

func TestJoinLeaveRooms(t *testing.T) {
	server := NewServer(nil)
	_, _ = connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	adapter := server.Of("/").Adapter()

	require.NoError(t, socket.Join("r1"))
	require.NoError(t, socket.Join("r1")) // no-op
	require.NoError(t, socket.Join("r2"))
	assert.ElementsMatch(t, []string{"/#abc", "r1", "r2"}, socket.Rooms())
	assert.Equal(t, []string{"/#abc"}, adapter.Clients("r1"))

	require.NoError(t, socket.Leave("r1"))
	assert.ElementsMatch(t, []string{"/#abc", "r2"}, socket.Rooms())
	assert.Empty(t, adapter.Clients("r1"))

	socket.LeaveAll()
	assert.Empty(t, socket.Rooms())
	assert.Empty(t, adapter.Clients("r2"))
}

func TestServerNamespaceDisconnect(t *testing.T) {
	server := NewServer(nil)
	client, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	conn.reset()

	var reason string
	socket.OnDisconnect(func(r string) { reason = r })

	socket.Disconnect(false)

	packets := conn.packets(t)
	require.Len(t, packets, 1)
	assert.Equal(t, parser.Disconnect, packets[0].Type)
	assert.Equal(t, "server namespace disconnect", reason)
	assert.False(t, socket.Connected())
	assert.Empty(t, client.sockets)

	// The transport stays open for other namespaces.
	assert.Equal(t, stateOpen, conn.State())

	// Repeat disconnects are no-ops.
	socket.Disconnect(false)
	assert.Len(t, conn.packets(t), 1)
}

func TestDisconnectWithCloseTearsDownClient(t *testing.T) {
	server := NewServer(nil)
	server.Of("/a")
	client, conn := connectClient(t, server, "abc")
	conn.receive(t, &parser.Packet{Type: parser.Connect, Namespace: "/a"})
	require.Len(t, client.snapshot(), 2)

	defaultSocket(t, server, "abc").Disconnect(true)

	assert.Equal(t, "closed", conn.State())
	assert.Empty(t, client.sockets)
}

func TestClientNamespaceDisconnect(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	var reason string
	socket.OnDisconnect(func(r string) { reason = r })

	conn.receive(t, &parser.Packet{Type: parser.Disconnect, Namespace: "/"})

	assert.Equal(t, "client namespace disconnect", reason)
	assert.False(t, socket.Connected())
}

func TestOncloseIdempotent(t *testing.T) {
	server := NewServer(nil)
	_, _ = connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	var count int
	socket.OnDisconnect(func(string) { count++ })

	socket.onclose("first")
	socket.onclose("second")
	socket.Disconnect(false)

	assert.Equal(t, 1, count)
}

func TestPendingAcksDroppedOnClose(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	var called bool
	require.NoError(t, socket.Emit("q", func(...interface{}) { called = true }))
	require.Len(t, socket.acks, 1)

	socket.onclose("transport close")
	assert.Empty(t, socket.acks)

	// A late reply finds nothing to invoke.
	conn.receive(t, &parser.Packet{Type: parser.Ack, Namespace: "/", ID: parser.NewID(0)})
	assert.False(t, called)
}

func TestConnectedSetTracksState(t *testing.T) {
	server := NewServer(nil)
	_, _ = connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")
	ns := server.Of("/")

	_, inConnected := ns.connectedSocket(socket.ID())
	assert.True(t, inConnected)
	assert.True(t, socket.Connected())

	socket.onclose("gone")
	_, inConnected = ns.connectedSocket(socket.ID())
	assert.False(t, inConnected)
	assert.False(t, socket.Connected())
}

func TestInboundErrorPacketFiresErrorEvent(t *testing.T) {
	server := NewServer(nil)
	_, conn := connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	var got interface{}
	socket.On("error", func(args ...interface{}) { got = args[0] })

	conn.receive(t, &parser.Packet{Type: parser.Error, Namespace: "/", Data: "boom"})
	assert.Equal(t, "boom", got)
}

func TestHandshakeSnapshot(t *testing.T) {
	server := NewServer(nil)
	_, _ = connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	h := socket.Handshake()
	require.NotNil(t, h)
	assert.Equal(t, "t0", h.Query.Get("token"))
	assert.Equal(t, "websocket", h.Query.Get("transport"))
	assert.NotZero(t, h.Issued)
	assert.NotEmpty(t, h.Address)
}

func TestSetGet(t *testing.T) {
	server := NewServer(nil)
	_, _ = connectClient(t, server, "abc")
	socket := defaultSocket(t, server, "abc")

	socket.Set("user", "alice")
	v, ok := socket.Get("user")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	_, ok = socket.Get("missing")
	assert.False(t, ok)
}
