// Package sio provides a Socket.IO server implementation in Go.
//
// The package multiplexes each WebSocket connection into named namespaces,
// groups sockets into rooms for targeted broadcasting, correlates event
// acknowledgements, and admits sockets through per-namespace middleware
// chains. The wire codec lives in the parser subpackage and the transport
// in engineio.
//
// # Quick Start
//
//	server := sio.NewServer(nil)
//
//	server.OnConnect(func(socket *sio.Socket) {
//	    log.Printf("Client connected: %s", socket.ID())
//
//	    socket.On("message", func(data ...interface{}) {
//	        log.Printf("Received: %v", data)
//	        socket.Emit("response", "Message received!")
//	    })
//
//	    socket.OnDisconnect(func(reason string) {
//	        log.Printf("Client disconnected: %s", reason)
//	    })
//	})
//
//	http.Handle("/socket.io/", server)
//	http.ListenAndServe(":3000", nil)
//
// # Namespaces
//
// Namespaces provide logical separation of concerns. Each namespace has its
// own event handlers, middleware chain and rooms. A client must be admitted
// to the default namespace before any other namespace on the same
// connection is exposed; earlier connection requests are buffered and
// replayed in arrival order.
//
//	// Default namespace "/"
//	server.OnConnect(func(socket *sio.Socket) {
//	    // Handle connection
//	})
//
//	// Custom namespace with admission middleware
//	adminNs := server.Of("/admin")
//	adminNs.Use(func(socket *sio.Socket, next func(error)) {
//	    if socket.Handshake().Query.Get("token") == "" {
//	        next(errors.New("unauthorized"))
//	        return
//	    }
//	    next(nil)
//	})
//	adminNs.OnConnect(func(socket *sio.Socket) {
//	    // Handle admin connection
//	})
//
// # Rooms
//
// Rooms allow you to group sockets for targeted broadcasting. Every socket
// automatically joins the room named after its own id.
//
//	socket.Join("room1")
//	server.To("room1").Emit("news", "Hello room!")
//	socket.Leave("room1")
//
// # Event Acknowledgments
//
// Request an acknowledgment from the client by passing a trailing callback:
//
//	socket.Emit("question", "What's your name?", func(reply ...interface{}) {
//	    log.Printf("Client answered: %v", reply)
//	})
//
// Handle acknowledgment requests from clients:
//
//	socket.On("ping", func(data ...interface{}) {
//	    // Last argument is the ack function if the client requested one
//	    if len(data) > 0 {
//	        if ackFn, ok := data[len(data)-1].(func(...interface{})); ok {
//	            ackFn("pong")
//	        }
//	    }
//	})
//
// Acks are not available on broadcasts; Emit returns ErrAckOnBroadcast.
//
// # Broadcasting
//
// Broadcast to all clients or specific rooms. Target rooms and emission
// flags apply to the next emit only.
//
//	// To all clients in default namespace
//	server.Emit("broadcast", "Hello everyone!")
//
//	// To a room, from a socket (the sender is excluded)
//	socket.To("room1").Emit("news", "Hello others!")
//
//	// Drop instead of queueing on a congested connection
//	socket.Volatile().Emit("tick", seq)
//
// # Configuration
//
//	config := &sio.Config{
//	    PingInterval: 25000, // 25 seconds
//	    PingTimeout:  20000, // 20 seconds
//	    MaxPayload:   1000000, // 1MB
//	    Parser:       parser.Default,
//	}
//	server := sio.NewServer(config)
//
// # Thread Safety
//
// All operations are goroutine-safe. Packets of one connection are decoded
// and dispatched in arrival order on that connection's read loop, so
// handlers for a given socket never interleave. Chained targeting such as
// socket.To("r").Emit(...) must complete synchronously; transient rooms and
// flags always reset when the emit finishes.
package sio
