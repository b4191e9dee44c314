package sio

import "net/http"

// stateOpen is the Conn state under which writes are attempted.
const stateOpen = "open"

// Conn is the engine transport consumed by a Client: a framed, ordered,
// full-duplex channel established elsewhere. *engineio.Session satisfies it.
type Conn interface {
	// ID returns the transport-assigned connection id.
	ID() string

	// Request returns the HTTP request the connection was established with.
	Request() *http.Request

	// State reports "open" while the connection is usable.
	State() string

	// Writable reports whether a send would be accepted without blocking,
	// used to decide whether volatile packets are worth writing.
	Writable() bool

	// Send writes one message frame.
	Send(data []byte, binary, compress bool) error

	// OnMessage registers the inbound frame handler.
	OnMessage(fn func(data []byte, binary bool))

	// OnClose registers the close-notification handler.
	OnClose(fn func(reason string))

	// Close tears the connection down.
	Close(reason string)
}
