package sio

import "github.com/pelmenek/sio/parser"

// BroadcastOptions select the targets and emission flags of one broadcast.
type BroadcastOptions struct {
	// Rooms are the target rooms; empty means every connected socket in
	// the namespace.
	Rooms []string

	// Except lists socket IDs excluded from delivery.
	Except []string

	// Flags are the emission flags in effect for this broadcast.
	Flags Flags
}

// Adapter maintains room membership for one namespace and performs
// broadcast. The in-process implementation keeps membership in memory;
// replacements may be backed by an external bus as long as they honor the
// Broadcast semantics.
type Adapter interface {
	// Add adds a socket to a room; idempotent.
	Add(socketID, room string) error

	// Del removes a socket from a room; idempotent.
	Del(socketID, room string) error

	// DelAll removes a socket from every room.
	DelAll(socketID string)

	// Broadcast sends a packet to every target selected by opts. The
	// packet is encoded once and written pre-encoded to each recipient.
	Broadcast(packet *parser.Packet, opts *BroadcastOptions) error

	// Clients enumerates socket IDs across the given rooms; with no
	// rooms, all connected sockets of the namespace.
	Clients(rooms ...string) []string

	// Close cleans up the adapter
	Close() error
}

// AdapterFactory creates the adapter for a namespace. Servers apply it to
// every namespace, existing and future, when installed.
type AdapterFactory func(ns *Namespace) Adapter
