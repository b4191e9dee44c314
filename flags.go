package sio

// Flags modify the next emission and reset once it completes.
type Flags struct {
	// JSON marks the emission as plain-JSON; binary detection is skipped.
	JSON bool

	// Volatile drops the packet instead of queueing when the transport
	// is not immediately writable.
	Volatile bool

	// Broadcast redirects a socket-level emit through the adapter even
	// without target rooms.
	Broadcast bool

	// Compress requests per-frame compression on the transport.
	Compress bool
}

func defaultFlags() Flags {
	return Flags{Compress: true}
}
