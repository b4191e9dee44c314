package sio

import (
	"sort"
	"sync"

	"github.com/pelmenek/sio/parser"
)

// MemoryAdapter is an in-memory implementation of the Adapter interface
type MemoryAdapter struct {
	rooms       map[string]map[string]bool // room -> socketIDs
	socketRooms map[string]map[string]bool // socketID -> rooms
	mu          sync.RWMutex
	namespace   *Namespace
}

// NewMemoryAdapter creates a new in-memory adapter
func NewMemoryAdapter(namespace *Namespace) Adapter {
	return &MemoryAdapter{
		rooms:       make(map[string]map[string]bool),
		socketRooms: make(map[string]map[string]bool),
		namespace:   namespace,
	}
}

// Add adds a socket to a room
func (a *MemoryAdapter) Add(socketID, room string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rooms[room] == nil {
		a.rooms[room] = make(map[string]bool)
	}
	a.rooms[room][socketID] = true

	if a.socketRooms[socketID] == nil {
		a.socketRooms[socketID] = make(map[string]bool)
	}
	a.socketRooms[socketID][room] = true

	return nil
}

// Del removes a socket from a room
func (a *MemoryAdapter) Del(socketID, room string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.del(socketID, room)
	return nil
}

func (a *MemoryAdapter) del(socketID, room string) {
	if a.rooms[room] != nil {
		delete(a.rooms[room], socketID)
		if len(a.rooms[room]) == 0 {
			delete(a.rooms, room)
		}
	}

	if a.socketRooms[socketID] != nil {
		delete(a.socketRooms[socketID], room)
		if len(a.socketRooms[socketID]) == 0 {
			delete(a.socketRooms, socketID)
		}
	}
}

// DelAll removes a socket from all rooms
func (a *MemoryAdapter) DelAll(socketID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for room := range a.socketRooms[socketID] {
		if a.rooms[room] != nil {
			delete(a.rooms[room], socketID)
			if len(a.rooms[room]) == 0 {
				delete(a.rooms, room)
			}
		}
	}

	delete(a.socketRooms, socketID)
}

// Clients enumerates socket IDs in the given rooms, or every connected
// socket of the namespace when no rooms are given.
func (a *MemoryAdapter) Clients(rooms ...string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []string
	if len(rooms) == 0 {
		result = a.namespace.connectedIDs()
	} else {
		seen := make(map[string]bool)
		for _, room := range rooms {
			for socketID := range a.rooms[room] {
				if !seen[socketID] {
					seen[socketID] = true
					result = append(result, socketID)
				}
			}
		}
	}

	sort.Strings(result)
	return result
}

// Broadcast sends a packet to all selected targets, encoding it once and
// writing the frames pre-encoded through each target's client.
func (a *MemoryAdapter) Broadcast(packet *parser.Packet, opts *BroadcastOptions) error {
	if opts == nil {
		opts = &BroadcastOptions{}
	}

	excluded := make(map[string]bool, len(opts.Except))
	for _, sid := range opts.Except {
		excluded[sid] = true
	}

	a.mu.RLock()
	targets := make(map[string]bool)
	if len(opts.Rooms) == 0 {
		for _, sid := range a.namespace.connectedIDs() {
			if !excluded[sid] {
				targets[sid] = true
			}
		}
	} else {
		for _, room := range opts.Rooms {
			for socketID := range a.rooms[room] {
				if !excluded[socketID] {
					targets[socketID] = true
				}
			}
		}
	}
	a.mu.RUnlock()

	frames, err := a.namespace.server.parser.Encode(packet)
	if err != nil {
		return err
	}

	for socketID := range targets {
		socket, ok := a.namespace.connectedSocket(socketID)
		if !ok {
			continue
		}
		socket.client.writeFrames(frames, writeOptions{
			Volatile: opts.Flags.Volatile,
			Compress: opts.Flags.Compress,
		})
	}

	return nil
}

// Close cleans up the adapter
func (a *MemoryAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rooms = make(map[string]map[string]bool)
	a.socketRooms = make(map[string]map[string]bool)

	return nil
}
