// Package runtime hosts the in-process core: connection registry,
// session manager, dispatcher, dedup cache and history service. It
// orchestrates delivery without containing transport or storage
// details.
package runtime

import (
	"sync"

	"talkify/contract"
	"talkify/domain"
)

type connection struct {
	identity domain.Identity
	sink     contract.EventSink
	roomID   string // empty while unjoined
}

// Registry tracks identity to connection mappings and room
// membership for this process. It is one of the two shared mutable
// structures of the core and is safe for concurrent use.
//
// A connection belongs to at most one room at a time; switching rooms
// leaves the old room first.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*connection // connID -> connection
	identities  map[string]string      // identityID -> connID
	roomMembers map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*connection),
		identities:  make(map[string]string),
		roomMembers: make(map[string]map[string]struct{}),
	}
}

// Register records an authenticated connection. The identity is bound
// for the lifetime of the connection.
func (r *Registry) Register(connID string, identity domain.Identity, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[connID] = &connection{identity: identity, sink: sink}
	r.identities[identity.ID] = connID
}

// Unregister removes a connection and its room membership. Safe to
// call multiple times.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return
	}
	if conn.roomID != "" {
		r.removeMember(conn.roomID, connID)
	}
	delete(r.identities, conn.identity.ID)
	delete(r.connections, connID)
}

// Join records the connection as a member of roomID and returns the
// room it previously belonged to, if any. The caller is responsible
// for emitting the corresponding leave before acting on the join.
// Joining the room the connection is already in is a no-op and
// returns roomID itself, so callers can tell re-join from a fresh
// join and skip the presence notification.
func (r *Registry) Join(connID, roomID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return "", errUnknownConnection(connID)
	}

	previous := conn.roomID
	if previous == roomID {
		return previous, nil
	}
	if previous != "" {
		r.removeMember(previous, connID)
	}

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(map[string]struct{})
	}
	r.roomMembers[roomID][connID] = struct{}{}
	conn.roomID = roomID
	return previous, nil
}

// Leave removes room membership and reports whether the connection
// was actually a member. Leaving a room you are not in is a no-op.
func (r *Registry) Leave(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok || conn.roomID != roomID {
		return false
	}
	r.removeMember(roomID, connID)
	conn.roomID = ""
	return true
}

func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connID]
	if !ok || conn.roomID == "" {
		return "", false
	}
	return conn.roomID, true
}

func (r *Registry) IdentityOf(connID string) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connID]
	if !ok {
		return domain.Identity{}, false
	}
	return conn.identity, true
}

func (r *Registry) IsOnline(identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.identities[identityID]
	return ok
}

func (r *Registry) ConnectionFor(identityID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.identities[identityID]
	return connID, ok
}

// SinksForRoom retrieves the delivery sinks of every member of a room
// on this process, optionally excluding one connection (the sender of
// a notification never receives it).
// Returns nil if the room has no local members.
func (r *Registry) SinksForRoom(roomID, excludeConnID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connID := range members {
		if connID == excludeConnID {
			continue
		}
		if conn, exists := r.connections[connID]; exists {
			sinks = append(sinks, conn.sink)
		}
	}
	return sinks
}

// removeMember deletes a membership entry and drops empty room sets
// to prevent the map growing over time. Caller holds the lock.
func (r *Registry) removeMember(roomID, connID string) {
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
}
