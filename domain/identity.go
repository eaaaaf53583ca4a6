// Package domain contains core concepts of the messaging system.
// This file defines Identity, the authenticated participant attached
// to a connection at handshake time.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is an authenticated participant, independent of any single
// connection. It is resolved once by the auth collaborator and is
// immutable for the lifetime of a connection.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SystemIdentity is the fixed, well-known sender of join/leave
// notifications. Configured once per deployment.
type SystemIdentity struct {
	ID    string
	Name  string
	Email string
}

func (s SystemIdentity) Identity() Identity {
	return Identity{ID: s.ID, Name: s.Name}
}
