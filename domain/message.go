// Package domain contains core concepts of the messaging system.
// This file defines Message events and related rules.
// Messages are immutable and their id is assigned at acceptance time.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event.
//
// The id is a UUIDv7 assigned by the dispatcher, not by the store, so
// the same id travels unchanged through the bus, the queue and the
// store. UUIDv7 ids sort chronologically, which keeps deduplication
// and client-side reconciliation independent of store ordering.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Sender    Identity  `json:"sender"`
	RoomID    string    `json:"roomId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is reserved for future edit support. Unused by
	// current operations.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMessage builds an accepted chat message with a freshly assigned
// time-ordered id.
func NewMessage(sender Identity, roomID, body string) (Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Message{}, err
	}
	now := time.Now().UTC()
	return Message{
		ID:        id,
		Sender:    sender,
		RoomID:    roomID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsSystem reports whether the message was emitted by the system
// identity. System messages are broadcast-only and never persisted.
func (m Message) IsSystem(sys SystemIdentity) bool {
	return m.Sender.ID == sys.ID
}
