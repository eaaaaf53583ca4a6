package domain

// Room is a resolved reference to a named channel of communication.
// Room lifecycle (create/rename/deactivate) is managed outside the
// core; the core never mutates a Room.
type Room struct {
	ID     string
	Name   string
	Active bool
}
