package domain

import "fmt"

// Join/leave notifications are regular messages attributed to the
// system identity. They are informational, not part of room history.

func NewJoinNotice(sys SystemIdentity, roomID, displayName string) (Message, error) {
	return NewMessage(sys.Identity(), roomID, fmt.Sprintf("%s has joined the chat.", displayName))
}

func NewLeaveNotice(sys SystemIdentity, roomID, displayName string) (Message, error) {
	return NewMessage(sys.Identity(), roomID, fmt.Sprintf("%s has left the chat.", displayName))
}
