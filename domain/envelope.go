package domain

import (
	"encoding/json"
	"fmt"

	"talkify/errors"

	"github.com/google/uuid"
)

// Envelope is the unit published to the broadcast bus and enqueued to
// the durable write queue: a message paired with its target room.
//
// System marks broadcast-only notifications; consumers must not
// forward those to the write queue. ExcludeConnID names the one
// connection a notification is not addressed to (the joiner or
// leaver); processes that do not host that connection ignore it.
type Envelope struct {
	RoomID        string  `json:"roomId"`
	Message       Message `json:"message"`
	System        bool    `json:"system,omitempty"`
	ExcludeConnID string  `json:"excludeConnId,omitempty"`
}

func EncodeEnvelope(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a bus or queue payload. Corrupt payloads are
// reported as ErrMalformedPayload so consumer loops can log and skip
// them without stopping.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if e.RoomID == "" || e.Message.ID == uuid.Nil {
		return Envelope{}, fmt.Errorf("%w: missing room or message id", errors.ErrMalformedPayload)
	}
	return e, nil
}
