// Package server is the websocket transport: handshake
// authentication, the per-connection read/write pumps, and the JSON
// event protocol between client and core.
package server

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"talkify/errors"
)

// Client to core events.
const (
	EventRoomJoin       = "room.join"
	EventRoomLeave      = "room.leave"
	EventRoomSwitch     = "room.switch"
	EventMessageSend    = "message.send"
	EventHistoryRequest = "history.request"
)

// Core to client events.
const (
	EventMessageDelivered = "message.delivered"
	EventHistoryResponse  = "history.response"
	EventError            = "error"
)

var validate = validator.New()

// ClientEvent is one inbound frame. Data is decoded per event type.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is one outbound frame.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type JoinPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type LeavePayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type SwitchPayload struct {
	FromRoomID string `json:"fromRoomId" validate:"required"`
	ToRoomID   string `json:"toRoomId" validate:"required"`
}

type SendPayload struct {
	RoomID string `json:"roomId" validate:"required"`
	Body   string `json:"body" validate:"required"`
}

type HistoryPayload struct {
	RoomID string `json:"roomId" validate:"required"`
	Limit  int    `json:"limit" validate:"gte=0"`
}

// ErrorPayload is the private error event reported to the offending
// connection only. The connection stays alive.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodePayload unmarshals and validates an event payload. Failures
// surface as ErrInvalidInput, reported privately, never broadcast.
func decodePayload(data json.RawMessage, dest any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", errors.ErrInvalidInput)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if err := validate.Struct(dest); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}
