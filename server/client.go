package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"talkify/domain"
	"talkify/errors"
	"talkify/services"
)

// Client is one live websocket connection bound to exactly one
// authenticated identity. It is the EventSink the registry hands out
// for this connection.
//
// All inbound events are processed by a single read loop, so
// per-connection operations keep their arrival order. The outbound
// pump owns all writes to the socket.
type Client struct {
	id       string
	identity domain.Identity
	conn     *websocket.Conn
	service  services.IChatService
	send     chan ServerEvent
	done     chan struct{} // closed when the session ends; send never is
	log      *slog.Logger

	pongWait  time.Duration
	writeWait time.Duration
	readLimit int64
}

func NewClient(id string, identity domain.Identity, conn *websocket.Conn,
	service services.IChatService, log *slog.Logger,
	pongWait, writeWait time.Duration, readLimit int64, sendBuffer int) *Client {
	return &Client{
		id:        id,
		identity:  identity,
		conn:      conn,
		service:   service,
		send:      make(chan ServerEvent, sendBuffer),
		done:      make(chan struct{}),
		log:       log.With("conn", id, "user", identity.ID),
		pongWait:  pongWait,
		writeWait: writeWait,
		readLimit: readLimit,
	}
}

func (c *Client) ID() string { return c.id }

// Consume implements contract.EventSink: it hands a message to the
// outbound pump. A connection whose buffer is full is considered slow
// and the delivery is dropped rather than stalling the fan-out of the
// whole room. Fan-out snapshots sinks before delivering, so Consume
// may race the session teardown; a closed session reports an error
// instead of panicking the caller.
func (c *Client) Consume(ctx context.Context, m domain.Message) error {
	select {
	case <-c.done:
		return fmt.Errorf("delivery to closed connection %s", c.id)
	default:
	}

	event := ServerEvent{Event: EventMessageDelivered, Data: m}
	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return fmt.Errorf("delivery to closed connection %s", c.id)
	case <-ctx.Done():
		return fmt.Errorf("delivery to connection %s: %w", c.id, ctx.Err())
	}
}

// ReadPump processes inbound events one at a time until the transport
// drops. It owns the disconnect transition: when it returns, the
// session is closed and the registry entry removed.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.service.Disconnect(ctx, c.id)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Connection dropped", "error", err)
			}
			return
		}

		var event ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			c.replyError(fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
			continue
		}
		c.handle(ctx, event)
	}
}

// WritePump owns all writes to the socket and keeps the transport
// alive with periodic pings.
func (c *Client) WritePump() {
	// Ping a little more often than the read deadline expires.
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.log.Warn("Write failed", "error", err)
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, event ClientEvent) {
	switch event.Event {
	case EventRoomJoin:
		var p JoinPayload
		if err := decodePayload(event.Data, &p); err != nil {
			c.replyError(err)
			return
		}
		c.joinAndReplay(ctx, func() ([]domain.Message, error) {
			return c.service.Join(ctx, c.id, p.RoomID)
		})

	case EventRoomLeave:
		var p LeavePayload
		if err := decodePayload(event.Data, &p); err != nil {
			c.replyError(err)
			return
		}
		if err := c.service.Leave(ctx, c.id, p.RoomID); err != nil {
			c.replyError(err)
		}

	case EventRoomSwitch:
		var p SwitchPayload
		if err := decodePayload(event.Data, &p); err != nil {
			c.replyError(err)
			return
		}
		c.joinAndReplay(ctx, func() ([]domain.Message, error) {
			return c.service.Switch(ctx, c.id, p.FromRoomID, p.ToRoomID)
		})

	case EventMessageSend:
		var p SendPayload
		if err := decodePayload(event.Data, &p); err != nil {
			c.replyError(err)
			return
		}
		if err := c.service.Send(ctx, c.id, p.RoomID, p.Body); err != nil {
			c.replyError(err)
		}

	case EventHistoryRequest:
		var p HistoryPayload
		if err := decodePayload(event.Data, &p); err != nil {
			c.replyError(err)
			return
		}
		history, err := c.service.History(ctx, c.id, p.RoomID, p.Limit)
		if err != nil {
			c.replyError(err)
			return
		}
		c.reply(ServerEvent{Event: EventHistoryResponse, Data: historyData(history)})

	default:
		c.replyError(fmt.Errorf("%w: unknown event %q", errors.ErrInvalidInput, event.Event))
	}
}

// joinAndReplay runs a join-producing operation and privately replays
// the returned history to this connection only.
func (c *Client) joinAndReplay(_ context.Context, op func() ([]domain.Message, error)) {
	history, err := op()
	if err != nil {
		c.replyError(err)
		return
	}
	c.reply(ServerEvent{Event: EventHistoryResponse, Data: historyData(history)})
}

func (c *Client) reply(event ServerEvent) {
	select {
	case c.send <- event:
	case <-c.done:
	default:
		c.log.Warn("Outbound buffer full, dropping private reply", "event", event.Event)
	}
}

func (c *Client) replyError(err error) {
	c.reply(ServerEvent{Event: EventError, Data: ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	}})
}

// historyData keeps the wire shape of an empty history an array, not
// null.
func historyData(history []domain.Message) []domain.Message {
	if history == nil {
		return []domain.Message{}
	}
	return history
}

func isErr(err, target error) bool {
	return stderrors.Is(err, target)
}

func errorCode(err error) string {
	switch {
	case isErr(err, errors.ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case isErr(err, errors.ErrInvalidInput):
		return "INVALID_INPUT"
	case isErr(err, errors.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}
