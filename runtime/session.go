package runtime

import (
	"context"
	"log/slog"

	"talkify/contract"
	"talkify/domain"
)

// SessionManager governs a connection's membership in rooms: join,
// leave, switch, disconnect, and the system notifications those
// transitions produce. A connection belongs to at most one room at a
// time.
type SessionManager struct {
	log        *slog.Logger
	registry   contract.IRegistry
	rooms      contract.IRoomResolver
	history    *HistoryService
	dispatcher *Dispatcher
	system     domain.SystemIdentity
}

func NewSessionManager(log *slog.Logger, registry contract.IRegistry, rooms contract.IRoomResolver,
	history *HistoryService, dispatcher *Dispatcher, system domain.SystemIdentity) *SessionManager {
	return &SessionManager{
		log:        log,
		registry:   registry,
		rooms:      rooms,
		history:    history,
		dispatcher: dispatcher,
		system:     system,
	}
}

// Join makes the connection a member of the room and returns the
// recent history for a private replay to the joiner.
//
// If the connection was in another room it leaves that room first,
// with the leave notification emitted before the join notification.
// The join notification goes to the other members only: it is a
// notification, not a confirmation to self. Joining the room the
// connection is already in emits no notification at all; the caller
// still gets the history replay.
func (s *SessionManager) Join(ctx context.Context, connID, nameOrID string) ([]domain.Message, error) {
	identity, ok := s.registry.IdentityOf(connID)
	if !ok {
		return nil, errUnknownConnection(connID)
	}

	room, err := s.rooms.Resolve(ctx, nameOrID)
	if err != nil {
		return nil, err
	}

	previous, err := s.registry.Join(connID, room.ID)
	if err != nil {
		return nil, err
	}
	if previous != room.ID {
		// Re-joining the current room changes nothing for the other
		// members; only a fresh join is announced.
		if previous != "" {
			s.announceLeave(ctx, previous, connID, identity)
		}
		s.announceJoin(ctx, room.ID, connID, identity)
	}

	history, err := s.history.GetRecent(ctx, room.ID, 0)
	if err != nil {
		// Membership and the notification already succeeded; a store
		// hiccup on replay should not undo the join.
		s.log.Error("History replay failed on join", "room", room.ID, "error", err)
		return nil, nil
	}
	return history, nil
}

// Leave removes the connection from the room and notifies the
// remaining members. Leaving a room you are not in is a no-op, not an
// error.
func (s *SessionManager) Leave(ctx context.Context, connID, nameOrID string) error {
	identity, ok := s.registry.IdentityOf(connID)
	if !ok {
		return errUnknownConnection(connID)
	}

	room, err := s.rooms.Resolve(ctx, nameOrID)
	if err != nil {
		return err
	}

	if left := s.registry.Leave(connID, room.ID); left {
		s.announceLeave(ctx, room.ID, connID, identity)
	}
	return nil
}

// Switch is leave-then-join as a single logical operation. Both
// notifications are emitted, leave before join.
func (s *SessionManager) Switch(ctx context.Context, connID, fromNameOrID, toNameOrID string) ([]domain.Message, error) {
	if err := s.Leave(ctx, connID, fromNameOrID); err != nil {
		return nil, err
	}
	return s.Join(ctx, connID, toNameOrID)
}

// Disconnect closes the session. The transport is already gone, so
// the leave notification to the remaining members is best-effort
// only; unregistration always happens.
func (s *SessionManager) Disconnect(ctx context.Context, connID string) {
	identity, ok := s.registry.IdentityOf(connID)
	if ok {
		if roomID, joined := s.registry.RoomOf(connID); joined {
			s.registry.Leave(connID, roomID)
			s.announceLeave(ctx, roomID, connID, identity)
		}
	}
	s.registry.Unregister(connID)
}

func (s *SessionManager) announceJoin(ctx context.Context, roomID, connID string, identity domain.Identity) {
	notice, err := domain.NewJoinNotice(s.system, roomID, identity.Name)
	if err != nil {
		s.log.Error("Join notice construction failed", "error", err)
		return
	}
	s.dispatcher.Announce(ctx, roomID, connID, notice)
}

func (s *SessionManager) announceLeave(ctx context.Context, roomID, connID string, identity domain.Identity) {
	notice, err := domain.NewLeaveNotice(s.system, roomID, identity.Name)
	if err != nil {
		s.log.Error("Leave notice construction failed", "error", err)
		return
	}
	s.dispatcher.Announce(ctx, roomID, connID, notice)
}
