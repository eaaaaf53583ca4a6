package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"talkify/domain"
	"talkify/errors"
)

func newTestSession(t *testing.T, bus *fakeBus, store *fakeStore) (*SessionManager, *Registry) {
	t.Helper()
	registry := NewRegistry()
	queue := &fakeQueue{}
	dispatcher := NewDispatcher(slog.Default(), bus, queue, registry, store, newTestDedup(t),
		time.Second, 10*time.Millisecond, 3, 2000)
	history := NewHistoryService(slog.Default(), store, 50, 200)
	rooms := &fakeRooms{rooms: map[string]domain.Room{
		"general": {ID: "general", Name: "general", Active: true},
		"random":  {ID: "random", Name: "random", Active: true},
	}}
	system := domain.SystemIdentity{ID: "system", Name: "System", Email: "system@talkify.local"}
	return NewSessionManager(slog.Default(), registry, rooms, history, dispatcher, system), registry
}

func Test_Join_Returns_Empty_History_For_New_Room(t *testing.T) {
	req := require.New(t)
	sessions, registry := newTestSession(t, &fakeBus{}, &fakeStore{})
	connID, _ := registerConn(t, registry, "u-1", "alice")

	history, err := sessions.Join(context.Background(), connID, "general")
	req.NoError(err)
	req.Empty(history)

	roomID, joined := registry.RoomOf(connID)
	req.True(joined)
	req.Equal("general", roomID)
}

func Test_Join_Announces_To_Other_Members_Only(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{}
	sessions, registry := newTestSession(t, bus, &fakeStore{})
	aliceConn, _ := registerConn(t, registry, "u-1", "alice")
	bobConn, _ := registerConn(t, registry, "u-2", "bob")

	_, err := sessions.Join(context.Background(), aliceConn, "general")
	req.NoError(err)
	_, err = sessions.Join(context.Background(), bobConn, "general")
	req.NoError(err)

	// Two join notices were broadcast, each excluding the joiner
	published := bus.all()
	req.Len(published, 2)
	req.Equal("alice has joined the chat.", published[0].Message.Body)
	req.Equal(aliceConn, published[0].ExcludeConnID)
	req.Equal("bob has joined the chat.", published[1].Message.Body)
	req.Equal(bobConn, published[1].ExcludeConnID)
	for _, e := range published {
		req.True(e.System)
		req.Equal("system", e.Message.Sender.ID)
	}
}

func Test_Rejoin_Current_Room_Emits_No_Notice_But_Replays_History(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{}
	store := &fakeStore{}
	message, err := domain.NewMessage(domain.Identity{ID: "u-2", Name: "bob"}, "general", "hi")
	req.NoError(err)
	req.NoError(store.StoreMessage(message))

	sessions, registry := newTestSession(t, bus, store)
	connID, _ := registerConn(t, registry, "u-1", "alice")
	_, err = sessions.Join(context.Background(), connID, "general")
	req.NoError(err)

	// When the connection joins the room it is already in
	history, err := sessions.Join(context.Background(), connID, "general")
	req.NoError(err)

	// Then no second presence notice is broadcast
	published := bus.all()
	req.Len(published, 1)
	req.Equal("alice has joined the chat.", published[0].Message.Body)
	// And the private replay still happens
	req.Len(history, 1)
	req.Equal("hi", history[0].Body)

	roomID, joined := registry.RoomOf(connID)
	req.True(joined)
	req.Equal("general", roomID)
}

func Test_Join_Unknown_Room_Is_Rejected(t *testing.T) {
	req := require.New(t)
	sessions, registry := newTestSession(t, &fakeBus{}, &fakeStore{})
	connID, _ := registerConn(t, registry, "u-1", "alice")

	_, err := sessions.Join(context.Background(), connID, "ghost")
	req.ErrorIs(err, errors.ErrRoomNotFound)

	_, joined := registry.RoomOf(connID)
	req.False(joined)
}

func Test_Leave_Announces_To_Remaining_Members(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{}
	sessions, registry := newTestSession(t, bus, &fakeStore{})
	aliceConn, _ := registerConn(t, registry, "u-1", "alice")
	_, err := sessions.Join(context.Background(), aliceConn, "general")
	req.NoError(err)

	req.NoError(sessions.Leave(context.Background(), aliceConn, "general"))

	published := bus.all()
	req.Len(published, 2)
	req.Equal("alice has left the chat.", published[1].Message.Body)
}

func Test_Leave_Room_Not_Joined_Is_Noop(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{}
	sessions, registry := newTestSession(t, bus, &fakeStore{})
	connID, _ := registerConn(t, registry, "u-1", "alice")

	// Leaving a room you are not in is not an error and emits nothing
	req.NoError(sessions.Leave(context.Background(), connID, "general"))
	req.Empty(bus.all())
}

func Test_Switch_Emits_Leave_Then_Join(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{}
	sessions, registry := newTestSession(t, bus, &fakeStore{})
	connID, _ := registerConn(t, registry, "u-1", "alice")
	_, err := sessions.Join(context.Background(), connID, "general")
	req.NoError(err)

	_, err = sessions.Switch(context.Background(), connID, "general", "random")
	req.NoError(err)

	published := bus.all()
	req.Len(published, 3)
	req.Equal("alice has left the chat.", published[1].Message.Body)
	req.Equal("general", published[1].RoomID)
	req.Equal("alice has joined the chat.", published[2].Message.Body)
	req.Equal("random", published[2].RoomID)

	roomID, joined := registry.RoomOf(connID)
	req.True(joined)
	req.Equal("random", roomID)
}

func Test_Disconnect_Emits_Best_Effort_Leave_And_Unregisters(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{}
	sessions, registry := newTestSession(t, bus, &fakeStore{})
	connID, _ := registerConn(t, registry, "u-1", "alice")
	_, err := sessions.Join(context.Background(), connID, "general")
	req.NoError(err)

	sessions.Disconnect(context.Background(), connID)

	req.False(registry.IsOnline("u-1"))
	published := bus.all()
	req.Len(published, 2)
	req.Equal("alice has left the chat.", published[1].Message.Body)
}

func Test_Join_Replays_Existing_History(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	message, err := domain.NewMessage(domain.Identity{ID: "u-2", Name: "bob"}, "general", "hi")
	req.NoError(err)
	req.NoError(store.StoreMessage(message))

	sessions, registry := newTestSession(t, &fakeBus{}, store)
	connID, _ := registerConn(t, registry, "u-1", "alice")

	history, joinErr := sessions.Join(context.Background(), connID, "general")
	req.NoError(joinErr)
	req.Len(history, 1)
	req.Equal("hi", history[0].Body)
	req.Equal("bob", history[0].Sender.Name)
}

func registerConn(t *testing.T, registry *Registry, userID, name string) (string, *recordingSink) {
	t.Helper()
	connID := uuid.NewString()
	sink := &recordingSink{}
	registry.Register(connID, domain.Identity{ID: userID, Name: name}, sink)
	return connID, sink
}
