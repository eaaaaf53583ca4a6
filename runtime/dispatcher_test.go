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

func newTestDispatcher(t *testing.T, bus *fakeBus, queue *fakeQueue, store *fakeStore) (*Dispatcher, *Registry) {
	t.Helper()
	registry := NewRegistry()
	dispatcher := NewDispatcher(slog.Default(), bus, queue, registry, store, newTestDedup(t),
		time.Second, 10*time.Millisecond, 3, 2000)
	return dispatcher, registry
}

func registerMember(t *testing.T, registry *Registry, userID, name, roomID string) (string, *recordingSink) {
	t.Helper()
	connID := uuid.NewString()
	sink := &recordingSink{}
	registry.Register(connID, domain.Identity{ID: userID, Name: name}, sink)
	if roomID != "" {
		_, err := registry.Join(connID, roomID)
		require.NoError(t, err)
	}
	return connID, sink
}

func Test_Send_Publishes_And_Enqueues(t *testing.T) {
	req := require.New(t)
	bus, queue, store := &fakeBus{}, &fakeQueue{}, &fakeStore{}
	dispatcher, registry := newTestDispatcher(t, bus, queue, store)
	connID, _ := registerMember(t, registry, "u-1", "alice", "general")

	// When a valid message is sent
	err := dispatcher.Send(context.Background(), connID, "general", "hi")
	req.NoError(err)

	// Then it reaches both the bus and the queue with the same id
	published, enqueued := bus.all(), queue.all()
	req.Len(published, 1)
	req.Len(enqueued, 1)
	req.Equal(published[0].Message.ID, enqueued[0].Message.ID)
	req.Equal("hi", published[0].Message.Body)
	req.Equal("alice", published[0].Message.Sender.Name)
	req.False(published[0].System)
}

func Test_Send_Rejects_Empty_Body(t *testing.T) {
	req := require.New(t)
	bus, queue := &fakeBus{}, &fakeQueue{}
	dispatcher, registry := newTestDispatcher(t, bus, queue, &fakeStore{})
	connID, _ := registerMember(t, registry, "u-1", "alice", "general")

	err := dispatcher.Send(context.Background(), connID, "general", "   ")
	req.ErrorIs(err, errors.ErrInvalidInput)
	req.Empty(bus.all())
	req.Empty(queue.all())
}

func Test_Send_Rejects_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	dispatcher, _ := newTestDispatcher(t, &fakeBus{}, &fakeQueue{}, &fakeStore{})

	err := dispatcher.Send(context.Background(), uuid.NewString(), "general", "hi")
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func Test_Send_Returns_Before_Store_Write_Completes(t *testing.T) {
	req := require.New(t)
	// Given an artificially slow store
	store := &fakeStore{delay: 500 * time.Millisecond}
	dispatcher, registry := newTestDispatcher(t, &fakeBus{}, &fakeQueue{}, store)
	connID, _ := registerMember(t, registry, "u-1", "alice", "general")

	// When sending
	start := time.Now()
	err := dispatcher.Send(context.Background(), connID, "general", "hi")
	elapsed := time.Since(start)

	// Then acceptance is dominated by bus/queue enqueue, not the
	// store write
	req.NoError(err)
	req.Less(elapsed, 100*time.Millisecond)
}

func Test_Send_Bus_Down_Falls_Back_To_Local_Delivery(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{failWith: errors.ErrBusUnavailable}
	queue := &fakeQueue{failures: 1000}
	store := &fakeStore{}
	dispatcher, registry := newTestDispatcher(t, bus, queue, store)
	aliceConn, _ := registerMember(t, registry, "u-1", "alice", "general")
	_, bobSink := registerMember(t, registry, "u-2", "bob", "general")

	// When the bus and the queue are both unreachable
	err := dispatcher.Send(context.Background(), aliceConn, "general", "hi")
	req.NoError(err)

	// Then local members still receive the message
	req.Len(bobSink.messages, 1)
	req.Equal("hi", bobSink.messages[0].Body)

	// And the message was written to the store directly
	req.Len(store.stored, 1)
	req.Equal("hi", store.stored[0].Body)
}

func Test_Send_Queue_Down_Retries_In_Background(t *testing.T) {
	req := require.New(t)
	// Given a queue that recovers after two failures
	queue := &fakeQueue{failures: 2}
	dispatcher, registry := newTestDispatcher(t, &fakeBus{}, queue, &fakeStore{})
	connID, _ := registerMember(t, registry, "u-1", "alice", "general")

	err := dispatcher.Send(context.Background(), connID, "general", "hi")
	req.NoError(err)

	// Then the background retry eventually lands the envelope
	req.Eventually(func() bool { return len(queue.all()) == 1 }, time.Second, 10*time.Millisecond)
}

func Test_Send_No_Cross_Room_Leakage_In_Degraded_Mode(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{failWith: errors.ErrBusUnavailable}
	dispatcher, registry := newTestDispatcher(t, bus, &fakeQueue{}, &fakeStore{})
	aliceConn, _ := registerMember(t, registry, "u-1", "alice", "general")
	_, strangerSink := registerMember(t, registry, "u-2", "mallory", "random")

	err := dispatcher.Send(context.Background(), aliceConn, "general", "secret")
	req.NoError(err)

	// A member whose only membership is another room never sees it
	req.Empty(strangerSink.messages)
}

func Test_Announce_Is_Ephemeral(t *testing.T) {
	req := require.New(t)
	bus, queue := &fakeBus{}, &fakeQueue{}
	dispatcher, _ := newTestDispatcher(t, bus, queue, &fakeStore{})

	notice, err := domain.NewJoinNotice(domain.SystemIdentity{ID: "system", Name: "System"}, "general", "bob")
	req.NoError(err)
	dispatcher.Announce(context.Background(), "general", "conn-1", notice)

	// System notifications go to the bus but never to the write queue
	published := bus.all()
	req.Len(published, 1)
	req.True(published[0].System)
	req.Equal("conn-1", published[0].ExcludeConnID)
	req.Empty(queue.all())
}
