//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"talkify/domain"
)

// EventSink is one live delivery target, usually a websocket
// connection's outbound pump. Consume must not block indefinitely;
// slow sinks drop rather than stall the fan-out path.
type EventSink interface {
	Consume(ctx context.Context, m domain.Message) error
}

// IBus is the process-external broadcast primitive used for
// cross-process fan-out.
//
// Delivery is at-least-once and ordering is best-effort only: the bus
// is a single shared channel, so per-room ordering is mostly but not
// strictly preserved. Consumers must tolerate duplicates and slightly
// reordered messages.
type IBus interface {
	Publish(ctx context.Context, e domain.Envelope) error
	Subscribe(ctx context.Context) (<-chan domain.Envelope, error)
	Close() error
}

// QueueMessage is one item read from the durable write queue,
// carrying the acknowledgment controls of the underlying log.
type QueueMessage interface {
	Envelope() (domain.Envelope, error)
	Ack() error
	NakWithDelay(delay time.Duration) error
	// Term marks the item as unprocessable. It will not be
	// redelivered.
	Term() error
}

// IQueue is the ordered, replayable log buffering accepted messages
// between acceptance and durable storage. Delivery is at-least-once;
// the store writer must treat writes as idempotent.
type IQueue interface {
	Enqueue(ctx context.Context, e domain.Envelope) error
	Consume(ctx context.Context) (<-chan QueueMessage, error)
	Close() error
}

// IAuthResolver validates an opaque credential against the external
// auth collaborator. Called exactly once per connection at handshake
// time, never per message.
type IAuthResolver interface {
	Resolve(ctx context.Context, credential string) (domain.Identity, error)
}

// IRoomResolver resolves a room id or name to a Room reference.
// Unknown or inactive rooms surface as errors.ErrRoomNotFound.
type IRoomResolver interface {
	Resolve(ctx context.Context, nameOrID string) (domain.Room, error)
}

type IRegistry interface {
	Register(connID string, identity domain.Identity, sink EventSink)
	Unregister(connID string)
	Join(connID, roomID string) (previous string, err error)
	Leave(connID, roomID string) bool
	RoomOf(connID string) (string, bool)
	IdentityOf(connID string) (domain.Identity, bool)
	IsOnline(identityID string) bool
	ConnectionFor(identityID string) (string, bool)
	SinksForRoom(roomID, excludeConnID string) []EventSink
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
