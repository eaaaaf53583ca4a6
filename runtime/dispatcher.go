package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"talkify/contract"
	"talkify/domain"
	"talkify/errors"
	"talkify/repositories"
)

// Dispatcher accepts outbound messages from clients and turns them
// into durable, broadcast messages. Acceptance returns as soon as
// broadcast and enqueue have been attempted; it never waits for the
// store.
type Dispatcher struct {
	log              *slog.Logger
	bus              contract.IBus
	queue            contract.IQueue
	registry         contract.IRegistry
	store            repositories.IMessageRepository
	dedup            *DedupCache
	sinkTimeout      time.Duration
	retryWait        time.Duration
	retryMax         int
	maxContentLength int
}

func NewDispatcher(log *slog.Logger, bus contract.IBus, queue contract.IQueue,
	registry contract.IRegistry, store repositories.IMessageRepository, dedup *DedupCache,
	sinkTimeout, retryWait time.Duration, retryMax, maxContentLength int) *Dispatcher {
	return &Dispatcher{
		log:              log,
		bus:              bus,
		queue:            queue,
		registry:         registry,
		store:            store,
		dedup:            dedup,
		sinkTimeout:      sinkTimeout,
		retryWait:        retryWait,
		retryMax:         retryMax,
		maxContentLength: maxContentLength,
	}
}

// Send validates and accepts a message for room roomID.
//  1. The connection must carry a bound identity and the body must be
//     non-empty; failures are reported to the caller only, never
//     broadcast.
//  2. A fresh time-ordered id is assigned and the immutable Message
//     is built.
//  3. The envelope is published to the bus and enqueued for storage.
//     The two attempts are independent; neither waits for the other.
//
// A nil return means accepted, not stored: durability is eventual.
func (d *Dispatcher) Send(ctx context.Context, connID, roomID, body string) error {
	identity, ok := d.registry.IdentityOf(connID)
	if !ok {
		return errUnknownConnection(connID)
	}
	body = strings.TrimSpace(body)
	if body == "" || roomID == "" {
		return fmt.Errorf("%w: room and body are required", errors.ErrInvalidInput)
	}
	if d.maxContentLength > 0 && len(body) > d.maxContentLength {
		return fmt.Errorf("%w: body exceeds %d bytes", errors.ErrInvalidInput, d.maxContentLength)
	}

	message, err := domain.NewMessage(identity, roomID, body)
	if err != nil {
		return err
	}
	envelope := domain.Envelope{RoomID: roomID, Message: message}

	busErr := d.bus.Publish(ctx, envelope)
	if busErr != nil {
		// Degraded mode: cross-process delivery is lost but members
		// on this process still get the message.
		d.log.Error("Broadcast bus unreachable, delivering locally only", "message", message.ID, "error", busErr)
		d.deliverLocal(ctx, envelope)
	}

	queueErr := d.queue.Enqueue(ctx, envelope)
	switch {
	case queueErr != nil && busErr != nil:
		// Neither the bus listener nor the queue will reach the
		// store. Write directly so the message is not silently lost.
		d.log.Error("Write queue unreachable, writing store directly", "message", message.ID, "error", queueErr)
		if storeErr := d.store.StoreMessage(message); storeErr != nil {
			d.log.Error("Direct store write failed, message not persisted", "message", message.ID, "error", storeErr)
		}
	case queueErr != nil:
		d.log.Error("Write queue unreachable, retrying in background", "message", message.ID, "error", queueErr)
		go d.retryEnqueue(envelope)
	}

	return nil
}

// Announce broadcasts a system notification. Notifications are
// ephemeral: they go to the bus but never to the write queue, and a
// bus outage degrades to local delivery without any durable fallback.
func (d *Dispatcher) Announce(ctx context.Context, roomID, excludeConnID string, message domain.Message) {
	envelope := domain.Envelope{
		RoomID:        roomID,
		Message:       message,
		System:        true,
		ExcludeConnID: excludeConnID,
	}
	if err := d.bus.Publish(ctx, envelope); err != nil {
		d.log.Error("Broadcast bus unreachable for notification", "room", roomID, "error", err)
		d.deliverLocal(ctx, envelope)
	}
}

// deliverLocal fans an envelope out to the room's members on this
// process, marking the id as seen so a late bus delivery of the same
// message is dropped.
func (d *Dispatcher) deliverLocal(ctx context.Context, e domain.Envelope) {
	d.dedup.Seen(e.Message.ID.String())
	Fanout(ctx, d.log, d.registry.SinksForRoom(e.RoomID, e.ExcludeConnID), e.Message, d.sinkTimeout)
}

// retryEnqueue retries a failed enqueue with a fixed backoff. After
// the final attempt it falls back to a direct store write; losing the
// message entirely is not acceptable just because the queue is down.
func (d *Dispatcher) retryEnqueue(e domain.Envelope) {
	for attempt := 1; attempt <= d.retryMax; attempt++ {
		time.Sleep(d.retryWait)
		ctx, cancel := context.WithTimeout(context.Background(), d.retryWait)
		err := d.queue.Enqueue(ctx, e)
		cancel()
		if err == nil {
			return
		}
		d.log.Warn("Enqueue retry failed", "message", e.Message.ID, "attempt", attempt, "error", err)
	}
	if err := d.store.StoreMessage(e.Message); err != nil {
		d.log.Error("Message lost: enqueue retries exhausted and direct write failed", "message", e.Message.ID, "error", err)
	}
}

// Fanout delivers a message to each sink, bounding the time a slow
// consumer can hold up the loop. A slow store or socket must not
// stall unrelated rooms.
func Fanout(ctx context.Context, log *slog.Logger, sinks []contract.EventSink, message domain.Message, timeout time.Duration) {
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, timeout)
		if err := sink.Consume(sinkCtx, message); err != nil {
			log.Warn("Dropping delivery to slow or closed sink", "message", message.ID, "error", err)
		}
		cancel()
	}
}
