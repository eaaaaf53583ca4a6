package workers

import (
	"context"
	"log/slog"
	"time"

	"talkify/contract"
	"talkify/domain"
	"talkify/errors"
	"talkify/runtime"
)

// BusListener drains the broadcast bus subscription. For each item it
// (a) forwards chat messages to the durable write queue, so that
// persistence is centralized through whichever process receives the
// bus message, and (b) delivers the item to the target room's members
// on this process.
//
// The bus is at-least-once: duplicates are dropped through the dedup
// cache silently, which is expected behavior and not a failure.
type BusListener struct {
	log         *slog.Logger
	bus         contract.IBus
	queue       contract.IQueue
	registry    contract.IRegistry
	dedup       *runtime.DedupCache
	sinkTimeout time.Duration
}

func NewBusListener(log *slog.Logger, bus contract.IBus, queue contract.IQueue,
	registry contract.IRegistry, dedup *runtime.DedupCache, sinkTimeout time.Duration) *BusListener {
	return &BusListener{
		log:         log,
		bus:         bus,
		queue:       queue,
		registry:    registry,
		dedup:       dedup,
		sinkTimeout: sinkTimeout,
	}
}

func (w *BusListener) Run(ctx context.Context) error {
	sub, err := w.bus.Subscribe(ctx)
	if err != nil {
		// The supervisor restarts us after its delay, which doubles
		// as the reconnect backoff.
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case envelope, ok := <-sub:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				w.log.Warn("Bus subscription closed, resubscribing")
				return errors.ErrBusUnavailable
			}
			w.handle(ctx, envelope)
		}
	}
}

func (w *BusListener) handle(ctx context.Context, e domain.Envelope) {
	if w.dedup.Seen(e.Message.ID.String()) {
		return
	}

	if !e.System {
		// System notifications are ephemeral and never persisted.
		if err := w.queue.Enqueue(ctx, e); err != nil {
			// The origin process also enqueued; the queue drops the
			// double write by message id. Losing this forward only
			// matters if the origin's enqueue failed too.
			w.log.Error("Forward to write queue failed", "message", e.Message.ID, "error", err)
		}
	}

	runtime.Fanout(ctx, w.log, w.registry.SinksForRoom(e.RoomID, e.ExcludeConnID), e.Message, w.sinkTimeout)
}
