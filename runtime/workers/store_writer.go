package workers

import (
	"context"
	"log/slog"
	"time"

	"talkify/contract"
	"talkify/errors"
	"talkify/repositories"
)

// StoreWriter is the single logical reader of the durable write
// queue. It writes each queued message to the message store.
//
// On a write failure the item is redelivered after a fixed backoff,
// which pauses that item without dropping it and without crashing the
// consumer. Redelivered duplicates are harmless: the store keys on
// the caller-assigned message id.
type StoreWriter struct {
	log     *slog.Logger
	queue   contract.IQueue
	store   repositories.IMessageRepository
	backoff time.Duration
}

func NewStoreWriter(log *slog.Logger, queue contract.IQueue, store repositories.IMessageRepository, backoff time.Duration) *StoreWriter {
	return &StoreWriter{log: log, queue: queue, store: store, backoff: backoff}
}

func (w *StoreWriter) Run(ctx context.Context) error {
	items, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case item, ok := <-items:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				w.log.Warn("Write queue channel closed, reconsuming")
				return errors.ErrQueueUnavailable
			}
			w.write(item)
		}
	}
}

func (w *StoreWriter) write(item contract.QueueMessage) {
	envelope, err := item.Envelope()
	if err != nil {
		// A corrupt item can never succeed; burying it keeps the
		// consumer loop alive.
		w.log.Error("Terminating malformed queue item", "error", err)
		if termErr := item.Term(); termErr != nil {
			w.log.Error("Term failed", "error", termErr)
		}
		return
	}

	if err := w.store.StoreMessage(envelope.Message); err != nil {
		w.log.Error("Store write failed, redelivering after backoff",
			"message", envelope.Message.ID, "backoff", w.backoff, "error", err)
		if nakErr := item.NakWithDelay(w.backoff); nakErr != nil {
			w.log.Error("Nak failed", "message", envelope.Message.ID, "error", nakErr)
		}
		return
	}

	if err := item.Ack(); err != nil {
		w.log.Warn("Ack failed, item may be redelivered", "message", envelope.Message.ID, "error", err)
	}
}
