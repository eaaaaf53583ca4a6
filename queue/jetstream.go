// Package queue provides the durable write queue backed by NATS
// JetStream. It buffers accepted messages between acceptance and
// durable storage so a store outage never loses messages and write
// rate is decoupled from arrival rate.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"talkify/contract"
	"talkify/domain"
	"talkify/errors"
)

const (
	// StreamName is the JetStream stream holding accepted messages.
	StreamName = "MESSAGES"
	// SubjectNew is the subject accepted messages are published to.
	SubjectNew = "messages.new"
	// ConsumerName is the durable store-writer consumer. One logical
	// reader per deployment.
	ConsumerName = "store-writer"
)

type Config struct {
	URL        string
	AckWait    time.Duration
	MaxDeliver int
}

// JetStreamQueue implements contract.IQueue. Delivery to the consumer
// is at-least-once; the store writer relies on idempotent writes.
type JetStreamQueue struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	stream   jetstream.Stream
	consumer jetstream.Consumer
	log      *slog.Logger
}

func NewJetStreamQueue(log *slog.Logger) *JetStreamQueue {
	return &JetStreamQueue{log: log}
}

// Connect establishes the NATS connection and creates or updates the
// stream and the durable consumer.
func (q *JetStreamQueue) Connect(ctx context.Context, cfg Config) error {
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrQueueUnavailable, err)
	}
	q.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	q.js = js

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Accepted chat messages awaiting durable storage",
		Subjects:    []string{SubjectNew},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	q.stream = stream

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:       ConsumerName,
		Durable:    ConsumerName,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    cfg.AckWait,
		MaxDeliver: cfg.MaxDeliver,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	q.consumer = consumer

	q.log.Info("Write queue connected", "url", cfg.URL, "stream", StreamName)
	return nil
}

// Enqueue publishes an envelope for eventual storage. The message id
// travels as Nats-Msg-Id so the broker drops the double enqueue that
// happens when both the origin process and a bus listener forward the
// same message.
func (q *JetStreamQueue) Enqueue(ctx context.Context, e domain.Envelope) error {
	if q.js == nil {
		return errors.ErrQueueUnavailable
	}
	payload, err := domain.EncodeEnvelope(e)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: SubjectNew,
		Data:    payload,
		Header:  nats.Header{},
	}
	msg.Header.Set("Nats-Msg-Id", e.Message.ID.String())
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrQueueUnavailable, err)
	}
	return nil
}

// Consume yields queued items until ctx is canceled. Each item must
// be acknowledged, delayed or terminated by the caller.
func (q *JetStreamQueue) Consume(ctx context.Context) (<-chan contract.QueueMessage, error) {
	if q.consumer == nil {
		return nil, errors.ErrQueueUnavailable
	}

	out := make(chan contract.QueueMessage)
	go func() {
		defer close(out)
		iter, err := q.consumer.Messages()
		if err != nil {
			q.log.Error("Write queue iterator failed", "error", err)
			return
		}

		// The watcher unblocks iter.Next on cancellation and must not
		// outlive this consume loop.
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
			case <-done:
			}
			iter.Stop()
		}()

		for {
			msg, err := iter.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				q.log.Error("Write queue fetch failed", "error", err)
				return
			}
			select {
			case out <- queueMessage{msg: msg}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (q *JetStreamQueue) Close() error {
	if q.nc != nil {
		q.nc.Close()
	}
	return nil
}

type queueMessage struct {
	msg jetstream.Msg
}

func (m queueMessage) Envelope() (domain.Envelope, error) {
	return domain.DecodeEnvelope(m.msg.Data())
}

func (m queueMessage) Ack() error { return m.msg.Ack() }

func (m queueMessage) NakWithDelay(delay time.Duration) error {
	return m.msg.NakWithDelay(delay)
}

func (m queueMessage) Term() error { return m.msg.Term() }
