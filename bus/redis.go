// Package bus provides the cross-process broadcast primitive backed
// by Redis pub/sub. Every server process publishes accepted messages
// to one well-known channel and subscribes to it once at startup, so
// clients connected to different processes of the same room all
// receive the message.
package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"talkify/domain"
	"talkify/errors"
)

// RedisBus implements contract.IBus.
//
// Delivery is at-least-once and ordering across the single shared
// channel is best-effort only. Consumers must tolerate duplicates and
// slightly reordered messages.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisBus(client *redis.Client, channel string, log *slog.Logger) *RedisBus {
	return &RedisBus{client: client, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, e domain.Envelope) error {
	payload, err := domain.EncodeEnvelope(e)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBusUnavailable, err)
	}
	return nil
}

// Subscribe opens the single shared subscription and returns a channel
// of decoded envelopes. Malformed payloads are logged and skipped; a
// corrupt publisher must not stop the consumer loop. The channel is
// closed when ctx is canceled.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan domain.Envelope, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	// Force the subscription to be established before returning so a
	// dead Redis surfaces at startup, not at first delivery.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", errors.ErrBusUnavailable, err)
	}

	out := make(chan domain.Envelope)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				envelope, err := domain.DecodeEnvelope([]byte(msg.Payload))
				if err != nil {
					b.log.Error("Dropping malformed bus payload", "error", err)
					continue
				}
				select {
				case out <- envelope:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
