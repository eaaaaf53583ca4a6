package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"talkify/contract"
	"talkify/domain"
	"talkify/errors"
)

// In-memory stand-ins for the bus, the queue and the store. The real
// implementations live behind the contract interfaces; the core logic
// is tested without Redis, NATS or Badger running.

type fakeBus struct {
	mu        sync.Mutex
	published []domain.Envelope
	failWith  error
}

func (b *fakeBus) Publish(_ context.Context, e domain.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.published = append(b.published, e)
	return nil
}

func (b *fakeBus) Subscribe(context.Context) (<-chan domain.Envelope, error) {
	return nil, errors.ErrBusUnavailable
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) all() []domain.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Envelope{}, b.published...)
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []domain.Envelope
	failures int // fail this many Enqueue calls before succeeding
}

func (q *fakeQueue) Enqueue(_ context.Context, e domain.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failures > 0 {
		q.failures--
		return errors.ErrQueueUnavailable
	}
	q.enqueued = append(q.enqueued, e)
	return nil
}

func (q *fakeQueue) Consume(context.Context) (<-chan contract.QueueMessage, error) {
	return nil, errors.ErrQueueUnavailable
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) all() []domain.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Envelope{}, q.enqueued...)
}

type fakeStore struct {
	mu       sync.Mutex
	stored   []domain.Message
	delay    time.Duration
	failWith error
}

func (s *fakeStore) StoreMessage(m domain.Message) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.stored = append(s.stored, m)
	return nil
}

func (s *fakeStore) GetRecent(roomID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var out []domain.Message
	for i := len(s.stored) - 1; i >= 0; i-- {
		if s.stored[i].RoomID != roomID {
			continue
		}
		out = append(out, s.stored[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeRooms struct {
	rooms map[string]domain.Room
}

func (r *fakeRooms) Resolve(_ context.Context, nameOrID string) (domain.Room, error) {
	if room, ok := r.rooms[nameOrID]; ok && room.Active {
		return room, nil
	}
	return domain.Room{}, fmt.Errorf("%w: %s", errors.ErrRoomNotFound, nameOrID)
}

func newTestDedup(t interface{ Cleanup(func()) }) *DedupCache {
	dedup, err := NewDedupCache(1024, time.Minute)
	if err != nil {
		panic(err)
	}
	t.Cleanup(dedup.Close)
	return dedup
}
