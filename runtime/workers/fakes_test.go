package workers

import (
	"context"
	"sync"
	"time"

	"talkify/contract"
	"talkify/domain"
	"talkify/errors"
	"talkify/runtime"
)

type stubSink struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (s *stubSink) Consume(_ context.Context, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *stubSink) all() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message{}, s.messages...)
}

type stubBus struct {
	items chan domain.Envelope
}

func (b *stubBus) Publish(_ context.Context, e domain.Envelope) error {
	b.items <- e
	return nil
}

func (b *stubBus) Subscribe(context.Context) (<-chan domain.Envelope, error) {
	return b.items, nil
}

func (b *stubBus) Close() error { return nil }

type stubQueue struct {
	mu       sync.Mutex
	enqueued []domain.Envelope
	items    chan contract.QueueMessage
}

func (q *stubQueue) Enqueue(_ context.Context, e domain.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, e)
	return nil
}

func (q *stubQueue) Consume(context.Context) (<-chan contract.QueueMessage, error) {
	if q.items == nil {
		return nil, errors.ErrQueueUnavailable
	}
	return q.items, nil
}

func (q *stubQueue) Close() error { return nil }

func (q *stubQueue) all() []domain.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Envelope{}, q.enqueued...)
}

// stubItem records the acknowledgment decision taken by the writer.
type stubItem struct {
	envelope domain.Envelope
	corrupt  bool

	mu     sync.Mutex
	acked  bool
	naked  bool
	termed bool
	delay  time.Duration
}

func (i *stubItem) Envelope() (domain.Envelope, error) {
	if i.corrupt {
		return domain.Envelope{}, errors.ErrMalformedPayload
	}
	return i.envelope, nil
}

func (i *stubItem) Ack() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.acked = true
	return nil
}

func (i *stubItem) NakWithDelay(delay time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.naked = true
	i.delay = delay
	return nil
}

func (i *stubItem) Term() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.termed = true
	return nil
}

func (i *stubItem) state() (acked, naked, termed bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.acked, i.naked, i.termed
}

type stubStore struct {
	mu       sync.Mutex
	stored   []domain.Message
	failWith error
}

func (s *stubStore) StoreMessage(m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.stored = append(s.stored, m)
	return nil
}

func (s *stubStore) GetRecent(string, int) ([]domain.Message, error) {
	return nil, nil
}

func (s *stubStore) all() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message{}, s.stored...)
}

func newTestDedup(t interface{ Cleanup(func()) }) *runtime.DedupCache {
	dedup, err := runtime.NewDedupCache(1024, time.Minute)
	if err != nil {
		panic(err)
	}
	t.Cleanup(dedup.Close)
	return dedup
}
