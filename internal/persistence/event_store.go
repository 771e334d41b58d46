package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// EventStore is an append-only history store for onboarding lifecycle events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.Event) error
	ListEvents(ctx context.Context, subjectID string) ([]api.Event, error)
	// PurgeEvents removes all recorded events.
	PurgeEvents(ctx context.Context) error
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.Event) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, subjectID string) ([]api.Event, error) {
	return nil, nil
}
func (NoopEventStore) PurgeEvents(ctx context.Context) error { return nil }

// InMemoryEventStore keeps events in memory, in append order.
type InMemoryEventStore struct {
	mu     sync.Mutex
	nextID int64
	events []api.Event
}

var _ EventStore = (*InMemoryEventStore)(nil)

// NewInMemoryEventStore creates an empty in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{nextID: 1}
}

func (s *InMemoryEventStore) AppendEvent(ctx context.Context, ev api.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ev.ID = s.nextID
	s.nextID++
	s.events = append(s.events, ev)
	return nil
}

func (s *InMemoryEventStore) ListEvents(ctx context.Context, subjectID string) ([]api.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []api.Event
	for _, ev := range s.events {
		if ev.SubjectID == subjectID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *InMemoryEventStore) PurgeEvents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	return nil
}
