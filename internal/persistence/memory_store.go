package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of SubjectStore
// backed by a map. It clones on every boundary so callers can never mutate
// stored state without going through UpdateSubject.
type InMemoryStore struct {
	mu       sync.RWMutex
	subjects map[string]*api.Subject
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		subjects: make(map[string]*api.Subject),
	}
}

// Ensure InMemoryStore implements the interface.
var _ SubjectStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveSubject(ctx context.Context, subj *api.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subjects {
		if existing.Email == subj.Email && existing.ID != subj.ID {
			return ErrDuplicateEmail
		}
	}

	s.subjects[subj.ID] = subj.Clone()
	return nil
}

func (s *InMemoryStore) GetSubject(ctx context.Context, id string) (*api.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subj, ok := s.subjects[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}

	return subj.Clone(), nil
}

func (s *InMemoryStore) GetSubjectByToken(ctx context.Context, token string) (*api.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, subj := range s.subjects {
		if subj.InstanceToken != "" && subj.InstanceToken == token {
			return subj.Clone(), nil
		}
	}

	return nil, ErrTokenNotFound
}

func (s *InMemoryStore) UpdateSubject(ctx context.Context, id string, mutate func(*api.Subject) error) (*api.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subj, ok := s.subjects[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}

	updated := subj.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now()
	updated.Record.LastUpdated = updated.UpdatedAt

	s.subjects[id] = updated
	return updated.Clone(), nil
}

func (s *InMemoryStore) DeleteSubject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[id]; !ok {
		return ErrSubjectNotFound
	}

	delete(s.subjects, id)
	return nil
}

func (s *InMemoryStore) ListSubjects(ctx context.Context, filter api.SubjectFilter) ([]*api.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Subject

	for _, subj := range s.subjects {
		if filter.Department != "" && subj.Department != filter.Department {
			continue
		}
		result = append(result, subj.Clone())
	}

	return result, nil
}

func (s *InMemoryStore) PurgeSubjects(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.subjects)
	s.subjects = make(map[string]*api.Subject)
	return n, nil
}
