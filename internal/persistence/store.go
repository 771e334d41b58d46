package persistence

import (
	"context"
	"errors"

	"github.com/petrijr/aboard/pkg/api"
)

var (
	// ErrSubjectNotFound is returned when a subject is not found.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrTokenNotFound is returned when no subject carries the given
	// instance token.
	ErrTokenNotFound = errors.New("instance token not found")

	// ErrDuplicateEmail is returned when enrolling a subject whose email is
	// already registered.
	ErrDuplicateEmail = errors.New("email already enrolled")
)

// SubjectStore handles storage of onboarding subjects.
//
// UpdateSubject is the only mutation path on an enrolled subject: it applies
// mutate to the current persisted state and writes the result back
// atomically, so two concurrent updates never interleave field writes.
// That property is what keeps completed steps immutable under webhook races.
type SubjectStore interface {
	SaveSubject(ctx context.Context, subj *api.Subject) error
	GetSubject(ctx context.Context, id string) (*api.Subject, error)
	// GetSubjectByToken resolves the subject holding the given workflow
	// instance token.
	GetSubjectByToken(ctx context.Context, token string) (*api.Subject, error)
	// UpdateSubject loads the subject, applies mutate and persists the
	// result in one atomic step. It returns the stored state after the
	// update. If mutate returns an error, nothing is written and that
	// error is returned.
	UpdateSubject(ctx context.Context, id string, mutate func(*api.Subject) error) (*api.Subject, error)
	DeleteSubject(ctx context.Context, id string) error
	ListSubjects(ctx context.Context, filter api.SubjectFilter) ([]*api.Subject, error)
	// PurgeSubjects removes every subject and returns the removed count.
	PurgeSubjects(ctx context.Context) (int, error)
}
