package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/aboard/pkg/api"
)

// RedisSubjectStore is a SubjectStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>subj:<id>           => gob-encoded redisSubjectPayload
//	<prefix>tok:<token>         => subject ID for the instance token
//	<prefix>email:<email>       => subject ID owning the email
//	<prefix>idx:all             => SET of all subject IDs
//	<prefix>idx:dept:<dept>     => SET of subject IDs for a department
//
// The indexes are best-effort; they are always updated on Save/Update, and
// lookups re-check the payload so stale entries are filtered out.
type RedisSubjectStore struct {
	client *redis.Client
	prefix string
}

var _ SubjectStore = (*RedisSubjectStore)(nil)

// updateRetries bounds optimistic WATCH retries in UpdateSubject.
const updateRetries = 5

type redisSubjectPayload struct {
	ID            string
	Email         string
	Name          string
	Role          string
	Department    string
	StartDate     string
	InstanceToken string
	Record        []byte
	QuizAttempts  []byte
	EmailLog      []byte
	CreatedAt     int64
	UpdatedAt     int64
}

// NewRedisSubjectStore creates a RedisSubjectStore.
// prefix is optional but recommended (e.g. "aboard:").
func NewRedisSubjectStore(client *redis.Client, prefix string) *RedisSubjectStore {
	if prefix == "" {
		prefix = "aboard:"
	}
	return &RedisSubjectStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisSubjectStore) keySubject(id string) string {
	return s.prefix + "subj:" + id
}

func (s *RedisSubjectStore) keyToken(token string) string {
	return s.prefix + "tok:" + token
}

func (s *RedisSubjectStore) keyEmail(email string) string {
	return s.prefix + "email:" + email
}

func (s *RedisSubjectStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisSubjectStore) keyDepartment(dept string) string {
	return s.prefix + "idx:dept:" + dept
}

func encodeRedisPayload(subj *api.Subject) ([]byte, error) {
	record, err := encodeValue(subj.Record)
	if err != nil {
		return nil, err
	}
	attempts, err := encodeValue(subj.QuizAttempts)
	if err != nil {
		return nil, err
	}
	emailLog, err := encodeValue(subj.EmailLog)
	if err != nil {
		return nil, err
	}

	payload := redisSubjectPayload{
		ID:            subj.ID,
		Email:         subj.Email,
		Name:          subj.Name,
		Role:          subj.Role,
		Department:    subj.Department,
		StartDate:     subj.StartDate,
		InstanceToken: subj.InstanceToken,
		Record:        record,
		QuizAttempts:  attempts,
		EmailLog:      emailLog,
		CreatedAt:     subj.CreatedAt.UnixNano(),
		UpdatedAt:     subj.UpdatedAt.UnixNano(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRedisPayload(data []byte) (*api.Subject, error) {
	if len(data) == 0 {
		return nil, ErrSubjectNotFound
	}
	var payload redisSubjectPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}

	record, err := decodeValue[api.StepRecord](payload.Record)
	if err != nil {
		return nil, err
	}
	attempts, err := decodeValue[map[api.DocumentKind][]api.QuizAttempt](payload.QuizAttempts)
	if err != nil {
		return nil, err
	}
	emailLog, err := decodeValue[[]api.EmailLogEntry](payload.EmailLog)
	if err != nil {
		return nil, err
	}

	return &api.Subject{
		ID:            payload.ID,
		Email:         payload.Email,
		Name:          payload.Name,
		Role:          payload.Role,
		Department:    payload.Department,
		StartDate:     payload.StartDate,
		InstanceToken: payload.InstanceToken,
		Record:        record,
		QuizAttempts:  attempts,
		EmailLog:      emailLog,
		CreatedAt:     time.Unix(0, payload.CreatedAt),
		UpdatedAt:     time.Unix(0, payload.UpdatedAt),
	}, nil
}

func (s *RedisSubjectStore) SaveSubject(ctx context.Context, subj *api.Subject) error {
	data, err := encodeRedisPayload(subj)
	if err != nil {
		return err
	}

	// Claim the email first; SetNX loses to an existing owner.
	claimed, err := s.client.SetNX(ctx, s.keyEmail(subj.Email), subj.ID, 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		owner, err := s.client.Get(ctx, s.keyEmail(subj.Email)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if owner != subj.ID {
			return ErrDuplicateEmail
		}
	}

	if err := s.client.Set(ctx, s.keySubject(subj.ID), data, 0).Err(); err != nil {
		return err
	}

	// Update indexes (best-effort; we don't treat index failures as fatal)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.keyAll(), subj.ID)
	if subj.Department != "" {
		pipe.SAdd(ctx, s.keyDepartment(subj.Department), subj.ID)
	}
	if subj.InstanceToken != "" {
		pipe.Set(ctx, s.keyToken(subj.InstanceToken), subj.ID, 0)
	}
	_, _ = pipe.Exec(ctx)

	return nil
}

func (s *RedisSubjectStore) GetSubject(ctx context.Context, id string) (*api.Subject, error) {
	data, err := s.client.Get(ctx, s.keySubject(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	return decodeRedisPayload(data)
}

func (s *RedisSubjectStore) GetSubjectByToken(ctx context.Context, token string) (*api.Subject, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	id, err := s.client.Get(ctx, s.keyToken(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	subj, err := s.GetSubject(ctx, id)
	if errors.Is(err, ErrSubjectNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	// Stale token mapping; the payload is authoritative.
	if subj.InstanceToken != token {
		return nil, ErrTokenNotFound
	}
	return subj, nil
}

func (s *RedisSubjectStore) UpdateSubject(ctx context.Context, id string, mutate func(*api.Subject) error) (*api.Subject, error) {
	key := s.keySubject(id)

	var updated *api.Subject

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSubjectNotFound
			}
			return err
		}

		subj, err := decodeRedisPayload(data)
		if err != nil {
			return err
		}

		if err := mutate(subj); err != nil {
			return err
		}
		subj.UpdatedAt = time.Now()
		subj.Record.LastUpdated = subj.UpdatedAt

		payload, err := encodeRedisPayload(subj)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if subj.Department != "" {
				pipe.SAdd(ctx, s.keyDepartment(subj.Department), subj.ID)
			}
			if subj.InstanceToken != "" {
				pipe.Set(ctx, s.keyToken(subj.InstanceToken), subj.ID, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}

		updated = subj
		return nil
	}

	// WATCH-based optimistic concurrency: retry when another writer
	// touched the key between read and commit.
	var err error
	for i := 0; i < updateRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *RedisSubjectStore) DeleteSubject(ctx context.Context, id string) error {
	subj, err := s.GetSubject(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.keySubject(id))
	pipe.Del(ctx, s.keyEmail(subj.Email))
	if subj.InstanceToken != "" {
		pipe.Del(ctx, s.keyToken(subj.InstanceToken))
	}
	pipe.SRem(ctx, s.keyAll(), id)
	if subj.Department != "" {
		pipe.SRem(ctx, s.keyDepartment(subj.Department), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisSubjectStore) ListSubjects(ctx context.Context, filter api.SubjectFilter) ([]*api.Subject, error) {
	var ids []string
	var err error

	if filter.Department != "" {
		ids, err = s.client.SMembers(ctx, s.keyDepartment(filter.Department)).Result()
	} else {
		ids, err = s.client.SMembers(ctx, s.keyAll()).Result()
	}

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*api.Subject{}, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return []*api.Subject{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.keySubject(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var subjects []*api.Subject
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		subj, err := decodeRedisPayload(data)
		if err != nil {
			return nil, err
		}
		// Stale index entries are filtered against the payload.
		if filter.Department != "" && subj.Department != filter.Department {
			continue
		}
		subjects = append(subjects, subj)
	}

	return subjects, nil
}

func (s *RedisSubjectStore) PurgeSubjects(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, s.keyAll()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		if err := s.DeleteSubject(ctx, id); err != nil {
			if errors.Is(err, ErrSubjectNotFound) {
				continue
			}
			return count, err
		}
		count++
	}

	_ = s.client.Del(ctx, s.keyAll()).Err()
	return count, nil
}
