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

// RedisEventStore stores onboarding events in Redis, one list per subject:
//
//	<prefix>events:<subject_id>  => LIST of gob-encoded events
//	<prefix>events:seq           => INCR counter for event IDs
//	<prefix>idx:events           => SET of subject IDs with history
type RedisEventStore struct {
	client *redis.Client
	prefix string
}

var _ EventStore = (*RedisEventStore)(nil)

// NewRedisEventStore creates a RedisEventStore with the given key prefix.
func NewRedisEventStore(client *redis.Client, prefix string) *RedisEventStore {
	if prefix == "" {
		prefix = "aboard:"
	}
	return &RedisEventStore{client: client, prefix: prefix}
}

func (s *RedisEventStore) keyEvents(subjectID string) string {
	return s.prefix + "events:" + subjectID
}

func (s *RedisEventStore) keySeq() string {
	return s.prefix + "events:seq"
}

func (s *RedisEventStore) keyIndex() string {
	return s.prefix + "idx:events"
}

func (s *RedisEventStore) AppendEvent(ctx context.Context, ev api.Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	id, err := s.client.Incr(ctx, s.keySeq()).Result()
	if err != nil {
		return err
	}
	ev.ID = id

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&ev); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.keyEvents(ev.SubjectID), buf.Bytes())
	pipe.SAdd(ctx, s.keyIndex(), ev.SubjectID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisEventStore) ListEvents(ctx context.Context, subjectID string) ([]api.Event, error) {
	items, err := s.client.LRange(ctx, s.keyEvents(subjectID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var out []api.Event
	for _, item := range items {
		var ev api.Event
		if err := gob.NewDecoder(bytes.NewReader([]byte(item))).Decode(&ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisEventStore) PurgeEvents(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, s.keyIndex()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.keyEvents(id))
	}
	pipe.Del(ctx, s.keyIndex())
	pipe.Del(ctx, s.keySeq())
	_, err = pipe.Exec(ctx)
	return err
}
