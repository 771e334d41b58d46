package taskqueue

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a persistent task queue backed by a Redis sorted set. The
// score is the task's not_before in nanoseconds, which gives deferred tasks
// and FIFO draining in one structure:
//
//	<prefix>tasks  => ZSET of gob-encoded tasks scored by eligibility time
//
// Claims are optimistic: a worker reads the first due member and owns the
// task only if its ZREM removes it. Losing the race just means another
// worker got there first.
type RedisQueue struct {
	client       *redis.Client
	key          string
	pollInterval time.Duration
}

// NewRedisQueue creates a RedisQueue with the given key prefix.
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "aboard:"
	}
	return &RedisQueue{
		client:       client,
		key:          prefix + "tasks",
		pollInterval: 20 * time.Millisecond,
	}
}

// Ensure RedisQueue implements Queue.
var _ Queue = (*RedisQueue)(nil)

func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	if t.ID == "" {
		// Members must be unique per task or identical reminders collapse.
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	if t.NotBefore.IsZero() {
		t.NotBefore = t.EnqueuedAt
	}

	data, err := EncodeTask(t)
	if err != nil {
		return err
	}

	return q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(t.NotBefore.UnixNano()),
		Member: string(data),
	}).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		now := time.Now().UnixNano()

		members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    strconv.FormatInt(now, 10),
			Offset: 0,
			Count:  1,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}

		if len(members) == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(q.pollInterval):
				continue
			}
		}

		removed, err := q.client.ZRem(ctx, q.key, members[0]).Result()
		if err != nil {
			return nil, err
		}
		if removed == 0 {
			// Another worker claimed it; try again immediately.
			continue
		}

		return DecodeTask([]byte(members[0]))
	}
}

func (q *RedisQueue) Len() int {
	n, err := q.client.ZCard(context.Background(), q.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// EncodeTask gob-encodes a Task.
func EncodeTask(t Task) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTask gob-decodes a Task.
func DecodeTask(data []byte) (*Task, error) {
	var t Task
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}
