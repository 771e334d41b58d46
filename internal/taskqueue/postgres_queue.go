package taskqueue

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresQueue is a persistent task queue implementation backed by
// PostgreSQL. Claims use FOR UPDATE SKIP LOCKED so multiple worker
// processes can poll the same table without contending.
//
// It expects an *sql.DB using a PostgreSQL driver, e.g.
// "github.com/jackc/pgx/v5/stdlib".
type PostgresQueue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewPostgresQueue initializes the tasks table in the given DB and returns a new queue.
func NewPostgresQueue(db *sql.DB) (*PostgresQueue, error) {
	q := &PostgresQueue{
		db:           db,
		pollInterval: 20 * time.Millisecond,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *PostgresQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			task_id TEXT NOT NULL,
			type TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			step TEXT NOT NULL DEFAULT '',
			enqueued_at BIGINT NOT NULL,
			not_before BIGINT NOT NULL,
			attempts INTEGER NOT NULL
		);
	`)
	return err
}

// Ensure PostgresQueue implements Queue.
var _ Queue = (*PostgresQueue)(nil)

func (q *PostgresQueue) Enqueue(ctx context.Context, t Task) error {
	now := time.Now()
	enqueuedAt := now.UnixNano()
	if !t.EnqueuedAt.IsZero() {
		enqueuedAt = t.EnqueuedAt.UnixNano()
	}

	var notBefore int64
	if t.NotBefore.IsZero() {
		notBefore = enqueuedAt
	} else {
		notBefore = t.NotBefore.UnixNano()
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, type, subject_id, step, enqueued_at, not_before, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID,
		string(t.Type),
		t.SubjectID,
		t.Step,
		enqueuedAt,
		notBefore,
		t.Attempts,
	)
	return err
}

func (q *PostgresQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		now := time.Now().UnixNano()

		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}

		var (
			id          int64
			taskID      string
			typeStr     string
			subjectID   string
			step        string
			enqueuedInt int64
			notBefore   int64
			attempts    int
		)

		row := tx.QueryRowContext(ctx, `
			SELECT id, task_id, type, subject_id, step, enqueued_at, not_before, attempts
			FROM tasks
			WHERE not_before <= $1
			ORDER BY not_before, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED`, now)
		err = row.Scan(&id, &taskID, &typeStr, &subjectID, &step, &enqueuedInt, &notBefore, &attempts)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				_ = tx.Rollback()
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(q.pollInterval):
					continue
				}
			}
			_ = tx.Rollback()
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		if err := tx.Commit(); err != nil {
			return nil, err
		}

		task := &Task{
			ID:         taskID,
			Type:       TaskType(typeStr),
			SubjectID:  subjectID,
			Step:       step,
			EnqueuedAt: time.Unix(0, enqueuedInt),
			NotBefore:  time.Unix(0, notBefore),
			Attempts:   attempts,
		}

		return task, nil
	}
}

func (q *PostgresQueue) Len() int {
	var n int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n)
	if err != nil {
		return 0
	}
	return n
}
