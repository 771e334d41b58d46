package aboard

import (
	"database/sql"

	"github.com/petrijr/aboard/internal/engine"
	"github.com/petrijr/aboard/internal/taskqueue"
	workerpkg "github.com/petrijr/aboard/pkg/worker"
	"github.com/redis/go-redis/v9"
)

// Worker re-exports, so callers assembling their own engine and queue
// never need to import pkg/worker.

type (
	Worker = workerpkg.Worker
	Config = workerpkg.Config
)

// NewWorker creates a Worker that delivers each task once.
func NewWorker(eng Engine, q taskqueue.Queue) *Worker {
	return workerpkg.New(eng, q)
}

// NewWorkerWithConfig creates a Worker with the given redelivery policy.
func NewWorkerWithConfig(eng Engine, q taskqueue.Queue, cfg Config) *Worker {
	return workerpkg.NewWithConfig(eng, q, cfg)
}

// WorkerBundle wires together an Engine, a durable task queue, and a Worker
// that consumes tasks from that queue. The engine enqueues its pipeline
// passes on the bundled queue, so nothing runs until the Worker does.
type WorkerBundle struct {
	Engine Engine
	Worker *workerpkg.Worker

	// queue is kept unexported for now; it is primarily useful for internal
	// inspection and tests. The public API focuses on Engine and Worker.
	queue taskqueue.Queue
}

// NewSQLiteBundle constructs a durable Engine + Queue + Worker combo sharing
// the same SQLite database. Subjects, audit events and queued tasks are
// persisted in the provided *sql.DB.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:aboard.db?_journal=WAL")
//	bundle, err := aboard.NewSQLiteBundle(db, aboard.Config{MaxAttempts: 3})
//	// enroll and start subjects on bundle.Engine
//	// run bundle.Worker.ProcessOne in a loop
func NewSQLiteBundle(db *sql.DB, cfg workerpkg.Config) (*WorkerBundle, error) {
	p, err := sqlitePersistence(db)
	if err != nil {
		return nil, err
	}
	q, err := taskqueue.NewSQLiteQueue(db)
	if err != nil {
		return nil, err
	}

	eng := engine.NewEngineWithConfig(engine.Config{
		Persistence: p,
		Queue:       q,
	})
	w := workerpkg.NewWithConfig(eng, q, cfg)

	return &WorkerBundle{
		Engine: eng,
		Worker: w,
		queue:  q,
	}, nil
}

// NewPostgresBundle is NewSQLiteBundle over PostgreSQL.
func NewPostgresBundle(db *sql.DB, cfg workerpkg.Config) (*WorkerBundle, error) {
	p, err := postgresPersistence(db)
	if err != nil {
		return nil, err
	}
	q, err := taskqueue.NewPostgresQueue(db)
	if err != nil {
		return nil, err
	}

	eng := engine.NewEngineWithConfig(engine.Config{
		Persistence: p,
		Queue:       q,
	})
	w := workerpkg.NewWithConfig(eng, q, cfg)

	return &WorkerBundle{
		Engine: eng,
		Worker: w,
		queue:  q,
	}, nil
}

// NewRedisBundle is NewSQLiteBundle over Redis. Subjects, events and the
// task list share the "aboard:" key prefix.
func NewRedisBundle(client *redis.Client, cfg workerpkg.Config) (*WorkerBundle, error) {
	q := taskqueue.NewRedisQueue(client, "aboard:")

	eng := engine.NewEngineWithConfig(engine.Config{
		Persistence: redisPersistence(client),
		Queue:       q,
	})
	w := workerpkg.NewWithConfig(eng, q, cfg)

	return &WorkerBundle{
		Engine: eng,
		Worker: w,
		queue:  q,
	}, nil
}
