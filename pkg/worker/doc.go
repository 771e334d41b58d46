// Package worker provides the background worker that drives aboard
// onboarding pipelines forward.
//
// Workers consume tasks from a task queue and execute them against an
// onboarding engine. They are lightweight and easy to embed in existing
// services, and several workers can share one queue to scale processing.
//
// Most applications construct workers via helper functions in the aboard
// package, which wire engines, queues, and observers together with
// sensible defaults.
//
// # Worker Responsibilities
//
// A worker is responsible for:
//
//   - Blocking on a task queue for pending work
//   - Dispatching each task to the right engine operation
//   - Re-enqueueing tasks that failed with an I/O error, with backoff
//   - Leaving step outcomes (suspend, complete, fail) entirely to the
//     engine
//
// Three task types exist. A start task sends the welcome notification and
// runs the first pipeline pass. An advance task runs one pipeline pass,
// typically after a webhook recorded a signature or quiz result. A remind
// task nudges a subject parked at a quiz gate; remind tasks carry a
// NotBefore and are delivered by the queue only once it has passed.
//
// # Configuration
//
// The zero Config delivers each task exactly once, which suits queues with
// their own redelivery semantics. MaxAttempts and Backoff enable
// worker-side redelivery for simple queues such as the in-memory one. This
// policy applies to task handler errors only; a step that exhausts its own
// retry budget is recorded as failed by the engine and is not a task
// error.
//
// # Integration with Engine and Queues
//
// Workers are decoupled from any particular backend. They rely on two
// interfaces:
//
//   - Engine, the subset of the onboarding engine a task can invoke
//   - taskqueue.Queue, which delivers tasks
//
// Any engine constructed by this module satisfies Engine. Queue
// implementations over different transports can be plugged in without
// touching the worker.
//
// # Usage
//
// Most users should create workers via the aboard package, which exposes a
// simplified API for common cases, including a runner that manages a pool
// of worker goroutines. Use this package directly when implementing custom
// processing loops or new queue backends.
package worker
