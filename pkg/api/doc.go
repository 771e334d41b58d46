// Package api contains the core building blocks used by the aboard
// onboarding engine. It provides the low-level primitives for describing the
// onboarding pipeline, recording per-subject progress, and observing engine
// behavior.
//
// Most users interact with the higher-level aboard package, which re-exports
// selected types and helpers from this package. The api package is intended
// for advanced use cases, custom integrations, or contributors extending the
// engine itself.
//
// # Concepts
//
// The api package centers around a small set of concepts:
//
//   - The pipeline: a fixed, ordered sequence of onboarding steps
//   - Subjects and step records
//   - External events (document callbacks and quiz submissions)
//   - Observability
//
// These primitives are assembled by the engine in internal/engine, but can
// also be used directly where fine-grained control is needed.
//
// # The Pipeline
//
// The pipeline is a fixed sequence of named steps, exposed as StepOrder.
// Delivery steps send a document out for signature; gate steps wait for an
// external confirmation (a signature callback or a passing quiz); the three
// final steps provision accounts and scheduling once every gate is cleared.
//
// The order is part of the contract: a gate never opens before its delivery
// step completed, and the final steps never run before every gate cleared.
// There is no workflow definition to register; the sequence is compiled into
// the engine.
//
// # Subjects and Step Records
//
// A Subject is an employee enrolled in onboarding. Its StepRecord holds one
// StepState per pipeline step and is the single source of truth for pipeline
// position: the engine derives what to do next purely from persisted
// statuses, so a process restart loses nothing.
//
// Step states carry the idempotency artifacts (tracking ids, signing URLs)
// that keep side effects from firing twice, plus attempt counts and error
// text for operators.
//
// # External Events
//
// DocumentEvent and QuizEvent model the two callback shapes providers post
// back to the service. Both validate themselves; malformed events are
// rejected with ErrInvalidEvent before any state changes. Quiz attempts are
// recorded on the subject whether they pass or fail.
//
// # Observability
//
// The api package defines the Observer interface, which is used by the
// engine and workers to report lifecycle events and metrics.
//
// Observers can be used to:
//
//   - Log workflow and step transitions
//   - Collect metrics (e.g. counts, error rates)
//   - Integrate with external monitoring systems
//
// The aboard package exposes ready-made implementations such as logging and
// basic in-memory metrics, along with helpers to combine multiple observers.
//
// # Usage
//
// Most applications should start from the aboard package, using the runner
// and engine constructors provided there. The api package is useful when you
// need lower-level access or when contributing changes to the core engine.
//
// See the aboard package documentation for end-to-end usage.
package api
