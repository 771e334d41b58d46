// Package aboard provides a lightweight, embeddable employee-onboarding
// workflow engine for Go.
//
// Aboard models onboarding as a durable, resumable pipeline: documents go
// out for signature, the new hire signs and passes a short quiz per
// document, and the final access provisioning runs concurrently. The
// engine runs fully in Go, supports multiple persistence backends, and
// integrates cleanly into existing codebases.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Engine
//  2. Worker
//  3. Pipeline
//  4. Webhooks
//  5. LocalRunner
//
// These components form a complete onboarding system with idempotent
// execution, durable state (when using persistent backends), and a clear
// mental model.
//
// # Engine
//
// The Engine persists subject state, derives the next action from the
// per-subject step record, and provides APIs to:
//   - enroll subjects and start their workflow
//   - advance the pipeline after external events
//   - apply document-status and quiz-result webhooks
//   - read subject state and audit history
//   - recover work interrupted by a crash
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis
//
// Each persistent backend includes a matching task queue implementation so
// workers can reliably fetch work.
//
// # Worker
//
// A Worker pulls tasks from a configured queue and executes them against
// an Engine: start tasks, advance passes, and quiz reminders. Workers run
// asynchronously and can be scaled horizontally. Without a queue the
// engine drives the pipeline inline, which keeps single-process setups
// simple.
//
// # Pipeline
//
// The pipeline is fixed: twelve steps across three document rounds
// (company policy, NDA, development guidelines), each round being
// sent / signed / quiz_passed, followed by three provisioning steps
// (Slack invite, Jira access, intro-call scheduling) that run
// concurrently. Completed steps are immutable; re-running a pass against
// a parked or finished subject changes nothing.
//
// # Webhooks
//
// Signature and quiz gates complete only via external events. The engine
// exposes OnDocumentEvent and OnQuizEvent for the signing provider's
// callbacks; each records the assertion and triggers the next pipeline
// pass. Duplicate deliveries are absorbed, and quiz attempts are kept as
// an append-only history on the subject.
//
// # LocalRunner
//
// LocalRunner bundles an in-memory engine, queue, and worker into a
// single, process-local helper useful for development and unit testing.
// It is intentionally not crash-durable, but it is the most convenient
// way to run and debug onboarding flows during development. For durable
// setups, see the SQLite, Postgres and Redis bundles.
//
// # Summary
//
// Aboard's goal is an onboarding engine that feels like Go: easy to
// embed, easy to test, idempotent, and without operational overhead.
// Engines manage subject state, Workers execute tasks, webhooks complete
// gates, and LocalRunner provides a fast, developer-friendly runtime.
//
// For examples, see the /examples directory or the project README.
package aboard
