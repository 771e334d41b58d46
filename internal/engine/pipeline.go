package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/aboard/internal/mailer"
	"github.com/petrijr/aboard/internal/taskqueue"
	"github.com/petrijr/aboard/pkg/api"
)

// stepHandler fires the side effect for one step and persists its
// completion. Gate steps have no handler; they complete only through the
// webhook path.
type stepHandler func(ctx context.Context, subjectID string) error

// buildHandlers wires the fixed step table. The pipeline topology is a
// straight line plus a terminal fan-out, so a lookup table iterated in
// StepOrder is all the dispatch needed.
func (e *engineImpl) buildHandlers() map[api.StepName]stepHandler {
	return map[api.StepName]stepHandler{
		api.StepPolicySent:     e.documentHandler(api.DocumentPolicy),
		api.StepNDASent:        e.documentHandler(api.DocumentNDA),
		api.StepGuidelinesSent: e.documentHandler(api.DocumentGuidelines),
		api.StepSlackInvite:    e.finalEmailHandler(api.StepSlackInvite, mailer.TemplateSlackInvite),
		api.StepJiraAccess:     e.finalEmailHandler(api.StepJiraAccess, mailer.TemplateJiraAccess),
		api.StepCallSchedule:   e.finalEmailHandler(api.StepCallSchedule, mailer.TemplateMeeting),
	}
}

// GateSatisfied reports whether the external confirmation for a gate step
// has been recorded. Pure read; never fires side effects.
func GateSatisfied(rec *api.StepRecord, step api.StepName) bool {
	return rec.Step(step).Status == api.StatusCompleted
}

// preconditionsMet reports whether every predecessor of step is completed.
// The three final steps share the same predecessors and are unordered
// among themselves.
func preconditionsMet(rec *api.StepRecord, step api.StepName) bool {
	limit := api.StepIndex(step)
	if limit < 0 {
		return false
	}
	if api.IsFinalStep(step) {
		limit = api.TotalSteps - len(api.FinalSteps)
	}
	for i := 0; i < limit; i++ {
		if rec.Step(api.StepOrder[i]).Status != api.StatusCompleted {
			return false
		}
	}
	return true
}

func markCompleted(st *api.StepState) {
	now := time.Now().UTC()
	st.Status = api.StatusCompleted
	if st.StartedAt.IsZero() {
		st.StartedAt = now
	}
	st.CompletedAt = now
	st.Err = ""
}

// Advance re-derives the subject's position from the persisted step record
// and executes every consecutively ready step until the pipeline completes,
// parks at an unsatisfied gate, or a step exhausts its retry budget. With
// no new external event since the last call it changes nothing.
func (e *engineImpl) Advance(ctx context.Context, subjectID string) (api.AdvanceResult, error) {
	defer e.locks.lock(subjectID).Unlock()

	subj, err := e.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return api.AdvanceResult{}, fmt.Errorf("advance: %w", err)
	}
	if subj.InstanceToken == "" {
		return api.AdvanceResult{}, fmt.Errorf("advance: subject %s is not enrolled", subjectID)
	}
	if subj.Record.Terminal() {
		return api.AdvanceResult{Outcome: api.OutcomeCompleted}, nil
	}

	for _, step := range api.StepOrder {
		if api.IsFinalStep(step) {
			return e.runFinalTasks(ctx, subjectID)
		}

		if api.IsGateStep(step) {
			if GateSatisfied(&subj.Record, step) {
				continue
			}
			return e.suspendAt(ctx, subj, step)
		}

		state := subj.Record.Step(step)
		if state.Status == api.StatusCompleted {
			continue
		}
		if state.Status == api.StatusFailed {
			// Retry budget already exhausted; advancing again must not
			// re-fire the side effect.
			return api.AdvanceResult{
				Outcome: api.OutcomeFailed,
				Step:    step,
				Err:     errors.New(state.Err),
			}, nil
		}

		res, err := e.runStep(ctx, subj, step)
		if err != nil {
			return api.AdvanceResult{}, err
		}
		if res.Outcome != api.OutcomeAdvanced {
			return res, nil
		}

		// Reload so the next iteration sees the step's writes.
		subj, err = e.subjects.GetSubject(ctx, subjectID)
		if err != nil {
			return api.AdvanceResult{}, fmt.Errorf("advance: %w", err)
		}
	}

	// StepOrder ends in the final fan-out, so the loop cannot fall through.
	return api.AdvanceResult{Outcome: api.OutcomeCompleted}, nil
}

// suspendAt parks the subject at an unsatisfied gate. The waiting status is
// persisted once; a reminder is scheduled only on the transition into
// waiting, never on re-suspension.
func (e *engineImpl) suspendAt(ctx context.Context, subj *api.Subject, step api.StepName) (api.AdvanceResult, error) {
	if subj.Record.Step(step).Status != api.StatusWaiting {
		_, err := e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
			st := s.Record.Step(step)
			st.Status = api.StatusWaiting
			if st.StartedAt.IsZero() {
				st.StartedAt = time.Now().UTC()
			}
			return nil
		})
		if err != nil {
			return api.AdvanceResult{}, fmt.Errorf("suspend at %s: %w", step, err)
		}

		e.appendEvent(ctx, subj.ID, api.EventWorkflowWaiting, step, "")

		if kind, ok := api.DocumentForStep(step); ok && step == kind.QuizStep() && e.queue != nil {
			_ = e.queue.Enqueue(ctx, taskqueue.Task{
				Type:      taskqueue.TaskTypeRemind,
				SubjectID: subj.ID,
				Step:      string(step),
				NotBefore: time.Now().Add(e.remindAfter),
			})
		}
	}

	e.observer.OnWorkflowSuspended(ctx, subj, step)
	return api.AdvanceResult{Outcome: api.OutcomeSuspended, Step: step}, nil
}

// runStep executes one side-effecting step under the retry policy. Each
// attempt transitions the step to in_progress before the side effect fires;
// a transient failure parks it at retry with backoff, exhaustion marks it
// failed and halts the pipeline.
func (e *engineImpl) runStep(ctx context.Context, subj *api.Subject, step api.StepName) (api.AdvanceResult, error) {
	handler := e.handlers[step]
	if handler == nil {
		return api.AdvanceResult{}, fmt.Errorf("run step: no handler for %s", step)
	}

	if !preconditionsMet(&subj.Record, step) {
		err := fmt.Errorf("%w: %s fired with incomplete predecessors", api.ErrPreconditionViolated, step)
		if _, uerr := e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
			st := s.Record.Step(step)
			st.Status = api.StatusFailed
			st.Err = err.Error()
			return nil
		}); uerr != nil {
			return api.AdvanceResult{}, uerr
		}
		e.appendEvent(ctx, subj.ID, api.EventStepFailed, step, err.Error())
		e.observer.OnWorkflowFailed(ctx, subj, step, err)
		return api.AdvanceResult{Outcome: api.OutcomeFailed, Step: step, Err: err}, nil
	}

	maxAttempts := e.retry.MaxAttempts
	backoff := e.retry.InitialBackoff
	multiplier := e.retry.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	// A step recovered from a crash resumes with its attempt count intact.
	startAttempt := subj.Record.Step(step).Attempts + 1
	if startAttempt > maxAttempts {
		startAttempt = maxAttempts
	}

	var lastErr error

	for attempt := startAttempt; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			_, _ = e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
				st := s.Record.Step(step)
				if st.Status == api.StatusInProgress {
					st.Status = api.StatusRetry
				}
				return nil
			})
			return api.AdvanceResult{}, ctx.Err()
		default:
		}

		_, err := e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
			st := s.Record.Step(step)
			st.Status = api.StatusInProgress
			st.Attempts = attempt
			if st.StartedAt.IsZero() {
				st.StartedAt = time.Now().UTC()
			}
			return nil
		})
		if err != nil {
			return api.AdvanceResult{}, fmt.Errorf("run step %s: %w", step, err)
		}

		e.appendEvent(ctx, subj.ID, api.EventStepStarted, step, fmt.Sprintf("attempt=%d", attempt))
		e.observer.OnStepStart(ctx, subj, step)

		started := time.Now()
		stepErr := handler(ctx, subj.ID)
		duration := time.Since(started)

		e.observer.OnStepCompleted(ctx, subj, step, stepErr, duration)

		if stepErr == nil {
			e.appendEvent(ctx, subj.ID, api.EventStepCompleted, step, "")
			return api.AdvanceResult{Outcome: api.OutcomeAdvanced, Step: step}, nil
		}
		lastErr = stepErr

		if attempt == maxAttempts {
			break
		}

		_, err = e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
			st := s.Record.Step(step)
			st.Status = api.StatusRetry
			st.Err = stepErr.Error()
			return nil
		})
		if err != nil {
			return api.AdvanceResult{}, fmt.Errorf("run step %s: %w", step, err)
		}

		select {
		case <-ctx.Done():
			return api.AdvanceResult{}, ctx.Err()
		case <-time.After(backoff):
		}

		next := time.Duration(float64(backoff) * multiplier)
		if e.retry.MaxBackoff > 0 && next > e.retry.MaxBackoff {
			next = e.retry.MaxBackoff
		}
		backoff = next
	}

	_, err := e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
		st := s.Record.Step(step)
		st.Status = api.StatusFailed
		st.Err = lastErr.Error()
		return nil
	})
	if err != nil {
		return api.AdvanceResult{}, fmt.Errorf("run step %s: %w", step, err)
	}

	e.appendEvent(ctx, subj.ID, api.EventStepFailed, step, lastErr.Error())
	e.appendEvent(ctx, subj.ID, api.EventWorkflowFailed, step, lastErr.Error())
	e.observer.OnWorkflowFailed(ctx, subj, step, lastErr)

	return api.AdvanceResult{Outcome: api.OutcomeFailed, Step: step, Err: lastErr}, nil
}

// documentHandler dispatches one document for signature. The tracking id
// returned by the signing service is persisted in the same write that
// completes the step, so a re-run after a crash can tell whether the
// document already went out.
func (e *engineImpl) documentHandler(kind api.DocumentKind) stepHandler {
	step := kind.SentStep()

	return func(ctx context.Context, subjectID string) error {
		subj, err := e.subjects.GetSubject(ctx, subjectID)
		if err != nil {
			return err
		}

		state := subj.Record.Step(step)
		if state.TrackingID != "" {
			// Dispatched on an earlier attempt; finish the bookkeeping.
			_, err := e.subjects.UpdateSubject(ctx, subjectID, func(s *api.Subject) error {
				markCompleted(s.Record.Step(step))
				return nil
			})
			return err
		}

		res, err := e.signer.Send(ctx, subjectID, kind, subj.Email)
		if err != nil {
			return err
		}

		_, err = e.subjects.UpdateSubject(ctx, subjectID, func(s *api.Subject) error {
			st := s.Record.Step(step)
			st.TrackingID = res.TrackingID
			st.SigningURL = res.SigningURL
			markCompleted(st)
			return nil
		})
		if err != nil {
			return err
		}

		e.deliverEmail(ctx, subj, mailer.TemplateDocumentReady, mailer.TemplateData{
			Name:       subj.Name,
			Document:   kind.DisplayName(),
			SigningURL: res.SigningURL,
		})
		return nil
	}
}
