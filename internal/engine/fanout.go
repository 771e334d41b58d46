package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/petrijr/aboard/internal/mailer"
	"github.com/petrijr/aboard/pkg/api"
)

// finalGates are the six confirmations that must all be recorded before
// provisioning may fire: three signatures and three quiz passes.
var finalGates = []api.StepName{
	api.StepPolicySigned,
	api.StepPolicyQuizPassed,
	api.StepNDASigned,
	api.StepNDAQuizPassed,
	api.StepGuidelinesSigned,
	api.StepGuidelinesQuizPassed,
}

func finalGatesSatisfied(rec *api.StepRecord) bool {
	for _, gate := range finalGates {
		if !GateSatisfied(rec, gate) {
			return false
		}
	}
	return true
}

// runFinalTasks executes the three provisioning steps concurrently and
// joins on all of them. The tasks are isolated: one failing is recorded on
// its own step and never cancels the others. The terminal marker is set
// once the fan-out returns, whatever the per-task outcomes, so the subject
// reaches completed even with a provisioning error on record.
func (e *engineImpl) runFinalTasks(ctx context.Context, subjectID string) (api.AdvanceResult, error) {
	subj, err := e.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return api.AdvanceResult{}, fmt.Errorf("final tasks: %w", err)
	}

	// Re-verified here even though Advance only dispatches after the nine
	// linear steps; the caller's gate check is never trusted alone.
	if !finalGatesSatisfied(&subj.Record) {
		verr := fmt.Errorf("%w: final fan-out with unsatisfied gates", api.ErrPreconditionViolated)
		e.appendEvent(ctx, subjectID, api.EventWorkflowFailed, "", verr.Error())
		e.observer.OnWorkflowFailed(ctx, subj, "", verr)
		return api.AdvanceResult{Outcome: api.OutcomeFailed, Err: verr}, nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[api.StepName]bool, len(api.FinalSteps))
	)

	for _, step := range api.FinalSteps {
		if subj.Record.Step(step).Status == api.StatusCompleted {
			results[step] = true
			continue
		}

		wg.Add(1)
		go func(step api.StepName) {
			defer wg.Done()
			taskErr := e.runFinalTask(ctx, subj, step)
			mu.Lock()
			results[step] = taskErr == nil
			mu.Unlock()
		}(step)
	}
	wg.Wait()

	var freshlyCompleted bool
	subj, err = e.subjects.UpdateSubject(ctx, subjectID, func(s *api.Subject) error {
		if s.Record.CompletedAt.IsZero() {
			s.Record.CompletedAt = time.Now().UTC()
			freshlyCompleted = true
		}
		return nil
	})
	if err != nil {
		return api.AdvanceResult{}, fmt.Errorf("final tasks: %w", err)
	}

	e.appendEvent(ctx, subjectID, api.EventWorkflowCompleted, "", finalSummary(results))
	e.observer.OnWorkflowCompleted(ctx, subj)

	if freshlyCompleted {
		e.deliverEmail(ctx, subj, mailer.TemplateComplete, mailer.TemplateData{
			Name: subj.Name,
		})
	}

	return api.AdvanceResult{Outcome: api.OutcomeCompleted}, nil
}

// runFinalTask runs one provisioning step with the same status discipline
// as the linear steps but without the retry ladder: the mail transport
// retries transient errors itself, and a task that still fails is left
// failed on its own step without blocking the join.
func (e *engineImpl) runFinalTask(ctx context.Context, subj *api.Subject, step api.StepName) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("final task %s panicked: %v", step, r)
			_, _ = e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
				st := s.Record.Step(step)
				st.Status = api.StatusFailed
				st.Err = err.Error()
				return nil
			})
			e.logger.ErrorContext(ctx, "final_task_panic",
				"subject_id", subj.ID, "step", string(step), "panic", r)
		}
	}()

	_, err = e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
		st := s.Record.Step(step)
		st.Status = api.StatusInProgress
		st.Attempts++
		if st.StartedAt.IsZero() {
			st.StartedAt = time.Now().UTC()
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.appendEvent(ctx, subj.ID, api.EventStepStarted, step, "")
	e.observer.OnStepStart(ctx, subj, step)

	started := time.Now()
	taskErr := e.handlers[step](ctx, subj.ID)
	duration := time.Since(started)

	e.observer.OnStepCompleted(ctx, subj, step, taskErr, duration)

	if taskErr != nil {
		_, _ = e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
			st := s.Record.Step(step)
			st.Status = api.StatusFailed
			st.Err = taskErr.Error()
			return nil
		})
		e.appendEvent(ctx, subj.ID, api.EventStepFailed, step, taskErr.Error())
		return taskErr
	}

	e.appendEvent(ctx, subj.ID, api.EventStepCompleted, step, "")
	return nil
}

// finalEmailHandler builds the handler for one provisioning step. Unlike
// the notification emails, the send here is the provisioning action
// itself, so its failure fails the step instead of being swallowed.
func (e *engineImpl) finalEmailHandler(step api.StepName, template string) stepHandler {
	return func(ctx context.Context, subjectID string) error {
		subj, err := e.subjects.GetSubject(ctx, subjectID)
		if err != nil {
			return err
		}

		data := mailer.TemplateData{
			Name:       subj.Name,
			Role:       subj.Role,
			Department: subj.Department,
		}
		if step == api.StepCallSchedule {
			data.CalendarURL = e.calendarURL
		}

		msg, err := mailer.Compose(template, subj.Email, data)
		if err != nil {
			return err
		}

		sendErr := e.mailer.Send(ctx, msg)

		_, uerr := e.subjects.UpdateSubject(ctx, subjectID, func(s *api.Subject) error {
			s.LogEmail(template, msg.Subject, sendErr)
			if sendErr == nil {
				markCompleted(s.Record.Step(step))
			}
			return nil
		})
		if uerr != nil {
			return uerr
		}

		if sendErr != nil {
			e.appendEvent(ctx, subjectID, api.EventEmailFailed, step,
				fmt.Sprintf("template=%s error=%v", template, sendErr))
			return sendErr
		}
		e.appendEvent(ctx, subjectID, api.EventEmailSent, step, "template="+template)
		return nil
	}
}

// finalSummary renders the per-task outcome map in pipeline order.
func finalSummary(results map[api.StepName]bool) string {
	parts := make([]string, 0, len(api.FinalSteps))
	for _, step := range api.FinalSteps {
		ok, seen := results[step]
		if !seen {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%t", step, ok))
	}
	return strings.Join(parts, " ")
}
