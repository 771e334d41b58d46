package persistence

import (
	"testing"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

func TestCodec_StepRecordRoundtrip(t *testing.T) {
	rec := api.NewStepRecord()
	rec.Step(api.StepPolicySent).Status = api.StatusCompleted
	rec.Step(api.StepPolicySent).TrackingID = "track-9"
	rec.Step(api.StepPolicySigned).Status = api.StatusWaiting
	rec.StartedAt = time.Now().Add(-time.Hour)

	data, err := encodeValue(rec)
	if err != nil {
		t.Fatalf("encodeValue failed: %v", err)
	}

	got, err := decodeValue[api.StepRecord](data)
	if err != nil {
		t.Fatalf("decodeValue failed: %v", err)
	}

	if got.Step(api.StepPolicySent).Status != api.StatusCompleted {
		t.Fatalf("status lost: %+v", got.Step(api.StepPolicySent))
	}
	if got.Step(api.StepPolicySent).TrackingID != "track-9" {
		t.Fatalf("tracking id lost")
	}
	if got.Step(api.StepPolicySigned).Status != api.StatusWaiting {
		t.Fatalf("waiting status lost")
	}
	if !got.StartedAt.Equal(rec.StartedAt) {
		t.Fatalf("StartedAt mismatch: %v vs %v", got.StartedAt, rec.StartedAt)
	}
}

func TestCodec_AttemptsRoundtrip(t *testing.T) {
	attempts := map[api.DocumentKind][]api.QuizAttempt{
		api.DocumentNDA: {
			{Score: 40, Passed: false, At: time.Now().Add(-time.Minute)},
			{Score: 95, Passed: true, At: time.Now()},
		},
	}

	data, err := encodeValue(attempts)
	if err != nil {
		t.Fatalf("encodeValue failed: %v", err)
	}

	got, err := decodeValue[map[api.DocumentKind][]api.QuizAttempt](data)
	if err != nil {
		t.Fatalf("decodeValue failed: %v", err)
	}

	if len(got[api.DocumentNDA]) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(got[api.DocumentNDA]))
	}
	if !got[api.DocumentNDA][1].Passed || got[api.DocumentNDA][1].Score != 95 {
		t.Fatalf("attempt fields lost: %+v", got[api.DocumentNDA][1])
	}
}

func TestCodec_EmptyDataYieldsZero(t *testing.T) {
	rec, err := decodeValue[api.StepRecord](nil)
	if err != nil {
		t.Fatalf("decodeValue(nil) failed: %v", err)
	}
	if rec.Steps != nil {
		t.Fatalf("expected zero record, got %+v", rec)
	}

	attempts, err := decodeValue[map[api.DocumentKind][]api.QuizAttempt](nil)
	if err != nil {
		t.Fatalf("decodeValue(nil) failed: %v", err)
	}
	if attempts != nil {
		t.Fatalf("expected nil map, got %+v", attempts)
	}
}
