package httpapi

import (
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// employeeView is the listing shape for one subject.
type employeeView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role,omitempty"`
	Department string    `json:"department,omitempty"`
	StartDate  string    `json:"start_date,omitempty"`
	ThreadID   string    `json:"thread_id,omitempty"`
	Progress   float64   `json:"progress"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// employeeDetailView adds the per-step record and quiz history to the
// listing shape.
type employeeDetailView struct {
	employeeView
	Steps        map[string]stepView          `json:"steps"`
	QuizAttempts map[string][]quizAttemptView `json:"quiz_attempts,omitempty"`
}

// stepView projects one step of the step-status record.
type stepView struct {
	Status      api.StepStatus `json:"status"`
	Attempts    int            `json:"attempts,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	TrackingID  string         `json:"tracking_id,omitempty"`
	SigningURL  string         `json:"signing_url,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// onboardingStatusView is the by-token workflow status response.
type onboardingStatusView struct {
	ThreadID     string                       `json:"thread_id"`
	EmployeeID   string                       `json:"employee_id"`
	EmployeeName string                       `json:"employee_name"`
	Steps        map[string]stepView          `json:"steps"`
	Progress     float64                      `json:"progress"`
	StartedAt    *time.Time                   `json:"started_at,omitempty"`
	CompletedAt  *time.Time                   `json:"completed_at,omitempty"`
	LastUpdated  time.Time                    `json:"last_updated"`
	QuizAttempts map[string][]quizAttemptView `json:"quiz_attempts,omitempty"`
}

type quizAttemptView struct {
	Score  int       `json:"score"`
	Passed bool      `json:"passed"`
	At     time.Time `json:"at"`
}

type eventView struct {
	ID     int64     `json:"id"`
	Type   string    `json:"type"`
	Step   string    `json:"step,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

func viewOf(subj *api.Subject) employeeView {
	return employeeView{
		ID:         subj.ID,
		Email:      subj.Email,
		Name:       subj.Name,
		Role:       subj.Role,
		Department: subj.Department,
		StartDate:  subj.StartDate,
		ThreadID:   subj.InstanceToken,
		Progress:   subj.Record.Progress(),
		Completed:  subj.Record.Terminal(),
		CreatedAt:  subj.CreatedAt,
		UpdatedAt:  subj.UpdatedAt,
	}
}

func detailViewOf(subj *api.Subject) employeeDetailView {
	return employeeDetailView{
		employeeView: viewOf(subj),
		Steps:        stepsViewOf(&subj.Record),
		QuizAttempts: quizViewOf(subj.QuizAttempts),
	}
}

func stepsViewOf(rec *api.StepRecord) map[string]stepView {
	out := make(map[string]stepView, len(api.StepOrder))
	for _, name := range api.StepOrder {
		st := rec.Step(name)
		out[string(name)] = stepView{
			Status:      st.Status,
			Attempts:    st.Attempts,
			StartedAt:   optTime(st.StartedAt),
			CompletedAt: optTime(st.CompletedAt),
			TrackingID:  st.TrackingID,
			SigningURL:  st.SigningURL,
			Error:       st.Err,
		}
	}
	return out
}

func quizViewOf(attempts map[api.DocumentKind][]api.QuizAttempt) map[string][]quizAttemptView {
	if len(attempts) == 0 {
		return nil
	}
	out := make(map[string][]quizAttemptView, len(attempts))
	for kind, list := range attempts {
		views := make([]quizAttemptView, 0, len(list))
		for _, a := range list {
			views = append(views, quizAttemptView{Score: a.Score, Passed: a.Passed, At: a.At})
		}
		out[string(kind)] = views
	}
	return out
}

// optTime returns nil for the zero time so timestamps that have not
// happened yet are omitted from JSON instead of rendered as year one.
func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
