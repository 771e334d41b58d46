package aboard

import (
	"github.com/petrijr/aboard/pkg/api"
)

// Step name re-exports. The pipeline is fixed: three document rounds of
// sent/signed/quiz_passed, then three unordered provisioning steps.

const (
	StepPolicySent           = api.StepPolicySent
	StepPolicySigned         = api.StepPolicySigned
	StepPolicyQuizPassed     = api.StepPolicyQuizPassed
	StepNDASent              = api.StepNDASent
	StepNDASigned            = api.StepNDASigned
	StepNDAQuizPassed        = api.StepNDAQuizPassed
	StepGuidelinesSent       = api.StepGuidelinesSent
	StepGuidelinesSigned     = api.StepGuidelinesSigned
	StepGuidelinesQuizPassed = api.StepGuidelinesQuizPassed
	StepSlackInvite          = api.StepSlackInvite
	StepJiraAccess           = api.StepJiraAccess
	StepCallSchedule         = api.StepCallSchedule
)

// TotalSteps is the number of steps in the pipeline.
const TotalSteps = api.TotalSteps

// Document kind re-exports. The same values identify the comprehension
// quiz attached to each document.

const (
	DocumentPolicy     = api.DocumentPolicy
	DocumentNDA        = api.DocumentNDA
	DocumentGuidelines = api.DocumentGuidelines
)

// StepOrder returns the fixed precedence order of the pipeline.
func StepOrder() []StepName {
	out := make([]StepName, len(api.StepOrder))
	copy(out, api.StepOrder)
	return out
}

// FinalSteps returns the terminal provisioning steps executed concurrently.
func FinalSteps() []StepName {
	out := make([]StepName, len(api.FinalSteps))
	copy(out, api.FinalSteps)
	return out
}

// StepIndex returns the position of step in the pipeline, or -1 for an
// unknown step name.
func StepIndex(step StepName) int {
	return api.StepIndex(step)
}

// IsGateStep reports whether step completes only via an external event.
func IsGateStep(step StepName) bool {
	return api.IsGateStep(step)
}

// IsFinalStep reports whether step is one of the unordered terminal steps.
func IsFinalStep(step StepName) bool {
	return api.IsFinalStep(step)
}

// DocumentForStep maps a step back to the document it belongs to.
// The second return is false for the provisioning steps.
func DocumentForStep(step StepName) (DocumentKind, bool) {
	return api.DocumentForStep(step)
}
