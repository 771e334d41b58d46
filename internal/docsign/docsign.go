package docsign

import (
	"context"
	"fmt"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// SendResult is what the signing service hands back for a dispatched
// document. TrackingID is the service's reference for the envelope and is
// later echoed by status webhooks; SigningURL is where the recipient signs.
type SendResult struct {
	TrackingID string
	SigningURL string

	// Simulated is set when the result was produced locally because the
	// signing service could not be reached.
	Simulated bool
}

// Client dispatches documents for signature.
type Client interface {
	Send(ctx context.Context, subjectID string, kind api.DocumentKind, recipient string) (SendResult, error)
}

// catalogID maps a document kind to the id the signing service files the
// template under.
func catalogID(kind api.DocumentKind) string {
	switch kind {
	case api.DocumentPolicy:
		return "company_policy"
	case api.DocumentNDA:
		return "nda_policy"
	case api.DocumentGuidelines:
		return "dev_guidelines"
	}
	return string(kind)
}

// Simulator is a Client that never talks to a signing service. Every send
// succeeds with a locally generated tracking id, which keeps the pipeline
// moving in development and in tests.
type Simulator struct {
	// BaseURL is only used to shape the signing URLs. Defaults to
	// DefaultBaseURL when empty.
	BaseURL string
}

var _ Client = (*Simulator)(nil)

// Send returns a simulated result for the document.
func (s *Simulator) Send(ctx context.Context, subjectID string, kind api.DocumentKind, recipient string) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}
	if !kind.Valid() {
		return SendResult{}, fmt.Errorf("docsign: unknown document kind %q", kind)
	}

	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return simulatedResult(base, kind, time.Now()), nil
}

// simulatedResult builds the local stand-in used when the signing service
// is unavailable. The ids are recognisable on sight so a simulated run is
// never mistaken for a real one.
func simulatedResult(baseURL string, kind api.DocumentKind, now time.Time) SendResult {
	catalog := catalogID(kind)
	return SendResult{
		TrackingID: fmt.Sprintf("sim_%s_%d", catalog, now.Unix()),
		SigningURL: fmt.Sprintf("%s/sign/simulated_%s", baseURL, catalog),
		Simulated:  true,
	}
}
