package docsign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/petrijr/aboard/pkg/api"
)

const (
	// DefaultBaseURL is the hosted signing service.
	DefaultBaseURL = "https://doc-esign.onrender.com"

	// DefaultTimeout bounds a single send request.
	DefaultTimeout = 30 * time.Second

	defaultSenderEmail = "hr@company.com"
	defaultSenderName  = "HR Department"
)

// Config carries the settings for an HTTPClient. Zero values fall back to
// the defaults above.
type Config struct {
	// BaseURL is the signing service root, without a trailing slash.
	BaseURL string

	// WebhookBaseURL is where the signing service should deliver document
	// and quiz status callbacks. Sent verbatim with every request.
	WebhookBaseURL string

	// SenderEmail and SenderName identify the requesting party on the
	// signing request.
	SenderEmail string
	SenderName  string

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// Retry controls how often a transient failure is retried before the
	// client falls back to a simulated result.
	Retry api.RetryPolicy
}

// HTTPClient sends documents through the external signing service. Transient
// failures (network errors, 5xx responses) are retried with exponential
// backoff; once attempts are exhausted the client degrades to a simulated
// result instead of failing the pipeline.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the signing service at cfg.BaseURL.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SenderEmail == "" {
		cfg.SenderEmail = defaultSenderEmail
	}
	if cfg.SenderName == "" {
		cfg.SenderName = defaultSenderName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = api.DefaultRetryPolicy()
	}

	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type sendRequest struct {
	DocumentID     string `json:"document_id"`
	SenderEmail    string `json:"sender_email"`
	SenderName     string `json:"sender_name"`
	ReceiverEmail  string `json:"receiver_email"`
	Purpose        string `json:"purpose"`
	EmployeeID     string `json:"employee_id"`
	WebhookBaseURL string `json:"webhook_base_url"`
}

type sendResponse struct {
	Data struct {
		TrackingID string `json:"tracking_id"`
		Status     string `json:"status"`
		SigningURL string `json:"signing_url"`
	} `json:"data"`
}

// Send posts a signing request for the given document. The returned
// TrackingID must be stored before the step is considered done; it is the
// only link between a later webhook and this dispatch.
func (c *HTTPClient) Send(ctx context.Context, subjectID string, kind api.DocumentKind, recipient string) (SendResult, error) {
	if !kind.Valid() {
		return SendResult{}, fmt.Errorf("docsign: unknown document kind %q", kind)
	}
	if recipient == "" {
		return SendResult{}, fmt.Errorf("docsign: empty recipient")
	}

	body, err := json.Marshal(sendRequest{
		DocumentID:     catalogID(kind),
		SenderEmail:    c.cfg.SenderEmail,
		SenderName:     c.cfg.SenderName,
		ReceiverEmail:  recipient,
		Purpose:        "Please review and sign the " + kind.DisplayName(),
		EmployeeID:     subjectID,
		WebhookBaseURL: c.cfg.WebhookBaseURL,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("docsign: encode request: %w", err)
	}

	var result SendResult

	backoff := retry.NewExponential(c.cfg.Retry.InitialBackoff)
	if c.cfg.Retry.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(c.cfg.Retry.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(uint64(c.cfg.Retry.MaxAttempts-1), backoff)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, attemptErr := c.attempt(ctx, body)
		if attemptErr != nil {
			return attemptErr
		}
		result = res
		return nil
	})
	if err != nil {
		// Cancellation is the caller's decision; everything else degrades
		// to the local stand-in so onboarding keeps moving.
		if ctx.Err() != nil {
			return SendResult{}, ctx.Err()
		}
		return simulatedResult(c.cfg.BaseURL, kind, time.Now()), nil
	}

	return result, nil
}

// attempt performs one HTTP round trip. Network errors and 5xx responses
// come back wrapped as retryable; anything else is permanent.
func (c *HTTPClient) attempt(ctx context.Context, body []byte) (SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/send-document", bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("docsign: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return SendResult{}, retry.RetryableError(fmt.Errorf("docsign: send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return SendResult{}, retry.RetryableError(fmt.Errorf("docsign: service returned %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{}, fmt.Errorf("docsign: service returned %d", resp.StatusCode)
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return SendResult{}, fmt.Errorf("docsign: decode response: %w", err)
	}
	if decoded.Data.TrackingID == "" {
		return SendResult{}, fmt.Errorf("docsign: response missing tracking id")
	}

	return SendResult{
		TrackingID: decoded.Data.TrackingID,
		SigningURL: decoded.Data.SigningURL,
	}, nil
}
