package mailer

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

// WebhookMailer posts messages as JSON to an email delivery hook. Transient
// failures are retried with exponential backoff; exhaustion surfaces as an
// error so the caller can record the failed send.
type WebhookMailer struct {
	url    string
	policy api.RetryPolicy
	client *http.Client
}

var _ Mailer = (*WebhookMailer)(nil)

// NewWebhookMailer builds a mailer posting to the given hook URL.
func NewWebhookMailer(url string, timeout time.Duration, policy api.RetryPolicy) *WebhookMailer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if policy.MaxAttempts <= 0 {
		policy = api.DefaultRetryPolicy()
	}
	return &WebhookMailer{
		url:    url,
		policy: policy,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Content   string `json:"content"`
	Template  string `json:"template"`
	Timestamp string `json:"timestamp"`
}

func (m *WebhookMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}

	body, err := json.Marshal(webhookPayload{
		To:        msg.To,
		Subject:   msg.Subject,
		Content:   msg.Body,
		Template:  msg.Template,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("mailer: encode payload: %w", err)
	}

	backoff := retry.NewExponential(m.policy.InitialBackoff)
	if m.policy.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(m.policy.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(uint64(m.policy.MaxAttempts-1), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("mailer: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("mailer: post: %w", err))
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return retry.RetryableError(fmt.Errorf("mailer: hook returned %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("mailer: hook returned %d", resp.StatusCode)
		}
		return nil
	})
}
