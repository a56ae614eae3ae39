package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// LogSMSSender writes messages to the log instead of delivering them. It is
// the default sender when no gateway is configured.
type LogSMSSender struct {
	logger zerolog.Logger
}

func NewLogSMSSender(logger zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger.With().Str("component", "sms").Logger()}
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().Str("to", maskPhone(to)).Int("length", len(body)).Msg("sms delivered to log")
	return nil
}

// WebhookSMSSender posts messages as JSON to an HTTP gateway.
type WebhookSMSSender struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookSMSSender creates a sender for the gateway at url. The token, if
// set, is sent as a bearer credential.
func NewWebhookSMSSender(url, token string, client *http.Client) *WebhookSMSSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookSMSSender{url: url, token: token, client: client}
}

type smsPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *WebhookSMSSender) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsPayload{To: to, Body: body})
	if err != nil {
		return fmt.Errorf("encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}

// SentSMS is a message captured by MockSMSSender.
type SentSMS struct {
	To   string
	Body string
}

// MockSMSSender records every SMS for testing.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SentSMS
	ShouldFail bool
	FailError  error
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SentSMS{To: to, Body: body})
	if m.ShouldFail {
		if m.FailError != nil {
			return m.FailError
		}
		return fmt.Errorf("mock sms send failure")
	}
	return nil
}

// SetFailing toggles failure under the lock so tests can flip it between calls.
func (m *MockSMSSender) SetFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = fail
}

// Calls returns a copy of the recorded calls.
func (m *MockSMSSender) Calls() []SentSMS {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentSMS, len(m.calls))
	copy(out, m.calls)
	return out
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return "****" + p[len(p)-4:]
}
