// Package notify delivers run outcomes to a caller-supplied callback URL.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	defaultDelay    = time.Second
	userAgent       = "clipper-callback/1.0"
)

// ErrInvalidURL is returned by ValidateURL.
var ErrInvalidURL = errors.New("invalid callback url")

// Payload is the JSON body POSTed to the callback URL.
type Payload struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	VideoID    string    `json:"video_id,omitempty"`
	VideoLink  string    `json:"video_link,omitempty"`
	Message    string    `json:"message,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// DeliveryError is a non-2xx response from the callback receiver.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("callback delivery failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx)
// are permanent.
func (e *DeliveryError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// Sender POSTs payloads with a per-attempt timeout and retries server
// errors a few times.
type Sender struct {
	client   *http.Client
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	return &Sender{
		client:   &http.Client{Timeout: defaultTimeout},
		attempts: defaultAttempts,
		delay:    defaultDelay,
		logger:   logger,
	}
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// Send delivers p to callbackURL, blocking until success or the attempts
// run out.
func (s *Sender) Send(ctx context.Context, callbackURL string, p Payload) error {
	if err := ValidateURL(callbackURL); err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	return retry.Do(
		func() error { return s.post(ctx, callbackURL, body) },
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
}

// Deliver is Send with the outcome logged instead of returned.
func (s *Sender) Deliver(ctx context.Context, callbackURL string, p Payload) {
	if err := s.Send(ctx, callbackURL, p); err != nil {
		s.logger.Warn("callback delivery failed", "run_id", p.RunID, "url", callbackURL, "error", err)
		return
	}
	s.logger.Info("callback delivered", "run_id", p.RunID, "url", callbackURL)
}

func (s *Sender) post(ctx context.Context, callbackURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &DeliveryError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

func isRetryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.IsRetryable()
	}
	// transport errors
	return true
}
