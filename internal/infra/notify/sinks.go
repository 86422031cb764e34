package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"sealtrack/internal/domain"
)

// LogSink writes notifications to the log. It is the fallback when no
// delivery endpoint is configured.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Notify(ctx context.Context, n domain.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification",
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject))
	return nil
}

type WebhookOptions struct {
	Client     *http.Client
	MaxRetries uint64
	Backoff    time.Duration
}

// WebhookSink posts notifications as JSON to an email-sending function.
// Server errors are retried with exponential backoff; client errors are not.
type WebhookSink struct {
	url        string
	client     *http.Client
	maxRetries uint64
	backoff    time.Duration
}

type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewWebhookSink(url string, opts WebhookOptions) *WebhookSink {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &WebhookSink{url: url, client: client, maxRetries: opts.MaxRetries, backoff: backoff}
}

func (s *WebhookSink) Notify(ctx context.Context, n domain.Notification) error {
	if n.Recipient == "" {
		return errors.New("notification recipient is required")
	}
	body, err := json.Marshal(webhookPayload{To: n.Recipient, Subject: n.Subject, Body: n.Body})
	if err != nil {
		return err
	}
	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		switch {
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("webhook returned %d", resp.StatusCode))
		case resp.StatusCode >= 300:
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		return nil
	})
}
