// Package gateway talks to the WhatsApp message gateway: outbound sends and
// fast-path deduplication of inbound webhook deliveries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

const (
	sendAttempts   = 3
	sendBackoff    = 500 * time.Millisecond
	requestTimeout = 10 * time.Second
)

// Sender delivers outbound text through the gateway's HTTP API.
type Sender struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logger.Logger
}

// NewSender creates a gateway sender against baseURL.
func NewSender(baseURL, apiKey string, log *logger.Logger) *Sender {
	return &Sender{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  log,
	}
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// SendText posts one text message and returns the gateway's message id.
// Transient failures (network errors, 5xx, 429) are retried with linear
// backoff; other 4xx responses fail immediately.
func (s *Sender) SendText(ctx context.Context, from, to, body string) (string, error) {
	ctx, span := otel.Tracer("gateway").Start(ctx, "gateway.send_text")
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway.from", from),
		attribute.Int("gateway.body_len", len(body)),
	)

	payload, err := json.Marshal(sendRequest{From: from, To: to, Body: body})
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * sendBackoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		id, retryable, err := s.attempt(ctx, payload)
		if err == nil {
			span.SetAttributes(attribute.Int("gateway.attempts", attempt))
			return id, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		s.logger.Warn("gateway send attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "send failed")
	return "", fmt.Errorf("gateway send: %w", lastErr)
}

func (s *Sender) attempt(ctx context.Context, payload []byte) (id string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", true, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out sendResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", false, fmt.Errorf("decode gateway response: %w", err)
		}
		if out.MessageID == "" {
			return "", false, fmt.Errorf("gateway response missing message_id")
		}
		return out.MessageID, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", true, fmt.Errorf("gateway status %d: %s", resp.StatusCode, raw)
	default:
		return "", false, fmt.Errorf("gateway status %d: %s", resp.StatusCode, raw)
	}
}
