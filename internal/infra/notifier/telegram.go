package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"relwatch/internal/domain/entity"
	"relwatch/internal/resilience/circuitbreaker"
	"relwatch/internal/resilience/retry"
)

// DefaultAPIBaseURL is the production Telegram Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// TelegramConfig contains configuration for Telegram bot notifications.
type TelegramConfig struct {
	// Enabled indicates whether Telegram notifications are enabled.
	Enabled bool

	// BotToken is the bot authentication token.
	BotToken string

	// ChatID is the destination chat identifier.
	ChatID string

	// ThreadID is an optional forum topic (thread) id; zero means none.
	ThreadID int

	// APIBaseURL overrides the API endpoint, mainly for tests. Empty
	// selects DefaultAPIBaseURL.
	APIBaseURL string

	// Timeout is the HTTP request timeout for API calls.
	Timeout time.Duration

	// MaxNotes bounds the note lines rendered per message. Zero selects
	// DefaultMaxNotes.
	MaxNotes int
}

// TelegramNotifier sends release notifications via the Telegram Bot API.
// The send pipeline is: sliding-window acquire, pacer wait, circuit-breaker
// execute, retry with backoff.
type TelegramNotifier struct {
	config     TelegramConfig
	httpClient *http.Client
	window     *SlidingWindowLimiter
	pacer      *Pacer
	breaker    *circuitbreaker.CircuitBreaker
	policy     retry.Policy
}

// NewTelegramNotifier creates a TelegramNotifier wired to the given
// circuit breaker. The limiter allows 20 sends per sliding minute and the
// pacer spaces requests at 1/s, matching the API's per-destination limits.
func NewTelegramNotifier(config TelegramConfig, breaker *circuitbreaker.CircuitBreaker) *TelegramNotifier {
	if config.APIBaseURL == "" {
		config.APIBaseURL = DefaultAPIBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		window:     NewSlidingWindowLimiter(20, time.Minute),
		pacer:      NewPacer(1.0, 1),
		breaker:    breaker,
		policy:     NotifyPolicy{},
	}
}

// sendMessageRequest is the JSON payload for the sendMessage method.
type sendMessageRequest struct {
	ChatID          string `json:"chat_id"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode"`
	MessageThreadID int    `json:"message_thread_id,omitempty"`
	DisablePreview  bool   `json:"disable_web_page_preview"`
}

// apiResponse is the envelope every Bot API call returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// NotifyRelease implements Notifier.
func (t *TelegramNotifier) NotifyRelease(ctx context.Context, release *entity.Release) error {
	if release == nil || release.Version == "" {
		return &entity.ValidationError{Field: "version", Message: "release is missing a version identifier"}
	}

	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	slog.Info("starting release notification",
		slog.String("request_id", requestID),
		slog.String("version", release.Version))

	if err := t.window.Acquire(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if err := t.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("pacer: %w", err)
	}

	text := buildMessage(release, t.config.MaxNotes)

	_, err := t.breaker.Execute(func() (interface{}, error) {
		return nil, retry.Do(ctx, t.policy, func() error {
			return t.sendMessage(ctx, text)
		})
	})
	if err != nil {
		slog.Error("release notification failed",
			slog.String("request_id", requestID),
			slog.String("version", release.Version),
			slog.Any("error", err))
		return err
	}

	slog.Info("release notification sent",
		slog.String("request_id", requestID),
		slog.String("version", release.Version))
	return nil
}

// sendMessage performs one sendMessage call and classifies the response.
func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	payload := sendMessageRequest{
		ChatID:          t.config.ChatID,
		Text:            text,
		ParseMode:       "MarkdownV2",
		MessageThreadID: t.config.ThreadID,
		DisablePreview:  true,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.config.APIBaseURL, t.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    "telegram rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("telegram API client error: %s", apiDescription(body)),
		}
	}
	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("telegram API server error: %s", apiDescription(body)),
		}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// extractRetryAfter reads the server's retry-after hint from the response
// body (parameters.retry_after) or the Retry-After header, falling back to
// a small default so the retry policy always has something to honor.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Parameters.RetryAfter > 0 {
		return time.Duration(parsed.Parameters.RetryAfter) * time.Second
	}
	if header := resp.Header.Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

// apiDescription pulls the human-readable description out of an error
// response, falling back to the raw body.
func apiDescription(body []byte) string {
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Description != "" {
		return parsed.Description
	}
	return string(body)
}

// NotifyPolicy is the retry policy for the notification channel: 5xx and
// rate-limit responses retry, other 4xx do not, and the delay honors the
// server-provided retry-after when one is present.
type NotifyPolicy struct{}

func (NotifyPolicy) MaxAttempts() int { return 3 }

func (NotifyPolicy) ShouldRetry(err error, _ int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if _, ok := asRateLimitError(err); ok {
		return true
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	var validationErr *entity.ValidationError
	if errors.As(err, &validationErr) {
		return false
	}
	// Network errors and other transport failures are retryable.
	return true
}

func (NotifyPolicy) Delay(attempt int, err error) time.Duration {
	if rateLimitErr, ok := asRateLimitError(err); ok && rateLimitErr.RetryAfter > 0 {
		return rateLimitErr.RetryAfter
	}
	delay := time.Second << uint(attempt-1)
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	return delay
}
