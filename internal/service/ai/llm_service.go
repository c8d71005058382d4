package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/camwood/camwood-site/backend/internal/config"
	"github.com/camwood/camwood-site/backend/internal/model/chat"
)

// Sleeper waits between attempts. Implementations must return early when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusError reports a non-2xx generateContent response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generateContent returned status %d: %s", e.Code, e.Body)
}

// ErrUndecodableBody is returned for a 2xx response whose body is not JSON. It is retried.
var ErrUndecodableBody = errors.New("generateContent returned a non-JSON body")

// Option customizes a Responder.
type Option func(*Responder)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Responder) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithSleeper replaces the timer used for backoff waits.
func WithSleeper(s Sleeper) Option {
	return func(r *Responder) {
		if s != nil {
			r.sleeper = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Responder is the generative fallback used when no knowledge entry matches.
// It never returns an error: every failure collapses to ("", false).
type Responder struct {
	apiKey         string
	model          string
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	httpClient     *http.Client
	sleeper        Sleeper
	logger         *zap.Logger
}

// NewResponder creates a Gemini backed responder from cfg.
func NewResponder(cfg config.AssistantConfig, opts ...Option) *Responder {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultGeminiModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultGeminiBaseURL
	}

	r := &Responder{
		apiKey:         cfg.APIKey,
		model:          model,
		baseURL:        baseURL,
		maxAttempts:    maxAttempts,
		initialBackoff: backoff,
		httpClient:     &http.Client{Timeout: timeout},
		sleeper:        timerSleeper{},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("ai")
	return r
}

// Enabled reports whether a credential is configured.
func (r *Responder) Enabled() bool {
	return r != nil && r.apiKey != ""
}

// Generate asks the model to answer userMessage given the prior conversation.
func (r *Responder) Generate(ctx context.Context, userMessage, systemInstruction string, history []chat.Message) (string, bool) {
	if !r.Enabled() {
		return "", false
	}

	body, err := sonic.Marshal(BuildRequest(userMessage, systemInstruction, history))
	if err != nil {
		r.logger.Error("failed to encode generateContent request", zap.Error(err))
		return "", false
	}

	endpoint := r.endpoint()
	delay := r.initialBackoff
	startTime := time.Now()

	for attempt := 1; ; attempt++ {
		result, err := r.send(ctx, endpoint, body)
		if err == nil {
			if result.Kind != Success {
				r.logger.Warn("generateContent returned no usable text",
					zap.String("result", result.Kind.String()),
					zap.Int("attempt", attempt))
				return "", false
			}
			r.logger.Info("generated response",
				zap.String("model", r.model),
				zap.Int("attempt", attempt),
				zap.Int("length", len(result.Text)),
				zap.Duration("elapsed", time.Since(startTime)))
			return result.Text, true
		}

		if ctx.Err() != nil {
			r.logger.Info("generateContent cancelled", zap.Error(ctx.Err()))
			return "", false
		}
		if attempt >= r.maxAttempts {
			r.logger.Warn("generateContent failed, attempts exhausted",
				zap.Int("attempts", attempt),
				zap.Duration("elapsed", time.Since(startTime)),
				zap.Error(err))
			return "", false
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
			r.logger.Warn("rate limited, backing off", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		} else {
			r.logger.Warn("generateContent attempt failed, retrying",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		}

		if err := r.sleeper.Sleep(ctx, delay); err != nil {
			return "", false
		}
		delay *= 2
	}
}

func (r *Responder) endpoint() string {
	query := url.Values{}
	query.Set("key", r.apiKey)
	return fmt.Sprintf("%s/models/%s:generateContent?%s", r.baseURL, url.PathEscape(r.model), query.Encode())
}

// send performs one attempt. A nil error means the server answered 2xx with a JSON body.
func (r *Responder) send(ctx context.Context, endpoint string, body []byte) (ParseResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ParseResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return ParseResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return ParseResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResult{}, &StatusError{Code: resp.StatusCode, Body: truncate(string(payload), 256)}
	}
	if !sonic.Valid(payload) {
		return ParseResult{}, fmt.Errorf("%w: %s", ErrUndecodableBody, truncate(string(payload), 256))
	}

	return ParseResponse(payload), nil
}

// Content is one turn of a generateContent request.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part holds the text of a turn.
type Part struct {
	Text string `json:"text"`
}

// Request is the generateContent request body.
type Request struct {
	Contents          []Content `json:"contents"`
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
}

// BuildRequest converts the conversation into generateContent turns, appending userMessage last.
func BuildRequest(userMessage, systemInstruction string, history []chat.Message) Request {
	messages := buildHistoryMessages(history)
	messages = append(messages, schema.UserMessage(userMessage))

	contents := make([]Content, 0, len(messages))
	for _, msg := range messages {
		contents = append(contents, Content{
			Role:  geminiRole(msg.Role),
			Parts: []Part{{Text: msg.Content}},
		})
	}

	req := Request{Contents: contents}
	if systemInstruction != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: systemInstruction}}}
	}
	return req
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		// Earlier generated answers are never sent back to the model.
		if msg.Kind == chat.KindGenerated || IsGenerated(msg.Text) {
			continue
		}
		if msg.IsFromAssistant {
			history = append(history, schema.AssistantMessage(msg.Text, nil))
			continue
		}
		history = append(history, schema.UserMessage(msg.Text))
	}
	return history
}

func geminiRole(role schema.RoleType) string {
	if role == schema.Assistant {
		return "model"
	}
	return "user"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
