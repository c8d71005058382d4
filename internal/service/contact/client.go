package contact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/camwood/camwood-site/backend/internal/config"
)

var (
	ErrBackendNotConfigured = errors.New("configuration error: the backend address is missing")
	ErrNetwork              = errors.New("a network error occurred, please check your connection")
)

// SubmitError is returned when the backend rejects a submission.
type SubmitError struct {
	Status  int
	Message string
}

func (e *SubmitError) Error() string {
	return "failed to send message: " + e.Message
}

// Client relays submissions to the mail backend. Submissions are not retried.
type Client struct {
	backendURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a relay client from cfg.
func NewClient(cfg config.ContactConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backendURL: cfg.BackendURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("contact"),
	}
}

// Configured reports whether a backend address is set.
func (c *Client) Configured() bool {
	return c.backendURL != ""
}

// Submit validates sub and posts it to {backend}/api/send-email.
func (c *Client) Submit(ctx context.Context, sub Submission) error {
	sub = sub.Normalize()
	if err := sub.Validate(); err != nil {
		return err
	}
	if !c.Configured() {
		c.logger.Error("contact backend url is not set")
		return ErrBackendNotConfigured
	}

	body, err := sonic.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backendURL+"/api/send-email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("contact submission failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		c.logger.Info("contact submission relayed", zap.String("purpose", sub.Purpose))
		return nil
	}

	message := http.StatusText(resp.StatusCode)
	var errBody struct {
		Error string `json:"error"`
	}
	if err := sonic.Unmarshal(payload, &errBody); err == nil && errBody.Error != "" {
		message = errBody.Error
	}
	if message == "" {
		message = "Server error."
	}

	c.logger.Warn("contact backend rejected submission",
		zap.Int("status", resp.StatusCode), zap.String("error", message))
	return &SubmitError{Status: resp.StatusCode, Message: message}
}
