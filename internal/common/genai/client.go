// Package genai talks to an OpenAI-compatible chat completions endpoint.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"banking-command-workers/internal/common/metrics"
)

var (
	ErrTimeout       = errors.New("GENAI_TIMEOUT")
	ErrRequestFailed = errors.New("GENAI_REQUEST_FAILED")
	ErrEmptyResponse = errors.New("GENAI_EMPTY_RESPONSE")
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Config struct {
	// Purpose labels request metrics, e.g. "extraction".
	Purpose     string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type Client struct {
	config Config
	http   *http.Client
}

func NewClient(config Config) *Client {
	return &Client{
		config: config,
		// deadlines come from the caller's context
		http: &http.Client{},
	}
}

// CompleteJSON sends the messages with response_format json_object and
// returns the content of the first choice. Transport errors and non-200
// replies are retried up to MaxRetries times with exponential backoff.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	content, err := c.complete(ctx, messages)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.GenAIRequestDuration.WithLabelValues(c.config.Purpose, outcome).Observe(time.Since(start).Seconds())
	return content, err
}

func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.config.Model,
		Messages:       messages,
		Temperature:    c.config.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrRequestFailed, err)
	}

	var payload []byte
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrTimeout
			}
		}

		payload, lastErr = c.post(ctx, body)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return "", ErrTimeout
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, lastErr)
	}

	var resp chatResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrRequestFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ExtractJSON strips surrounding whitespace and markdown code fences from a
// model reply.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
