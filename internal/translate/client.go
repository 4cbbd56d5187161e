// Package translate wraps one round-trip to a remote chat-completions
// translation endpoint and classifies its failures.
package translate

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
)

const (
	// DefaultBaseURL is the xAI API base.
	DefaultBaseURL = "https://api.x.ai/v1"
	// DefaultModel is the model used for translation.
	DefaultModel = "grok-3"
	// DefaultTimeout bounds one translation request.
	DefaultTimeout = 30 * time.Second

	maxTokens   = 1500
	temperature = 0.3
)

// Client calls a chat-completions API to translate one text unit per
// request. It performs no retries; that is the retry policy's job.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a translation client. Empty baseURL and model select
// the defaults.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func systemPrompt(sourceLang, targetLang string) string {
	if sourceLang == "" || sourceLang == "auto" {
		return fmt.Sprintf("Translate to %s. Only translation, no explanations.", targetLang)
	}
	return fmt.Sprintf("Translate from %s to %s. Only translation, no explanations.", sourceLang, targetLang)
}

// Translate sends one text unit to the endpoint and returns its
// translation. Exactly one outbound request per call. Failures are
// returned as *APIError with the kind the retry policy dispatches on.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if c.apiKey == "" {
		return "", &APIError{Kind: KindAuth, Message: "missing API key"}
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(sourceLang, targetLang)},
			{Role: "user", Content: text},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &APIError{Kind: KindNetwork, Message: netErrMessage(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &APIError{Kind: KindNetwork, Message: "read response: " + err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &APIError{Kind: KindAuth, Status: resp.StatusCode, Message: "invalid API key"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &APIError{Kind: KindRateLimit, Status: resp.StatusCode, Message: truncate(string(respBody), 200)}
	case resp.StatusCode != http.StatusOK:
		return "", &APIError{Kind: KindServer, Status: resp.StatusCode, Message: truncate(string(respBody), 200)}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &APIError{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response body: " + truncate(string(respBody), 200)}
	}
	if apiResp.Error != nil {
		return "", &APIError{Kind: KindServer, Status: resp.StatusCode, Message: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return "", &APIError{Kind: KindServer, Status: resp.StatusCode, Message: "empty choices in response"}
	}

	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func netErrMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
