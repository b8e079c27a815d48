package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/callsift/callsift/internal/taxonomy"
	"github.com/callsift/callsift/internal/window"
)

// Client talks to the extraction oracle over an OpenAI-compatible chat
// completions API. It is an explicitly constructed collaborator: no package
// state, no response caching, exactly one oracle call per Extract. Retry
// policy belongs to the caller (the batch loop), not here.
type Client struct {
	config OracleConfig
	http   *http.Client
}

// ChatRequest represents an OpenAI-compatible chat completion request.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage represents a message in the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat specifies the expected response format.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse represents an OpenAI-compatible chat completion response.
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// HTTPError represents an oracle HTTP error with retry context. Callers use
// StatusCode to decide between retrying and giving up on a window.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewClient creates an oracle client. Configuration problems (including
// missing credentials) fail here, before any window processing begins.
func NewClient(config *OracleConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle config: %w", err)
	}
	return &Client{
		config: *config,
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSecs) * time.Second,
		},
	}, nil
}

// Extract sends one window to the oracle and returns the normalized
// mentions. Transport and HTTP failures are returned to the caller as
// retryable errors. A response that is not the expected JSON shape yields
// zero mentions, not an error: a confused oracle degrades output, it does
// not abort the batch.
func (c *Client) Extract(ctx context.Context, dialogID string, w window.Window, tax *taxonomy.Taxonomy) ([]Mention, error) {
	req := ChatRequest{
		Model: c.config.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(tax, w)},
		},
		Temperature: 0,
		ResponseFormat: &ResponseFormat{
			Type: "json_object",
		},
	}

	resp, err := c.sendChatRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in oracle response")
	}
	content := resp.Choices[0].Message.Content

	return ParseMentions(dialogID, content), nil
}

// sendChatRequest sends a chat completion request to the oracle endpoint.
func (c *Client) sendChatRequest(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != 200 {
		var retryAfter time.Duration
		if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
			if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			RetryAfter: retryAfter,
		}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}
	return &chatResp, nil
}
