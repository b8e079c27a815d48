// Package embed provides text-to-vector embedding via OpenAI-compatible
// /v1/embeddings endpoints. Vectors feed the near-duplicate pass of the
// deduplicator; the pipeline runs fine without an embedder configured.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider    string // "ollama", "openai", "deepseek", "openrouter", "custom"
	Model       string
	Endpoint    string // full API URL
	APIKey      string
	MaxRetries  uint // default: 3
	TimeoutSecs int  // per-request timeout (default: 60)
	dimensions  int  // auto-detected on first call
}

// Request represents an OpenAI-compatible embeddings request.
type Request struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// Response represents an OpenAI-compatible embeddings response.
type Response struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// HTTPError represents an embeddings HTTP error with retry context.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client implements Embedder against an HTTP endpoint.
type Client struct {
	config Config
	http   *http.Client
}

// ParseEmbedFlag parses "provider/model" format. Model names may contain
// slashes and colons ("openrouter/sentence-transformers/all-MiniLM-L6-v2").
func ParseEmbedFlag(flag string) (*Config, error) {
	if flag == "" {
		return nil, fmt.Errorf("empty embedding flag")
	}

	slashIdx := strings.Index(flag, "/")
	if slashIdx == -1 {
		return nil, fmt.Errorf("invalid embed format: expected 'provider/model', got %q", flag)
	}
	provider := flag[:slashIdx]
	model := flag[slashIdx+1:]
	if provider == "" {
		return nil, fmt.Errorf("empty provider in embed flag: %q", flag)
	}
	if model == "" {
		return nil, fmt.Errorf("empty model in embed flag: %q", flag)
	}

	config := &Config{
		Provider:    provider,
		Model:       model,
		MaxRetries:  3,
		TimeoutSecs: 60,
	}

	switch provider {
	case "ollama":
		config.Endpoint = "http://localhost:11434/v1/embeddings"
		// No API key needed for Ollama
	case "openai":
		config.Endpoint = "https://api.openai.com/v1/embeddings"
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	case "deepseek":
		config.Endpoint = "https://api.deepseek.com/v1/embeddings"
		config.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	case "openrouter":
		config.Endpoint = "https://openrouter.ai/api/v1/embeddings"
		config.APIKey = os.Getenv("OPENROUTER_API_KEY")
	case "custom":
		config.Endpoint = os.Getenv("CALLSIFT_EMBED_ENDPOINT")
		config.APIKey = os.Getenv("CALLSIFT_EMBED_API_KEY")
	default:
		return nil, fmt.Errorf("unknown provider %q. Supported: ollama, openai, deepseek, openrouter, custom", provider)
	}

	// Environment variable overrides
	if endpoint := os.Getenv("CALLSIFT_EMBED_ENDPOINT"); endpoint != "" {
		config.Endpoint = endpoint
	}
	if apiKey := os.Getenv("CALLSIFT_EMBED_API_KEY"); apiKey != "" {
		config.APIKey = apiKey
	}

	return config, nil
}

// Validate checks that the embedding configuration is complete.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Provider != "ollama" && c.APIKey == "" {
		return fmt.Errorf("API key is required for provider %q (set via environment variable)", c.Provider)
	}
	if c.TimeoutSecs <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// NewClient creates an embedding client with the given configuration.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embed config: %w", err)
	}
	return &Client{
		config: *config,
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSecs) * time.Second,
		},
	}, nil
}

// Embed generates an embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text")
	}
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}
	return embeddings[0], nil
}

// EmbedBatch generates embedding vectors for multiple texts in one API
// call, retrying transient failures with exponential backoff. Empty texts
// map to nil vectors in the result so indices line up with the input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	nonEmpty := make([]string, 0, len(texts))
	indexMap := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			nonEmpty = append(nonEmpty, text)
			indexMap = append(indexMap, i)
		}
	}
	if len(nonEmpty) == 0 {
		return make([][]float32, len(texts)), nil
	}

	operation := func() ([][]float32, error) {
		embeddings, err := c.attemptEmbedBatch(ctx, nonEmpty)
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				// Client errors other than rate limiting will not heal on retry
				if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429 {
					return nil, backoff.Permanent(err)
				}
				// Honor the server's Retry-After before the policy's next try.
				if httpErr.StatusCode == 429 && httpErr.RetryAfter > 0 {
					select {
					case <-time.After(httpErr.RetryAfter):
					case <-ctx.Done():
						return nil, backoff.Permanent(ctx.Err())
					}
				}
			}
			return nil, err
		}
		return embeddings, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.config.MaxRetries)), ctx)
	embeddings, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.config.MaxRetries+1, err)
	}

	result := make([][]float32, len(texts))
	for i, embedding := range embeddings {
		result[indexMap[i]] = embedding
	}
	for _, emb := range embeddings {
		if len(emb) > 0 {
			c.config.dimensions = len(emb)
			break
		}
	}
	return result, nil
}

// Dimensions returns the dimensionality of embeddings from this client.
// Returns 0 until the first successful call.
func (c *Client) Dimensions() int {
	return c.config.dimensions
}

func (c *Client) attemptEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := Request{
		Model: c.config.Model,
		Input: texts,
	}
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

	var embedResp Response
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}

	if len(embedResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embedResp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embedResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	return embeddings, nil
}
