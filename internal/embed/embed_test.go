package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		Provider:    "ollama",
		Model:       "test-embed",
		Endpoint:    server.URL,
		MaxRetries:  2,
		TimeoutSecs: 5,
	})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return client
}

func embedReply(vectors [][]float32) []byte {
	data := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		data[i] = map[string]any{"embedding": v, "index": i}
	}
	b, _ := json.Marshal(map[string]any{"data": data})
	return b
}

func TestEmbedBatch(t *testing.T) {
	client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("input size = %d, want 2", len(req.Input))
		}
		w.Write(embedReply([][]float32{{1, 0, 0}, {0, 1, 0}}))
	})

	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors = %v", vectors)
	}
	if client.Dimensions() != 3 {
		t.Fatalf("Dimensions() = %d, want 3", client.Dimensions())
	}
}

func TestEmbedBatchSkipsEmptyTexts(t *testing.T) {
	client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req Request
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) != 1 {
			t.Errorf("input size = %d, want 1 (empties filtered)", len(req.Input))
		}
		w.Write(embedReply([][]float32{{0.5, 0.5}}))
	})

	vectors, err := client.EmbedBatch(context.Background(), []string{"", "real", "  "})
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	if vectors[0] != nil || vectors[2] != nil {
		t.Fatal("empty texts should map to nil vectors")
	}
	if len(vectors[1]) != 2 {
		t.Fatalf("vectors[1] = %v", vectors[1])
	}
}

func TestEmbedBatchRetriesServerErrors(t *testing.T) {
	attempts := 0
	client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(embedReply([][]float32{{1}}))
	})

	vectors, err := client.EmbedBatch(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if len(vectors[0]) != 1 {
		t.Fatalf("vectors = %v", vectors)
	}
}

func TestEmbedBatchRetriesRateLimit(t *testing.T) {
	attempts := 0
	client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(embedReply([][]float32{{1}}))
	})

	vectors, err := client.EmbedBatch(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2 (429 is transient)", attempts)
	}
	if len(vectors[0]) != 1 {
		t.Fatalf("vectors = %v", vectors)
	}
}

func TestEmbedBatchPermanentOnClientError(t *testing.T) {
	attempts := 0
	client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	})

	if _, err := client.EmbedBatch(context.Background(), []string{"text"}); err == nil {
		t.Fatal("EmbedBatch() should fail on HTTP 401")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on auth failure)", attempts)
	}
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent for empty text")
	})
	if _, err := client.Embed(context.Background(), "  "); err == nil {
		t.Fatal("Embed() should reject empty text")
	}
}

func TestParseEmbedFlag(t *testing.T) {
	config, err := ParseEmbedFlag("ollama/nomic-embed-text")
	if err != nil {
		t.Fatalf("ParseEmbedFlag() error: %v", err)
	}
	if config.Provider != "ollama" || config.Model != "nomic-embed-text" {
		t.Fatalf("config = %+v", config)
	}

	config, err = ParseEmbedFlag("openrouter/sentence-transformers/all-MiniLM-L6-v2")
	if err != nil {
		t.Fatalf("ParseEmbedFlag() error: %v", err)
	}
	if config.Model != "sentence-transformers/all-MiniLM-L6-v2" {
		t.Fatalf("Model = %q", config.Model)
	}

	for _, bad := range []string{"", "ollama", "/m", "ollama/", "bogus/m"} {
		if _, err := ParseEmbedFlag(bad); err == nil {
			t.Errorf("ParseEmbedFlag(%q) should fail", bad)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := &Config{Provider: "ollama", Model: "m", Endpoint: "http://x", TimeoutSecs: 60}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	missingKey := &Config{Provider: "openai", Model: "m", Endpoint: "http://x", TimeoutSecs: 60}
	if err := missingKey.Validate(); err == nil {
		t.Fatal("Validate() should require API key for openai")
	}
}
