package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/callsift/callsift/internal/extract"
	"github.com/callsift/callsift/internal/quality"
	"github.com/callsift/callsift/internal/store"
)

func setupTestStore(t *testing.T, passed bool) store.Store {
	t.Helper()
	s, err := store.Open(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	batch := &store.Batch{
		ID:          "b1",
		DialogCount: 1,
		Mentions: []extract.Mention{
			{DialogID: "d1", TurnID: 1, Label: extract.LabelProblem, Theme: "delivery", Subtheme: "courier", TextQuote: "courier was late", Confidence: 0.9},
			{DialogID: "d1", TurnID: 3, Label: extract.LabelIdea, Theme: "app", Subtheme: "search", TextQuote: "add size filters", Confidence: 0.7},
		},
		Report: quality.Report{TotalMentions: 2, PreDedupCount: 2, Passed: passed},
	}
	if err := s.SaveBatch(context.Background(), batch); err != nil {
		t.Fatalf("saving test batch: %v", err)
	}
	return s
}

func newTestServer(t *testing.T, s store.Store) *server.MCPServer {
	t.Helper()
	return NewServer(ServerConfig{Store: s, Quality: quality.DefaultConfig(), Version: "test"})
}

// callTool invokes an MCP tool through the JSON-RPC surface.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestNewServer(t *testing.T) {
	s := setupTestStore(t, true)
	if srv := newTestServer(t, s); srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestQualityTool(t *testing.T) {
	srv := newTestServer(t, setupTestStore(t, false))

	result := callTool(t, srv, "callsift_quality", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("quality tool errored: %s", getTextContent(t, result))
	}
	text := getTextContent(t, result)
	if !strings.Contains(text, `"passed": false`) {
		t.Fatalf("quality tool should report failed gate: %s", text)
	}
}

func TestThemesTool(t *testing.T) {
	srv := newTestServer(t, setupTestStore(t, true))

	result := callTool(t, srv, "callsift_themes", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("themes tool errored: %s", getTextContent(t, result))
	}
	text := getTextContent(t, result)
	if !strings.Contains(text, "delivery") || !strings.Contains(text, "app") {
		t.Fatalf("themes missing: %s", text)
	}

	// A compliant client sends a JSON boolean.
	result = callTool(t, srv, "callsift_themes", map[string]interface{}{"subthemes": true})
	if !strings.Contains(getTextContent(t, result), "courier") {
		t.Fatal("subtheme breakdown missing")
	}

	// String spellings from permissive clients coerce too.
	result = callTool(t, srv, "callsift_themes", map[string]interface{}{"subthemes": "true"})
	if !strings.Contains(getTextContent(t, result), "courier") {
		t.Fatal("subtheme breakdown missing for string argument")
	}
}

func TestThemesToolBlockedByGate(t *testing.T) {
	srv := newTestServer(t, setupTestStore(t, false))

	result := callTool(t, srv, "callsift_themes", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("themes tool should refuse when gate failed")
	}
	if !strings.Contains(getTextContent(t, result), "quality gate not passed") {
		t.Fatalf("error = %s", getTextContent(t, result))
	}
}

func TestQuotesTool(t *testing.T) {
	srv := newTestServer(t, setupTestStore(t, true))

	result := callTool(t, srv, "callsift_quotes", map[string]interface{}{"theme": "delivery"})
	if result.IsError {
		t.Fatalf("quotes tool errored: %s", getTextContent(t, result))
	}
	text := getTextContent(t, result)
	if !strings.Contains(text, "courier was late") {
		t.Fatalf("quote missing: %s", text)
	}
	if strings.Contains(text, "add size filters") {
		t.Fatal("theme filter not applied")
	}
}

func TestQuotesToolBlockedByGate(t *testing.T) {
	srv := newTestServer(t, setupTestStore(t, false))

	result := callTool(t, srv, "callsift_quotes", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("quotes tool should refuse when gate failed")
	}
}

func TestStatsTool(t *testing.T) {
	srv := newTestServer(t, setupTestStore(t, false))

	// Stats are not gated.
	result := callTool(t, srv, "callsift_stats", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("stats tool errored: %s", getTextContent(t, result))
	}
	if !strings.Contains(getTextContent(t, result), `"batch_count": 1`) {
		t.Fatalf("stats = %s", getTextContent(t, result))
	}
}
