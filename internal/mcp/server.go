// Package mcp provides a Model Context Protocol server over the publish
// store. All tools are read-only views of the latest published batch; the
// same gate rules as the HTTP API apply, so an assistant can never quote
// data from a batch that failed its quality gate.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/callsift/callsift/internal/quality"
	"github.com/callsift/callsift/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Quality quality.Config
	Version string
}

// NewServer creates a configured MCP server with all query tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"CallSift",
		ver,
		server.WithToolCapabilities(false),
	)

	registerQualityTool(s, cfg)
	registerThemesTool(s, cfg)
	registerQuotesTool(s, cfg)
	registerStatsTool(s, cfg)

	return s
}

// latestGatedBatch resolves the latest batch id, enforcing the publish
// gate. The error strings become tool errors the assistant can relay.
func latestGatedBatch(ctx context.Context, cfg ServerConfig) (string, *mcp.CallToolResult) {
	br, err := cfg.Store.LatestReport(ctx)
	if err != nil {
		return "", mcp.NewToolResultError(fmt.Sprintf("store error: %v", err))
	}
	if br == nil {
		return "", mcp.NewToolResultError("no published batch yet")
	}
	if !br.Report.Passed {
		return "", mcp.NewToolResultError(fmt.Sprintf(
			"quality gate not passed for batch %s: %v", br.BatchID, br.Report.Failures(cfg.Quality)))
	}
	return br.BatchID, nil
}

func registerQualityTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("callsift_quality",
		mcp.WithDescription("Get the quality report of the latest published mention batch, including the pass/fail gate verdict and every gating metric. Works even when the gate failed."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		br, err := cfg.Store.LatestReport(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
		}
		if br == nil {
			return mcp.NewToolResultError("no published batch yet"), nil
		}
		data, _ := json.MarshalIndent(br, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerThemesTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("callsift_themes",
		mcp.WithDescription("Summarize the latest published batch by theme and subtheme: mention counts and average confidence. Refuses when the quality gate failed."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithBoolean("subthemes",
			mcp.Description("Break counts down by subtheme instead of theme (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		batchID, toolErr := latestGatedBatch(ctx, cfg)
		if toolErr != nil {
			return toolErr, nil
		}

		bySubtheme := req.GetBool("subthemes", false)

		var counts []store.ThemeCount
		var err error
		if bySubtheme {
			counts, err = cfg.Store.SubthemeSummary(ctx, batchID)
		} else {
			counts, err = cfg.Store.ThemeSummary(ctx, batchID)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("summary error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(map[string]any{"batch_id": batchID, "themes": counts}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerQuotesTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("callsift_quotes",
		mcp.WithDescription("List client quotes from the latest published batch, optionally filtered by theme, subtheme, label type, or dialogue. Refuses when the quality gate failed."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("theme",
			mcp.Description("Only quotes classified under this theme"),
		),
		mcp.WithString("subtheme",
			mcp.Description("Only quotes classified under this subtheme"),
		),
		mcp.WithString("label",
			mcp.Description("Only quotes with this label type"),
			mcp.Enum("problem", "idea", "signal"),
		),
		mcp.WithString("dialog_id",
			mcp.Description("Only quotes from this dialogue"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of quotes (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		batchID, toolErr := latestGatedBatch(ctx, cfg)
		if toolErr != nil {
			return toolErr, nil
		}

		f := store.MentionFilter{Limit: 20}
		if v, err := req.RequireString("theme"); err == nil && v != "" {
			f.Theme = v
		}
		if v, err := req.RequireString("subtheme"); err == nil && v != "" {
			f.Subtheme = v
		}
		if v, err := req.RequireString("label"); err == nil && v != "" {
			f.Label = v
		}
		if v, err := req.RequireString("dialog_id"); err == nil && v != "" {
			f.DialogID = v
		}
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit := int(limitVal)
			if limit > 100 {
				limit = 100
			}
			if limit > 0 {
				f.Limit = limit
			}
		}

		mentions, err := cfg.Store.ListMentions(ctx, batchID, f)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(map[string]any{"batch_id": batchID, "mentions": mentions}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("callsift_stats",
		mcp.WithDescription("Get publish-store statistics: batch, mention, and dialogue counts plus database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := cfg.Store.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}
		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
