// Package window groups a dialogue's client turns into bounded context
// windows for extraction. Operator turns are discarded before windowing:
// "client-only" is enforced at construction, not as a later filter.
package window

import (
	"github.com/callsift/callsift/internal/transcript"
)

// Mode describes how a window was produced.
type Mode string

const (
	// ModeWhole means the entire dialogue fit in a single window.
	ModeWhole Mode = "whole"
	// ModeChunked means the dialogue was split across several windows.
	ModeChunked Mode = "chunked"
)

// Window is a bounded group of client turns sent to the oracle in one
// request. WindowID starts at 0 in production order.
type Window struct {
	Mode     Mode
	WindowID int
	Turns    []transcript.Turn
}

// EstimateTokens approximates the token count of a character count as
// ceil(chars/4). This is a deliberately cheap proxy, not a tokenizer; the
// oracle's context budgets are calibrated against it, so the divisor must
// stay fixed.
func EstimateTokens(chars int) int {
	return (chars + 3) / 4
}

// Build packs client turns into windows.
//
// If the estimated token count of all client turns fits within wholeBudget,
// a single whole-mode window holds the dialogue. Otherwise turns are greedily
// packed into chunked windows of at most chunkBudget*4 characters; a single
// turn longer than the budget still gets its own window — turns are never
// split. Every client turn lands in exactly one window, in original order.
func Build(turns []transcript.Turn, wholeBudget, chunkBudget int) []Window {
	var client []transcript.Turn
	totalChars := 0
	for _, t := range turns {
		if t.Role != transcript.RoleClient {
			continue
		}
		client = append(client, t)
		totalChars += len(t.Text)
	}

	if EstimateTokens(totalChars) <= wholeBudget {
		return []Window{{Mode: ModeWhole, WindowID: 0, Turns: client}}
	}

	maxChars := chunkBudget * 4
	var out []Window
	var acc []transcript.Turn
	accChars := 0
	for _, t := range client {
		if len(acc) > 0 && accChars+len(t.Text) > maxChars {
			out = append(out, Window{Mode: ModeChunked, WindowID: len(out), Turns: acc})
			acc, accChars = nil, 0
		}
		acc = append(acc, t)
		accChars += len(t.Text)
	}
	if len(acc) > 0 {
		out = append(out, Window{Mode: ModeChunked, WindowID: len(out), Turns: acc})
	}
	return out
}
