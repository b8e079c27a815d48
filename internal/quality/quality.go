// Package quality computes the publish/block gate over a deduplicated
// mention batch. The gate is pure: it reads the batch, returns a report,
// and performs no I/O. The report's Passed flag is the single authoritative
// signal downstream readers consult before serving aggregates.
package quality

import (
	"math"

	"github.com/callsift/callsift/internal/extract"
)

// Config holds the gate's configurable ceilings.
type Config struct {
	// DedupRemovedMaxPct caps how much the deduplicator may have removed
	// before the batch is considered suspect.
	DedupRemovedMaxPct float64 `yaml:"dedup_removed_max_pct"`
	// MiscShareMaxPct caps the share of mentions classified into the
	// catch-all theme.
	MiscShareMaxPct float64 `yaml:"misc_share_max_pct"`
	// MiscTheme is the catch-all theme name checked against MiscShareMaxPct.
	MiscTheme string `yaml:"misc_theme"`
	// AmbiguousBelow is the confidence threshold under which a mention
	// counts as ambiguous. Informational only, never gates.
	AmbiguousBelow float64 `yaml:"ambiguous_below"`
}

// DefaultConfig returns the reference ceilings.
func DefaultConfig() Config {
	return Config{
		DedupRemovedMaxPct: 1.0,
		MiscShareMaxPct:    2.0,
		MiscTheme:          "other",
		AmbiguousBelow:     0.6,
	}
}

// Report is one computed quality snapshot for a batch.
type Report struct {
	TotalMentions         int     `json:"total_mentions"`
	PreDedupCount         int     `json:"pre_dedup_count"`
	DedupRemovedPct       float64 `json:"dedup_removed_pct"`
	AmbiguousPct          float64 `json:"ambiguous_pct"`
	EmptyQuoteCount       int     `json:"empty_quote_count"`
	NonClientMentionCount int     `json:"non_client_mention_count"`
	MiscCategorySharePct  float64 `json:"misc_category_share_pct"`
	Passed                bool    `json:"passed"`
}

// ClientTurnIndex maps dialog_id to the set of turn ids spoken by the
// client. The gate uses it to verify every mention points at a real client
// turn.
type ClientTurnIndex map[string]map[int]bool

// Evaluate computes the gate over a deduplicated mention set.
//
// Four predicates gate publication: zero empty quotes, zero non-client
// mentions, dedup removal within its ceiling, and catch-all theme share
// within its ceiling. Ambiguity is reported but never gates.
func Evaluate(mentions []extract.Mention, preDedupCount int, clientTurns ClientTurnIndex, cfg Config) Report {
	report := Report{
		TotalMentions: len(mentions),
		PreDedupCount: preDedupCount,
	}

	ambiguous := 0
	misc := 0
	for _, m := range mentions {
		if m.TextQuote == "" {
			report.EmptyQuoteCount++
		}
		if !clientTurns[m.DialogID][m.TurnID] {
			report.NonClientMentionCount++
		}
		if m.Confidence < cfg.AmbiguousBelow {
			ambiguous++
		}
		if m.Theme == cfg.MiscTheme {
			misc++
		}
	}

	// An empty batch removed nothing; without the guard the ratio would
	// read as 100% removal and block a legitimately empty run.
	if preDedupCount > 0 {
		report.DedupRemovedPct = round1(100 * (1 - float64(len(mentions))/float64(preDedupCount)))
	}
	if len(mentions) > 0 {
		report.AmbiguousPct = round1(100 * float64(ambiguous) / float64(len(mentions)))
		report.MiscCategorySharePct = round1(100 * float64(misc) / float64(len(mentions)))
	}

	report.Passed = report.EmptyQuoteCount == 0 &&
		report.NonClientMentionCount == 0 &&
		report.DedupRemovedPct <= cfg.DedupRemovedMaxPct &&
		report.MiscCategorySharePct <= cfg.MiscShareMaxPct

	return report
}

// Failures names the gating predicates that failed, for operator-facing
// diagnostics.
func (r Report) Failures(cfg Config) []string {
	var failures []string
	if r.EmptyQuoteCount > 0 {
		failures = append(failures, "evidence: mentions with empty quotes present")
	}
	if r.NonClientMentionCount > 0 {
		failures = append(failures, "client-only: mentions point at non-client turns")
	}
	if r.DedupRemovedPct > cfg.DedupRemovedMaxPct {
		failures = append(failures, "dedup-rate: removal percentage above ceiling")
	}
	if r.MiscCategorySharePct > cfg.MiscShareMaxPct {
		failures = append(failures, "coverage: catch-all theme share above ceiling")
	}
	return failures
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
