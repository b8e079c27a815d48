// Package extract turns context windows into typed mentions by calling an
// external text-extraction oracle (any OpenAI-compatible chat completions
// endpoint) and normalizing its structured output.
package extract

import "strings"

// LabelType classifies what kind of mention was extracted. The set is
// closed: every surface spelling the oracle or legacy data may produce is
// mapped through one canonical table.
type LabelType string

const (
	LabelProblem LabelType = "problem"
	LabelIdea    LabelType = "idea"
	LabelSignal  LabelType = "signal"
)

// labelAliases maps every accepted surface spelling to its canonical label.
// Covers singular/plural English forms and the Russian labels used by the
// legacy extraction prompts.
var labelAliases = map[string]LabelType{
	"problem":  LabelProblem,
	"problems": LabelProblem,
	"barrier":  LabelProblem,
	"барьер":   LabelProblem,
	"проблема": LabelProblem,
	"idea":     LabelIdea,
	"ideas":    LabelIdea,
	"идея":     LabelIdea,
	"signal":   LabelSignal,
	"signals":  LabelSignal,
	"сигнал":   LabelSignal,
}

// ParseLabelType resolves a surface spelling to its canonical label.
// Unknown spellings report ok=false; callers apply the documented default
// (LabelProblem) rather than dropping the mention.
func ParseLabelType(s string) (LabelType, bool) {
	label, ok := labelAliases[strings.ToLower(strings.TrimSpace(s))]
	return label, ok
}

// Mention is one extracted, quote-backed annotation tied to a specific
// client turn. Mentions are immutable after creation; the deduplicator may
// drop them but never edits them.
type Mention struct {
	DialogID   string    `json:"dialog_id"`
	TurnID     int       `json:"turn_id"`
	Label      LabelType `json:"label_type"`
	Theme      string    `json:"theme"`
	Subtheme   string    `json:"subtheme"`
	TextQuote  string    `json:"text_quote"`
	Confidence float64   `json:"confidence"`
}
