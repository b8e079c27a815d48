package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// defaultConfidence is assigned when the oracle omits confidence or emits
// something that is not a number.
const defaultConfidence = 0.5

// turnRefRE finds a "[<n>]" turn reference inside a quote. Used to recover
// turn_id when the oracle copied the tagged line verbatim but dropped the
// turn_id field.
var turnRefRE = regexp.MustCompile(`\[(\d+)\]`)

// rawMention tolerates the shapes LLMs actually produce: turn_id as number
// or string, confidence as number, string, or absent. Fields are folded into
// a Mention one at a time so a single bad field never discards the rest.
type rawMention struct {
	TurnID     json.RawMessage `json:"turn_id"`
	LabelType  string          `json:"label_type"`
	Theme      string          `json:"theme"`
	Subtheme   string          `json:"subtheme"`
	TextQuote  string          `json:"text_quote"`
	Confidence json.RawMessage `json:"confidence"`
}

type mentionsResponse struct {
	Mentions []rawMention `json:"mentions"`
}

// ParseMentions decodes the oracle's response content into mentions.
// Recovery is per field, never per response:
//   - a blank quote discards that single mention (nothing to evidence)
//   - a missing or non-numeric confidence becomes defaultConfidence
//   - a missing turn_id is recovered from a "[n]" reference in the quote,
//     else 0
//   - an unknown label_type becomes LabelProblem
//
// A response that is not the expected JSON object yields zero mentions.
func ParseMentions(dialogID, raw string) []Mention {
	cleaned := stripCodeFence(raw)

	var resp mentionsResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil
	}

	mentions := make([]Mention, 0, len(resp.Mentions))
	for _, entry := range resp.Mentions {
		quote := strings.TrimSpace(entry.TextQuote)
		if quote == "" {
			continue
		}

		label, ok := ParseLabelType(entry.LabelType)
		if !ok {
			label = LabelProblem
		}

		mentions = append(mentions, Mention{
			DialogID:   dialogID,
			TurnID:     parseTurnID(entry.TurnID, quote),
			Label:      label,
			Theme:      strings.TrimSpace(entry.Theme),
			Subtheme:   strings.TrimSpace(entry.Subtheme),
			TextQuote:  quote,
			Confidence: parseConfidence(entry.Confidence),
		})
	}

	return mentions
}

// parseTurnID reads turn_id as a number or a numeric string. When both fail
// it scans the quote for a "[n]" turn reference; 0 marks unattributed.
func parseTurnID(raw json.RawMessage, quote string) int {
	if len(raw) > 0 {
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return n
			}
		}
	}
	if m := turnRefRE.FindStringSubmatch(quote); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// parseConfidence reads confidence as a number or a numeric string, clamped
// to [0, 1]. Anything else becomes the documented default.
func parseConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return defaultConfidence
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return defaultConfidence
		}
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr != nil {
			return defaultConfidence
		}
		f = parsed
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models emit even when told to return bare JSON.
func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	start, end := 0, len(lines)
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if start == 0 {
				start = i + 1
			} else {
				end = i
				break
			}
		}
	}
	if start > 0 && end > start {
		cleaned = strings.Join(lines[start:end], "\n")
	}
	return strings.TrimSpace(cleaned)
}
