package extract

import (
	"fmt"
	"strings"

	"github.com/callsift/callsift/internal/taxonomy"
	"github.com/callsift/callsift/internal/window"
)

// System prompt for mention extraction. The oracle sees only client turns
// and must return a single JSON object, nothing else.
const systemPrompt = `You are a mention extraction system for call-center transcripts.

You receive a window of CLIENT turns from one dialogue, each line tagged with
its turn id as "[<turn_id>] <text>", plus a taxonomy of themes and subthemes.

Extract every problem, idea, or signal the client expresses. RULES:
1. Use ONLY the client's words - never infer from anything else
2. text_quote must be EXACT text from the window
3. Classify theme/subtheme strictly against the provided taxonomy
4. confidence is 0.0-1.0 based on how clearly the client states it
5. Return ONLY one JSON object, no additional text

JSON SCHEMA:
{
  "mentions": [
    {
      "turn_id": 3,
      "label_type": "problem|idea|signal",
      "theme": "taxonomy theme",
      "subtheme": "taxonomy subtheme",
      "text_quote": "exact client quote",
      "confidence": 0.85
    }
  ]
}`

// FormatWindow renders a window's turns as "[turn_id] text" lines. Windows
// hold client turns only, so no role filtering happens here.
func FormatWindow(w window.Window) string {
	lines := make([]string, 0, len(w.Turns))
	for _, t := range w.Turns {
		lines = append(lines, fmt.Sprintf("[%d] %s", t.TurnID, t.Text))
	}
	return strings.Join(lines, "\n")
}

func buildUserPrompt(tax *taxonomy.Taxonomy, w window.Window) string {
	return fmt.Sprintf(
		"Taxonomy (themes -> subthemes):\n%s\n---\nDialogue window (client turns only):\n%s\n---\nReturn one JSON object {\"mentions\":[...]} with the exact keys from the schema.",
		tax.JSON(), FormatWindow(w),
	)
}
