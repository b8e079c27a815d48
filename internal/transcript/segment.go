// Package transcript turns raw call transcripts into ordered, role-tagged
// turns. Transcripts arrive as plain text, one utterance per line, each line
// prefixed with a speaker label ("Client:", "Оператор -", ...). Labels vary
// by source system and language, so both sides accept several aliases.
package transcript

import (
	"regexp"
	"strings"
)

// Role identifies which side of the call produced a turn.
type Role string

const (
	RoleClient   Role = "client"
	RoleOperator Role = "operator"
)

// Turn is a single utterance within one dialogue. TurnID is 1-based and
// strictly increasing over recognized turns; continuation lines do not
// consume an id.
type Turn struct {
	TurnID int
	Role   Role
	Text   string
}

// Accepted speaker labels per side, followed by ":" or "-". The alias sets
// cover the label spellings observed across source systems (English and
// Russian call exports).
var (
	clientLineRE   = regexp.MustCompile(`^(?i)(?:client|customer|клиент|покупатель)\s*[:\-]\s*(.*)$`)
	operatorLineRE = regexp.MustCompile(`^(?i)(?:operator|agent|manager|оператор|менеджер)\s*[:\-]\s*(.*)$`)
)

// Segment splits a raw transcript into role-tagged turns.
//
// Blank lines are skipped. A line matching neither role pattern is folded
// into the previous turn's text (transcription systems wrap long utterances
// across lines); leading lines with no preceding turn are dropped. The
// function is pure and deterministic; zero recognized turns yields an empty
// slice, which callers must treat as an empty dialogue rather than an error.
func Segment(raw string) []Turn {
	var turns []Turn
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var role Role
		var text string
		if m := clientLineRE.FindStringSubmatch(line); m != nil {
			role, text = RoleClient, strings.TrimSpace(m[1])
		} else if m := operatorLineRE.FindStringSubmatch(line); m != nil {
			role, text = RoleOperator, strings.TrimSpace(m[1])
		} else {
			// Continuation of the previous utterance.
			if len(turns) > 0 {
				last := &turns[len(turns)-1]
				if last.Text == "" {
					last.Text = line
				} else {
					last.Text += " " + line
				}
			}
			continue
		}

		turns = append(turns, Turn{
			TurnID: len(turns) + 1,
			Role:   role,
			Text:   text,
		})
	}
	return turns
}

// ClientTurnIDs returns the set of turn ids spoken by the client, used by the
// quality gate to verify that every mention points at a real client turn.
func ClientTurnIDs(turns []Turn) map[int]bool {
	ids := make(map[int]bool)
	for _, t := range turns {
		if t.Role == RoleClient {
			ids[t.TurnID] = true
		}
	}
	return ids
}
