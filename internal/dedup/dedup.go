// Package dedup removes duplicate mentions. The exact pass is deterministic
// and always runs; the embedding near-duplicate pass is optional and only
// runs when an embedder is configured.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/callsift/callsift/internal/extract"
)

// NormalizeQuote canonicalizes a quote for duplicate keying: trim, lower,
// collapse internal whitespace runs to single spaces.
func NormalizeQuote(quote string) string {
	return strings.Join(strings.Fields(strings.ToLower(quote)), " ")
}

// Key builds the exact-duplicate identity of a mention. Two mentions are
// exact duplicates when every classification field matches and their quotes
// normalize to the same text. The quote goes in hashed so keys stay short
// regardless of quote length.
func Key(m extract.Mention) string {
	sum := md5.Sum([]byte(NormalizeQuote(m.TextQuote)))
	return fmt.Sprintf("%s|%d|%s|%s|%s|%s",
		m.DialogID, m.TurnID, m.Label, m.Theme, m.Subtheme, hex.EncodeToString(sum[:]))
}

// Exact removes exact duplicates, keeping the first occurrence and
// preserving input order. Running it on its own output is a no-op.
func Exact(mentions []extract.Mention) []extract.Mention {
	seen := make(map[string]bool, len(mentions))
	result := make([]extract.Mention, 0, len(mentions))
	for _, m := range mentions {
		key := Key(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, m)
	}
	return result
}
