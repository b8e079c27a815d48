package dedup

import (
	"context"
	"math"

	"github.com/callsift/callsift/internal/embed"
	"github.com/callsift/callsift/internal/extract"
	"github.com/callsift/callsift/internal/logger"
)

// DefaultNearThreshold is the cosine similarity above which two quotes in
// the same dialogue/theme/subtheme bucket count as the same mention.
const DefaultNearThreshold = 0.92

// Near removes near-duplicate mentions using embedding cosine similarity.
// Candidates are compared only within the same dialogue/theme/subtheme
// bucket; the earlier mention wins. The pass is best-effort: if embedding
// fails, the input is returned unchanged so a flaky embedder never degrades
// recall.
func Near(ctx context.Context, embedder embed.Embedder, mentions []extract.Mention, threshold float64) []extract.Mention {
	if embedder == nil || len(mentions) < 2 {
		return mentions
	}
	if threshold <= 0 {
		threshold = DefaultNearThreshold
	}

	quotes := make([]string, len(mentions))
	for i, m := range mentions {
		quotes[i] = NormalizeQuote(m.TextQuote)
	}

	vectors, err := embedder.EmbedBatch(ctx, quotes)
	if err != nil {
		logger.Log.WithError(err).Warn("near-duplicate pass skipped: embedding failed")
		return mentions
	}

	buckets := make(map[string][][]float32)
	bucketOf := func(m extract.Mention) string {
		return m.DialogID + "\x00" + m.Theme + "\x00" + m.Subtheme
	}

	result := make([]extract.Mention, 0, len(mentions))
	for i, m := range mentions {
		v := vectors[i]
		if len(v) == 0 {
			result = append(result, m)
			continue
		}
		bucket := bucketOf(m)
		duplicate := false
		for _, keptVec := range buckets[bucket] {
			if cosine(v, keptVec) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		buckets[bucket] = append(buckets[bucket], v)
		result = append(result, m)
	}
	return result
}

// cosine computes cosine similarity between two vectors. Mismatched or zero
// vectors score 0, never a panic.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
