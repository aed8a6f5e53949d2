package match

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"
)

// DefaultMinSimilarity is the cosine similarity a candidate must reach to
// count as a match.
const DefaultMinSimilarity = 0.9

// Matcher finds the closest canonical candidate for free-text labels.
// The zero value is not usable; construct with NewMatcher.
type Matcher struct {
	embedder      Embedder
	minSimilarity float64
	logger        *zap.Logger
}

// NewMatcher creates a matcher. A minSimilarity of zero or below falls back
// to the default threshold.
func NewMatcher(embedder Embedder, minSimilarity float64, logger *zap.Logger) *Matcher {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Matcher{
		embedder:      embedder,
		minSimilarity: minSimilarity,
		logger:        logger,
	}
}

// MatchOne returns the best candidate for one label, or "" when nothing
// reaches the similarity threshold.
func (m *Matcher) MatchOne(ctx context.Context, label string, candidates []string) string {
	return m.MatchMany(ctx, []string{label}, candidates)[0]
}

// MatchMany resolves each label to its best candidate, "" for no match.
// The result has the same length and order as labels. Duplicate labels are
// embedded and scored once; blank labels never reach the model. Embedding
// failures degrade every label of the batch to no-match; a match miss is
// reviewer data, not a pipeline failure.
func (m *Matcher) MatchMany(ctx context.Context, labels, candidates []string) []string {
	results := make([]string, len(labels))
	if len(labels) == 0 || len(candidates) == 0 {
		return results
	}

	// distinct non-blank labels, first-seen order
	seen := make(map[string]int, len(labels))
	distinct := make([]string, 0, len(labels))
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			continue
		}
		if _, ok := seen[label]; !ok {
			seen[label] = len(distinct)
			distinct = append(distinct, label)
		}
	}
	if len(distinct) == 0 {
		return results
	}

	// one request embeds labels and candidates together
	texts := make([]string, 0, len(distinct)+len(candidates))
	texts = append(texts, distinct...)
	texts = append(texts, candidates...)

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		m.logger.Warn("Embedding failed, leaving labels unmatched",
			zap.Int("label_count", len(distinct)),
			zap.Int("candidate_count", len(candidates)),
			zap.Error(err))
		return results
	}

	labelVecs := vectors[:len(distinct)]
	candidateVecs := vectors[len(distinct):]

	matched := make([]string, len(distinct))
	for i, lv := range labelVecs {
		best := -1
		bestScore := math.Inf(-1)
		for j, cv := range candidateVecs {
			score := cosineSimilarity(lv, cv)
			if score > bestScore {
				bestScore = score
				best = j
			}
		}

		if best >= 0 && bestScore >= m.minSimilarity {
			matched[i] = candidates[best]
		}

		m.logger.Debug("Scored label against candidates",
			zap.String("label", distinct[i]),
			zap.String("best_candidate", candidates[best]),
			zap.Float64("similarity", bestScore),
			zap.Bool("accepted", matched[i] != ""))
	}

	// broadcast back to original positions
	for i, label := range labels {
		if idx, ok := seen[label]; ok {
			results[i] = matched[idx]
		}
	}
	return results
}

// cosineSimilarity computes dot(a, b) / (|a||b|) over two vectors of equal length.
func cosineSimilarity(a, b []float32) float64 {
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
