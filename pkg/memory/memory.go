// Package memory maintains the rolling belief state that carries discoveries
// from one segment to the next: confidence-smoothed pattern merging, bounded
// compression with an audit trail, and the per-segment consolidation step that
// asks the oracle what the current segment adds.
package memory

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/cywujeremy/ai-crawling-strategist/models"
)

// Merge folds one segment's proposals into the existing facts. Known patterns
// have their confidence smoothed toward the proposal, unknown patterns are
// appended, and the summary is replaced only when the new one is non-empty.
func Merge(existing models.DiscoveredFacts, patterns []string, confidences map[string]float64, understanding string) models.DiscoveredFacts {
	merged := existing.Clone()
	if merged.Confidences == nil {
		merged.Confidences = make(map[string]float64)
	}
	merged.NewDiscoveries = nil

	for _, pattern := range patterns {
		proposed, ok := confidences[pattern]
		if !ok {
			proposed = 0.5
		}
		if old, seen := merged.Confidences[pattern]; seen {
			// Exponential smoothing keeps confidence stable across segments.
			merged.Confidences[pattern] = 0.7*old + 0.3*proposed
		} else {
			merged.Patterns = append(merged.Patterns, pattern)
			merged.Confidences[pattern] = proposed
		}
		merged.NewDiscoveries = append(merged.NewDiscoveries, fmt.Sprintf("%s: %v", pattern, proposed))
	}

	if understanding != "" {
		merged.PageUnderstanding = understanding
	}
	return merged
}

// Compress bounds the belief state per policy. Facts already within bound are
// returned unchanged, so compression is idempotent. Every dropped pattern is
// recorded with its reason.
func Compress(facts models.DiscoveredFacts, policy models.CompressionPolicy, logger *slog.Logger) models.DiscoveredFacts {
	if len(facts.Patterns) <= policy.MaxPatterns {
		return facts
	}

	kept := make([]string, 0, len(facts.Patterns))
	dropped := make([]models.DiscardedPattern, 0)
	for _, pattern := range facts.Patterns {
		if facts.Confidences[pattern] < policy.MinConfidence {
			dropped = append(dropped, models.DiscardedPattern{
				Pattern: pattern,
				Reason:  fmt.Sprintf("confidence %.2f below floor %.2f", facts.Confidences[pattern], policy.MinConfidence),
			})
			continue
		}
		kept = append(kept, pattern)
	}

	// Stable sort preserves discovery order among equal confidences, so more
	// recent patterns survive a tie when the policy asks for it.
	sort.SliceStable(kept, func(i, j int) bool {
		return facts.Confidences[kept[i]] > facts.Confidences[kept[j]]
	})

	if len(kept) > policy.MaxPatterns {
		for _, pattern := range kept[policy.MaxPatterns:] {
			dropped = append(dropped, models.DiscardedPattern{
				Pattern: pattern,
				Reason:  fmt.Sprintf("ranked below retention bound of %d", policy.MaxPatterns),
			})
		}
		kept = kept[:policy.MaxPatterns]
	}

	compressed := models.DiscoveredFacts{
		Patterns:          kept,
		Confidences:       make(map[string]float64, len(kept)),
		PageUnderstanding: facts.PageUnderstanding,
		Discarded:         append(append([]models.DiscardedPattern(nil), facts.Discarded...), dropped...),
		NewDiscoveries:    append([]string(nil), facts.NewDiscoveries...),
	}
	for _, pattern := range kept {
		compressed.Confidences[pattern] = facts.Confidences[pattern]
	}

	if logger != nil {
		logger.Info("compressed memory",
			"before", len(facts.Patterns),
			"after", len(kept),
			"dropped", len(dropped))
	}
	return compressed
}
