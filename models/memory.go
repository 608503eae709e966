package models

import "fmt"

// DiscardedPattern records a pattern removed by compression, with the reason.
// Compression is lossy for recall but must stay auditable.
type DiscardedPattern struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// DiscoveredFacts is the evolving belief state: structural patterns found so
// far, per-pattern confidence, and a running free-text understanding of the
// page. Pattern identity is exact string equality; selectors that happen to
// match the same elements are kept as distinct patterns.
type DiscoveredFacts struct {
	// Patterns holds discovered selector patterns in append order.
	Patterns []string `json:"patterns"`

	// Confidences maps each pattern to a probability in [0,1].
	Confidences map[string]float64 `json:"confidences"`

	// PageUnderstanding is the latest non-empty structural summary.
	PageUnderstanding string `json:"page_understanding,omitempty"`

	// Discarded logs every pattern removed by compression.
	Discarded []DiscardedPattern `json:"discarded,omitempty"`

	// NewDiscoveries lists patterns admitted from the most recent segment.
	NewDiscoveries []string `json:"new_discoveries,omitempty"`
}

// NewDiscoveredFacts returns an empty belief state.
func NewDiscoveredFacts() DiscoveredFacts {
	return DiscoveredFacts{Confidences: make(map[string]float64)}
}

// Clone returns a deep copy of the facts.
func (f *DiscoveredFacts) Clone() DiscoveredFacts {
	out := DiscoveredFacts{
		Patterns:          append([]string(nil), f.Patterns...),
		Confidences:       make(map[string]float64, len(f.Confidences)),
		PageUnderstanding: f.PageUnderstanding,
		Discarded:         append([]DiscardedPattern(nil), f.Discarded...),
		NewDiscoveries:    append([]string(nil), f.NewDiscoveries...),
	}
	for k, v := range f.Confidences {
		out.Confidences[k] = v
	}
	return out
}

// Validate checks that every recorded confidence is a valid probability.
func (f *DiscoveredFacts) Validate() error {
	for pattern, conf := range f.Confidences {
		if conf < 0 || conf > 1 {
			return fmt.Errorf("confidence for %q out of range: %v", pattern, conf)
		}
	}
	return nil
}

// HighConfidence returns the patterns at or above threshold, keyed to their
// confidence.
func (f *DiscoveredFacts) HighConfidence(threshold float64) map[string]float64 {
	out := make(map[string]float64)
	for pattern, conf := range f.Confidences {
		if conf >= threshold {
			out[pattern] = conf
		}
	}
	return out
}

// MaxConfidence returns the highest recorded confidence, zero when empty.
func (f *DiscoveredFacts) MaxConfidence() float64 {
	var max float64
	for _, conf := range f.Confidences {
		if conf > max {
			max = conf
		}
	}
	return max
}

// MemoryCursor tracks where processing stands in the document.
type MemoryCursor struct {
	// Path is a locator anchored at the document root.
	Path string `json:"path"`

	// OpenContext is the serialized open-ancestor context at the cursor.
	OpenContext string `json:"open_context,omitempty"`

	// PreviousTail is the trailing content of the last processed segment.
	PreviousTail string `json:"previous_tail,omitempty"`

	// Depth is the nesting depth at the cursor.
	Depth int `json:"depth"`
}

// Validate checks the cursor invariants.
func (c *MemoryCursor) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("memory cursor path must not be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("memory cursor path must be anchored at the document root: %q", c.Path)
	}
	return nil
}

// CompressionPolicy bounds the belief state's size.
type CompressionPolicy struct {
	// MaxPatterns is the maximum number of patterns retained.
	MaxPatterns int `json:"max_patterns"`

	// MinConfidence is the floor below which patterns are always dropped.
	MinConfidence float64 `json:"min_confidence"`

	// PrioritizeRecent keeps appearance order among equal confidences.
	PrioritizeRecent bool `json:"prioritize_recent"`

	// KeepIntentMatches marks intent-matching patterns as retention-priority.
	KeepIntentMatches bool `json:"keep_intent_matches"`
}

// Validate checks the policy invariants.
func (p *CompressionPolicy) Validate() error {
	if p.MaxPatterns < 1 {
		return fmt.Errorf("compression policy must retain at least one pattern")
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("compression min confidence out of range: %v", p.MinConfidence)
	}
	return nil
}
