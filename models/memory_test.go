package models

import "testing"

func TestDiscoveredFactsClone(t *testing.T) {
	facts := NewDiscoveredFacts()
	facts.Patterns = []string{".a", ".b"}
	facts.Confidences[".a"] = 0.9
	facts.Confidences[".b"] = 0.4
	facts.Discarded = []DiscardedPattern{{Pattern: ".c", Reason: "low confidence"}}

	clone := facts.Clone()
	clone.Patterns[0] = ".changed"
	clone.Confidences[".a"] = 0.1
	clone.Discarded[0].Pattern = ".changed"

	if facts.Patterns[0] != ".a" {
		t.Error("Clone() shares the patterns slice")
	}
	if facts.Confidences[".a"] != 0.9 {
		t.Error("Clone() shares the confidences map")
	}
	if facts.Discarded[0].Pattern != ".c" {
		t.Error("Clone() shares the discard log")
	}
}

func TestDiscoveredFactsValidate(t *testing.T) {
	facts := NewDiscoveredFacts()
	facts.Confidences[".a"] = 0.5
	if err := facts.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	facts.Confidences[".b"] = 1.3
	if err := facts.Validate(); err == nil {
		t.Error("Validate() expected error for out-of-range confidence")
	}
}

func TestDiscoveredFactsHighConfidence(t *testing.T) {
	facts := NewDiscoveredFacts()
	facts.Confidences[".keep"] = 0.85
	facts.Confidences[".edge"] = 0.8
	facts.Confidences[".drop"] = 0.79

	high := facts.HighConfidence(0.8)
	if len(high) != 2 {
		t.Fatalf("HighConfidence() = %v, want 2 entries", high)
	}
	if _, ok := high[".edge"]; !ok {
		t.Error("threshold should be inclusive")
	}
}

func TestDiscoveredFactsMaxConfidence(t *testing.T) {
	facts := NewDiscoveredFacts()
	if got := facts.MaxConfidence(); got != 0 {
		t.Errorf("MaxConfidence() on empty = %v", got)
	}
	facts.Confidences[".a"] = 0.3
	facts.Confidences[".b"] = 0.7
	if got := facts.MaxConfidence(); got != 0.7 {
		t.Errorf("MaxConfidence() = %v, want 0.7", got)
	}
}

func TestMemoryCursorValidate(t *testing.T) {
	cursor := MemoryCursor{Path: "//html[position()>=100]"}
	if err := cursor.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	for _, path := range []string{"", "html/body"} {
		cursor.Path = path
		if err := cursor.Validate(); err == nil {
			t.Errorf("Validate() expected error for path %q", path)
		}
	}
}

func TestCompressionPolicyValidate(t *testing.T) {
	policy := CompressionPolicy{MaxPatterns: 50, MinConfidence: 0.4}
	if err := policy.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	policy.MaxPatterns = 0
	if err := policy.Validate(); err == nil {
		t.Error("Validate() expected error for zero retention")
	}

	policy = CompressionPolicy{MaxPatterns: 10, MinConfidence: 1.5}
	if err := policy.Validate(); err == nil {
		t.Error("Validate() expected error for out-of-range confidence")
	}
}
