package oracle

import (
	"errors"
	"testing"
)

func TestParseChunkAnalysis_Valid(t *testing.T) {
	response := `{
		"discovered_patterns": [".item", ".item .title"],
		"confidence_scores": {".item": 0.9, ".item .title": 0.75},
		"page_understanding": "product listing page"
	}`

	analysis, err := ParseChunkAnalysis(response)
	if err != nil {
		t.Fatalf("ParseChunkAnalysis() error = %v", err)
	}
	if len(analysis.DiscoveredPatterns) != 2 {
		t.Errorf("DiscoveredPatterns = %v, want 2 entries", analysis.DiscoveredPatterns)
	}
	if analysis.ConfidenceScores[".item"] != 0.9 {
		t.Errorf("ConfidenceScores[.item] = %v, want 0.9", analysis.ConfidenceScores[".item"])
	}
	if analysis.PageUnderstanding != "product listing page" {
		t.Errorf("PageUnderstanding = %q", analysis.PageUnderstanding)
	}
}

func TestParseChunkAnalysis_StripsFences(t *testing.T) {
	response := "```json\n{\"discovered_patterns\": [\".card\"], \"confidence_scores\": {\".card\": 0.8}}\n```"

	analysis, err := ParseChunkAnalysis(response)
	if err != nil {
		t.Fatalf("ParseChunkAnalysis() error = %v", err)
	}
	if len(analysis.DiscoveredPatterns) != 1 || analysis.DiscoveredPatterns[0] != ".card" {
		t.Errorf("DiscoveredPatterns = %v", analysis.DiscoveredPatterns)
	}
}

func TestParseChunkAnalysis_RejectsNonConforming(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"not json", "the page looks like a listing"},
		{"missing required keys", `{"page_understanding": "x"}`},
		{"confidence out of range", `{"discovered_patterns": [".a"], "confidence_scores": {".a": 1.7}}`},
		{"wrong pattern type", `{"discovered_patterns": [42], "confidence_scores": {}}`},
		{"empty", "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseChunkAnalysis(tc.response); !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("ParseChunkAnalysis() error = %v, want ErrInvalidResponse", err)
			}
		})
	}
}

func TestParseSchemaProposal_Valid(t *testing.T) {
	response := `{
		"container_selector": {"selector": ".results", "confidence": 0.85, "expected_count": 20},
		"item_selector": {"selector": ".item", "confidence": 0.8},
		"field_selectors": {
			"title": {"selector": ".title", "confidence": 0.9, "fallbacks": ["h2"]},
			"link": {"selector": "a", "confidence": 0.7}
		},
		"strategy_explanation": "repeating cards under .results"
	}`

	proposal, err := ParseSchemaProposal(response)
	if err != nil {
		t.Fatalf("ParseSchemaProposal() error = %v", err)
	}
	if proposal.Container.Selector != ".results" {
		t.Errorf("Container.Selector = %q", proposal.Container.Selector)
	}
	if proposal.Fields["title"].Fallbacks[0] != "h2" {
		t.Errorf("title fallbacks = %v", proposal.Fields["title"].Fallbacks)
	}
	if proposal.Explanation == "" {
		t.Error("Explanation empty")
	}
}

func TestParseSchemaProposal_RejectsBadConfidence(t *testing.T) {
	response := `{"container_selector": {"selector": ".r", "confidence": 5}}`
	if _, err := ParseSchemaProposal(response); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("ParseSchemaProposal() error = %v, want ErrInvalidResponse", err)
	}
}

func TestStripFences(t *testing.T) {
	if got := StripFences("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Errorf("StripFences() = %q", got)
	}
	if got := StripFences("```\n{}\n```"); got != "{}" {
		t.Errorf("StripFences() = %q", got)
	}
	if got := StripFences(" {} "); got != "{}" {
		t.Errorf("StripFences() without fences = %q", got)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(ErrInvalidResponse) {
		t.Error("validation failure misclassified as oracle failure")
	}
	if !IsTerminal(&Failure{Kind: FailureTerminal, Err: errNoScriptedResponse}) {
		t.Error("terminal failure not detected")
	}
	if IsTerminal(&Failure{Kind: FailureTransient, Err: errNoScriptedResponse}) {
		t.Error("transient failure misclassified as terminal")
	}
}
