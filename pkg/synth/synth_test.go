package synth

import (
	"context"
	"strings"
	"testing"

	"github.com/cywujeremy/ai-crawling-strategist/models"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/memory"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/oracle"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/prompts"
)

func listingSnapshot() *memory.Snapshot {
	snap := memory.NewSnapshot(models.Intent{
		Query:        "extract product titles, prices and links",
		TargetFields: []string{"title", "price", "link"},
		Context:      "products",
	})
	snap.Facts = memory.Merge(snap.Facts,
		[]string{".results", ".item", ".item .title", ".price-tag"},
		map[string]float64{".results": 0.9, ".item": 0.85, ".item .title": 0.82, ".price-tag": 0.5},
		"grid of product cards")
	return snap
}

func fullProposal() string {
	return `{
		"container_selector": {"selector": ".results", "confidence": 0.9, "description": "results grid", "expected_count": 24},
		"item_selector": {"selector": ".item", "confidence": 0.85},
		"field_selectors": {
			"title": {"selector": ".item .title", "confidence": 0.82, "fallbacks": ["h3"]},
			"price": {"selector": ".price-tag", "confidence": 0.7},
			"link": {"selector": "a.product-link", "confidence": 0.75}
		},
		"strategy_explanation": "cards repeat under the results grid"
	}`
}

func TestSynthesize_CompleteSchema(t *testing.T) {
	stub := &oracle.Stub{Responses: []string{fullProposal()}}
	s := NewSynthesizer(stub, prompts.NewLoader(), nil, 0.8)

	schema, usage, err := s.Synthesize(context.Background(), listingSnapshot(), "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if err := schema.Validate(); err != nil {
		t.Fatalf("schema invalid: %v", err)
	}

	if schema.Container.Selector != ".results" || schema.Container.ExpectedItems != 24 {
		t.Errorf("Container = %+v", schema.Container)
	}
	if schema.Item.Selector != ".item" || !schema.Item.RelativeToContainer {
		t.Errorf("Item = %+v", schema.Item)
	}
	for _, field := range []string{"title", "price", "link"} {
		if _, ok := schema.Fields[field]; !ok {
			t.Errorf("missing field selector for %q", field)
		}
	}
	if schema.Fields["link"].Mode != models.ExtractAttribute || schema.Fields["link"].Attribute != "href" {
		t.Errorf("link field = %+v, want href attribute extraction", schema.Fields["link"])
	}
	if schema.Fields["title"].Mode != models.ExtractText {
		t.Errorf("title field mode = %v, want text", schema.Fields["title"].Mode)
	}
	if schema.Rationale == "" {
		t.Error("Rationale empty")
	}
	if schema.Confidence <= 0 || schema.Confidence > 1 {
		t.Errorf("Confidence = %v", schema.Confidence)
	}
	if usage.TotalTokens == 0 {
		t.Error("usage not reported")
	}
}

func TestSynthesize_FillsGapsFromDefaults(t *testing.T) {
	stub := &oracle.Stub{Responses: []string{`{"strategy_explanation": "nothing concrete"}`}}
	s := NewSynthesizer(stub, prompts.NewLoader(), nil, 0.8)

	schema, _, err := s.Synthesize(context.Background(), listingSnapshot(), "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	// Container falls back to the highest-confidence pattern.
	if schema.Container.Selector != ".results" {
		t.Errorf("Container.Selector = %q, want highest-confidence pattern", schema.Container.Selector)
	}
	// Item falls back to a known repeating-item marker.
	if schema.Item.Selector != ".item" {
		t.Errorf("Item.Selector = %q, want .item marker", schema.Item.Selector)
	}
	// Fields fall back to stock defaults.
	if got := schema.Fields["title"].Primary; got != "h1, h2, h3, .title, .heading" {
		t.Errorf("title primary = %q", got)
	}
	if got := schema.Fields["link"].Primary; got != "a[href]" {
		t.Errorf("link primary = %q", got)
	}
	if got := schema.Fields["price"].Confidence; got != defaultFieldConfidence {
		t.Errorf("price confidence = %v, want default", got)
	}
}

func TestSynthesize_EmptyMemoryStillCompletes(t *testing.T) {
	stub := &oracle.Stub{Responses: []string{`{}`}}
	s := NewSynthesizer(stub, prompts.NewLoader(), nil, 0.8)

	snap := memory.NewSnapshot(models.Intent{Query: "anything", TargetFields: []string{"title"}})
	schema, _, err := s.Synthesize(context.Background(), snap, "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if schema.Container.Selector != "body" {
		t.Errorf("Container.Selector = %q, want body", schema.Container.Selector)
	}
	if schema.Item.Selector != "div" {
		t.Errorf("Item.Selector = %q, want div", schema.Item.Selector)
	}
	if err := schema.Validate(); err != nil {
		t.Errorf("schema invalid: %v", err)
	}
}

func TestSynthesize_FallbackStrategyFromMidBand(t *testing.T) {
	snap := listingSnapshot()
	// .price-tag sits at 0.5, inside the [0.4, 0.8) band.
	stub := &oracle.Stub{Responses: []string{fullProposal()}}
	s := NewSynthesizer(stub, prompts.NewLoader(), nil, 0.8)

	schema, _, err := s.Synthesize(context.Background(), snap, "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(schema.Fallbacks) != 1 {
		t.Fatalf("Fallbacks = %v, want one strategy", schema.Fallbacks)
	}
	fb := schema.Fallbacks[0]
	if fb.Name != "pattern_based_fallback" {
		t.Errorf("fallback name = %q", fb.Name)
	}
	if fb.ContainerSelector != "body" || fb.ItemSelector != "*" {
		t.Errorf("fallback scaffolding = %q / %q", fb.ContainerSelector, fb.ItemSelector)
	}
	if fb.Fields["price"] != ".price-tag" {
		t.Errorf("fallback price = %q, want band pattern naming the field", fb.Fields["price"])
	}
	if len(fb.TriggerConditions) != 2 {
		t.Errorf("TriggerConditions = %v", fb.TriggerConditions)
	}
	if fb.Confidence != 0.5 {
		t.Errorf("fallback confidence = %v, want band maximum", fb.Confidence)
	}
}

func TestMatchFallbackPattern_PrefersHighestConfidenceMatch(t *testing.T) {
	band := map[string]float64{
		"a.title-low":    0.45,
		"div.title-high": 0.75,
		".price-tag":     0.6,
	}
	for i := 0; i < 50; i++ {
		if got := matchFallbackPattern("title", band); got != "div.title-high" {
			t.Fatalf("matchFallbackPattern(title) = %q, want div.title-high", got)
		}
	}
	// No textual match: fall back to the best pattern overall.
	if got := matchFallbackPattern("author", band); got != "div.title-high" {
		t.Errorf("matchFallbackPattern(author) = %q, want div.title-high", got)
	}
}

func TestSynthesize_NoFallbackWhenBandEmpty(t *testing.T) {
	snap := memory.NewSnapshot(models.Intent{Query: "titles", TargetFields: []string{"title"}})
	snap.Facts = memory.Merge(snap.Facts, []string{".title"}, map[string]float64{".title": 0.95}, "")

	stub := &oracle.Stub{Responses: []string{`{}`}}
	s := NewSynthesizer(stub, prompts.NewLoader(), nil, 0.8)

	schema, _, err := s.Synthesize(context.Background(), snap, "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(schema.Fallbacks) != 0 {
		t.Errorf("Fallbacks = %v, want none", schema.Fallbacks)
	}
}

func TestSynthesize_PromptCarriesMemory(t *testing.T) {
	stub := &oracle.Stub{Responses: []string{fullProposal()}}
	s := NewSynthesizer(stub, prompts.NewLoader(), nil, 0.8)

	if _, _, err := s.Synthesize(context.Background(), listingSnapshot(), ""); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	prompt := stub.Prompts[0]
	for _, want := range []string{
		"extract product titles, prices and links",
		".results",
		"grid of product cards",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSynthesize_SurfacesInvalidProposal(t *testing.T) {
	stub := &oracle.Stub{Responses: []string{"the best container is probably .results"}}
	s := NewSynthesizer(stub, prompts.NewLoader(), nil, 0.8)

	if _, _, err := s.Synthesize(context.Background(), listingSnapshot(), ""); err == nil {
		t.Fatal("Synthesize() expected error for non-JSON proposal")
	}
}

func TestSynthesize_SelfCheckDoesNotFail(t *testing.T) {
	stub := &oracle.Stub{Responses: []string{fullProposal()}}
	s := NewSynthesizer(stub, prompts.NewLoader(), nil, 0.8)

	// Source without any matching elements: self-check warns, never errors.
	schema, _, err := s.Synthesize(context.Background(), listingSnapshot(), "<html><body><p>unrelated</p></body></html>")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if err := schema.Validate(); err != nil {
		t.Errorf("schema invalid: %v", err)
	}
}

func TestDefaultSelector_UnknownField(t *testing.T) {
	primary, fallbacks := DefaultSelector("sku")
	if primary != ".sku" {
		t.Errorf("primary = %q, want .sku", primary)
	}
	if len(fallbacks) != 0 {
		t.Errorf("fallbacks = %v, want none", fallbacks)
	}
}

func TestAggregateConfidence_Capped(t *testing.T) {
	container := models.ContainerSelector{Confidence: 1.0}
	item := models.ItemSelector{Confidence: 1.0}
	fields := map[string]models.FieldSelector{
		"title": {Confidence: 1.0},
		"price": {Confidence: 1.0},
	}
	if got := aggregateConfidence(container, item, fields); got > 1.0 {
		t.Errorf("aggregateConfidence() = %v, want capped at 1.0", got)
	}
	if got := aggregateConfidence(container, item, fields); got < 0.99 {
		t.Errorf("aggregateConfidence() = %v, want near 1.0", got)
	}
}
