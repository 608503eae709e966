// Package synth turns a consolidated belief state into a concrete extraction
// schema: primary selectors per field, a fallback strategy assembled from the
// mid-confidence band, and an aggregate confidence for the whole plan.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cywujeremy/ai-crawling-strategist/models"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/memory"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/oracle"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/prompts"
)

const (
	synthesisMaxTokens   = 6000
	synthesisTemperature = 0.1

	// fallbackFloor is the lower edge of the mid-confidence band mined for
	// the fallback strategy.
	fallbackFloor = 0.4

	// defaultFieldConfidence applies when the oracle proposes a selector
	// without scoring it.
	defaultFieldConfidence = 0.6
)

// Synthesizer builds the final schema from a snapshot.
type Synthesizer struct {
	oracle    oracle.Oracle
	loader    *prompts.Loader
	logger    *slog.Logger
	threshold float64
}

// NewSynthesizer wires a synthesizer. threshold is the confidence floor for a
// pattern to count as established.
func NewSynthesizer(o oracle.Oracle, loader *prompts.Loader, logger *slog.Logger, threshold float64) *Synthesizer {
	return &Synthesizer{oracle: o, loader: loader, logger: logger, threshold: threshold}
}

// Synthesize asks the oracle for a schema proposal, fills gaps with the belief
// state and stock defaults, and returns a complete schema. sourceHTML, when
// non-empty, is used for a non-fatal self-check of the chosen selectors.
func (s *Synthesizer) Synthesize(ctx context.Context, snap *memory.Snapshot, sourceHTML string) (*models.ExtractionSchema, oracle.Usage, error) {
	highConf := snap.Facts.HighConfidence(s.threshold)

	memoryView := map[string]any{
		"discovered_patterns": highConf,
		"page_understanding":  snap.Facts.PageUnderstanding,
		"target_entities":     snap.Intent.TargetFields,
		"total_patterns":      len(snap.Facts.Patterns),
		"confidence_scores":   snap.Facts.Confidences,
	}
	memoryJSON, err := json.Marshal(memoryView)
	if err != nil {
		return nil, oracle.Usage{}, fmt.Errorf("encoding memory view: %w", err)
	}

	prompt, err := s.loader.RenderSchemaGeneration(snap.Intent.Query, string(memoryJSON))
	if err != nil {
		return nil, oracle.Usage{}, fmt.Errorf("rendering synthesis prompt: %w", err)
	}

	result, err := s.oracle.Invoke(ctx, prompt, oracle.InvokeOptions{
		MaxTokens:   synthesisMaxTokens,
		Temperature: synthesisTemperature,
		Purpose:     "synthesis",
	})
	if err != nil {
		return nil, oracle.Usage{}, fmt.Errorf("synthesizing schema: %w", err)
	}

	proposal, err := oracle.ParseSchemaProposal(result.Text)
	if err != nil {
		return nil, result.Usage, err
	}

	schema := s.assemble(proposal, snap, highConf)

	if sourceHTML != "" {
		s.selfCheck(schema, sourceHTML)
	}
	if s.logger != nil {
		s.logger.Info("synthesized schema",
			"container", schema.Container.Selector,
			"item", schema.Item.Selector,
			"fields", len(schema.Fields),
			"confidence", schema.Confidence)
	}
	return schema, result.Usage, nil
}

// assemble resolves every slot of the schema by precedence: oracle proposal,
// then belief state, then stock default.
func (s *Synthesizer) assemble(proposal *oracle.SchemaProposal, snap *memory.Snapshot, highConf map[string]float64) *models.ExtractionSchema {
	container := s.containerSelector(proposal.Container, highConf)
	item := s.itemSelector(proposal.Item, highConf)
	fields := s.fieldSelectors(proposal.Fields, snap.Intent.TargetFields)
	fallbacks := s.fallbackStrategies(snap.Facts.Confidences, fields)

	return &models.ExtractionSchema{
		Container:  container,
		Item:       item,
		Fields:     fields,
		Fallbacks:  fallbacks,
		Confidence: aggregateConfidence(container, item, fields),
		Rationale:  proposal.Explanation,
		Metadata: map[string]any{
			"total_patterns":          len(snap.Facts.Patterns),
			"high_confidence_patterns": len(highConf),
			"user_context":            snap.Intent.Context,
		},
	}
}

func (s *Synthesizer) containerSelector(p oracle.SelectorProposal, highConf map[string]float64) models.ContainerSelector {
	selector := p.Selector
	if selector == "" {
		selector = bestPattern(highConf)
	}
	if selector == "" {
		selector = "body"
	}

	confidence := p.Confidence
	if confidence == 0 {
		if c, ok := highConf[selector]; ok {
			confidence = c
		} else {
			confidence = 0.5
		}
	}
	description := p.Description
	if description == "" {
		description = "Main content container"
	}
	return models.ContainerSelector{
		Selector:      selector,
		Kind:          models.SelectorCSS,
		Confidence:    confidence,
		Description:   description,
		ExpectedItems: p.ExpectedCount,
	}
}

func (s *Synthesizer) itemSelector(p oracle.SelectorProposal, highConf map[string]float64) models.ItemSelector {
	selector := p.Selector
	if selector == "" {
		for _, marker := range itemMarkers {
			if _, ok := highConf[marker]; ok {
				selector = marker
				break
			}
		}
	}
	if selector == "" {
		selector = "div"
	}

	confidence := p.Confidence
	if confidence == 0 {
		if c, ok := highConf[selector]; ok {
			confidence = c
		} else {
			confidence = 0.5
		}
	}
	description := p.Description
	if description == "" {
		description = "Individual content item"
	}
	return models.ItemSelector{
		Selector:            selector,
		Kind:                models.SelectorCSS,
		Confidence:          confidence,
		Description:         description,
		RelativeToContainer: true,
	}
}

func (s *Synthesizer) fieldSelectors(proposed map[string]oracle.FieldProposal, targetFields []string) map[string]models.FieldSelector {
	fields := make(map[string]models.FieldSelector, len(targetFields))
	for _, name := range targetFields {
		p := proposed[name]
		defaultPrimary, defaultFallbacks := DefaultSelector(name)

		primary := p.Selector
		if primary == "" {
			primary = defaultPrimary
		}
		fallbacks := p.Fallbacks
		if len(fallbacks) == 0 {
			fallbacks = defaultFallbacks
		}
		confidence := p.Confidence
		if confidence == 0 {
			confidence = defaultFieldConfidence
		}
		description := p.Description
		if description == "" {
			description = fmt.Sprintf("Extract %s information", name)
		}

		fields[name] = models.FieldSelector{
			Primary:     primary,
			Kind:        models.SelectorCSS,
			Confidence:  confidence,
			Fallbacks:   fallbacks,
			Description: description,
			Mode:        ExtractionModeFor(name),
			Attribute:   AttributeFor(name),
		}
	}
	return fields
}

// fallbackStrategies mines the mid-confidence band, patterns at or above the
// floor but below the established threshold, into one alternate plan.
func (s *Synthesizer) fallbackStrategies(confidences map[string]float64, fields map[string]models.FieldSelector) []models.FallbackStrategy {
	band := make(map[string]float64)
	for pattern, conf := range confidences {
		if conf >= fallbackFloor && conf < s.threshold {
			band[pattern] = conf
		}
	}
	if len(band) == 0 {
		return nil
	}

	fallbackFields := make(map[string]string, len(fields))
	for name := range fields {
		if pattern := matchFallbackPattern(name, band); pattern != "" {
			fallbackFields[name] = pattern
		}
	}
	if len(fallbackFields) == 0 {
		return nil
	}

	var maxConf float64
	for _, conf := range band {
		if conf > maxConf {
			maxConf = conf
		}
	}
	return []models.FallbackStrategy{{
		Name:              "pattern_based_fallback",
		ContainerSelector: "body",
		ItemSelector:      "*",
		Fields:            fallbackFields,
		Confidence:        maxConf,
		TriggerConditions: []string{"primary_selectors_fail", "low_item_count"},
	}}
}

// matchFallbackPattern prefers the highest-confidence band pattern naming the
// field, then the highest-confidence band pattern overall.
func matchFallbackPattern(field string, band map[string]float64) string {
	lower := strings.ToLower(field)
	matches := make(map[string]float64)
	for pattern, conf := range band {
		if strings.Contains(strings.ToLower(pattern), lower) {
			matches[pattern] = conf
		}
	}
	if len(matches) > 0 {
		return bestPattern(matches)
	}
	return bestPattern(band)
}

// bestPattern returns the highest-confidence pattern, breaking ties on the
// lexically smaller pattern so the choice is deterministic.
func bestPattern(scores map[string]float64) string {
	var best string
	var bestConf = -1.0
	for pattern, conf := range scores {
		if conf > bestConf || (conf == bestConf && pattern < best) {
			best, bestConf = pattern, conf
		}
	}
	return best
}

// aggregateConfidence weights the container and item at 0.3 each and spreads
// the remaining 0.4 across the fields, capped at 1.0.
func aggregateConfidence(container models.ContainerSelector, item models.ItemSelector, fields map[string]models.FieldSelector) float64 {
	fieldWeight := 0.4
	if len(fields) > 0 {
		fieldWeight = 0.4 / float64(len(fields))
	}
	sum := container.Confidence*0.3 + item.Confidence*0.3
	for _, f := range fields {
		sum += f.Confidence * fieldWeight
	}
	if sum > 1.0 {
		return 1.0
	}
	return sum
}

// selfCheck probes the chosen selectors against the source document. Failures
// are logged, never fatal; the schema ships with its confidence as-is.
func (s *Synthesizer) selfCheck(schema *models.ExtractionSchema, sourceHTML string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sourceHTML))
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("schema self-check skipped", "error", err)
		}
		return
	}

	containers := doc.Find(schema.Container.Selector)
	if containers.Length() == 0 {
		if s.logger != nil {
			s.logger.Warn("container selector matched nothing", "selector", schema.Container.Selector)
		}
		return
	}
	items := containers.First().Find(schema.Item.Selector)
	if items.Length() == 0 {
		if s.logger != nil {
			s.logger.Warn("item selector matched nothing", "selector", schema.Item.Selector)
		}
		return
	}
	first := items.First()
	for name, field := range schema.Fields {
		if first.Find(field.Primary).Length() == 0 && s.logger != nil {
			s.logger.Warn("field selector matched nothing", "field", name, "selector", field.Primary)
		}
	}
}
