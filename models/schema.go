package models

import (
	"fmt"
	"strings"
)

// SelectorKind distinguishes selector syntaxes.
type SelectorKind string

const (
	SelectorCSS   SelectorKind = "css"
	SelectorXPath SelectorKind = "xpath"
)

// ExtractionMode says how a matched element's value is pulled out.
type ExtractionMode string

const (
	ExtractText      ExtractionMode = "text"
	ExtractAttribute ExtractionMode = "attribute"
	ExtractHTML      ExtractionMode = "html"
)

// ContainerSelector identifies the element holding the repeating items.
type ContainerSelector struct {
	Selector      string       `json:"selector"`
	Kind          SelectorKind `json:"kind"`
	Confidence    float64      `json:"confidence"`
	Description   string       `json:"description,omitempty"`
	ExpectedItems int          `json:"expected_items,omitempty"`
}

// ItemSelector identifies one repeating item within the container.
type ItemSelector struct {
	Selector            string       `json:"selector"`
	Kind                SelectorKind `json:"kind"`
	Confidence          float64      `json:"confidence"`
	Description         string       `json:"description,omitempty"`
	RelativeToContainer bool         `json:"relative_to_container"`
}

// FieldSelector is one field's extraction rule.
type FieldSelector struct {
	Primary     string         `json:"primary"`
	Kind        SelectorKind   `json:"kind"`
	Confidence  float64        `json:"confidence"`
	Fallbacks   []string       `json:"fallbacks,omitempty"`
	Description string         `json:"description,omitempty"`
	Mode        ExtractionMode `json:"mode"`
	Attribute   string         `json:"attribute,omitempty"`
}

// Validate checks the field selector invariants.
func (f *FieldSelector) Validate() error {
	if strings.TrimSpace(f.Primary) == "" {
		return fmt.Errorf("field primary selector must not be empty")
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("field confidence out of range: %v", f.Confidence)
	}
	if f.Mode == ExtractAttribute && f.Attribute == "" {
		return fmt.Errorf("attribute extraction requires an attribute name")
	}
	if f.Mode != ExtractAttribute && f.Attribute != "" {
		return fmt.Errorf("attribute name only allowed for attribute extraction")
	}
	return nil
}

// FallbackStrategy is an alternate full extraction plan used when the primary
// selectors stop matching.
type FallbackStrategy struct {
	Name              string            `json:"name"`
	ContainerSelector string            `json:"container_selector,omitempty"`
	ItemSelector      string            `json:"item_selector,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
	Confidence        float64           `json:"confidence"`
	TriggerConditions []string          `json:"trigger_conditions,omitempty"`
}

// Complete reports whether the strategy supplies a container, an item, and
// every required field.
func (s *FallbackStrategy) Complete(required []string) bool {
	if s.ContainerSelector == "" || s.ItemSelector == "" {
		return false
	}
	for _, field := range required {
		if _, ok := s.Fields[field]; !ok {
			return false
		}
	}
	return true
}

// ExtractionSchema is the final, machine-applicable extraction plan.
type ExtractionSchema struct {
	Container  ContainerSelector        `json:"container"`
	Item       ItemSelector             `json:"item"`
	Fields     map[string]FieldSelector `json:"fields"`
	Fallbacks  []FallbackStrategy       `json:"fallbacks,omitempty"`
	Confidence float64                  `json:"confidence"`
	Rationale  string                   `json:"rationale,omitempty"`
	Metadata   map[string]any           `json:"metadata,omitempty"`
}

// Validate checks the schema invariants.
func (s *ExtractionSchema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema must define at least one field")
	}
	if strings.TrimSpace(s.Container.Selector) == "" {
		return fmt.Errorf("container selector must not be empty")
	}
	if strings.TrimSpace(s.Item.Selector) == "" {
		return fmt.Errorf("item selector must not be empty")
	}
	for _, conf := range []float64{s.Container.Confidence, s.Item.Confidence, s.Confidence} {
		if conf < 0 || conf > 1 {
			return fmt.Errorf("schema confidence out of range: %v", conf)
		}
	}
	for name, field := range s.Fields {
		if err := field.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

// FieldNames returns the schema's field names.
func (s *ExtractionSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	return names
}

// BestFallback returns the highest-confidence fallback strategy that supplies
// every required field, or nil when none is complete.
func (s *ExtractionSchema) BestFallback(required []string) *FallbackStrategy {
	var best *FallbackStrategy
	for i := range s.Fallbacks {
		fb := &s.Fallbacks[i]
		if !fb.Complete(required) {
			continue
		}
		if best == nil || fb.Confidence > best.Confidence {
			best = fb
		}
	}
	return best
}

// SelectorConfig converts the schema into the generic selector-configuration
// map consumed by a downstream scraping executor.
func (s *ExtractionSchema) SelectorConfig() map[string]any {
	fields := make(map[string]any, len(s.Fields))
	for name, field := range s.Fields {
		cfg := map[string]any{
			"selector": field.Primary,
			"type":     string(field.Kind),
		}
		if field.Mode == ExtractAttribute && field.Attribute != "" {
			cfg["attribute"] = field.Attribute
		} else if field.Mode == ExtractHTML {
			cfg["extract_html"] = true
		}
		if len(field.Fallbacks) > 0 {
			cfg["fallback_selectors"] = field.Fallbacks
		}
		fields[name] = cfg
	}

	config := map[string]any{
		"container_selector": s.Container.Selector,
		"item_selector":      s.Item.Selector,
		"fields":             fields,
	}

	if best := s.BestFallback(s.FieldNames()); best != nil {
		config["fallback"] = map[string]any{
			"container_selector": best.ContainerSelector,
			"item_selector":      best.ItemSelector,
			"fields":             best.Fields,
		}
	}

	return config
}
