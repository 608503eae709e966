// Package models defines the data structures shared across the analysis
// pipeline: segments, belief state, extraction intents, and the final
// extraction schema.
package models

import "fmt"

// Intent captures the user's extraction goal.
type Intent struct {
	// Query is the original natural-language request.
	Query string `json:"query"`

	// TargetFields lists the data fields to extract (e.g. "title", "price").
	TargetFields []string `json:"target_fields"`

	// Context is the inferred domain (e.g. "job listings", "products").
	Context string `json:"context,omitempty"`
}

// Validate checks the intent invariants.
func (i *Intent) Validate() error {
	if len(i.TargetFields) == 0 {
		return fmt.Errorf("intent must name at least one target field")
	}
	return nil
}

// HasField reports whether name is one of the target fields.
func (i *Intent) HasField(name string) bool {
	for _, f := range i.TargetFields {
		if f == name {
			return true
		}
	}
	return false
}
