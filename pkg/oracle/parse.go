package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidResponse marks an oracle response that decoded but did not
// conform to the expected shape. It is distinct from an oracle Failure: the
// call succeeded, the payload is untrusted.
var ErrInvalidResponse = errors.New("invalid oracle response")

// ChunkAnalysis is the structured result of one segment's analysis.
type ChunkAnalysis struct {
	DiscoveredPatterns []string           `json:"discovered_patterns"`
	ConfidenceScores   map[string]float64 `json:"confidence_scores"`
	PageUnderstanding  string             `json:"page_understanding"`
}

// SelectorProposal is one proposed container or item selector. A zero
// Confidence means the oracle did not score it.
type SelectorProposal struct {
	Selector      string  `json:"selector"`
	Confidence    float64 `json:"confidence"`
	Description   string  `json:"description"`
	ExpectedCount int     `json:"expected_count"`
}

// FieldProposal is one proposed field selector.
type FieldProposal struct {
	Selector    string   `json:"selector"`
	Confidence  float64  `json:"confidence"`
	Fallbacks   []string `json:"fallbacks"`
	Description string   `json:"description"`
}

// SchemaProposal is the structured result of the synthesis request.
type SchemaProposal struct {
	Container   SelectorProposal         `json:"container_selector"`
	Item        SelectorProposal         `json:"item_selector"`
	Fields      map[string]FieldProposal `json:"field_selectors"`
	Explanation string                   `json:"strategy_explanation"`
}

const chunkAnalysisSchemaSrc = `{
	"type": "object",
	"required": ["discovered_patterns", "confidence_scores"],
	"properties": {
		"discovered_patterns": {
			"type": "array",
			"items": {"type": "string"}
		},
		"confidence_scores": {
			"type": "object",
			"additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
		},
		"page_understanding": {"type": "string"}
	}
}`

const schemaProposalSchemaSrc = `{
	"type": "object",
	"properties": {
		"container_selector": {"$ref": "#/$defs/selector"},
		"item_selector": {"$ref": "#/$defs/selector"},
		"field_selectors": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": {
					"selector": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1},
					"fallbacks": {"type": "array", "items": {"type": "string"}},
					"description": {"type": "string"}
				}
			}
		},
		"strategy_explanation": {"type": "string"}
	},
	"$defs": {
		"selector": {
			"type": "object",
			"properties": {
				"selector": {"type": "string"},
				"confidence": {"type": "number", "minimum": 0, "maximum": 1},
				"description": {"type": "string"},
				"expected_count": {"type": "integer"}
			}
		}
	}
}`

var (
	chunkAnalysisSchema  = jsonschema.MustCompileString("chunk_analysis.json", chunkAnalysisSchemaSrc)
	schemaProposalSchema = jsonschema.MustCompileString("schema_proposal.json", schemaProposalSchemaSrc)
)

// ParseChunkAnalysis validates and decodes a segment-analysis response.
func ParseChunkAnalysis(text string) (*ChunkAnalysis, error) {
	raw, err := decodeValidated(text, chunkAnalysisSchema)
	if err != nil {
		return nil, err
	}
	var out ChunkAnalysis
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if out.ConfidenceScores == nil {
		out.ConfidenceScores = make(map[string]float64)
	}
	return &out, nil
}

// ParseSchemaProposal validates and decodes a synthesis response.
func ParseSchemaProposal(text string) (*SchemaProposal, error) {
	raw, err := decodeValidated(text, schemaProposalSchema)
	if err != nil {
		return nil, err
	}
	var out SchemaProposal
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &out, nil
}

func decodeValidated(text string, schema *jsonschema.Schema) ([]byte, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrInvalidResponse, err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return []byte(cleaned), nil
}

// StripFences removes incidental markdown code-fence markers around a
// response body.
func StripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
