package strategist

import (
	"fmt"

	"github.com/cywujeremy/ai-crawling-strategist/pkg/segmenter"
)

// Config holds the tunable parameters of an analysis run.
type Config struct {
	// ChunkSize is the target token budget per segment.
	ChunkSize int `yaml:"chunk_size"`

	// OverlapSize is the token overlap carried between adjacent segments.
	OverlapSize int `yaml:"overlap_size"`

	// ConfidenceThreshold is the floor for a pattern to count as established.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// CompressionThreshold is the pattern count that triggers memory
	// compression.
	CompressionThreshold int `yaml:"compression_threshold"`

	// PreserveContext keeps ancestor context attached to each segment.
	PreserveContext bool `yaml:"preserve_context"`

	// EnableValidation turns on selector checks against the source markup.
	EnableValidation bool `yaml:"enable_validation"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		ChunkSize:            2000,
		OverlapSize:          200,
		ConfidenceThreshold:  0.8,
		CompressionThreshold: 50,
		PreserveContext:      true,
		EnableValidation:     true,
	}
}

// Validate checks the config invariants.
func (c *Config) Validate() error {
	if c.ChunkSize < segmenter.MinTargetSize {
		return fmt.Errorf("%w: chunk size must be at least %d tokens, got %d", ErrConfiguration, segmenter.MinTargetSize, c.ChunkSize)
	}
	if c.OverlapSize < 0 || c.OverlapSize >= c.ChunkSize/2 {
		return fmt.Errorf("%w: overlap size must be non-negative and below half the chunk size, got %d", ErrConfiguration, c.OverlapSize)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold out of range: %v", ErrConfiguration, c.ConfidenceThreshold)
	}
	if c.CompressionThreshold < 10 {
		return fmt.Errorf("%w: compression threshold must be at least 10, got %d", ErrConfiguration, c.CompressionThreshold)
	}
	return nil
}
