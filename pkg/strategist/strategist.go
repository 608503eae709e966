// Package strategist orchestrates the full analysis pipeline: clean, segment,
// consolidate segment by segment, then synthesize a schema. When a stage fails
// the run degrades through cheaper strategies instead of erroring out, down to
// a heuristic schema that always succeeds.
package strategist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cywujeremy/ai-crawling-strategist/models"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/cleaner"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/memory"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/oracle"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/prompts"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/segmenter"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/synth"
)

// Stage names the strategy that ultimately produced a result.
type Stage string

const (
	// StageFull is the normal pipeline: bounded segments with context,
	// per-segment consolidation, validated synthesis.
	StageFull Stage = "full"

	// StageChunkFallback retries with doubled segments, no context, and at
	// most three segments analyzed.
	StageChunkFallback Stage = "chunk_fallback"

	// StageSingleChunk truncates the document into one segment.
	StageSingleChunk Stage = "single_chunk"

	// StageBasicFallback builds a heuristic schema without the oracle.
	StageBasicFallback Stage = "basic_fallback"
)

// chunkFallbackSegmentLimit caps how many segments the degraded pass analyzes.
const chunkFallbackSegmentLimit = 3

// charsPerToken converts token budgets into byte budgets for truncation.
const charsPerToken = 4

// Result is one completed analysis.
type Result struct {
	Schema *models.ExtractionSchema `json:"schema"`

	// Stage records which strategy produced the schema.
	Stage Stage `json:"stage"`

	Intent models.Intent `json:"intent"`

	// Segments is how many segments were analyzed.
	Segments int `json:"segments"`

	Usage oracle.Usage `json:"usage"`
}

// Strategist runs analyses under a fixed configuration.
type Strategist struct {
	cfg    Config
	oracle oracle.Oracle
	loader *prompts.Loader
	logger *slog.Logger
}

// New validates the configuration and wires the pipeline.
func New(cfg Config, o oracle.Oracle, logger *slog.Logger) (*Strategist, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: an oracle is required", ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategist{
		cfg:    cfg,
		oracle: o,
		loader: prompts.NewLoader(),
		logger: logger,
	}, nil
}

// Analyze processes raw HTML against a natural-language query and returns an
// extraction schema. It degrades stage by stage on failure and only errors out
// when the context is canceled; the final heuristic stage cannot fail.
func (s *Strategist) Analyze(ctx context.Context, rawHTML, query string) (*Result, error) {
	intent := memory.DeriveIntent(query)

	cleaned, err := cleaner.Clean(rawHTML)
	if err != nil || cleaned == "" {
		s.logger.Error("cleaning failed, using raw markup", "error", err)
		cleaned = rawHTML
	} else {
		stats := cleaner.CleaningStats(rawHTML, cleaned)
		s.logger.Info("cleaned document",
			"original_size", stats.OriginalSize,
			"cleaned_size", stats.CleanedSize,
			"reduction_pct", stats.ReductionPercent)
	}

	result, err := s.fullAnalysis(ctx, cleaned, intent)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	switch {
	case isSegmentationFailure(err):
		s.logger.Error("segmentation failed, degrading to chunk fallback", "error", err)
		result, err = s.chunkFallback(ctx, cleaned, intent)
	case isSynthesisFailure(err):
		s.logger.Error("synthesis failed, degrading to basic fallback", "error", err)
		return s.basicFallback(intent), nil
	default:
		s.logger.Error("consolidation failed, degrading to single chunk", "error", err)
		result, err = s.singleChunk(ctx, cleaned, intent)
	}
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	if retrySingleChunk(err) {
		s.logger.Error("degraded analysis failed, trying single chunk", "error", err)
		if result, err = s.singleChunk(ctx, cleaned, intent); err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}

	s.logger.Error("all oracle-backed stages failed, using basic fallback", "error", err)
	return s.basicFallback(intent), nil
}

// fullAnalysis is the normal pipeline.
func (s *Strategist) fullAnalysis(ctx context.Context, cleaned string, intent models.Intent) (*Result, error) {
	seg, err := segmenter.New(segmenter.Config{
		TargetSize:  s.cfg.ChunkSize,
		OverlapSize: s.cfg.OverlapSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	segments, err := seg.Segment(cleaned, s.cfg.PreserveContext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	s.logger.Info("segmented document", "segments", len(segments))

	snap, err := s.consolidate(ctx, segments, intent, true)
	if err != nil {
		return nil, err
	}

	sourceHTML := ""
	if s.cfg.EnableValidation {
		sourceHTML = cleaned
	}
	schema, usage, err := s.synthesize(ctx, snap, sourceHTML)
	if err != nil {
		return nil, err
	}
	return &Result{
		Schema:   schema,
		Stage:    StageFull,
		Intent:   intent,
		Segments: len(segments),
		Usage:    addUsage(snap.Usage, usage),
	}, nil
}

// chunkFallback retries with doubled segments, no ancestor context, and a cap
// on how many segments are analyzed. Synthesis skips self-validation.
func (s *Strategist) chunkFallback(ctx context.Context, cleaned string, intent models.Intent) (*Result, error) {
	seg, err := segmenter.New(segmenter.Config{
		TargetSize:  s.cfg.ChunkSize * 2,
		OverlapSize: s.cfg.OverlapSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	segments, err := seg.Segment(cleaned, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	if len(segments) > chunkFallbackSegmentLimit {
		segments = segments[:chunkFallbackSegmentLimit]
	}
	s.logger.Info("degraded segmentation", "segments", len(segments))

	snap, err := s.consolidate(ctx, segments, intent, false)
	if err != nil {
		return nil, err
	}
	schema, usage, err := s.synthesize(ctx, snap, "")
	if err != nil {
		return nil, err
	}
	return &Result{
		Schema:   schema,
		Stage:    StageChunkFallback,
		Intent:   intent,
		Segments: len(segments),
		Usage:    addUsage(snap.Usage, usage),
	}, nil
}

// singleChunk truncates the document into one segment and analyzes it whole.
func (s *Strategist) singleChunk(ctx context.Context, cleaned string, intent models.Intent) (*Result, error) {
	maxBytes := s.cfg.ChunkSize * 3 * charsPerToken
	content := cleaned
	if len(content) > maxBytes {
		content = content[:maxBytes]
	}

	segment := models.Segment{
		ID:              "single_chunk",
		Content:         content,
		Index:           0,
		Total:           1,
		Span:            models.Span{Start: 0, End: len(content)},
		EstimatedTokens: segmenter.EstimateTokens(content),
	}

	snap, err := s.consolidate(ctx, []models.Segment{segment}, intent, false)
	if err != nil {
		return nil, err
	}
	schema, usage, err := s.synthesize(ctx, snap, "")
	if err != nil {
		return nil, err
	}
	return &Result{
		Schema:   schema,
		Stage:    StageSingleChunk,
		Intent:   intent,
		Segments: 1,
		Usage:    addUsage(snap.Usage, usage),
	}, nil
}

// basicFallback builds a heuristic schema from the intent alone. It never
// touches the oracle and cannot fail.
func (s *Strategist) basicFallback(intent models.Intent) *Result {
	fields := make(map[string]models.FieldSelector, len(intent.TargetFields))
	for _, name := range intent.TargetFields {
		primary, fallbacks := synth.DefaultSelector(name)
		fields[name] = models.FieldSelector{
			Primary:     primary,
			Kind:        models.SelectorCSS,
			Confidence:  0.3,
			Fallbacks:   fallbacks,
			Description: fmt.Sprintf("Fallback selector for %s", name),
			Mode:        synth.ExtractionModeFor(name),
			Attribute:   synth.AttributeFor(name),
		}
	}

	schema := &models.ExtractionSchema{
		Container: models.ContainerSelector{
			Selector:    "body",
			Kind:        models.SelectorCSS,
			Confidence:  0.3,
			Description: "Fallback container selector",
		},
		Item: models.ItemSelector{
			Selector:            "div, article, section, li",
			Kind:                models.SelectorCSS,
			Confidence:          0.3,
			Description:         "Fallback item selector",
			RelativeToContainer: true,
		},
		Fields:     fields,
		Confidence: 0.3,
		Rationale: fmt.Sprintf(
			"Fallback schema generated for query: %q. This schema uses basic selectors and may require manual refinement.",
			intent.Query),
	}
	return &Result{
		Schema: schema,
		Stage:  StageBasicFallback,
		Intent: intent,
	}
}

// consolidate evolves the belief state over the segments in order.
func (s *Strategist) consolidate(ctx context.Context, segments []models.Segment, intent models.Intent, validatePatterns bool) (*memory.Snapshot, error) {
	policy := models.CompressionPolicy{
		MaxPatterns:      s.cfg.CompressionThreshold,
		MinConfidence:    s.cfg.ConfidenceThreshold,
		PrioritizeRecent: true,
	}
	c := memory.NewConsolidator(s.oracle, s.loader, s.logger, policy, validatePatterns)

	snap := memory.NewSnapshot(intent)
	for _, segment := range segments {
		next, err := c.Process(ctx, segment, snap)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConsolidation, err)
		}
		snap = next
	}
	return snap, nil
}

func (s *Strategist) synthesize(ctx context.Context, snap *memory.Snapshot, sourceHTML string) (*models.ExtractionSchema, oracle.Usage, error) {
	sy := synth.NewSynthesizer(s.oracle, s.loader, s.logger, s.cfg.ConfidenceThreshold)
	schema, usage, err := sy.Synthesize(ctx, snap, sourceHTML)
	if err != nil {
		return nil, usage, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	return schema, usage, nil
}

func isSegmentationFailure(err error) bool  { return errors.Is(err, ErrSegmentation) }
func isConsolidationFailure(err error) bool { return errors.Is(err, ErrConsolidation) }
func isSynthesisFailure(err error) bool     { return errors.Is(err, ErrSynthesis) }

// retrySingleChunk reports whether a failure in an already-degraded pass gets
// one more attempt with the single-chunk strategy. Every stage failure does;
// only cancellation bypasses it.
func retrySingleChunk(err error) bool {
	return isSegmentationFailure(err) || isConsolidationFailure(err) || isSynthesisFailure(err)
}

func addUsage(a, b oracle.Usage) oracle.Usage {
	return oracle.Usage{
		InputTokens:  a.InputTokens + b.InputTokens,
		OutputTokens: a.OutputTokens + b.OutputTokens,
		TotalTokens:  a.TotalTokens + b.TotalTokens,
	}
}
