package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/cywujeremy/ai-crawling-strategist/models"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/oracle"
	"github.com/cywujeremy/ai-crawling-strategist/pkg/prompts"
)

const (
	consolidationMaxTokens   = 4000
	consolidationTemperature = 0.1

	// previousTailBytes is how much of a processed segment's end travels
	// forward in the cursor.
	previousTailBytes = 200
)

// Snapshot is the belief state carried between segments, plus run accounting.
type Snapshot struct {
	Intent models.Intent          `json:"intent"`
	Facts  models.DiscoveredFacts `json:"facts"`
	Cursor models.MemoryCursor    `json:"cursor"`
	Notes  []string               `json:"notes,omitempty"`
	Usage  oracle.Usage           `json:"usage"`
}

// NewSnapshot returns the initial belief state for a query.
func NewSnapshot(intent models.Intent) *Snapshot {
	return &Snapshot{
		Intent: intent,
		Facts:  models.NewDiscoveredFacts(),
		Cursor: models.MemoryCursor{Path: "//html"},
	}
}

// Consolidator runs the per-segment analysis loop: prompt the oracle with the
// segment plus the current snapshot, validate what comes back, and merge it
// into the snapshot under the compression policy.
type Consolidator struct {
	oracle oracle.Oracle
	loader *prompts.Loader
	logger *slog.Logger
	policy models.CompressionPolicy

	// validatePatterns gates checking proposed selectors against the segment
	// markup before admitting them.
	validatePatterns bool
}

// NewConsolidator wires a consolidator. The policy must already be validated.
func NewConsolidator(o oracle.Oracle, loader *prompts.Loader, logger *slog.Logger, policy models.CompressionPolicy, validatePatterns bool) *Consolidator {
	return &Consolidator{
		oracle:           o,
		loader:           loader,
		logger:           logger,
		policy:           policy,
		validatePatterns: validatePatterns,
	}
}

// Process analyzes one segment against the snapshot and returns the evolved
// snapshot. The input snapshot is not mutated.
func (c *Consolidator) Process(ctx context.Context, seg models.Segment, snap *Snapshot) (*Snapshot, error) {
	factsJSON, err := json.Marshal(snap.Facts)
	if err != nil {
		return nil, fmt.Errorf("encoding facts: %w", err)
	}

	prompt, err := c.loader.RenderChunkAnalysis(prompts.ChunkAnalysisVars{
		ChunkIndex:       seg.Index + 1,
		TotalChunks:      seg.Total,
		UserIntent:       snap.Intent.Query,
		ChunkStartPath:   snap.Cursor.Path,
		NestingContext:   seg.Context.ContextHTML(),
		PreviousChunkEnd: snap.Cursor.PreviousTail,
		DiscoveredFacts:  string(factsJSON),
		HTMLChunk:        seg.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering analysis prompt: %w", err)
	}

	result, err := c.oracle.Invoke(ctx, prompt, oracle.InvokeOptions{
		MaxTokens:   consolidationMaxTokens,
		Temperature: consolidationTemperature,
		Purpose:     "consolidation",
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing segment %s: %w", seg.ID, err)
	}

	analysis, err := oracle.ParseChunkAnalysis(result.Text)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", seg.ID, err)
	}

	patterns := analysis.DiscoveredPatterns
	if c.validatePatterns {
		patterns = ValidPatterns(patterns, seg.Content)
	}

	out := &Snapshot{
		Intent: snap.Intent,
		Facts:  Merge(snap.Facts, patterns, analysis.ConfidenceScores, analysis.PageUnderstanding),
		Cursor: models.MemoryCursor{
			Path:         fmt.Sprintf("//html[position()>=%d]", seg.Span.End),
			OpenContext:  seg.Context.ContextHTML(),
			PreviousTail: seg.Tail(previousTailBytes),
			Depth:        seg.Context.Depth,
		},
		Notes: append(append([]string(nil), snap.Notes...),
			fmt.Sprintf("processed segment %d, admitted %d patterns", seg.Index+1, len(patterns))),
		Usage: oracle.Usage{
			InputTokens:  snap.Usage.InputTokens + result.Usage.InputTokens,
			OutputTokens: snap.Usage.OutputTokens + result.Usage.OutputTokens,
			TotalTokens:  snap.Usage.TotalTokens + result.Usage.TotalTokens,
		},
	}

	if len(out.Facts.Patterns) > c.policy.MaxPatterns {
		out.Facts = Compress(out.Facts, c.policy, c.logger)
	}

	if c.logger != nil {
		c.logger.Info("consolidated segment",
			"segment", seg.ID,
			"index", seg.Index,
			"total", seg.Total,
			"patterns", len(out.Facts.Patterns),
			"tokens", result.Usage.TotalTokens)
	}
	return out, nil
}

// ValidPatterns filters proposed selectors to the ones that match at least one
// element in the markup. Root-anchored path patterns pass through unchecked;
// selectors that fail to compile are dropped. When the markup itself cannot be
// parsed, every pattern passes.
func ValidPatterns(patterns []string, markup string) []string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return patterns
	}

	valid := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, "/") {
			valid = append(valid, pattern)
			continue
		}
		sel, err := cascadia.Compile(pattern)
		if err != nil {
			continue
		}
		if len(sel.MatchAll(doc)) > 0 {
			valid = append(valid, pattern)
		}
	}
	return valid
}
