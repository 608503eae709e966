// Package segmenter splits cleaned HTML into bounded, structurally closed
// segments. A segment never ends mid-tag: the walk accumulates whole elements
// and emits at tag boundaries only, recording the open-ancestor stack so a
// consumer can reason about markup cut out of a deeper document position.
package segmenter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/cywujeremy/ai-crawling-strategist/models"
)

// MinTargetSize is the smallest allowed segment budget, in tokens.
const MinTargetSize = 100

// Config holds the segmentation bounds.
type Config struct {
	// TargetSize is the per-segment token budget. Must be >= MinTargetSize.
	TargetSize int `yaml:"target_size"`

	// OverlapSize is the token-sized context window carried from one segment
	// into the next. Must be < TargetSize/2.
	OverlapSize int `yaml:"overlap_size"`
}

// Validate checks the configuration bounds before any processing.
func (c Config) Validate() error {
	if c.TargetSize < MinTargetSize {
		return fmt.Errorf("%w: target size must be at least %d tokens, got %d", ErrInvalidConfig, MinTargetSize, c.TargetSize)
	}
	if c.OverlapSize >= c.TargetSize/2 {
		return fmt.Errorf("%w: overlap %d must be less than half the target size %d", ErrInvalidConfig, c.OverlapSize, c.TargetSize)
	}
	if c.OverlapSize < 0 {
		return fmt.Errorf("%w: overlap must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Segmenter splits documents under a fixed configuration.
type Segmenter struct {
	cfg Config
}

// New validates the configuration and returns a Segmenter.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg}, nil
}

// voidElements are pushed onto the context stack and immediately excluded
// from closing bookkeeping: they can never be an open ancestor.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// EstimateTokens is the deterministic size proxy used for all budget checks:
// text length divided by four after stripping tags. It is a planning hint,
// not a tokenizer.
func EstimateTokens(markup string) int {
	return len(tagPattern.ReplaceAllString(markup, "")) / 4
}

// Segment splits markup into ordered, bounded segments. When preserveContext
// is false the emitted segments carry an empty parent context.
func (s *Segmenter) Segment(markup string, preserveContext bool) ([]models.Segment, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, fmt.Errorf("%w: document is empty", ErrUnparseable)
	}

	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	body := findBody(root)
	if body == nil || !hasContent(body) {
		return nil, fmt.Errorf("%w: document has no parseable structure", ErrUnparseable)
	}

	totalEstimate := EstimateTokens(markup)/s.cfg.TargetSize + 1

	w := &walker{
		cfg:           s.cfg,
		preserve:      preserveContext,
		totalEstimate: totalEstimate,
	}
	w.walk(body)
	w.flush()

	if len(w.segments) == 0 {
		return nil, fmt.Errorf("%w: document produced no segments", ErrUnparseable)
	}

	// The running estimate was only a planning hint; backfill the true count.
	for i := range w.segments {
		w.segments[i].Total = len(w.segments)
	}
	return w.segments, nil
}

// walker carries the accumulate/emit state through the document-order walk.
// The only constructs used are accumulate and emit-and-reset; content is
// never backtracked once emitted.
type walker struct {
	cfg           Config
	preserve      bool
	totalEstimate int

	buf        string
	overlapLen int // leading bytes of buf seeded from the previous segment
	pos        int // cumulative length of emitted original content
	index      int

	ctx      models.ParentContext // open ancestors at the walk cursor
	startCtx models.ParentContext // open ancestors at the current buffer's start

	segments []models.Segment
}

func (w *walker) walk(parent *html.Node) {
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			if text := strings.TrimSpace(child.Data); text != "" {
				w.accumulate(text)
			}
		case html.ElementNode:
			w.element(child)
		}
	}
}

func (w *walker) element(node *html.Node) {
	rendered := renderNode(node)
	if rendered == "" {
		return
	}

	if voidElements[node.Data] {
		w.accumulate(rendered)
		return
	}

	// An element too large for one segment is split across its children,
	// with the element itself recorded as an open ancestor instead of
	// being cut mid-tag.
	if EstimateTokens(rendered) > w.cfg.TargetSize && node.FirstChild != nil {
		w.ctx.Push(node.Data, attributeMap(node))
		if len(w.buf) == w.overlapLen {
			// Nothing original buffered yet: the new segment starts
			// inside this element.
			w.startCtx = w.ctx.Clone()
		}
		w.walk(node)
		w.ctx.Pop(node.Data)
		return
	}

	w.accumulate(rendered)
}

// accumulate appends content, emitting the current segment first when the
// addition would push the buffer past the target budget.
func (w *walker) accumulate(content string) {
	overBudget := EstimateTokens(w.buf+content) > w.cfg.TargetSize
	hasOriginal := len(w.buf) > w.overlapLen && strings.TrimSpace(w.buf[w.overlapLen:]) != ""
	if overBudget && hasOriginal {
		w.emit()
	}
	w.buf += content
}

// emit closes the current segment at the last completed tag boundary and
// seeds the next buffer with the trailing overlap window.
func (w *walker) emit() {
	original := w.buf[w.overlapLen:]
	if strings.TrimSpace(original) == "" {
		return
	}

	ctx := models.ParentContext{}
	if w.preserve {
		ctx = w.startCtx.Clone()
	}

	w.segments = append(w.segments, models.Segment{
		ID:              fmt.Sprintf("segment_%d", w.index),
		Content:         repairMarkup(w.buf),
		Index:           w.index,
		Total:           w.totalEstimate,
		Context:         ctx,
		Span:            models.Span{Start: w.pos, End: w.pos + len(original)},
		EstimatedTokens: EstimateTokens(w.buf),
	})

	w.pos += len(original)
	w.index++

	seed := w.overlapTail()
	w.buf = seed
	w.overlapLen = len(seed)
	w.startCtx = w.ctx.Clone()
}

// flush emits whatever original content remains after the walk.
func (w *walker) flush() {
	if strings.TrimSpace(w.buf[w.overlapLen:]) != "" {
		w.emit()
	}
}

// overlapTail returns the trailing overlap window of the buffer, cut forward
// to the nearest safe tag boundary so the seed never starts mid-tag.
func (w *walker) overlapTail() string {
	if w.cfg.OverlapSize <= 0 {
		return ""
	}
	chars := w.cfg.OverlapSize * 4
	if len(w.buf) <= chars {
		return w.buf
	}
	tail := w.buf[len(w.buf)-chars:]
	if i := strings.IndexByte(tail, '<'); i >= 0 {
		return tail[i:]
	}
	if i := strings.LastIndexByte(tail, '>'); i >= 0 {
		return tail[i+1:]
	}
	return tail
}

// repairMarkup re-serializes a segment through a parse/render pass so minor
// irregularities introduced by the cut are normalized. Content that cannot be
// re-parsed is returned unchanged.
func repairMarkup(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return content
	}
	repaired, err := body.Html()
	if err != nil {
		return content
	}
	return repaired
}

func renderNode(node *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, node); err != nil {
		return ""
	}
	return sb.String()
}

func attributeMap(node *html.Node) map[string]string {
	if len(node.Attr) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(node.Attr))
	for _, a := range node.Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}

func findBody(root *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return body
}

func hasContent(body *html.Node) bool {
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}
