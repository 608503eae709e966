package models

import (
	"fmt"
	"sort"
	"strings"
)

// validTagChars is the alphabet allowed in HTML tag names tracked by a
// ParentContext.
const validTagChars = "abcdefghijklmnopqrstuvwxyz0123456789-"

// ParentContext is the stack of ancestor tags that were open at the start of
// a segment. It lets a consumer reason about markup that is structurally
// valid on its own but was cut out of a deeper position in the document.
type ParentContext struct {
	// OpenTags holds the unclosed ancestor tag names, outermost first.
	OpenTags []string `json:"open_tags,omitempty"`

	// Attributes holds the attributes each open tag carried, parallel to
	// OpenTags. An entry is nil when that tag had none.
	Attributes []map[string]string `json:"attributes,omitempty"`

	// Path is the derived locator string, e.g. "div > ul > li".
	Path string `json:"path,omitempty"`

	// Depth is the nesting depth, always equal to len(OpenTags).
	Depth int `json:"depth"`
}

// Push records tag as the innermost open ancestor.
func (c *ParentContext) Push(tag string, attrs map[string]string) {
	c.OpenTags = append(c.OpenTags, tag)
	if len(attrs) == 0 {
		attrs = nil
	}
	c.Attributes = append(c.Attributes, attrs)
	c.Depth = len(c.OpenTags)
	c.Path = strings.Join(c.OpenTags, " > ")
}

// Pop removes the innermost open ancestor if it matches tag.
func (c *ParentContext) Pop(tag string) {
	if n := len(c.OpenTags); n > 0 && c.OpenTags[n-1] == tag {
		c.OpenTags = c.OpenTags[:n-1]
		c.Attributes = c.Attributes[:n-1]
	}
	c.Depth = len(c.OpenTags)
	c.Path = strings.Join(c.OpenTags, " > ")
}

// Clone returns a deep copy of the context.
func (c *ParentContext) Clone() ParentContext {
	out := ParentContext{Path: c.Path, Depth: c.Depth}
	out.OpenTags = append([]string(nil), c.OpenTags...)
	if c.Attributes != nil {
		out.Attributes = make([]map[string]string, len(c.Attributes))
		for i, attrs := range c.Attributes {
			if attrs == nil {
				continue
			}
			cp := make(map[string]string, len(attrs))
			for k, v := range attrs {
				cp[k] = v
			}
			out.Attributes[i] = cp
		}
	}
	return out
}

// ContextHTML renders the open ancestors as a sequence of opening tags,
// e.g. `<div class="list"><ul>`.
func (c *ParentContext) ContextHTML() string {
	if len(c.OpenTags) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, tag := range c.OpenTags {
		sb.WriteByte('<')
		sb.WriteString(tag)
		if i < len(c.Attributes) && len(c.Attributes[i]) > 0 {
			keys := make([]string, 0, len(c.Attributes[i]))
			for k := range c.Attributes[i] {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, " %s=%q", k, c.Attributes[i][k])
			}
		}
		sb.WriteByte('>')
	}
	return sb.String()
}

// Validate checks the context invariants.
func (c *ParentContext) Validate() error {
	if c.Depth != len(c.OpenTags) {
		return fmt.Errorf("context depth %d does not match %d open tags", c.Depth, len(c.OpenTags))
	}
	if c.Attributes != nil && len(c.Attributes) != len(c.OpenTags) {
		return fmt.Errorf("context has %d attribute entries for %d open tags", len(c.Attributes), len(c.OpenTags))
	}
	for _, tag := range c.OpenTags {
		if tag == "" {
			return fmt.Errorf("empty tag name in context")
		}
		for _, r := range strings.ToLower(tag) {
			if !strings.ContainsRune(validTagChars, r) {
				return fmt.Errorf("invalid tag name in context: %q", tag)
			}
		}
	}
	return nil
}

// Span marks a segment's byte range within the cleaned document stream.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Segment is one bounded, structurally self-contained slice of the document.
type Segment struct {
	ID      string        `json:"id"`
	Content string        `json:"content"`
	Index   int           `json:"index"`
	Total   int           `json:"total"`
	Context ParentContext `json:"context"`
	Span    Span          `json:"span"`

	// EstimatedTokens is the size proxy used while planning the split.
	EstimatedTokens int `json:"estimated_tokens"`
}

// Validate checks the segment invariants.
func (s *Segment) Validate() error {
	if strings.TrimSpace(s.Content) == "" {
		return fmt.Errorf("segment %s has empty content", s.ID)
	}
	if s.Index >= s.Total {
		return fmt.Errorf("segment %s index %d not below total %d", s.ID, s.Index, s.Total)
	}
	if s.Span.End <= s.Span.Start {
		return fmt.Errorf("segment %s span end %d not after start %d", s.ID, s.Span.End, s.Span.Start)
	}
	return s.Context.Validate()
}

// Tail returns the last n bytes of the segment content, whole if shorter.
func (s *Segment) Tail(n int) string {
	if len(s.Content) <= n {
		return s.Content
	}
	return s.Content[len(s.Content)-n:]
}
