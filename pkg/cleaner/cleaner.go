// Package cleaner normalizes raw HTML before segmentation: it strips tags and
// attributes that never carry extraction-relevant data so downstream token
// budgets are spent on structure, not chrome.
package cleaner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// irrelevantTags never contain extraction-relevant data and are removed
// wholesale, subtree included.
var irrelevantTags = []string{
	"script", "style", "noscript",
	"head", "meta", "title", "link",
	"nav", "header", "footer",
}

// irrelevantAttributes add noise without extraction value.
var irrelevantAttributes = map[string]bool{
	"style":          true,
	"onclick":        true,
	"onload":         true,
	"onmouseover":    true,
	"onmouseout":     true,
	"data-analytics": true,
	"data-track":     true,
}

// preservedDataAttributes are the data-* attributes kept; the rest are noise.
var preservedDataAttributes = map[string]bool{
	"data-testid": true,
	"data-cy":     true,
	"data-test":   true,
	"data-id":     true,
}

// Stats summarizes a cleaning pass.
type Stats struct {
	OriginalSize     int
	CleanedSize      int
	ReductionPercent float64
}

// Clean removes irrelevant tags, attributes, and comments from raw HTML and
// returns the normalized markup. Cleaning is idempotent: running it over its
// own output yields the same string.
func Clean(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	for _, tag := range irrelevantTags {
		doc.Find(tag).Remove()
	}

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			node.Attr = filterAttributes(node.Attr)
		}
	})

	removeComments(doc)

	body := doc.Find("body")
	if body.Length() == 0 {
		return "", nil
	}
	cleaned, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render cleaned markup: %w", err)
	}
	return strings.TrimSpace(cleaned), nil
}

// CleaningStats reports how much the cleaning pass reduced the document.
func CleaningStats(original, cleaned string) Stats {
	stats := Stats{OriginalSize: len(original), CleanedSize: len(cleaned)}
	if stats.OriginalSize > 0 {
		stats.ReductionPercent = float64(stats.OriginalSize-stats.CleanedSize) / float64(stats.OriginalSize) * 100
	}
	return stats
}

func filterAttributes(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, attr := range attrs {
		if irrelevantAttributes[attr.Key] {
			continue
		}
		if strings.HasPrefix(attr.Key, "data-") && !preservedDataAttributes[attr.Key] {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

func removeComments(doc *goquery.Document) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; {
			next := child.NextSibling
			if child.Type == html.CommentNode {
				n.RemoveChild(child)
			} else {
				walk(child)
			}
			child = next
		}
	}
	for _, node := range doc.Nodes {
		walk(node)
	}
}
