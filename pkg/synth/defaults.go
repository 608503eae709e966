package synth

import (
	"fmt"

	"github.com/cywujeremy/ai-crawling-strategist/models"
)

// fieldDefaults are the stock selectors used when neither the oracle nor the
// belief state offers anything better for a field.
var fieldDefaults = map[string]struct {
	primary   string
	fallbacks []string
}{
	"title":       {"h1, h2, h3, .title, .heading", []string{"title", ".name", ".header"}},
	"price":       {".price, .cost, .amount", []string{"[data-price]", ".value", ".salary"}},
	"description": {".description, .summary, p", []string{".details", ".content", ".text"}},
	"link":        {"a[href]", []string{"[data-url]", "link"}},
	"image":       {"img[src]", []string{"[data-image]", ".image"}},
	"date":        {".date, time", []string{"[datetime]", ".timestamp"}},
}

// itemMarkers are selectors that typically identify one repeating item, tried
// in order against the discovered patterns.
var itemMarkers = []string{".item", ".card", ".post", ".entry", "li", "tr", "article"}

// DefaultSelector returns the stock primary selector and fallbacks for a
// field. Unknown fields get a class selector derived from the field name.
func DefaultSelector(field string) (string, []string) {
	if d, ok := fieldDefaults[field]; ok {
		return d.primary, append([]string(nil), d.fallbacks...)
	}
	return fmt.Sprintf(".%s", field), nil
}

// ExtractionModeFor returns how a field's value is pulled from its element.
func ExtractionModeFor(field string) models.ExtractionMode {
	switch field {
	case "link", "image", "url", "href":
		return models.ExtractAttribute
	default:
		return models.ExtractText
	}
}

// AttributeFor returns the attribute read for attribute-mode fields.
func AttributeFor(field string) string {
	switch field {
	case "link", "url", "href":
		return "href"
	case "image":
		return "src"
	default:
		return ""
	}
}
