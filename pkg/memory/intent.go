package memory

import (
	"strings"

	"github.com/cywujeremy/ai-crawling-strategist/models"
)

// entityKeywords maps each recognized target field to the query words that
// imply it.
var entityKeywords = map[string][]string{
	"title":       {"title", "name", "heading"},
	"price":       {"price", "cost", "amount", "salary"},
	"description": {"description", "summary", "details"},
	"link":        {"link", "url", "href"},
	"image":       {"image", "photo", "picture"},
	"date":        {"date", "time", "when"},
	"author":      {"author", "by", "creator"},
	"category":    {"category", "type", "genre"},
	"rating":      {"rating", "score", "stars"},
	"location":    {"location", "address", "where"},
}

// entityOrder keeps derived fields in a stable order across runs.
var entityOrder = []string{
	"title", "price", "description", "link", "image",
	"date", "author", "category", "rating", "location",
}

var contextKeywords = []struct {
	context  string
	keywords []string
}{
	{"job listings", []string{"job", "position", "career", "employment"}},
	{"products", []string{"product", "item", "buy", "shop", "store"}},
	{"articles", []string{"article", "blog", "news", "post"}},
	{"events", []string{"event", "meeting", "conference", "show"}},
	{"people", []string{"people", "person", "profile", "contact"}},
}

// DeriveIntent turns a natural-language query into a structured intent using
// keyword heuristics. Queries that match nothing fall back to generic content
// fields.
func DeriveIntent(query string) models.Intent {
	lower := strings.ToLower(query)

	var fields []string
	for _, entity := range entityOrder {
		for _, kw := range entityKeywords[entity] {
			if strings.Contains(lower, kw) {
				fields = append(fields, entity)
				break
			}
		}
	}
	if len(fields) == 0 {
		fields = []string{"title", "description", "link"}
	}

	context := "general content"
	for _, c := range contextKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				context = c.context
				break
			}
		}
		if context != "general content" {
			break
		}
	}

	return models.Intent{Query: query, TargetFields: fields, Context: context}
}
