// Package prompts loads and renders the YAML prompt templates embedded in the
// binary. Templates carry their own metadata and declare the variables they
// require; rendering fails loudly when a declared variable is missing.
package prompts

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Template is one loaded prompt template.
type Template struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Variables   []string `yaml:"variables"`
	Body        string   `yaml:"template"`
}

// Loader parses embedded templates on demand and caches them.
type Loader struct {
	mu    sync.Mutex
	cache map[string]*Template
}

// NewLoader returns an empty loader backed by the embedded template set.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string]*Template)}
}

// Load returns the named template, parsing it on first use.
func (l *Loader) Load(name string) (*Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.cache[name]; ok {
		return t, nil
	}

	raw, err := templateFS.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("template %q not found: %w", name, err)
	}
	var t Template
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	if t.Name == "" {
		t.Name = name
	}
	if t.Version == "" {
		t.Version = "1.0"
	}
	l.cache[name] = &t
	return &t, nil
}

// List returns the names of all embedded templates, sorted.
func (l *Loader) List() ([]string, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

// Render loads the named template and substitutes variables. Every variable
// the template declares must be present in vars.
func (l *Loader) Render(name string, vars map[string]string) (string, error) {
	t, err := l.Load(name)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, v := range t.Variables {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("template %q missing variables: %s", name, strings.Join(missing, ", "))
	}

	out := t.Body
	for _, v := range t.Variables {
		out = strings.ReplaceAll(out, "{"+v+"}", vars[v])
	}
	// Doubled braces escape literal braces in the template body.
	out = strings.ReplaceAll(out, "{{", "{")
	out = strings.ReplaceAll(out, "}}", "}")
	return out, nil
}

// ChunkAnalysisVars carries the substitutions for the chunk_analysis template.
type ChunkAnalysisVars struct {
	ChunkIndex       int
	TotalChunks      int
	UserIntent       string
	ChunkStartPath   string
	NestingContext   string
	PreviousChunkEnd string
	DiscoveredFacts  string
	HTMLChunk        string
}

// RenderChunkAnalysis renders the per-segment analysis prompt.
func (l *Loader) RenderChunkAnalysis(v ChunkAnalysisVars) (string, error) {
	return l.Render("chunk_analysis", map[string]string{
		"chunk_index":        fmt.Sprintf("%d", v.ChunkIndex),
		"total_chunks":       fmt.Sprintf("%d", v.TotalChunks),
		"user_intent":        v.UserIntent,
		"chunk_start_path":   v.ChunkStartPath,
		"nesting_context":    v.NestingContext,
		"previous_chunk_end": v.PreviousChunkEnd,
		"discovered_facts":   v.DiscoveredFacts,
		"html_chunk":         v.HTMLChunk,
	})
}

// RenderSchemaGeneration renders the final synthesis prompt.
func (l *Loader) RenderSchemaGeneration(userIntent, finalMemory string) (string, error) {
	return l.Render("schema_generation", map[string]string{
		"user_intent":  userIntent,
		"final_memory": finalMemory,
	})
}
