package prompts

import (
	"strings"
	"testing"
)

func TestLoad_KnownTemplates(t *testing.T) {
	l := NewLoader()
	for _, name := range []string{"chunk_analysis", "schema_generation"} {
		tmpl, err := l.Load(name)
		if err != nil {
			t.Fatalf("Load(%q) error = %v", name, err)
		}
		if tmpl.Name != name {
			t.Errorf("Name = %q, want %q", tmpl.Name, name)
		}
		if tmpl.Body == "" {
			t.Errorf("template %q has empty body", name)
		}
		if len(tmpl.Variables) == 0 {
			t.Errorf("template %q declares no variables", name)
		}
	}
}

func TestLoad_Unknown(t *testing.T) {
	if _, err := NewLoader().Load("no_such_template"); err == nil {
		t.Fatal("Load() expected error for unknown template")
	}
}

func TestList(t *testing.T) {
	names, err := NewLoader().List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"chunk_analysis", "schema_generation"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRender_MissingVariables(t *testing.T) {
	_, err := NewLoader().Render("schema_generation", map[string]string{
		"user_intent": "find products",
	})
	if err == nil {
		t.Fatal("Render() expected error for missing variables")
	}
	if !strings.Contains(err.Error(), "final_memory") {
		t.Errorf("error %q does not name the missing variable", err)
	}
}

func TestRenderChunkAnalysis(t *testing.T) {
	out, err := NewLoader().RenderChunkAnalysis(ChunkAnalysisVars{
		ChunkIndex:       2,
		TotalChunks:      5,
		UserIntent:       "extract job listings with title and location",
		ChunkStartPath:   "//html[position()>=4200]",
		NestingContext:   `<div class="results">`,
		PreviousChunkEnd: "</li>",
		DiscoveredFacts:  `{"patterns": [".job-card"]}`,
		HTMLChunk:        `<li class="job-card"><h3>Engineer</h3></li>`,
	})
	if err != nil {
		t.Fatalf("RenderChunkAnalysis() error = %v", err)
	}
	for _, want := range []string{
		"segment 2 of 5",
		"extract job listings with title and location",
		"//html[position()>=4200]",
		`<div class="results">`,
		`.job-card`,
		"<h3>Engineer</h3>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q", want)
		}
	}
	if strings.Contains(out, "{chunk_index}") {
		t.Error("rendered prompt still contains an unsubstituted variable")
	}
}

func TestRenderSchemaGeneration_EscapesLiteralBraces(t *testing.T) {
	out, err := NewLoader().RenderSchemaGeneration("find articles", `{"patterns": []}`)
	if err != nil {
		t.Fatalf("RenderSchemaGeneration() error = %v", err)
	}
	if strings.Contains(out, "{{") || strings.Contains(out, "}}") {
		t.Error("rendered prompt contains unescaped doubled braces")
	}
	if !strings.Contains(out, `"container_selector"`) {
		t.Error("rendered prompt lost its JSON example")
	}
}
