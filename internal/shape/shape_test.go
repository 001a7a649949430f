package shape

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anilreddyavula/FormPilot/internal/cache"
	"github.com/anilreddyavula/FormPilot/internal/config"
	"github.com/anilreddyavula/FormPilot/internal/record"
)

type fakeLLM struct {
	calls int
	text  string
	err   error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.text, f.err
}

func shapeConfig() config.ShapeConfig {
	return config.ShapeConfig{FieldLimit: 100, RewriteTarget: 80, PrivateMaxLen: 50}
}

func shapedRecord() *record.ActivityRecord {
	return &record.ActivityRecord{
		Title:       "Intro to Go",
		Description: "A walkthrough of building a CLI in Go.",
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips urls", "See https://example.com/page for more", "See for more."},
		{"em dash to hyphen", "fast — reliable", "fast - reliable."},
		{"collapses whitespace", "a  b\n\nc", "a b c."},
		{"trailing ellipsis closed", "It keeps going…", "It keeps going."},
		{"keeps existing punctuation", "Done!", "Done!"},
		{"empty stays empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate_NeverExceedsLimit(t *testing.T) {
	inputs := []string{
		strings.Repeat("word ", 100),
		"First sentence here. Second sentence follows. " + strings.Repeat("x", 200),
		strings.Repeat("nospacesatall", 30),
		"short",
	}
	for _, in := range inputs {
		for _, limit := range []int{10, 50, 120} {
			out := Truncate(in, limit)
			if n := len([]rune(out)); n > limit {
				t.Errorf("Truncate(len=%d, limit=%d) produced %d runes", len(in), limit, n)
			}
		}
	}
}

func TestTruncate_PrefersSentenceBoundary(t *testing.T) {
	in := "The first sentence is quite long and detailed. Trailing fragment that will not fit in the window at all"
	out := Truncate(in, 60)
	if out != "The first sentence is quite long and detailed." {
		t.Errorf("Truncate = %q", out)
	}
}

func TestTruncate_WordBoundaryFallback(t *testing.T) {
	in := strings.Repeat("alpha beta ", 20)
	out := Truncate(in, 30)
	if len([]rune(out)) > 30 {
		t.Fatalf("over limit: %q", out)
	}
	if !strings.HasSuffix(out, ".") {
		t.Errorf("fragment must be closed with a period, got %q", out)
	}
}

func TestApply_SynthesizesPrivateDescription(t *testing.T) {
	client := &fakeLLM{text: "Reached 500 developers at the meetup"}
	s := New(client, nil, shapeConfig(), "", nil)

	rec := shapedRecord()
	s.Apply(context.Background(), rec)

	if rec.PrivateDescription != "Reached 500 developers at the meetup." {
		t.Errorf("PrivateDescription = %q", rec.PrivateDescription)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1", client.calls)
	}
}

func TestApply_KeepsExistingPrivateDescription(t *testing.T) {
	client := &fakeLLM{text: "generated"}
	s := New(client, nil, shapeConfig(), "", nil)

	rec := shapedRecord()
	rec.PrivateDescription = "Already written."
	s.Apply(context.Background(), rec)

	if rec.PrivateDescription != "Already written." {
		t.Errorf("PrivateDescription = %q", rec.PrivateDescription)
	}
	if client.calls != 0 {
		t.Errorf("calls = %d, want 0", client.calls)
	}
}

func TestApply_OverlongGenerationTruncated(t *testing.T) {
	client := &fakeLLM{text: strings.Repeat("many words here ", 20)}
	s := New(client, nil, shapeConfig(), "", nil)

	rec := shapedRecord()
	s.Apply(context.Background(), rec)

	if n := len([]rune(rec.PrivateDescription)); n > 50 {
		t.Errorf("PrivateDescription length = %d, want <= 50", n)
	}
}

func TestApply_GenerationFailureFallsBackToTruncation(t *testing.T) {
	client := &fakeLLM{err: errors.New("api down")}
	s := New(client, nil, shapeConfig(), "", nil)

	rec := shapedRecord()
	rec.Description = strings.Repeat("The project shipped on time. ", 10)
	s.Apply(context.Background(), rec)

	if rec.PrivateDescription == "" {
		t.Error("fallback must still produce a private description")
	}
	if n := len([]rune(rec.PrivateDescription)); n > 50 {
		t.Errorf("fallback length = %d, want <= 50", n)
	}
	if n := len([]rune(rec.Description)); n > 100 {
		t.Errorf("description length = %d, want <= 100", n)
	}
}

func TestApply_RewritesOversizedDescription(t *testing.T) {
	client := &fakeLLM{text: "A concise summary of the activity"}
	s := New(client, nil, shapeConfig(), "", nil)

	rec := shapedRecord()
	rec.PrivateDescription = "Set."
	rec.Description = strings.Repeat("detail ", 30) // 210 chars, over the 100 limit
	s.Apply(context.Background(), rec)

	if rec.Description != "A concise summary of the activity." {
		t.Errorf("Description = %q", rec.Description)
	}
}

func TestApply_ShortFieldsUntouched(t *testing.T) {
	client := &fakeLLM{text: "never used"}
	s := New(client, nil, shapeConfig(), "", nil)

	rec := shapedRecord()
	rec.PrivateDescription = "Fine as is."
	original := rec.Description
	s.Apply(context.Background(), rec)

	if rec.Description != original {
		t.Errorf("Description changed: %q", rec.Description)
	}
	if client.calls != 0 {
		t.Errorf("calls = %d, want 0", client.calls)
	}
}

func TestApply_CacheHitSkipsGeneration(t *testing.T) {
	shared := cache.New("")
	first := &fakeLLM{text: "Cached note text"}
	s1 := New(first, shared, shapeConfig(), "", nil)

	rec := shapedRecord()
	s1.Apply(context.Background(), rec)
	if first.calls != 1 {
		t.Fatalf("first run calls = %d, want 1", first.calls)
	}

	second := &fakeLLM{text: "should not be used"}
	s2 := New(second, shared, shapeConfig(), "", nil)
	rec2 := shapedRecord()
	s2.Apply(context.Background(), rec2)

	if second.calls != 0 {
		t.Errorf("second run calls = %d, want 0 (cache hit)", second.calls)
	}
	if rec2.PrivateDescription != rec.PrivateDescription {
		t.Errorf("cached text mismatch: %q vs %q", rec2.PrivateDescription, rec.PrivateDescription)
	}
}

func TestApply_NilClientUsesFallback(t *testing.T) {
	s := New(nil, nil, shapeConfig(), "", nil)

	rec := shapedRecord()
	rec.Description = strings.Repeat("All the facts are stated plainly here. ", 6)
	s.Apply(context.Background(), rec)

	if rec.PrivateDescription == "" {
		t.Error("nil client must still synthesize via truncation")
	}
	if n := len([]rune(rec.Description)); n > 100 {
		t.Errorf("description length = %d, want <= 100", n)
	}
}

func TestCustomRulesAppendedToPrompt(t *testing.T) {
	s := New(nil, nil, shapeConfig(), "mention the team name", nil)
	prompt := s.rewritePrompt("text", 80)
	if !strings.Contains(prompt, "mention the team name") {
		t.Errorf("custom rules missing from prompt: %q", prompt)
	}
}
