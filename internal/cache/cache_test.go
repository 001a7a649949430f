package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRunCache_InMemory(t *testing.T) {
	c := New("")

	if _, ok := c.Options("form", "audience"); ok {
		t.Error("expected miss on empty cache")
	}

	c.SetOptions("form", "audience", []string{"Developer", "Student"})
	opts, ok := c.Options("form", "audience")
	if !ok {
		t.Fatal("expected hit")
	}
	if diff := cmp.Diff([]string{"Developer", "Student"}, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}

	if _, ok := c.Content("description", "src"); ok {
		t.Error("expected content miss")
	}
	c.SetContent("description", "src", "rewritten")
	if text, ok := c.Content("description", "src"); !ok || text != "rewritten" {
		t.Errorf("Content = (%q, %v)", text, ok)
	}
}

func TestRunCache_ContentKeyedBySource(t *testing.T) {
	c := New("")
	c.SetContent("description", "source-a", "A")
	c.SetContent("description", "source-b", "B")
	c.SetContent("private_description", "source-a", "P")

	if text, _ := c.Content("description", "source-a"); text != "A" {
		t.Errorf("got %q", text)
	}
	if text, _ := c.Content("description", "source-b"); text != "B" {
		t.Errorf("got %q", text)
	}
	if text, _ := c.Content("private_description", "source-a"); text != "P" {
		t.Errorf("same source under another field must be distinct, got %q", text)
	}
}

func TestRunCache_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := New(path)
	c.SetOptions("https://example.com", "primary_technology_area", []string{"Azure", ".NET"})
	c.SetContent("description", "long text", "short text")

	reloaded := New(path)
	opts, ok := reloaded.Options("https://example.com", "primary_technology_area")
	if !ok || len(opts) != 2 {
		t.Errorf("expected persisted options, got (%v, %v)", opts, ok)
	}
	if text, ok := reloaded.Content("description", "long text"); !ok || text != "short text" {
		t.Errorf("expected persisted content, got (%q, %v)", text, ok)
	}
}

func TestRunCache_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(path)
	if _, ok := c.Options("f", "x"); ok {
		t.Error("corrupt cache must start empty")
	}
}

func TestFingerprint_Stable(t *testing.T) {
	if Fingerprint("a", "b") != Fingerprint("a", "b") {
		t.Error("fingerprint must be stable")
	}
	if Fingerprint("a", "b") == Fingerprint("ab") {
		t.Error("part boundaries must affect the fingerprint")
	}
}
