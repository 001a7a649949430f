package browser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleForm = `
<html><body><form>
  <label for="activity-type">Activity Type</label>
  <select id="activity-type" required>
    <option value="">Choose one</option>
    <option value="blog">Blog</option>
    <option value="workshop" selected>Workshop</option>
  </select>

  <label for="title">Title</label>
  <input id="title" type="text" value="Existing title" required>

  <label for="desc">Description</label>
  <textarea id="desc">Body text</textarea>

  <label for="views">Number of Views</label>
  <input id="views" type="number">

  <label for="published">Published Date</label>
  <input id="published" type="date">

  <label><input type="checkbox" name="preview" checked> Use preview image</label>

  <input type="hidden" name="csrf" value="token">
  <input type="submit" value="Save">
  <input type="text" placeholder="Search activities">
</form></body></html>`

func TestParseSnapshot_Controls(t *testing.T) {
	snap, err := ParseSnapshot(sampleForm)
	if err != nil {
		t.Fatal(err)
	}

	// Hidden, submit, and unaddressable controls are excluded.
	if len(snap.Fields) != 6 {
		t.Fatalf("got %d fields: %+v", len(snap.Fields), snap.Fields)
	}

	sel, ok := snap.Field("activity type")
	if !ok {
		t.Fatal("activity type field not found")
	}
	if sel.Kind != KindSelect || sel.Selector != "#activity-type" || !sel.Required {
		t.Errorf("unexpected field: %+v", sel)
	}
	if diff := cmp.Diff([]string{"Blog", "Workshop"}, sel.Options); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if sel.Value != "Workshop" {
		t.Errorf("selected value = %q", sel.Value)
	}
}

func TestParseSnapshot_KindsAndLabels(t *testing.T) {
	snap, err := ParseSnapshot(sampleForm)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		label string
		kind  string
	}{
		{"Title", KindText},
		{"Description", KindTextarea},
		{"Number of Views", KindNumber},
		{"Published Date", KindDate},
		{"Use preview image", KindCheckbox},
	}
	for _, c := range cases {
		f, ok := snap.Field(c.label)
		if !ok {
			t.Errorf("field %q not found", c.label)
			continue
		}
		if f.Kind != c.kind {
			t.Errorf("field %q kind = %q, want %q", c.label, f.Kind, c.kind)
		}
	}

	title, _ := snap.Field("Title")
	if title.Value != "Existing title" {
		t.Errorf("title value = %q", title.Value)
	}
	desc, _ := snap.Field("Description")
	if desc.Value != "Body text" {
		t.Errorf("textarea value = %q", desc.Value)
	}
}

func TestParseSnapshot_CheckboxSelectorFromName(t *testing.T) {
	snap, err := ParseSnapshot(sampleForm)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := snap.Field("preview")
	if !ok {
		t.Fatal("checkbox not found")
	}
	if f.Selector != `input[name="preview"]` {
		t.Errorf("selector = %q", f.Selector)
	}
}

func TestSnapshotOptions(t *testing.T) {
	snap, err := ParseSnapshot(sampleForm)
	if err != nil {
		t.Fatal(err)
	}
	opts := snap.Options()
	if len(opts) != 1 {
		t.Fatalf("got %d option lists", len(opts))
	}
	if diff := cmp.Diff([]string{"Blog", "Workshop"}, opts["Activity Type"]); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSnapshot_EmptyDocument(t *testing.T) {
	snap, err := ParseSnapshot("<html><body><p>No form here</p></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Fields) != 0 {
		t.Errorf("expected no fields, got %+v", snap.Fields)
	}
}
