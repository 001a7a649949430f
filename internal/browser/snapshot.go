package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Control kinds recognized in a form snapshot.
const (
	KindText     = "text"
	KindTextarea = "textarea"
	KindSelect   = "select"
	KindCheckbox = "checkbox"
	KindRadio    = "radio"
	KindDate     = "date"
	KindNumber   = "number"
)

// FormField describes one control found in the rendered form.
type FormField struct {
	Label    string
	Selector string
	Kind     string
	Options  []string
	Value    string
	Required bool
}

// FormSnapshot is a parse of the rendered form at one point in time. Option
// lists feed the field option cache; selectors feed the submission driver.
type FormSnapshot struct {
	Fields []FormField
}

// Field returns the first field whose label contains needle,
// case-insensitively.
func (s *FormSnapshot) Field(needle string) (FormField, bool) {
	n := strings.ToLower(needle)
	for _, f := range s.Fields {
		if strings.Contains(strings.ToLower(f.Label), n) {
			return f, true
		}
	}
	return FormField{}, false
}

// Options collects every select field's options keyed by label.
func (s *FormSnapshot) Options() map[string][]string {
	out := make(map[string][]string)
	for _, f := range s.Fields {
		if f.Kind == KindSelect && len(f.Options) > 0 {
			out[f.Label] = f.Options
		}
	}
	return out
}

// Snapshot reads the session's current document and parses it.
func Snapshot(ctx context.Context, session *FormSession) (*FormSnapshot, error) {
	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(html)
}

// Snapshot parses the current document into a FormSnapshot.
func (s *FormSession) Snapshot(ctx context.Context) (*FormSnapshot, error) {
	return Snapshot(ctx, s)
}

// ParseSnapshot extracts form controls from rendered HTML.
func ParseSnapshot(html string) (*FormSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse form html: %w", err)
	}

	snap := &FormSnapshot{}
	doc.Find("input, textarea, select").Each(func(_ int, sel *goquery.Selection) {
		field, ok := parseControl(doc, sel)
		if ok {
			snap.Fields = append(snap.Fields, field)
		}
	})
	return snap, nil
}

func parseControl(doc *goquery.Document, sel *goquery.Selection) (FormField, bool) {
	selector, ok := controlSelector(sel)
	if !ok {
		return FormField{}, false
	}

	field := FormField{
		Selector: selector,
		Label:    controlLabel(doc, sel),
		Value:    sel.AttrOr("value", ""),
	}
	_, field.Required = sel.Attr("required")

	switch goquery.NodeName(sel) {
	case "textarea":
		field.Kind = KindTextarea
		field.Value = strings.TrimSpace(sel.Text())
	case "select":
		field.Kind = KindSelect
		sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			text := strings.TrimSpace(opt.Text())
			if text == "" || opt.AttrOr("value", "") == "" {
				return // placeholder entries
			}
			field.Options = append(field.Options, text)
			if _, selected := opt.Attr("selected"); selected {
				field.Value = text
			}
		})
	default:
		switch strings.ToLower(sel.AttrOr("type", "text")) {
		case "checkbox":
			field.Kind = KindCheckbox
		case "radio":
			field.Kind = KindRadio
		case "date":
			field.Kind = KindDate
		case "number":
			field.Kind = KindNumber
		case "hidden", "submit", "button", "image", "reset", "file":
			return FormField{}, false
		default:
			field.Kind = KindText
		}
	}
	return field, true
}

// controlSelector builds a CSS selector for the control. Controls without an
// id or name cannot be addressed reliably and are skipped.
func controlSelector(sel *goquery.Selection) (string, bool) {
	if id, ok := sel.Attr("id"); ok && id != "" {
		return "#" + id, true
	}
	if name, ok := sel.Attr("name"); ok && name != "" {
		return fmt.Sprintf(`%s[name=%q]`, goquery.NodeName(sel), name), true
	}
	return "", false
}

// controlLabel resolves the human label: an associated <label for=...>, then
// aria-label, then placeholder, then the name attribute.
func controlLabel(doc *goquery.Document, sel *goquery.Selection) string {
	if id, ok := sel.Attr("id"); ok && id != "" {
		label := doc.Find(fmt.Sprintf(`label[for=%q]`, id)).First()
		if text := strings.TrimSpace(label.Text()); text != "" {
			return text
		}
	}
	if aria := strings.TrimSpace(sel.AttrOr("aria-label", "")); aria != "" {
		return aria
	}
	if wrapped := sel.ParentsFiltered("label").First(); wrapped.Length() > 0 {
		if text := strings.TrimSpace(wrapped.Text()); text != "" {
			return text
		}
	}
	if ph := strings.TrimSpace(sel.AttrOr("placeholder", "")); ph != "" {
		return ph
	}
	return sel.AttrOr("name", "")
}
