package record

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// Canonical raw field keys produced by the parser. The validator consumes
// these; downstream components never see markdown labels.
const (
	KeyActivityType    = "activity_type"
	KeyPrimaryTech     = "primary_technology_area"
	KeyAdditionalTech  = "additional_technology_areas"
	KeyTitle           = "title"
	KeyDescription     = "description"
	KeyPrivateDesc     = "private_description"
	KeyViewCount       = "view_count"
	KeyActivityURL     = "activity_url"
	KeyTargetAudience  = "target_audience"
	KeyPublishedDate   = "published_date"
	KeyStartDate       = "start_date"
	KeyEndDate         = "end_date"
	KeyQuantity        = "quantity"
	KeyUsePreviewImage = "use_preview_image"
)

// labelKeys maps normalized markdown labels to canonical keys. Legacy
// synonyms from older activity files are accepted alongside the canonical
// names; matching is case-insensitive and whitespace-tolerant.
var labelKeys = map[string]string{
	"activity type":               KeyActivityType,
	"category":                    KeyActivityType,
	"primary technology area":     KeyPrimaryTech,
	"main technology":             KeyPrimaryTech,
	"additional technology areas": KeyAdditionalTech,
	"additional technologies":     KeyAdditionalTech,
	"title":                       KeyTitle,
	"description":                 KeyDescription,
	"private description":         KeyPrivateDesc,
	"internal notes":              KeyPrivateDesc,
	"number of views":             KeyViewCount,
	"views":                       KeyViewCount,
	"activity url":                KeyActivityURL,
	"url":                         KeyActivityURL,
	"target audience":             KeyTargetAudience,
	"audience":                    KeyTargetAudience,
	"published date":              KeyPublishedDate,
	"date":                        KeyPublishedDate,
	"start date":                  KeyStartDate,
	"end date":                    KeyEndDate,
	"quantity":                    KeyQuantity,
	"use preview image":           KeyUsePreviewImage,
	"preview image":               KeyUsePreviewImage,
}

var (
	// **Label:** value, tolerating "**Label**: value" and list bullets.
	labelLine = regexp.MustCompile(`^\s*(?:[-*+]\s+)?\*\*\s*([^*]+?)\s*:?\s*\*\*\s*:?\s*(.*)$`)
	hrLine    = regexp.MustCompile(`^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	headLine  = regexp.MustCompile(`^#{1,6}\s`)
)

// SectionIterator yields one raw field map per markdown section. It is lazy,
// finite, and non-restartable: sections are read from the underlying reader
// as Next is called, and a consumed iterator cannot be rewound.
//
// Parsing never fails a batch: a section with no recognizable labels yields
// an empty map, which the validator reports as missing all required fields.
type SectionIterator struct {
	scanner *bufio.Scanner
	done    bool
	pending map[string]string
	hasPend bool
}

// NewSectionIterator wraps a markdown stream.
func NewSectionIterator(r io.Reader) *SectionIterator {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SectionIterator{scanner: sc}
}

// Next returns the next section's raw field map. The second return value is
// false once the input is exhausted.
func (it *SectionIterator) Next() (map[string]string, bool) {
	if it.hasPend {
		fields := it.pending
		it.pending = nil
		it.hasPend = false
		return fields, true
	}
	if it.done {
		return nil, false
	}

	fields := make(map[string]string)
	sawContent := false

	for it.scanner.Scan() {
		line := it.scanner.Text()

		if hrLine.MatchString(line) || headLine.MatchString(line) {
			if sawContent {
				// Delimiter closes the current section.
				return fields, true
			}
			// Leading or repeated delimiter: keep scanning.
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		sawContent = true

		m := labelLine.FindStringSubmatch(line)
		if m == nil {
			continue // prose lines inside a section are ignored
		}
		label := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
		key, ok := labelKeys[label]
		if !ok {
			continue // unknown labels are ignored
		}
		value := strings.TrimSpace(m[2])
		if _, exists := fields[key]; !exists {
			fields[key] = value
		}
	}

	it.done = true
	if sawContent {
		return fields, true
	}
	return nil, false
}

// ParseAll drains the iterator. Used by the validate command and tests; the
// orchestrator consumes sections one at a time.
func ParseAll(r io.Reader) []map[string]string {
	it := NewSectionIterator(r)
	var out []map[string]string
	for {
		fields, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, fields)
	}
}
