package shape

import (
	"regexp"
	"strings"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// sentenceEnders are the characters accepted as a sentence boundary by
// Truncate and appended by Sanitize when the text trails off without one.
const sentenceEnders = ".!?"

// Sanitize cleans generated or source text for form entry: links are
// removed, dash variants become plain hyphens, whitespace collapses, and a
// trailing ellipsis or bare fragment gets a closing period.
func Sanitize(text string) string {
	t := urlPattern.ReplaceAllString(text, "")
	t = strings.NewReplacer("—", "-", "–", "-", "…", "...").Replace(t)
	t = whitespacePattern.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)
	t = strings.TrimRight(t, ".")
	if t == "" {
		return ""
	}
	if !strings.ContainsRune(sentenceEnders, rune(t[len(t)-1])) {
		t += "."
	}
	return t
}

// Truncate shortens text to at most limit runes, preferring a sentence
// boundary and falling back to a word boundary. The result always ends with
// terminal punctuation and never exceeds the limit.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 0 {
		return ""
	}

	cut := runes[:limit]

	// Prefer the last full sentence within the window, as long as it keeps
	// a reasonable share of the text.
	lastEnd := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if strings.ContainsRune(sentenceEnders, cut[i]) {
			lastEnd = i
			break
		}
	}
	if lastEnd >= limit/2 {
		return strings.TrimSpace(string(cut[:lastEnd+1]))
	}

	// Otherwise break at the last word boundary and close the fragment.
	lastSpace := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == ' ' {
			lastSpace = i
			break
		}
	}
	if lastSpace > 0 {
		cut = cut[:lastSpace]
	} else {
		cut = cut[:limit-1]
	}
	out := strings.TrimRight(strings.TrimSpace(string(cut)), ".,;:")
	return out + "."
}
