// Package normalize resolves free-text field values to the canonical option
// strings a form control expects. Resolution is deterministic: given the same
// value and option list it always produces the same canonical output, with
// ties broken by earliest position in the option list.
package normalize

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/anilreddyavula/FormPilot/internal/record"
)

// DefaultMinConfidence is the threshold below which a match is rejected and
// the original value kept with a warning.
const DefaultMinConfidence = 0.5

// Confidence levels assigned by each resolution stage.
const (
	confidenceExact     = 1.0
	confidenceSubstring = 0.9
	confidenceFuzzy     = 0.6
)

// Warning records a non-fatal normalization issue. The record proceeds with
// its original value.
type Warning struct {
	Field    string
	Original string
	Message  string
}

// Resolve maps value to the best canonical option, reporting the confidence
// of the match. ok is false when no option clears minConfidence.
//
// Stages, in order: case-insensitive exact match, substring containment,
// token-overlap scoring, subsequence fuzzy matching. Each stage is
// deterministic and ties prefer the earliest option.
func Resolve(value string, options []string, minConfidence float64) (string, float64, bool) {
	v := strings.TrimSpace(value)
	if v == "" || len(options) == 0 {
		return value, 0, false
	}
	lower := strings.ToLower(v)

	for _, opt := range options {
		if strings.ToLower(opt) == lower {
			return opt, confidenceExact, true
		}
	}

	for _, opt := range options {
		lo := strings.ToLower(opt)
		if strings.Contains(lo, lower) || strings.Contains(lower, lo) {
			if confidenceSubstring >= minConfidence {
				return opt, confidenceSubstring, true
			}
		}
	}

	if opt, score, ok := bestTokenOverlap(lower, options); ok && score >= minConfidence {
		return opt, score, true
	}

	if opt, ok := bestFuzzy(v, options); ok && confidenceFuzzy >= minConfidence {
		return opt, confidenceFuzzy, true
	}

	return value, 0, false
}

// bestTokenOverlap scores each option by shared word tokens, normalized by
// the larger token count.
func bestTokenOverlap(lowerValue string, options []string) (string, float64, bool) {
	valueTokens := tokenSet(lowerValue)
	if len(valueTokens) == 0 {
		return "", 0, false
	}

	bestIdx := -1
	bestScore := 0.0
	for i, opt := range options {
		optTokens := tokenSet(strings.ToLower(opt))
		if len(optTokens) == 0 {
			continue
		}
		overlap := 0
		for tok := range valueTokens {
			if optTokens[tok] {
				overlap++
			}
		}
		denom := len(valueTokens)
		if len(optTokens) > denom {
			denom = len(optTokens)
		}
		score := float64(overlap) / float64(denom)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore == 0 {
		return "", 0, false
	}
	return options[bestIdx], bestScore, true
}

// bestFuzzy runs subsequence matching as the last resort. Results are
// re-sorted with an index tiebreak so equal scores stay deterministic.
func bestFuzzy(value string, options []string) (string, bool) {
	matches := fuzzy.Find(value, options)
	if len(matches) == 0 {
		return "", false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})
	return options[matches[0].Index], true
}

func tokenSet(s string) map[string]bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// Apply canonicalizes every constrained field of rec in place against opts,
// returning the warnings for values that could not be resolved confidently.
// Unresolved values are kept as-is; warnings are non-fatal.
func Apply(rec *record.ActivityRecord, opts OptionSet, minConfidence float64) []Warning {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	var warnings []Warning

	if canonical, _, ok := Resolve(rec.ActivityType, opts.ActivityTypes, minConfidence); ok {
		rec.ActivityType = canonical
	} else {
		warnings = append(warnings, lowConfidence("activity_type", rec.ActivityType))
	}

	// The primary area may only appear in the additional list on some forms,
	// so the primary pool is tried first and the additional pool second.
	primaryPool := append(append([]string{}, opts.PrimaryTech...), opts.AdditionalTech...)
	if canonical, _, ok := Resolve(rec.PrimaryTechnologyArea, primaryPool, minConfidence); ok {
		rec.PrimaryTechnologyArea = canonical
	} else {
		warnings = append(warnings, lowConfidence("primary_technology_area", rec.PrimaryTechnologyArea))
	}

	additionalPool := append(append([]string{}, opts.AdditionalTech...), opts.PrimaryTech...)
	seen := map[string]bool{strings.ToLower(rec.PrimaryTechnologyArea): true}
	resolved := make([]string, 0, len(rec.AdditionalTechnologyAreas))
	for _, area := range rec.AdditionalTechnologyAreas {
		canonical, _, ok := Resolve(area, additionalPool, minConfidence)
		if !ok {
			warnings = append(warnings, lowConfidence("additional_technology_areas", area))
			canonical = area
		}
		if seen[strings.ToLower(canonical)] {
			continue
		}
		seen[strings.ToLower(canonical)] = true
		resolved = append(resolved, canonical)
		if len(resolved) == record.MaxAdditionalAreas {
			break
		}
	}
	rec.AdditionalTechnologyAreas = resolved

	audSeen := make(map[string]bool, len(rec.TargetAudience))
	audiences := make([]string, 0, len(rec.TargetAudience))
	for _, aud := range rec.TargetAudience {
		canonical, _, ok := Resolve(aud, opts.Audience, minConfidence)
		if !ok {
			warnings = append(warnings, lowConfidence("target_audience", aud))
			canonical = aud
		}
		if audSeen[strings.ToLower(canonical)] {
			continue
		}
		audSeen[strings.ToLower(canonical)] = true
		audiences = append(audiences, canonical)
	}
	rec.TargetAudience = audiences

	return warnings
}

func lowConfidence(field, value string) Warning {
	return Warning{
		Field:    field,
		Original: value,
		Message:  "no canonical option matched with sufficient confidence; keeping original value",
	}
}
