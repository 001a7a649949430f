package normalize

import (
	"testing"
	"time"

	"github.com/anilreddyavula/FormPilot/internal/record"
)

func TestResolve_ExactCaseInsensitive(t *testing.T) {
	opts := []string{"Cloud Computing", "Machine Learning"}
	got, conf, ok := Resolve("cloud computing", opts, DefaultMinConfidence)
	if !ok || got != "Cloud Computing" || conf != 1.0 {
		t.Errorf("Resolve = (%q, %v, %v)", got, conf, ok)
	}
}

func TestResolve_Substring(t *testing.T) {
	opts := []string{"Azure Functions", "Azure App Service"}
	got, _, ok := Resolve("Functions", opts, DefaultMinConfidence)
	if !ok || got != "Azure Functions" {
		t.Errorf("Resolve = (%q, %v)", got, ok)
	}
}

func TestResolve_TokenOverlap(t *testing.T) {
	opts := []string{"Database Technology", "Web Development", "Data Analytics"}
	got, _, ok := Resolve("web dev development", opts, DefaultMinConfidence)
	if !ok || got != "Web Development" {
		t.Errorf("Resolve = (%q, %v)", got, ok)
	}
}

func TestResolve_BelowThresholdKeepsOriginal(t *testing.T) {
	opts := []string{"Cloud Computing", "Machine Learning"}
	got, _, ok := Resolve("qqqqzzzz", opts, DefaultMinConfidence)
	if ok {
		t.Errorf("expected no match, got %q", got)
	}
	if got != "qqqqzzzz" {
		t.Errorf("original value must be returned on failure, got %q", got)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	opts := []string{"Machine Learning", "Deep Learning", "Learning Paths"}
	first, firstConf, _ := Resolve("learning", opts, DefaultMinConfidence)
	for i := 0; i < 50; i++ {
		got, conf, _ := Resolve("learning", opts, DefaultMinConfidence)
		if got != first || conf != firstConf {
			t.Fatalf("iteration %d: Resolve = (%q, %v), want (%q, %v)", i, got, conf, first, firstConf)
		}
	}
}

func TestResolve_TieBreaksByEarliestOption(t *testing.T) {
	// Both options have identical token overlap with the input; the earlier
	// one must win.
	opts := []string{"Security Alpha", "Security Beta"}
	got, _, ok := Resolve("Security", opts, DefaultMinConfidence)
	if !ok || got != "Security Alpha" {
		t.Errorf("Resolve = (%q, %v), want Security Alpha", got, ok)
	}
}

func TestResolve_EmptyInputs(t *testing.T) {
	if _, _, ok := Resolve("", []string{"A"}, DefaultMinConfidence); ok {
		t.Error("empty value must not match")
	}
	if _, _, ok := Resolve("A", nil, DefaultMinConfidence); ok {
		t.Error("empty option list must not match")
	}
}

func testRecord() *record.ActivityRecord {
	published, _ := time.Parse(record.DateFormat, "2024-01-15")
	return &record.ActivityRecord{
		ActivityType:              "blog",
		PrimaryTechnologyArea:     "cloud",
		AdditionalTechnologyAreas: []string{"python", "azure functions"},
		Title:                     "T",
		Description:               "D",
		ActivityURL:               "https://example.com/x",
		TargetAudience:            []string{"developer", "it pro"},
		PublishedDate:             published,
		Quantity:                  1,
	}
}

func TestApply_CanonicalizesRecord(t *testing.T) {
	rec := testRecord()
	warnings := Apply(rec, FallbackOptions(), DefaultMinConfidence)

	if rec.ActivityType != "Blog" {
		t.Errorf("ActivityType = %q", rec.ActivityType)
	}
	if rec.PrimaryTechnologyArea != "Cloud Computing" {
		t.Errorf("PrimaryTechnologyArea = %q", rec.PrimaryTechnologyArea)
	}
	if len(rec.AdditionalTechnologyAreas) != 2 ||
		rec.AdditionalTechnologyAreas[0] != "Python" ||
		rec.AdditionalTechnologyAreas[1] != "Azure Functions" {
		t.Errorf("AdditionalTechnologyAreas = %v", rec.AdditionalTechnologyAreas)
	}
	if len(rec.TargetAudience) != 2 || rec.TargetAudience[0] != "Developer" || rec.TargetAudience[1] != "IT Pro" {
		t.Errorf("TargetAudience = %v", rec.TargetAudience)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestApply_LowConfidenceWarnsAndKeepsValue(t *testing.T) {
	rec := testRecord()
	rec.ActivityType = "xyzzy-unmatchable-99"
	warnings := Apply(rec, FallbackOptions(), DefaultMinConfidence)

	if rec.ActivityType != "xyzzy-unmatchable-99" {
		t.Errorf("original value must survive, got %q", rec.ActivityType)
	}
	found := false
	for _, w := range warnings {
		if w.Field == "activity_type" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected activity_type warning, got %v", warnings)
	}
}

func TestApply_DedupesAdditionalAgainstPrimary(t *testing.T) {
	rec := testRecord()
	rec.PrimaryTechnologyArea = "Machine Learning"
	rec.AdditionalTechnologyAreas = []string{"machine learning", "Python"}
	Apply(rec, FallbackOptions(), DefaultMinConfidence)

	if len(rec.AdditionalTechnologyAreas) != 1 || rec.AdditionalTechnologyAreas[0] != "Python" {
		t.Errorf("expected primary duplicate dropped, got %v", rec.AdditionalTechnologyAreas)
	}
}
