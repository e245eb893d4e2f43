package mrd

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mrdgen/internal/schemagate"
)

func sampleDocument() *Document {
	return &Document{
		Meta: Meta{
			GeneratedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			AgentVersion:  "mrdgen/0.1",
			InputPrompt:   "real-money trivia app in india",
			TargetRegions: []string{"india"},
		},
		MarketState: MarketState{
			Summary: "sustained growth",
			KeyTrends: []MarketTrend{
				{Trend: "downloads up 12%", EvidenceRef: "ev_aaaa", Confidence: 0.9},
			},
		},
		TargetAudience: TargetAudience{
			Regions: []string{"india"},
			BehavioralInsights: []AudienceInsight{
				{Insight: "positive sentiment", EvidenceRef: "ev_bbbb", Confidence: 0.85},
			},
		},
		CompetitiveLandscape: CompetitiveLandscape{
			Competitors: []Competitor{{Name: "rivalco", EvidenceRef: "ev_cccc"}},
		},
		GapAnalysis: GapAnalysis{
			IdentifiedGaps: []ProductGap{{Description: "no live events", EvidenceRef: "ev_cccc"}},
		},
		RegulatoryAnalysis: RegulatoryAnalysis{
			Regions: []RegulatoryRegion{
				{Region: "india", LegalStatus: "conditionally_permitted", EvidenceRef: "ev_dddd", Confidence: 0.75},
			},
		},
		StrategicRecommendations: StrategicRecommendations{
			Features: []FeatureRecommendation{{Feature: "skill-based matchmaking", Priority: "p0"}},
		},
		ConfidenceSummary: ConfidenceSummary{OverallConfidence: 0.75},
	}
}

func TestDecodeJSONAcceptsCompleteDocument(t *testing.T) {
	raw, err := json.Marshal(sampleDocument())
	if err != nil {
		t.Fatal(err)
	}
	doc, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if doc.MarketState.KeyTrends[0].EvidenceRef != "ev_aaaa" {
		t.Fatal("trend evidence ref lost in decode")
	}
}

func TestDecodeJSONRejectsMissingSection(t *testing.T) {
	raw, err := json.Marshal(sampleDocument())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	delete(m, "confidence_summary")
	partial, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecodeJSON(partial)
	if err == nil {
		t.Fatal("document missing a section accepted")
	}
	if !strings.Contains(err.Error(), "confidence_summary") {
		t.Fatalf("error does not name the missing section: %v", err)
	}
	var se *schemagate.Error
	if !errors.As(err, &se) {
		t.Fatalf("error is %T, want *schemagate.Error", err)
	}
}

func TestDecodeJSONRejectsExtraTopLevelKey(t *testing.T) {
	raw, err := json.Marshal(sampleDocument())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	m["appendix"] = json.RawMessage(`{}`)
	extended, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeJSON(extended); err == nil {
		t.Fatal("extra top-level key accepted")
	}
}

func TestDecodeJSONRejectsInvalidJSON(t *testing.T) {
	if _, err := DecodeJSON([]byte("not json")); err == nil {
		t.Fatal("invalid JSON accepted")
	}
}

func TestResolveProvenance(t *testing.T) {
	doc := sampleDocument()
	known := map[string]bool{"ev_aaaa": true, "ev_bbbb": true, "ev_cccc": true, "ev_dddd": true}
	if err := doc.ResolveProvenance(known); err != nil {
		t.Fatalf("ResolveProvenance: %v", err)
	}

	delete(known, "ev_dddd")
	err := doc.ResolveProvenance(known)
	if err == nil {
		t.Fatal("dangling evidence reference accepted")
	}
	if !strings.Contains(err.Error(), "ev_dddd") {
		t.Fatalf("error does not name the dangling ref: %v", err)
	}
}

func TestProvenanceRefsWalksEverySection(t *testing.T) {
	refs := sampleDocument().ProvenanceRefs()
	want := []string{"ev_aaaa", "ev_bbbb", "ev_cccc", "ev_cccc", "ev_dddd"}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("refs[%d] = %s, want %s", i, refs[i], want[i])
		}
	}
}
