package generator

import (
	"context"
	"testing"
	"time"

	"mrdgen/internal/mrd"
	"mrdgen/internal/plan"
	"mrdgen/internal/research"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func TestSimulatedPlanPassesSchemaGate(t *testing.T) {
	g := &Simulated{Now: fixedNow}
	raw, err := g.Plan(context.Background(), "Real-money trivia arena in India, like Rivalco and QuizKing")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	p, err := plan.DecodeJSON(raw)
	if err != nil {
		t.Fatalf("simulated plan rejected by its own gate: %v", err)
	}
	if len(p.Regions) != 1 || p.Regions[0] != "india" {
		t.Fatalf("regions = %v, want [india]", p.Regions)
	}
	if len(p.ComparisonEntities) != 2 {
		t.Fatalf("comparison entities = %v", p.ComparisonEntities)
	}
	if !p.HasDimension(plan.DimensionCompetition) {
		t.Fatal("competitors named but competition dimension missing")
	}
	if !p.HasDimension(plan.DimensionRegulation) {
		t.Fatal("regulation dimension missing")
	}
}

func TestSimulatedPlanWithoutCompetitors(t *testing.T) {
	g := &Simulated{Now: fixedNow}
	raw, err := g.Plan(context.Background(), "habit tracker for remote teams")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	p, err := plan.DecodeJSON(raw)
	if err != nil {
		t.Fatalf("plan rejected: %v", err)
	}
	if p.HasDimension(plan.DimensionCompetition) {
		t.Fatal("competition dimension planned with no comparison entities")
	}
	if len(p.Regions) != 1 || p.Regions[0] != "global" {
		t.Fatalf("regions = %v, want [global]", p.Regions)
	}
}

func TestSimulatedPlanRejectsEmptyIntent(t *testing.T) {
	g := &Simulated{Now: fixedNow}
	if _, err := g.Plan(context.Background(), "  "); err == nil {
		t.Fatal("empty intent accepted")
	}
}

func TestSimulatedSynthesizeResolvesProvenance(t *testing.T) {
	g := &Simulated{Now: fixedNow}
	p := &plan.ResearchPlan{
		Objective:          "assess",
		PrimaryEntity:      "trivia arena",
		ComparisonEntities: []string{"rivalco"},
		Regions:            []string{"india"},
		Dimensions:         plan.AllDimensions(),
		CreatedAt:          fixedNow(),
		CreatedBy:          "test",
	}
	evidence, err := research.Dispatch(context.Background(), research.DefaultRegistry(), p, p.Dimensions)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := g.Synthesize(context.Background(), SynthesisInput{
		Intent:   "trivia arena in india",
		Plan:     p,
		Evidence: evidence,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	doc, err := mrd.DecodeJSON(raw)
	if err != nil {
		t.Fatalf("simulated document rejected by its own gate: %v", err)
	}

	known := map[string]bool{}
	for _, res := range evidence {
		known[res.EvidenceID] = true
	}
	if err := doc.ResolveProvenance(known); err != nil {
		t.Fatalf("provenance does not resolve: %v", err)
	}
	if doc.Meta.InputPrompt != "trivia arena in india" {
		t.Fatal("intent not carried into meta")
	}
	if len(doc.RegulatoryAnalysis.Regions) != 1 {
		t.Fatalf("regulatory regions = %+v", doc.RegulatoryAnalysis.Regions)
	}
}

func TestExtractComparisons(t *testing.T) {
	got := extractComparisons("quiz app like Rivalco, QuizKing and BrainDuel. For India.")
	want := []string{"Rivalco", "QuizKing", "BrainDuel"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if extractComparisons("no competitors named") != nil {
		t.Fatal("expected nil without a marker")
	}
}
