package research

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mrdgen/internal/plan"
)

func testPlan(dims ...plan.Dimension) *plan.ResearchPlan {
	return &plan.ResearchPlan{
		Objective:          "assess market viability: trivia arena",
		PrimaryEntity:      "trivia arena",
		ComparisonEntities: []string{"rivalco"},
		Regions:            []string{"india"},
		Dimensions:         dims,
		CreatedAt:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		CreatedBy:          "test",
	}
}

func TestDispatchDeterministicOrder(t *testing.T) {
	reg := DefaultRegistry()
	p := testPlan(plan.AllDimensions()...)

	results, err := Dispatch(context.Background(), reg, p, p.Dimensions)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	wantDims := plan.AllDimensions()
	for i, res := range results {
		if res.Dimension != wantDims[i] {
			t.Fatalf("result %d dimension = %s, want %s", i, res.Dimension, wantDims[i])
		}
		if res.EvidenceID == "" {
			t.Fatalf("result %d missing evidence ID", i)
		}
		if res.CollectedAt.IsZero() {
			t.Fatalf("result %d missing collection timestamp", i)
		}
	}
}

func TestDispatchSubsetOfDimensions(t *testing.T) {
	reg := DefaultRegistry()
	p := testPlan(plan.AllDimensions()...)

	results, err := Dispatch(context.Background(), reg, p, []plan.Dimension{plan.DimensionRegulation})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 1 || results[0].Dimension != plan.DimensionRegulation {
		t.Fatalf("subset dispatch = %+v", results)
	}
}

func TestDispatchRejectsDimensionOutsidePlan(t *testing.T) {
	reg := DefaultRegistry()
	p := testPlan(plan.DimensionMarket)
	if _, err := Dispatch(context.Background(), reg, p, []plan.Dimension{plan.DimensionAudience}); err == nil {
		t.Fatal("dimension outside plan accepted")
	}
}

type violatingTool struct{}

func (violatingTool) Name() string { return "violating" }
func (violatingTool) Invoke(ctx context.Context, dim plan.Dimension, p *plan.ResearchPlan) (ToolResult, error) {
	return ToolResult{}, fmt.Errorf("contract violation")
}

func TestDispatchAbortsOnContractViolation(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(plan.DimensionMarket, violatingTool{}); err != nil {
		t.Fatal(err)
	}
	p := testPlan(plan.DimensionMarket)
	if _, err := Dispatch(context.Background(), reg, p, p.Dimensions); err == nil {
		t.Fatal("contract violation did not abort the pass")
	}
}

func TestStaticToolSeededAndMissing(t *testing.T) {
	tool := &StaticTool{
		ToolName: "seeded",
		Results: map[plan.Dimension]ToolResult{
			plan.DimensionMarket: {
				Status:     StatusSuccess,
				Finding:    "steady growth",
				Source:     "static://seeded",
				Confidence: 0.7,
			},
		},
	}
	reg := NewRegistry()
	if err := reg.Register(plan.DimensionMarket, tool); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(plan.DimensionAudience, tool); err != nil {
		t.Fatal(err)
	}
	p := testPlan(plan.DimensionMarket, plan.DimensionAudience)

	results, err := Dispatch(context.Background(), reg, p, p.Dimensions)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if results[0].Status != StatusSuccess || results[0].Tool != "seeded" {
		t.Fatalf("seeded result = %+v", results[0])
	}
	if results[1].Status != StatusEmpty {
		t.Fatalf("unseeded dimension should be empty, got %+v", results[1])
	}
}

func TestCompetitorScanEmptyWithoutComparisons(t *testing.T) {
	p := testPlan(plan.DimensionCompetition)
	p.ComparisonEntities = nil
	res, err := (&CompetitorScanTool{}).Invoke(context.Background(), plan.DimensionCompetition, p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusEmpty {
		t.Fatalf("status = %s, want empty", res.Status)
	}
}
