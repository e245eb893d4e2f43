package research

import (
	"context"
	"fmt"
	"strings"

	"mrdgen/internal/plan"
)

// Built-in simulated tools. They stand in for the real market-intelligence,
// sentiment, competitor and regulatory lookups with deterministic canned
// data keyed off the plan, so full runs are reproducible offline.

// MarketIntelTool simulates an app/market intelligence lookup.
type MarketIntelTool struct{}

func (t *MarketIntelTool) Name() string { return "market_intel" }

func (t *MarketIntelTool) Invoke(ctx context.Context, dim plan.Dimension, p *plan.ResearchPlan) (ToolResult, error) {
	if err := checkInvocation(ctx, dim, p, plan.DimensionMarket); err != nil {
		return ToolResult{}, err
	}
	return ToolResult{
		Status:  StatusSuccess,
		Finding: fmt.Sprintf("%s shows sustained download growth", p.PrimaryEntity),
		Data: map[string]any{
			"entity":      p.PrimaryEntity,
			"downloads":   120000,
			"growth_rate": "12%",
			"regions":     strings.Join(p.Regions, ","),
		},
		Source:     "sim://market-intel/" + slug(p.PrimaryEntity),
		Confidence: 0.9,
	}, nil
}

// SentimentTool simulates audience sentiment analysis over public sources.
type SentimentTool struct{}

func (t *SentimentTool) Name() string { return "sentiment_analysis" }

func (t *SentimentTool) Invoke(ctx context.Context, dim plan.Dimension, p *plan.ResearchPlan) (ToolResult, error) {
	if err := checkInvocation(ctx, dim, p, plan.DimensionAudience); err != nil {
		return ToolResult{}, err
	}
	return ToolResult{
		Status:  StatusSuccess,
		Finding: "audience sentiment is positive around competition and fast payouts",
		Data: map[string]any{
			"sentiment": "positive",
			"themes":    []string{"competition", "fast payouts"},
		},
		Source:     "sim://sentiment/" + slug(p.PrimaryEntity),
		Confidence: 0.85,
	}, nil
}

// CompetitorScanTool simulates a competitive landscape scan.
type CompetitorScanTool struct{}

func (t *CompetitorScanTool) Name() string { return "competitor_scan" }

func (t *CompetitorScanTool) Invoke(ctx context.Context, dim plan.Dimension, p *plan.ResearchPlan) (ToolResult, error) {
	if err := checkInvocation(ctx, dim, p, plan.DimensionCompetition); err != nil {
		return ToolResult{}, err
	}
	competitors := p.ComparisonEntities
	if len(competitors) == 0 {
		return ToolResult{
			Status:       StatusEmpty,
			ErrorMessage: "no comparison entities in plan",
			Source:       "sim://competitors",
		}, nil
	}
	return ToolResult{
		Status:  StatusSuccess,
		Finding: fmt.Sprintf("%d direct competitors identified", len(competitors)),
		Data: map[string]any{
			"competitors": competitors,
		},
		Source:     "sim://competitors/" + slug(p.PrimaryEntity),
		Confidence: 0.8,
	}, nil
}

// RegulatoryTool simulates a per-region regulatory compliance check.
type RegulatoryTool struct{}

func (t *RegulatoryTool) Name() string { return "regulatory_check" }

func (t *RegulatoryTool) Invoke(ctx context.Context, dim plan.Dimension, p *plan.ResearchPlan) (ToolResult, error) {
	if err := checkInvocation(ctx, dim, p, plan.DimensionRegulation); err != nil {
		return ToolResult{}, err
	}
	return ToolResult{
		Status:  StatusSuccess,
		Finding: "conditionally permitted; skill-based classification required",
		Data: map[string]any{
			"status":  "conditionally_permitted",
			"notes":   "Skill-based classification required",
			"regions": strings.Join(p.Regions, ","),
		},
		Source:     "sim://regulatory/" + slug(strings.Join(p.Regions, "-")),
		Confidence: 0.75,
	}, nil
}

// StaticTool returns pre-seeded results per dimension. Used by tests and by
// callers that want to replay recorded evidence through a full run.
type StaticTool struct {
	ToolName string
	Results  map[plan.Dimension]ToolResult
}

func (t *StaticTool) Name() string {
	if t.ToolName != "" {
		return t.ToolName
	}
	return "static"
}

func (t *StaticTool) Invoke(ctx context.Context, dim plan.Dimension, p *plan.ResearchPlan) (ToolResult, error) {
	if err := checkInvocation(ctx, dim, p, dim); err != nil {
		return ToolResult{}, err
	}
	res, ok := t.Results[dim]
	if !ok {
		return ToolResult{
			Status:       StatusEmpty,
			ErrorMessage: "no seeded result for dimension",
			Source:       "static://" + t.Name(),
		}, nil
	}
	return res, nil
}

func checkInvocation(ctx context.Context, dim plan.Dimension, p *plan.ResearchPlan, want plan.Dimension) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("plan is nil")
	}
	if dim != want {
		return fmt.Errorf("unsupported dimension %q (want %q)", dim, want)
	}
	return nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "-")
}
