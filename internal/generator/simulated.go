package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mrdgen/internal/mrd"
	"mrdgen/internal/plan"
	"mrdgen/internal/research"
)

// Version stamps documents produced by this build.
const Version = "mrdgen/0.1"

// Simulated is a deterministic generator backend. It derives a plan from
// keyword heuristics over the intent and a document from the collected
// evidence, so full runs work offline and tests are reproducible.
type Simulated struct {
	// Now supplies timestamps; defaults to time.Now. Tests pin it.
	Now func() time.Time
}

func (g *Simulated) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

var knownRegions = []string{
	"india", "indonesia", "brazil", "mexico", "nigeria",
	"united states", "us", "uk", "eu", "japan", "germany",
}

func (g *Simulated) Plan(ctx context.Context, intent string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return nil, fmt.Errorf("simulated planner: empty intent")
	}

	lower := strings.ToLower(intent)
	var regions []string
	for _, r := range knownRegions {
		if containsWord(lower, r) {
			regions = append(regions, r)
		}
	}
	if len(regions) == 0 {
		regions = []string{"global"}
	}

	comparisons := extractComparisons(intent)
	dims := []plan.Dimension{plan.DimensionMarket, plan.DimensionAudience}
	if len(comparisons) > 0 {
		dims = append(dims, plan.DimensionCompetition)
	}
	dims = append(dims, plan.DimensionRegulation)

	p := plan.ResearchPlan{
		Objective:          fmt.Sprintf("assess market viability: %s", intent),
		PrimaryEntity:      primaryEntity(intent),
		ComparisonEntities: comparisons,
		Regions:            regions,
		Dimensions:         dims,
		Tools:              []string{"market_intel", "sentiment_analysis", "competitor_scan", "regulatory_check"},
		Assumptions:        []string{"simulated research backends; findings are canned"},
		CreatedAt:          g.now(),
		CreatedBy:          Version,
	}
	return json.Marshal(&p)
}

func (g *Simulated) Synthesize(ctx context.Context, in SynthesisInput) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Plan == nil {
		return nil, fmt.Errorf("simulated synthesis: no plan")
	}

	// Latest success per dimension wins; earlier passes are superseded.
	best := map[plan.Dimension]research.ToolResult{}
	for _, res := range in.Evidence {
		if res.Status == research.StatusSuccess {
			best[res.Dimension] = res
		}
	}

	doc := mrd.Document{
		Meta: mrd.Meta{
			GeneratedAt:   g.now(),
			AgentVersion:  Version,
			InputPrompt:   in.Intent,
			TargetRegions: in.Plan.Regions,
		},
	}

	if res, ok := best[plan.DimensionMarket]; ok {
		doc.MarketState = mrd.MarketState{
			Summary: res.Finding,
			KeyTrends: []mrd.MarketTrend{{
				Trend:       res.Finding,
				EvidenceRef: res.EvidenceID,
				Confidence:  res.Confidence,
			}},
		}
	} else {
		doc.MarketState = mrd.MarketState{Summary: "market evidence unavailable"}
	}

	doc.TargetAudience = mrd.TargetAudience{Regions: in.Plan.Regions}
	if res, ok := best[plan.DimensionAudience]; ok {
		doc.TargetAudience.BehavioralInsights = []mrd.AudienceInsight{{
			Insight:     res.Finding,
			EvidenceRef: res.EvidenceID,
			Confidence:  res.Confidence,
		}}
	}

	if res, ok := best[plan.DimensionCompetition]; ok {
		for _, name := range in.Plan.ComparisonEntities {
			doc.CompetitiveLandscape.Competitors = append(doc.CompetitiveLandscape.Competitors, mrd.Competitor{
				Name:        name,
				EvidenceRef: res.EvidenceID,
			})
		}
		doc.GapAnalysis.IdentifiedGaps = []mrd.ProductGap{{
			Description: fmt.Sprintf("differentiation opportunity for %s against %d incumbents", in.Plan.PrimaryEntity, len(in.Plan.ComparisonEntities)),
			EvidenceRef: res.EvidenceID,
			Rationale:   res.Finding,
		}}
	}

	if res, ok := best[plan.DimensionRegulation]; ok {
		status := "unknown"
		if s, ok := res.Data["status"].(string); ok {
			status = s
		}
		for _, region := range in.Plan.Regions {
			doc.RegulatoryAnalysis.Regions = append(doc.RegulatoryAnalysis.Regions, mrd.RegulatoryRegion{
				Region:      region,
				LegalStatus: status,
				EvidenceRef: res.EvidenceID,
				Confidence:  res.Confidence,
			})
		}
	}

	doc.StrategicRecommendations = mrd.StrategicRecommendations{
		Features: []mrd.FeatureRecommendation{
			{
				Feature:       fmt.Sprintf("launch %s in %s first", in.Plan.PrimaryEntity, strings.Join(in.Plan.Regions, ", ")),
				Priority:      "p0",
				Justification: "highest-confidence market evidence concentrates there",
			},
			{
				Feature:       "instrument retention funnels before paid acquisition",
				Priority:      "p1",
			},
		},
	}

	doc.ConfidenceSummary = mrd.ConfidenceSummary{OverallConfidence: 1}
	covered := false
	for _, d := range in.Plan.Dimensions {
		res, ok := best[d]
		if !ok {
			doc.ConfidenceSummary.WeakAreas = append(doc.ConfidenceSummary.WeakAreas, string(d))
			continue
		}
		covered = true
		if res.Confidence < doc.ConfidenceSummary.OverallConfidence {
			doc.ConfidenceSummary.OverallConfidence = res.Confidence
		}
	}
	if !covered {
		doc.ConfidenceSummary.OverallConfidence = 0
	}
	if len(in.Reports) > 0 {
		last := in.Reports[len(in.Reports)-1]
		doc.ConfidenceSummary.OverallConfidence = last.AggregateConfidence
	}
	if len(doc.ConfidenceSummary.WeakAreas) > 0 {
		doc.ConfidenceSummary.NextSteps = []string{"commission primary research for weak areas"}
	}

	doc.Normalize()
	return json.Marshal(&doc)
}

// primaryEntity takes the leading clause of the intent as the product name,
// clipped to a handful of words.
func primaryEntity(intent string) string {
	for _, sep := range []string{".", ",", ";", " in ", " for ", " targeting "} {
		if i := strings.Index(intent, sep); i > 0 {
			intent = intent[:i]
		}
	}
	words := strings.Fields(intent)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

// extractComparisons pulls competitor names after markers like "vs" or
// "such as", split on commas and "and".
func extractComparisons(intent string) []string {
	lower := strings.ToLower(intent)
	markers := []string{" vs ", " versus ", " such as ", " like ", " against "}
	start := -1
	for _, m := range markers {
		if i := strings.Index(lower, m); i >= 0 {
			start = i + len(m)
			break
		}
	}
	if start < 0 {
		return nil
	}
	rest := intent[start:]
	if i := strings.IndexAny(rest, ".;"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.ReplaceAll(rest, " and ", ",")
	var out []string
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsWord(haystack, word string) bool {
	i := strings.Index(haystack, word)
	if i < 0 {
		return false
	}
	before := i == 0 || !isAlpha(haystack[i-1])
	after := i+len(word) >= len(haystack) || !isAlpha(haystack[i+len(word)])
	return before && after
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
