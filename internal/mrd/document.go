// Package mrd defines the Market Requirements Document: the terminal
// artifact of a successful run. The engine enforces structural completeness
// and provenance resolution only; field semantics belong to the generator.
package mrd

import "time"

// Meta carries traceability and audit fields.
type Meta struct {
	GeneratedAt   time.Time `json:"generated_at" msgpack:"generated_at"`
	AgentVersion  string    `json:"agent_version" msgpack:"agent_version"`
	InputPrompt   string    `json:"input_prompt" msgpack:"input_prompt"`
	TargetRegions []string  `json:"target_regions" msgpack:"target_regions"`
	Vertical      string    `json:"vertical,omitempty" msgpack:"vertical"`
}

// MarketTrend is one market movement backed by evidence.
type MarketTrend struct {
	Trend       string  `json:"trend" msgpack:"trend"`
	EvidenceRef string  `json:"evidence_ref" msgpack:"evidence_ref"`
	Confidence  float64 `json:"confidence" msgpack:"confidence"`
}

type MarketState struct {
	Summary           string        `json:"summary" msgpack:"summary"`
	KeyTrends         []MarketTrend `json:"key_trends" msgpack:"key_trends"`
	SucceedingPlayers []string      `json:"succeeding_players,omitempty" msgpack:"succeeding_players"`
	StrugglingPlayers []string      `json:"struggling_players,omitempty" msgpack:"struggling_players"`
}

type AudienceInsight struct {
	Insight     string  `json:"insight" msgpack:"insight"`
	EvidenceRef string  `json:"evidence_ref" msgpack:"evidence_ref"`
	Confidence  float64 `json:"confidence" msgpack:"confidence"`
}

type TargetAudience struct {
	AgeRange            string            `json:"age_range,omitempty" msgpack:"age_range"`
	PrimaryGender       string            `json:"primary_gender,omitempty" msgpack:"primary_gender"`
	Regions             []string          `json:"regions" msgpack:"regions"`
	BehavioralInsights  []AudienceInsight `json:"behavioral_insights" msgpack:"behavioral_insights"`
	AcquisitionChannels []string          `json:"acquisition_channels,omitempty" msgpack:"acquisition_channels"`
}

type Competitor struct {
	Name        string   `json:"name" msgpack:"name"`
	Category    string   `json:"category,omitempty" msgpack:"category"`
	Strengths   []string `json:"strengths,omitempty" msgpack:"strengths"`
	Weaknesses  []string `json:"weaknesses,omitempty" msgpack:"weaknesses"`
	EvidenceRef string   `json:"evidence_ref" msgpack:"evidence_ref"`
}

type CompetitiveLandscape struct {
	Competitors []Competitor `json:"competitors" msgpack:"competitors"`
}

type ProductGap struct {
	Description string `json:"gap_description" msgpack:"gap_description"`
	EvidenceRef string `json:"evidence_ref" msgpack:"evidence_ref"`
	Rationale   string `json:"opportunity_rationale,omitempty" msgpack:"opportunity_rationale"`
}

type GapAnalysis struct {
	IdentifiedGaps []ProductGap `json:"identified_gaps" msgpack:"identified_gaps"`
}

type RegulatoryRegion struct {
	Region      string   `json:"region" msgpack:"region"`
	LegalStatus string   `json:"legal_status" msgpack:"legal_status"`
	Constraints []string `json:"constraints,omitempty" msgpack:"constraints"`
	EvidenceRef string   `json:"evidence_ref" msgpack:"evidence_ref"`
	Confidence  float64  `json:"confidence" msgpack:"confidence"`
}

type RegulatoryAnalysis struct {
	Regions   []RegulatoryRegion `json:"regions" msgpack:"regions"`
	OpenRisks []string           `json:"open_risks,omitempty" msgpack:"open_risks"`
}

type FeatureRecommendation struct {
	Feature       string   `json:"feature" msgpack:"feature"`
	Priority      string   `json:"priority" msgpack:"priority"`
	Justification string   `json:"justification,omitempty" msgpack:"justification"`
	Dependencies  []string `json:"dependencies,omitempty" msgpack:"dependencies"`
}

type StrategicRecommendations struct {
	Features []FeatureRecommendation `json:"features" msgpack:"features"`
}

type ConfidenceSummary struct {
	OverallConfidence float64  `json:"overall_confidence" msgpack:"overall_confidence"`
	WeakAreas         []string `json:"weak_areas,omitempty" msgpack:"weak_areas"`
	NextSteps         []string `json:"recommended_next_steps,omitempty" msgpack:"recommended_next_steps"`
}

// Document is the complete MRD. Its top-level JSON keys are exactly the
// eight required sections; a document missing any of them never leaves the
// schema gate.
type Document struct {
	Meta                     Meta                     `json:"meta" msgpack:"meta"`
	MarketState              MarketState              `json:"market_state" msgpack:"market_state"`
	TargetAudience           TargetAudience           `json:"target_audience" msgpack:"target_audience"`
	CompetitiveLandscape     CompetitiveLandscape     `json:"competitive_landscape" msgpack:"competitive_landscape"`
	GapAnalysis              GapAnalysis              `json:"gap_analysis" msgpack:"gap_analysis"`
	RegulatoryAnalysis       RegulatoryAnalysis       `json:"regulatory_analysis" msgpack:"regulatory_analysis"`
	StrategicRecommendations StrategicRecommendations `json:"strategic_recommendations" msgpack:"strategic_recommendations"`
	ConfidenceSummary        ConfidenceSummary        `json:"confidence_summary" msgpack:"confidence_summary"`
}

// SectionKeys lists the eight required top-level keys in serialization
// order.
func SectionKeys() []string {
	return []string{
		"meta",
		"market_state",
		"target_audience",
		"competitive_landscape",
		"gap_analysis",
		"regulatory_analysis",
		"strategic_recommendations",
		"confidence_summary",
	}
}

// Normalize replaces nil required arrays with empty ones so a marshalled
// document never carries a JSON null where the schema demands an array.
func (d *Document) Normalize() {
	if d.Meta.TargetRegions == nil {
		d.Meta.TargetRegions = []string{}
	}
	if d.MarketState.KeyTrends == nil {
		d.MarketState.KeyTrends = []MarketTrend{}
	}
	if d.TargetAudience.Regions == nil {
		d.TargetAudience.Regions = []string{}
	}
	if d.TargetAudience.BehavioralInsights == nil {
		d.TargetAudience.BehavioralInsights = []AudienceInsight{}
	}
	if d.CompetitiveLandscape.Competitors == nil {
		d.CompetitiveLandscape.Competitors = []Competitor{}
	}
	if d.GapAnalysis.IdentifiedGaps == nil {
		d.GapAnalysis.IdentifiedGaps = []ProductGap{}
	}
	if d.RegulatoryAnalysis.Regions == nil {
		d.RegulatoryAnalysis.Regions = []RegulatoryRegion{}
	}
	if d.StrategicRecommendations.Features == nil {
		d.StrategicRecommendations.Features = []FeatureRecommendation{}
	}
}

// ProvenanceRefs collects every evidence reference in the document, in a
// stable traversal order. The engine resolves each against the run's
// evidence set before accepting the document.
func (d *Document) ProvenanceRefs() []string {
	var refs []string
	add := func(ref string) {
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	for _, t := range d.MarketState.KeyTrends {
		add(t.EvidenceRef)
	}
	for _, i := range d.TargetAudience.BehavioralInsights {
		add(i.EvidenceRef)
	}
	for _, c := range d.CompetitiveLandscape.Competitors {
		add(c.EvidenceRef)
	}
	for _, g := range d.GapAnalysis.IdentifiedGaps {
		add(g.EvidenceRef)
	}
	for _, r := range d.RegulatoryAnalysis.Regions {
		add(r.EvidenceRef)
	}
	return refs
}
