package plan

import (
	"fmt"
	"strings"
	"time"
)

// Dimension is a required research category. The set is closed: the
// validation gate pattern-matches exhaustively over it and there is no
// "unknown dimension" path.
type Dimension string

const (
	DimensionMarket      Dimension = "market"
	DimensionAudience    Dimension = "audience"
	DimensionCompetition Dimension = "competition"
	DimensionRegulation  Dimension = "regulation"
)

// AllDimensions returns the closed dimension set in canonical order. The
// order is load-bearing: research dispatch and coverage reporting iterate it
// to stay deterministic.
func AllDimensions() []Dimension {
	return []Dimension{DimensionMarket, DimensionAudience, DimensionCompetition, DimensionRegulation}
}

func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "market":
		return DimensionMarket, nil
	case "audience":
		return DimensionAudience, nil
	case "competition":
		return DimensionCompetition, nil
	case "regulation":
		return DimensionRegulation, nil
	default:
		return "", fmt.Errorf("invalid research dimension: %q", s)
	}
}

func (d Dimension) Valid() bool {
	_, err := ParseDimension(string(d))
	return err == nil
}

// ResearchPlan is the generator's PLANNING output after it has passed the
// schema gate. Produced once per run unless explicitly replanned.
type ResearchPlan struct {
	Objective          string      `json:"objective" msgpack:"objective"`
	PrimaryEntity      string      `json:"primary_entity" msgpack:"primary_entity"`
	ComparisonEntities []string    `json:"comparison_entities,omitempty" msgpack:"comparison_entities"`
	Regions            []string    `json:"regions" msgpack:"regions"`
	Dimensions         []Dimension `json:"research_dimensions" msgpack:"research_dimensions"`
	Tools              []string    `json:"tools,omitempty" msgpack:"tools"`

	// Per-plan confidence minimums. Zero means "use the engine default".
	MinDimensionConfidence float64 `json:"minimum_dimension_confidence,omitempty" msgpack:"minimum_dimension_confidence"`
	MinOverallConfidence   float64 `json:"minimum_overall_confidence,omitempty" msgpack:"minimum_overall_confidence"`

	Assumptions []string  `json:"assumptions,omitempty" msgpack:"assumptions"`
	CreatedAt   time.Time `json:"created_at" msgpack:"created_at"`
	CreatedBy   string    `json:"created_by" msgpack:"created_by"`
}

// Validate enforces the structural invariants the schema cannot express on
// the decoded value: a non-empty, duplicate-free dimension set of known
// dimensions and sane confidence bounds.
func (p *ResearchPlan) Validate() error {
	if p == nil {
		return fmt.Errorf("plan is nil")
	}
	if strings.TrimSpace(p.Objective) == "" {
		return fmt.Errorf("plan objective is required")
	}
	if len(p.Dimensions) == 0 {
		return fmt.Errorf("plan research_dimensions must be non-empty")
	}
	seen := map[Dimension]bool{}
	for _, d := range p.Dimensions {
		if !d.Valid() {
			return fmt.Errorf("plan research_dimensions: invalid dimension %q", d)
		}
		if seen[d] {
			return fmt.Errorf("plan research_dimensions: duplicate dimension %q", d)
		}
		seen[d] = true
	}
	if p.MinDimensionConfidence < 0 || p.MinDimensionConfidence > 1 {
		return fmt.Errorf("plan minimum_dimension_confidence out of range [0,1]: %v", p.MinDimensionConfidence)
	}
	if p.MinOverallConfidence < 0 || p.MinOverallConfidence > 1 {
		return fmt.Errorf("plan minimum_overall_confidence out of range [0,1]: %v", p.MinOverallConfidence)
	}
	return nil
}

// HasDimension reports whether d is one of the plan's required dimensions.
func (p *ResearchPlan) HasDimension(d Dimension) bool {
	for _, pd := range p.Dimensions {
		if pd == d {
			return true
		}
	}
	return false
}
