package plan

import (
	"encoding/json"
	"fmt"

	"mrdgen/internal/schemagate"
)

// planSchema is the structural contract for the generator's PLANNING output.
// The generator is untrusted input; nothing it produces is accepted before
// passing this gate.
const planSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["objective", "primary_entity", "regions", "research_dimensions", "created_at", "created_by"],
  "properties": {
    "objective": {"type": "string", "minLength": 1},
    "primary_entity": {"type": "string", "minLength": 1},
    "comparison_entities": {"type": "array", "items": {"type": "string"}},
    "regions": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "research_dimensions": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {"enum": ["market", "audience", "competition", "regulation"]}
    },
    "tools": {"type": "array", "items": {"type": "string"}},
    "minimum_dimension_confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "minimum_overall_confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "assumptions": {"type": "array", "items": {"type": "string"}},
    "created_at": {"type": "string"},
    "created_by": {"type": "string", "minLength": 1}
  },
  "additionalProperties": false
}`

const planArtifact = "research plan"

var compiledPlanSchema = schemagate.MustCompile("plan.json", planSchema)

// DecodeJSON validates raw generator output against the plan schema and
// decodes it. A failure is a *schemagate.Error, never a crash.
func DecodeJSON(b []byte) (*ResearchPlan, error) {
	if err := schemagate.Validate(planArtifact, compiledPlanSchema, b); err != nil {
		return nil, err
	}
	var p ResearchPlan
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, schemagate.Violation(planArtifact, nil, fmt.Sprintf("decode: %v", err))
	}
	if err := p.Validate(); err != nil {
		return nil, schemagate.Violation(planArtifact, nil, err.Error())
	}
	return &p, nil
}
