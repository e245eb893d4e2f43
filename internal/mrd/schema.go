package mrd

import (
	"encoding/json"
	"fmt"

	"mrdgen/internal/schemagate"
)

// mrdSchema is the structural contract for SYNTHESIS output. Exactly the
// eight required sections, nothing extra at the top level; an omitted
// section or a trailing unknown key is a schema violation, not a warning.
const mrdSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": [
    "meta",
    "market_state",
    "target_audience",
    "competitive_landscape",
    "gap_analysis",
    "regulatory_analysis",
    "strategic_recommendations",
    "confidence_summary"
  ],
  "properties": {
    "meta": {
      "type": "object",
      "required": ["generated_at", "agent_version", "input_prompt", "target_regions"],
      "properties": {
        "generated_at": {"type": "string"},
        "agent_version": {"type": "string", "minLength": 1},
        "input_prompt": {"type": "string", "minLength": 1},
        "target_regions": {"type": "array", "items": {"type": "string"}},
        "vertical": {"type": "string"}
      }
    },
    "market_state": {
      "type": "object",
      "required": ["summary", "key_trends"],
      "properties": {
        "summary": {"type": "string", "minLength": 1},
        "key_trends": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["trend", "evidence_ref", "confidence"],
            "properties": {
              "trend": {"type": "string", "minLength": 1},
              "evidence_ref": {"type": "string", "minLength": 1},
              "confidence": {"type": "number", "minimum": 0, "maximum": 1}
            }
          }
        },
        "succeeding_players": {"type": "array", "items": {"type": "string"}},
        "struggling_players": {"type": "array", "items": {"type": "string"}}
      }
    },
    "target_audience": {
      "type": "object",
      "required": ["regions", "behavioral_insights"],
      "properties": {
        "age_range": {"type": "string"},
        "primary_gender": {"type": "string"},
        "regions": {"type": "array", "items": {"type": "string"}},
        "behavioral_insights": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["insight", "evidence_ref", "confidence"],
            "properties": {
              "insight": {"type": "string", "minLength": 1},
              "evidence_ref": {"type": "string", "minLength": 1},
              "confidence": {"type": "number", "minimum": 0, "maximum": 1}
            }
          }
        },
        "acquisition_channels": {"type": "array", "items": {"type": "string"}}
      }
    },
    "competitive_landscape": {
      "type": "object",
      "required": ["competitors"],
      "properties": {
        "competitors": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name", "evidence_ref"],
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "category": {"type": "string"},
              "strengths": {"type": "array", "items": {"type": "string"}},
              "weaknesses": {"type": "array", "items": {"type": "string"}},
              "evidence_ref": {"type": "string", "minLength": 1}
            }
          }
        }
      }
    },
    "gap_analysis": {
      "type": "object",
      "required": ["identified_gaps"],
      "properties": {
        "identified_gaps": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["gap_description", "evidence_ref"],
            "properties": {
              "gap_description": {"type": "string", "minLength": 1},
              "evidence_ref": {"type": "string", "minLength": 1},
              "opportunity_rationale": {"type": "string"}
            }
          }
        }
      }
    },
    "regulatory_analysis": {
      "type": "object",
      "required": ["regions"],
      "properties": {
        "regions": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["region", "legal_status", "evidence_ref", "confidence"],
            "properties": {
              "region": {"type": "string", "minLength": 1},
              "legal_status": {"type": "string", "minLength": 1},
              "constraints": {"type": "array", "items": {"type": "string"}},
              "evidence_ref": {"type": "string", "minLength": 1},
              "confidence": {"type": "number", "minimum": 0, "maximum": 1}
            }
          }
        },
        "open_risks": {"type": "array", "items": {"type": "string"}}
      }
    },
    "strategic_recommendations": {
      "type": "object",
      "required": ["features"],
      "properties": {
        "features": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["feature", "priority"],
            "properties": {
              "feature": {"type": "string", "minLength": 1},
              "priority": {"enum": ["p0", "p1", "p2"]},
              "justification": {"type": "string"},
              "dependencies": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    },
    "confidence_summary": {
      "type": "object",
      "required": ["overall_confidence"],
      "properties": {
        "overall_confidence": {"type": "number", "minimum": 0, "maximum": 1},
        "weak_areas": {"type": "array", "items": {"type": "string"}},
        "recommended_next_steps": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "additionalProperties": false
}`

const mrdArtifact = "mrd document"

var compiledMRDSchema = schemagate.MustCompile("mrd.json", mrdSchema)

// DecodeJSON validates raw SYNTHESIS output against the document schema and
// decodes it. A document that fails here never reaches COMPLETED.
func DecodeJSON(b []byte) (*Document, error) {
	if err := schemagate.Validate(mrdArtifact, compiledMRDSchema, b); err != nil {
		return nil, err
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, schemagate.Violation(mrdArtifact, nil, fmt.Sprintf("decode: %v", err))
	}
	return &d, nil
}

// ResolveProvenance checks that every evidence_ref in the document points at
// a known evidence ID. known maps evidence ID to presence.
func (d *Document) ResolveProvenance(known map[string]bool) error {
	var missing []string
	seen := map[string]bool{}
	for _, ref := range d.ProvenanceRefs() {
		if !known[ref] && !seen[ref] {
			seen[ref] = true
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		return schemagate.Violation(mrdArtifact, missing, "evidence references do not resolve to collected evidence")
	}
	return nil
}
