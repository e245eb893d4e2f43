// Package generator is the untrusted text-generation boundary. The engine
// hands it an intent (PLANNING) or the accumulated run context (SYNTHESIS)
// and gets raw JSON bytes back; everything returned here goes through a
// schema gate before the engine keeps it.
package generator

import (
	"context"

	"mrdgen/internal/plan"
	"mrdgen/internal/research"
	"mrdgen/internal/validation"
)

// SynthesisInput is everything the generator may draw on when producing the
// document. Slices are the engine's read-only views; a generator must not
// mutate them.
type SynthesisInput struct {
	Intent   string
	Plan     *plan.ResearchPlan
	Evidence []research.ToolResult
	Reports  []validation.Report
}

// Generator produces plan and document candidates as raw JSON. An error
// means the backend itself failed (transport, refusal); malformed output is
// returned as bytes and rejected downstream by the schema gate.
type Generator interface {
	// Plan turns a free-text product intent into a research plan candidate.
	Plan(ctx context.Context, intent string) ([]byte, error)

	// Synthesize turns collected evidence into a document candidate.
	Synthesize(ctx context.Context, in SynthesisInput) ([]byte, error)
}
