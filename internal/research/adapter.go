package research

import (
	"context"
	"fmt"
	"sync"

	"mrdgen/internal/plan"
)

// Tool wraps one external lookup behind a uniform synchronous interface.
// Invoke returns an error only for programming-contract violations (nil or
// invalid plan, unsupported dimension); remote-side failures come back as a
// ToolResult with status failed or empty.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, dim plan.Dimension, p *plan.ResearchPlan) (ToolResult, error)
}

// Registry maps dimensions to the tools able to research them. Registration
// order is preserved per dimension so dispatch stays deterministic.
type Registry struct {
	mu          sync.RWMutex
	byDimension map[plan.Dimension][]Tool
}

func NewRegistry() *Registry {
	return &Registry{byDimension: map[plan.Dimension][]Tool{}}
}

func (r *Registry) Register(dim plan.Dimension, t Tool) error {
	if !dim.Valid() {
		return fmt.Errorf("register tool: invalid dimension %q", dim)
	}
	if t == nil {
		return fmt.Errorf("register tool: tool is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byDimension == nil {
		r.byDimension = map[plan.Dimension][]Tool{}
	}
	r.byDimension[dim] = append(r.byDimension[dim], t)
	return nil
}

func (r *Registry) ToolsFor(dim plan.Dimension) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Tool{}, r.byDimension[dim]...)
}

// DefaultRegistry wires the built-in simulated tools so every dimension in
// the closed set has at least one binding.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	_ = reg.Register(plan.DimensionMarket, &MarketIntelTool{})
	_ = reg.Register(plan.DimensionAudience, &SentimentTool{})
	_ = reg.Register(plan.DimensionCompetition, &CompetitorScanTool{})
	_ = reg.Register(plan.DimensionRegulation, &RegulatoryTool{})
	return reg
}
