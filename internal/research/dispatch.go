package research

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"mrdgen/internal/plan"
)

// Dispatch runs every registered tool for the requested dimensions. Tool
// invocations within one pass are independent and run concurrently, but the
// returned slice is fully collected and deterministically ordered (requested
// dimension order, then registration order) before the caller sees it — the
// validation gate never observes a partial stream.
//
// Remote failures surface as result statuses. A returned error means a
// programming-contract violation and aborts the pass.
func Dispatch(ctx context.Context, reg *Registry, p *plan.ResearchPlan, dims []plan.Dimension) ([]ToolResult, error) {
	if reg == nil {
		return nil, fmt.Errorf("dispatch: registry is nil")
	}
	if p == nil {
		return nil, fmt.Errorf("dispatch: plan is nil")
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("dispatch: no dimensions requested")
	}

	type slot struct {
		dim  plan.Dimension
		tool Tool
	}
	var slots []slot
	for _, d := range dims {
		if !p.HasDimension(d) {
			return nil, fmt.Errorf("dispatch: dimension %q not in plan", d)
		}
		for _, t := range reg.ToolsFor(d) {
			slots = append(slots, slot{dim: d, tool: t})
		}
	}

	results := make([]ToolResult, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range slots {
		i, s := i, s
		g.Go(func() error {
			res, err := s.tool.Invoke(gctx, s.dim, p)
			if err != nil {
				return fmt.Errorf("tool %s (%s): %w", s.tool.Name(), s.dim, err)
			}
			res.Tool = s.tool.Name()
			res.Dimension = s.dim
			if res.CollectedAt.IsZero() {
				res.CollectedAt = time.Now().UTC()
			}
			res, err = res.Canonicalize()
			if err != nil {
				return fmt.Errorf("tool %s (%s): %w", s.tool.Name(), s.dim, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
