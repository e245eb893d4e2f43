// Package validation holds the pure gate that turns collected research
// evidence into one of four verdicts. Evaluate has no side effects and no
// state: identical inputs always produce an identical report.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"mrdgen/internal/plan"
	"mrdgen/internal/research"
)

// Verdict is the gate's output. The precedence in Evaluate is strict:
// ambiguity or conflict is never silently accepted, even when coverage and
// confidence would otherwise pass.
type Verdict string

const (
	VerdictSufficient    Verdict = "sufficient"
	VerdictInsufficient  Verdict = "insufficient_recoverable"
	VerdictHighRisk      Verdict = "high_risk"
	VerdictUnrecoverable Verdict = "unrecoverable"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictSufficient, VerdictInsufficient, VerdictHighRisk, VerdictUnrecoverable:
		return true
	default:
		return false
	}
}

// Issue is one problem the gate found, tied to the dimension it concerns.
type Issue struct {
	Level     string         `json:"level" msgpack:"level"`
	Message   string         `json:"message" msgpack:"message"`
	Dimension plan.Dimension `json:"dimension,omitempty" msgpack:"dimension"`
}

// Report is the immutable result of one VALIDATION pass. EvaluatedAt is
// stamped by the engine on append, not by Evaluate, so the gate itself stays
// deterministic.
type Report struct {
	Verdict             Verdict                 `json:"verdict" msgpack:"verdict"`
	Coverage            map[plan.Dimension]bool `json:"coverage" msgpack:"coverage"`
	AggregateConfidence float64                 `json:"aggregate_confidence" msgpack:"aggregate_confidence"`
	Rationale           string                  `json:"rationale" msgpack:"rationale"`
	Issues              []Issue                 `json:"issues,omitempty" msgpack:"issues"`
	EvaluatedAt         time.Time               `json:"evaluated_at" msgpack:"evaluated_at"`
}

// UncoveredDimensions lists the plan dimensions the report marked uncovered,
// in canonical dimension order. Repeat research passes target exactly this
// set, which keeps re-research deterministic given the same prior report.
func (r Report) UncoveredDimensions() []plan.Dimension {
	var out []plan.Dimension
	for _, d := range plan.AllDimensions() {
		covered, tracked := r.Coverage[d]
		if tracked && !covered {
			out = append(out, d)
		}
	}
	return out
}

// Policy carries every threshold the gate consults. All values are explicit
// inputs; the gate reads no configuration of its own.
type Policy struct {
	// DimensionConfidence overrides the minimum success confidence for
	// specific dimensions.
	DimensionConfidence map[plan.Dimension]float64

	// DefaultDimensionConfidence applies when neither an override nor a
	// plan minimum is set.
	DefaultDimensionConfidence float64

	// SufficiencyConfidence is the aggregate bar for a sufficient verdict.
	SufficiencyConfidence float64

	// UnrecoverableFloor: an aggregate below this cannot be repaired by
	// more research passes.
	UnrecoverableFloor float64

	// TrustedSources holds doublestar glob patterns. When non-empty, a
	// success result whose source matches none of them is downgraded to
	// weak, exactly like a missing source.
	TrustedSources []string
}

// dimensionThreshold resolves the minimum confidence for one dimension:
// policy override, then plan minimum, then policy default.
func (pol Policy) dimensionThreshold(p *plan.ResearchPlan, d plan.Dimension) float64 {
	if t, ok := pol.DimensionConfidence[d]; ok {
		return t
	}
	if p != nil && p.MinDimensionConfidence > 0 {
		return p.MinDimensionConfidence
	}
	return pol.DefaultDimensionConfidence
}

// sufficiencyBar resolves the aggregate bar: the plan may raise (never
// lower) the configured sufficiency threshold.
func (pol Policy) sufficiencyBar(p *plan.ResearchPlan) float64 {
	bar := pol.SufficiencyConfidence
	if p != nil && p.MinOverallConfidence > bar {
		bar = p.MinOverallConfidence
	}
	return bar
}

// Evaluate applies the gate algorithm:
//
//  1. Coverage — each required dimension needs at least one strong success
//     (credible source, confidence at or above its threshold).
//  2. Credibility — successes with an empty source, or one outside the
//     trusted-source globs, are downgraded to weak and do not cover.
//  3. Aggregate confidence — the minimum over covered required dimensions of
//     their best strong confidence; 0 when nothing is covered. Minimum, not
//     mean: one weak dimension must not be averaged away.
//  4. Verdict precedence — high_risk (ambiguity/conflict) strictly first,
//     then sufficient, then unrecoverable (covered evidence whose aggregate
//     sits below the floor), then insufficient_recoverable. A pass that
//     covered nothing stays recoverable: more research can still repair it,
//     and the engine's attempt budget bounds the retries.
func Evaluate(p *plan.ResearchPlan, results []research.ToolResult, pol Policy) Report {
	rep := Report{
		Coverage: map[plan.Dimension]bool{},
	}
	if p == nil || len(p.Dimensions) == 0 {
		rep.Verdict = VerdictUnrecoverable
		rep.Rationale = "no research plan to validate against"
		return rep
	}

	type dimState struct {
		best       float64 // best strong success confidence
		covered    bool
		conflicts  bool
		ambiguous  bool
		signatures map[string]bool
	}
	states := map[plan.Dimension]*dimState{}
	for _, d := range p.Dimensions {
		states[d] = &dimState{signatures: map[string]bool{}}
		rep.Coverage[d] = false
	}

	for _, res := range results {
		st, ok := states[res.Dimension]
		if !ok {
			continue // evidence for a dimension the plan does not require
		}
		switch res.Status {
		case research.StatusFailed:
			rep.Issues = append(rep.Issues, Issue{
				Level:     "warning",
				Message:   fmt.Sprintf("tool %s failed: %s", res.Tool, res.ErrorMessage),
				Dimension: res.Dimension,
			})
			continue
		case research.StatusEmpty:
			rep.Issues = append(rep.Issues, Issue{
				Level:     "warning",
				Message:   fmt.Sprintf("tool %s returned no data", res.Tool),
				Dimension: res.Dimension,
			})
			continue
		case research.StatusSuccess:
			// handled below
		default:
			// Canonicalize rejects unknown statuses before results reach
			// the context; treat a stray one as a failed lookup.
			rep.Issues = append(rep.Issues, Issue{
				Level:     "error",
				Message:   fmt.Sprintf("tool %s returned unknown status %q", res.Tool, res.Status),
				Dimension: res.Dimension,
			})
			continue
		}

		if res.Ambiguous {
			st.ambiguous = true
			rep.Issues = append(rep.Issues, Issue{
				Level:     "error",
				Message:   fmt.Sprintf("tool %s flagged the result as ambiguous", res.Tool),
				Dimension: res.Dimension,
			})
		}
		if sig := res.FindingSignature(); sig != "" {
			st.signatures[sig] = true
			if len(st.signatures) > 1 {
				st.conflicts = true
			}
		}

		if weak, why := isWeak(res, pol.TrustedSources); weak {
			rep.Issues = append(rep.Issues, Issue{
				Level:     "warning",
				Message:   fmt.Sprintf("tool %s downgraded to weak: %s", res.Tool, why),
				Dimension: res.Dimension,
			})
			continue
		}

		threshold := pol.dimensionThreshold(p, res.Dimension)
		if res.Confidence >= threshold {
			st.covered = true
			if res.Confidence > st.best {
				st.best = res.Confidence
			}
		} else {
			rep.Issues = append(rep.Issues, Issue{
				Level:     "warning",
				Message:   fmt.Sprintf("tool %s confidence %.2f below dimension threshold %.2f", res.Tool, res.Confidence, threshold),
				Dimension: res.Dimension,
			})
		}
	}

	allCovered := true
	risky := false
	var riskyDims, uncovered []string
	agg := 1.0
	anyCovered := false
	for _, d := range p.Dimensions {
		st := states[d]
		rep.Coverage[d] = st.covered
		if st.ambiguous || st.conflicts {
			risky = true
			riskyDims = append(riskyDims, string(d))
			if st.conflicts {
				rep.Issues = append(rep.Issues, Issue{
					Level:     "error",
					Message:   "conflicting success results for the same dimension",
					Dimension: d,
				})
			}
		}
		if st.covered {
			anyCovered = true
			if st.best < agg {
				agg = st.best
			}
		} else {
			allCovered = false
			uncovered = append(uncovered, string(d))
		}
	}
	if !anyCovered {
		agg = 0
	}
	rep.AggregateConfidence = agg
	sort.Strings(riskyDims)
	sort.Strings(uncovered)

	switch {
	case risky:
		rep.Verdict = VerdictHighRisk
		rep.Rationale = fmt.Sprintf("ambiguous or conflicting evidence for: %s", strings.Join(riskyDims, ", "))
	case allCovered && agg >= pol.sufficiencyBar(p):
		rep.Verdict = VerdictSufficient
		rep.Rationale = fmt.Sprintf("all %d required dimensions covered, aggregate confidence %.2f", len(p.Dimensions), agg)
	case anyCovered && agg < pol.UnrecoverableFloor:
		rep.Verdict = VerdictUnrecoverable
		rep.Rationale = fmt.Sprintf("aggregate confidence %.2f below unrecoverable floor %.2f", agg, pol.UnrecoverableFloor)
	default:
		rep.Verdict = VerdictInsufficient
		if len(uncovered) > 0 {
			rep.Rationale = fmt.Sprintf("uncovered dimensions: %s", strings.Join(uncovered, ", "))
		} else {
			rep.Rationale = fmt.Sprintf("aggregate confidence %.2f below sufficiency bar %.2f", agg, pol.sufficiencyBar(p))
		}
	}
	return rep
}

// isWeak applies the credibility check: a success must carry a non-empty
// source, and when trusted-source patterns are configured the source must
// match at least one of them.
func isWeak(res research.ToolResult, trusted []string) (bool, string) {
	src := strings.TrimSpace(res.Source)
	if src == "" {
		return true, "missing source identifier"
	}
	if len(trusted) == 0 {
		return false, ""
	}
	for _, pattern := range trusted {
		ok, err := doublestar.Match(pattern, src)
		if err != nil {
			continue // invalid pattern, checked at config load
		}
		if ok {
			return false, ""
		}
	}
	return true, fmt.Sprintf("source %q matches no trusted pattern", src)
}
