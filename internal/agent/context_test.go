package agent

import (
	"strings"
	"testing"
	"time"

	"mrdgen/internal/plan"
	"mrdgen/internal/research"
)

func TestNewRunContext(t *testing.T) {
	rc := NewRunContext("", "trivia arena in india")
	if rc.State() != StateStart {
		t.Fatalf("initial state = %s", rc.State())
	}
	if !strings.HasPrefix(rc.RunID(), "run_") {
		t.Fatalf("run ID = %q", rc.RunID())
	}
	if rc.Attempts() != 0 {
		t.Fatal("fresh context has attempts")
	}

	rc = NewRunContext("run_custom", "x")
	if rc.RunID() != "run_custom" {
		t.Fatal("explicit run ID ignored")
	}
}

func TestSetStateRejectsIllegalTransition(t *testing.T) {
	rc := NewRunContext("", "x")
	now := time.Now().UTC()
	if err := rc.setState(StateSynthesis, "skip ahead", now); err == nil {
		t.Fatal("start -> synthesis accepted")
	}
	if err := rc.setState(StatePlanning, "run started", now); err != nil {
		t.Fatal(err)
	}
	events := rc.Events()
	if len(events) != 1 || events[0].From != StateStart || events[0].To != StatePlanning {
		t.Fatalf("events = %+v", events)
	}
}

func TestApplyReviewIdempotency(t *testing.T) {
	rc := NewRunContext("", "x")
	d := ReviewDecision{Approved: true, Reviewer: "ana", DecisionID: "dec_1", DecidedAt: time.Now().UTC()}
	if err := rc.applyReview(d); err != nil {
		t.Fatal(err)
	}
	// Same decision again: no-op.
	if err := rc.applyReview(d); err != nil {
		t.Fatalf("idempotent re-apply rejected: %v", err)
	}
	// A different decision after the first: rejected.
	other := d
	other.DecisionID = "dec_2"
	other.Approved = false
	if err := rc.applyReview(other); err == nil {
		t.Fatal("conflicting second decision accepted")
	}
	if !rc.Review().Approved {
		t.Fatal("original decision overwritten")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	rc := NewRunContext("run_snap", "trivia arena in india")
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := rc.setState(StatePlanning, "run started", now); err != nil {
		t.Fatal(err)
	}
	rc.setPlan(&plan.ResearchPlan{
		Objective:     "assess",
		PrimaryEntity: "trivia arena",
		Regions:       []string{"india"},
		Dimensions:    []plan.Dimension{plan.DimensionMarket},
		CreatedAt:     now,
		CreatedBy:     "test",
	})
	if err := rc.setState(StateResearch, "plan accepted", now); err != nil {
		t.Fatal(err)
	}
	rc.beginResearchPass()
	res, err := research.ToolResult{
		Tool:       "market_intel",
		Dimension:  plan.DimensionMarket,
		Status:     research.StatusSuccess,
		Finding:    "growth",
		Source:     "sim://m",
		Confidence: 0.9,
	}.Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	rc.appendEvidence([]research.ToolResult{res})

	b, err := rc.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	got, err := RestoreContext(b)
	if err != nil {
		t.Fatalf("RestoreContext: %v", err)
	}
	if got.RunID() != "run_snap" || got.State() != StateResearch || got.Attempts() != 1 {
		t.Fatalf("restored context = %s/%s/%d", got.RunID(), got.State(), got.Attempts())
	}
	if got.Plan() == nil || got.Plan().PrimaryEntity != "trivia arena" {
		t.Fatal("plan lost in round trip")
	}
	evidence := got.Evidence()
	if len(evidence) != 1 || evidence[0].EvidenceID != res.EvidenceID {
		t.Fatalf("evidence lost in round trip: %+v", evidence)
	}
	if len(got.Events()) != 2 {
		t.Fatalf("events lost in round trip: %+v", got.Events())
	}
}

func TestRestoreContextRejectsGarbage(t *testing.T) {
	if _, err := RestoreContext([]byte("not msgpack")); err == nil {
		t.Fatal("garbage snapshot accepted")
	}
}

func TestEvidenceViewsAreCopies(t *testing.T) {
	rc := NewRunContext("", "x")
	res, err := research.ToolResult{
		Tool: "t", Dimension: plan.DimensionMarket,
		Status: research.StatusSuccess, Finding: "f", Source: "s", Confidence: 0.9,
	}.Canonicalize()
	if err != nil {
		t.Fatal(err)
	}
	rc.appendEvidence([]research.ToolResult{res})
	view := rc.Evidence()
	view[0].Finding = "mutated"
	if rc.Evidence()[0].Finding != "f" {
		t.Fatal("caller mutation leaked into the context")
	}
}
