package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vmihailenco/msgpack/v5"

	"mrdgen/internal/mrd"
	"mrdgen/internal/plan"
	"mrdgen/internal/research"
	"mrdgen/internal/validation"
)

// NewRunID mints a sortable run identifier.
func NewRunID() string {
	return "run_" + strings.ToLower(ulid.Make().String())
}

// EventLogEntry records one state transition for the audit trail.
type EventLogEntry struct {
	From      State     `json:"from" msgpack:"from"`
	To        State     `json:"to" msgpack:"to"`
	Trigger   string    `json:"trigger" msgpack:"trigger"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// ReviewDecision is the outcome of a HUMAN_REVIEW gate. DecisionID makes
// resume idempotent: applying the same decision twice is a no-op.
type ReviewDecision struct {
	Approved   bool      `json:"approved" msgpack:"approved"`
	Reviewer   string    `json:"reviewer" msgpack:"reviewer"`
	Notes      string    `json:"notes,omitempty" msgpack:"notes"`
	DecisionID string    `json:"decision_id" msgpack:"decision_id"`
	DecidedAt  time.Time `json:"decided_at" msgpack:"decided_at"`
}

// RunContext accumulates everything a run produces. Only the engine mutates
// it; evidence, reports and events are append-only and transitions go
// through setState so the audit trail can never miss one.
type RunContext struct {
	runID    string
	intent   string
	state    State
	attempts int

	plan     *plan.ResearchPlan
	evidence []research.ToolResult
	reports  []validation.Report
	events   []EventLogEntry
	review   *ReviewDecision
	document *mrd.Document

	failureCategory   string
	failureDiagnostic string
}

// NewRunContext starts a context in START with a fresh run ID when none is
// supplied.
func NewRunContext(runID, intent string) *RunContext {
	if runID == "" {
		runID = NewRunID()
	}
	return &RunContext{runID: runID, intent: intent, state: StateStart}
}

func (c *RunContext) RunID() string  { return c.runID }
func (c *RunContext) Intent() string { return c.intent }
func (c *RunContext) State() State   { return c.state }

// Attempts is the number of RESEARCH passes performed so far. The first pass
// counts as 1.
func (c *RunContext) Attempts() int { return c.attempts }

func (c *RunContext) Plan() *plan.ResearchPlan  { return c.plan }
func (c *RunContext) Review() *ReviewDecision   { return c.review }
func (c *RunContext) Document() *mrd.Document   { return c.document }
func (c *RunContext) FailureCategory() string   { return c.failureCategory }
func (c *RunContext) FailureDiagnostic() string { return c.failureDiagnostic }

func (c *RunContext) Evidence() []research.ToolResult {
	return append([]research.ToolResult{}, c.evidence...)
}

func (c *RunContext) Reports() []validation.Report {
	return append([]validation.Report{}, c.reports...)
}

func (c *RunContext) Events() []EventLogEntry {
	return append([]EventLogEntry{}, c.events...)
}

// LatestReport returns the most recent validation report, or nil before the
// first VALIDATION pass.
func (c *RunContext) LatestReport() *validation.Report {
	if len(c.reports) == 0 {
		return nil
	}
	rep := c.reports[len(c.reports)-1]
	return &rep
}

// EvidenceIDs maps every collected evidence ID to presence, for provenance
// resolution.
func (c *RunContext) EvidenceIDs() map[string]bool {
	ids := make(map[string]bool, len(c.evidence))
	for _, res := range c.evidence {
		ids[res.EvidenceID] = true
	}
	return ids
}

// setState performs one audited transition. An illegal transition is a bug
// in the engine and comes back as an error instead of corrupting the trail.
func (c *RunContext) setState(to State, trigger string, at time.Time) error {
	if !CanTransition(c.state, to) {
		return fmt.Errorf("illegal transition %s -> %s (%s)", c.state, to, trigger)
	}
	c.events = append(c.events, EventLogEntry{
		From:      c.state,
		To:        to,
		Trigger:   trigger,
		Timestamp: at,
	})
	c.state = to
	return nil
}

func (c *RunContext) setPlan(p *plan.ResearchPlan) { c.plan = p }

func (c *RunContext) appendEvidence(results []research.ToolResult) {
	c.evidence = append(c.evidence, results...)
}

func (c *RunContext) appendReport(rep validation.Report) {
	c.reports = append(c.reports, rep)
}

func (c *RunContext) beginResearchPass() { c.attempts++ }

func (c *RunContext) setDocument(d *mrd.Document) { c.document = d }

func (c *RunContext) setFailure(category, diagnostic string) {
	c.failureCategory = category
	c.failureDiagnostic = diagnostic
}

// applyReview records a review decision. Re-applying a decision with the
// same DecisionID is a no-op; a different one after the first is rejected.
func (c *RunContext) applyReview(d ReviewDecision) error {
	if c.review != nil {
		if c.review.DecisionID == d.DecisionID {
			return nil
		}
		return fmt.Errorf("review already decided (%s)", c.review.DecisionID)
	}
	c.review = &d
	return nil
}

// snapshot is the serialized form of RunContext. The context keeps its
// fields unexported; this mirror is the only thing that crosses a process
// boundary.
type snapshot struct {
	RunID    string                `msgpack:"run_id"`
	Intent   string                `msgpack:"intent"`
	State    State                 `msgpack:"state"`
	Attempts int                   `msgpack:"attempts"`
	Plan     *plan.ResearchPlan    `msgpack:"plan"`
	Evidence []research.ToolResult `msgpack:"evidence"`
	Reports  []validation.Report   `msgpack:"reports"`
	Events   []EventLogEntry       `msgpack:"events"`
	Review   *ReviewDecision       `msgpack:"review"`
}

// Snapshot serializes the context for suspension at a HUMAN_REVIEW gate.
func (c *RunContext) Snapshot() ([]byte, error) {
	return msgpack.Marshal(&snapshot{
		RunID:    c.runID,
		Intent:   c.intent,
		State:    c.state,
		Attempts: c.attempts,
		Plan:     c.plan,
		Evidence: c.evidence,
		Reports:  c.reports,
		Events:   c.events,
		Review:   c.review,
	})
}

// RestoreContext rebuilds a suspended context from Snapshot output.
func RestoreContext(b []byte) (*RunContext, error) {
	var s snapshot
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("restore run context: %w", err)
	}
	if _, err := ParseState(string(s.State)); err != nil {
		return nil, fmt.Errorf("restore run context: %w", err)
	}
	return &RunContext{
		runID:    s.RunID,
		intent:   s.Intent,
		state:    s.State,
		attempts: s.Attempts,
		plan:     s.Plan,
		evidence: s.Evidence,
		reports:  s.Reports,
		events:   s.Events,
		review:   s.Review,
	}, nil
}
