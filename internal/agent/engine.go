package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mrdgen/internal/generator"
	"mrdgen/internal/mrd"
	"mrdgen/internal/plan"
	"mrdgen/internal/research"
	"mrdgen/internal/runstate"
	"mrdgen/internal/validation"
)

// Failure categories. Every FAILED run carries exactly one.
const (
	FailureGeneration = "generation" // backend error during planning or synthesis
	FailureSchema     = "schema"     // generator output rejected by a schema gate
	FailureValidation = "validation" // unrecoverable evidence or exhausted research budget
	FailureReview     = "review"     // human gate rejected or timed out
	FailureAborted    = "aborted"    // caller cancelled the run
	FailureInternal   = "internal"   // engine bug surfaced as a panic
)

// Result is what a finished run hands back, mirrored on disk by final.json.
// A suspended result is not terminal: the run is parked at a HUMAN_REVIEW
// gate awaiting Resume, and no final outcome is written for it.
type Result struct {
	RunID     string
	Status    runstate.FinalStatus
	Suspended bool
	Document  *mrd.Document

	FailedState     State
	FailureCategory string
	Diagnostic      string

	Attempts int
	Events   []EventLogEntry
}

// Engine drives one run through the state machine. It owns the context; the
// generator and reviewer only ever see copies or raw bytes.
type Engine struct {
	Config    Config
	Generator generator.Generator
	Tools     *research.Registry
	Reviewer  Reviewer

	// Now supplies timestamps; defaults to time.Now. Tests pin it.
	Now func() time.Time

	recorder *runstate.Recorder
}

// NewEngine wires an engine with the built-in simulated backends for
// anything the caller leaves nil.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		Config:    cfg,
		Generator: &generator.Simulated{},
		Tools:     research.DefaultRegistry(),
		Reviewer:  &AutoApproveReviewer{},
	}
	if cfg.StateDir != "" {
		rec, err := runstate.NewRecorder(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		e.recorder = rec
	}
	return e, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Run executes a full run from a free-text intent. It always returns a
// Result for a run that reached a terminal state; the error is non-nil only
// when the run could not be conducted at all.
func (e *Engine) Run(ctx context.Context, runID, intent string) (*Result, error) {
	if e.Generator == nil || e.Tools == nil || e.Reviewer == nil {
		return nil, fmt.Errorf("engine is missing a generator, tool registry, or reviewer")
	}
	rc := NewRunContext(runID, intent)
	return e.drive(ctx, rc)
}

// Resume continues a run suspended at a HUMAN_REVIEW gate. Applying the same
// decision twice is a no-op; a conflicting second decision is an error.
func (e *Engine) Resume(ctx context.Context, snapshot []byte, decision ReviewDecision) (*Result, error) {
	rc, err := RestoreContext(snapshot)
	if err != nil {
		return nil, err
	}
	if rc.State() != StateHumanReview {
		return nil, fmt.Errorf("resume: run %s is in %s, not %s", rc.RunID(), rc.State(), StateHumanReview)
	}
	if err := rc.applyReview(decision); err != nil {
		return nil, fmt.Errorf("resume run %s: %w", rc.RunID(), err)
	}
	e.applyDecision(rc, *rc.Review())
	if e.Config.StateDir != "" {
		_ = runstate.ClearSuspended(e.Config.StateDir)
	}
	return e.drive(ctx, rc)
}

// drive loops the state machine until a terminal state, then persists the
// outcome. A panic anywhere in a step fails the run instead of crashing the
// process.
func (e *Engine) drive(ctx context.Context, rc *RunContext) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(rc, FailureInternal, fmt.Sprintf("panic: %v", r))
			result = e.finish(rc)
		}
	}()

	for !rc.State().Terminal() {
		if ctx.Err() != nil {
			e.fail(rc, FailureAborted, "run aborted")
			break
		}
		switch rc.State() {
		case StateStart:
			e.transition(rc, StatePlanning, "run started")
		case StatePlanning:
			e.stepPlanning(ctx, rc)
		case StateResearch:
			e.stepResearch(ctx, rc)
		case StateValidation:
			e.stepValidation(rc)
		case StateHumanReview:
			if suspended := e.stepHumanReview(ctx, rc); suspended {
				e.emit(rc, "run_suspended", "awaiting review decision")
				return &Result{
					RunID:     rc.RunID(),
					Suspended: true,
					Attempts:  rc.Attempts(),
					Events:    rc.Events(),
				}, nil
			}
		case StateSynthesis:
			e.stepSynthesis(ctx, rc)
		default:
			panic(fmt.Sprintf("unhandled state %q", rc.State()))
		}
	}
	return e.finish(rc), nil
}

func (e *Engine) stepPlanning(ctx context.Context, rc *RunContext) {
	raw, err := e.Generator.Plan(ctx, rc.Intent())
	if err != nil {
		e.fail(rc, FailureGeneration, fmt.Sprintf("planning backend: %v", err))
		return
	}
	p, err := plan.DecodeJSON(raw)
	if err != nil {
		e.fail(rc, FailureSchema, fmt.Sprintf("plan rejected: %v", err))
		return
	}
	rc.setPlan(p)
	e.transition(rc, StateResearch, "plan accepted")
}

func (e *Engine) stepResearch(ctx context.Context, rc *RunContext) {
	dims := rc.Plan().Dimensions
	if rep := rc.LatestReport(); rep != nil {
		// Repeat passes re-research only what the last report left
		// uncovered; covered evidence is kept, not recollected.
		if uncovered := rep.UncoveredDimensions(); len(uncovered) > 0 {
			dims = uncovered
		}
	}
	rc.beginResearchPass()
	results, err := research.Dispatch(ctx, e.Tools, rc.Plan(), dims)
	if err != nil {
		if ctx.Err() != nil {
			e.fail(rc, FailureAborted, "run aborted")
			return
		}
		e.fail(rc, FailureInternal, fmt.Sprintf("research dispatch: %v", err))
		return
	}
	rc.appendEvidence(results)
	e.transition(rc, StateValidation, fmt.Sprintf("research pass %d complete", rc.Attempts()))
}

func (e *Engine) stepValidation(rc *RunContext) {
	rep := validation.Evaluate(rc.Plan(), rc.Evidence(), e.Config.GatePolicy())
	rep.EvaluatedAt = e.now()
	rc.appendReport(rep)

	switch rep.Verdict {
	case validation.VerdictSufficient:
		e.transition(rc, StateSynthesis, "evidence sufficient")
	case validation.VerdictHighRisk:
		e.transition(rc, StateHumanReview, "high-risk evidence escalated")
	case validation.VerdictUnrecoverable:
		e.fail(rc, FailureValidation, rep.Rationale)
	case validation.VerdictInsufficient:
		if rc.Attempts() >= e.Config.MaxResearchAttempts {
			e.fail(rc, FailureValidation, fmt.Sprintf("research budget exhausted after %d passes: %s", rc.Attempts(), rep.Rationale))
			return
		}
		e.transition(rc, StateResearch, fmt.Sprintf("insufficient evidence, retry %d of %d", rc.Attempts()+1, e.Config.MaxResearchAttempts))
	default:
		panic(fmt.Sprintf("unhandled verdict %q", rep.Verdict))
	}
}

// stepHumanReview runs the gate. It returns true when the decision is
// deferred out of process and the run should stay suspended.
func (e *Engine) stepHumanReview(ctx context.Context, rc *RunContext) bool {
	// Suspend first: if the process dies while the gate blocks, the run can
	// be resumed from the snapshot.
	if e.Config.StateDir != "" {
		if snap, err := rc.Snapshot(); err == nil {
			_ = runstate.SaveSuspended(e.Config.StateDir, snap)
		}
	}

	rep := rc.LatestReport()
	if rep == nil {
		panic("human review entered without a validation report")
	}
	req := ReviewRequest{
		RunID:    rc.RunID(),
		Intent:   rc.Intent(),
		Report:   *rep,
		Attempts: rc.Attempts(),
	}

	rctx := ctx
	if timeout := e.Config.ReviewTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	decision, err := e.Reviewer.Review(rctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrReviewPending):
			return true
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			e.fail(rc, FailureReview, "review timed out")
		case ctx.Err() != nil:
			e.fail(rc, FailureAborted, "run aborted")
		default:
			e.fail(rc, FailureReview, fmt.Sprintf("reviewer: %v", err))
		}
		return false
	}
	if err := rc.applyReview(decision); err != nil {
		e.fail(rc, FailureReview, err.Error())
		return false
	}
	e.applyDecision(rc, *rc.Review())
	if e.Config.StateDir != "" && rc.State() != StateHumanReview {
		_ = runstate.ClearSuspended(e.Config.StateDir)
	}
	return false
}

// applyDecision moves a run out of HUMAN_REVIEW according to a recorded
// decision.
func (e *Engine) applyDecision(rc *RunContext, d ReviewDecision) {
	if d.Approved {
		e.transition(rc, StateSynthesis, fmt.Sprintf("review approved by %s", d.Reviewer))
		return
	}
	e.fail(rc, FailureReview, fmt.Sprintf("review rejected by %s: %s", d.Reviewer, d.Notes))
}

func (e *Engine) stepSynthesis(ctx context.Context, rc *RunContext) {
	raw, err := e.Generator.Synthesize(ctx, generator.SynthesisInput{
		Intent:   rc.Intent(),
		Plan:     rc.Plan(),
		Evidence: rc.Evidence(),
		Reports:  rc.Reports(),
	})
	if err != nil {
		e.fail(rc, FailureGeneration, fmt.Sprintf("synthesis backend: %v", err))
		return
	}
	doc, err := mrd.DecodeJSON(raw)
	if err != nil {
		e.fail(rc, FailureSchema, fmt.Sprintf("document rejected: %v", err))
		return
	}
	if err := doc.ResolveProvenance(rc.EvidenceIDs()); err != nil {
		e.fail(rc, FailureSchema, fmt.Sprintf("document rejected: %v", err))
		return
	}
	rc.setDocument(doc)
	e.transition(rc, StateCompleted, "document accepted")
}

// transition performs one audited state change and emits it to the progress
// feed. An illegal transition is an engine bug; panic and let drive's
// recover turn it into a FAILED run.
func (e *Engine) transition(rc *RunContext, to State, trigger string) {
	if err := rc.setState(to, trigger, e.now()); err != nil {
		panic(err.Error())
	}
	e.emit(rc, "transition", trigger)
}

// fail records the failure and transitions to FAILED from wherever the run
// is. FAILED is reachable from every non-terminal state, so setState cannot
// reject this.
func (e *Engine) fail(rc *RunContext, category, diagnostic string) {
	if rc.State().Terminal() {
		return
	}
	rc.setFailure(category, diagnostic)
	if err := rc.setState(StateFailed, diagnostic, e.now()); err != nil {
		panic(err.Error())
	}
	e.emit(rc, "run_failed", diagnostic)
}

func (e *Engine) emit(rc *RunContext, event, detail string) {
	if e.recorder == nil {
		return
	}
	_ = e.recorder.Emit(runstate.Event{
		TS:     e.now(),
		Event:  event,
		RunID:  rc.RunID(),
		State:  string(rc.State()),
		Detail: detail,
	})
}

// finish builds the Result and persists final.json plus, on success, the
// document itself.
func (e *Engine) finish(rc *RunContext) *Result {
	res := &Result{
		RunID:    rc.RunID(),
		Document: rc.Document(),
		Attempts: rc.Attempts(),
		Events:   rc.Events(),
	}
	if rc.State() == StateCompleted {
		res.Status = runstate.FinalCompleted
		e.emit(rc, "run_completed", "")
	} else {
		res.Status = runstate.FinalFailed
		res.FailureCategory = rc.FailureCategory()
		res.Diagnostic = rc.FailureDiagnostic()
		events := rc.Events()
		if len(events) > 0 {
			res.FailedState = events[len(events)-1].From
		}
	}

	if e.Config.StateDir != "" {
		e.persistOutcome(rc, res)
	}
	return res
}

func (e *Engine) persistOutcome(rc *RunContext, res *Result) {
	trail := make([]string, 0, len(res.Events))
	for _, ev := range res.Events {
		trail = append(trail, fmt.Sprintf("%s %s -> %s (%s)", ev.Timestamp.Format(time.RFC3339), ev.From, ev.To, ev.Trigger))
	}
	fo := &runstate.FinalOutcome{
		Timestamp:        e.now(),
		Status:           res.Status,
		RunID:            res.RunID,
		FailedState:      string(res.FailedState),
		FailureCategory:  res.FailureCategory,
		Diagnostic:       res.Diagnostic,
		ResearchAttempts: res.Attempts,
		Events:           trail,
	}
	_ = fo.Save(filepath.Join(e.Config.StateDir, "final.json"))

	if res.Status == runstate.FinalCompleted && res.Document != nil {
		if b, err := json.MarshalIndent(res.Document, "", "  "); err == nil {
			_ = os.WriteFile(filepath.Join(e.Config.StateDir, "mrd.json"), b, 0o644)
		}
	}
}
