package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"mrdgen/internal/validation"
)

// ReviewRequest is what a reviewer sees at a HUMAN_REVIEW gate: the run, the
// report that triggered escalation, and how many research passes produced
// it.
type ReviewRequest struct {
	RunID    string
	Intent   string
	Report   validation.Report
	Attempts int
}

// Reviewer blocks until a human (or a stand-in) decides whether high-risk
// evidence may proceed to synthesis. The engine bounds the wait with the
// configured review timeout; reviewers must honor ctx cancellation.
//
// A reviewer that cannot decide in-process returns ErrReviewPending: the
// engine then leaves the suspension snapshot in place and hands the run back
// instead of failing it.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (ReviewDecision, error)
}

// ErrReviewPending signals that the review decision will arrive out of
// process, via Resume.
var ErrReviewPending = errors.New("review decision pending")

// PendingReviewer always defers: every escalation suspends the run for an
// out-of-process decision.
type PendingReviewer struct{}

func (PendingReviewer) Review(ctx context.Context, req ReviewRequest) (ReviewDecision, error) {
	return ReviewDecision{}, ErrReviewPending
}

// NewDecisionID mints an identifier for a review decision.
func NewDecisionID() string {
	return "dec_" + strings.ToLower(ulid.Make().String())
}

// AutoApproveReviewer approves every request. Useful for unattended runs and
// tests; the decision is still recorded in the audit trail.
type AutoApproveReviewer struct {
	Name string
}

func (r *AutoApproveReviewer) Review(ctx context.Context, req ReviewRequest) (ReviewDecision, error) {
	if err := ctx.Err(); err != nil {
		return ReviewDecision{}, err
	}
	name := r.Name
	if name == "" {
		name = "auto-approve"
	}
	return ReviewDecision{
		Approved:   true,
		Reviewer:   name,
		Notes:      "approved automatically",
		DecisionID: NewDecisionID(),
		DecidedAt:  time.Now().UTC(),
	}, nil
}

// StaticReviewer returns a fixed decision. Tests use it to script both
// branches of the gate.
type StaticReviewer struct {
	Decision ReviewDecision
	Err      error
}

func (r *StaticReviewer) Review(ctx context.Context, req ReviewRequest) (ReviewDecision, error) {
	if err := ctx.Err(); err != nil {
		return ReviewDecision{}, err
	}
	if r.Err != nil {
		return ReviewDecision{}, r.Err
	}
	d := r.Decision
	if d.DecisionID == "" {
		d.DecisionID = NewDecisionID()
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	return d, nil
}
