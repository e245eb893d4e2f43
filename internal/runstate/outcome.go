// Package runstate persists and inspects on-disk run state: the terminal
// outcome, the progress feed, and the suspension snapshot used by the
// HUMAN_REVIEW gate.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type FinalStatus string

const (
	FinalCompleted FinalStatus = "completed"
	FinalFailed    FinalStatus = "failed"
)

// FinalOutcome is the authoritative terminal record of a run, written once
// to final.json. Events carries the transition trail as formatted strings so
// the file stays self-contained.
type FinalOutcome struct {
	Timestamp time.Time   `json:"timestamp"`
	Status    FinalStatus `json:"status"`

	RunID string `json:"run_id"`

	FailedState     string `json:"failed_state,omitempty"`
	FailureCategory string `json:"failure_category,omitempty"`
	Diagnostic      string `json:"diagnostic,omitempty"`

	ResearchAttempts int      `json:"research_attempts"`
	Events           []string `json:"events,omitempty"`
}

func (fo *FinalOutcome) Save(path string) error {
	if fo == nil {
		return fmt.Errorf("final outcome is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(fo, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
