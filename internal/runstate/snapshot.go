package runstate

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunPhase classifies what the state directory says about a run.
type RunPhase string

const (
	PhaseUnknown   RunPhase = "unknown"
	PhaseRunning   RunPhase = "running"
	PhaseSuspended RunPhase = "suspended"
	PhaseCompleted RunPhase = "completed"
	PhaseFailed    RunPhase = "failed"
)

// Snapshot is a compact view of one run's state directory.
type Snapshot struct {
	StateDir string
	Phase    RunPhase

	RunID       string
	State       string
	LastEvent   string
	LastEventAt time.Time
	Diagnostic  string
}

// LoadSnapshot reads the run artifacts in stateDir. A terminal final.json is
// authoritative; live.json and progress.ndjson are best-effort activity
// feeds and never override a terminal outcome.
func LoadSnapshot(stateDir string) (*Snapshot, error) {
	dir := strings.TrimSpace(stateDir)
	if dir == "" {
		return nil, fmt.Errorf("state dir is required")
	}

	s := &Snapshot{StateDir: dir, Phase: PhaseUnknown}

	if err := applyFinalOutcome(s); err != nil {
		return nil, err
	}
	terminal := s.Phase == PhaseCompleted || s.Phase == PhaseFailed

	if !terminal {
		if err := applyLiveOrProgress(s); err != nil {
			return nil, err
		}
		if HasSuspended(dir) {
			s.Phase = PhaseSuspended
		} else if s.LastEvent != "" {
			s.Phase = PhaseRunning
		}
	}

	return s, nil
}

func applyFinalOutcome(s *Snapshot) error {
	path := filepath.Join(s.StateDir, "final.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var doc FinalOutcome
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	if rid := strings.TrimSpace(doc.RunID); rid != "" {
		s.RunID = rid
	}
	switch doc.Status {
	case FinalCompleted:
		s.Phase = PhaseCompleted
		s.State = "completed"
	case FinalFailed:
		s.Phase = PhaseFailed
		s.State = "failed"
		s.Diagnostic = strings.TrimSpace(doc.Diagnostic)
	}
	return nil
}

func applyLiveOrProgress(s *Snapshot) error {
	ev, found, err := readLiveEvent(filepath.Join(s.StateDir, "live.json"))
	if err != nil {
		return err
	}
	if !found {
		ev, found, err = readLastProgressEvent(filepath.Join(s.StateDir, "progress.ndjson"))
		if err != nil {
			return err
		}
	}
	if !found {
		return nil
	}

	if s.RunID == "" {
		s.RunID = ev.RunID
	}
	s.LastEvent = ev.Event
	s.State = ev.State
	s.LastEventAt = ev.TS
	if ev.Detail != "" {
		s.Diagnostic = ev.Detail
	}
	return nil
}

func readLiveEvent(path string) (Event, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Event{}, false, nil
		}
		return Event{}, false, err
	}
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return ev, true, nil
}

func readLastProgressEvent(path string) (Event, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Event{}, false, nil
		}
		return Event{}, false, err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	last := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return Event{}, false, err
	}
	if last == "" {
		return Event{}, false, nil
	}

	var ev Event
	if err := json.Unmarshal([]byte(last), &ev); err != nil {
		return Event{}, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return ev, true, nil
}
