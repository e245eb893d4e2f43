package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event is one line of the progress feed. The same document is appended to
// progress.ndjson and overwrites live.json, so followers can either tail the
// feed or poll the latest event.
type Event struct {
	TS     time.Time `json:"ts"`
	Event  string    `json:"event"`
	RunID  string    `json:"run_id"`
	State  string    `json:"state"`
	Detail string    `json:"detail,omitempty"`
}

// Recorder writes the progress feed under one run's state directory.
// Emission is best-effort from the engine's point of view, but errors are
// still returned so callers can log them.
type Recorder struct {
	dir string
}

func NewRecorder(dir string) (*Recorder, error) {
	if dir == "" {
		return nil, fmt.Errorf("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{dir: dir}, nil
}

func (r *Recorder) Dir() string { return r.dir }

func (r *Recorder) Emit(ev Event) error {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(r.dir, "progress.ndjson"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.Write(append(line, '\n'))
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return cerr
	}

	return os.WriteFile(filepath.Join(r.dir, "live.json"), line, 0o644)
}

const suspendFile = "suspend.msgpack"

// SaveSuspended persists a context snapshot at a HUMAN_REVIEW gate.
func SaveSuspended(dir string, snapshot []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, suspendFile), snapshot, 0o644)
}

// LoadSuspended reads a persisted context snapshot. A missing file is an
// error: resume without a suspension is a caller mistake.
func LoadSuspended(dir string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(dir, suspendFile))
	if err != nil {
		return nil, fmt.Errorf("load suspended run: %w", err)
	}
	return b, nil
}

// ClearSuspended removes the snapshot after a successful resume.
func ClearSuspended(dir string) error {
	err := os.Remove(filepath.Join(dir, suspendFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HasSuspended reports whether a suspension snapshot exists.
func HasSuspended(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, suspendFile))
	return err == nil
}
