package runstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSnapshotEmptyDir(t *testing.T) {
	snap, err := LoadSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Phase != PhaseUnknown {
		t.Fatalf("phase = %s, want unknown", snap.Phase)
	}
	if _, err := LoadSnapshot("  "); err == nil {
		t.Fatal("blank state dir accepted")
	}
}

func TestLoadSnapshotFinalIsAuthoritative(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir)
	if err != nil {
		t.Fatal(err)
	}
	// A stale live event must not override the terminal outcome.
	if err := rec.Emit(Event{Event: "transition", RunID: "run_a", State: "research"}); err != nil {
		t.Fatal(err)
	}
	fo := &FinalOutcome{
		Timestamp:  time.Now().UTC(),
		Status:     FinalFailed,
		RunID:      "run_a",
		Diagnostic: "research budget exhausted after 3 passes",
	}
	if err := fo.Save(filepath.Join(dir, "final.json")); err != nil {
		t.Fatal(err)
	}

	snap, err := LoadSnapshot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != PhaseFailed {
		t.Fatalf("phase = %s, want failed", snap.Phase)
	}
	if snap.Diagnostic != "research budget exhausted after 3 passes" {
		t.Fatalf("diagnostic = %q", snap.Diagnostic)
	}
}

func TestLoadSnapshotLiveFeed(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Emit(Event{Event: "transition", RunID: "run_b", State: "planning"}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Emit(Event{Event: "transition", RunID: "run_b", State: "research", Detail: "plan accepted"}); err != nil {
		t.Fatal(err)
	}

	snap, err := LoadSnapshot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != PhaseRunning {
		t.Fatalf("phase = %s, want running", snap.Phase)
	}
	if snap.State != "research" || snap.RunID != "run_b" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.LastEventAt.IsZero() {
		t.Fatal("event timestamp lost")
	}
}

func TestLoadSnapshotProgressFallback(t *testing.T) {
	dir := t.TempDir()
	lines := `{"ts":"2026-08-01T00:00:00Z","event":"transition","run_id":"run_c","state":"planning"}
{"ts":"2026-08-01T00:00:01Z","event":"transition","run_id":"run_c","state":"validation"}
`
	if err := os.WriteFile(filepath.Join(dir, "progress.ndjson"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := LoadSnapshot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != "validation" || snap.RunID != "run_c" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestLoadSnapshotSuspended(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Emit(Event{Event: "run_suspended", RunID: "run_d", State: "human_review"}); err != nil {
		t.Fatal(err)
	}
	if err := SaveSuspended(dir, []byte("snapshot-bytes")); err != nil {
		t.Fatal(err)
	}

	snap, err := LoadSnapshot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != PhaseSuspended {
		t.Fatalf("phase = %s, want suspended", snap.Phase)
	}

	b, err := LoadSuspended(dir)
	if err != nil || string(b) != "snapshot-bytes" {
		t.Fatalf("LoadSuspended = %q, %v", b, err)
	}
	if err := ClearSuspended(dir); err != nil {
		t.Fatal(err)
	}
	if HasSuspended(dir) {
		t.Fatal("suspension survived clear")
	}
	// Clearing twice is fine.
	if err := ClearSuspended(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSuspended(dir); err == nil {
		t.Fatal("missing suspension loaded")
	}
}
