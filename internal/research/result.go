package research

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"mrdgen/internal/plan"
)

// ToolStatus is the closed tagged variant for a lookup outcome. Remote
// failures are data, never errors; the validation gate pattern-matches
// exhaustively over these three values.
type ToolStatus string

const (
	StatusSuccess ToolStatus = "success"
	StatusEmpty   ToolStatus = "empty"
	StatusFailed  ToolStatus = "failed"
)

func ParseToolStatus(s string) (ToolStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "ok":
		return StatusSuccess, nil
	case "empty":
		return StatusEmpty, nil
	case "failed", "fail", "error":
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("invalid tool status: %q", s)
	}
}

func (s ToolStatus) Valid() bool {
	_, err := ParseToolStatus(string(s))
	return err == nil
}

// ToolResult is one piece of research evidence. Once appended to a run
// context it is immutable; repeated research passes append new results
// rather than replacing prior ones.
type ToolResult struct {
	// EvidenceID is a content-derived identifier; synthesis provenance
	// references must resolve to one of these.
	EvidenceID string         `json:"evidence_id" msgpack:"evidence_id"`
	Tool       string         `json:"tool" msgpack:"tool"`
	Dimension  plan.Dimension `json:"dimension" msgpack:"dimension"`
	Status     ToolStatus     `json:"status" msgpack:"status"`

	// Data is present only when Status is success.
	Data map[string]any `json:"data,omitempty" msgpack:"data"`

	// Finding is a normalized one-line claim used for deterministic
	// conflict detection between results covering the same dimension.
	Finding string `json:"finding,omitempty" msgpack:"finding"`

	// Ambiguous marks a legally/regulatorily ambiguous result. The gate
	// escalates any ambiguous dimension to high_risk.
	Ambiguous bool `json:"ambiguous,omitempty" msgpack:"ambiguous"`

	ErrorMessage string    `json:"error_message,omitempty" msgpack:"error_message"`
	Source       string    `json:"source,omitempty" msgpack:"source"`
	CollectedAt  time.Time `json:"collected_at" msgpack:"collected_at"`

	// Confidence is meaningful only when Status is success.
	Confidence float64 `json:"confidence" msgpack:"confidence"`
}

// Canonicalize enforces the variant invariants: failed/empty results carry
// no payload and no confidence, success confidence stays in [0,1], and the
// evidence ID is derived from content when absent.
func (r ToolResult) Canonicalize() (ToolResult, error) {
	st, err := ParseToolStatus(string(r.Status))
	if err != nil {
		return ToolResult{}, err
	}
	r.Status = st
	if strings.TrimSpace(r.Tool) == "" {
		return ToolResult{}, fmt.Errorf("tool result missing tool name")
	}
	if !r.Dimension.Valid() {
		return ToolResult{}, fmt.Errorf("tool result has invalid dimension %q", r.Dimension)
	}
	if st != StatusSuccess {
		r.Data = nil
		r.Finding = ""
		r.Confidence = 0
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return ToolResult{}, fmt.Errorf("tool result confidence out of range [0,1]: %v", r.Confidence)
	}
	if strings.TrimSpace(r.EvidenceID) == "" {
		r.EvidenceID = evidenceID(r)
	}
	return r, nil
}

func (r ToolResult) Validate() error {
	_, err := r.Canonicalize()
	return err
}

// evidenceID derives a stable content address for a result. Timestamps are
// excluded so re-running identical research yields identical provenance.
func evidenceID(r ToolResult) string {
	h := blake3.New()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.WriteString(p)
			_, _ = h.WriteString("\x00")
		}
	}
	write(r.Tool, string(r.Dimension), string(r.Status), r.Finding, r.Source)
	if len(r.Data) > 0 {
		keys := make([]string, 0, len(r.Data))
		for k := range r.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b, err := json.Marshal(r.Data[k])
			if err != nil {
				b = []byte(fmt.Sprint(r.Data[k]))
			}
			write(k, string(b))
		}
	}
	sum := h.Sum(nil)
	return "ev_" + hex.EncodeToString(sum[:8])
}

// FindingSignature hashes the normalized finding for conflict detection.
// Two success results for the same dimension with differing non-empty
// signatures disagree with each other.
func (r ToolResult) FindingSignature() string {
	f := strings.ToLower(strings.Join(strings.Fields(r.Finding), " "))
	if f == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(f))
	return hex.EncodeToString(sum[:8])
}
