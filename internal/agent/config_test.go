package agent

import (
	"os"
	"path/filepath"
	"testing"

	"mrdgen/internal/plan"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.MaxResearchAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.MaxResearchAttempts)
	}
	if cfg.DimensionConfidence != 0.6 || cfg.SufficiencyConfidence != 0.65 {
		t.Fatalf("confidence defaults = %v / %v", cfg.DimensionConfidence, cfg.SufficiencyConfidence)
	}
	if cfg.ReviewTimeout() != 0 {
		t.Fatal("review timeout should default to unbounded")
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "run.yaml", `
max_research_attempts: 5
dimension_confidence: 0.7
dimension_confidence_overrides:
  regulation: 0.9
sufficiency_confidence: 0.8
unrecoverable_floor: 0.3
review_timeout_ms: 1500
trusted_sources:
  - "sim://**"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxResearchAttempts != 5 {
		t.Fatalf("max attempts = %d", cfg.MaxResearchAttempts)
	}
	if cfg.ReviewTimeout().Milliseconds() != 1500 {
		t.Fatalf("review timeout = %v", cfg.ReviewTimeout())
	}

	pol := cfg.GatePolicy()
	if pol.DimensionConfidence[plan.DimensionRegulation] != 0.9 {
		t.Fatalf("override not projected: %+v", pol.DimensionConfidence)
	}
	if len(pol.TrustedSources) != 1 {
		t.Fatalf("trusted sources not projected: %v", pol.TrustedSources)
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "run.yaml", "max_research_attempts: 3\nretry_backoff: 2\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestLoadConfigJSONStrict(t *testing.T) {
	path := writeConfig(t, "run.json", `{"max_research_attempts": 2}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxResearchAttempts != 2 || cfg.SufficiencyConfidence != 0.65 {
		t.Fatalf("overlay broken: %+v", cfg)
	}

	bad := writeConfig(t, "bad.json", `{"max_attempts": 2}`)
	if _, err := LoadConfig(bad); err == nil {
		t.Fatal("unknown JSON key accepted")
	}
}

func TestConfigValidateRejectsBadRegimes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxResearchAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero attempts accepted")
	}

	cfg = DefaultConfig()
	cfg.UnrecoverableFloor = 0.9
	if err := cfg.Validate(); err == nil {
		t.Fatal("floor above sufficiency bar accepted")
	}

	cfg = DefaultConfig()
	cfg.DimensionConfidenceOverrides = map[string]float64{"pricing": 0.5}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown dimension override accepted")
	}

	cfg = DefaultConfig()
	zero := 0
	cfg.ReviewTimeoutMS = &zero
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero review timeout accepted")
	}

	cfg = DefaultConfig()
	cfg.TrustedSources = []string{"[invalid"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid glob accepted")
	}
}
