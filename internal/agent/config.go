package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"mrdgen/internal/plan"
	"mrdgen/internal/validation"
)

// Config is the engine's tuning surface. Decoding is strict: an unknown key
// in a config file fails the load rather than being silently ignored.
type Config struct {
	// MaxResearchAttempts bounds how many RESEARCH passes a run may make,
	// counting the first.
	MaxResearchAttempts int `yaml:"max_research_attempts" json:"max_research_attempts"`

	// DimensionConfidence is the default minimum confidence for a success
	// result to cover its dimension.
	DimensionConfidence float64 `yaml:"dimension_confidence" json:"dimension_confidence"`

	// DimensionConfidenceOverrides raises or lowers the bar per dimension.
	DimensionConfidenceOverrides map[string]float64 `yaml:"dimension_confidence_overrides,omitempty" json:"dimension_confidence_overrides,omitempty"`

	// SufficiencyConfidence is the aggregate bar for a sufficient verdict.
	SufficiencyConfidence float64 `yaml:"sufficiency_confidence" json:"sufficiency_confidence"`

	// UnrecoverableFloor: an aggregate below this fails the run outright.
	UnrecoverableFloor float64 `yaml:"unrecoverable_floor" json:"unrecoverable_floor"`

	// ReviewTimeoutMS bounds how long a HUMAN_REVIEW gate blocks. Nil means
	// wait indefinitely; zero is rejected.
	ReviewTimeoutMS *int `yaml:"review_timeout_ms,omitempty" json:"review_timeout_ms,omitempty"`

	// TrustedSources holds glob patterns for credible evidence sources.
	// Empty means any non-empty source is credible.
	TrustedSources []string `yaml:"trusted_sources,omitempty" json:"trusted_sources,omitempty"`

	// StateDir is where run-state files land. Empty disables persistence.
	StateDir string `yaml:"state_dir,omitempty" json:"state_dir,omitempty"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxResearchAttempts:   3,
		DimensionConfidence:   0.6,
		SufficiencyConfidence: 0.65,
		UnrecoverableFloor:    0.2,
	}
}

// LoadConfig reads a YAML or JSON config file, strict in both cases, and
// overlays it on the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configs that would put the engine in a nonsensical
// regime, like a floor above the sufficiency bar.
func (c Config) Validate() error {
	if c.MaxResearchAttempts < 1 {
		return fmt.Errorf("max_research_attempts must be >= 1, got %d", c.MaxResearchAttempts)
	}
	if c.DimensionConfidence < 0 || c.DimensionConfidence > 1 {
		return fmt.Errorf("dimension_confidence out of range [0,1]: %v", c.DimensionConfidence)
	}
	if c.SufficiencyConfidence < 0 || c.SufficiencyConfidence > 1 {
		return fmt.Errorf("sufficiency_confidence out of range [0,1]: %v", c.SufficiencyConfidence)
	}
	if c.UnrecoverableFloor < 0 || c.UnrecoverableFloor > 1 {
		return fmt.Errorf("unrecoverable_floor out of range [0,1]: %v", c.UnrecoverableFloor)
	}
	if c.UnrecoverableFloor > c.SufficiencyConfidence {
		return fmt.Errorf("unrecoverable_floor %v exceeds sufficiency_confidence %v", c.UnrecoverableFloor, c.SufficiencyConfidence)
	}
	for name, v := range c.DimensionConfidenceOverrides {
		if _, err := plan.ParseDimension(name); err != nil {
			return fmt.Errorf("dimension_confidence_overrides: %w", err)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("dimension_confidence_overrides[%s] out of range [0,1]: %v", name, v)
		}
	}
	if c.ReviewTimeoutMS != nil && *c.ReviewTimeoutMS <= 0 {
		return fmt.Errorf("review_timeout_ms must be positive when set, got %d", *c.ReviewTimeoutMS)
	}
	for _, pattern := range c.TrustedSources {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("trusted_sources: invalid glob pattern %q", pattern)
		}
	}
	return nil
}

// GatePolicy projects the config onto the validation gate's input.
func (c Config) GatePolicy() validation.Policy {
	overrides := map[plan.Dimension]float64{}
	for name, v := range c.DimensionConfidenceOverrides {
		d, err := plan.ParseDimension(name)
		if err != nil {
			continue // rejected at Validate
		}
		overrides[d] = v
	}
	return validation.Policy{
		DimensionConfidence:        overrides,
		DefaultDimensionConfidence: c.DimensionConfidence,
		SufficiencyConfidence:      c.SufficiencyConfidence,
		UnrecoverableFloor:         c.UnrecoverableFloor,
		TrustedSources:             append([]string{}, c.TrustedSources...),
	}
}

// ReviewTimeout returns the review gate timeout, or zero when unbounded.
func (c Config) ReviewTimeout() time.Duration {
	if c.ReviewTimeoutMS == nil {
		return 0
	}
	return time.Duration(*c.ReviewTimeoutMS) * time.Millisecond
}
