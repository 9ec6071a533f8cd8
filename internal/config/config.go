// Package config loads the runtime configuration for debateforged, grounded
// on the teacher's AIDebateConfigLoader (internal/config/ai_debate_loader.go):
// YAML on disk parsed over the built-in defaults, ${VAR} environment
// substitution, validation before use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// ModelEndpoint describes one entry in the known-models registry loaded
// from YAML.
type ModelEndpoint struct {
	ID       string   `yaml:"id"`
	Provider string   `yaml:"provider"`
	BaseURL  string   `yaml:"base_url"`
	APIKey   string   `yaml:"api_key"`
	Tags     []string `yaml:"tags"`
}

// Config is the top-level file format for debateforged. Durations are
// expressed in the YAML as Go duration strings ("30s", "5m") rather than
// raw milliseconds, matching this module's use of time.Duration end to end
// rather than the teacher's millisecond-integer convention.
type Config struct {
	HTTPAddr    string            `yaml:"http_addr"`
	MetricsAddr string            `yaml:"metrics_addr"`
	LogLevel    string            `yaml:"log_level"`
	Models      []ModelEndpoint   `yaml:"models"`
	Fallbacks   map[string]string `yaml:"fallbacks"` // primary model id -> secondary

	DebaterCount           int    `yaml:"debater_count"`
	MinRounds              int    `yaml:"min_rounds"`
	MaxRounds              int    `yaml:"max_rounds"`
	TurnDeadline           string `yaml:"turn_deadline"`
	SessionBudget          string `yaml:"session_budget"`
	RotationStrategy       string `yaml:"rotation_strategy"`
	MinCallsBeforeRotation int    `yaml:"min_calls_before_rotation"`

	RetryMaxAttempts   int    `yaml:"retry_max_attempts"`
	RetryBaseDelay     string `yaml:"retry_base_delay"`
	RetryCapDelay      string `yaml:"retry_cap_delay"`
	SessionRetryBudget int    `yaml:"session_retry_budget"`

	BreakerWindow      int     `yaml:"breaker_window"`
	BreakerTripRate    float64 `yaml:"breaker_trip_rate"`
	BreakerCooldown    string  `yaml:"breaker_cooldown"`
	BreakerCooldownMax string  `yaml:"breaker_cooldown_max"`

	StrengthWeightStructure float64 `yaml:"strength_weight_structure"`
	StrengthWeightEvidence  float64 `yaml:"strength_weight_evidence"`
	StrengthWeightLogic     float64 `yaml:"strength_weight_logic"`

	TranscriptTokenCeiling int `yaml:"transcript_token_ceiling"`
}

// Default returns the built-in defaults, mirroring debate.DefaultConfig in
// the file-format's units.
func Default() Config {
	d := debate.DefaultConfig()
	return Config{
		HTTPAddr:                ":8080",
		MetricsAddr:             ":9090",
		LogLevel:                "info",
		Models:                  nil,
		Fallbacks:               map[string]string{},
		DebaterCount:            d.DebaterCount,
		MinRounds:               d.MinRounds,
		MaxRounds:               d.MaxRounds,
		TurnDeadline:            d.TurnDeadline.String(),
		SessionBudget:           d.SessionBudget.String(),
		RotationStrategy:        string(d.RotationStrategy),
		MinCallsBeforeRotation:  d.MinCallsBeforeRotation,
		RetryMaxAttempts:        d.RetryMaxAttempts,
		RetryBaseDelay:          d.RetryBaseDelay.String(),
		RetryCapDelay:           d.RetryCapDelay.String(),
		SessionRetryBudget:      d.SessionRetryBudget,
		BreakerWindow:           d.BreakerWindow,
		BreakerTripRate:         d.BreakerTripRate,
		BreakerCooldown:         d.BreakerCooldown.String(),
		BreakerCooldownMax:      d.BreakerCooldownMax.String(),
		StrengthWeightStructure: d.StrengthWeights.Structure,
		StrengthWeightEvidence:  d.StrengthWeights.Evidence,
		StrengthWeightLogic:     d.StrengthWeights.Logic,
		TranscriptTokenCeiling:  d.TranscriptTokenCeiling,
	}
}

// Loader loads and validates Config from a YAML file: defaults first, the
// YAML parsed over them, then env substitution, then validation.
type Loader struct {
	path string
}

// NewLoader constructs a Loader for the file at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and parses the configuration file, first loading any .env file
// in the current working directory into the process environment (godotenv,
// silently skipped if absent) so ${VAR} references in the YAML resolve.
func (l *Loader) Load() (Config, error) {
	_ = godotenv.Load() // best-effort; a missing .env is not an error

	if l.path == "" {
		return Config{}, fmt.Errorf("configuration path is required")
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return LoadFromString(string(data))
}

// LoadFromString parses raw YAML content, useful for tests and for
// embedding a default config without touching the filesystem.
func LoadFromString(yamlContent string) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(yamlContent), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}
	substituteEnvVars(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Reload re-reads the configuration file from disk.
func (l *Loader) Reload() (Config, error) {
	return l.Load()
}

// Save validates cfg and writes it to the loader's path, creating the
// containing directory if needed.
func (l *Loader) Save(cfg Config) error {
	if l.path == "" {
		return fmt.Errorf("configuration path is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create configuration directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	return os.WriteFile(l.path, data, 0o644)
}

func substituteEnvVars(cfg *Config) {
	for i := range cfg.Models {
		cfg.Models[i].APIKey = os.ExpandEnv(cfg.Models[i].APIKey)
		cfg.Models[i].BaseURL = os.ExpandEnv(cfg.Models[i].BaseURL)
	}
}

// Validate rejects out-of-bounds configurations before a single session is
// created.
func (c Config) Validate() error {
	if c.DebaterCount < 2 {
		return fmt.Errorf("debater_count must be >= 2, got %d", c.DebaterCount)
	}
	if c.MinRounds < 1 || c.MaxRounds < c.MinRounds {
		return fmt.Errorf("invalid round bounds: min_rounds=%d max_rounds=%d", c.MinRounds, c.MaxRounds)
	}
	if c.BreakerTripRate <= 0 || c.BreakerTripRate > 1 {
		return fmt.Errorf("breaker_trip_rate must be in (0,1], got %f", c.BreakerTripRate)
	}
	sum := c.StrengthWeightStructure + c.StrengthWeightEvidence + c.StrengthWeightLogic
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("strength weights must sum to 1, got %f", sum)
	}
	if !isKnownRotationStrategy(c.RotationStrategy) {
		return fmt.Errorf("unknown rotation_strategy %q", c.RotationStrategy)
	}
	for name, val := range map[string]string{
		"turn_deadline": c.TurnDeadline, "session_budget": c.SessionBudget,
		"retry_base_delay": c.RetryBaseDelay, "retry_cap_delay": c.RetryCapDelay,
		"breaker_cooldown": c.BreakerCooldown, "breaker_cooldown_max": c.BreakerCooldownMax,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	return nil
}

func isKnownRotationStrategy(s string) bool {
	switch debate.RotationStrategy(s) {
	case debate.RotationFixed, debate.RotationRoundRobin, debate.RotationPerformanceBased,
		debate.RotationAdaptive, debate.RotationBalanced:
		return true
	default:
		return false
	}
}

// ToDebateConfig converts the file-format Config into the runtime
// debate.Config every session is constructed with. Durations are already
// validated to parse cleanly by Validate.
func (c Config) ToDebateConfig() debate.Config {
	dur := func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	return debate.Config{
		DebaterCount:           c.DebaterCount,
		MinRounds:              c.MinRounds,
		MaxRounds:              c.MaxRounds,
		TurnDeadline:           dur(c.TurnDeadline),
		SessionBudget:          dur(c.SessionBudget),
		RotationStrategy:       debate.RotationStrategy(c.RotationStrategy),
		MinCallsBeforeRotation: c.MinCallsBeforeRotation,
		RetryMaxAttempts:       c.RetryMaxAttempts,
		RetryBaseDelay:         dur(c.RetryBaseDelay),
		RetryCapDelay:          dur(c.RetryCapDelay),
		SessionRetryBudget:     c.SessionRetryBudget,
		BreakerWindow:          c.BreakerWindow,
		BreakerTripRate:        c.BreakerTripRate,
		BreakerCooldown:        dur(c.BreakerCooldown),
		BreakerCooldownMax:     dur(c.BreakerCooldownMax),
		StrengthWeights: debate.StrengthWeights{
			Structure: c.StrengthWeightStructure,
			Evidence:  c.StrengthWeightEvidence,
			Logic:     c.StrengthWeightLogic,
		},
		TranscriptTokenCeiling: c.TranscriptTokenCeiling,
	}
}
