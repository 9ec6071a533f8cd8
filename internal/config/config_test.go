package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromStringAppliesDefaultsAndParses(t *testing.T) {
	cfg, err := LoadFromString(`
http_addr: ":9999"
min_rounds: 4
max_rounds: 8
`)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 4, cfg.MinRounds)
	assert.Equal(t, 8, cfg.MaxRounds)
	// untouched fields keep Default()'s values
	assert.Equal(t, Default().RotationStrategy, cfg.RotationStrategy)
	assert.Equal(t, 2, cfg.DebaterCount)
}

func TestValidateRejectsBadRoundBounds(t *testing.T) {
	cfg := Default()
	cfg.MinRounds = 5
	cfg.MaxRounds = 3
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownRotationStrategy(t *testing.T) {
	cfg := Default()
	cfg.RotationStrategy = "NOT_A_STRATEGY"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBreakerTripRateOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.BreakerTripRate = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMisweightedStrengthWeights(t *testing.T) {
	cfg := Default()
	cfg.StrengthWeightStructure = 0.9
	cfg.StrengthWeightEvidence = 0.9
	cfg.StrengthWeightLogic = 0.9
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnparseableDuration(t *testing.T) {
	cfg := Default()
	cfg.TurnDeadline = "not-a-duration"
	assert.Error(t, cfg.Validate())
}

func TestToDebateConfigRoundTripsDurations(t *testing.T) {
	cfg := Default()
	dc := cfg.ToDebateConfig()
	assert.Equal(t, cfg.DebaterCount, dc.DebaterCount)
	assert.Equal(t, cfg.MinRounds, dc.MinRounds)
	assert.Equal(t, cfg.StrengthWeightStructure, dc.StrengthWeights.Structure)
	assert.Equal(t, cfg.TurnDeadline, dc.TurnDeadline.String())
	assert.Equal(t, cfg.SessionBudget, dc.SessionBudget.String())
	assert.Equal(t, cfg.BreakerCooldown, dc.BreakerCooldown.String())
}

func TestLoadRejectsMissingPath(t *testing.T) {
	l := NewLoader("")
	_, err := l.Load()
	assert.Error(t, err)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := t.TempDir() + "/nested/debateforge.yaml"
	l := NewLoader(path)

	cfg := Default()
	cfg.DebaterCount = 4
	require.NoError(t, l.Save(cfg))

	reloaded, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.DebaterCount)
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	l := NewLoader(t.TempDir() + "/debateforge.yaml")
	cfg := Default()
	cfg.MaxRounds = 0
	cfg.MinRounds = 1
	assert.Error(t, l.Save(cfg))
}

func TestLoadReadsFromDisk(t *testing.T) {
	path := t.TempDir() + "/debateforge.yaml"
	require.NoError(t, os.WriteFile(path, []byte("debater_count: 3\nmin_rounds: 2\nmax_rounds: 4\n"), 0o644))
	l := NewLoader(path)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DebaterCount)
}
