package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasicdigital/debateforge/internal/debate"
)

func TestAnalyzeEmptyContentDegrades(t *testing.T) {
	a := New(debate.DefaultStrengthWeights())
	rec := a.Analyze("")
	assert.True(t, rec.Degraded)
	assert.Equal(t, 0.0, rec.Confidence)
	assert.Equal(t, "unknown", rec.Structure.Tag)
}

func TestAnalyzeWellStructuredArgument(t *testing.T) {
	a := New(debate.DefaultStrengthWeights())
	content := "First, studies show that 42 percent of cases improve. " +
		"However, some experts disagree. " +
		"Therefore, because the data show a clear trend, we conclude the policy works."
	rec := a.Analyze(content)

	assert.False(t, rec.Degraded)
	assert.Greater(t, rec.Strength, 0.0)
	assert.NotEmpty(t, rec.Structure.Conclusion)
	assert.NotEmpty(t, rec.Evidence)
}

func TestDetectFallacyAdHominem(t *testing.T) {
	a := New(debate.DefaultStrengthWeights())
	rec := a.Analyze("You're wrong because you are simply not qualified to speak on this.")
	found := false
	for _, f := range rec.Fallacies {
		if f.Kind == debate.FallacyAdHominem {
			found = true
			assert.Equal(t, debate.SeverityHigh, f.Severity)
			assert.NotEmpty(t, f.Correction)
		}
	}
	assert.True(t, found)
}

func TestStrengthClampedToUnitInterval(t *testing.T) {
	assert.Equal(t, 1.0, debate.ComputeStrength(2, 2, 2, debate.DefaultStrengthWeights()))
	assert.Equal(t, 0.0, debate.ComputeStrength(-2, -2, -2, debate.DefaultStrengthWeights()))
}

func TestAnalyzeNeverPanics(t *testing.T) {
	a := New(debate.DefaultStrengthWeights())
	assert.NotPanics(t, func() {
		a.Analyze(string([]byte{0xff, 0xfe, 0x00}))
	})
}
