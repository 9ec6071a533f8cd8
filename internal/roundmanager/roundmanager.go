// Package roundmanager implements the adaptive round manager: after each
// round it computes Quality/Engagement/Novelty/Time-pressure sub-metrics,
// combines them into a single score, and issues one of four round-count
// decisions.
package roundmanager

import (
	"strings"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// Weights combine the four sub-metrics into the round score:
// S = 0.4*Quality + 0.2*Engagement + 0.2*Novelty + 0.2*(1-TimePressure).
type Weights struct {
	Quality      float64
	Engagement   float64
	Novelty      float64
	TimePressure float64
}

// DefaultWeights returns the default sub-metric weighting.
func DefaultWeights() Weights {
	return Weights{Quality: 0.4, Engagement: 0.2, Novelty: 0.2, TimePressure: 0.2}
}

// Manager evaluates rounds against configured bounds.
type Manager struct {
	Weights   Weights
	MinRounds int
	MaxRounds int
}

// New constructs a Manager with the given weights and hard round bounds.
func New(weights Weights, minRounds, maxRounds int) *Manager {
	return &Manager{Weights: weights, MinRounds: minRounds, MaxRounds: maxRounds}
}

// Evaluate computes the round metrics for the just-closed round, records
// the metrics and the decision on round, and returns the metrics.
// roundIndex is 1-based. elapsedFraction is
// elapsed/session_budget clamped to [0,1]; previousRounds supplies prior
// rounds for novelty comparison.
func (m *Manager) Evaluate(roundIndex int, round *debate.Round, elapsedFraction float64, previousRounds []*debate.Round) *debate.RoundMetrics {
	quality := computeQuality(round)
	engagement := computeEngagement(round)
	novelty := computeNovelty(round, previousRounds)
	timePressure := clamp01(elapsedFraction)

	score := m.Weights.Quality*quality +
		m.Weights.Engagement*engagement +
		m.Weights.Novelty*novelty +
		m.Weights.TimePressure*(1-timePressure)

	metrics := &debate.RoundMetrics{
		Quality:      quality,
		Engagement:   engagement,
		Novelty:      novelty,
		TimePressure: timePressure,
		Score:        score,
	}

	decision := m.decide(roundIndex, metrics)
	round.Metrics = metrics
	round.Decision = decision
	return metrics
}

// decide maps the score plus hard bounds into a RoundDecision. TIME
// pressure wins on contradiction: if time pressure alone would already
// justify termination (>=0.9) that overrides a quality-driven EXTEND (spec
// §4.5, §8 "TIME-wins-on-contradiction").
func (m *Manager) decide(roundIndex int, metrics *debate.RoundMetrics) debate.RoundDecision {
	if roundIndex < m.MinRounds {
		return debate.DecisionContinueNormal
	}

	if metrics.TimePressure >= 0.9 {
		return debate.DecisionTerminateEarly
	}

	var decision debate.RoundDecision
	switch {
	case metrics.Score >= 0.75:
		decision = debate.DecisionExtend
	case metrics.Score >= 0.45:
		decision = debate.DecisionContinueNormal
	case metrics.Score >= 0.25:
		decision = debate.DecisionReduce
	default:
		decision = debate.DecisionTerminateEarly
	}

	// EXTEND is meaningless once the hard ceiling is reached; clamp to
	// CONTINUE_NORMAL so the orchestrator's phase machine still advances.
	if decision == debate.DecisionExtend && roundIndex >= m.MaxRounds {
		decision = debate.DecisionContinueNormal
	}
	if roundIndex >= m.MaxRounds && decision != debate.DecisionTerminateEarly {
		decision = debate.DecisionContinueNormal
	}

	return decision
}

// computeQuality averages each turn's argument strength, reflecting the
// analyzer's strength scores for the round.
func computeQuality(round *debate.Round) float64 {
	if len(round.Turns) == 0 {
		return 0
	}
	total := 0.0
	counted := 0
	for _, t := range round.Turns {
		if t.Argument.Degraded {
			continue
		}
		total += t.Argument.Strength
		counted++
	}
	if counted == 0 {
		return 0.3 // all degraded: assume mediocre rather than zero, to avoid over-terminating on analyzer outages
	}
	return total / float64(counted)
}

// computeEngagement rewards turns that are neither too short (disengaged)
// nor pathologically long, and rewards more distinct roles participating.
func computeEngagement(round *debate.Round) float64 {
	if len(round.Turns) == 0 {
		return 0
	}
	roles := make(map[debate.Role]bool)
	lengthScore := 0.0
	for _, t := range round.Turns {
		roles[t.Role] = true
		wc := len(strings.Fields(t.Content))
		switch {
		case wc < 20:
			lengthScore += 0.2
		case wc <= 300:
			lengthScore += 1.0
		default:
			lengthScore += 0.6
		}
	}
	avgLength := lengthScore / float64(len(round.Turns))
	participation := float64(len(roles)) / float64(len(round.Turns))
	return clamp01(0.7*avgLength + 0.3*participation)
}

// computeNovelty compares this round's turns against every prior round's
// turns via a cheap token-overlap heuristic, penalising rounds that merely
// restate prior turns.
func computeNovelty(round *debate.Round, previous []*debate.Round) float64 {
	if len(previous) == 0 {
		return 1.0
	}
	priorTokens := make(map[string]bool)
	for _, r := range previous {
		for _, t := range r.Turns {
			for _, w := range strings.Fields(strings.ToLower(t.Content)) {
				priorTokens[w] = true
			}
		}
	}
	if len(round.Turns) == 0 {
		return 0
	}
	newCount, totalCount := 0, 0
	for _, t := range round.Turns {
		for _, w := range strings.Fields(strings.ToLower(t.Content)) {
			totalCount++
			if !priorTokens[w] {
				newCount++
			}
		}
	}
	if totalCount == 0 {
		return 0
	}
	return clamp01(float64(newCount) / float64(totalCount))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
