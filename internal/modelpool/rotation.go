package modelpool

import (
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// RotationProposal is the rotation engine's output: a candidate
// reassignment for one role, applied by the orchestrator only at a phase
// boundary.
type RotationProposal struct {
	Role                debate.Role
	OldModel            string
	NewModel            string
	Reason              string
	Confidence          float64
	ExpectedImprovement float64
}

// Engine evaluates rotation strategies against a Pool.
type Engine struct {
	pool *Pool

	// LatencyCeiling normalises latency into CompositeScore; the
	// configured turn deadline is the natural default.
	LatencyCeiling time.Duration
}

// NewEngine builds a rotation engine over pool.
func NewEngine(pool *Pool, latencyCeiling time.Duration) *Engine {
	return &Engine{pool: pool, LatencyCeiling: latencyCeiling}
}

// Evaluate proposes a rotation for role, currently assigned to currentModel,
// out of candidatePool, under strategy. Returns nil if no rotation is
// proposed, including when fewer than minCallsBeforeRotation calls have
// been recorded for the current model — a guard against rotating on too
// little evidence.
func (e *Engine) Evaluate(strategy debate.RotationStrategy, role debate.Role, currentModel string, candidatePool []string, minCallsBeforeRotation int) *RotationProposal {
	if len(candidatePool) == 0 {
		return nil
	}

	currentRecord := e.pool.RecordFor(currentModel)
	if currentRecord.Calls() < minCallsBeforeRotation {
		return nil
	}

	switch strategy {
	case debate.RotationFixed:
		return nil

	case debate.RotationRoundRobin:
		return e.evaluateRoundRobin(role, currentModel, candidatePool)

	case debate.RotationPerformanceBased:
		return e.evaluateBestOf(role, currentModel, candidatePool, "underperformance vs. pool best", 1.0, performanceMargin)

	case debate.RotationAdaptive:
		return e.evaluateAdaptive(role, currentModel, candidatePool)

	case debate.RotationBalanced:
		return e.evaluateBalanced(role, currentModel, candidatePool)

	default:
		return nil
	}
}

func (e *Engine) evaluateRoundRobin(role debate.Role, currentModel string, pool []string) *RotationProposal {
	next := e.pool.nextRoundRobin(string(role), pool)
	if next == "" || next == currentModel {
		return nil
	}
	return &RotationProposal{
		Role:       role,
		OldModel:   currentModel,
		NewModel:   next,
		Reason:     "round-robin schedule",
		Confidence: 1.0,
	}
}

// performanceMargin is the minimum CompositeScore gap the best candidate
// must hold over the incumbent, observed over at least minCallsBeforeRotation
// calls, before PERFORMANCE_BASED proposes a rotation.
const performanceMargin = 0.10

// evaluateBestOf rotates to the highest-CompositeScore candidate if it beats
// the current model's score by at least marginThreshold.
func (e *Engine) evaluateBestOf(role debate.Role, currentModel string, pool []string, reason string, confidenceWeight, marginThreshold float64) *RotationProposal {
	currentScore := e.pool.RecordFor(currentModel).CompositeScore(e.LatencyCeiling)
	bestModel := currentModel
	bestScore := currentScore

	for _, candidate := range pool {
		if candidate == currentModel {
			continue
		}
		score := e.pool.RecordFor(candidate).CompositeScore(e.LatencyCeiling)
		if score > bestScore {
			bestScore = score
			bestModel = candidate
		}
	}

	if bestModel == currentModel || bestScore-currentScore < marginThreshold {
		return nil
	}

	return &RotationProposal{
		Role:                role,
		OldModel:            currentModel,
		NewModel:            bestModel,
		Reason:              reason,
		Confidence:          confidenceWeight * clamp01(bestScore-currentScore+0.5),
		ExpectedImprovement: bestScore - currentScore,
	}
}

// evaluateAdaptive layers a quality-trend signal on top of PERFORMANCE_BASED:
// normally it applies the same performanceMargin gate, but once the
// incumbent's argument strength has declined for two consecutive rounds it
// drops the margin to zero, so any candidate currently scoring even
// marginally better takes over rather than waiting for a full 0.10 gap to
// accumulate.
func (e *Engine) evaluateAdaptive(role debate.Role, currentModel string, pool []string) *RotationProposal {
	margin := performanceMargin
	reason := "adaptive performance re-ranking"
	if e.pool.RecordFor(currentModel).Declining() {
		margin = 0
		reason = "adaptive: argument strength declined over last 2 rounds"
	}
	return e.evaluateBestOf(role, currentModel, pool, reason, 0.8, margin)
}

// evaluateBalanced spreads assignments across the pool to avoid any single
// model monopolising a role, rotating away from the current model once it
// has taken a disproportionate share of calls relative to the pool average.
func (e *Engine) evaluateBalanced(role debate.Role, currentModel string, pool []string) *RotationProposal {
	total := 0
	currentCalls := e.pool.RecordFor(currentModel).Calls()
	for _, m := range pool {
		total += e.pool.RecordFor(m).Calls()
	}
	if total == 0 {
		return nil
	}
	avgShare := 1.0 / float64(len(pool))
	currentShare := float64(currentCalls) / float64(total)
	if currentShare <= avgShare*1.5 {
		return nil
	}

	// Rotate to the least-used candidate.
	var leastModel string
	leastCalls := -1
	for _, m := range pool {
		if m == currentModel {
			continue
		}
		calls := e.pool.RecordFor(m).Calls()
		if leastCalls == -1 || calls < leastCalls {
			leastCalls = calls
			leastModel = m
		}
	}
	if leastModel == "" {
		return nil
	}
	return &RotationProposal{
		Role:       role,
		OldModel:   currentModel,
		NewModel:   leastModel,
		Reason:     "balanced load: current model exceeds share cap",
		Confidence: 0.7,
	}
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
