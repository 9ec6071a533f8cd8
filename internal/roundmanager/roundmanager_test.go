package roundmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasicdigital/debateforge/internal/debate"
)

func strongTurn(role debate.Role, content string) *debate.Turn {
	return &debate.Turn{
		Role:    role,
		Content: content,
		Argument: debate.ArgumentRecord{
			Strength: 0.9,
		},
	}
}

func TestBelowMinRoundsAlwaysContinues(t *testing.T) {
	m := New(DefaultWeights(), 3, 10)
	round := &debate.Round{Index: 1, Turns: []*debate.Turn{strongTurn(debate.DebaterRole(0), "weak")}}
	m.Evaluate(1, round, 0.0, nil)
	assert.Equal(t, debate.DecisionContinueNormal, round.Decision)
}

func TestTimePressureWinsOnContradiction(t *testing.T) {
	m := New(DefaultWeights(), 3, 10)
	round := &debate.Round{Index: 5, Turns: []*debate.Turn{
		strongTurn(debate.DebaterRole(0), "brand new unrepeated content across the board with high strength and originality"),
		strongTurn(debate.DebaterRole(1), "another fresh line of reasoning not seen previously in this debate at all"),
	}}
	m.Evaluate(5, round, 0.95, nil) // near-total time pressure should override a quality-driven EXTEND
	assert.Equal(t, debate.DecisionTerminateEarly, round.Decision)
}

func TestExtendClampsToContinueAtMaxRounds(t *testing.T) {
	m := New(DefaultWeights(), 3, 5)
	round := &debate.Round{Index: 5, Turns: []*debate.Turn{
		strongTurn(debate.DebaterRole(0), "brand new unrepeated content across the board with high strength and originality"),
		strongTurn(debate.DebaterRole(1), "another fresh line of reasoning not seen previously in this debate at all"),
	}}
	m.Evaluate(5, round, 0.1, nil)
	assert.Equal(t, debate.DecisionContinueNormal, round.Decision)
}

func TestLowQualityRoundTerminatesEarly(t *testing.T) {
	m := New(DefaultWeights(), 3, 10)
	previous := []*debate.Round{{Turns: []*debate.Turn{
		{Role: debate.DebaterRole(0), Content: "ok", Argument: debate.ArgumentRecord{Strength: 0.01}},
	}}}
	round := &debate.Round{Index: 4, Turns: []*debate.Turn{
		{Role: debate.DebaterRole(0), Content: "ok", Argument: debate.ArgumentRecord{Strength: 0.01}},
	}}
	m.Evaluate(4, round, 0.8, previous)
	assert.Equal(t, debate.DecisionTerminateEarly, round.Decision)
}

func TestNoveltyFirstRoundIsMaximal(t *testing.T) {
	round := &debate.Round{Turns: []*debate.Turn{strongTurn(debate.DebaterRole(0), "anything")}}
	assert.Equal(t, 1.0, computeNovelty(round, nil))
}

func TestNoveltyPenalisesRepetition(t *testing.T) {
	prev := []*debate.Round{{Turns: []*debate.Turn{strongTurn(debate.DebaterRole(0), "the same words repeated exactly")}}}
	current := &debate.Round{Turns: []*debate.Turn{strongTurn(debate.DebaterRole(0), "the same words repeated exactly")}}
	assert.Equal(t, 0.0, computeNovelty(current, prev))
}
