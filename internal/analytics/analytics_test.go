package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasicdigital/debateforge/internal/debate"
)

func buildTestSession() *debate.Session {
	cfg := debate.DefaultConfig()
	assignment := map[debate.Role]string{
		debate.DebaterRole(0): "model-a",
		debate.DebaterRole(1): "model-b",
	}
	s := debate.NewSession("s1", "Should remote work be the default?", nil, assignment, cfg)

	mk := func(idx int, role debate.Role, content string, strength float64, fallacies []debate.Fallacy) *debate.Turn {
		return &debate.Turn{
			Index:   idx,
			Role:    role,
			Content: content,
			Argument: debate.ArgumentRecord{
				Strength:  strength,
				Fallacies: fallacies,
				Evidence: []debate.EvidenceItem{
					{Credibility: 0.7, Relevance: 0.7, Sufficiency: 0.6, Recency: 0.6},
				},
			},
		}
	}

	r1 := s.StartNewRound()
	r1.Turns = append(r1.Turns,
		mk(0, debate.DebaterRole(0), "remote work increases flexibility and productivity for many workers", 0.6, nil),
		mk(1, debate.DebaterRole(1), "office work increases flexibility for team collaboration and mentorship", 0.55, nil),
	)
	r2 := s.StartNewRound()
	r2.Turns = append(r2.Turns,
		mk(2, debate.DebaterRole(0), "you're wrong because you clearly do not understand modern productivity tools", 0.5, []debate.Fallacy{{Kind: debate.FallacyAdHominem, Severity: debate.SeverityHigh}}),
		mk(3, debate.DebaterRole(1), "office collaboration remains valuable for mentorship and onboarding of new team members", 0.75, nil),
	)
	return s
}

func TestAnalyzeProducesGraphConsensusAndJudgment(t *testing.T) {
	session := buildTestSession()
	report, err := Analyze(context.Background(), session)
	require.NoError(t, err)

	assert.NotEmpty(t, report.Graph.Chains)
	assert.NotEmpty(t, report.Judgment.Scores)
	assert.Contains(t, []debate.Role{debate.DebaterRole(0), debate.DebaterRole(1)}, report.Judgment.Winner)
	assert.NotEmpty(t, report.Narrative)
}

func TestConsensusReportFlagsFallacyAsDisagreement(t *testing.T) {
	session := buildTestSession()
	report, err := Analyze(context.Background(), session)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Consensus.Disagreements)
}

func TestOmissionsNotedWhenTurnsDegraded(t *testing.T) {
	cfg := debate.DefaultConfig()
	assignment := map[debate.Role]string{debate.DebaterRole(0): "model-a", debate.DebaterRole(1): "model-b"}
	s := debate.NewSession("s2", "topic", nil, assignment, cfg)
	r := s.StartNewRound()
	r.Turns = append(r.Turns, &debate.Turn{
		Index: 0, Role: debate.DebaterRole(0), Content: "x",
		Argument: debate.ArgumentRecord{Degraded: true, Structure: debate.ArgumentStructure{Tag: "unknown"}},
	})

	report, err := Analyze(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Omissions)
}

func TestConsensusReportTalliesVotesPerRound(t *testing.T) {
	cfg := debate.DefaultConfig()
	assignment := map[debate.Role]string{debate.DebaterRole(0): "model-a", debate.DebaterRole(1): "model-b"}
	s := debate.NewSession("s3", "topic", nil, assignment, cfg)

	mk := func(idx int, role debate.Role, strength, confidence float64) *debate.Turn {
		return &debate.Turn{
			Index: idx, Role: role,
			Argument: debate.ArgumentRecord{Strength: strength, Confidence: confidence},
		}
	}

	r1 := s.StartNewRound()
	r1.Turns = append(r1.Turns, mk(0, debate.DebaterRole(0), 0.8, 0.9), mk(1, debate.DebaterRole(1), 0.4, 0.5))
	r2 := s.StartNewRound()
	r2.Turns = append(r2.Turns, mk(2, debate.DebaterRole(0), 0.7, 0.8), mk(3, debate.DebaterRole(1), 0.3, 0.4))

	report, err := Analyze(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Consensus.VoteBreakdown[debate.DebaterRole(0)])
	assert.Equal(t, 0, report.Consensus.VoteBreakdown[debate.DebaterRole(1)])
	assert.Equal(t, debate.DebaterRole(0), report.Consensus.WinningRole)
	assert.Equal(t, ConsensusUnanimous, report.Consensus.Method)
}

func TestConsensusReportClassifiesDisagreementVariety(t *testing.T) {
	cfg := debate.DefaultConfig()
	assignment := map[debate.Role]string{debate.DebaterRole(0): "model-a", debate.DebaterRole(1): "model-b"}
	s := debate.NewSession("s4", "topic", nil, assignment, cfg)

	mk := func(idx int, role debate.Role, content string, fallacies []debate.Fallacy) *debate.Turn {
		return &debate.Turn{
			Index: idx, Role: role, Content: content,
			Argument: debate.ArgumentRecord{Strength: 0.6, Fallacies: fallacies},
		}
	}

	r1 := s.StartNewRound()
	r1.Turns = append(r1.Turns,
		mk(0, debate.DebaterRole(0), "you're just attacking my character instead of the argument", []debate.Fallacy{{Kind: debate.FallacyAdHominem, Severity: debate.SeverityHigh}}),
		mk(1, debate.DebaterRole(1), "fair point, I concede that framing was unfair", nil),
	)
	r2 := s.StartNewRound()
	r2.Turns = append(r2.Turns,
		mk(2, debate.DebaterRole(0), "by definition a recession requires two consecutive quarters of decline", nil),
		mk(3, debate.DebaterRole(1), "inflation figures from the central bank remain the deciding factor here", nil),
	)

	report, err := Analyze(context.Background(), s)
	require.NoError(t, err)

	seen := make(map[DisagreementType]bool)
	var resolved bool
	for _, d := range report.Consensus.Disagreements {
		seen[d.Type] = true
		if d.Resolution != "" {
			resolved = true
		}
	}
	assert.True(t, seen[DisagreementNormative], "ad-hominem fallacy should classify as normative")
	assert.True(t, seen[DisagreementDefinitional], "definitional cue should classify as definitional")
	assert.True(t, resolved, "at least one disagreement should carry a resolution")
}

func TestAnalyzeRespectsContext(t *testing.T) {
	session := buildTestSession()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Analyze(ctx, session)
	assert.NoError(t, err)
}
