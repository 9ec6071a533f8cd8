package debate

import "fmt"

// phaseGraph is the declared transition graph: a phase only advances to one
// of the phases listed here (plus the side-arc to FAILED/CANCELLED, which is
// reachable from any non-terminal phase and handled separately).
var phaseGraph = map[Phase][]Phase{
	PhaseInitialization:   {PhaseOpening},
	PhaseOpening:          {PhaseFirstRound},
	PhaseFirstRound:       {PhaseRebuttal, PhaseJudgment}, // TERMINATE_EARLY may skip straight to JUDGMENT
	PhaseRebuttal:         {PhaseRebuttal, PhaseCrossExamination, PhaseClosing, PhaseJudgment},
	PhaseCrossExamination: {PhaseClosing, PhaseJudgment},
	PhaseClosing:          {PhaseJudgment},
	PhaseJudgment:         {PhaseCompleted},
	PhaseCompleted:        {},
	PhaseFailed:           {},
	PhaseCancelled:        {},
}

// CanTransition reports whether to is a declared successor of from, or a
// side-arc into FAILED/CANCELLED from any non-terminal phase.
func CanTransition(from, to Phase) bool {
	if to == PhaseFailed || to == PhaseCancelled {
		return !isTerminalPhase(from)
	}
	next, ok := phaseGraph[from]
	if !ok {
		return false
	}
	for _, p := range next {
		if p == to {
			return true
		}
	}
	return false
}

func isTerminalPhase(p Phase) bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// Reachable reports whether to is reachable from from via zero or more
// declared transitions (used by the universal invariant that a later
// turn's phase must be reachable from an earlier turn's phase).
func Reachable(from, to Phase) bool {
	if from == to {
		return true
	}
	visited := map[Phase]bool{from: true}
	queue := []Phase{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range phaseGraph[cur] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// TurnOrder describes, for a phase, the sequence of roles expected to speak
// within one traversal of that phase. It is the single source of truth for
// "is it this role's turn" queries.
type TurnOrder struct {
	// Speakers lists roles in the exact order they must speak. For
	// alternating phases (FIRST_ROUND, REBUTTAL) this is regenerated each
	// round by NextSpeakers; for others it is fixed for the whole phase.
	Speakers []Role
}

// NextSpeakers returns the ordered list of roles expected to speak during
// one pass of the given phase, given the debater roles (declaration order)
// and, for CROSS_EXAMINATION, the previous round's per-debater scores.
func NextSpeakers(phase Phase, debaters []Role, prevRoundScores map[Role]float64) []Role {
	switch phase {
	case PhaseOpening, PhaseClosing:
		out := make([]Role, len(debaters))
		copy(out, debaters)
		return out

	case PhaseFirstRound, PhaseRebuttal:
		// Debaters alternate, starting with the first declared debater;
		// one utterance per debater per round.
		out := make([]Role, len(debaters))
		copy(out, debaters)
		return out

	case PhaseCrossExamination:
		if len(debaters) < 2 {
			return append([]Role{}, debaters...)
		}
		asker := lowestScoring(debaters, prevRoundScores)
		answerer := otherDebater(debaters, asker)
		return []Role{asker, answerer}

	case PhaseJudgment:
		return []Role{RoleJudge}

	default:
		return nil
	}
}

// lowestScoring returns the debater with the lowest score, tie-broken by
// declaration order (the first such debater in the slice wins ties).
func lowestScoring(debaters []Role, scores map[Role]float64) Role {
	best := debaters[0]
	bestScore := scores[best]
	for _, d := range debaters[1:] {
		if s := scores[d]; s < bestScore {
			best = d
			bestScore = s
		}
	}
	return best
}

func otherDebater(debaters []Role, exclude Role) Role {
	for _, d := range debaters {
		if d != exclude {
			return d
		}
	}
	return debaters[0]
}

// ExpectedSpeakerAt returns the role expected to produce the next turn
// within the given phase, given the turns already appended in the current
// round for that phase. It is the "turn-order predicate" invariant's
// single source of truth: a turn may be appended only when its role
// matches this function's result.
func ExpectedSpeakerAt(phase Phase, debaters []Role, prevRoundScores map[Role]float64, turnsSoFarThisPhase int) (Role, error) {
	order := NextSpeakers(phase, debaters, prevRoundScores)
	if len(order) == 0 {
		return "", fmt.Errorf("no turn order defined for phase %s", phase)
	}
	idx := turnsSoFarThisPhase % len(order)
	return order[idx], nil
}

// PhaseComplete reports whether a full pass of the phase's turn order has
// been produced.
func PhaseComplete(phase Phase, debaters []Role, prevRoundScores map[Role]float64, turnsSoFarThisPhase int) bool {
	order := NextSpeakers(phase, debaters, prevRoundScores)
	return turnsSoFarThisPhase >= len(order)
}
