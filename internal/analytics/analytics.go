// Package analytics implements post-debate analytics: the argument-chain
// graph, consensus report, and multi-perspective judgment computed once a
// session has completed.
package analytics

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// DisagreementType is the closed 7-item taxonomy of unresolved conflicts
// between debaters.
type DisagreementType string

const (
	DisagreementFactual        DisagreementType = "factual"
	DisagreementDefinitional   DisagreementType = "definitional"
	DisagreementMethodological DisagreementType = "methodological"
	DisagreementValueBased     DisagreementType = "value-based"
	DisagreementInterpretive   DisagreementType = "interpretive"
	DisagreementNormative      DisagreementType = "normative"
	DisagreementEmpirical      DisagreementType = "empirical"
)

// ResolutionType is the closed 6-item taxonomy of how a disagreement ended.
type ResolutionType string

const (
	ResolutionCompromise  ResolutionType = "compromise"
	ResolutionSynthesis   ResolutionType = "synthesis"
	ResolutionAlternative ResolutionType = "alternative"
	ResolutionSequential  ResolutionType = "sequential"
	ResolutionConditional ResolutionType = "conditional"
	ResolutionHybrid      ResolutionType = "hybrid"
)

// JudgmentDimension is the closed 8-item rubric multi-perspective judgment
// scores each debater against.
type JudgmentDimension string

const (
	DimensionLogical    JudgmentDimension = "logical"
	DimensionRhetorical JudgmentDimension = "rhetorical"
	DimensionFactual    JudgmentDimension = "factual"
	DimensionEthical    JudgmentDimension = "ethical"
	DimensionPractical  JudgmentDimension = "practical"
	DimensionEmotional  JudgmentDimension = "emotional"
	DimensionCultural   JudgmentDimension = "cultural"
	DimensionLegal      JudgmentDimension = "legal"
)

// CognitiveBias is the closed 8-item taxonomy the bias detector screens
// the judgment process itself for.
type CognitiveBias string

const (
	BiasRecency            CognitiveBias = "recency"
	BiasPrimacy            CognitiveBias = "primacy"
	BiasVerbosity          CognitiveBias = "verbosity"
	BiasConfirmation       CognitiveBias = "confirmation"
	BiasHalo               CognitiveBias = "halo"
	BiasAnchoring          CognitiveBias = "anchoring"
	BiasAuthorityDeference CognitiveBias = "authority-deference"
	BiasFamiliarity        CognitiveBias = "familiarity"
)

// ArgumentEdge links two turns in the argument-chain DAG: to refers to or
// rebuts from.
type ArgumentEdge struct {
	From int
	To   int
	Kind string // "refers-to" | "rebuts"
}

// ArgumentChain is a maximal path through the DAG, scored so the strongest
// chains maximize cumulative-strength times depth.
type ArgumentChain struct {
	TurnIndices []int
	Strength    float64
	Depth       int
	Score       float64
}

// ArgumentGraph is the full turn-reference DAG for a session.
type ArgumentGraph struct {
	Edges  []ArgumentEdge
	Chains []ArgumentChain
}

// DisagreementItem records one unresolved or resolved point of conflict.
type DisagreementItem struct {
	Type        DisagreementType
	Description string
	Resolution  ResolutionType
}

// ConsensusMethod classifies how a round-by-round vote resolved, mirroring
// the teacher's ConsensusMethodUnanimous/Majority/WeightedVoting trichotomy.
type ConsensusMethod string

const (
	ConsensusUnanimous ConsensusMethod = "unanimous"
	ConsensusMajority  ConsensusMethod = "majority"
	ConsensusWeighted  ConsensusMethod = "weighted"
	ConsensusNone      ConsensusMethod = "none"
)

// ConsensusReport summarises where debaters converged and diverged.
type ConsensusReport struct {
	CommonGround      []string
	Disagreements     []DisagreementItem
	PolarisationIndex float64 // 0 = full agreement, 1 = maximal divergence
	VoteBreakdown     map[debate.Role]int
	WeightedVotes     map[debate.Role]float64
	WinningRole       debate.Role
	Method            ConsensusMethod
}

// DimensionScore is one debater's score on one JudgmentDimension.
type DimensionScore struct {
	Dimension JudgmentDimension
	Role      debate.Role
	Score     float64
}

// BiasFlag records a suspected cognitive bias in the judgment process.
type BiasFlag struct {
	Bias        CognitiveBias
	Description string
	Severity    debate.Severity
}

// MultiPerspectiveJudgment is analytics' richer judgment, distinct from the
// orchestrator's lightweight in-flight Judgment.
type MultiPerspectiveJudgment struct {
	Scores     []DimensionScore
	Biases     []BiasFlag
	Winner     debate.Role
	Confidence float64
	Margin     float64
}

// Report is the final synthesized analytics output for one session.
type Report struct {
	Graph     ArgumentGraph
	Consensus ConsensusReport
	Judgment  MultiPerspectiveJudgment
	Narrative string
	Omissions []string // notes about degraded sub-analyses that limited this report
}

// Analyze runs the graph, consensus, and judgment computations concurrently,
// fanning out then synthesizing, and assembles the final report.
func Analyze(ctx context.Context, session *debate.Session) (*Report, error) {
	session.RLock()
	turns := append([]*debate.Turn{}, session.AllTurns()...)
	rounds := append([]*debate.Round{}, session.Rounds...)
	debaters := session.DebaterRoles()
	session.RUnlock()

	var graph ArgumentGraph
	var consensus ConsensusReport
	var judgment MultiPerspectiveJudgment

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		graph = buildArgumentGraph(turns)
		return nil
	})
	g.Go(func() error {
		consensus = buildConsensusReport(turns, rounds, debaters)
		return nil
	})
	g.Go(func() error {
		judgment = buildJudgment(turns, debaters)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	omissions := collectOmissions(turns)
	narrative := synthesizeNarrative(session.Topic, judgment, consensus, omissions)

	return &Report{
		Graph:     graph,
		Consensus: consensus,
		Judgment:  judgment,
		Narrative: narrative,
		Omissions: omissions,
	}, nil
}

func collectOmissions(turns []*debate.Turn) []string {
	degraded := 0
	for _, t := range turns {
		if t.Argument.Degraded {
			degraded++
		}
	}
	if degraded == 0 {
		return nil
	}
	return []string{
		"argument analysis was degraded for " + strconv.Itoa(degraded) + " of " + strconv.Itoa(len(turns)) + " turns; strength-based conclusions for those turns are unreliable",
	}
}

// buildArgumentGraph links each turn to the most recent prior turn by an
// opposing debater (a "rebuts" edge) and by the same debater (a
// "refers-to" edge — building on one's own prior point), then extracts the
// chains that maximise cumulative-strength * depth.
func buildArgumentGraph(turns []*debate.Turn) ArgumentGraph {
	edges := make([]ArgumentEdge, 0)
	for i, t := range turns {
		if t.Role == debate.RoleJudge {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			prev := turns[j]
			if prev.Role == debate.RoleJudge {
				continue
			}
			if prev.Role != t.Role {
				edges = append(edges, ArgumentEdge{From: t.Index, To: prev.Index, Kind: "rebuts"})
				break
			}
		}
		for j := i - 1; j >= 0; j-- {
			prev := turns[j]
			if prev.Role == t.Role {
				edges = append(edges, ArgumentEdge{From: t.Index, To: prev.Index, Kind: "refers-to"})
				break
			}
		}
	}

	chains := extractChains(turns, edges)
	return ArgumentGraph{Edges: edges, Chains: chains}
}

// extractChains follows each turn's "refers-to" self-chain (a debater's own
// running line of argument) since that is the natural longest-path
// structure in a two-debater format; each chain's score is cumulative
// strength times its depth.
func extractChains(turns []*debate.Turn, edges []ArgumentEdge) []ArgumentChain {
	byIndex := make(map[int]*debate.Turn, len(turns))
	for _, t := range turns {
		byIndex[t.Index] = t
	}
	refersTo := make(map[int]int) // turn index -> prior turn index in same debater's chain
	for _, e := range edges {
		if e.Kind == "refers-to" {
			refersTo[e.From] = e.To
		}
	}

	// A chain head is the most recent turn in each debater's own sequence;
	// walking refersTo backward from there recovers the full chain.
	latestByRole := make(map[debate.Role]int)
	for _, t := range turns {
		if t.Role == debate.RoleJudge {
			continue
		}
		latestByRole[t.Role] = t.Index
	}

	chains := make([]ArgumentChain, 0, len(latestByRole))
	for _, headIdx := range latestByRole {
		indices := []int{headIdx}
		strength := byIndex[headIdx].Argument.Strength
		cur := headIdx
		for {
			prev, ok := refersTo[cur]
			if !ok {
				break
			}
			indices = append([]int{prev}, indices...)
			strength += byIndex[prev].Argument.Strength
			cur = prev
		}
		depth := len(indices)
		chains = append(chains, ArgumentChain{
			TurnIndices: indices,
			Strength:    strength,
			Depth:       depth,
			Score:       strength * float64(depth),
		})
	}

	sort.Slice(chains, func(i, j int) bool { return chains[i].Score > chains[j].Score })
	return chains
}

// definitionCues flag a turn as staking out a contested definition rather
// than a factual or methodological claim.
var definitionCues = []string{"define", "definition", "by definition", "means that", "refers to"}

// concessionCues and synthesisCues are the two follow-up patterns
// resolutionForFollowUp recognises: a debater conceding ground, or a later
// turn folding both positions together.
var concessionCues = []string{"you're right", "fair point", "i concede", "fair enough", "i agree"}
var synthesisCues = []string{"both", "combin", "synthes"}

// fallacyDisagreementType maps a detected fallacy to the disagreement type it
// most plausibly signals: misrepresenting the other side (interpretive), a
// personal-attack framing (normative), leaning on feeling over substance
// (value-based), citing authority instead of evidence (empirical), or a
// flawed inference pattern (methodological, the catch-all).
func fallacyDisagreementType(kind debate.FallacyKind) DisagreementType {
	switch kind {
	case debate.FallacyStrawMan:
		return DisagreementInterpretive
	case debate.FallacyAdHominem:
		return DisagreementNormative
	case debate.FallacyAppealToEmotion:
		return DisagreementValueBased
	case debate.FallacyAppealToAuthority:
		return DisagreementEmpirical
	default: // false-dichotomy, slippery-slope, hasty-generalisation, circular-reasoning
		return DisagreementMethodological
	}
}

// resolutionForFollowUp inspects the opposing role's next turn after
// fromIndex for a concession or a synthesising remark, and classifies the
// resolution accordingly. It returns "" (unresolved) when the disagreement
// was never taken up, and ResolutionAlternative when it was addressed but
// neither side moved off its position.
func resolutionForFollowUp(role debate.Role, fromIndex int, turns []*debate.Turn) ResolutionType {
	for _, t := range turns {
		if t.Index <= fromIndex || t.Role == role || t.Role == debate.RoleJudge {
			continue
		}
		lower := strings.ToLower(t.Content)
		for _, cue := range concessionCues {
			if strings.Contains(lower, cue) {
				return ResolutionCompromise
			}
		}
		for _, cue := range synthesisCues {
			if strings.Contains(lower, cue) {
				return ResolutionSynthesis
			}
		}
		return ResolutionAlternative
	}
	return ""
}

// oneSidedTerms returns, sorted, the significant terms present in mine but
// absent from theirs.
func oneSidedTerms(mine, theirs []string) []string {
	present := make(map[string]bool)
	for _, content := range theirs {
		for _, w := range strings.Fields(strings.ToLower(content)) {
			present[w] = true
		}
	}
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, content := range mine {
		for _, w := range strings.Fields(strings.ToLower(content)) {
			if len(w) <= 3 || seen[w] || present[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}

// buildConsensusReport is grounded on the teacher's calculateContentSimilarity
// (protocol.go) for common-ground detection, and on buildFinalConsensus for
// the vote breakdown: each round casts one vote, for whichever debater held
// the higher average argument strength in that round, weighted by that
// debater's confidence.
func buildConsensusReport(turns []*debate.Turn, rounds []*debate.Round, debaters []debate.Role) ConsensusReport {
	byRole := make(map[debate.Role][]string)
	for _, t := range turns {
		if t.Role == debate.RoleJudge {
			continue
		}
		byRole[t.Role] = append(byRole[t.Role], t.Content)
	}

	termCounts := make(map[string]int)
	for _, role := range debaters {
		seen := make(map[string]bool)
		for _, content := range byRole[role] {
			for _, w := range strings.Fields(strings.ToLower(content)) {
				if len(w) <= 3 || seen[w] {
					continue
				}
				seen[w] = true
				termCounts[w]++
			}
		}
	}

	commonGround := make([]string, 0)
	disagreements := make([]DisagreementItem, 0)
	for term, count := range termCounts {
		if count >= len(debaters) && len(debaters) > 1 {
			commonGround = append(commonGround, term)
		}
	}
	sort.Strings(commonGround)

	fallacyCount := 0
	for _, t := range turns {
		for _, f := range t.Argument.Fallacies {
			fallacyCount++
			disagreements = append(disagreements, DisagreementItem{
				Type:        fallacyDisagreementType(f.Kind),
				Description: "turn " + strconv.Itoa(t.Index) + " (" + string(t.Role) + ") contained a fallacy: " + string(f.Kind),
				Resolution:  resolutionForFollowUp(t.Role, t.Index, turns),
			})
		}
	}

	for _, t := range turns {
		if t.Role == debate.RoleJudge {
			continue
		}
		lower := strings.ToLower(t.Content)
		for _, cue := range definitionCues {
			if strings.Contains(lower, cue) {
				disagreements = append(disagreements, DisagreementItem{
					Type:        DisagreementDefinitional,
					Description: "turn " + strconv.Itoa(t.Index) + " (" + string(t.Role) + ") stakes out a contested definition",
					Resolution:  resolutionForFollowUp(t.Role, t.Index, turns),
				})
				break
			}
		}
	}

	if len(debaters) == 2 {
		a, b := debaters[0], debaters[1]
		turnsWith := func(contents []string, term string) int {
			n := 0
			for _, content := range contents {
				for _, w := range strings.Fields(strings.ToLower(content)) {
					if w == term {
						n++
						break
					}
				}
			}
			return n
		}
		onlyA := oneSidedTerms(byRole[a], byRole[b])
		for _, term := range onlyA {
			if turnsWith(byRole[a], term) < 2 {
				continue
			}
			disagreements = append(disagreements, DisagreementItem{
				Type:        DisagreementFactual,
				Description: "\"" + term + "\" was raised repeatedly by " + string(a) + " and never taken up by " + string(b),
			})
		}
		onlyB := oneSidedTerms(byRole[b], byRole[a])
		for _, term := range onlyB {
			if turnsWith(byRole[b], term) < 2 {
				continue
			}
			disagreements = append(disagreements, DisagreementItem{
				Type:        DisagreementFactual,
				Description: "\"" + term + "\" was raised repeatedly by " + string(b) + " and never taken up by " + string(a),
			})
		}
	}

	totalTerms := len(termCounts)
	polarisation := 1.0
	if totalTerms > 0 {
		polarisation = 1 - float64(len(commonGround))/float64(totalTerms)
	}

	voteBreakdown, weightedVotes, winner, method := tallyRoundVotes(rounds)

	return ConsensusReport{
		CommonGround:      commonGround,
		Disagreements:     disagreements,
		PolarisationIndex: clamp01(polarisation),
		VoteBreakdown:     voteBreakdown,
		WeightedVotes:     weightedVotes,
		WinningRole:       winner,
		Method:            method,
	}
}

// tallyRoundVotes casts one vote per round for whichever debater held the
// higher average argument strength that round, weighted by confidence, then
// classifies the result the way buildFinalConsensus does: unanimous if every
// round agreed, majority if the winner took more than half the votes,
// weighted if the winner only leads on confidence-weighted votes, none if
// no round produced a vote at all.
func tallyRoundVotes(rounds []*debate.Round) (map[debate.Role]int, map[debate.Role]float64, debate.Role, ConsensusMethod) {
	voteBreakdown := make(map[debate.Role]int)
	weightedVotes := make(map[debate.Role]float64)

	for _, round := range rounds {
		totals := make(map[debate.Role]float64)
		weights := make(map[debate.Role]float64)
		counts := make(map[debate.Role]int)
		for _, t := range round.Turns {
			if t.Role == debate.RoleJudge {
				continue
			}
			totals[t.Role] += t.Argument.Strength
			weights[t.Role] += t.Argument.Strength * t.Argument.Confidence
			counts[t.Role]++
		}
		var roundWinner debate.Role
		best := -1.0
		for role, sum := range totals {
			avg := sum / float64(counts[role])
			if avg > best {
				best = avg
				roundWinner = role
			}
		}
		if roundWinner == "" {
			continue
		}
		voteBreakdown[roundWinner]++
		weightedVotes[roundWinner] += weights[roundWinner]
	}

	totalVotes := 0
	maxVoteCount := 0
	var winner debate.Role
	maxWeight := -1.0
	for _, count := range voteBreakdown {
		totalVotes += count
		if count > maxVoteCount {
			maxVoteCount = count
		}
	}
	for role, weight := range weightedVotes {
		if weight > maxWeight {
			maxWeight = weight
			winner = role
		}
	}

	if totalVotes == 0 {
		return voteBreakdown, weightedVotes, "", ConsensusNone
	}
	method := ConsensusWeighted
	if maxVoteCount == totalVotes {
		method = ConsensusUnanimous
	} else if float64(maxVoteCount) > float64(totalVotes)*0.5 {
		method = ConsensusMajority
	}
	return voteBreakdown, weightedVotes, winner, method
}

// buildJudgment cross-evaluates each debater along the 8 dimensions using
// the analyzer's per-turn strength as a common proxy signal, then screens
// the resulting ranking for the closed set of cognitive biases.
func buildJudgment(turns []*debate.Turn, debaters []debate.Role) MultiPerspectiveJudgment {
	scores := make([]DimensionScore, 0, len(debaters)*8)
	totals := make(map[debate.Role]float64)

	dims := []JudgmentDimension{
		DimensionLogical, DimensionRhetorical, DimensionFactual, DimensionEthical,
		DimensionPractical, DimensionEmotional, DimensionCultural, DimensionLegal,
	}

	for _, role := range debaters {
		roleTurns := turnsFor(turns, role)
		for _, dim := range dims {
			s := scoreDimension(dim, roleTurns)
			scores = append(scores, DimensionScore{Dimension: dim, Role: role, Score: s})
			totals[role] += s
		}
	}

	var winner debate.Role
	best, second := -1.0, -1.0
	for _, role := range debaters {
		avg := totals[role] / float64(len(dims))
		if avg > best {
			second = best
			best = avg
			winner = role
		} else if avg > second {
			second = avg
		}
	}
	if second < 0 {
		second = 0
	}

	biases := detectBiases(turns)

	return MultiPerspectiveJudgment{
		Scores:     scores,
		Biases:     biases,
		Winner:     winner,
		Confidence: clamp01(best),
		Margin:     best - second,
	}
}

func turnsFor(turns []*debate.Turn, role debate.Role) []*debate.Turn {
	out := make([]*debate.Turn, 0)
	for _, t := range turns {
		if t.Role == role {
			out = append(out, t)
		}
	}
	return out
}

func scoreDimension(dim JudgmentDimension, turns []*debate.Turn) float64 {
	if len(turns) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range turns {
		switch dim {
		case DimensionLogical:
			total += 1 - float64(len(t.Argument.Fallacies))*0.15
		case DimensionRhetorical:
			total += clarityScore(t)
		case DimensionFactual:
			total += evidenceScore(t)
		case DimensionEthical:
			total += civilityScore(t)
		case DimensionPractical:
			total += t.Argument.Strength // proxy: a strong, actionable argument reads as practical
		case DimensionEmotional:
			total += emotionalScore(t)
		case DimensionCultural:
			total += t.Argument.Strength // no dedicated signal; falls back to overall strength
		case DimensionLegal:
			total += evidenceScore(t) // legal reasoning leans on the same cited-evidence signal
		}
	}
	return clamp01(total / float64(len(turns)))
}

func evidenceScore(t *debate.Turn) float64 {
	if len(t.Argument.Evidence) == 0 {
		return 0.2
	}
	total := 0.0
	for _, e := range t.Argument.Evidence {
		total += (e.Credibility + e.Relevance + e.Sufficiency + e.Recency) / 4
	}
	return total / float64(len(t.Argument.Evidence))
}

func clarityScore(t *debate.Turn) float64 {
	wc := len(strings.Fields(t.Content))
	switch {
	case wc == 0:
		return 0
	case wc < 15:
		return 0.4
	case wc <= 250:
		return 0.9
	default:
		return 0.6
	}
}

func civilityScore(t *debate.Turn) float64 {
	for _, f := range t.Argument.Fallacies {
		if f.Kind == debate.FallacyAdHominem || f.Kind == debate.FallacyAppealToEmotion {
			return 0.3
		}
	}
	return 0.9
}

func emotionalScore(t *debate.Turn) float64 {
	for _, f := range t.Argument.Fallacies {
		if f.Kind == debate.FallacyAppealToEmotion {
			return 0.2
		}
	}
	return 0.8
}

// detectBiases screens for a small, high-signal subset of the closed bias
// taxonomy: recency (later turns systematically scored stronger) and
// verbosity (strength correlates with raw length rather than substance).
func detectBiases(turns []*debate.Turn) []BiasFlag {
	flags := make([]BiasFlag, 0)
	if len(turns) < 4 {
		return flags
	}

	half := len(turns) / 2
	firstHalfAvg, secondHalfAvg := 0.0, 0.0
	for i, t := range turns {
		if i < half {
			firstHalfAvg += t.Argument.Strength
		} else {
			secondHalfAvg += t.Argument.Strength
		}
	}
	firstHalfAvg /= float64(half)
	secondHalfAvg /= float64(len(turns) - half)
	if secondHalfAvg-firstHalfAvg > 0.25 {
		flags = append(flags, BiasFlag{
			Bias:        BiasRecency,
			Description: "later turns scored systematically higher than earlier turns of comparable content",
			Severity:    debate.SeverityMedium,
		})
	}

	longRewarded := 0
	shortPenalised := 0
	for _, t := range turns {
		wc := len(strings.Fields(t.Content))
		if wc > 250 && t.Argument.Strength > 0.7 {
			longRewarded++
		}
		if wc < 30 && t.Argument.Strength < 0.4 {
			shortPenalised++
		}
	}
	if longRewarded+shortPenalised >= len(turns)/2 && len(turns) > 0 {
		flags = append(flags, BiasFlag{
			Bias:        BiasVerbosity,
			Description: "strength scores correlate with turn length more than with argument substance",
			Severity:    debate.SeverityLow,
		})
	}

	return flags
}

func synthesizeNarrative(topic string, judgment MultiPerspectiveJudgment, consensus ConsensusReport, omissions []string) string {
	var b strings.Builder
	b.WriteString("Debate on \"")
	b.WriteString(topic)
	b.WriteString("\" concluded with ")
	b.WriteString(string(judgment.Winner))
	b.WriteString(" judged ahead on the balance of the eight-dimension rubric")
	if judgment.Margin < 0.1 {
		b.WriteString(", though by a narrow margin")
	}
	b.WriteString(". ")

	if len(consensus.CommonGround) > 0 {
		b.WriteString("Debaters converged on shared terminology around: ")
		b.WriteString(strings.Join(consensus.CommonGround, ", "))
		b.WriteString(". ")
	}
	unresolved := 0
	for _, d := range consensus.Disagreements {
		if d.Resolution == "" {
			unresolved++
		}
	}
	if unresolved > 0 {
		b.WriteString(strconv.Itoa(unresolved))
		b.WriteString(" point(s) of disagreement were left unresolved. ")
	}
	for _, o := range omissions {
		b.WriteString(o)
		b.WriteString(". ")
	}
	return strings.TrimSpace(b.String())
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
