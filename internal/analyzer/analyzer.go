// Package analyzer implements the argument analyzer: per-turn structural
// decomposition, evidence typing, fallacy detection, and the composite
// strength score. Analysis failures must never block the debate — a failed
// sub-evaluator degrades to a zero-confidence, "unknown"-tagged record
// instead of propagating an error.
package analyzer

import (
	"math"
	"strings"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// structureIndicators mirror the teacher's analyzeCoherence heuristic
// (internal/services/debate_service.go): connective words are a cheap,
// dependency-free proxy for argumentative structure when no LLM-backed
// analyzer is configured.
var structureIndicators = []string{
	"first", "second", "third", "finally",
	"however", "therefore", "because", "although",
	"in conclusion", "to summarize", "for example",
	"on the other hand", "furthermore", "moreover",
}

var evidenceCues = map[debate.EvidenceType][]string{
	debate.EvidenceStatistical: {"percent", "%", "statistic", "data show", "study found"},
	debate.EvidenceExpertOpin:  {"expert", "according to dr", "researchers say", "professor"},
	debate.EvidenceCaseStudy:   {"case study", "for instance", "in one case"},
	debate.EvidenceAnalogical:  {"similar to", "analogous", "just like", "just as"},
	debate.EvidenceHistorical:  {"historically", "in the past", "decades ago", "in history"},
	debate.EvidenceDocumentary: {"according to the report", "cited in", "the document states"},
	debate.EvidenceLogical:     {"it follows that", "by definition", "necessarily"},
}

var fallacyCues = map[debate.FallacyKind][]string{
	debate.FallacyAdHominem:           {"you're wrong because you", "typical of someone like you"},
	debate.FallacyStrawMan:            {"so you're saying", "what you really mean is"},
	debate.FallacyFalseDichotomy:      {"either we", "there are only two", "the only options are"},
	debate.FallacyAppealToAuthority:   {"trust me", "everyone agrees", "as the experts say"},
	debate.FallacyAppealToEmotion:     {"think of the children", "how would you feel", "it's heartbreaking"},
	debate.FallacySlipperySlope:       {"will inevitably lead to", "next thing you know", "before long"},
	debate.FallacyHastyGeneralisation: {"always", "never", "everyone knows", "all of them"},
	debate.FallacyCircularReasoning:   {"because it is true", "by its very nature", "simply because"},
}

// Analyzer produces ArgumentRecords for turn content.
type Analyzer struct {
	Weights debate.StrengthWeights
}

// New constructs an Analyzer with the given strength weights.
func New(weights debate.StrengthWeights) *Analyzer {
	return &Analyzer{Weights: weights}
}

// Analyze runs the full structure/evidence/fallacy pipeline over content.
// It never returns an error: any internal panic-worthy condition is instead
// converted into a Degraded record so a single bad turn cannot halt the
// debate.
func (a *Analyzer) Analyze(content string) (rec debate.ArgumentRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = degradedRecord()
		}
	}()

	if strings.TrimSpace(content) == "" {
		return degradedRecord()
	}

	structure := analyzeStructure(content)
	evidence := detectEvidence(content)
	fallacies := detectFallacies(content)

	structureScore := scoreStructure(structure)
	evidenceScore := scoreEvidence(evidence)
	logicScore := scoreLogic(fallacies)

	strength := debate.ComputeStrength(structureScore, evidenceScore, logicScore, a.Weights)

	return debate.ArgumentRecord{
		Structure:  structure,
		Evidence:   evidence,
		Fallacies:  fallacies,
		Strength:   strength,
		Confidence: 0.7, // heuristic analyzer never claims full confidence
		Degraded:   false,
	}
}

func degradedRecord() debate.ArgumentRecord {
	return debate.ArgumentRecord{
		Structure:  debate.ArgumentStructure{Tag: "unknown"},
		Evidence:   nil,
		Fallacies:  nil,
		Strength:   0,
		Confidence: 0,
		Degraded:   true,
	}
}

func analyzeStructure(content string) debate.ArgumentStructure {
	sentences := splitSentences(content)
	premises := make([]string, 0)
	conclusion := ""
	reasoning := make([]string, 0)

	lower := strings.ToLower(content)
	for _, cue := range []string{"therefore", "in conclusion", "to summarize", "thus", "consequently"} {
		if idx := strings.Index(lower, cue); idx >= 0 {
			conclusion = strings.TrimSpace(content[idx:])
			break
		}
	}
	if conclusion == "" && len(sentences) > 0 {
		conclusion = strings.TrimSpace(sentences[len(sentences)-1])
	}

	for _, s := range sentences {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" || trimmed == conclusion {
			continue
		}
		premises = append(premises, trimmed)
	}

	for _, cue := range []string{"because", "since", "given that", "as a result"} {
		if strings.Contains(lower, cue) {
			reasoning = append(reasoning, cue)
		}
	}

	return debate.ArgumentStructure{
		Premises:      premises,
		Conclusion:    conclusion,
		ReasoningPath: reasoning,
	}
}

func splitSentences(content string) []string {
	raw := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func detectEvidence(content string) []debate.EvidenceItem {
	lower := strings.ToLower(content)
	items := make([]debate.EvidenceItem, 0)
	for etype, cues := range evidenceCues {
		for _, cue := range cues {
			if idx := strings.Index(lower, cue); idx >= 0 {
				items = append(items, debate.EvidenceItem{
					Type:        etype,
					Excerpt:     excerptAround(content, idx, len(cue)),
					Credibility: 0.6,
					Relevance:   0.6,
					Sufficiency: 0.5,
					Recency:     0.5,
				})
				break // one hit per type is enough signal
			}
		}
	}
	return items
}

func detectFallacies(content string) []debate.Fallacy {
	lower := strings.ToLower(content)
	fallacies := make([]debate.Fallacy, 0)
	for kind, cues := range fallacyCues {
		for _, cue := range cues {
			if idx := strings.Index(lower, cue); idx >= 0 {
				fallacies = append(fallacies, debate.Fallacy{
					Kind:       kind,
					Severity:   severityFor(kind),
					Excerpt:    excerptAround(content, idx, len(cue)),
					Correction: correctionFor(kind),
				})
				break
			}
		}
	}
	return fallacies
}

func severityFor(kind debate.FallacyKind) debate.Severity {
	switch kind {
	case debate.FallacyAdHominem, debate.FallacyCircularReasoning:
		return debate.SeverityHigh
	case debate.FallacyStrawMan, debate.FallacyFalseDichotomy, debate.FallacySlipperySlope:
		return debate.SeverityMedium
	default:
		return debate.SeverityLow
	}
}

func correctionFor(kind debate.FallacyKind) string {
	switch kind {
	case debate.FallacyAdHominem:
		return "address the argument, not the arguer"
	case debate.FallacyStrawMan:
		return "restate the opposing position accurately before rebutting it"
	case debate.FallacyFalseDichotomy:
		return "consider intermediate or additional options"
	case debate.FallacyAppealToAuthority:
		return "cite the specific evidence the authority relies on"
	case debate.FallacyAppealToEmotion:
		return "support the claim with evidence, not sentiment"
	case debate.FallacySlipperySlope:
		return "establish the causal chain, not just its endpoint"
	case debate.FallacyHastyGeneralisation:
		return "qualify the claim or provide a representative sample"
	case debate.FallacyCircularReasoning:
		return "provide a premise independent of the conclusion"
	default:
		return ""
	}
}

func excerptAround(content string, idx, cueLen int) string {
	start := idx - 20
	if start < 0 {
		start = 0
	}
	end := idx + cueLen + 20
	if end > len(content) {
		end = len(content)
	}
	return strings.TrimSpace(content[start:end])
}

func scoreStructure(s debate.ArgumentStructure) float64 {
	score := 0.2
	if len(s.Premises) >= 1 {
		score += 0.3
	}
	if s.Conclusion != "" {
		score += 0.2
	}
	if len(s.ReasoningPath) > 0 {
		score += 0.3
	}
	return math.Min(1.0, score)
}

func scoreEvidence(items []debate.EvidenceItem) float64 {
	if len(items) == 0 {
		return 0
	}
	total := 0.0
	for _, it := range items {
		total += (it.Credibility + it.Relevance + it.Sufficiency + it.Recency) / 4
	}
	avg := total / float64(len(items))
	countBonus := math.Min(1.0, float64(len(items))*0.15)
	return math.Min(1.0, avg*0.7+countBonus)
}

func scoreLogic(fallacies []debate.Fallacy) float64 {
	score := 1.0
	for _, f := range fallacies {
		switch f.Severity {
		case debate.SeverityHigh:
			score -= 0.35
		case debate.SeverityMedium:
			score -= 0.2
		case debate.SeverityLow:
			score -= 0.1
		}
	}
	if score < 0 {
		return 0
	}
	return score
}
