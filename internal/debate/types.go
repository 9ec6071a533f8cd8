// Package debate holds the shared data model for the debate runtime:
// sessions, rounds, turns, roles, phases, and the argument records produced
// by analysis. Every other component depends on this package; it must not
// import any of them back.
package debate

import (
	"sync"
	"time"
)

// Role identifies a debate participant. The set is closed: two or more
// debaters plus exactly one judge.
type Role string

const (
	RoleJudge Role = "judge"
)

// DebaterRole returns the role identifier for the nth debater (0-indexed),
// e.g. DebaterRole(0) == "debater_A".
func DebaterRole(n int) Role {
	return Role("debater_" + string(rune('A'+n)))
}

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further turn may be appended in this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Phase is a named stage of the debate with fixed role contribution rules.
type Phase string

const (
	PhaseInitialization   Phase = "INITIALIZATION"
	PhaseOpening          Phase = "OPENING"
	PhaseFirstRound       Phase = "FIRST_ROUND"
	PhaseRebuttal         Phase = "REBUTTAL"
	PhaseCrossExamination Phase = "CROSS_EXAMINATION"
	PhaseClosing          Phase = "CLOSING"
	PhaseJudgment         Phase = "JUDGMENT"
	PhaseCompleted        Phase = "COMPLETED"
	PhaseFailed           Phase = "FAILED"
	PhaseCancelled        Phase = "CANCELLED"
)

// RotationStrategy selects how the Model Pool & Rotation Engine decides to
// rotate role→model assignments.
type RotationStrategy string

const (
	RotationFixed            RotationStrategy = "FIXED"
	RotationRoundRobin       RotationStrategy = "ROUND_ROBIN"
	RotationPerformanceBased RotationStrategy = "PERFORMANCE_BASED"
	RotationAdaptive         RotationStrategy = "ADAPTIVE"
	RotationBalanced         RotationStrategy = "BALANCED"
)

// EvidenceType is a closed taxonomy of evidence kinds.
type EvidenceType string

const (
	EvidenceStatistical EvidenceType = "statistical"
	EvidenceExpertOpin  EvidenceType = "expert-opinion"
	EvidenceCaseStudy   EvidenceType = "case-study"
	EvidenceAnalogical  EvidenceType = "analogical"
	EvidenceHistorical  EvidenceType = "historical"
	EvidenceDocumentary EvidenceType = "documentary"
	EvidenceLogical     EvidenceType = "logical"
	EvidenceOther       EvidenceType = "other"
)

// FallacyKind is the closed 8-item fallacy taxonomy.
type FallacyKind string

const (
	FallacyAdHominem           FallacyKind = "ad-hominem"
	FallacyStrawMan            FallacyKind = "straw-man"
	FallacyFalseDichotomy      FallacyKind = "false-dichotomy"
	FallacyAppealToAuthority   FallacyKind = "appeal-to-authority"
	FallacyAppealToEmotion     FallacyKind = "appeal-to-emotion"
	FallacySlipperySlope       FallacyKind = "slippery-slope"
	FallacyHastyGeneralisation FallacyKind = "hasty-generalisation"
	FallacyCircularReasoning   FallacyKind = "circular-reasoning"
)

// Severity of a detected fallacy.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// EvidenceItem is one piece of evidence detected within a turn's content.
type EvidenceItem struct {
	Type        EvidenceType `json:"type"`
	Excerpt     string       `json:"excerpt"`
	Credibility float64      `json:"credibility"`
	Relevance   float64      `json:"relevance"`
	Sufficiency float64      `json:"sufficiency"`
	Recency     float64      `json:"recency"`
}

// Fallacy is a single detected logical fallacy.
type Fallacy struct {
	Kind       FallacyKind `json:"kind"`
	Severity   Severity    `json:"severity"`
	Excerpt    string      `json:"excerpt"`
	Correction string      `json:"correction"`
}

// StrengthWeights weight the three components of argument strength; must
// sum to 1.
type StrengthWeights struct {
	Structure float64
	Evidence  float64
	Logic     float64
}

// DefaultStrengthWeights returns the default structure/evidence/logic mix.
func DefaultStrengthWeights() StrengthWeights {
	return StrengthWeights{Structure: 0.30, Evidence: 0.40, Logic: 0.30}
}

// ArgumentStructure captures the premises/conclusion/reasoning-path
// decomposition of a turn's content.
type ArgumentStructure struct {
	Premises      []string `json:"premises"`
	Conclusion    string   `json:"conclusion"`
	ReasoningPath []string `json:"reasoning_path"`
	Tag           string   `json:"tag"` // "unknown" on degraded analysis
}

// ArgumentRecord is produced by the Argument Analyzer for each turn.
type ArgumentRecord struct {
	Structure  ArgumentStructure `json:"structure"`
	Evidence   []EvidenceItem    `json:"evidence"`
	Fallacies  []Fallacy         `json:"fallacies"`
	Strength   float64           `json:"strength"`
	Confidence float64           `json:"confidence"` // 0 on degraded record
	Degraded   bool              `json:"degraded"`
}

// ComputeStrength returns the weighted composite strength score, clamped
// to [0, 1]. An empty evidence list yields an evidence-component of 0.
func ComputeStrength(structureScore, evidenceScore, logicScore float64, w StrengthWeights) float64 {
	s := structureScore*w.Structure + evidenceScore*w.Evidence + logicScore*w.Logic
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Turn is a single, immutable-once-appended utterance by a role in a phase.
type Turn struct {
	Index     int            `json:"index"`
	Role      Role           `json:"role"`
	ModelID   string         `json:"model_id"`
	Phase     Phase          `json:"phase"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Latency   time.Duration  `json:"latency"`
	Tokens    int            `json:"tokens"`
	Argument  ArgumentRecord `json:"argument"`
}

// RoundDecision is the Adaptive Round Manager's verdict for a round.
type RoundDecision string

const (
	DecisionContinueNormal RoundDecision = "CONTINUE_NORMAL"
	DecisionExtend         RoundDecision = "EXTEND"
	DecisionReduce         RoundDecision = "REDUCE"
	DecisionTerminateEarly RoundDecision = "TERMINATE_EARLY"
)

// RoundMetrics holds the four sub-metrics computed after a round.
type RoundMetrics struct {
	Quality      float64 `json:"quality"`
	Engagement   float64 `json:"engagement"`
	Novelty      float64 `json:"novelty"`
	TimePressure float64 `json:"time_pressure"`
	Score        float64 `json:"score"`
}

// Round is an ordered sequence of turns plus a post-round snapshot.
type Round struct {
	Index    int           `json:"index"`
	Turns    []*Turn       `json:"turns"`
	Metrics  *RoundMetrics `json:"metrics,omitempty"`
	Decision RoundDecision `json:"decision,omitempty"`
}

// RotationEvent records a role→model reassignment applied at a phase
// boundary.
type RotationEvent struct {
	Role                Role             `json:"role"`
	OldModel            string           `json:"old_model"`
	NewModel            string           `json:"new_model"`
	Reason              string           `json:"reason"`
	Confidence          float64          `json:"confidence"`
	ExpectedImprovement float64          `json:"expected_improvement"`
	Strategy            RotationStrategy `json:"strategy"`
	AtPhase             Phase            `json:"at_phase"`
	Timestamp           time.Time        `json:"timestamp"`
}

// Stats aggregates token/cost/error/duration totals for a session.
type Stats struct {
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CostEstimate float64       `json:"cost_estimate"`
	ErrorCount   int           `json:"error_count"`
	RetryCount   int           `json:"retry_count"`
	Duration     time.Duration `json:"duration"`
}

// Judgment is the final aggregated outcome of a completed debate.
type Judgment struct {
	Winner     Role    `json:"winner"`
	Confidence float64 `json:"confidence"`
	Margin     float64 `json:"margin"`
	Rationale  string  `json:"rationale"`
}

// Config holds every recognised session configuration option.
type Config struct {
	DebaterCount           int              `json:"debater_count"`
	MinRounds              int              `json:"min_rounds"`
	MaxRounds              int              `json:"max_rounds"`
	TurnDeadline           time.Duration    `json:"turn_deadline"`
	SessionBudget          time.Duration    `json:"session_budget"`
	RotationStrategy       RotationStrategy `json:"rotation_strategy"`
	MinCallsBeforeRotation int              `json:"min_calls_before_rotation"`
	RetryMaxAttempts       int              `json:"retry_max_attempts"`
	RetryBaseDelay         time.Duration    `json:"retry_base_delay"`
	RetryCapDelay          time.Duration    `json:"retry_cap_delay"`
	SessionRetryBudget     int              `json:"session_retry_budget"`
	BreakerWindow          int              `json:"breaker_window"`
	BreakerTripRate        float64          `json:"breaker_trip_rate"`
	BreakerCooldown        time.Duration    `json:"breaker_cooldown"`
	BreakerCooldownMax     time.Duration    `json:"breaker_cooldown_max"`
	StrengthWeights        StrengthWeights  `json:"strength_weights"`
	TranscriptTokenCeiling int              `json:"transcript_token_ceiling"`
}

// DefaultConfig returns the built-in defaults for every Config field.
func DefaultConfig() Config {
	return Config{
		DebaterCount:           2,
		MinRounds:              3,
		MaxRounds:              10,
		TurnDeadline:           60 * time.Second,
		SessionBudget:          30 * time.Minute,
		RotationStrategy:       RotationAdaptive,
		MinCallsBeforeRotation: 3,
		RetryMaxAttempts:       4,
		RetryBaseDelay:         500 * time.Millisecond,
		RetryCapDelay:          8 * time.Second,
		SessionRetryBudget:     20,
		BreakerWindow:          20,
		BreakerTripRate:        0.5,
		BreakerCooldown:        30 * time.Second,
		BreakerCooldownMax:     5 * time.Minute,
		StrengthWeights:        DefaultStrengthWeights(),
		TranscriptTokenCeiling: 8000,
	}
}

// Session is the root entity of a debate.
type Session struct {
	mu sync.RWMutex

	ID           string
	Topic        string
	ReferenceRaw []byte // opaque reference data blob
	Assignment   map[Role]string
	Status       Status
	CurrentPhase Phase
	Rounds       []*Round
	FinalJudge   *Judgment
	Stats        Stats
	Config       Config
	CreatedAt    time.Time
	StartedAt    time.Time
	EndedAt      time.Time
	FailReason   string
}

// NewSession constructs a pending session with the given assignment.
func NewSession(id, topic string, reference []byte, assignment map[Role]string, cfg Config) *Session {
	a := make(map[Role]string, len(assignment))
	for k, v := range assignment {
		a[k] = v
	}
	return &Session{
		ID:           id,
		Topic:        topic,
		ReferenceRaw: reference,
		Assignment:   a,
		Status:       StatusPending,
		CurrentPhase: PhaseInitialization,
		Rounds:       make([]*Round, 0),
		Config:       cfg,
		CreatedAt:    time.Now(),
	}
}

// DebaterRoles returns the configured debater roles in declaration order.
func (s *Session) DebaterRoles() []Role {
	roles := make([]Role, 0, s.Config.DebaterCount)
	for i := 0; i < s.Config.DebaterCount; i++ {
		roles = append(roles, DebaterRole(i))
	}
	return roles
}

// Snapshot returns a lock-consistent shallow copy of session state for
// external callers (getSession).
func (s *Session) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s
	cp.mu = sync.RWMutex{}
	cp.Assignment = make(map[Role]string, len(s.Assignment))
	for k, v := range s.Assignment {
		cp.Assignment[k] = v
	}
	cp.Rounds = make([]*Round, len(s.Rounds))
	copy(cp.Rounds, s.Rounds)
	return cp
}

// Lock/Unlock/RLock/RUnlock expose the session's mutex to the orchestrator,
// which is the single writer of a session's transcript.
func (s *Session) Lock()    { s.mu.Lock() }
func (s *Session) Unlock()  { s.mu.Unlock() }
func (s *Session) RLock()   { s.mu.RLock() }
func (s *Session) RUnlock() { s.mu.RUnlock() }

// TotalTurns returns the number of turns appended so far across all rounds.
func (s *Session) TotalTurns() int {
	n := 0
	for _, r := range s.Rounds {
		n += len(r.Turns)
	}
	return n
}

// AllTurns flattens every round's turns into a single, index-ordered slice.
func (s *Session) AllTurns() []*Turn {
	turns := make([]*Turn, 0, s.TotalTurns())
	for _, r := range s.Rounds {
		turns = append(turns, r.Turns...)
	}
	return turns
}

// CurrentRound returns the last round, creating one if none exists yet.
func (s *Session) CurrentRound() *Round {
	if len(s.Rounds) == 0 {
		s.Rounds = append(s.Rounds, &Round{Index: 1, Turns: make([]*Turn, 0)})
	}
	return s.Rounds[len(s.Rounds)-1]
}

// StartNewRound appends and returns a fresh round.
func (s *Session) StartNewRound() *Round {
	idx := len(s.Rounds) + 1
	r := &Round{Index: idx, Turns: make([]*Turn, 0)}
	s.Rounds = append(s.Rounds, r)
	return r
}
