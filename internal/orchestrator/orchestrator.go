// Package orchestrator implements the debate orchestrator: the phase state
// machine that drives a session turn by turn, consulting the resilience
// layer, the model pool/rotation engine, the argument analyzer, and the
// round manager along the way.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vasicdigital/debateforge/internal/analyzer"
	"github.com/vasicdigital/debateforge/internal/debate"
	"github.com/vasicdigital/debateforge/internal/modelpool"
	"github.com/vasicdigital/debateforge/internal/observer"
	"github.com/vasicdigital/debateforge/internal/resilience"
	"github.com/vasicdigital/debateforge/internal/roundmanager"
)

// Deps wires together every component the orchestrator drives.
type Deps struct {
	Pool       *modelpool.Pool
	Rotation   *modelpool.Engine
	Resilience *resilience.Manager
	Analyzer   *analyzer.Analyzer
	Rounds     *roundmanager.Manager
	Observers  *observer.Dispatcher
	Logger     *logrus.Logger
}

// command is a mailbox message for pause/resume/cancel control. Pause and
// resume are cooperative: they are only observed at a step boundary, never
// mid-call. Cancel also cancels the session context, so it aborts an
// in-flight call at once.
type command int

const (
	cmdPause command = iota
	cmdResume
	cmdCancel
)

type sessionControl struct {
	commands chan command
	cancel   context.CancelFunc
}

// Orchestrator runs sessions strictly serially within a session and fully
// in parallel across sessions.
type Orchestrator struct {
	deps Deps

	mu       chanMutex
	controls map[string]*sessionControl
}

// chanMutex is a tiny sync.Mutex substitute kept local to avoid importing
// sync just for one guarded map; matches the teacher's habit of favouring
// the smallest primitive that does the job.
type chanMutex struct{ ch chan struct{} }

func newChanMutex() chanMutex {
	m := chanMutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

func (m chanMutex) Lock()   { <-m.ch }
func (m chanMutex) Unlock() { m.ch <- struct{}{} }

// New constructs an Orchestrator over deps.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		mu:       newChanMutex(),
		controls: make(map[string]*sessionControl),
	}
}

// Pause requests session sessionID pause at its next cooperative checkpoint.
func (o *Orchestrator) Pause(sessionID string) error {
	return o.send(sessionID, cmdPause)
}

// Resume requests a paused session resume.
func (o *Orchestrator) Resume(sessionID string) error {
	return o.send(sessionID, cmdResume)
}

// Cancel cancels session sessionID immediately: its context is cancelled,
// aborting any in-flight call, and a cancel command is queued for the next
// checkpoint.
func (o *Orchestrator) Cancel(sessionID string) error {
	o.mu.Lock()
	ctrl, ok := o.controls[sessionID]
	o.mu.Unlock()
	if !ok {
		return debate.NewAPIError(debate.ErrNotFound, "no running session "+sessionID)
	}
	ctrl.cancel()
	select {
	case ctrl.commands <- cmdCancel:
	default:
	}
	return nil
}

func (o *Orchestrator) send(sessionID string, cmd command) error {
	o.mu.Lock()
	ctrl, ok := o.controls[sessionID]
	o.mu.Unlock()
	if !ok {
		return debate.NewAPIError(debate.ErrNotFound, "no running session "+sessionID)
	}
	select {
	case ctrl.commands <- cmd:
		return nil
	default:
		return debate.NewAPIError(debate.ErrInvalidState, "session command mailbox full")
	}
}

func (o *Orchestrator) register(sessionID string, cancel context.CancelFunc) *sessionControl {
	ctrl := &sessionControl{commands: make(chan command, 4), cancel: cancel}
	o.mu.Lock()
	o.controls[sessionID] = ctrl
	o.mu.Unlock()
	return ctrl
}

func (o *Orchestrator) unregister(sessionID string) {
	o.mu.Lock()
	delete(o.controls, sessionID)
	o.mu.Unlock()
}

// checkpoint drains pending commands and blocks while paused. It returns an
// error if the session was cancelled or the context expired.
func (o *Orchestrator) checkpoint(ctx context.Context, ctrl *sessionControl) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-ctrl.commands:
			switch cmd {
			case cmdCancel:
				return errCancelled
			case cmdPause:
				if err := o.waitForResumeOrCancel(ctx, ctrl); err != nil {
					return err
				}
			case cmdResume:
				// already running; ignore stray resume
			}
		default:
			return nil
		}
	}
}

func (o *Orchestrator) waitForResumeOrCancel(ctx context.Context, ctrl *sessionControl) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-ctrl.commands:
			switch cmd {
			case cmdCancel:
				return errCancelled
			case cmdResume:
				return nil
			case cmdPause:
				// already paused; keep waiting
			}
		}
	}
}

type orchestratorError string

func (e orchestratorError) Error() string { return string(e) }

const errCancelled = orchestratorError("session cancelled")

// Run drives session from its current phase through to a terminal status.
// It blocks until the session reaches COMPLETED, FAILED, or CANCELLED.
func (o *Orchestrator) Run(parent context.Context, session *debate.Session, budget *resilience.Budget) error {
	deadline := time.Now().Add(session.Config.SessionBudget)
	ctx, cancel := context.WithDeadline(parent, deadline)
	defer cancel()

	ctrl := o.register(session.ID, cancel)
	defer o.unregister(session.ID)

	session.Lock()
	session.Status = debate.StatusRunning
	session.StartedAt = time.Now()
	session.Unlock()
	o.deps.Observers.SessionStarted(session.ID, session.StartedAt)

	err := o.runPipeline(ctx, session, ctrl, budget)

	session.Lock()
	session.EndedAt = time.Now()
	session.Stats.Duration = session.EndedAt.Sub(session.StartedAt)
	switch {
	case err == nil:
		session.Status = debate.StatusCompleted
		session.CurrentPhase = debate.PhaseCompleted
	case err == errCancelled || ctx.Err() == context.Canceled:
		session.Status = debate.StatusCancelled
		session.FailReason = "cancelled by operator"
	case ctx.Err() == context.DeadlineExceeded:
		session.Status = debate.StatusFailed
		session.FailReason = "session budget exhausted"
	default:
		session.Status = debate.StatusFailed
		session.FailReason = err.Error()
	}
	finalStatus := session.Status
	session.Unlock()

	o.deps.Observers.SessionEnded(session.ID, finalStatus, session.EndedAt)

	if finalStatus == debate.StatusCompleted || finalStatus == debate.StatusCancelled {
		return nil // cancellation is a normal, successful termination of Run
	}
	return err
}

func (o *Orchestrator) runPipeline(ctx context.Context, session *debate.Session, ctrl *sessionControl, budget *resilience.Budget) error {
	if err := o.enterPhase(ctx, session, ctrl, debate.PhaseOpening); err != nil {
		return err
	}
	if err := o.runTurnOrderPhase(ctx, session, ctrl, budget, debate.PhaseOpening, nil); err != nil {
		return err
	}

	if err := o.enterPhase(ctx, session, ctrl, debate.PhaseFirstRound); err != nil {
		return err
	}
	scores, err := o.runRoundPhase(ctx, session, ctrl, budget, debate.PhaseFirstRound)
	if err != nil {
		return err
	}

	terminatedEarly := false
	for roundIdx := 2; roundIdx <= session.Config.MaxRounds; roundIdx++ {
		session.RLock()
		decision := session.CurrentRound().Decision
		session.RUnlock()
		if decision == debate.DecisionTerminateEarly {
			terminatedEarly = true
			break
		}
		if roundIdx > session.Config.MinRounds && decision == debate.DecisionReduce {
			break
		}

		if err := o.enterPhase(ctx, session, ctrl, debate.PhaseRebuttal); err != nil {
			return err
		}
		scores, err = o.runRoundPhase(ctx, session, ctrl, budget, debate.PhaseRebuttal)
		if err != nil {
			return err
		}
	}

	if !terminatedEarly {
		if err := o.enterPhase(ctx, session, ctrl, debate.PhaseCrossExamination); err != nil {
			return err
		}
		if err := o.runTurnOrderPhase(ctx, session, ctrl, budget, debate.PhaseCrossExamination, scores); err != nil {
			return err
		}

		if err := o.enterPhase(ctx, session, ctrl, debate.PhaseClosing); err != nil {
			return err
		}
		if err := o.runTurnOrderPhase(ctx, session, ctrl, budget, debate.PhaseClosing, nil); err != nil {
			return err
		}
	}

	if err := o.enterPhase(ctx, session, ctrl, debate.PhaseJudgment); err != nil {
		return err
	}
	if err := o.runTurnOrderPhase(ctx, session, ctrl, budget, debate.PhaseJudgment, scores); err != nil {
		return err
	}

	o.finalizeJudgment(session)
	return nil
}

func (o *Orchestrator) enterPhase(ctx context.Context, session *debate.Session, ctrl *sessionControl, phase debate.Phase) error {
	if err := o.checkpoint(ctx, ctrl); err != nil {
		return err
	}
	session.Lock()
	if !debate.CanTransition(session.CurrentPhase, phase) {
		session.Unlock()
		return fmt.Errorf("illegal phase transition %s -> %s", session.CurrentPhase, phase)
	}
	session.CurrentPhase = phase
	session.Unlock()

	o.rotateAssignments(session)

	o.deps.Observers.PhaseEntered(session.ID, phase, time.Now())
	return nil
}

// runTurnOrderPhase runs exactly one pass of phase's turn order (OPENING,
// CLOSING, CROSS_EXAMINATION, JUDGMENT).
func (o *Orchestrator) runTurnOrderPhase(ctx context.Context, session *debate.Session, ctrl *sessionControl, budget *resilience.Budget, phase debate.Phase, prevScores map[debate.Role]float64) error {
	order := debate.NextSpeakers(phase, session.DebaterRoles(), prevScores)
	for _, role := range order {
		if err := o.checkpoint(ctx, ctrl); err != nil {
			return err
		}
		if err := o.produceTurn(ctx, session, role, phase, budget); err != nil {
			return err
		}
	}
	return nil
}

// runRoundPhase runs one round's worth of turns for FIRST_ROUND/REBUTTAL
// (one utterance per debater), then consults the round manager to decide
// the round's disposition. Returns the per-debater strength scores from
// this round for CROSS_EXAMINATION's asker selection.
func (o *Orchestrator) runRoundPhase(ctx context.Context, session *debate.Session, ctrl *sessionControl, budget *resilience.Budget, phase debate.Phase) (map[debate.Role]float64, error) {
	session.Lock()
	round := session.CurrentRound()
	if len(round.Turns) > 0 {
		round = session.StartNewRound()
	}
	roundIndex := round.Index
	session.Unlock()

	order := debate.NextSpeakers(phase, session.DebaterRoles(), nil)
	for _, role := range order {
		if err := o.checkpoint(ctx, ctrl); err != nil {
			return nil, err
		}
		if err := o.produceTurn(ctx, session, role, phase, budget); err != nil {
			return nil, err
		}
	}

	session.Lock()
	elapsed := time.Since(session.StartedAt)
	elapsedFraction := 0.0
	if session.Config.SessionBudget > 0 {
		elapsedFraction = float64(elapsed) / float64(session.Config.SessionBudget)
	}
	previous := session.Rounds[:len(session.Rounds)-1]
	o.deps.Rounds.Evaluate(roundIndex, round, elapsedFraction, previous)
	scores := make(map[debate.Role]float64, len(round.Turns))
	for _, t := range round.Turns {
		scores[t.Role] = t.Argument.Strength
	}
	session.Unlock()

	o.deps.Observers.RoundClosed(session.ID, round)
	return scores, nil
}

// produceTurn is the per-turn algorithm: compose the prompt against the
// role's assignment fixed for this phase, invoke resiliently with a
// role-swap-then-retry-once fallback, append the turn, analyze it, and
// update pool stats. Rotation itself never happens here — only at phase
// boundaries, in rotateAssignments.
func (o *Orchestrator) produceTurn(ctx context.Context, session *debate.Session, role debate.Role, phase debate.Phase, budget *resilience.Budget) error {
	session.Lock()
	modelID := session.Assignment[role]
	cfg := session.Config
	transcript := compressTranscript(session.AllTurns(), cfg.TranscriptTokenCeiling)
	session.Unlock()

	prompt := composePrompt(session.Topic, role, phase, transcript)

	turnCtx, cancel := resilience.WithDeadline(ctx, cfg.TurnDeadline)
	defer cancel()

	start := time.Now()
	completion, err := o.deps.Resilience.Invoke(turnCtx, modelID, string(role), prompt, budget)
	if err != nil {
		// Role-swap-then-retry-once: force a rotation and try exactly one
		// more time before failing the turn.
		if swapped := o.forceRotate(session, role, modelID); swapped != "" {
			completion, err = o.deps.Resilience.Invoke(turnCtx, swapped, string(role), prompt, budget)
			modelID = swapped
		}
	}
	latency := time.Since(start)

	if err != nil {
		session.Lock()
		session.Stats.ErrorCount++
		session.Unlock()
		o.deps.Pool.RecordOutcome(modelID, false, latency, 0)
		return fmt.Errorf("turn for role %s failed: %w", role, err)
	}

	record := o.deps.Analyzer.Analyze(completion.Text)

	turn := &debate.Turn{
		Role:      role,
		ModelID:   modelID,
		Phase:     phase,
		Content:   completion.Text,
		Timestamp: time.Now(),
		Latency:   latency,
		Tokens:    completion.InputTokens + completion.OutputTokens,
		Argument:  record,
	}

	session.Lock()
	turn.Index = session.TotalTurns()
	round := session.CurrentRound()
	round.Turns = append(round.Turns, turn)
	session.Stats.InputTokens += completion.InputTokens
	session.Stats.OutputTokens += completion.OutputTokens
	session.Unlock()

	o.deps.Pool.RecordOutcome(modelID, true, latency, record.Strength)
	o.deps.Observers.TurnCompleted(session.ID, turn)
	return nil
}

// rotateAssignments is the only place model-assignment changes happen: it
// runs once per phase entry, never between turns within the same phase, so
// the role→model mapping is constant for the whole phase. Every currently
// assigned role is checked in two ways: first for an open breaker on its
// model (an active outage takes priority and bypasses the rotation
// strategy's own gating), then for a normal strategy-driven rotation.
func (o *Orchestrator) rotateAssignments(session *debate.Session) {
	session.Lock()
	cfg := session.Config
	assignment := make(map[debate.Role]string, len(session.Assignment))
	for role, model := range session.Assignment {
		assignment[role] = model
	}
	session.Unlock()

	for role, modelID := range assignment {
		if o.deps.Resilience.IsOpenForRole(modelID, string(role)) {
			pool := o.candidatePool(cfg.RotationStrategy, modelID)
			if replacement := o.pickHealthyReplacement(role, modelID, pool); replacement != "" {
				o.applyRotation(session, &modelpool.RotationProposal{
					Role:       role,
					OldModel:   modelID,
					NewModel:   replacement,
					Reason:     "breaker open for currently assigned model",
					Confidence: 1.0,
				}, cfg.RotationStrategy)
			}
			continue
		}

		pool := o.candidatePool(cfg.RotationStrategy, modelID)
		proposal := o.deps.Rotation.Evaluate(cfg.RotationStrategy, role, modelID, pool, cfg.MinCallsBeforeRotation)
		if proposal == nil {
			continue
		}
		o.applyRotation(session, proposal, cfg.RotationStrategy)
	}
}

// candidatePool scopes the pool passed to the rotation engine: ROUND_ROBIN
// rotates among models of the same declared tier (approximated here by
// shared tags), every other strategy considers the whole known pool.
func (o *Orchestrator) candidatePool(strategy debate.RotationStrategy, currentModel string) []string {
	if strategy == debate.RotationRoundRobin {
		return o.deps.Pool.SameTier(currentModel)
	}
	return o.deps.Pool.Known()
}

// pickHealthyReplacement returns the highest-CompositeScore candidate for
// role, other than currentModel, whose breaker is not open — ignoring the
// rotation strategy's own performance margin entirely. Used for the
// emergency role-swap after a call failure and for the proactive
// breaker-open check at phase boundaries, both of which need "any healthy
// model" rather than "a meaningfully better one".
func (o *Orchestrator) pickHealthyReplacement(role debate.Role, currentModel string, pool []string) string {
	var best string
	bestScore := -1.0
	for _, candidate := range pool {
		if candidate == currentModel {
			continue
		}
		if o.deps.Resilience.IsOpenForRole(candidate, string(role)) {
			continue
		}
		score := o.deps.Pool.RecordFor(candidate).CompositeScore(o.deps.Rotation.LatencyCeiling)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	return best
}

// forceRotate is the emergency role-swap after an ultimate call failure: it
// must recover from an active outage, not optimise for performance, so it
// ignores the rotation strategy's margin gating and takes any breaker-healthy
// replacement.
func (o *Orchestrator) forceRotate(session *debate.Session, role debate.Role, currentModel string) string {
	pool := o.deps.Pool.Known()
	replacement := o.pickHealthyReplacement(role, currentModel, pool)
	if replacement == "" {
		return ""
	}
	o.applyRotation(session, &modelpool.RotationProposal{
		Role:       role,
		OldModel:   currentModel,
		NewModel:   replacement,
		Reason:     "emergency role-swap after call failure",
		Confidence: 1.0,
	}, debate.RotationPerformanceBased)
	return replacement
}

func (o *Orchestrator) applyRotation(session *debate.Session, proposal *modelpool.RotationProposal, strategy debate.RotationStrategy) {
	session.Lock()
	session.Assignment[proposal.Role] = proposal.NewModel
	event := debate.RotationEvent{
		Role:                proposal.Role,
		OldModel:            proposal.OldModel,
		NewModel:            proposal.NewModel,
		Reason:              proposal.Reason,
		Confidence:          proposal.Confidence,
		ExpectedImprovement: proposal.ExpectedImprovement,
		Strategy:            strategy,
		AtPhase:             session.CurrentPhase,
		Timestamp:           time.Now(),
	}
	session.Unlock()
	o.deps.Observers.RotationApplied(session.ID, event)
}

// finalizeJudgment derives a simple winner from each debater's average
// argument strength across the whole transcript; the judge's own turns are
// not consulted. This is a lightweight summary; the full multi-perspective
// judgment is produced separately by the analytics package.
func (o *Orchestrator) finalizeJudgment(session *debate.Session) {
	session.Lock()
	defer session.Unlock()

	totals := make(map[debate.Role]float64)
	counts := make(map[debate.Role]int)
	for _, t := range session.AllTurns() {
		if t.Role == debate.RoleJudge {
			continue
		}
		totals[t.Role] += t.Argument.Strength
		counts[t.Role]++
	}

	var winner debate.Role
	best := -1.0
	second := -1.0
	for _, role := range session.DebaterRoles() {
		avg := 0.0
		if counts[role] > 0 {
			avg = totals[role] / float64(counts[role])
		}
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

	session.FinalJudge = &debate.Judgment{
		Winner:     winner,
		Confidence: best,
		Margin:     best - second,
		Rationale:  fmt.Sprintf("highest average argument strength across the transcript (%.2f)", best),
	}
}

func composePrompt(topic string, role debate.Role, phase debate.Phase, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nPhase: %s\nYour role: %s\n\n", topic, phase, role)
	if transcript != "" {
		b.WriteString("Transcript so far:\n")
		b.WriteString(transcript)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond as your role for this phase.")
	return b.String()
}

// compressTranscript keeps the most recent turns whose combined content
// stays under ceilingTokens*4 characters, dropping the oldest turns first
// (spec §4.6: "transcript compression at transcript_token_ceiling"); the
// newest turn is always kept, even if it alone exceeds that. Four
// characters per token is used as a proxy to avoid pulling in a
// tokenizer dependency the corpus does not otherwise use.
func compressTranscript(turns []*debate.Turn, ceilingTokens int) string {
	if len(turns) == 0 {
		return ""
	}
	ceilingChars := ceilingTokens * 4
	var kept []string
	total := 0
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		entry := fmt.Sprintf("[%s] %s", t.Role, t.Content)
		if total+len(entry) > ceilingChars && len(kept) > 0 {
			break
		}
		kept = append([]string{entry}, kept...)
		total += len(entry)
	}
	return strings.Join(kept, "\n")
}
