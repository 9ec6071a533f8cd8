package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasicdigital/debateforge/internal/analyzer"
	"github.com/vasicdigital/debateforge/internal/debate"
	"github.com/vasicdigital/debateforge/internal/llmclient"
	"github.com/vasicdigital/debateforge/internal/modelpool"
	"github.com/vasicdigital/debateforge/internal/observer"
	"github.com/vasicdigital/debateforge/internal/resilience"
	"github.com/vasicdigital/debateforge/internal/roundmanager"
)

func newTestOrchestrator(t *testing.T, mock *llmclient.MockClient) (*Orchestrator, *observer.RecordingObserver) {
	t.Helper()
	pool := modelpool.NewPool()
	pool.Register(modelpool.ModelInfo{ID: "model-a"})
	pool.Register(modelpool.ModelInfo{ID: "model-b"})
	pool.Register(modelpool.ModelInfo{ID: "model-judge"})

	rec := &observer.RecordingObserver{}
	dispatcher := observer.NewDispatcher()
	dispatcher.Subscribe(rec)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	deps := Deps{
		Pool:       pool,
		Rotation:   modelpool.NewEngine(pool, time.Second),
		Resilience: resilience.NewManager(mock, resilience.DefaultBreakerConfig(), resilience.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, CapDelay: time.Millisecond}),
		Analyzer:   analyzer.New(debate.DefaultStrengthWeights()),
		Rounds:     roundmanager.New(roundmanager.DefaultWeights(), 1, 2),
		Observers:  dispatcher,
		Logger:     logger,
	}
	return New(deps), rec
}

func testSession() *debate.Session {
	cfg := debate.DefaultConfig()
	cfg.MinRounds = 1
	cfg.MaxRounds = 2
	cfg.SessionBudget = 5 * time.Second
	cfg.TurnDeadline = time.Second
	cfg.MinCallsBeforeRotation = 1000 // avoid rotation churn in the happy-path test
	assignment := map[debate.Role]string{
		debate.DebaterRole(0): "model-a",
		debate.DebaterRole(1): "model-b",
		debate.RoleJudge:      "model-judge",
	}
	return debate.NewSession("sess-1", "Should Go have generics?", nil, assignment, cfg)
}

func TestOrchestratorRunsSessionToCompletion(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{
		Text:         "First, this is a well-formed argument. Therefore, because the evidence shows a 42 percent improvement, the point stands.",
		InputTokens:  10,
		OutputTokens: 20,
		FinishReason: "stop",
	})
	orc, rec := newTestOrchestrator(t, mock)
	session := testSession()

	err := orc.Run(context.Background(), session, resilience.NewBudget(50))
	require.NoError(t, err)

	assert.Equal(t, debate.StatusCompleted, session.Status)
	assert.Equal(t, debate.PhaseCompleted, session.CurrentPhase)
	assert.NotNil(t, session.FinalJudge)
	assert.Greater(t, session.TotalTurns(), 0)
	assert.Contains(t, rec.Events, "started:sess-1")
	assert.Contains(t, rec.Events, "ended:completed")
}

func TestOrchestratorCancellationStopsSession(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "some content here", FinishReason: "stop"})
	mock.Delay = 200 * time.Millisecond
	orc, _ := newTestOrchestrator(t, mock)
	session := testSession()

	done := make(chan error, 1)
	go func() { done <- orc.Run(context.Background(), session, resilience.NewBudget(50)) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, orc.Cancel(session.ID))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("orchestrator did not stop after cancel")
	}
	assert.Equal(t, debate.StatusCancelled, session.Status)
}

// TestRotateAssignmentsDoesNotRunMidPhase verifies the phase-boundary
// invariant directly: running the OPENING turn order (two produceTurn calls
// inside a single enterPhase window) under a strategy that would rotate on
// every eligible call must leave the assignment exactly as enterPhase set it.
func TestRotateAssignmentsDoesNotRunMidPhase(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "a well-formed point, because evidence supports it", FinishReason: "stop"})
	orc, _ := newTestOrchestrator(t, mock)
	orc.deps.Pool.Register(modelpool.ModelInfo{ID: "model-c"})

	session := testSession()
	session.Config.RotationStrategy = debate.RotationRoundRobin
	session.Config.MinCallsBeforeRotation = 0

	require.NoError(t, orc.enterPhase(context.Background(), session, &sessionControl{commands: make(chan command, 1)}, debate.PhaseOpening))
	snapshot := map[debate.Role]string{}
	session.Lock()
	for role, model := range session.Assignment {
		snapshot[role] = model
	}
	session.Unlock()

	require.NoError(t, orc.runTurnOrderPhase(context.Background(), session, &sessionControl{commands: make(chan command, 1)}, resilience.NewBudget(10), debate.PhaseOpening, nil))

	session.Lock()
	defer session.Unlock()
	for role, model := range snapshot {
		assert.Equal(t, model, session.Assignment[role], "role %s assignment changed mid-phase", role)
	}
}

// TestForceRotateIgnoresPerformanceMarginAndPicksHealthyModel verifies the
// emergency swap after a call failure never returns "" just because no
// candidate clears PERFORMANCE_BASED's margin over an incumbent whose
// failure has not yet been recorded to the pool.
func TestForceRotateIgnoresPerformanceMarginAndPicksHealthyModel(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "content", FinishReason: "stop"})
	orc, _ := newTestOrchestrator(t, mock)

	role := debate.DebaterRole(0)
	// model-a has a perfect record; a naive PERFORMANCE_BASED evaluation
	// would never propose replacing it since nothing yet beats its score.
	orc.deps.Pool.RecordOutcome("model-a", true, time.Millisecond, 0.9)

	replacement := orc.forceRotate(testSession(), role, "model-a")
	assert.NotEmpty(t, replacement)
	assert.NotEqual(t, "model-a", replacement)
}

// TestForceRotateSkipsModelsWithOpenBreakers verifies the emergency swap
// never hands the retry to another model that is itself in an open-breaker
// outage.
func TestForceRotateSkipsModelsWithOpenBreakers(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "content", FinishReason: "stop"})
	orc, _ := newTestOrchestrator(t, mock)

	role := debate.DebaterRole(0)
	breaker := orc.deps.Resilience.Breakers.Get(resilience.BreakerKey{ModelID: "model-b", Family: string(role)})
	for i := 0; i < resilience.DefaultBreakerConfig().Window; i++ {
		breaker.Allow()
		breaker.RecordResult(false)
	}
	require.True(t, orc.deps.Resilience.IsOpenForRole("model-b", string(role)))

	replacement := orc.forceRotate(testSession(), role, "model-a")
	assert.Equal(t, "model-judge", replacement)
}

// TestRotateAssignmentsSwapsAwayFromOpenBreaker verifies the proactive
// breaker-open check: a role currently pointed at a tripped-breaker model
// gets reassigned at the next phase boundary, before another guaranteed
// failure.
func TestRotateAssignmentsSwapsAwayFromOpenBreaker(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "content", FinishReason: "stop"})
	orc, _ := newTestOrchestrator(t, mock)

	role := debate.DebaterRole(0)
	breaker := orc.deps.Resilience.Breakers.Get(resilience.BreakerKey{ModelID: "model-a", Family: string(role)})
	for i := 0; i < resilience.DefaultBreakerConfig().Window; i++ {
		breaker.Allow()
		breaker.RecordResult(false)
	}

	session := testSession()
	orc.rotateAssignments(session)

	session.Lock()
	defer session.Unlock()
	assert.NotEqual(t, "model-a", session.Assignment[role])
}

func TestOrchestratorSessionBudgetExhaustionFails(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "content", FinishReason: "stop"})
	mock.Delay = 100 * time.Millisecond
	orc, _ := newTestOrchestrator(t, mock)
	session := testSession()
	session.Config.SessionBudget = 10 * time.Millisecond

	err := orc.Run(context.Background(), session, resilience.NewBudget(50))
	assert.Error(t, err)
	assert.Equal(t, debate.StatusFailed, session.Status)
	assert.Equal(t, "session budget exhausted", session.FailReason)
}
