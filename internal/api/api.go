// Package api implements the session lifecycle API: the programmatic
// boundary that createSession/startSession/etc. expose, sitting above
// internal/orchestrator and internal/analytics. Transports (HTTP, CLI) are
// collaborators over this package, never the other way around.
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vasicdigital/debateforge/internal/analytics"
	"github.com/vasicdigital/debateforge/internal/debate"
	"github.com/vasicdigital/debateforge/internal/orchestrator"
	"github.com/vasicdigital/debateforge/internal/resilience"
)

// PersistenceSink is the storage boundary the core needs a collaborator to
// fill. No concrete schema is prescribed; the core only ever needs to
// append immutable facts. A nil sink is valid and simply means the process
// is the only copy of session state.
type PersistenceSink interface {
	SessionStarted(session *debate.Session)
	TurnAppended(sessionID string, turn *debate.Turn)
	RoundClosed(sessionID string, round *debate.Round)
	RotationApplied(sessionID string, event debate.RotationEvent)
	SessionEnded(session *debate.Session)
}

// CreateSessionRequest is the input to CreateSession.
type CreateSessionRequest struct {
	Topic            string
	Reference        []byte
	RoleCount        int
	RotationStrategy debate.RotationStrategy // zero value means "use default"
	MaxRounds        int                     // zero value means "use default"
	TotalBudget      time.Duration           // zero value means "use default"
	ModelAssignment  map[debate.Role]string  // required: must be non-empty; roles missing from it are not rejected
}

// entry is the registry's bookkeeping for one session: the session itself
// plus whatever analytics have been computed for it so far.
type entry struct {
	session   *debate.Session
	analytics *analytics.Report
	runBudget *resilience.Budget
	runResult chan error
}

// API is the process-wide session registry and lifecycle boundary. It is
// safe for concurrent use.
type API struct {
	mu           sync.RWMutex
	sessions     map[string]*entry
	orchestrator *orchestrator.Orchestrator
	sink         PersistenceSink
	logger       *logrus.Logger
	baseConfig   debate.Config
}

// New constructs an API bound to orc for execution and sink for
// persistence (sink may be nil).
func New(orc *orchestrator.Orchestrator, sink PersistenceSink, baseConfig debate.Config, logger *logrus.Logger) *API {
	if logger == nil {
		logger = logrus.New()
	}
	return &API{
		sessions:     make(map[string]*entry),
		orchestrator: orc,
		sink:         sink,
		logger:       logger,
		baseConfig:   baseConfig,
	}
}

// CreateSession validates req and creates a pending session, returning its
// id and initial role→model assignment.
func (a *API) CreateSession(req CreateSessionRequest) (string, map[debate.Role]string, error) {
	if req.Topic == "" {
		return "", nil, debate.NewAPIError(debate.ErrInvalidConfig, "topic is required")
	}
	if req.RoleCount < 2 {
		return "", nil, debate.NewAPIError(debate.ErrInvalidConfig, "role count must be >= 2")
	}
	if len(req.ModelAssignment) == 0 {
		return "", nil, debate.NewAPIError(debate.ErrInvalidConfig, "at least one model assignment is required")
	}

	cfg := a.baseConfig
	cfg.DebaterCount = req.RoleCount
	if req.RotationStrategy != "" {
		cfg.RotationStrategy = req.RotationStrategy
	}
	if req.MaxRounds > 0 {
		cfg.MaxRounds = req.MaxRounds
		if cfg.MinRounds > cfg.MaxRounds {
			cfg.MinRounds = cfg.MaxRounds
		}
	}
	if req.TotalBudget > 0 {
		cfg.SessionBudget = req.TotalBudget
	}

	id := uuid.NewString()
	session := debate.NewSession(id, req.Topic, req.Reference, req.ModelAssignment, cfg)

	a.mu.Lock()
	a.sessions[id] = &entry{session: session}
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{"session_id": id, "topic": req.Topic}).Info("session created")
	return id, session.Assignment, nil
}

// StartSession launches session id asynchronously and returns immediately.
func (a *API) StartSession(sessionID string) error {
	e, err := a.lookup(sessionID)
	if err != nil {
		return err
	}

	e.session.Lock()
	if e.session.Status != debate.StatusPending {
		e.session.Unlock()
		return debate.NewAPIError(debate.ErrAlreadyStarted, "session "+sessionID+" already started")
	}
	e.session.Status = debate.StatusRunning
	e.session.Unlock()

	e.runBudget = resilience.NewBudget(e.session.Config.SessionRetryBudget)
	e.runResult = make(chan error, 1)

	if a.sink != nil {
		a.sink.SessionStarted(e.session)
	}

	go func() {
		err := a.orchestrator.Run(context.Background(), e.session, e.runBudget)
		if a.sink != nil {
			a.sink.SessionEnded(e.session)
		}
		e.runResult <- err
	}()
	return nil
}

// PauseSession requests a running session pause at its next checkpoint.
func (a *API) PauseSession(sessionID string) error {
	if _, err := a.lookup(sessionID); err != nil {
		return err
	}
	if err := a.orchestrator.Pause(sessionID); err != nil {
		return translateOrchestratorError(err)
	}
	return nil
}

// ResumeSession requests a paused session resume.
func (a *API) ResumeSession(sessionID string) error {
	if _, err := a.lookup(sessionID); err != nil {
		return err
	}
	if err := a.orchestrator.Resume(sessionID); err != nil {
		return translateOrchestratorError(err)
	}
	return nil
}

// CancelSession cancels a running session immediately, aborting any
// in-flight model call.
func (a *API) CancelSession(sessionID string) error {
	if _, err := a.lookup(sessionID); err != nil {
		return err
	}
	if err := a.orchestrator.Cancel(sessionID); err != nil {
		return translateOrchestratorError(err)
	}
	return nil
}

// translateOrchestratorError maps the orchestrator's own NOT_FOUND (raised
// when a session isn't currently registered as running, e.g. it already
// finished) onto INVALID_STATE at the API boundary, since the caller already
// knows the session id is valid by the time it gets here.
func translateOrchestratorError(err error) error {
	if apiErr, ok := err.(*debate.APIError); ok && apiErr.Kind == debate.ErrNotFound {
		return debate.NewAPIError(debate.ErrInvalidState, apiErr.Message)
	}
	return err
}

// GetSession returns a lock-consistent snapshot of session id.
func (a *API) GetSession(sessionID string) (debate.Session, error) {
	e, err := a.lookup(sessionID)
	if err != nil {
		return debate.Session{}, err
	}
	return e.session.Snapshot(), nil
}

// GetTranscript returns turns from index fromIndex (0 for the whole
// transcript) in chronological order.
func (a *API) GetTranscript(sessionID string, fromIndex int) ([]*debate.Turn, error) {
	e, err := a.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	e.session.RLock()
	defer e.session.RUnlock()
	all := e.session.AllTurns()
	if fromIndex >= len(all) {
		return []*debate.Turn{}, nil
	}
	if fromIndex < 0 {
		fromIndex = 0
	}
	out := make([]*debate.Turn, len(all)-fromIndex)
	copy(out, all[fromIndex:])
	return out, nil
}

// GetAnalytics runs (or returns cached) post-debate analytics for a
// completed session. Analytics are computed here, on the first request
// after the session completes, not when it enters JUDGMENT; anything short
// of StatusCompleted (in progress, cancelled, or failed) reports NOT_READY
// rather than analyzing whatever partial transcript happens to exist.
func (a *API) GetAnalytics(ctx context.Context, sessionID string) (*analytics.Report, error) {
	e, err := a.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.session.RLock()
	status := e.session.Status
	e.session.RUnlock()
	if status != debate.StatusCompleted {
		return nil, debate.NewAPIError(debate.ErrNotReady, "session "+sessionID+" has not finished")
	}

	a.mu.Lock()
	if e.analytics != nil {
		report := e.analytics
		a.mu.Unlock()
		return report, nil
	}
	a.mu.Unlock()

	report, err := analytics.Analyze(ctx, e.session)
	if err != nil {
		return nil, fmt.Errorf("analytics failed: %w", err)
	}

	a.mu.Lock()
	e.analytics = report
	a.mu.Unlock()
	return report, nil
}

// SetRotationStrategy changes the rotation strategy applied to future turns
// of a not-yet-completed session.
func (a *API) SetRotationStrategy(sessionID string, strategy debate.RotationStrategy) error {
	e, err := a.lookup(sessionID)
	if err != nil {
		return err
	}
	switch strategy {
	case debate.RotationFixed, debate.RotationRoundRobin, debate.RotationPerformanceBased,
		debate.RotationAdaptive, debate.RotationBalanced:
	default:
		return debate.NewAPIError(debate.ErrInvalidConfig, "unknown rotation strategy "+string(strategy))
	}

	e.session.Lock()
	defer e.session.Unlock()
	if e.session.Status.Terminal() {
		return debate.NewAPIError(debate.ErrInvalidState, "session "+sessionID+" already finished")
	}
	e.session.Config.RotationStrategy = strategy
	return nil
}

func (a *API) lookup(sessionID string) (*entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.sessions[sessionID]
	if !ok {
		return nil, debate.NewAPIError(debate.ErrNotFound, "no such session "+sessionID)
	}
	return e, nil
}
