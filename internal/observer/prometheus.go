package observer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vasicdigital/debateforge/internal/debate"
	"github.com/vasicdigital/debateforge/internal/resilience"
)

// Package-level metrics, registered once, grounded on the teacher's
// circuit_breaker_monitor.go initCBMMetrics pattern.
var (
	promMetricsOnce       sync.Once
	sessionsStartedTotal  prometheus.Counter
	sessionsEndedTotal    *prometheus.CounterVec
	turnsCompletedTotal   *prometheus.CounterVec
	roundsClosedTotal     prometheus.Counter
	rotationsAppliedTotal *prometheus.CounterVec
	activePhaseGauge      *prometheus.GaugeVec
	breakerStateGauge     *prometheus.GaugeVec
)

func initPromMetrics() {
	promMetricsOnce.Do(func() {
		sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "debateforge_sessions_started_total",
			Help: "Total number of debate sessions started.",
		})
		sessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "debateforge_sessions_ended_total",
			Help: "Total number of debate sessions ended, by terminal status.",
		}, []string{"status"})
		turnsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "debateforge_turns_completed_total",
			Help: "Total number of turns completed, by role.",
		}, []string{"role"})
		roundsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "debateforge_rounds_closed_total",
			Help: "Total number of rounds closed across all sessions.",
		})
		rotationsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "debateforge_rotations_applied_total",
			Help: "Total number of model rotations applied, by role.",
		}, []string{"role"})
		activePhaseGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "debateforge_sessions_in_phase",
			Help: "Number of sessions currently in each phase.",
		}, []string{"phase"})
		breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "debateforge_breaker_state",
			Help: "Circuit breaker state per (model, family): 0=closed, 1=half_open, 2=open.",
		}, []string{"model_id", "family"})
	})
}

// WatchBreakers registers a listener on table so every breaker state
// transition, present and future, updates breakerStateGauge without
// polling, grounded on the teacher's circuit_breaker_monitor.go pattern of
// reacting to breaker events rather than sampling breaker state on a timer.
func (p *PromObserver) WatchBreakers(table *resilience.Table) {
	table.OnStateChange(func(key resilience.BreakerKey, old, new resilience.BreakerState) {
		breakerStateGauge.WithLabelValues(key.ModelID, key.Family).Set(breakerStateValue(new))
	})
}

func breakerStateValue(s resilience.BreakerState) float64 {
	switch s {
	case resilience.BreakerHalfOpen:
		return 1
	case resilience.BreakerOpen:
		return 2
	default:
		return 0
	}
}

// PromObserver reports lifecycle events as Prometheus metrics.
type PromObserver struct {
	mu           sync.Mutex
	sessionPhase map[string]debate.Phase
}

// NewPromObserver registers metrics (once, process-wide) and returns an
// Observer backed by them.
func NewPromObserver() *PromObserver {
	initPromMetrics()
	return &PromObserver{sessionPhase: make(map[string]debate.Phase)}
}

func (p *PromObserver) SessionStarted(sessionID string, at time.Time) {
	sessionsStartedTotal.Inc()
}

func (p *PromObserver) PhaseEntered(sessionID string, phase debate.Phase, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.sessionPhase[sessionID]; ok {
		activePhaseGauge.WithLabelValues(string(old)).Dec()
	}
	p.sessionPhase[sessionID] = phase
	activePhaseGauge.WithLabelValues(string(phase)).Inc()
}

func (p *PromObserver) TurnCompleted(sessionID string, turn *debate.Turn) {
	turnsCompletedTotal.WithLabelValues(string(turn.Role)).Inc()
}

func (p *PromObserver) RoundClosed(sessionID string, round *debate.Round) {
	roundsClosedTotal.Inc()
}

func (p *PromObserver) RotationApplied(sessionID string, event debate.RotationEvent) {
	rotationsAppliedTotal.WithLabelValues(string(event.Role)).Inc()
}

func (p *PromObserver) SessionEnded(sessionID string, status debate.Status, at time.Time) {
	sessionsEndedTotal.WithLabelValues(string(status)).Inc()
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.sessionPhase[sessionID]; ok {
		activePhaseGauge.WithLabelValues(string(old)).Dec()
		delete(p.sessionPhase, sessionID)
	}
}
