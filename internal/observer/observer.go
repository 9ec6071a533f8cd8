// Package observer implements the push-based progress notification
// contract: observers receive an ordered, at-least-once stream of events
// per session and must tolerate duplicate delivery.
package observer

import (
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// Observer receives debate lifecycle events. Implementations must be safe
// for concurrent use and must not block the orchestrator for long — the
// dispatcher invokes each observer synchronously per event.
type Observer interface {
	SessionStarted(sessionID string, at time.Time)
	PhaseEntered(sessionID string, phase debate.Phase, at time.Time)
	TurnCompleted(sessionID string, turn *debate.Turn)
	RoundClosed(sessionID string, round *debate.Round)
	RotationApplied(sessionID string, event debate.RotationEvent)
	SessionEnded(sessionID string, status debate.Status, at time.Time)
}

// MaxObservers bounds subscriber registration per dispatcher, mirroring the
// teacher's listener-cap pattern (internal/resilience.MaxBreakerListeners
// and the teacher's CircuitBreakerMonitor.listeners guard).
const MaxObservers = 50

// Dispatcher fans one session's events out to every registered observer.
// It does not itself provide ordering across sessions, only within one.
type Dispatcher struct {
	observers []Observer
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{observers: make([]Observer, 0, 4)}
}

// Subscribe registers o; returns false if the cap has been reached.
func (d *Dispatcher) Subscribe(o Observer) bool {
	if len(d.observers) >= MaxObservers {
		return false
	}
	d.observers = append(d.observers, o)
	return true
}

func (d *Dispatcher) SessionStarted(sessionID string, at time.Time) {
	for _, o := range d.observers {
		o.SessionStarted(sessionID, at)
	}
}

func (d *Dispatcher) PhaseEntered(sessionID string, phase debate.Phase, at time.Time) {
	for _, o := range d.observers {
		o.PhaseEntered(sessionID, phase, at)
	}
}

func (d *Dispatcher) TurnCompleted(sessionID string, turn *debate.Turn) {
	for _, o := range d.observers {
		o.TurnCompleted(sessionID, turn)
	}
}

func (d *Dispatcher) RoundClosed(sessionID string, round *debate.Round) {
	for _, o := range d.observers {
		o.RoundClosed(sessionID, round)
	}
}

func (d *Dispatcher) RotationApplied(sessionID string, event debate.RotationEvent) {
	for _, o := range d.observers {
		o.RotationApplied(sessionID, event)
	}
}

func (d *Dispatcher) SessionEnded(sessionID string, status debate.Status, at time.Time) {
	for _, o := range d.observers {
		o.SessionEnded(sessionID, status, at)
	}
}
