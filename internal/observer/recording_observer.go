package observer

import (
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// RecordingObserver is a deterministic test double; exported so
// orchestrator tests can assert on delivered event order.
type RecordingObserver struct {
	Events []string
}

func (r *RecordingObserver) SessionStarted(sessionID string, at time.Time) {
	r.Events = append(r.Events, "started:"+sessionID)
}
func (r *RecordingObserver) PhaseEntered(sessionID string, phase debate.Phase, at time.Time) {
	r.Events = append(r.Events, "phase:"+string(phase))
}
func (r *RecordingObserver) TurnCompleted(sessionID string, turn *debate.Turn) {
	r.Events = append(r.Events, "turn:"+string(turn.Role))
}
func (r *RecordingObserver) RoundClosed(sessionID string, round *debate.Round) {
	r.Events = append(r.Events, "round-closed")
}
func (r *RecordingObserver) RotationApplied(sessionID string, event debate.RotationEvent) {
	r.Events = append(r.Events, "rotation:"+string(event.Role))
}
func (r *RecordingObserver) SessionEnded(sessionID string, status debate.Status, at time.Time) {
	r.Events = append(r.Events, "ended:"+string(status))
}
