// Package resilience implements the circuit breaker and retry policy layer.
// It wraps internal/llmclient; isolates failing upstreams per (model,
// logical role) and schedules bounded, jittered retries with a fallback to
// a secondary provider.
package resilience

import (
	"sync"
	"time"

	"github.com/vasicdigital/debateforge/internal/debate"
)

// BreakerState is one of closed/open/half-open.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerKey identifies one circuit breaker instance. Family is the
// logical role sharing the underlying model (e.g. "debater_A", "judge",
// "analyzer"), kept separate so an analyzer call never trips a debater's
// breaker for the same underlying provider.
type BreakerKey struct {
	ModelID string
	Family  string
}

// BreakerConfig configures rolling-window trip behaviour.
type BreakerConfig struct {
	Window      int           // N=20
	TripRate    float64       // >=50%
	MinFailures int           // at least 5 failures
	Cooldown    time.Duration // 30s
	CooldownMax time.Duration // 5min
}

// DefaultBreakerConfig returns the built-in trip/cooldown defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Window:      20,
		TripRate:    0.5,
		MinFailures: 5,
		Cooldown:    30 * time.Second,
		CooldownMax: 5 * time.Minute,
	}
}

// MaxBreakerListeners bounds listener registration to prevent leaks,
// mirroring the teacher's MaxCircuitBreakerListeners guard.
const MaxBreakerListeners = 100

// BreakerListener is invoked (outside the breaker's lock) on every state
// transition.
type BreakerListener func(key BreakerKey, old, new BreakerState)

// Breaker is a single (model, family) circuit breaker.
type Breaker struct {
	mu sync.Mutex

	key    BreakerKey
	cfg    BreakerConfig
	state  BreakerState
	window []bool // true = success, ring buffer of outcomes

	currentCooldown  time.Duration
	openedAt         time.Time
	halfOpenInFlight bool

	listeners      map[int]BreakerListener
	nextListenerID int
}

// NewBreaker constructs a closed breaker for key.
func NewBreaker(key BreakerKey, cfg BreakerConfig) *Breaker {
	return &Breaker{
		key:             key,
		cfg:             cfg,
		state:           BreakerClosed,
		window:          make([]bool, 0, cfg.Window),
		currentCooldown: cfg.Cooldown,
		listeners:       make(map[int]BreakerListener),
	}
}

// AddListener registers l for state-change notifications; returns -1 if the
// listener cap has been reached.
func (b *Breaker) AddListener(l BreakerListener) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.listeners) >= MaxBreakerListeners {
		return -1
	}
	id := b.nextListenerID
	b.nextListenerID++
	b.listeners[id] = l
	return id
}

// RemoveListener unregisters a listener by ID.
func (b *Breaker) RemoveListener(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call should be attempted right now. When it
// transitions open->half-open as a side effect, that transition is applied
// atomically with the decision so exactly one caller gets the probe slot.
func (b *Breaker) Allow() (bool, debate.FailureKind) {
	b.mu.Lock()
	switch b.state {
	case BreakerClosed:
		b.mu.Unlock()
		return true, ""

	case BreakerOpen:
		if time.Since(b.openedAt) >= b.currentCooldown {
			b.transitionLocked(BreakerHalfOpen)
			b.halfOpenInFlight = true
			b.mu.Unlock()
			return true, ""
		}
		b.mu.Unlock()
		return false, debate.FailureUnavailable

	case BreakerHalfOpen:
		if b.halfOpenInFlight {
			b.mu.Unlock()
			return false, debate.FailureUnavailable
		}
		b.halfOpenInFlight = true
		b.mu.Unlock()
		return true, ""
	}
	b.mu.Unlock()
	return true, ""
}

// RecordResult reports the outcome of a call previously allowed by Allow.
func (b *Breaker) RecordResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.halfOpenInFlight = false
		if success {
			b.transitionLocked(BreakerClosed)
			b.window = b.window[:0]
			b.currentCooldown = b.cfg.Cooldown
		} else {
			b.transitionLocked(BreakerOpen)
			b.openedAt = time.Now()
			b.currentCooldown = minDuration(b.currentCooldown*2, b.cfg.CooldownMax)
		}
		return

	case BreakerClosed:
		b.pushWindowLocked(success)
		if b.shouldTripLocked() {
			b.transitionLocked(BreakerOpen)
			b.openedAt = time.Now()
			b.currentCooldown = b.cfg.Cooldown
			b.window = b.window[:0]
		}

	case BreakerOpen:
		// A stray result after a fresh trip; ignore.
	}
}

func (b *Breaker) pushWindowLocked(success bool) {
	if len(b.window) >= b.cfg.Window {
		b.window = b.window[1:]
	}
	b.window = append(b.window, success)
}

func (b *Breaker) shouldTripLocked() bool {
	if len(b.window) < b.cfg.Window {
		return false
	}
	failures := 0
	for _, ok := range b.window {
		if !ok {
			failures++
		}
	}
	rate := float64(failures) / float64(len(b.window))
	return failures >= b.cfg.MinFailures && rate >= b.cfg.TripRate
}

func (b *Breaker) transitionLocked(to BreakerState) {
	if to == b.state {
		return
	}
	old := b.state
	b.state = to
	listeners := make([]BreakerListener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	key := b.key
	go func() {
		for _, l := range listeners {
			l(key, old, to)
		}
	}()
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// Table is the process-wide, lock-guarded breaker table: one shared object
// protected by a short critical section per operation.
type Table struct {
	mu       sync.RWMutex
	cfg      BreakerConfig
	breakers map[BreakerKey]*Breaker
	watchers []BreakerListener
}

// NewTable constructs an empty breaker table.
func NewTable(cfg BreakerConfig) *Table {
	return &Table{cfg: cfg, breakers: make(map[BreakerKey]*Breaker)}
}

// Get returns the breaker for key, creating one if absent.
func (t *Table) Get(key BreakerKey) *Breaker {
	t.mu.RLock()
	b, ok := t.breakers[key]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.breakers[key]; ok {
		return b
	}
	b = NewBreaker(key, t.cfg)
	for _, l := range t.watchers {
		b.AddListener(l)
	}
	t.breakers[key] = b
	return b
}

// OnStateChange registers l on every breaker in the table, present and
// future, so an observer can react to breaker transitions across the whole
// model pool without polling Snapshot.
func (t *Table) OnStateChange(l BreakerListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watchers = append(t.watchers, l)
	for _, b := range t.breakers {
		b.AddListener(l)
	}
}

// IsOpen reports whether the breaker for key is currently open, without
// consuming an Allow() slot. Used by the orchestrator to decide whether a
// role needs an emergency rotation before its next turn.
func (t *Table) IsOpen(key BreakerKey) bool {
	return t.Get(key).State() == BreakerOpen
}

// Snapshot returns the state of every known breaker, for observability.
func (t *Table) Snapshot() map[BreakerKey]BreakerState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[BreakerKey]BreakerState, len(t.breakers))
	for k, b := range t.breakers {
		out[k] = b.State()
	}
	return out
}
