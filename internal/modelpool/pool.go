// Package modelpool implements the model pool and rotation engine: the
// registry of known models, the current role→model assignment, and the
// per-model performance ledger that rotation strategies read from.
package modelpool

import (
	"sort"
	"sync"
	"time"
)

// ModelInfo describes one entry in the known-models registry.
type ModelInfo struct {
	ID       string
	Provider string
	Tags     []string // e.g. "fast", "cheap", "reasoning"
}

// PerformanceRecord tracks a model's rolling performance, grounded on the
// teacher's Agent.UpdateActivity rolling-average pattern (topology.go):
// each new observation is blended into the running average rather than
// stored and re-averaged from a full history.
type PerformanceRecord struct {
	mu sync.RWMutex

	Successes   int
	Failures    int
	AvgLatency  time.Duration
	AvgStrength float64 // moving average of ArgumentRecord.Strength for turns produced by this model
	calls       int

	recentStrengths []float64 // last 3 raw (unaveraged) strengths, oldest first
}

// NewPerformanceRecord returns a zeroed record.
func NewPerformanceRecord() *PerformanceRecord {
	return &PerformanceRecord{}
}

// RecordCall folds one completed call's outcome into the moving averages.
func (p *PerformanceRecord) RecordCall(success bool, latency time.Duration, strength float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if success {
		p.Successes++
	} else {
		p.Failures++
	}

	if p.AvgLatency == 0 {
		p.AvgLatency = latency
	} else {
		p.AvgLatency = (p.AvgLatency + latency) / 2
	}
	if p.calls == 1 {
		p.AvgStrength = strength
	} else {
		p.AvgStrength = (p.AvgStrength + strength) / 2
	}

	p.recentStrengths = append(p.recentStrengths, strength)
	if len(p.recentStrengths) > 3 {
		p.recentStrengths = p.recentStrengths[len(p.recentStrengths)-3:]
	}
}

// Declining reports whether argument strength dropped in each of the last
// two recorded rounds relative to the round before it.
func (p *PerformanceRecord) Declining() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.recentStrengths) < 3 {
		return false
	}
	return p.recentStrengths[2] < p.recentStrengths[1] && p.recentStrengths[1] < p.recentStrengths[0]
}

// Calls returns the total number of recorded calls.
func (p *PerformanceRecord) Calls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls
}

// SuccessRate returns Successes/(Successes+Failures), or 1 if no calls yet.
func (p *PerformanceRecord) SuccessRate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := p.Successes + p.Failures
	if total == 0 {
		return 1
	}
	return float64(p.Successes) / float64(total)
}

// Snapshot returns a lock-consistent copy of the record's fields.
func (p *PerformanceRecord) Snapshot() PerformanceRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PerformanceRecord{
		Successes:   p.Successes,
		Failures:    p.Failures,
		AvgLatency:  p.AvgLatency,
		AvgStrength: p.AvgStrength,
		calls:       p.calls,
	}
}

// CompositeScore blends success rate, argument strength, and latency into
// a single [0,1] ranking value used by PERFORMANCE_BASED and ADAPTIVE
// strategies. Latency is normalised against latencyCeiling; calls slower
// than the ceiling contribute nothing to the score.
func (p *PerformanceRecord) CompositeScore(latencyCeiling time.Duration) float64 {
	snap := p.Snapshot()
	latencyScore := 1.0
	if latencyCeiling > 0 && snap.AvgLatency > 0 {
		latencyScore = 1 - float64(snap.AvgLatency)/float64(latencyCeiling)
		if latencyScore < 0 {
			latencyScore = 0
		}
	}
	rate := 1.0
	total := snap.Successes + snap.Failures
	if total > 0 {
		rate = float64(snap.Successes) / float64(total)
	}
	return 0.5*rate + 0.3*snap.AvgStrength + 0.2*latencyScore
}

// Pool is the process-wide registry of known models plus their live
// performance records: shared, mutex-guarded, short critical sections.
type Pool struct {
	mu               sync.RWMutex
	models           map[string]ModelInfo
	records          map[string]*PerformanceRecord
	roundRobinCursor map[string]int // per-family cursor for ROUND_ROBIN
}

// NewPool constructs an empty pool.
func NewPool() *Pool {
	return &Pool{
		models:           make(map[string]ModelInfo),
		records:          make(map[string]*PerformanceRecord),
		roundRobinCursor: make(map[string]int),
	}
}

// Register adds or replaces a model's registry entry.
func (p *Pool) Register(info ModelInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models[info.ID] = info
	if _, ok := p.records[info.ID]; !ok {
		p.records[info.ID] = NewPerformanceRecord()
	}
}

// Known returns the registered model IDs, sorted for a stable iteration
// order: candidate pools built from this slice (notably ROUND_ROBIN's
// cursor) must see the same ordering on every call.
func (p *Pool) Known() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.models))
	for id := range p.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SameTier returns, sorted, the registered model IDs that share at least one
// tag with modelID (its declared cost/latency tier proxy), modelID included
// if still registered. Used to scope ROUND_ROBIN to same-tier candidates
// instead of the whole pool.
func (p *Pool) SameTier(modelID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info, ok := p.models[modelID]
	if !ok || len(info.Tags) == 0 {
		ids := make([]string, 0, len(p.models))
		for id := range p.models {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	}
	tags := make(map[string]bool, len(info.Tags))
	for _, t := range info.Tags {
		tags[t] = true
	}
	out := make([]string, 0, len(p.models))
	for id, other := range p.models {
		for _, t := range other.Tags {
			if tags[t] {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// RecordFor returns the performance record for modelID, creating one if
// the model was never explicitly registered.
func (p *Pool) RecordFor(modelID string) *PerformanceRecord {
	p.mu.RLock()
	r, ok := p.records[modelID]
	p.mu.RUnlock()
	if ok {
		return r
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.records[modelID]; ok {
		return r
	}
	r = NewPerformanceRecord()
	p.records[modelID] = r
	return r
}

// RecordOutcome is the orchestrator's single hook into the model pool after
// each turn: fold the turn's success/latency/strength into modelID's
// ledger.
func (p *Pool) RecordOutcome(modelID string, success bool, latency time.Duration, strength float64) {
	p.RecordFor(modelID).RecordCall(success, latency, strength)
}

func (p *Pool) nextRoundRobin(family string, pool []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(pool) == 0 {
		return ""
	}
	idx := p.roundRobinCursor[family] % len(pool)
	p.roundRobinCursor[family] = idx + 1
	return pool[idx]
}
