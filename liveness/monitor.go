// Package liveness detects unresponsive peers. Both sides of a connection
// run the same monitor: every received heartbeat records a beat, and every
// read timeout asks the monitor for a verdict.
package liveness

import (
	"sync"
	"time"
)

// Verdict classifies the time elapsed since the last recorded beat.
type Verdict int

const (
	// Healthy means less than half the threshold has elapsed.
	Healthy Verdict = iota
	// Warning means more than half the threshold has elapsed; Remaining
	// tells how long until the peer is declared dead.
	Warning
	// Expired means the threshold has been exceeded and the owning session
	// must tear down.
	Expired
)

// Status is the outcome of a single timeout check.
type Status struct {
	Verdict   Verdict
	Remaining time.Duration
}

// Monitor tracks the last heartbeat seen on one connection. The receive loop
// and the heartbeat sender of a session may touch it concurrently.
type Monitor struct {
	mu        sync.Mutex
	threshold time.Duration
	lastBeat  time.Time

	now func() time.Time // overridable in tests
}

func NewMonitor(threshold time.Duration) *Monitor {
	m := &Monitor{threshold: threshold, now: time.Now}
	m.lastBeat = m.now()
	return m
}

// Beat records that the peer proved itself alive just now.
func (m *Monitor) Beat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBeat = m.now()
}

// Check compares the elapsed silence against the threshold. It never mutates
// state: declaring the session dead is the caller's job, exactly once.
func (m *Monitor) Check() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := m.now().Sub(m.lastBeat)
	switch {
	case elapsed > m.threshold:
		return Status{Verdict: Expired}
	case elapsed > m.threshold/2:
		return Status{Verdict: Warning, Remaining: m.threshold - elapsed}
	default:
		return Status{Verdict: Healthy}
	}
}

// LastBeat returns when the peer last proved itself alive.
func (m *Monitor) LastBeat() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBeat
}
