// Package circuitbreaker provides a per-operation circuit breaker with
// closed → open → half-open state transitions. The settlement engine puts one
// in front of the payment gateway so a struggling processor is not hammered
// with refunds and payouts that will fail anyway.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal: requests flow through
	StateOpen                  // Tripped: requests are rejected
	StateHalfOpen              // Probing: one request allowed to test recovery
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "settld",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit breaker state transitions by operation, from-state, and to-state.",
}, []string{"operation", "from_state", "to_state"})

func init() {
	prometheus.MustRegister(stateTransitions)
}

type entry struct {
	state       State
	failures    int
	lastFailure time.Time
}

// Breaker tracks consecutive failures per operation and trips open when they
// exceed the threshold. After openDuration the circuit moves to half-open and
// allows one probe.
type Breaker struct {
	mu           sync.Mutex
	entries      map[string]*entry
	threshold    int
	openDuration time.Duration
}

// New creates a circuit breaker that opens after threshold consecutive
// failures and stays open for openDuration before probing.
func New(threshold int, openDuration time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openDuration <= 0 {
		openDuration = 30 * time.Second
	}
	return &Breaker{
		entries:      make(map[string]*entry),
		threshold:    threshold,
		openDuration: openDuration,
	}
}

// Allow reports whether a request for operation should proceed. An open
// circuit whose openDuration has elapsed moves to half-open and admits one
// probe.
func (b *Breaker) Allow(operation string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[operation]
	if !ok {
		return true
	}

	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(e.lastFailure) >= b.openDuration {
			b.transition(e, operation, StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		// A probe is already in flight.
		return false
	default:
		return true
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit.
func (b *Breaker) RecordSuccess(operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[operation]
	if !ok {
		return
	}
	if e.state == StateHalfOpen {
		b.transition(e, operation, StateClosed)
	}
	e.failures = 0
}

// RecordFailure counts a failure, tripping the circuit open past the
// threshold or on a failed probe.
func (b *Breaker) RecordFailure(operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[operation]
	if !ok {
		e = &entry{state: StateClosed}
		b.entries[operation] = e
	}

	e.failures++
	e.lastFailure = time.Now()

	if e.state == StateHalfOpen {
		b.transition(e, operation, StateOpen)
		return
	}
	if e.state == StateClosed && e.failures >= b.threshold {
		b.transition(e, operation, StateOpen)
	}
}

// State returns the current state for an operation; unknown operations are
// closed.
func (b *Breaker) State(operation string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[operation]
	if !ok {
		return StateClosed
	}
	return e.state
}

// transition changes state under b.mu.
func (b *Breaker) transition(e *entry, operation string, to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	stateTransitions.WithLabelValues(operation, from.String(), to.String()).Inc()
}
