// Package resilience guards calls to flaky generative backends with a
// circuit breaker.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a circuit breaker.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripping, reject calls
	StateHalfOpen              // allowing a probe call
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures the circuit breaker.
type BreakerOpts struct {
	// Name identifies the guarded backend in state-change callbacks.
	Name string
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before entering half-open.
	Timeout time.Duration
	// HalfOpenMax is the number of probe calls allowed in half-open state.
	HalfOpenMax int
	// OnStateChange, if set, is called outside the lock on every transition.
	OnStateChange func(name string, from, to State)
	// Counts reports whether err should count as a backend failure. Nil counts
	// every non-nil error except caller cancellation.
	Counts func(err error) bool
}

// DefaultBreakerOpts provides sensible defaults.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker implements a circuit breaker with closed/open/half-open states.
type Breaker struct {
	mu            sync.Mutex
	opts          BreakerOpts
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCount int
	now           func() time.Time // for testing
}

// NewBreaker creates a circuit breaker with the given options.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	if opts.Counts == nil {
		opts.Counts = countsAsFailure
	}
	return &Breaker{opts: opts, now: time.Now}
}

func countsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

type transition struct {
	from, to State
	changed  bool
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	st, tr := b.currentState()
	b.mu.Unlock()
	b.notify(tr)
	return st
}

// currentState transitions open→half-open once the timeout elapsed. Must hold mu.
func (b *Breaker) currentState() (State, transition) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.halfOpenCount = 0
		return b.state, transition{from: StateOpen, to: StateHalfOpen, changed: true}
	}
	return b.state, transition{}
}

func (b *Breaker) notify(tr transition) {
	if tr.changed && b.opts.OnStateChange != nil {
		b.opts.OnStateChange(b.opts.Name, tr.from, tr.to)
	}
}

// Call executes f through the circuit breaker. While open it returns
// ErrCircuitOpen without calling f.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	b.mu.Lock()
	st, tr := b.currentState()
	switch st {
	case StateOpen:
		b.mu.Unlock()
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpenCount >= b.opts.HalfOpenMax {
			b.mu.Unlock()
			b.notify(tr)
			return ErrCircuitOpen
		}
		b.halfOpenCount++
	}
	b.mu.Unlock()
	b.notify(tr)

	err := f(ctx)

	b.mu.Lock()
	var after transition
	switch {
	case b.opts.Counts(err):
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			after = transition{from: b.state, to: StateOpen, changed: b.state != StateOpen}
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.halfOpenCount = 0
		}
	case err == nil:
		if b.state == StateHalfOpen {
			after = transition{from: StateHalfOpen, to: StateClosed, changed: true}
			b.state = StateClosed
		}
		b.failures = 0
	default:
		// not counted: a cancelled probe frees its half-open slot
		if b.state == StateHalfOpen && b.halfOpenCount > 0 {
			b.halfOpenCount--
		}
	}
	b.mu.Unlock()
	b.notify(after)
	return err
}
