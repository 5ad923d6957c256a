// Package resilience protects the pipeline from misbehaving recognizers.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops calling a backend after consecutive failures. [FallbackGroup] chains
// several backends, each behind its own breaker, and [RecognizerFallback]
// exposes such a chain as a single [stt.Recognizer].
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is in
// the open state and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state. All calls are forwarded.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before transitioning to
	// half-open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes required to close the
	// breaker again. Default: 3.
	HalfOpenMax int

	// IsFailure decides whether an error counts against the breaker. Nil
	// counts every error except context cancellation.
	IsFailure func(error) bool

	// OnStateChange, when set, is called after every transition. It runs with
	// the breaker's lock released.
	OnStateChange func(name string, from, to State)

	// Now replaces time.Now. Used by tests.
	Now func() time.Time
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	halfOpenCalls   int
	halfOpenOK      int
}

// NewCircuitBreaker creates a [CircuitBreaker] with the supplied configuration.
// Zero-value config fields are replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = countsAsFailure
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// countsAsFailure treats a caller that went away as neutral. A deadline hit
// inside the call is still a backend failure.
func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Name returns the configured label.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn. In the half-open state at most
// HalfOpenMax probes are in flight.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	var changes []transition
	switch cb.state {
	case StateOpen:
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		changes = append(changes, cb.setState(StateHalfOpen))
		cb.halfOpenCalls = 0
		cb.halfOpenOK = 0
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.HalfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	inHalfOpen := cb.state == StateHalfOpen
	if inHalfOpen {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()
	cb.notify(changes)

	err := fn()

	cb.mu.Lock()
	changes = changes[:0]
	switch {
	case err == nil:
		if t, ok := cb.recordSuccess(inHalfOpen); ok {
			changes = append(changes, t)
		}
	case cb.cfg.IsFailure(err):
		if t, ok := cb.recordFailure(inHalfOpen); ok {
			changes = append(changes, t)
		}
	case inHalfOpen:
		// Neutral outcome: return the probe slot.
		cb.halfOpenCalls--
	}
	cb.mu.Unlock()
	cb.notify(changes)
	return err
}

type transition struct{ from, to State }

// setState must be called with cb.mu held.
func (cb *CircuitBreaker) setState(to State) transition {
	t := transition{from: cb.state, to: to}
	cb.state = to
	return t
}

func (cb *CircuitBreaker) notify(changes []transition) {
	for _, t := range changes {
		level := slog.LevelInfo
		if t.to == StateOpen {
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "circuit breaker state changed",
			"name", cb.cfg.Name, "from", t.from.String(), "to", t.to.String())
		if cb.cfg.OnStateChange != nil {
			cb.cfg.OnStateChange(cb.cfg.Name, t.from, t.to)
		}
	}
}

// recordFailure must be called with cb.mu held.
func (cb *CircuitBreaker) recordFailure(inHalfOpen bool) (transition, bool) {
	if inHalfOpen {
		if cb.state != StateHalfOpen {
			return transition{}, false
		}
		cb.openedAt = cb.cfg.Now()
		cb.consecutiveFail = cb.cfg.MaxFailures
		return cb.setState(StateOpen), true
	}
	cb.consecutiveFail++
	if cb.state == StateClosed && cb.consecutiveFail >= cb.cfg.MaxFailures {
		cb.openedAt = cb.cfg.Now()
		return cb.setState(StateOpen), true
	}
	return transition{}, false
}

// recordSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) recordSuccess(inHalfOpen bool) (transition, bool) {
	if !inHalfOpen {
		cb.consecutiveFail = 0
		return transition{}, false
	}
	if cb.state != StateHalfOpen {
		return transition{}, false
	}
	cb.halfOpenOK++
	if cb.halfOpenOK < cb.cfg.HalfOpenMax {
		return transition{}, false
	}
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
	return cb.setState(StateClosed), true
}

// State returns the current [State] of the breaker. An open breaker whose
// reset timeout has elapsed reports [StateHalfOpen]; the transition itself
// happens on the next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var changes []transition
	if cb.state != StateClosed {
		changes = append(changes, cb.setState(StateClosed))
	}
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
	cb.mu.Unlock()
	cb.notify(changes)
}
