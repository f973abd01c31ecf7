// Package resilience shields the analysis pipeline from flaky transcription
// and text-generation backends.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops hammering a backend once it fails repeatedly. [FallbackGroup] chains
// several backends of one provider kind behind per-backend breakers, so a
// tripped whisper server or LLM gateway is bypassed in favour of the next
// configured backend. [ASRFallback] and [LLMFallback] are the provider-shaped
// wrappers the pipeline actually consumes.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and its cooldown has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker defaults, applied when the config leaves a knob at zero.
const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 30 * time.Second
	defaultHalfOpenMax  = 3
)

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call to the backend.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through; the
	// breaker closes again when enough probes succeed and re-opens on the
	// first probe failure.
	StateHalfOpen
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

// CircuitBreakerConfig tunes one [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the protected backend in log output, e.g. "whisper" or
	// "openai".
	Name string

	// MaxFailures is how many consecutive failures trip the breaker while
	// closed. Default 5.
	MaxFailures int

	// ResetTimeout is the cooldown an open breaker observes before letting
	// probes through. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the probe calls allowed in the half-open state.
	// Default 3.
	HalfOpenMax int
}

// CircuitBreaker guards one backend with the classic three-state pattern.
type CircuitBreaker struct {
	name     string
	trip     int
	cooldown time.Duration
	probeMax int

	mu         sync.Mutex
	state      State
	failures   int
	lastFail   time.Time
	probes     int
	probeFails int
}

// NewCircuitBreaker creates a breaker from cfg, substituting defaults for
// zero-valued knobs.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:     cfg.Name,
		trip:     cfg.MaxFailures,
		cooldown: cfg.ResetTimeout,
		probeMax: cfg.HalfOpenMax,
		state:    StateClosed,
	}
	if cb.trip <= 0 {
		cb.trip = defaultMaxFailures
	}
	if cb.cooldown <= 0 {
		cb.cooldown = defaultResetTimeout
	}
	if cb.probeMax <= 0 {
		cb.probeMax = defaultHalfOpenMax
	}
	return cb
}

// Execute runs fn unless the breaker rejects the call. A rejected call
// returns [ErrCircuitOpen] without touching the backend.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()
	cb.settle(err, probe)
	return err
}

// admit decides whether a call may proceed, transitioning open breakers to
// half-open once the cooldown has elapsed. It reports whether the admitted
// call counts as a half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFail) < cb.cooldown {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("circuit breaker half-open, probing backend", "name", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.probeMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probes++
		return true, nil
	}
	return false, nil
}

// settle folds a call outcome back into the breaker state.
func (cb *CircuitBreaker) settle(callErr error, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case callErr != nil && probe:
		// One failed probe re-opens immediately.
		cb.lastFail = time.Now()
		cb.probeFails++
		cb.state = StateOpen
		cb.failures = cb.trip
		slog.Warn("circuit breaker re-opened after failed probe", "name", cb.name)

	case callErr != nil:
		cb.lastFail = time.Now()
		cb.failures++
		if cb.failures >= cb.trip {
			cb.state = StateOpen
			slog.Warn("circuit breaker opened",
				"name", cb.name,
				"consecutive_failures", cb.failures)
		}

	case probe:
		if cb.probes-cb.probeFails >= cb.probeMax {
			cb.state = StateClosed
			cb.failures = 0
			cb.probes = 0
			cb.probeFails = 0
			slog.Info("circuit breaker closed, backend recovered", "name", cb.name)
		}

	default:
		cb.failures = 0
	}
}

// State reports the breaker's mode. An open breaker whose cooldown has
// elapsed reports [StateHalfOpen]; the stored transition happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFail) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeFails = 0
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
