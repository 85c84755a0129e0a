package resilience

import (
	"errors"
	"sync"
	"time"

	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/telemetry"

	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker opens after threshold consecutive failures and lets a single
// trial call through once timeout has passed.
type CircuitBreaker struct {
	mu            sync.Mutex
	name          string
	state         State
	failureCount  int
	lastErrorTime time.Time
	threshold     int
	timeout       time.Duration
	probing       bool
	now           func() time.Time
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		state:     StateClosed,
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
	telemetry.SetBreakerState(name, int(StateClosed))
	return cb
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Execute(action func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastErrorTime) <= cb.timeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	cb.mu.Unlock()

	err := action()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false

	if err != nil {
		cb.failureCount++
		cb.lastErrorTime = cb.now()

		if cb.failureCount >= cb.threshold || cb.state == StateHalfOpen {
			cb.setState(StateOpen)
			logger.L().Warn("Circuit breaker opened",
				zap.String("breaker", cb.name),
				zap.Int("failures", cb.failureCount))
		}
		return err
	}

	if cb.state == StateHalfOpen {
		logger.L().Info("Circuit breaker recovered", zap.String("breaker", cb.name))
	}
	cb.failureCount = 0
	cb.setState(StateClosed)
	return nil
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	telemetry.SetBreakerState(cb.name, int(s))
}
