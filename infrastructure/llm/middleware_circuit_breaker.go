package llm

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
)

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed allows all requests to pass through normally.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects all requests immediately to prevent cascading
	// failures after too many consecutive errors.
	StateOpen
	// StateHalfOpen allows a probe request after the cooldown expires.
	StateHalfOpen
)

// circuitBreaker tracks consecutive failures and trips open when they
// exceed the threshold, testing recovery through a half-open probe.
type circuitBreaker struct {
	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.cooldown {
			return false
		}
		cb.state = StateHalfOpen
		return true
	default:
		return true
	}
}

func (cb *circuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		cb.state = StateClosed
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// breakerLLM wraps a CoreLLM with circuit-breaking behavior so a
// persistently failing endpoint is skipped instead of timing out every
// fan-out stage it participates in.
type breakerLLM struct {
	next    CoreLLM
	breaker *circuitBreaker
}

// CircuitBreakerMiddleware creates middleware that opens the circuit
// after maxFailures consecutive errors and keeps it open for cooldown
// before allowing a probe request.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	breaker := &circuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
	return func(next CoreLLM) CoreLLM {
		return &breakerLLM{next: next, breaker: breaker}
	}
}

// DoRequest executes the request through the circuit breaker,
// returning ErrCircuitOpen immediately while the circuit is open.
func (b *breakerLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (string, int, int, error) {
	if !b.breaker.allow() {
		return "", 0, 0, ErrCircuitOpen
	}
	response, tokensIn, tokensOut, err := b.next.DoRequest(ctx, messages, opts)
	b.breaker.record(err)
	return response, tokensIn, tokensOut, err
}

// DoStream executes the streaming request through the circuit breaker.
func (b *breakerLLM) DoStream(ctx context.Context, messages []domain.Message, opts map[string]any, onToken func(string)) (string, int, int, error) {
	if !b.breaker.allow() {
		return "", 0, 0, ErrCircuitOpen
	}
	response, tokensIn, tokensOut, err := b.next.DoStream(ctx, messages, opts, onToken)
	b.breaker.record(err)
	return response, tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (b *breakerLLM) GetModel() string { return b.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (b *breakerLLM) SetModel(m string) { b.next.SetModel(m) }
