package access

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("access sink circuit open")

type circuitState string

const (
	stateClosed   circuitState = "closed"
	stateOpen     circuitState = "open"
	stateHalfOpen circuitState = "half_open"
)

type ProtectedSinkConfig struct {
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// ProtectedSink stops hammering a failing sink (Redis down) and fails fast
// until the cooldown passes.
type ProtectedSink struct {
	inner Sink
	cfg   ProtectedSinkConfig
	now   func() time.Time

	mu                  sync.Mutex
	state               circuitState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedSink(inner Sink, cfg ProtectedSinkConfig) *ProtectedSink {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedSink{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: stateClosed,
	}
}

func (s *ProtectedSink) Write(ctx context.Context, ev Event) error {
	if !s.allowRequest() {
		return ErrCircuitOpen
	}

	err := s.inner.Write(ctx, ev)
	s.afterRequest(err)

	return err
}

func (s *ProtectedSink) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return string(s.state)
}

func (s *ProtectedSink) allowRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateOpen:
		if s.now().Sub(s.openedAt) < s.cfg.Cooldown {
			return false
		}
		s.state = stateHalfOpen
		s.halfOpenInFlight = 1
		return true
	case stateHalfOpen:
		if s.halfOpenInFlight >= s.cfg.HalfOpenMaxCalls {
			return false
		}
		s.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (s *ProtectedSink) afterRequest(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateHalfOpen && s.halfOpenInFlight > 0 {
		s.halfOpenInFlight--
	}

	if err == nil {
		s.consecutiveFailures = 0
		s.state = stateClosed
		return
	}

	s.consecutiveFailures++

	// a failed trial call reopens immediately
	if s.state == stateHalfOpen || s.consecutiveFailures >= s.cfg.FailureThreshold {
		s.state = stateOpen
		s.openedAt = s.now()
	}
}
