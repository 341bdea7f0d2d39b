package auth

import (
	"fmt"
	"sync"

	"atm-ledger/pkg/ledger"
)

// DefaultMaxAttempts is the number of secrets a holder may submit per session.
const DefaultMaxAttempts = 3

// State is the position of a Session in the authentication protocol.
type State int

const (
	// AwaitingPin accepts further secrets; see Session.Remaining.
	AwaitingPin State = iota
	// Authenticated is the terminal success state.
	Authenticated
	// Rejected is the terminal failure state.
	Rejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case AwaitingPin:
		return "awaiting_pin"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further submissions are accepted.
func (s State) Terminal() bool {
	return s == Authenticated || s == Rejected
}

// Verifier is anything that can check a candidate secret.
// *ledger.Account satisfies it.
type Verifier interface {
	Authenticate(candidate string) bool
}

// Session is the authentication state machine for one login.
//
//	AwaitingPin(n) --ok--> Authenticated
//	AwaitingPin(n) --bad, n>1--> AwaitingPin(n-1)
//	AwaitingPin(1) --bad--> Rejected
//
// Every submission consumes an attempt, in submission order.
type Session struct {
	mu        sync.Mutex
	verifier  Verifier
	state     State
	remaining int
	attempts  int
}

// NewSession starts a session in AwaitingPin(maxAttempts).
// Non-positive maxAttempts fall back to DefaultMaxAttempts.
func NewSession(v Verifier, maxAttempts int) *Session {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Session{
		verifier:  v,
		state:     AwaitingPin,
		remaining: maxAttempts,
	}
}

// Submit feeds one secret to the state machine and returns the new state.
// The error is ledger.ErrAuthenticationFailed while attempts remain,
// ledger.ErrTooManyAttempts on the transition to Rejected, and
// ledger.ErrSessionClosed once the session is terminal.
func (s *Session) Submit(secret string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return s.state, fmt.Errorf("%w: session is %s", ledger.ErrSessionClosed, s.state)
	}

	s.attempts++
	s.remaining--

	if s.verifier.Authenticate(secret) {
		s.state = Authenticated
		return s.state, nil
	}

	if s.remaining > 0 {
		return s.state, fmt.Errorf("%w: %d attempts left", ledger.ErrAuthenticationFailed, s.remaining)
	}

	s.state = Rejected
	return s.state, fmt.Errorf("%w after %d attempts", ledger.ErrTooManyAttempts, s.attempts)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining returns the attempts left; zero once terminal by rejection.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Attempts returns how many secrets have been submitted.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
