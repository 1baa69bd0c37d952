package session

import (
	"errors"
	"sync"
)

// State is the authentication progress of one login attempt.
type State int

const (
	Unauthenticated State = iota
	CredentialVerified
	OtpPending
	Authenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case CredentialVerified:
		return "credential_verified"
	case OtpPending:
		return "otp_pending"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when a step is attempted out of order,
// e.g. marking OTP success before credentials were verified.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Machine gates one login attempt through
// Unauthenticated -> CredentialVerified -> OtpPending -> Authenticated.
// A failed OTP attempt does not move the machine: retry stays possible
// until the challenge expires. Logout resets from any state.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine starts a machine in Unauthenticated.
func NewMachine() *Machine {
	return &Machine{state: Unauthenticated}
}

// MarkCredentialVerified records a successful password check.
func (m *Machine) MarkCredentialVerified() error {
	return m.transition(Unauthenticated, CredentialVerified)
}

// MarkOtpIssued records that a challenge was dispatched.
func (m *Machine) MarkOtpIssued() error {
	return m.transition(CredentialVerified, OtpPending)
}

// MarkAuthenticated records a successful OTP verification.
func (m *Machine) MarkAuthenticated() error {
	return m.transition(OtpPending, Authenticated)
}

// Logout unconditionally resets to Unauthenticated.
func (m *Machine) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Unauthenticated
}

// Current returns the present state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether the full flow completed.
func (m *Machine) IsAuthenticated() bool {
	return m.Current() == Authenticated
}

func (m *Machine) transition(from, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != from {
		return ErrInvalidTransition
	}
	m.state = to
	return nil
}
