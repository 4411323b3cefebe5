package enrollment

import "fmt"

// State is the lifecycle state of an enrollment
//
//	pending ──confirm──> active ──revoke──> revoked
//	   │
//	   └──fail──> failed
type State string

const (
	StatePending State = "pending"
	StateActive  State = "active"
	StateFailed  State = "failed"
	StateRevoked State = "revoked"
)

// ParseState converts a stored value into a State
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StatePending, StateActive, StateFailed, StateRevoked:
		return st, nil
	}
	return "", fmt.Errorf("unknown enrollment state %q", s)
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateFailed || s == StateRevoked
}

// Confirm is the pending -> active edge
func (s State) Confirm() (State, error) {
	if s != StatePending {
		return s, s.invalid("confirm")
	}
	return StateActive, nil
}

// Fail is the pending -> failed edge
func (s State) Fail() (State, error) {
	if s != StatePending {
		return s, s.invalid("fail")
	}
	return StateFailed, nil
}

// Revoke is the active -> revoked edge
func (s State) Revoke() (State, error) {
	if s != StateActive {
		return s, s.invalid("revoke")
	}
	return StateRevoked, nil
}

func (s State) invalid(op string) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, op, s)
}
