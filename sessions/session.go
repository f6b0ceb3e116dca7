package sessions

import (
	"fmt"

	"github.com/jrsteele09/bomani-client/users"
)

// State is the authentication state of a Session
type State int

const (
	Uninitialized State = iota
	Restoring
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the legal edges of the session state machine.
// Authenticated -> Authenticated is a re-login or identity refresh.
var transitions = map[State][]State{
	Uninitialized:   {Restoring},
	Restoring:       {Authenticated, Unauthenticated},
	Authenticated:   {Authenticated, Unauthenticated},
	Unauthenticated: {Authenticated, Unauthenticated},
}

// CanTransition reports whether the machine may move from one state to another
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is the client's current authentication state and identity.
// CurrentUser is only set when AccessToken is set and was validated against the identity endpoint.
type Session struct {
	State        State       // Position in the session state machine
	AccessToken  string      // Short-lived bearer credential, "" when absent
	RefreshToken string      // Longer-lived credential, "" when absent
	CurrentUser  *users.User // Identity from GET /auth/me/
	IsLoading    bool        // True until the startup restore has finished
}

// IsAuthenticated reports whether the session carries a validated identity
func (s Session) IsAuthenticated() bool {
	return s.State == Authenticated && s.CurrentUser != nil
}

// Clone returns a copy that shares no mutable state with s
func (s Session) Clone() Session {
	s.CurrentUser = s.CurrentUser.Clone()
	return s
}
