package auth

import "github.com/jrsteele09/bomani-client/internal/errors"

var (
	InvalidTransitionErr = errors.ErrInvalidTransition
	OperationInFlightErr = errors.ErrOperationInFlight
	PersistSessionErr    = errors.New("could not persist session")
)

// Messages shown when the API gives no detail of its own
const (
	loginFailedMsg        = "Login failed"
	registrationFailedMsg = "Registration failed"
	busyMsg               = "Another request is already in progress"
)
