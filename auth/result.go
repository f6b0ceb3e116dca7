package auth

import (
	"github.com/jrsteele09/bomani-client/apiclient"
	"github.com/jrsteele09/bomani-client/internal/errors"
	"github.com/jrsteele09/bomani-client/users"
)

// Result is returned by Login, Register and RefreshUser. Expected failures are carried
// here instead of being returned as Go errors.
type Result struct {
	Success bool

	// Kind classifies a failure, meaningless when Success is true
	Kind apiclient.Kind

	// Message is a human-readable summary suitable for a banner
	Message string

	// Errors holds field-keyed validation messages. Registration failures without
	// field detail carry a single "detail" entry.
	Errors users.FieldErrors

	// Registration is the created-resource payload of a successful Register
	Registration *users.RegistrationResult

	// Err is the underlying error for logging
	Err error
}

func success() Result {
	return Result{Success: true}
}

func failure(err error, fallback string) Result {
	r := Result{Kind: apiclient.KindUnexpected, Message: fallback, Err: err}
	if apiErr := apiclient.AsError(err); apiErr != nil {
		r.Kind = apiErr.Kind
		if apiErr.Detail != "" {
			r.Message = apiErr.Detail
		}
		if len(apiErr.Fields) > 0 {
			r.Errors = apiErr.Fields
		}
	}
	return r
}

func validationFailure(fe users.FieldErrors) Result {
	return Result{
		Kind:    apiclient.KindValidationFailed,
		Message: "Please correct the highlighted fields",
		Errors:  fe,
		Err:     errors.ErrValidationFailed,
	}
}

func busy() Result {
	return Result{Kind: apiclient.KindUnexpected, Message: busyMsg, Err: OperationInFlightErr}
}
