package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jrsteele09/bomani-client/internal/errors"
	"github.com/jrsteele09/bomani-client/users"
)

// Kind classifies a failed API call
type Kind int

const (
	KindUnexpected         Kind = iota // Any other non-2xx response
	KindNetwork                        // Transport failure, no response
	KindInvalidCredentials             // 401 from the login endpoint
	KindValidationFailed               // 400 with field errors
	KindNotAuthenticated               // 401 on an authenticated call, or no token to send
	KindThrottled                      // 429
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindNotAuthenticated:
		return "NotAuthenticated"
	case KindThrottled:
		return "Throttled"
	}
	return "Unexpected"
}

// sentinel maps a kind onto the shared error taxonomy
func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return errors.ErrNetwork
	case KindInvalidCredentials:
		return errors.ErrInvalidCredentials
	case KindValidationFailed:
		return errors.ErrValidationFailed
	case KindNotAuthenticated:
		return errors.ErrNotAuthenticated
	case KindThrottled:
		return errors.ErrRateLimited
	}
	return errors.ErrUnexpected
}

// Error is the typed result of a failed API call, decoded once at the transport boundary
type Error struct {
	Kind   Kind
	Status int               // HTTP status, 0 for network errors
	Detail string            // The API's "detail" message, or a generic one
	Fields users.FieldErrors // Per-field validation messages for KindValidationFailed
	Err    error             // Underlying transport error, if any
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Detail)
}

// Unwrap exposes both the taxonomy sentinel and the transport cause
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// AsError extracts an *Error from err's chain, nil if there is none
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// KindOf returns the Kind of err, KindUnexpected for errors that did not come from the API
func KindOf(err error) Kind {
	if apiErr := AsError(err); apiErr != nil {
		return apiErr.Kind
	}
	return KindUnexpected
}

func networkError(err error) *Error {
	return &Error{
		Kind:   KindNetwork,
		Detail: "Unable to reach the server. Please check your connection and try again.",
		Err:    err,
	}
}

func notAuthenticatedError(err error) *Error {
	return &Error{
		Kind:   KindNotAuthenticated,
		Status: http.StatusUnauthorized,
		Detail: "Your session has expired. Please log in again.",
		Err:    err,
	}
}

// decodeError builds an *Error from a non-2xx response body. DRF bodies are either
// {"detail": "..."} or a map of field -> message list.
func decodeError(status int, body []byte, credentialCheck bool) *Error {
	e := &Error{Kind: KindUnexpected, Status: status}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err == nil {
		for field, msg := range raw {
			msgs := flattenMessages(msg)
			if field == "detail" {
				e.Detail = strings.Join(msgs, " ")
				continue
			}
			if field == "code" || len(msgs) == 0 {
				continue
			}
			if e.Fields == nil {
				e.Fields = users.FieldErrors{}
			}
			e.Fields[field] = msgs
		}
	}

	switch {
	case status == http.StatusUnauthorized && credentialCheck:
		e.Kind = KindInvalidCredentials
		e.Fields = nil
	case status == http.StatusUnauthorized:
		e.Kind = KindNotAuthenticated
		e.Fields = nil
	case status == http.StatusBadRequest:
		e.Kind = KindValidationFailed
	case status == http.StatusTooManyRequests:
		e.Kind = KindThrottled
	}

	if e.Detail == "" {
		e.Detail = defaultDetail(e)
	}
	return e
}

func defaultDetail(e *Error) string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "Invalid username or password."
	case KindNotAuthenticated:
		return "Authentication credentials were not provided or are invalid."
	case KindValidationFailed:
		if len(e.Fields) > 0 {
			keys := make([]string, 0, len(e.Fields))
			for k := range e.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return "Invalid input: " + strings.Join(keys, ", ")
		}
	}
	if text := http.StatusText(e.Status); text != "" {
		return text
	}
	return "Request failed"
}

// flattenMessages accepts a string, a list of strings, or anything else (rendered as JSON)
func flattenMessages(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, flattenMessages(item)...)
		}
		return out
	}
	return []string{string(raw)}
}
