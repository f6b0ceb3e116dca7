package token

// Pair is the response of POST /auth/login/ and POST /auth/token/refresh/.
type Pair struct {
	// Access is the short-lived JWT sent as "Authorization: Bearer <access>".
	Access string `json:"access"`

	// Refresh is the longer-lived token used to obtain a new access token.
	// The refresh endpoint only returns it when the server rotates refresh tokens.
	Refresh string `json:"refresh,omitempty"`
}

// RefreshRequest is the body of POST /auth/token/refresh/
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}
