package auth

import (
	"context"

	"github.com/jrsteele09/bomani-client/token"
	"github.com/jrsteele09/bomani-client/users"
)

// IdentityAPI is the slice of the HTTP adapter the session manager uses.
// *apiclient.Client satisfies it.
type IdentityAPI interface {
	Login(ctx context.Context, credentials users.Credentials) (*token.Pair, error)
	Me(ctx context.Context) (*users.User, error)
	Register(ctx context.Context, request users.RegistrationRequest) (*users.RegistrationResult, error)
}
