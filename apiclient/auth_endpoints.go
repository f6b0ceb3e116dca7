package apiclient

import (
	"context"
	"net/http"

	"github.com/jrsteele09/bomani-client/internal/utils"
	"github.com/jrsteele09/bomani-client/token"
	"github.com/jrsteele09/bomani-client/users"
)

var _ token.Refresher = (*Client)(nil)

// Login exchanges credentials for an access/refresh token pair
func (c *Client) Login(ctx context.Context, credentials users.Credentials) (*token.Pair, error) {
	pair := &token.Pair{}
	err := c.Do(ctx, Request{
		Method:          http.MethodPost,
		Path:            RouteLogin,
		Body:            credentials,
		Out:             pair,
		CredentialCheck: true,
	})
	if err != nil {
		return nil, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return nil, &Error{Kind: KindUnexpected, Status: http.StatusOK, Detail: "login response is missing tokens"}
	}
	return pair, nil
}

// Me returns the identity behind the current access token
func (c *Client) Me(ctx context.Context) (*users.User, error) {
	user := &users.User{}
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: RouteMe, Out: user, Authenticated: true}); err != nil {
		return nil, err
	}
	user.Phone = utils.NonEmpty(utils.Value(user.Phone))
	return user, nil
}

// Register creates an account. It does not log the new user in.
func (c *Client) Register(ctx context.Context, request users.RegistrationRequest) (*users.RegistrationResult, error) {
	result := &users.RegistrationResult{}
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   RouteRegister,
		Body:   request,
		Out:    result,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RefreshToken implements token.Refresher. A rejected refresh token is reported as
// KindNotAuthenticated.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*token.Pair, error) {
	pair := &token.Pair{}
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   RouteTokenRefresh,
		Body:   token.RefreshRequest{Refresh: refreshToken},
		Out:    pair,
	})
	if err != nil {
		return nil, err
	}
	if pair.Access == "" {
		return nil, &Error{Kind: KindUnexpected, Status: http.StatusOK, Detail: "refresh response is missing the access token"}
	}
	return pair, nil
}
