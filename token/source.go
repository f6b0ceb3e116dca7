package token

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/bomani-client/internal/errors"
	"github.com/jrsteele09/bomani-client/sessions"
)

// Refresher exchanges a refresh token for a new pair
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*Pair, error)
}

// StoreSource is an oauth2.TokenSource that reads the access token from the session
// store on every call, so a logout or login elsewhere is seen by the next request.
type StoreSource struct {
	store     sessions.Store
	refresher Refresher
	onRotate  func(Pair)
	skew      time.Duration
	nowFunc   func() time.Time
	mu        sync.Mutex
}

var _ oauth2.TokenSource = (*StoreSource)(nil)

type SourceOption func(*StoreSource)

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(now func() time.Time) SourceOption {
	return func(s *StoreSource) {
		s.nowFunc = now
	}
}

// WithExpirySkew refreshes this long before the access token's exp claim
func WithExpirySkew(skew time.Duration) SourceOption {
	return func(s *StoreSource) {
		s.skew = skew
	}
}

func NewStoreSource(store sessions.Store, options ...SourceOption) *StoreSource {
	s := &StoreSource{
		store:   store,
		skew:    10 * time.Second,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// EnableRefresh turns on refresh-token rotation. Without it an expired access token is
// still sent and the API's 401 drives the logout.
func (s *StoreSource) EnableRefresh(r Refresher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresher = r
}

// OnRotate registers fn to receive every pair persisted by a refresh. fn runs after the
// source's lock is released.
func (s *StoreSource) OnRotate(fn func(Pair)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRotate = fn
}

// Token implements oauth2.TokenSource. It returns an error wrapping
// errors.ErrNotAuthenticated when no access token is stored.
func (s *StoreSource) Token() (*oauth2.Token, error) {
	return s.TokenContext(context.Background())
}

// TokenContext is Token with a caller supplied context for store and refresh calls
func (s *StoreSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	var rotated *Pair
	defer func() { s.announce(rotated) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	access, err := sessions.GetOptional(ctx, s.store, sessions.AccessTokenKey)
	if err != nil {
		return nil, errors.Wrapf(err, "[StoreSource] read access token")
	}
	if access == "" {
		return nil, errors.ErrNotAuthenticated
	}

	info := Inspect(access)
	if s.refresher != nil && info.ExpiredAt(s.nowFunc().Add(s.skew)) {
		pair, err := s.refresh(ctx)
		if err != nil {
			return nil, err
		}
		rotated = pair
		access = pair.Access
		info = Inspect(access)
	}

	return &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      info.ExpiresAt,
	}, nil
}

// Refresh forces a refresh-token exchange and persists the rotated tokens
func (s *StoreSource) Refresh(ctx context.Context) (string, error) {
	var rotated *Pair
	defer func() { s.announce(rotated) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refresher == nil {
		return "", errors.ErrUnsupported
	}
	pair, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}
	rotated = pair
	return pair.Access, nil
}

func (s *StoreSource) refresh(ctx context.Context) (*Pair, error) {
	refreshToken, err := sessions.GetOptional(ctx, s.store, sessions.RefreshTokenKey)
	if err != nil {
		return nil, errors.Wrapf(err, "[StoreSource] read refresh token")
	}
	if refreshToken == "" {
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "%s", errors.ErrNoRefreshToken)
	}
	if Inspect(refreshToken).ExpiredAt(s.nowFunc()) {
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "%s", errors.ErrTokenExpired)
	}

	pair, err := s.refresher.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[StoreSource] refresh")
	}
	if pair.Refresh == "" {
		pair.Refresh = refreshToken
	}
	if err := sessions.SaveTokens(ctx, s.store, pair.Access, pair.Refresh); err != nil {
		return nil, err
	}

	log.Debug().Bool("rotated", pair.Refresh != refreshToken).Msg("access token refreshed")
	return pair, nil
}

func (s *StoreSource) announce(p *Pair) {
	if p == nil {
		return
	}
	s.mu.Lock()
	fn := s.onRotate
	s.mu.Unlock()
	if fn != nil {
		fn(*p)
	}
}
