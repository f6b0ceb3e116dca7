package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/bomani-client/apiclient"
	"github.com/jrsteele09/bomani-client/internal/errors"
	"github.com/jrsteele09/bomani-client/sessions"
	"github.com/jrsteele09/bomani-client/token"
	"github.com/jrsteele09/bomani-client/users"
)

// Subscriber is called with a snapshot of the session after every state change
type Subscriber func(sessions.Session)

// SessionManager is the single authority for authentication state. Consumers read the
// session through Snapshot or Subscribe and never talk to the store or identity endpoint.
type SessionManager struct {
	api   IdentityAPI
	store sessions.Store

	mu      sync.RWMutex
	session sessions.Session

	// inFlight keeps Login, Register, RestoreSession and RefreshUser single-flight
	inFlight atomic.Bool

	subMu       sync.Mutex
	subscribers map[int]Subscriber
	nextSubID   int
}

// NewSessionManager creates a manager in the Uninitialized, loading state.
func NewSessionManager(api IdentityAPI, store sessions.Store) (*SessionManager, error) {
	if api == nil {
		return nil, errors.New("[NewSessionManager] identity api is required")
	}
	if store == nil {
		return nil, errors.New("[NewSessionManager] session store is required")
	}

	m := &SessionManager{
		api:         api,
		store:       store,
		session:     sessions.Session{State: sessions.Uninitialized, IsLoading: true},
		subscribers: make(map[int]Subscriber),
	}
	return m, nil
}

// RestoreSession runs once at startup. A stored access token is validated against the
// identity endpoint; any failure clears both tokens. Loading always ends, whatever the outcome.
// The returned error is only set for misuse (called twice, or concurrently with another call).
func (m *SessionManager) RestoreSession(ctx context.Context) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return OperationInFlightErr
	}
	defer m.inFlight.Store(false)

	if err := m.transition(sessions.Restoring, func(s *sessions.Session) {}); err != nil {
		return err
	}

	access, err := sessions.GetOptional(ctx, m.store, sessions.AccessTokenKey)
	if err != nil {
		log.Warn().Err(err).Msg("reading stored access token failed")
		m.clearStoredTokens(ctx)
		m.resolveUnauthenticated()
		return nil
	}
	if access == "" {
		m.resolveUnauthenticated()
		return nil
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		log.Info().Str("kind", apiclient.KindOf(err).String()).Err(err).Msg("stored session rejected")
		m.clearStoredTokens(ctx)
		m.resolveUnauthenticated()
		return nil
	}

	refresh, err := sessions.GetOptional(ctx, m.store, sessions.RefreshTokenKey)
	if err != nil {
		log.Warn().Err(err).Msg("reading stored refresh token failed")
	}

	_ = m.transition(sessions.Authenticated, func(s *sessions.Session) {
		s.AccessToken = access
		s.RefreshToken = refresh
		s.CurrentUser = user.Clone()
		s.IsLoading = false
	})
	return nil
}

// Login exchanges credentials for tokens, persists them and loads the identity.
// Nothing stays persisted when any step fails.
func (m *SessionManager) Login(ctx context.Context, credentials users.Credentials) Result {
	if !m.inFlight.CompareAndSwap(false, true) {
		return busy()
	}
	defer m.inFlight.Store(false)

	if state := m.State(); !sessions.CanTransition(state, sessions.Authenticated) || state == sessions.Restoring {
		return Result{Kind: apiclient.KindUnexpected, Message: "Session is not ready", Err: InvalidTransitionErr}
	}
	if fe := credentials.Validate(); fe != nil {
		return validationFailure(fe)
	}

	pair, err := m.api.Login(ctx, credentials)
	if err != nil {
		log.Debug().Str("kind", apiclient.KindOf(err).String()).Msg("login rejected")
		return failure(err, loginFailedMsg)
	}

	if err := sessions.SaveTokens(ctx, m.store, pair.Access, pair.Refresh); err != nil {
		log.Error().Err(err).Msg("persisting tokens failed")
		return Result{Kind: apiclient.KindUnexpected, Message: loginFailedMsg, Err: fmt.Errorf("%w: %w", PersistSessionErr, err)}
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		log.Warn().Str("kind", apiclient.KindOf(err).String()).Err(err).Msg("identity fetch after login failed")
		m.clearStoredTokens(ctx)
		m.setUnauthenticated()
		return failure(err, loginFailedMsg)
	}

	_ = m.transition(sessions.Authenticated, func(s *sessions.Session) {
		s.AccessToken = pair.Access
		s.RefreshToken = pair.Refresh
		s.CurrentUser = user.Clone()
		s.IsLoading = false
	})
	log.Info().Str("username", user.Username).Msg("logged in")
	return success()
}

// Register creates an account. It never authenticates, a separate Login is required.
func (m *SessionManager) Register(ctx context.Context, request users.RegistrationRequest) Result {
	if !m.inFlight.CompareAndSwap(false, true) {
		return busy()
	}
	defer m.inFlight.Store(false)

	if fe := request.Validate(); fe != nil {
		return validationFailure(fe)
	}

	created, err := m.api.Register(ctx, request)
	if err != nil {
		r := failure(err, registrationFailedMsg)
		if len(r.Errors) == 0 {
			r.Errors = users.FieldErrors{"detail": {r.Message}}
		}
		return r
	}

	r := success()
	r.Registration = created
	return r
}

// Logout clears both stored tokens and the current user. It is synchronous, makes no
// network call and is safe to call in any state.
func (m *SessionManager) Logout() {
	m.clearStoredTokens(context.Background())
	m.setUnauthenticated()
}

// HandleUnauthorized performs a silent logout when err shows that an authenticated call
// was rejected for stale credentials. It reports whether a logout happened.
func (m *SessionManager) HandleUnauthorized(err error) bool {
	if apiclient.KindOf(err) != apiclient.KindNotAuthenticated || m.State() != sessions.Authenticated {
		return false
	}
	log.Info().Msg("credentials rejected, logging out")
	m.Logout()
	return true
}

// RefreshUser re-reads the identity endpoint and replaces the current user wholesale.
// A 401 logs the session out.
func (m *SessionManager) RefreshUser(ctx context.Context) Result {
	if !m.inFlight.CompareAndSwap(false, true) {
		return busy()
	}
	defer m.inFlight.Store(false)

	if m.State() != sessions.Authenticated {
		return Result{Kind: apiclient.KindNotAuthenticated, Message: "Not logged in", Err: errors.ErrNotAuthenticated}
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		m.HandleUnauthorized(err)
		return failure(err, "Could not load your profile")
	}

	_ = m.transition(sessions.Authenticated, func(s *sessions.Session) {
		s.CurrentUser = user.Clone()
	})
	return success()
}

// TokensRotated records a pair persisted by a background refresh so snapshots and
// subscribers see the tokens actually in the store. Ignored unless authenticated.
func (m *SessionManager) TokensRotated(pair token.Pair) {
	if m.State() != sessions.Authenticated {
		return
	}
	_ = m.transition(sessions.Authenticated, func(s *sessions.Session) {
		s.AccessToken = pair.Access
		s.RefreshToken = pair.Refresh
	})
}

// Snapshot returns a copy of the current session
func (m *SessionManager) Snapshot() sessions.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

func (m *SessionManager) State() sessions.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State
}

func (m *SessionManager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.IsAuthenticated()
}

func (m *SessionManager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.IsLoading
}

// CurrentUser returns a copy of the logged in user, nil when unauthenticated
func (m *SessionManager) CurrentUser() *users.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.CurrentUser.Clone()
}

// Subscribe registers fn for state changes. The returned func unsubscribes.
func (m *SessionManager) Subscribe(fn Subscriber) func() {
	id := m.addSubscriber(fn)
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *SessionManager) addSubscriber(fn Subscriber) int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return id
}

// transition moves the machine to next, applying mutate under the lock, then notifies
func (m *SessionManager) transition(next sessions.State, mutate func(*sessions.Session)) error {
	m.mu.Lock()
	prev := m.session.State
	if !sessions.CanTransition(prev, next) {
		m.mu.Unlock()
		return errors.Wrapf(InvalidTransitionErr, "%s -> %s", prev, next)
	}
	m.session.State = next
	mutate(&m.session)
	snapshot := m.session.Clone()
	m.mu.Unlock()

	log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("session state")
	m.notify(snapshot)
	return nil
}

func (m *SessionManager) resolveUnauthenticated() {
	_ = m.transition(sessions.Unauthenticated, func(s *sessions.Session) {
		s.AccessToken = ""
		s.RefreshToken = ""
		s.CurrentUser = nil
		s.IsLoading = false
	})
}

// setUnauthenticated clears the in-memory session. Before the startup restore has run the
// state stays Uninitialized, only the credentials are dropped.
func (m *SessionManager) setUnauthenticated() {
	m.mu.Lock()
	if sessions.CanTransition(m.session.State, sessions.Unauthenticated) {
		m.mu.Unlock()
		m.resolveUnauthenticated()
		return
	}
	m.session.AccessToken = ""
	m.session.RefreshToken = ""
	m.session.CurrentUser = nil
	snapshot := m.session.Clone()
	m.mu.Unlock()
	m.notify(snapshot)
}

func (m *SessionManager) clearStoredTokens(ctx context.Context) {
	if err := sessions.ClearTokens(ctx, m.store); err != nil {
		log.Error().Err(err).Msg("clearing stored tokens failed")
	}
}

func (m *SessionManager) notify(s sessions.Session) {
	m.subMu.Lock()
	subs := make([]Subscriber, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(s.Clone())
	}
}
