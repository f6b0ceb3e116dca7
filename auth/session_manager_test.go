package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/bomani-client/apiclient"
	"github.com/jrsteele09/bomani-client/auth"
	ierrors "github.com/jrsteele09/bomani-client/internal/errors"
	"github.com/jrsteele09/bomani-client/sessions"
	"github.com/jrsteele09/bomani-client/sessions/filestore"
	"github.com/jrsteele09/bomani-client/sessions/repofakes"
	"github.com/jrsteele09/bomani-client/token"
	"github.com/jrsteele09/bomani-client/users"
)

const (
	aliceAccess  = "access-alice"
	aliceRefresh = "refresh-alice"
	ghostAccess  = "access-ghost"
	takenEmail   = "taken@example.com"
)

// mockAPI is an httptest stand-in for the BomaniHosts REST API
type mockAPI struct {
	server     *httptest.Server
	meCalls    atomic.Int32
	loginCalls atomic.Int32
}

func newMockAPI(t *testing.T) *mockAPI {
	t.Helper()
	m := &mockAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		m.loginCalls.Add(1)
		var creds users.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		switch {
		case creds.Username == "alice" && creds.Password == "correct":
			writeJSON(w, http.StatusOK, map[string]string{"access": aliceAccess, "refresh": aliceRefresh})
		case creds.Username == "ghost" && creds.Password == "correct":
			writeJSON(w, http.StatusOK, map[string]string{"access": ghostAccess, "refresh": "refresh-ghost"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		}
	})

	mux.HandleFunc("/api/auth/me/", func(w http.ResponseWriter, r *http.Request) {
		m.meCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+aliceAccess {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 1, "username": "alice", "email": "alice@example.com", "phone": "+254712345678", "is_host": false,
		})
	})

	mux.HandleFunc("/api/auth/register/", func(w http.ResponseWriter, r *http.Request) {
		var req users.RegistrationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case req.Email == takenEmail:
			writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"user with this email already exists."}})
		case req.Username == "explode":
			writeJSON(w, http.StatusInternalServerError, map[string]string{})
		default:
			writeJSON(w, http.StatusCreated, map[string]any{
				"id": 2, "username": req.Username, "email": req.Email, "message": "User registered successfully",
			})
		}
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// testFixture holds all test dependencies
type testFixture struct {
	api     *mockAPI
	store   *repofakes.FakeStore
	manager *auth.SessionManager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	api := newMockAPI(t)
	store := repofakes.NewFakeStore()
	client, err := apiclient.New(api.server.URL+"/api", apiclient.WithTokenSource(token.NewStoreSource(store)))
	require.NoError(t, err)

	manager, err := auth.NewSessionManager(client, store)
	require.NoError(t, err)

	return &testFixture{api: api, store: store, manager: manager}
}

func (f *testFixture) restore(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.RestoreSession(context.Background()))
}

func (f *testFixture) seedTokens(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, sessions.SaveTokens(context.Background(), f.store, access, refresh))
}

func (f *testFixture) requireStoreEmpty(t *testing.T) {
	t.Helper()
	require.Equal(t, 0, f.store.Len())
}

func TestNewSessionManager_Validation(t *testing.T) {
	_, err := auth.NewSessionManager(nil, repofakes.NewFakeStore())
	require.Error(t, err)

	client, err := apiclient.New("http://localhost")
	require.NoError(t, err)
	_, err = auth.NewSessionManager(client, nil)
	require.Error(t, err)

	m, err := auth.NewSessionManager(client, repofakes.NewFakeStore())
	require.NoError(t, err)
	require.Equal(t, sessions.Uninitialized, m.State())
	require.True(t, m.IsLoading())
}

func TestRestoreSession(t *testing.T) {
	t.Run("no stored token skips identity call", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)

		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		require.False(t, f.manager.IsLoading())
		require.Nil(t, f.manager.CurrentUser())
		require.Equal(t, int32(0), f.api.meCalls.Load())
	})

	t.Run("valid stored token authenticates", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedTokens(t, aliceAccess, aliceRefresh)
		f.restore(t)

		s := f.manager.Snapshot()
		require.Equal(t, sessions.Authenticated, s.State)
		require.False(t, s.IsLoading)
		require.True(t, s.IsAuthenticated())
		require.Equal(t, "alice", s.CurrentUser.Username)
		require.Equal(t, "+254712345678", *s.CurrentUser.Phone)
		require.Equal(t, aliceAccess, s.AccessToken)
		require.Equal(t, aliceRefresh, s.RefreshToken)
		require.Equal(t, int32(1), f.api.meCalls.Load())
	})

	t.Run("invalid stored token clears both tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedTokens(t, "expired", "expired-refresh")
		f.restore(t)

		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		require.False(t, f.manager.IsLoading())
		f.requireStoreEmpty(t)
		require.Equal(t, int32(1), f.api.meCalls.Load())

		// A second manager over the same store finds no token and makes no call
		client, err := apiclient.New(f.api.server.URL+"/api", apiclient.WithTokenSource(token.NewStoreSource(f.store)))
		require.NoError(t, err)
		again, err := auth.NewSessionManager(client, f.store)
		require.NoError(t, err)
		require.NoError(t, again.RestoreSession(context.Background()))
		require.Equal(t, int32(1), f.api.meCalls.Load())
	})

	t.Run("network failure resolves unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedTokens(t, aliceAccess, aliceRefresh)
		f.api.server.Close()
		f.restore(t)

		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		require.False(t, f.manager.IsLoading())
		f.requireStoreEmpty(t)
	})

	t.Run("restore twice is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)
		err := f.manager.RestoreSession(context.Background())
		require.ErrorIs(t, err, auth.InvalidTransitionErr)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("bad credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)

		r := f.manager.Login(ctx, users.Credentials{Username: "bad", Password: "bad"})
		require.False(t, r.Success)
		require.Equal(t, apiclient.KindInvalidCredentials, r.Kind)
		require.Equal(t, "No active account found with the given credentials", r.Message)
		require.ErrorIs(t, r.Err, ierrors.ErrInvalidCredentials)

		f.requireStoreEmpty(t)
		require.Equal(t, 0, f.store.Sets())
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		require.Nil(t, f.manager.CurrentUser())
	})

	t.Run("correct credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)

		r := f.manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"})
		require.True(t, r.Success)
		require.Equal(t, sessions.Authenticated, f.manager.State())
		require.Equal(t, "alice", f.manager.CurrentUser().Username)

		access, err := f.store.Get(ctx, sessions.AccessTokenKey)
		require.NoError(t, err)
		require.Equal(t, aliceAccess, access)
		refresh, err := f.store.Get(ctx, sessions.RefreshTokenKey)
		require.NoError(t, err)
		require.Equal(t, aliceRefresh, refresh)
	})

	t.Run("identity failure after token issue persists nothing", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)

		r := f.manager.Login(ctx, users.Credentials{Username: "ghost", Password: "correct"})
		require.False(t, r.Success)
		require.Equal(t, apiclient.KindNotAuthenticated, r.Kind)
		f.requireStoreEmpty(t)
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
	})

	t.Run("network failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)
		f.api.server.Close()

		r := f.manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"})
		require.False(t, r.Success)
		require.Equal(t, apiclient.KindNetwork, r.Kind)
		require.NotEmpty(t, r.Message)
		f.requireStoreEmpty(t)
	})

	t.Run("blank credentials never reach the api", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)

		r := f.manager.Login(ctx, users.Credentials{})
		require.Equal(t, apiclient.KindValidationFailed, r.Kind)
		require.Contains(t, r.Errors, "username")
		require.Equal(t, int32(0), f.api.loginCalls.Load())
	})

	t.Run("login before restore is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		r := f.manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"})
		require.False(t, r.Success)
		require.ErrorIs(t, r.Err, auth.InvalidTransitionErr)
		require.Equal(t, int32(0), f.api.loginCalls.Load())
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	request := users.RegistrationRequest{
		Username:             "bob",
		Email:                "bob@example.com",
		Password:             "Secret123",
		PasswordConfirmation: "Secret123",
		IsHost:               true,
	}

	t.Run("success does not authenticate", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)

		r := f.manager.Register(ctx, request)
		require.True(t, r.Success)
		require.NotNil(t, r.Registration)
		require.Equal(t, "bob", r.Registration.Username)
		require.Equal(t, "User registered successfully", r.Registration.Message)

		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		f.requireStoreEmpty(t)
		require.Equal(t, int32(0), f.api.loginCalls.Load())
	})

	t.Run("field errors", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)
		before := f.manager.Snapshot()

		req := request
		req.Email = takenEmail
		r := f.manager.Register(ctx, req)
		require.False(t, r.Success)
		require.Equal(t, apiclient.KindValidationFailed, r.Kind)
		require.NotEmpty(t, r.Errors["email"])
		require.Equal(t, "user with this email already exists.", r.Errors.First("email"))

		require.Equal(t, before, f.manager.Snapshot())
		f.requireStoreEmpty(t)
	})

	t.Run("generic failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)

		req := request
		req.Username = "explode"
		r := f.manager.Register(ctx, req)
		require.False(t, r.Success)
		require.Equal(t, apiclient.KindUnexpected, r.Kind)
		require.Equal(t, []string{"Internal Server Error"}, r.Errors["detail"])
	})

	t.Run("password mismatch caught locally", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)

		req := request
		req.PasswordConfirmation = "different"
		r := f.manager.Register(ctx, req)
		require.Equal(t, apiclient.KindValidationFailed, r.Kind)
		require.Contains(t, r.Errors, "password2")
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears authenticated session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedTokens(t, aliceAccess, aliceRefresh)
		f.restore(t)
		require.True(t, f.manager.IsAuthenticated())

		f.manager.Logout()
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		require.Nil(t, f.manager.CurrentUser())
		require.Empty(t, f.manager.Snapshot().AccessToken)
		f.requireStoreEmpty(t)
	})

	t.Run("idempotent when unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)
		f.manager.Logout()
		f.manager.Logout()
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		f.requireStoreEmpty(t)
	})

	t.Run("before restore clears storage only", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedTokens(t, aliceAccess, aliceRefresh)
		f.manager.Logout()
		require.Equal(t, sessions.Uninitialized, f.manager.State())
		f.requireStoreEmpty(t)

		f.restore(t)
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		require.Equal(t, int32(0), f.api.meCalls.Load())
	})

	t.Run("login after logout", func(t *testing.T) {
		f := setupTestFixture(t)
		f.restore(t)
		require.True(t, f.manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"}).Success)
		f.manager.Logout()
		require.True(t, f.manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"}).Success)
		require.True(t, f.manager.IsAuthenticated())
	})
}

func TestHandleUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.restore(t)
	require.True(t, f.manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"}).Success)

	require.False(t, f.manager.HandleUnauthorized(errors.New("unrelated")))
	require.True(t, f.manager.IsAuthenticated())

	// Token revoked server side: swap in a token the mock rejects
	require.NoError(t, f.store.Set(ctx, sessions.AccessTokenKey, "revoked"))
	r := f.manager.RefreshUser(ctx)
	require.False(t, r.Success)
	require.Equal(t, apiclient.KindNotAuthenticated, r.Kind)
	require.Equal(t, sessions.Unauthenticated, f.manager.State())
	f.requireStoreEmpty(t)

	r = f.manager.RefreshUser(ctx)
	require.Equal(t, apiclient.KindNotAuthenticated, r.Kind)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	var mu sync.Mutex
	var seen []sessions.State
	unsubscribe := f.manager.Subscribe(func(s sessions.Session) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.State)
	})

	f.restore(t)
	require.True(t, f.manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"}).Success)
	f.manager.Logout()
	unsubscribe()
	f.manager.Logout()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []sessions.State{
		sessions.Restoring,
		sessions.Unauthenticated,
		sessions.Authenticated,
		sessions.Unauthenticated,
	}, seen)
}

// blockingAPI holds Login open until released so a second call can observe the in-flight guard
type blockingAPI struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAPI) Login(ctx context.Context, _ users.Credentials) (*token.Pair, error) {
	close(b.entered)
	<-b.release
	return nil, &apiclient.Error{Kind: apiclient.KindInvalidCredentials, Status: http.StatusUnauthorized, Detail: "nope"}
}

func (b *blockingAPI) Me(context.Context) (*users.User, error) {
	return nil, &apiclient.Error{Kind: apiclient.KindNotAuthenticated}
}

func (b *blockingAPI) Register(context.Context, users.RegistrationRequest) (*users.RegistrationResult, error) {
	return &users.RegistrationResult{}, nil
}

func TestLogin_SingleFlight(t *testing.T) {
	ctx := context.Background()
	api := &blockingAPI{entered: make(chan struct{}), release: make(chan struct{})}
	m, err := auth.NewSessionManager(api, repofakes.NewFakeStore())
	require.NoError(t, err)
	require.NoError(t, m.RestoreSession(ctx))

	done := make(chan auth.Result)
	go func() {
		done <- m.Login(ctx, users.Credentials{Username: "alice", Password: "x"})
	}()
	<-api.entered

	second := m.Login(ctx, users.Credentials{Username: "alice", Password: "x"})
	require.ErrorIs(t, second.Err, auth.OperationInFlightErr)
	require.ErrorIs(t, m.Register(ctx, users.RegistrationRequest{}).Err, auth.OperationInFlightErr)

	close(api.release)
	first := <-done
	require.Equal(t, apiclient.KindInvalidCredentials, first.Kind)

	// Guard released
	third := m.Register(ctx, users.RegistrationRequest{
		Username: "a", Email: "a@example.com", Password: "p", PasswordConfirmation: "p",
	})
	require.True(t, third.Success)
}

func TestRestoreSession_UnreadableSessionFile(t *testing.T) {
	ctx := context.Background()
	api := newMockAPI(t)

	// A plaintext file left behind before SESSION_KEY was configured
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"old","refresh_token":"old-r"}`), 0o600))
	key := make([]byte, 32)
	store, err := filestore.New(path, filestore.WithKey(key))
	require.NoError(t, err)

	client, err := apiclient.New(api.server.URL+"/api", apiclient.WithTokenSource(token.NewStoreSource(store)))
	require.NoError(t, err)
	manager, err := auth.NewSessionManager(client, store)
	require.NoError(t, err)

	require.NoError(t, manager.RestoreSession(ctx))
	require.Equal(t, sessions.Unauthenticated, manager.State())
	require.False(t, manager.IsLoading())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	r := manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"})
	require.True(t, r.Success, r.Message)
	access, err := store.Get(ctx, sessions.AccessTokenKey)
	require.NoError(t, err)
	require.Equal(t, aliceAccess, access)

	manager.Logout()
	_, err = store.Get(ctx, sessions.AccessTokenKey)
	require.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestTokensRotated(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.restore(t)

	rotated := token.Pair{Access: "access-2", Refresh: "refresh-2"}
	f.manager.TokensRotated(rotated)
	require.Empty(t, f.manager.Snapshot().AccessToken)
	require.Equal(t, sessions.Unauthenticated, f.manager.State())

	require.True(t, f.manager.Login(ctx, users.Credentials{Username: "alice", Password: "correct"}).Success)

	var seen []sessions.Session
	f.manager.Subscribe(func(s sessions.Session) { seen = append(seen, s) })
	f.manager.TokensRotated(rotated)

	s := f.manager.Snapshot()
	require.Equal(t, "access-2", s.AccessToken)
	require.Equal(t, "refresh-2", s.RefreshToken)
	require.Equal(t, "alice", s.CurrentUser.Username)
	require.Len(t, seen, 1)
	require.Equal(t, "access-2", seen[0].AccessToken)
}
