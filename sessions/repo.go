package sessions

import (
	"context"

	"github.com/jrsteele09/bomani-client/internal/errors"
)

// Durable storage keys for the two opaque tokens
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// ErrNotFound is returned by Store.Get when the key holds no value
var ErrNotFound = errors.ErrSessionNotFound

// Store persists opaque token strings in durable client-side storage.
// Only the auth session manager and the token refresher write to it.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes the keys. Absent keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// GetOptional reads key and maps ErrNotFound to "".
func GetOptional(ctx context.Context, store Store, key string) (string, error) {
	v, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// SaveTokens persists both tokens. If the second write fails the first is rolled back
// so the store never holds half a pair.
func SaveTokens(ctx context.Context, store Store, access, refresh string) error {
	if err := store.Set(ctx, AccessTokenKey, access); err != nil {
		return errors.Wrapf(err, "SaveTokens store.Set(%s)", AccessTokenKey)
	}
	if err := store.Set(ctx, RefreshTokenKey, refresh); err != nil {
		_ = store.Delete(ctx, AccessTokenKey)
		return errors.Wrapf(err, "SaveTokens store.Set(%s)", RefreshTokenKey)
	}
	return nil
}

// ClearTokens removes both tokens
func ClearTokens(ctx context.Context, store Store) error {
	return store.Delete(ctx, AccessTokenKey, RefreshTokenKey)
}
