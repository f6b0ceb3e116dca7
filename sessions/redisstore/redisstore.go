// Package redisstore keeps session tokens in Redis so several client processes
// (for example a kiosk fleet sharing one profile) see the same session.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/bomani-client/sessions"
)

const (
	keyPrefix = "bomani:session"

	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

var _ sessions.Store = (*Store)(nil)

// Store is a Redis-backed sessions.Store. Tokens carry no TTL, the API is the
// source of truth for validity.
type Store struct {
	client  redis.UniversalClient
	profile string
}

// New wraps an existing client. profile namespaces the keys.
func New(client redis.UniversalClient, profile string) *Store {
	if profile == "" {
		profile = "default"
	}
	return &Store{client: client, profile: profile}
}

// Connect parses a Redis URL, pings the server and returns a Store using it
func Connect(ctx context.Context, redisURL, profile string) (*Store, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: invalid URL: %w", err)
	}
	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping failed: %w", err)
	}

	log.Debug().Str("addr", options.Addr).Str("profile", profile).Msg("redis session store connected")
	return New(client, profile), nil
}

// Key returns the namespaced Redis key for a storage key
func (s *Store) Key(key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, s.profile, key)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", sessions.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redisstore_get_failed: %w", err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.Key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore_set_failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.Key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redisstore_delete_failed: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
