package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// SessionBackend selects where the access and refresh tokens are persisted
type SessionBackend string

const (
	SessionBackendFile   SessionBackend = "file"
	SessionBackendRedis  SessionBackend = "redis"
	SessionBackendMemory SessionBackend = "memory"
)

type Session struct {
	Backend         SessionBackend `env:"SESSION_BACKEND" envDefault:"file"`
	File            string         `env:"SESSION_FILE"`
	KeyHex          string         `env:"SESSION_KEY"`
	Profile         string         `env:"SESSION_PROFILE" envDefault:"default"`
	RedisURL        string         `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RefreshOnExpiry bool           `env:"REFRESH_ON_EXPIRY" envDefault:"false"`

	key []byte
}

var _ SessionConfig = (*Session)(nil)

func (s *Session) validate() error {
	switch s.Backend {
	case SessionBackendFile, SessionBackendRedis, SessionBackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", s.Backend)
	}
	if s.KeyHex == "" {
		return nil
	}
	key, err := hex.DecodeString(s.KeyHex)
	if err != nil {
		return fmt.Errorf("SESSION_KEY is not hex: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("SESSION_KEY must be 32 bytes, got %d", len(key))
	}
	s.key = key
	return nil
}

func (s *Session) GetSessionBackend() SessionBackend {
	return s.Backend
}

// GetSessionFile returns SESSION_FILE or <user config dir>/bomanihosts/session.json
func (s *Session) GetSessionFile() string {
	if s.File != "" {
		return s.File
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "bomanihosts", "session.json")
}

// GetSessionKey returns the at-rest encryption key, nil when tokens are stored in plain text
func (s *Session) GetSessionKey() []byte {
	return s.key
}

func (s *Session) GetSessionProfile() string {
	return s.Profile
}

func (s *Session) GetRedisURL() string {
	return s.RedisURL
}

func (s *Session) GetRefreshOnExpiry() bool {
	return s.RefreshOnExpiry
}
