package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	ContactConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetBaseURL() string
	GetHTTPTimeout() time.Duration
}

type SessionConfig interface {
	GetSessionBackend() SessionBackend
	GetSessionFile() string
	GetSessionKey() []byte
	GetSessionProfile() string
	GetRedisURL() string
	GetRefreshOnExpiry() bool
}

type ContactConfig interface {
	GetContactRatePerHour() int
	GetContactBurst() int
}

type mainConfig struct {
	EnvVars
	API
	Session
	Contact
}

var _ Config = (*mainConfig)(nil)

// New parses the process environment into a Config.
func New() (Config, error) {
	c := &mainConfig{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	if err := c.Session.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}
