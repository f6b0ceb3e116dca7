package config

import (
	"strings"
	"time"
)

type API struct {
	BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8000/api"`

	// HTTPTimeout of zero leaves the transport default in place
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"0s"`
}

var _ APIConfig = API{}

// GetBaseURL returns the API root without a trailing slash (e.g. "https://bomanihosts.com/api")
func (a API) GetBaseURL() string {
	return strings.TrimRight(a.BaseURL, "/")
}

func (a API) GetHTTPTimeout() time.Duration {
	return a.HTTPTimeout
}
