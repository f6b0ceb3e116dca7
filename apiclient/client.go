// Package apiclient is the HTTP adapter for the BomaniHosts REST API. It attaches bearer
// credentials, tags requests with an X-Request-ID and decodes every failure into an *Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/bomani-client/internal/errors"
)

const maxErrorBody = 64 << 10

// Client talks to the API. Unauthenticated endpoints are sent without an Authorization
// header so a stale token cannot cause the server to reject a login or registration.
type Client struct {
	baseURL      string
	base         *http.Client
	authed       *http.Client
	source       oauth2.TokenSource
	timeout      time.Duration
	newRequestID func() string
}

type Option func(*Client)

// WithHTTPClient sets the underlying client used for every request
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.base = hc
	}
}

// WithTimeout sets a per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTokenSource supplies the access token for authenticated requests
func WithTokenSource(src oauth2.TokenSource) Option {
	return func(c *Client) {
		c.source = src
	}
}

// WithRequestIDFunc overrides X-Request-ID generation (primarily for testing)
func WithRequestIDFunc(f func() string) Option {
	return func(c *Client) {
		c.newRequestID = f
	}
}

// New creates a Client for baseURL, e.g. "https://bomanihosts.com/api"
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "[apiclient.New] invalid base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("[apiclient.New] base URL must be http(s), got %q", baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		base:         &http.Client{},
		newRequestID: uuid.NewString,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.base
		hc.Timeout = c.timeout
		c.base = &hc
	}

	if c.source != nil {
		transport := c.base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		c.authed = &http.Client{
			Transport:     &oauth2.Transport{Source: c.source, Base: transport},
			Timeout:       c.base.Timeout,
			CheckRedirect: c.base.CheckRedirect,
			Jar:           c.base.Jar,
		}
	}
	return c, nil
}

// BaseURL returns the API root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one JSON API call
type Request struct {
	Method string
	Path   string
	Body   any // Encoded as JSON when non-nil
	Out    any // Decoded from a 2xx JSON body when non-nil

	// Authenticated attaches the bearer token from the token source
	Authenticated bool

	// CredentialCheck marks the login endpoint, where a 401 means bad credentials
	// rather than a stale session
	CredentialCheck bool
}

// Do performs req. Every failure is returned as an *Error.
func (c *Client) Do(ctx context.Context, req Request) error {
	hc := c.base
	if req.Authenticated {
		if c.authed == nil {
			return notAuthenticatedError(errors.Wrapf(errors.ErrNotAuthenticated, "no token source configured"))
		}
		hc = c.authed
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Kind: KindUnexpected, Detail: "could not encode request", Err: err}
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return &Error{Kind: KindUnexpected, Detail: "could not build request", Err: err}
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}
	requestID := c.newRequestID()
	httpReq.Header.Set(headerRequestID, requestID)

	logger := log.With().Str("request_id", requestID).Str("method", req.Method).Str("path", req.Path).Logger()
	start := time.Now()

	resp, err := hc.Do(httpReq)
	if err != nil {
		if errors.Is(err, errors.ErrNotAuthenticated) {
			logger.Debug().Msg("no access token for authenticated request")
			return notAuthenticatedError(err)
		}
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("request failed")
		return networkError(err)
	}
	defer resp.Body.Close()

	logger.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeError(resp.StatusCode, raw, req.CredentialCheck)
	}

	if req.Out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.Out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &Error{Kind: KindUnexpected, Status: resp.StatusCode, Detail: "could not decode response", Err: err}
	}
	return nil
}
