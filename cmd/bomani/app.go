package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/bomani-client/apiclient"
	"github.com/jrsteele09/bomani-client/auth"
	"github.com/jrsteele09/bomani-client/contact"
	"github.com/jrsteele09/bomani-client/internal/config"
	"github.com/jrsteele09/bomani-client/listings"
	"github.com/jrsteele09/bomani-client/sessions"
	"github.com/jrsteele09/bomani-client/sessions/filestore"
	"github.com/jrsteele09/bomani-client/sessions/memstore"
	"github.com/jrsteele09/bomani-client/sessions/redisstore"
	"github.com/jrsteele09/bomani-client/token"
)

// app wires the client stack for one CLI invocation
type app struct {
	config  config.Config
	store   sessions.Store
	client  *apiclient.Client
	manager *auth.SessionManager
	contact *contact.Service
	catalog *listings.Catalog
	closers []func() error
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{config: c}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	source := token.NewStoreSource(store)
	a.client, err = apiclient.New(c.GetBaseURL(),
		apiclient.WithTimeout(c.GetHTTPTimeout()),
		apiclient.WithTokenSource(source),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.manager, err = auth.NewSessionManager(a.client, store)
	if err != nil {
		a.close()
		return nil, err
	}
	unsubscribe := a.manager.Subscribe(func(s sessions.Session) {
		log.Debug().Str("state", s.State.String()).Bool("loading", s.IsLoading).Msg("session changed")
	})
	a.closers = append(a.closers, func() error {
		unsubscribe()
		return nil
	})

	if c.GetRefreshOnExpiry() {
		source.EnableRefresh(a.client)
		source.OnRotate(a.manager.TokensRotated)
	}

	a.contact, err = contact.NewService(a.client, contact.WithRateLimit(c.GetContactRatePerHour(), c.GetContactBurst()))
	if err != nil {
		a.close()
		return nil, err
	}

	a.catalog, err = listings.SampleCatalog()
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (sessions.Store, error) {
	switch a.config.GetSessionBackend() {
	case config.SessionBackendRedis:
		store, err := redisstore.Connect(ctx, a.config.GetRedisURL(), a.config.GetSessionProfile())
		if err != nil {
			return nil, fmt.Errorf("[openStore] %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.SessionBackendMemory:
		log.Warn().Msg("memory session backend: the session ends when this command exits")
		return memstore.NewInMemoryStore(a.config.GetSessionProfile()), nil
	default:
		store, err := filestore.New(a.config.GetSessionFile(), filestore.WithKey(a.config.GetSessionKey()))
		if err != nil {
			return nil, fmt.Errorf("[openStore] %w", err)
		}
		log.Debug().Str("path", store.Path()).Msg("file session store")
		return store, nil
	}
}

// restore runs the startup session restoration that every session-aware command needs
func (a *app) restore(ctx context.Context) error {
	return a.manager.RestoreSession(ctx)
}

func (a *app) close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}
