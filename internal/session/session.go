// Package session owns the state of one storefront session: the entity
// cache and the query, mutation and authorization layers built on it.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Skotchmaster/storefront/internal/authz"
	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/gateway"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/mutation"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// Connector is implemented by gateways that must establish a connection
// before queries are enabled.
type Connector interface {
	Connect(ctx context.Context) error
}

type Session struct {
	Gateway   gateway.Gateway
	Store     *cache.Store
	Client    *query.Client
	Queries   *query.Queries
	Mutations *mutation.Dispatcher
	Gate      *authz.Gate

	log       *slog.Logger
	closeOnce sync.Once
}

type options struct {
	log     *slog.Logger
	metrics *metrics.Client
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m *metrics.Client) Option { return func(o *options) { o.metrics = m } }

func New(gw gateway.Gateway, opts ...Option) *Session {
	o := options{log: logging.Discard()}
	for _, fn := range opts {
		fn(&o)
	}

	store := cache.New(cache.WithLogger(o.log), cache.WithMetrics(o.metrics))
	client := query.New(store, query.WithLogger(o.log), query.WithMetrics(o.metrics))
	queries := query.NewQueries(gw, o.log)

	return &Session{
		Gateway:   gw,
		Store:     store,
		Client:    client,
		Queries:   queries,
		Mutations: mutation.New(gw, store, mutation.WithLogger(o.log), mutation.WithMetrics(o.metrics)),
		Gate:      authz.New(client, queries),
		log:       o.log,
	}
}

// Start connects the gateway when it needs it. Until then every query of
// the session stays disabled.
func (s *Session) Start(ctx context.Context) error {
	c, ok := s.Gateway.(Connector)
	if !ok {
		return nil
	}
	if err := c.Connect(ctx); err != nil {
		s.log.Warn("session_connect_error", "error", err)
		return err
	}
	s.log.Debug("session_connected")
	return nil
}

// Close ends the session. Cached values and watchers are dropped and
// fetches still in flight are cancelled.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Client.Close()
		s.Store.Close()
		s.log.Debug("session_closed")
	})
}
