package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/go-course-portal/identity"
	"github.com/jrsteele09/go-course-portal/metrics"
	"github.com/jrsteele09/go-course-portal/session"
	"github.com/jrsteele09/go-course-portal/storage"
)

const (
	defaultClientIdleTimeout = time.Hour
	defaultForcedCheckEvery  = time.Second
	defaultForcedCheckBurst  = 5
)

// Client is the server-side half of one browser session: its identity
// provider connection, its session cache and its throttle for forced checks.
type Client struct {
	ID       string
	Provider identity.Provider
	Manager  *session.Manager

	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// AllowForcedCheck reports whether a forced live check may run at now.
func (c *Client) AllowForcedCheck(now time.Time) bool {
	return c.limiter.AllowN(now, 1)
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}

// ClientRegistry maps browser-session ids onto Clients, creating them lazily.
type ClientRegistry struct {
	factory     identity.Factory
	store       storage.Store
	sessionOpts []session.Option
	metrics     *metrics.Session
	nowTime     func() time.Time

	idleTimeout      time.Duration
	forcedCheckEvery time.Duration
	forcedCheckBurst int

	mu      sync.Mutex
	clients map[string]*Client
}

type RegistryOption func(*ClientRegistry)

// WithSessionOptions are applied to every Manager the registry creates
func WithSessionOptions(options ...session.Option) RegistryOption {
	return func(r *ClientRegistry) {
		r.sessionOpts = append(r.sessionOpts, options...)
	}
}

func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *ClientRegistry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

// WithForcedCheckLimit allows one forced check every interval, with bursts of up to burst.
func WithForcedCheckLimit(every time.Duration, burst int) RegistryOption {
	return func(r *ClientRegistry) {
		if every > 0 {
			r.forcedCheckEvery = every
		}
		if burst > 0 {
			r.forcedCheckBurst = burst
		}
	}
}

func WithRegistryMetrics(m *metrics.Session) RegistryOption {
	return func(r *ClientRegistry) {
		r.metrics = m
	}
}

// WithRegistryNowTime sets the now time function (primarily for testing)
func WithRegistryNowTime(nowFunc func() time.Time) RegistryOption {
	return func(r *ClientRegistry) {
		r.nowTime = nowFunc
	}
}

func NewClientRegistry(factory identity.Factory, store storage.Store, options ...RegistryOption) (*ClientRegistry, error) {
	if factory == nil {
		return nil, errors.New("[NewClientRegistry] identity factory is required")
	}
	if store == nil {
		return nil, errors.New("[NewClientRegistry] store is required")
	}

	r := &ClientRegistry{
		factory:          factory,
		store:            store,
		nowTime:          time.Now,
		idleTimeout:      defaultClientIdleTimeout,
		forcedCheckEvery: defaultForcedCheckEvery,
		forcedCheckBurst: defaultForcedCheckBurst,
		clients:          make(map[string]*Client),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Get returns an existing client and marks it as seen.
func (r *ClientRegistry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	c, ok := r.clients[id]
	r.mu.Unlock()
	if ok {
		c.touch(r.nowTime())
	}
	return c, ok
}

// GetOrCreate returns the client for id, creating it when unknown.
func (r *ClientRegistry) GetOrCreate(id string) (*Client, error) {
	if id == "" {
		return nil, errors.New("[GetOrCreate] client id is required")
	}
	if c, ok := r.Get(id); ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c, nil
	}

	provider := r.factory.NewClient()
	opts := append([]session.Option{
		session.WithNowTime(r.nowTime),
		session.WithMetrics(r.metrics),
	}, r.sessionOpts...)
	manager, err := session.NewManager(provider, storage.WithPrefix(r.store, snapshotPrefix(id)), opts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		ID:       id,
		Provider: provider,
		Manager:  manager,
		limiter:  rate.NewLimiter(rate.Every(r.forcedCheckEvery), r.forcedCheckBurst),
		lastSeen: r.nowTime(),
	}
	r.clients[id] = c
	r.metrics.SetActiveClients(len(r.clients))
	return c, nil
}

// Sweep closes and forgets clients idle for longer than the idle timeout,
// clearing their persisted snapshots. It returns how many were evicted.
func (r *ClientRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	var evicted []*Client
	for id, c := range r.clients {
		if c.idleSince(now) > r.idleTimeout {
			evicted = append(evicted, c)
			delete(r.clients, id)
		}
	}
	r.metrics.SetActiveClients(len(r.clients))
	r.mu.Unlock()

	ctx := context.Background()
	for _, c := range evicted {
		c.Manager.Close()
		if err := session.ClearSnapshot(ctx, storage.WithPrefix(r.store, snapshotPrefix(c.ID))); err != nil {
			log.Warn().Err(err).Str("client", c.ID).Msg("failed to clear evicted session snapshot")
		}
	}

	// Snapshots left behind by a previous process have no client to evict
	if pruner, ok := r.store.(storage.Pruner); ok {
		if _, err := pruner.DeleteOlderThan(ctx, now.Add(-r.idleTimeout)); err != nil {
			log.Warn().Err(err).Msg("failed to prune old session snapshots")
		}
	}
	return len(evicted)
}

func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close releases every client's provider subscription.
func (r *ClientRegistry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.metrics.SetActiveClients(0)
	r.mu.Unlock()

	for _, c := range clients {
		c.Manager.Close()
	}
}

func snapshotPrefix(clientID string) string {
	return "portal:" + clientID + ":"
}
