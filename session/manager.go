package session

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-course-portal/identity"
	"github.com/jrsteele09/go-course-portal/internal/config"
	perrors "github.com/jrsteele09/go-course-portal/internal/errors"
	"github.com/jrsteele09/go-course-portal/metrics"
	"github.com/jrsteele09/go-course-portal/storage"
	"github.com/jrsteele09/go-course-portal/users"
)

const (
	DefaultFreshnessWindow = 15 * time.Minute
	DefaultHomeRoute       = "/"
	DefaultLoginRoute      = "/login"

	// ReturnToParam carries the post-login destination on the login route
	ReturnToParam = "returnTo"
)

// Navigator performs a full navigation to target. The server hands targets
// back to the browser as redirects; other front ends may do it directly.
type Navigator func(target string)

// Manager is the session state cache for one browser session. It is the only
// writer of the session state and mediates every call to the identity provider.
type Manager struct {
	provider identity.Provider
	store    storage.Store
	limiter  *RefreshLimiter

	log         zerolog.Logger
	metrics     *metrics.Session
	navigate    Navigator
	currentPath func() string
	nowTime     func() time.Time

	freshness     time.Duration
	roleAttribute string
	homeRoute     string
	loginRoute    string

	mu          sync.Mutex
	state       State
	lastChecked time.Time // zero when the in-memory state must not be trusted
	inFlight    int       // live checks outstanding
	seq         uint64    // last sequence number handed out
	applied     uint64    // sequence number of the last applied transition
	version     uint64    // bumped on every state write

	watchMu     sync.Mutex
	watchers    map[int]func(State)
	nextWatcher int

	deliverMu sync.Mutex // serialises delivery to watchers
	notified  uint64     // version of the last state delivered

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = logger
	}
}

func WithMetrics(s *metrics.Session) Option {
	return func(m *Manager) {
		m.metrics = s
	}
}

func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		if n != nil {
			m.navigate = n
		}
	}
}

// WithCurrentPath supplies the path LoginRedirect returns to when the caller gives none.
func WithCurrentPath(f func() string) Option {
	return func(m *Manager) {
		m.currentPath = f
	}
}

func WithFreshnessWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.freshness = d
		}
	}
}

func WithRefreshPolicy(maxAttempts int, cooldown time.Duration) Option {
	return func(m *Manager) {
		m.limiter = NewRefreshLimiter(maxAttempts, cooldown)
	}
}

func WithRoleAttribute(attr string) Option {
	return func(m *Manager) {
		if attr != "" {
			m.roleAttribute = attr
		}
	}
}

func WithRoutes(home, login string) Option {
	return func(m *Manager) {
		if home != "" {
			m.homeRoute = home
		}
		if login != "" {
			m.loginRoute = login
		}
	}
}

// OptionsFromConfig maps the session configuration onto Manager options.
func OptionsFromConfig(cfg config.SessionConfig) []Option {
	return []Option{
		WithFreshnessWindow(cfg.GetFreshnessWindow()),
		WithRefreshPolicy(cfg.GetRefreshMaxAttempts(), cfg.GetRefreshCooldown()),
		WithRoleAttribute(cfg.GetRoleAttribute()),
		WithRoutes(cfg.GetHomeRoute(), cfg.GetLoginRoute()),
	}
}

// NewManager builds the cache and subscribes it to the provider's events.
// Close must be called to release the subscription.
func NewManager(provider identity.Provider, store storage.Store, options ...Option) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("[NewManager] identity provider is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] snapshot store is required")
	}

	m := &Manager{
		provider:      provider,
		store:         store,
		limiter:       NewRefreshLimiter(DefaultRefreshMaxAttempts, DefaultRefreshCooldown),
		log:           log.Logger,
		navigate:      func(string) {},
		nowTime:       time.Now,
		freshness:     DefaultFreshnessWindow,
		roleAttribute: users.DefaultRoleAttribute,
		homeRoute:     DefaultHomeRoute,
		loginRoute:    DefaultLoginRoute,
		state:         unauthenticated(false),
		watchers:      make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(m)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.unsubscribe = provider.Subscribe(m.handleEvent)
	return m, nil
}

// Close disposes of the provider subscription and cancels event-driven work.
func (m *Manager) Close() {
	m.unsubscribe()
	m.cancel()
}

// State returns a copy of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// RefreshAttempts exposes the refresh counter.
func (m *Manager) RefreshAttempts() int {
	return m.limiter.Attempts()
}

// CheckStatus brings the session state up to date and returns it. Unless
// force is set, a fresh in-memory state or a fresh persisted snapshot is
// trusted without contacting the identity provider.
func (m *Manager) CheckStatus(ctx context.Context, force bool) State {
	if !force {
		if st, ok := m.fromMemory(); ok {
			m.metrics.ObserveCheck(metrics.SourceMemory, st.Authenticated)
			return st
		}
		// The live check in flight will settle the state
		if st, ok := m.pending(); ok {
			m.metrics.ObserveCheck(metrics.SourceMemory, st.Authenticated)
			return st
		}
		if st, ok := m.fromSnapshot(ctx); ok {
			m.metrics.ObserveCheck(metrics.SourceSnapshot, st.Authenticated)
			return st
		}
	}
	st := m.liveCheck(ctx)
	m.metrics.ObserveCheck(metrics.SourceLive, st.Authenticated)
	return st
}

func (m *Manager) fromMemory() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastChecked.IsZero() || !m.isFresh(m.lastChecked) {
		return State{}, false
	}
	return m.state.clone(), true
}

func (m *Manager) pending() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight == 0 {
		return State{}, false
	}
	return m.state.clone(), true
}

// fromSnapshot restores a fresh persisted snapshot. A restore never
// supersedes a live check or a sign-out: it is abandoned if either happened
// while the snapshot was being read.
func (m *Manager) fromSnapshot(ctx context.Context) (State, bool) {
	m.mu.Lock()
	applied := m.applied
	m.mu.Unlock()

	snap, err := LoadSnapshot(ctx, m.store)
	if err != nil {
		m.log.Debug().Err(err).Msg("discarding session snapshot")
		if perrors.Is(err, perrors.ErrSnapshotCorrupt) {
			m.clearSnapshot(ctx)
		}
		return State{}, false
	}
	if snap == nil {
		return State{}, false
	}

	m.mu.Lock()
	untouched := m.inFlight == 0 && m.applied == applied
	if !untouched || !snap.Fresh(m.nowTime(), m.freshness) {
		m.mu.Unlock()
		if untouched {
			m.log.Debug().Time("captured", snap.CapturedAt).Msg("discarding expired session snapshot")
			m.clearSnapshot(ctx)
		}
		return State{}, false
	}
	m.state = authenticated(snap.Attributes, users.UsernameFromAttributes(snap.Attributes),
		users.RoleFromAttributes(snap.Attributes, m.roleAttribute), false)
	m.lastChecked = snap.CapturedAt
	st, ver := m.state.clone(), m.bump()
	m.mu.Unlock()

	m.notify(st, ver)
	return st, true
}

type liveResult struct {
	attrs    identity.Attributes
	username string
}

func (m *Manager) liveCheck(ctx context.Context) State {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.inFlight++
	m.state.Loading = true
	st, ver := m.state.clone(), m.bump()
	m.mu.Unlock()
	m.notify(st, ver)

	res, err := m.fetchIdentity(ctx)
	now := m.nowTime()

	m.mu.Lock()
	m.inFlight--
	stale := seq <= m.applied
	if !stale {
		m.applied = seq
		if err != nil {
			m.state = unauthenticated(m.inFlight > 0)
			m.lastChecked = time.Time{}
		} else {
			m.state = authenticated(res.attrs, res.username,
				users.RoleFromAttributes(res.attrs, m.roleAttribute), m.inFlight > 0)
			m.lastChecked = now
		}
	} else {
		m.state.Loading = m.inFlight > 0
	}
	st, ver = m.state.clone(), m.bump()
	m.mu.Unlock()

	switch {
	case stale:
		m.log.Debug().Uint64("seq", seq).Msg("discarding superseded session check")
	case err != nil:
		m.log.Debug().Err(err).Msg("session check failed")
		m.clearSnapshot(ctx)
	default:
		m.limiter.Reset()
		if err := SaveSnapshot(ctx, m.store, Snapshot{Attributes: res.attrs, CapturedAt: now}); err != nil {
			m.log.Warn().Err(err).Msg("failed to persist session snapshot")
		}
	}

	m.notify(st, ver)
	return st
}

func (m *Manager) fetchIdentity(ctx context.Context) (liveResult, error) {
	sess, err := m.provider.FetchSession(ctx)
	if err != nil {
		return liveResult{}, perrors.Wrapf(err, "[CheckStatus] fetch session")
	}
	if sess.Tokens == nil {
		return liveResult{}, perrors.ErrNoTokens
	}

	user, err := m.provider.FetchCurrentUser(ctx)
	if err != nil {
		return liveResult{}, perrors.Wrapf(err, "[CheckStatus] fetch current user")
	}

	attrs, err := m.provider.FetchUserAttributes(ctx)
	if err != nil {
		return liveResult{}, perrors.Wrapf(err, "[CheckStatus] fetch user attributes")
	}

	username := user.Username
	if username == "" {
		username = users.UsernameFromAttributes(attrs)
	}
	return liveResult{attrs: attrs.Clone(), username: username}, nil
}

// Logout invalidates the local session before asking the provider to sign
// out, then navigates away. A failed sign-out sends the user to the login
// route instead of home. The navigation target is returned.
func (m *Manager) Logout(ctx context.Context, global bool) string {
	m.reset()
	m.clearSnapshot(ctx)

	err := m.provider.SignOut(ctx, identity.SignOutOptions{Global: global})
	m.metrics.ObserveLogout(err)

	target := m.homeRoute
	if err != nil {
		m.log.Warn().Err(err).Bool("global", global).Msg("provider sign-out failed")
		target = m.loginRoute
	}
	m.navigate(target)
	return target
}

// LoginRedirect navigates to the login route, carrying returnPath (or the
// current path) so the user comes back after authenticating.
func (m *Manager) LoginRedirect(returnPath string) string {
	if returnPath == "" && m.currentPath != nil {
		returnPath = m.currentPath()
	}
	if returnPath == "" {
		returnPath = m.homeRoute
	}
	target := m.loginRoute + "?" + url.Values{ReturnToParam: {returnPath}}.Encode()
	m.navigate(target)
	return target
}

// ProbeTokens reports whether the provider holds session tokens, without
// touching the cached state. UI callers use it to tell "signed out" apart
// from "signed in but profile unavailable".
func (m *Manager) ProbeTokens(ctx context.Context) bool {
	sess, err := m.provider.FetchSession(ctx)
	return err == nil && sess.Tokens != nil
}

// Watch calls fn with every new state until the returned cancel is called.
// States arrive in the order they were written; one overtaken by a newer
// state before delivery is skipped. fn must not call back into the Manager.
func (m *Manager) Watch(fn func(State)) (cancel func()) {
	m.watchMu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = fn
	m.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.watchMu.Lock()
			delete(m.watchers, id)
			m.watchMu.Unlock()
		})
	}
}

func (m *Manager) notify(st State, version uint64) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	if version <= m.notified {
		return
	}
	m.notified = version

	m.watchMu.Lock()
	fns := make([]func(State), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.watchMu.Unlock()

	for _, fn := range fns {
		fn(st.clone())
	}
}

// reset moves to the unauthenticated state and supersedes any check in flight.
func (m *Manager) reset() {
	m.mu.Lock()
	m.seq++
	m.applied = m.seq
	m.state = unauthenticated(m.inFlight > 0)
	m.lastChecked = time.Time{}
	st, ver := m.state.clone(), m.bump()
	m.mu.Unlock()

	m.notify(st, ver)
}

// bump returns the next state version. Callers hold m.mu.
func (m *Manager) bump() uint64 {
	m.version++
	return m.version
}

func (m *Manager) clearSnapshot(ctx context.Context) {
	if err := ClearSnapshot(ctx, m.store); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear session snapshot")
	}
}

func (m *Manager) isFresh(at time.Time) bool {
	age := m.nowTime().Sub(at)
	return age >= 0 && age < m.freshness
}
