package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/cookies"
	"github.com/fastygo/campus/internal/metrics"
	"github.com/fastygo/campus/internal/navigation"
	"github.com/fastygo/campus/repository"
)

// opGuardTTL bounds how long a guard left by another process is honoured.
const opGuardTTL = 30 * time.Second

// Config tunes the session manager.
type Config struct {
	GraceDelay        time.Duration
	GraceCooldown     time.Duration
	LogoutSettleDelay time.Duration
	TokenLifetime     time.Duration
	RefreshMargin     time.Duration
	// ReevaluateBearer lets a successful cookie verification switch a
	// bearer-fallback session back to cookies when a new probe passes.
	ReevaluateBearer bool
}

// Dependencies are the collaborators of the manager.
type Dependencies struct {
	API       AuthAPI
	Cookies   CookieJar
	Storage   repository.LocalStorage
	Navigator navigation.Navigator
	Policy    *navigation.Policy
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

// Manager owns the authentication state of the client.
type Manager struct {
	cfg     Config
	api     AuthAPI
	jar     CookieJar
	storage repository.LocalStorage
	cache   *identityCache
	nav     navigation.Navigator
	policy  *navigation.Policy
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	flights singleflight.Group
	grace   *rate.Limiter
	busy    atomic.Int32

	mu          sync.RWMutex
	session     domain.Session
	identity    domain.CachedIdentity
	generation  uint64
	cookiesWork bool
	listeners   map[int]func(domain.Snapshot)
	nextID      int
	settle      *time.Timer
	settleGen   uint64
}

// New builds a manager in the unknown state. Call Init before the first
// CheckAuth to restore the cached identity and probe cookies.
func New(cfg Config, deps Dependencies) (*Manager, error) {
	if deps.API == nil || deps.Cookies == nil || deps.Storage == nil {
		return nil, errors.New("session: api, cookies and storage are required")
	}
	if deps.Navigator == nil || deps.Policy == nil {
		return nil, errors.New("session: navigator and route policy are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = time.Second
	}
	if cfg.GraceCooldown <= 0 {
		cfg.GraceCooldown = 30 * time.Second
	}
	if cfg.LogoutSettleDelay <= 0 {
		cfg.LogoutSettleDelay = 500 * time.Millisecond
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = time.Hour
	}
	if cfg.RefreshMargin <= 0 || cfg.RefreshMargin >= cfg.TokenLifetime {
		cfg.RefreshMargin = cfg.TokenLifetime / 12
	}

	logger := deps.Logger.Named("session")
	return &Manager{
		cfg:         cfg,
		api:         deps.API,
		jar:         deps.Cookies,
		storage:     deps.Storage,
		cache:       &identityCache{storage: deps.Storage, logger: logger},
		nav:         deps.Navigator,
		policy:      deps.Policy,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         deps.Now,
		grace:       rate.NewLimiter(rate.Every(cfg.GraceCooldown), 1),
		session:     domain.NewSession(),
		cookiesWork: true,
		listeners:   make(map[int]func(domain.Snapshot)),
	}, nil
}

// Init restores persisted cookies and the cached identity, probes cookie
// support and picks the initial strategy. It performs no network I/O.
func (m *Manager) Init(ctx context.Context) domain.Snapshot {
	if stored := m.cache.loadCookies(ctx); len(stored) > 0 {
		m.jar.Import(stored)
	}
	id := m.cache.load(ctx)
	works := cookies.Probe(ctx, m.jar, m.storage)

	snap, _ := m.mutate(func(s *domain.Session) {
		m.identity = id
		m.cookiesWork = works
		s.Strategy = m.baseStrategyLocked()
	})
	m.logger.Info("session manager initialised",
		zap.Bool("cookies_persist", works),
		zap.Bool("cached_user", id.User != nil),
		zap.String("strategy", string(snap.Strategy)),
	)
	return snap
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Snapshot(m.identity.User)
}

// Subscribe registers fn for every state change and returns a function that
// removes it. fn runs on the goroutine that changed the state.
func (m *Manager) Subscribe(fn func(domain.Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// AuthToken returns the token to send as a bearer credential, or "" while
// the cookie strategy is in use.
func (m *Manager) AuthToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session.Strategy != domain.StrategyBearerFallback {
		return ""
	}
	return m.identity.Token
}

// LastPage returns the last non-auth route visited, for post-login redirects.
func (m *Manager) LastPage(ctx context.Context) string {
	return m.cache.lastPage(ctx)
}

// OperationInProgress reports whether a login, registration or logout is
// running in this process or, recently, in another one sharing the storage.
func (m *Manager) OperationInProgress(ctx context.Context) bool {
	if m.busy.Load() > 0 {
		return true
	}
	return m.cache.guardActive(ctx, m.now(), opGuardTTL)
}

// Close runs a pending post-logout teardown immediately and persists cookies.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	pending := m.settle != nil && m.settle.Stop()
	gen := m.settleGen
	m.settle = nil
	m.mu.Unlock()

	if pending && m.currentGeneration() == gen {
		m.clearLocal(ctx, true)
		return
	}
	m.cache.saveCookies(ctx, m.jar.Export())
}

func (m *Manager) acquireGuard(ctx context.Context, op string) func() {
	m.busy.Add(1)
	m.cache.setGuard(ctx, op, m.now())
	return func() {
		if m.busy.Add(-1) == 0 {
			m.cache.clearGuard(ctx)
		}
	}
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// advance starts a new generation: results of work begun earlier are
// discarded when they complete.
func (m *Manager) advance(fn func(s *domain.Session)) (uint64, domain.Snapshot) {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.session.CheckInFlight = false
	if fn != nil {
		fn(&m.session)
	}
	snap, listeners := m.publishLocked()
	m.mu.Unlock()
	m.notify(snap, listeners)
	return gen, snap
}

// update applies fn only while gen is still current.
func (m *Manager) update(gen uint64, fn func(s *domain.Session)) (domain.Snapshot, bool) {
	m.mu.Lock()
	if gen != m.generation {
		snap := m.session.Snapshot(m.identity.User)
		m.mu.Unlock()
		return snap, false
	}
	fn(&m.session)
	snap, listeners := m.publishLocked()
	m.mu.Unlock()
	m.notify(snap, listeners)
	return snap, true
}

func (m *Manager) mutate(fn func(s *domain.Session)) (domain.Snapshot, bool) {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()
	return m.update(gen, fn)
}

func (m *Manager) publishLocked() (domain.Snapshot, []func(domain.Snapshot)) {
	snap := m.session.Snapshot(m.identity.User)
	listeners := make([]func(domain.Snapshot), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	return snap, listeners
}

func (m *Manager) notify(snap domain.Snapshot, listeners []func(domain.Snapshot)) {
	m.metrics.SetAuthenticated(snap.IsAuthenticated)
	for _, l := range listeners {
		l(snap)
	}
}

// baseStrategyLocked is the strategy of a session with no credential yet.
func (m *Manager) baseStrategyLocked() domain.Strategy {
	if m.cookiesWork {
		return domain.StrategyCookie
	}
	return domain.StrategyBearerFallback
}

func apply(s *domain.Session, ev domain.Event) {
	if next, ok := domain.Transition(s.Status, ev); ok {
		s.Status = next
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
