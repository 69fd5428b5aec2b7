package session

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/cookies"
	"github.com/fastygo/campus/internal/navigation"
	appLogger "github.com/fastygo/campus/pkg/logger"
)

const (
	outcomeVerify    = "verify"
	outcomeBearer    = "bearer"
	outcomeCookie    = "cookie"
	outcomeGrace     = "grace"
	outcomeExhausted = "exhausted"
	outcomeStale     = "stale"
)

// checkResult is shared by every caller coalesced onto one verification.
type checkResult struct {
	snapshot  domain.Snapshot
	exhausted bool
	redirect  sync.Once
}

// CheckAuth reconciles the session with the backend: cookie verification,
// then the cached bearer token, then the cookie current-user endpoint, then
// (for a client that was authenticated) one grace retry. When everything
// fails the session and cached identity are cleared and, if forceRedirect is
// set and the current route is protected, the client is sent to the login
// page. Concurrent calls share one verification. Calls made on the login or
// registration route return the current state without any request.
func (m *Manager) CheckAuth(ctx context.Context, forceRedirect bool) domain.Snapshot {
	if m.policy.IsAuthRoute(m.nav.Current()) {
		return m.Snapshot()
	}

	gen := m.currentGeneration()
	key := "check:" + strconv.FormatUint(gen, 10)
	flightCtx := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(key, func() (any, error) {
		return m.runCheck(flightCtx, gen), nil
	})

	select {
	case res := <-ch:
		out := res.Val.(*checkResult)
		if forceRedirect && out.exhausted {
			out.redirect.Do(m.redirectToLogin)
		}
		return out.snapshot
	case <-ctx.Done():
		return m.Snapshot()
	}
}

func (m *Manager) runCheck(ctx context.Context, gen uint64) *checkResult {
	ctx = appLogger.ContextWithCheckID(ctx, uuid.NewString())
	log := appLogger.WithContext(ctx, m.logger)

	var (
		wasAuthenticated bool
		token            string
	)
	snap, ok := m.update(gen, func(s *domain.Session) {
		wasAuthenticated = s.IsAuthenticated()
		token = m.identity.Token
		apply(s, domain.EventCheckStarted)
		s.CheckInFlight = true
	})
	if !ok {
		return &checkResult{snapshot: snap}
	}
	log.Debug("session check started", zap.Bool("was_authenticated", wasAuthenticated))

	user, strategy, outcome, err := m.verifyChain(ctx, token)
	if user == nil && wasAuthenticated {
		if m.grace.AllowN(m.now(), 1) {
			log.Info("session check failed for an authenticated client, retrying after grace delay",
				zap.Duration("delay", m.cfg.GraceDelay))
			if err = sleep(ctx, m.cfg.GraceDelay); err == nil {
				user, err = m.api.Verify(ctx)
				strategy, outcome = domain.StrategyCookie, outcomeGrace
			}
		} else {
			log.Debug("grace retry skipped: cooling down")
		}
	}

	if user != nil {
		return m.settleVerified(ctx, gen, user, strategy, outcome)
	}
	return m.settleExhausted(ctx, gen, wasAuthenticated, err)
}

// verifyChain tries the three credentials in priority order and stops at the
// first that yields a user.
func (m *Manager) verifyChain(ctx context.Context, token string) (*domain.User, domain.Strategy, string, error) {
	log := appLogger.WithContext(ctx, m.logger)

	user, err := m.api.Verify(ctx)
	if err == nil && user != nil {
		return user, domain.StrategyCookie, outcomeVerify, nil
	}
	log.Debug("cookie verification failed", zap.Error(err))

	if token != "" {
		user, err = m.api.CurrentUser(ctx, token)
		if err == nil && user != nil {
			return user, domain.StrategyBearerFallback, outcomeBearer, nil
		}
		log.Debug("bearer verification failed", zap.Error(err))
	}

	user, err = m.api.CurrentUser(ctx, "")
	if err == nil && user != nil {
		return user, domain.StrategyCookie, outcomeCookie, nil
	}
	log.Debug("cookie current-user fallback failed", zap.Error(err))
	if err == nil {
		err = domain.ErrUnauthorized
	}
	return nil, "", "", err
}

func (m *Manager) settleVerified(ctx context.Context, gen uint64, user *domain.User, observed domain.Strategy, outcome string) *checkResult {
	strategy := m.chooseStrategy(ctx, observed)
	now := m.now()

	snap, ok := m.update(gen, func(s *domain.Session) {
		apply(s, domain.EventVerified)
		s.User = user.Clone()
		s.Strategy = strategy
		s.LastVerifiedAt = now
		s.CheckInFlight = false
		s.LastError = ""
		m.identity.User = user.Clone()
		m.identity.LastAuthAt = now
	})
	if !ok {
		appLogger.WithContext(ctx, m.logger).Debug("discarding result of a superseded session check")
		m.metrics.CheckCompleted(outcomeStale)
		return &checkResult{snapshot: snap}
	}

	m.cache.saveUser(ctx, user, now)
	m.cache.saveCookies(ctx, m.jar.Export())
	m.metrics.CheckCompleted(outcome)
	appLogger.WithContext(ctx, m.logger).Debug("session verified",
		zap.String("outcome", outcome),
		zap.String("strategy", string(strategy)),
		zap.Int64("user_id", user.ID),
	)
	return &checkResult{snapshot: snap}
}

// chooseStrategy keeps a bearer-fallback session on bearer unless
// re-evaluation is enabled and cookies now demonstrably persist.
func (m *Manager) chooseStrategy(ctx context.Context, observed domain.Strategy) domain.Strategy {
	if observed == domain.StrategyBearerFallback {
		return observed
	}
	m.mu.RLock()
	current := m.session.Strategy
	hasToken := m.identity.HasToken()
	m.mu.RUnlock()

	if current != domain.StrategyBearerFallback || !hasToken {
		return domain.StrategyCookie
	}
	if !m.cfg.ReevaluateBearer {
		return domain.StrategyBearerFallback
	}
	if cookies.Probe(ctx, m.jar, m.storage) {
		m.mu.Lock()
		m.cookiesWork = true
		m.mu.Unlock()
		return domain.StrategyCookie
	}
	return domain.StrategyBearerFallback
}

func (m *Manager) settleExhausted(ctx context.Context, gen uint64, wasAuthenticated bool, cause error) *checkResult {
	snap, ok := m.update(gen, func(s *domain.Session) {
		apply(s, domain.EventExhausted)
		s.User = nil
		s.Strategy = m.baseStrategyLocked()
		s.CheckInFlight = false
		s.LastError = ""
		if wasAuthenticated {
			s.LastError = "session expired"
		}
		m.identity = domain.CachedIdentity{}
	})
	if !ok {
		m.metrics.CheckCompleted(outcomeStale)
		return &checkResult{snapshot: snap}
	}

	m.cache.clearIdentity(ctx)
	m.metrics.CheckCompleted(outcomeExhausted)
	appLogger.WithContext(ctx, m.logger).Info("session verification exhausted",
		zap.Bool("was_authenticated", wasAuthenticated),
		zap.Error(cause),
	)
	return &checkResult{snapshot: snap, exhausted: true}
}

func (m *Manager) redirectToLogin() {
	current := m.nav.Current()
	if m.policy.IsPublic(current) {
		return
	}
	target := m.policy.LoginURL(navigation.MessageSessionExpired, current)
	m.logger.Info("redirecting to login", zap.String("from", current), zap.String("to", target))
	m.nav.Redirect(target)
}
