package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/cookies"
)

const settleTimeout = 5 * time.Second

// Logout tears down the local session before asking the backend to end it,
// then tears down again after a short delay to catch cookies the server
// cleared late. It never fails and is safe to call repeatedly.
func (m *Manager) Logout(ctx context.Context) domain.Snapshot {
	release := m.acquireGuard(ctx, "logout")
	defer release()

	var token string
	gen, snap := m.advance(func(s *domain.Session) {
		token = m.identity.Token
		apply(s, domain.EventLogout)
		s.User = nil
		s.Strategy = m.baseStrategyLocked()
		s.LastError = ""
		m.identity = domain.CachedIdentity{}
	})
	m.clearLocal(ctx, false)

	if err := m.api.Logout(ctx, token); err != nil {
		m.logger.Debug("server logout failed, local session already cleared", zap.Error(err))
	}
	m.scheduleSettle(gen)
	m.metrics.LoggedOut()
	m.logger.Info("signed out")
	return snap
}

// clearLocal removes the cached identity and tab-scoped keys and deletes
// cookies. The first pass leaves HttpOnly cookies alone, as a page script
// would; the settle pass removes them too.
func (m *Manager) clearLocal(ctx context.Context, all bool) {
	m.cache.clearSession(ctx)
	var removed int
	if all {
		removed = m.jar.ClearNonEssential(cookies.CSRFCookieName)
	} else {
		removed = m.jar.ClearScriptVisible(cookies.CSRFCookieName)
	}
	m.cache.saveCookies(ctx, m.jar.Export())
	m.logger.Debug("local session cleared", zap.Bool("all_cookies", all), zap.Int("cookies_removed", removed))
}

func (m *Manager) scheduleSettle(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settle != nil {
		m.settle.Stop()
	}
	m.settleGen = gen
	m.settle = time.AfterFunc(m.cfg.LogoutSettleDelay, func() {
		if m.currentGeneration() != gen {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		defer cancel()
		m.clearLocal(ctx, true)
	})
}

func (m *Manager) stopSettle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
}
