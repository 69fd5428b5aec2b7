package session

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/fastygo/campus/domain"
)

// Refresh rotates the session through the backend. A rejected refresh
// re-verifies the session and reports domain.ErrUnauthorized.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	authenticated := m.session.IsAuthenticated()
	gen := m.generation
	m.mu.RUnlock()
	if !authenticated {
		return domain.ErrUnauthorized
	}

	token, err := m.api.Refresh(ctx, m.AuthToken())
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
			m.metrics.RefreshCompleted("unauthorized")
			m.logger.Info("refresh rejected, re-verifying session")
			m.CheckAuth(ctx, false)
			return domain.ErrUnauthorized
		}
		m.metrics.RefreshCompleted("error")
		m.logger.Warn("session refresh failed", zap.Error(err))
		return err
	}

	now := m.now()
	applied := false
	if _, ok := m.update(gen, func(s *domain.Session) {
		// a check that exhausted meanwhile has already cleared the identity
		if !s.IsAuthenticated() {
			return
		}
		apply(s, domain.EventRefreshed)
		if token != "" {
			m.identity.Token = token
		}
		m.identity.LastRefreshAt = now
		applied = true
	}); !ok || !applied {
		m.logger.Debug("refresh result discarded: session changed meanwhile")
		return nil
	}
	m.cache.saveRefresh(ctx, token, now)
	m.cache.saveCookies(ctx, m.jar.Export())
	m.metrics.RefreshCompleted("success")
	m.logger.Debug("session refreshed", zap.Bool("token_rotated", token != ""))
	return nil
}

// RefreshIfStale refreshes when the token expires within the refresh margin
// or, for opaque tokens and cookie sessions, when the last authentication
// is older than the token lifetime minus the margin.
func (m *Manager) RefreshIfStale(ctx context.Context) (bool, error) {
	m.mu.RLock()
	authenticated := m.session.IsAuthenticated()
	id := m.identity
	m.mu.RUnlock()
	if !authenticated || !m.stale(id, m.now()) {
		return false, nil
	}
	return true, m.Refresh(ctx)
}

func (m *Manager) stale(id domain.CachedIdentity, now time.Time) bool {
	if exp, ok := tokenExpiry(id.Token); ok {
		return !now.Before(exp.Add(-m.cfg.RefreshMargin))
	}
	last := id.FreshestAuth()
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= m.cfg.TokenLifetime-m.cfg.RefreshMargin
}

// tokenExpiry reads the exp claim of a JWT without verifying it; the backend
// remains the judge of validity.
func tokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// OnRouteChange re-verifies the session after a client-side navigation.
// Public routes are skipped while unauthenticated, auth routes always, and
// so is everything while a login or logout is running.
func (m *Manager) OnRouteChange(ctx context.Context, path string) domain.Snapshot {
	if m.policy.IsAuthRoute(path) {
		return m.Snapshot()
	}
	m.cache.setLastPage(ctx, path)

	if m.policy.IsPublic(path) && !m.Snapshot().IsAuthenticated {
		return m.Snapshot()
	}
	if m.OperationInProgress(ctx) {
		m.logger.Debug("route check skipped: session operation in progress", zap.String("path", path))
		return m.Snapshot()
	}
	return m.CheckAuth(ctx, false)
}

// OnVisibilityChange runs the staleness check when the client regains focus.
func (m *Manager) OnVisibilityChange(ctx context.Context, visible bool) error {
	if !visible {
		return nil
	}
	_, err := m.RefreshIfStale(ctx)
	return err
}
