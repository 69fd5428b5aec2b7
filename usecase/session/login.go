package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/cookies"
)

var errSuperseded = domain.NewError(domain.ErrCodeUnauthorized, "sign-in was interrupted by another session operation")

// RegisterInput is the account data sent on registration.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
}

// Login signs in with a username or email (an identifier containing "@" is
// sent as email) and confirms the session took effect. When the cookie
// session does not authenticate but the backend returned a token, the
// session continues on bearer-fallback; with no token the login fails with
// domain.ErrCookieBlocked.
func (m *Manager) Login(ctx context.Context, identifier, password string) (domain.Snapshot, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return m.Snapshot(), domain.ErrInvalidPayload
	}
	req := transport.LoginRequest{Password: password, IncludeToken: true}
	if strings.Contains(identifier, "@") {
		req.Email = identifier
	} else {
		req.Username = identifier
	}
	return m.authenticate(ctx, "login", func(ctx context.Context) (*transport.AuthResponse, error) {
		return m.api.Login(ctx, req)
	})
}

// Register creates an account and signs it in with the same verification
// and fallback rules as Login.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (domain.Snapshot, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return m.Snapshot(), domain.ErrInvalidPayload
	}
	if in.PasswordConfirm == "" {
		in.PasswordConfirm = in.Password
	}
	req := transport.RegisterRequest{
		Username:     in.Username,
		Email:        in.Email,
		Password:     in.Password,
		Password2:    in.PasswordConfirm,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IncludeToken: true,
	}
	return m.authenticate(ctx, "register", func(ctx context.Context) (*transport.AuthResponse, error) {
		return m.api.Register(ctx, req)
	})
}

func (m *Manager) authenticate(ctx context.Context, op string, exchange func(context.Context) (*transport.AuthResponse, error)) (domain.Snapshot, error) {
	release := m.acquireGuard(ctx, op)
	defer release()
	log := m.logger.With(zap.String("op", op))

	m.stopSettle()
	works := cookies.Probe(ctx, m.jar, m.storage)
	// Leftover cookies are about to be cleared, so the previous session is
	// gone whatever the outcome.
	gen, _ := m.advance(func(s *domain.Session) {
		apply(s, domain.EventLogout)
		s.User = nil
		s.Strategy = domain.StrategyCookie
		s.LastError = ""
		m.cookiesWork = works
		m.identity = domain.CachedIdentity{}
	})
	m.cache.clearIdentity(ctx)
	if n := m.jar.ClearNonEssential(cookies.CSRFCookieName); n > 0 {
		log.Debug("cleared leftover cookies", zap.Int("count", n))
	}
	if err := m.api.FetchCSRF(ctx); err != nil {
		log.Warn("csrf refresh failed", zap.Error(err))
	}

	resp, err := exchange(ctx)
	if err != nil {
		err = credentialError(err)
		m.metrics.LoginCompleted(strings.ToLower(string(errorCode(err))))
		snap, _ := m.update(gen, func(s *domain.Session) { s.LastError = domain.Message(err) })
		log.Info("sign-in rejected", zap.Error(err))
		return snap, err
	}

	now := m.now()
	if _, ok := m.update(gen, func(s *domain.Session) {
		apply(s, domain.EventLogin)
		s.User = resp.User.Clone()
		s.Strategy = domain.StrategyCookie
		m.identity = domain.CachedIdentity{User: resp.User.Clone(), Token: resp.Token, LastAuthAt: now}
	}); !ok {
		return m.Snapshot(), errSuperseded
	}
	m.cache.saveUser(ctx, resp.User, now)
	m.cache.saveToken(ctx, resp.Token)

	verified, verr := m.api.CurrentUser(ctx, "")
	switch {
	case verr == nil && verified != nil:
		snap, ok := m.update(gen, func(s *domain.Session) {
			s.User = verified.Clone()
			s.LastVerifiedAt = m.now()
			m.identity.User = verified.Clone()
		})
		if !ok {
			return snap, errSuperseded
		}
		m.cache.saveUser(ctx, verified, now)
		m.cache.saveCookies(ctx, m.jar.Export())
		m.metrics.LoginCompleted("success")
		log.Info("signed in", zap.Int64("user_id", verified.ID), zap.String("strategy", string(snap.Strategy)))
		return snap, nil

	case resp.Token != "":
		snap, ok := m.update(gen, func(s *domain.Session) {
			s.Strategy = domain.StrategyBearerFallback
			s.LastVerifiedAt = m.now()
		})
		if !ok {
			return snap, errSuperseded
		}
		m.metrics.LoginCompleted("bearer_fallback")
		log.Warn("cookie session did not take effect, continuing with bearer token", zap.Error(verr))
		return snap, nil

	default:
		snap, _ := m.update(gen, func(s *domain.Session) {
			apply(s, domain.EventLogout)
			s.User = nil
			s.LastError = domain.ErrCookieBlocked.Message
			m.identity = domain.CachedIdentity{}
		})
		m.cache.clearIdentity(ctx)
		m.metrics.LoginCompleted("cookie_blocked")
		log.Warn("sign-in could not be verified and no token was issued", zap.Error(verr))
		return snap, domain.ErrCookieBlocked
	}
}

// credentialError separates bad credentials from malformed input.
func credentialError(err error) error {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return domain.ErrBadCredentials
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return domain.ErrInvalidPayload
	default:
		return err
	}
}

func errorCode(err error) domain.ErrorCode {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return domain.ErrCodeInternal
}
