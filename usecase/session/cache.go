package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/cookies"
	"github.com/fastygo/campus/repository"
)

// identityCache reads and writes the cached identity in local storage.
// Storage failures are logged and otherwise ignored: the cache is a hint.
type identityCache struct {
	storage repository.LocalStorage
	logger  *zap.Logger
}

func (c *identityCache) load(ctx context.Context) domain.CachedIdentity {
	var id domain.CachedIdentity
	if raw := c.get(ctx, repository.KeyUser); raw != "" {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			id.User = &u
		} else {
			c.logger.Debug("discarding malformed cached user", zap.Error(err))
		}
	}
	id.Token = c.get(ctx, repository.KeyToken)
	id.LastAuthAt = c.getTime(ctx, repository.KeyLastAuth)
	id.LastRefreshAt = c.getTime(ctx, repository.KeyLastRefresh)
	return id
}

func (c *identityCache) saveUser(ctx context.Context, u *domain.User, at time.Time) {
	if u == nil {
		return
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	c.set(ctx, repository.KeyUser, string(raw))
	c.setTime(ctx, repository.KeyLastAuth, at)
}

func (c *identityCache) saveToken(ctx context.Context, token string) {
	if token == "" {
		c.remove(ctx, repository.KeyToken)
		return
	}
	c.set(ctx, repository.KeyToken, token)
}

func (c *identityCache) saveRefresh(ctx context.Context, token string, at time.Time) {
	if token != "" {
		c.set(ctx, repository.KeyToken, token)
	}
	c.setTime(ctx, repository.KeyLastRefresh, at)
}

func (c *identityCache) clearIdentity(ctx context.Context) {
	c.remove(ctx, repository.IdentityKeys...)
}

// clearSession removes the identity and the tab-scoped keys.
func (c *identityCache) clearSession(ctx context.Context) {
	keys := append([]string{repository.KeyLastPage}, repository.IdentityKeys...)
	c.remove(ctx, keys...)
}

func (c *identityCache) setGuard(ctx context.Context, op string, at time.Time) {
	c.set(ctx, repository.KeyOpGuard, op+":"+strconv.FormatInt(at.UnixMilli(), 10))
}

func (c *identityCache) clearGuard(ctx context.Context) {
	c.remove(ctx, repository.KeyOpGuard)
}

// guardActive reports a guard younger than ttl. Older guards are leftovers of
// a process that died mid-operation.
func (c *identityCache) guardActive(ctx context.Context, now time.Time, ttl time.Duration) bool {
	raw := c.get(ctx, repository.KeyOpGuard)
	if raw == "" {
		return false
	}
	_, ms, ok := strings.Cut(raw, ":")
	if !ok {
		return false
	}
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return false
	}
	return now.Sub(time.UnixMilli(v)) < ttl
}

func (c *identityCache) setLastPage(ctx context.Context, path string) {
	c.set(ctx, repository.KeyLastPage, path)
}

func (c *identityCache) lastPage(ctx context.Context) string {
	return c.get(ctx, repository.KeyLastPage)
}

func (c *identityCache) saveCookies(ctx context.Context, stored []cookies.StoredCookie) {
	if len(stored) == 0 {
		c.remove(ctx, repository.KeyCookies)
		return
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return
	}
	c.set(ctx, repository.KeyCookies, string(raw))
}

func (c *identityCache) loadCookies(ctx context.Context) []cookies.StoredCookie {
	raw := c.get(ctx, repository.KeyCookies)
	if raw == "" {
		return nil
	}
	var stored []cookies.StoredCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		c.logger.Debug("discarding malformed cookie snapshot", zap.Error(err))
		return nil
	}
	return stored
}

func (c *identityCache) get(ctx context.Context, key string) string {
	v, err := c.storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			c.logger.Debug("local storage read failed", zap.String("key", key), zap.Error(err))
		}
		return ""
	}
	return v
}

func (c *identityCache) set(ctx context.Context, key, value string) {
	if err := c.storage.Set(ctx, key, value); err != nil {
		c.logger.Debug("local storage write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *identityCache) remove(ctx context.Context, keys ...string) {
	if err := c.storage.Remove(ctx, keys...); err != nil {
		c.logger.Debug("local storage remove failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *identityCache) getTime(ctx context.Context, key string) time.Time {
	raw := c.get(ctx, key)
	if raw == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (c *identityCache) setTime(ctx context.Context, key string, t time.Time) {
	c.set(ctx, key, strconv.FormatInt(t.UnixMilli(), 10))
}
