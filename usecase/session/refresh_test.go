package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/repository"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// bearerSession authenticates through the cached token.
func (f *fixture) bearerSession(t *testing.T, token string) {
	t.Helper()
	f.seed(t, repository.KeyToken, token)
	f.manager.Init(context.Background())
	f.api.On("Verify", mock.Anything).Return(nil, errUnauthorized).Once()
	f.api.On("CurrentUser", mock.Anything, token).Return(ada, nil).Once()
	snap := f.manager.CheckAuth(context.Background(), false)
	require.Equal(t, domain.StrategyBearerFallback, snap.Strategy)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	got, ok := tokenExpiry(signedToken(t, exp))
	assert.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = tokenExpiry("opaque-token")
	assert.False(t, ok)
	_, ok = tokenExpiry("a.b.c")
	assert.False(t, ok)
}

func TestRefreshIfStaleUsesJWTExpiry(t *testing.T) {
	f := newFixture(t, "/dashboard")
	token := signedToken(t, f.now.Add(2*time.Minute))
	f.bearerSession(t, token)
	f.api.On("Refresh", mock.Anything, token).Return("rotated", nil).Once()

	refreshed, err := f.manager.RefreshIfStale(context.Background())

	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, "rotated", f.manager.AuthToken())
	stored, _ := f.stored(repository.KeyToken)
	assert.Equal(t, "rotated", stored)
	_, ok := f.stored(repository.KeyLastRefresh)
	assert.True(t, ok)
}

func TestRefreshIfStaleSkipsFreshToken(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.bearerSession(t, signedToken(t, f.now.Add(time.Hour)))

	refreshed, err := f.manager.RefreshIfStale(context.Background())

	require.NoError(t, err)
	assert.False(t, refreshed)
	f.api.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestRefreshIfStaleCookieSessionUsesTimestamps(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)

	refreshed, err := f.manager.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.False(t, refreshed, "just verified")

	f.now = f.now.Add(56 * time.Minute)
	f.api.On("Refresh", mock.Anything, "").Return("", nil).Once()
	refreshed, err = f.manager.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.True(t, refreshed)

	refreshed, err = f.manager.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.False(t, refreshed, "last refresh counts as fresh")
}

func TestRefreshIfStaleUnauthenticated(t *testing.T) {
	f := newFixture(t, "/dashboard")

	refreshed, err := f.manager.RefreshIfStale(context.Background())

	assert.NoError(t, err)
	assert.False(t, refreshed)
	assert.Empty(t, f.api.Calls)
}

func TestRefreshRejectedReverifies(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)
	f.api.On("Refresh", mock.Anything, "").Return("", errUnauthorized).Once()
	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()

	err := f.manager.Refresh(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.api.AssertNumberOfCalls(t, "Verify", 2)
	assert.True(t, f.manager.Snapshot().IsAuthenticated)
}

func TestRefreshFailureKeepsSession(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)
	f.api.On("Refresh", mock.Anything, "").Return("", errOffline).Once()

	err := f.manager.Refresh(context.Background())

	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
	assert.True(t, f.manager.Snapshot().IsAuthenticated)
}

func TestVisibilityRegainChecksStaleness(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)
	f.now = f.now.Add(2 * time.Hour)
	f.api.On("Refresh", mock.Anything, "").Return("", nil).Once()

	require.NoError(t, f.manager.OnVisibilityChange(context.Background(), false))
	f.api.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)

	require.NoError(t, f.manager.OnVisibilityChange(context.Background(), true))
	f.api.AssertNumberOfCalls(t, "Refresh", 1)
}

// blockRefresh makes the next Refresh call wait until release is closed and
// then rotate the token to "newtok".
func (f *fixture) blockRefresh(started chan<- struct{}, release <-chan struct{}) {
	f.api.On("Refresh", mock.Anything, "").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return("newtok", nil).Once()
}

func (f *fixture) assertIdentityCleared(t *testing.T) {
	t.Helper()
	for _, key := range []string{repository.KeyToken, repository.KeyLastRefresh} {
		_, ok := f.stored(key)
		assert.False(t, ok, key)
	}
	f.manager.mu.RLock()
	defer f.manager.mu.RUnlock()
	assert.Empty(t, f.manager.identity.Token)
	assert.True(t, f.manager.identity.LastRefreshAt.IsZero())
}

func TestRefreshCompletingAfterExhaustionIsDiscarded(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)
	started, release := make(chan struct{}), make(chan struct{})
	f.blockRefresh(started, release)

	done := make(chan error, 1)
	go func() { done <- f.manager.Refresh(context.Background()) }()
	<-started

	f.api.On("Verify", mock.Anything).Return(nil, errUnauthorized).Twice()
	f.api.On("CurrentUser", mock.Anything, "").Return(nil, errUnauthorized).Once()
	snap := f.manager.CheckAuth(context.Background(), false)
	require.Equal(t, domain.StatusUnauthenticated, snap.Status)

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, domain.StatusUnauthenticated, f.manager.Snapshot().Status)
	f.assertIdentityCleared(t)
}

func TestRefreshCompletingAfterLogoutIsDiscarded(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)
	started, release := make(chan struct{}), make(chan struct{})
	f.blockRefresh(started, release)
	f.api.On("Logout", mock.Anything, "").Return(nil).Once()

	done := make(chan error, 1)
	go func() { done <- f.manager.Refresh(context.Background()) }()
	<-started
	f.manager.Logout(context.Background())

	close(release)
	require.NoError(t, <-done)

	assert.False(t, f.manager.Snapshot().IsAuthenticated)
	f.assertIdentityCleared(t)
}
