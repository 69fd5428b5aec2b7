package session

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/navigation"
	"github.com/fastygo/campus/repository"
)

func TestCheckAuthVerifyShortCircuits(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.seed(t, repository.KeyToken, "tok")
	f.manager.Init(context.Background())
	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()

	snap := f.manager.CheckAuth(context.Background(), true)

	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, domain.StatusAuthenticated, snap.Status)
	assert.Equal(t, domain.StrategyCookie, snap.Strategy)
	assert.Equal(t, "ada", snap.User.Username)
	assert.False(t, snap.CheckInFlight)
	require.NotNil(t, snap.LastVerifiedAt)
	assert.Equal(t, f.now, *snap.LastVerifiedAt)

	f.api.AssertNumberOfCalls(t, "Verify", 1)
	f.api.AssertNotCalled(t, "CurrentUser", mock.Anything, mock.Anything)

	raw, ok := f.stored(repository.KeyUser)
	assert.True(t, ok)
	assert.Contains(t, raw, `"username":"ada"`)
	_, ok = f.stored(repository.KeyLastAuth)
	assert.True(t, ok)
}

func TestCheckAuthCoalescesConcurrentCalls(t *testing.T) {
	f := newFixture(t, "/dashboard")
	started := make(chan struct{})
	release := make(chan struct{})
	f.api.On("Verify", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(ada, nil).Once()

	results := make([]domain.Snapshot, 3)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		results[0] = f.manager.CheckAuth(context.Background(), false)
	}()
	<-started
	assert.True(t, f.manager.Snapshot().CheckInFlight)
	for i := 1; i < 3; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = f.manager.CheckAuth(context.Background(), false)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	f.api.AssertNumberOfCalls(t, "Verify", 1)
	for _, r := range results {
		assert.True(t, r.IsAuthenticated)
		assert.Equal(t, results[0], r)
	}
}

func TestCheckAuthFallsBackToBearerToken(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.seed(t, repository.KeyToken, "tok")
	f.manager.Init(context.Background())
	f.api.On("Verify", mock.Anything).Return(nil, errUnauthorized).Once()
	f.api.On("CurrentUser", mock.Anything, "tok").Return(ada, nil).Once()

	snap := f.manager.CheckAuth(context.Background(), false)

	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, domain.StrategyBearerFallback, snap.Strategy)
	f.api.AssertNotCalled(t, "CurrentUser", mock.Anything, "")
}

func TestCheckAuthFallsBackToCookieCurrentUser(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.api.On("Verify", mock.Anything).Return(nil, errOffline).Once()
	f.api.On("CurrentUser", mock.Anything, "").Return(ada, nil).Once()

	snap := f.manager.CheckAuth(context.Background(), false)

	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, domain.StrategyCookie, snap.Strategy)
}

// An expired cookie on a protected page with a background check: the session
// is cleared without navigating anywhere.
func TestCheckAuthExpiredCookieScenario(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.seed(t, repository.KeyUser, `{"id":7,"username":"ada"}`)
	f.manager.Init(context.Background())
	f.api.On("Verify", mock.Anything).Return(nil, errUnauthorized).Once()
	f.api.On("CurrentUser", mock.Anything, "").Return(nil, errUnauthorized).Once()

	snap := f.manager.CheckAuth(context.Background(), false)

	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, domain.StatusUnauthenticated, snap.Status)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.CachedUser)
	assert.Empty(t, f.router.Redirects())
	assert.Equal(t, "/dashboard", f.router.Current())
	f.api.AssertNumberOfCalls(t, "Verify", 1)
	_, ok := f.stored(repository.KeyUser)
	assert.False(t, ok)
}

func TestCheckAuthExhaustionRedirectsFromProtectedRoute(t *testing.T) {
	f := newFixture(t, "/dashboard?tab=saved")
	f.seed(t, repository.KeyToken, "tok")
	f.seed(t, repository.KeyUser, `{"id":7,"username":"ada"}`)
	f.manager.Init(context.Background())
	f.api.On("Verify", mock.Anything).Return(nil, errUnauthorized).Once()
	f.api.On("CurrentUser", mock.Anything, "tok").Return(nil, errUnauthorized).Once()
	f.api.On("CurrentUser", mock.Anything, "").Return(nil, errUnauthorized).Once()

	snap := f.manager.CheckAuth(context.Background(), true)

	assert.False(t, snap.IsAuthenticated)
	require.Len(t, f.router.Redirects(), 1)
	target, err := url.Parse(f.router.Redirects()[0])
	require.NoError(t, err)
	assert.Equal(t, "/login", target.Path)
	assert.Equal(t, navigation.MessageSessionExpired, target.Query().Get("message"))
	assert.Equal(t, "/dashboard", target.Query().Get("next"))

	for _, key := range repository.IdentityKeys {
		_, ok := f.stored(key)
		assert.False(t, ok, key)
	}
	assert.Empty(t, f.manager.AuthToken())
}

func TestCheckAuthExhaustionOnPublicRouteStays(t *testing.T) {
	f := newFixture(t, "/courses/12")
	f.api.On("Verify", mock.Anything).Return(nil, errUnauthorized).Once()
	f.api.On("CurrentUser", mock.Anything, "").Return(nil, errUnauthorized).Once()

	f.manager.CheckAuth(context.Background(), true)

	assert.Empty(t, f.router.Redirects())
}

func TestCheckAuthSkipsAuthRoutes(t *testing.T) {
	for _, route := range []string{"/login", "/register", "/login?next=/x"} {
		f := newFixture(t, route)
		snap := f.manager.CheckAuth(context.Background(), true)
		assert.Equal(t, domain.StatusUnknown, snap.Status)
		f.api.AssertNotCalled(t, "Verify", mock.Anything)
	}
}

func TestCheckAuthGraceRetryForAuthenticatedClient(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)
	f.api.On("Verify", mock.Anything).Return(nil, errOffline).Once()
	f.api.On("CurrentUser", mock.Anything, "").Return(nil, errOffline).Once()
	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()

	snap := f.manager.CheckAuth(context.Background(), true)

	assert.True(t, snap.IsAuthenticated)
	f.api.AssertNumberOfCalls(t, "Verify", 3)
	assert.Empty(t, f.router.Redirects())
}

func TestCheckAuthGraceRetryHasCooldown(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)

	// First failure consumes the grace retry and recovers.
	f.api.On("Verify", mock.Anything).Return(nil, errOffline).Once()
	f.api.On("CurrentUser", mock.Anything, "").Return(nil, errOffline).Once()
	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()
	require.True(t, f.manager.CheckAuth(context.Background(), false).IsAuthenticated)

	// Inside the cooldown a second failure is final.
	f.api.On("Verify", mock.Anything).Return(nil, errOffline).Once()
	f.api.On("CurrentUser", mock.Anything, "").Return(nil, errOffline).Once()
	snap := f.manager.CheckAuth(context.Background(), false)

	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, "session expired", snap.LastError)
	f.api.AssertNumberOfCalls(t, "Verify", 4)

	// After the cooldown the grace retry is available again.
	f.now = f.now.Add(2 * time.Minute)
	f.authenticate(t)
	f.api.On("Verify", mock.Anything).Return(nil, errOffline).Once()
	f.api.On("CurrentUser", mock.Anything, "").Return(nil, errOffline).Once()
	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()
	assert.True(t, f.manager.CheckAuth(context.Background(), false).IsAuthenticated)
}

func TestCheckAuthKeepsBearerStrategy(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.seed(t, repository.KeyToken, "tok")
	f.manager.Init(context.Background())
	f.api.On("Verify", mock.Anything).Return(nil, errUnauthorized).Once()
	f.api.On("CurrentUser", mock.Anything, "tok").Return(ada, nil).Once()
	require.Equal(t, domain.StrategyBearerFallback, f.manager.CheckAuth(context.Background(), false).Strategy)

	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()
	snap := f.manager.CheckAuth(context.Background(), false)

	assert.Equal(t, domain.StrategyBearerFallback, snap.Strategy)
}

func TestCheckAuthReevaluatesBearerWhenEnabled(t *testing.T) {
	f := newFixture(t, "/dashboard", func(cfg *Config, _ *Dependencies) { cfg.ReevaluateBearer = true })
	f.seed(t, repository.KeyToken, "tok")
	f.manager.Init(context.Background())
	f.api.On("Verify", mock.Anything).Return(nil, errUnauthorized).Once()
	f.api.On("CurrentUser", mock.Anything, "tok").Return(ada, nil).Once()
	require.Equal(t, domain.StrategyBearerFallback, f.manager.CheckAuth(context.Background(), false).Strategy)

	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()
	snap := f.manager.CheckAuth(context.Background(), false)

	assert.Equal(t, domain.StrategyCookie, snap.Strategy)
}

func TestCheckAuthDiscardsResultOvertakenByLogout(t *testing.T) {
	f := newFixture(t, "/dashboard")
	started := make(chan struct{})
	release := make(chan struct{})
	f.api.On("Verify", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(ada, nil).Once()
	f.api.On("Logout", mock.Anything, "").Return(nil)

	done := make(chan domain.Snapshot)
	go func() { done <- f.manager.CheckAuth(context.Background(), false) }()
	<-started
	f.manager.Logout(context.Background())
	close(release)
	<-done

	snap := f.manager.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, domain.StatusUnauthenticated, snap.Status)
	_, ok := f.stored(repository.KeyUser)
	assert.False(t, ok)
}

func TestCheckAuthCallerCancellation(t *testing.T) {
	f := newFixture(t, "/dashboard")
	release := make(chan struct{})
	f.api.On("Verify", mock.Anything).Run(func(mock.Arguments) { <-release }).Return(ada, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := f.manager.CheckAuth(ctx, false)
	assert.False(t, snap.IsAuthenticated)

	close(release)
	assert.Eventually(t, func() bool {
		return f.manager.Snapshot().IsAuthenticated
	}, time.Second, 5*time.Millisecond)
}

func TestOnRouteChangePublicRouteSkipsWhenUnauthenticated(t *testing.T) {
	f := newFixture(t, "/")

	f.router.Navigate("/about")
	snap := f.manager.OnRouteChange(context.Background(), "/about")

	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, f.api.Calls)
	assert.Equal(t, "/about", f.manager.LastPage(context.Background()))
}

func TestOnRouteChangeVerifiesProtectedRoute(t *testing.T) {
	f := newFixture(t, "/")
	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()

	f.router.Navigate("/dashboard")
	snap := f.manager.OnRouteChange(context.Background(), "/dashboard")

	assert.True(t, snap.IsAuthenticated)
	f.api.AssertNumberOfCalls(t, "Verify", 1)
}

func TestOnRouteChangeVerifiesPublicRouteWhenAuthenticated(t *testing.T) {
	f := newFixture(t, "/dashboard")
	f.authenticate(t)
	f.api.On("Verify", mock.Anything).Return(ada, nil).Once()

	f.router.Navigate("/about")
	f.manager.OnRouteChange(context.Background(), "/about")

	f.api.AssertNumberOfCalls(t, "Verify", 2)
}

func TestOnRouteChangeSkipsDuringOperation(t *testing.T) {
	f := newFixture(t, "/")
	release := f.manager.acquireGuard(context.Background(), "login")
	defer release()

	f.router.Navigate("/dashboard")
	f.manager.OnRouteChange(context.Background(), "/dashboard")

	assert.Empty(t, f.api.Calls)
}

func TestOnRouteChangeAuthRouteNotRecorded(t *testing.T) {
	f := newFixture(t, "/")
	f.router.Navigate("/login")
	f.manager.OnRouteChange(context.Background(), "/login")

	assert.Empty(t, f.api.Calls)
	assert.Empty(t, f.manager.LastPage(context.Background()))
}
