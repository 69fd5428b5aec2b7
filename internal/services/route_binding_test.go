package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/navigation"
)

type recordingChecker struct {
	mu    sync.Mutex
	paths []string
}

func (c *recordingChecker) OnRouteChange(_ context.Context, path string) domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
	return domain.Snapshot{Status: domain.StatusAuthenticated}
}

func (c *recordingChecker) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func TestBindRoutesChecksSoftNavigations(t *testing.T) {
	routes := navigation.NewRouter("/")
	checker := &recordingChecker{}
	unbind := BindRoutes(routes, checker, time.Second, nil)

	routes.Navigate("/dashboard")
	routes.Redirect("/login?next=%2Fdashboard")
	routes.Navigate("/login?next=%2Fdashboard")

	assert.Eventually(t, func() bool { return len(checker.seen()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/dashboard"}, checker.seen())

	unbind()
	routes.Navigate("/profile")
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, checker.seen(), 1)
}
