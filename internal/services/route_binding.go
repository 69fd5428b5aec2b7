package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/navigation"
)

// RouteChecker re-verifies the session after a route change.
type RouteChecker interface {
	OnRouteChange(ctx context.Context, path string) domain.Snapshot
}

// BindRoutes runs a route check for every soft navigation. Hard redirects
// come from the session manager itself and are not checked again. The
// returned function unbinds.
func BindRoutes(routes *navigation.Router, session RouteChecker, timeout time.Duration, logger *zap.Logger) func() {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return routes.Subscribe(func(ev navigation.Event) {
		if ev.Hard || ev.From == ev.To {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			snap := session.OnRouteChange(ctx, ev.To)
			logger.Debug("route checked",
				zap.String("route", ev.To),
				zap.String("status", string(snap.Status)),
			)
		}()
	})
}
