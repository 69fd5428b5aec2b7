package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/campus/domain"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// SessionRefresher is the part of the session manager the scheduler drives.
type SessionRefresher interface {
	RefreshIfStale(ctx context.Context) (bool, error)
	Subscribe(fn func(domain.Snapshot)) func()
}

// SchedulerConfig controls how often the session staleness is checked.
type SchedulerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// RefreshScheduler proactively refreshes the session token. The cron job
// only runs while the session is authenticated.
type RefreshScheduler struct {
	session SessionRefresher
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     SchedulerConfig

	mu          sync.Mutex
	running     bool
	unsubscribe func()
}

func NewRefreshScheduler(
	session SessionRefresher,
	monitor ConnectionHealth,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *RefreshScheduler {
	if cfg.Interval < time.Second {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rs := &RefreshScheduler{
		session: session,
		monitor: monitor,
		logger:  logger.Named("refresh"),
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = rs.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := rs.Tick(ctx); err != nil {
			rs.logger.Warn("scheduled refresh failed", zap.Error(err))
		}
	})

	return rs
}

// Attach follows the session: the scheduler starts on authentication and
// stops on logout or session loss.
func (rs *RefreshScheduler) Attach() {
	if rs == nil || rs.session == nil {
		return
	}
	unsubscribe := rs.session.Subscribe(func(s domain.Snapshot) {
		if s.IsAuthenticated {
			rs.Start()
			return
		}
		rs.halt()
	})
	rs.mu.Lock()
	rs.unsubscribe = unsubscribe
	rs.mu.Unlock()
}

// Start launches the cron scheduler.
func (rs *RefreshScheduler) Start() {
	if rs == nil || rs.cron == nil {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.running {
		return
	}
	rs.running = true
	rs.cron.Start()
	rs.logger.Info("refresh scheduler started", zap.Duration("interval", rs.cfg.Interval))
}

// Stop detaches from the session and waits for a running job.
func (rs *RefreshScheduler) Stop(ctx context.Context) {
	if rs == nil || rs.cron == nil {
		return
	}
	rs.mu.Lock()
	if rs.unsubscribe != nil {
		rs.unsubscribe()
		rs.unsubscribe = nil
	}
	rs.running = false
	rs.mu.Unlock()

	stopCtx := rs.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	rs.logger.Info("refresh scheduler stopped")
}

// halt stops scheduling without waiting: it runs from session
// notifications, possibly inside the job itself.
func (rs *RefreshScheduler) halt() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.running {
		return
	}
	rs.running = false
	rs.cron.Stop()
	rs.logger.Info("refresh scheduler paused")
}

// Running reports whether the cron job is scheduled.
func (rs *RefreshScheduler) Running() bool {
	if rs == nil {
		return false
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.running
}

// Tick runs one staleness check.
func (rs *RefreshScheduler) Tick(ctx context.Context) error {
	if rs == nil || rs.session == nil {
		return nil
	}
	if rs.monitor != nil && !rs.monitor.IsOnline() {
		rs.logger.Debug("skipping refresh check (offline)")
		return nil
	}
	refreshed, err := rs.session.RefreshIfStale(ctx)
	if err != nil {
		return err
	}
	if refreshed {
		rs.logger.Debug("session refreshed ahead of expiry")
	}
	return nil
}
