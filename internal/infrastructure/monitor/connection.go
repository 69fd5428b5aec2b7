package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is anything that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Monitor struct {
	backend Pinger
	storage Pinger
	driver  string

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(backend, storage Pinger, driver string, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		backend:  backend,
		storage:  storage,
		driver:   driver,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger.Named("monitor"),
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the backend answered the last probe.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Backend
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every dependency once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	backendOK, latency := m.checkBackend(ctx)
	status := Status{
		Backend:        backendOK,
		BackendLatency: latency,
		Storage:        m.checkStorage(ctx),
		StorageDriver:  m.driver,
		LastCheck:      time.Now(),
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.Backend != status.Backend {
		m.logger.Info("backend reachability changed", zap.Bool("online", status.Backend))
	}
	return status
}

func (m *Monitor) checkBackend(ctx context.Context) (bool, time.Duration) {
	if m.backend == nil {
		return false, 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	started := time.Now()
	if err := m.backend.Ping(ctx); err != nil {
		m.logger.Debug("backend probe failed", zap.Error(err))
		return false, 0
	}
	return true, time.Since(started)
}

func (m *Monitor) checkStorage(ctx context.Context) bool {
	if m.storage == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.storage.Ping(ctx); err != nil {
		m.logger.Warn("storage probe failed", zap.String("driver", m.driver), zap.Error(err))
		return false
	}
	return true
}
