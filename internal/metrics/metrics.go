package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the session metrics.
type Config struct {
	// Namespace is the metrics namespace (default: "campus").
	Namespace string

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Metrics holds the client session metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	checksTotal      *prometheus.CounterVec
	loginsTotal      *prometheus.CounterVec
	refreshesTotal   *prometheus.CounterVec
	logoutsTotal     prometheus.Counter
	rateLimitRetries prometheus.Counter
	authenticated    prometheus.Gauge
}

// New registers the session metrics.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "campus"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		checksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "checks_total",
			Help:      "Session verifications by the mechanism that settled them",
		}, []string{"outcome"}),
		loginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login and registration attempts by outcome",
		}, []string{"outcome"}),
		refreshesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Token refresh attempts by outcome",
		}, []string{"outcome"}),
		logoutsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Logouts performed",
		}),
		rateLimitRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "api",
			Name:      "rate_limit_retries_total",
			Help:      "Requests retried after HTTP 429",
		}),
		authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while the session is authenticated",
		}),
	}
}

func (m *Metrics) CheckCompleted(outcome string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LoginCompleted(outcome string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RefreshCompleted(outcome string) {
	if m == nil {
		return
	}
	m.refreshesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LoggedOut() {
	if m == nil {
		return
	}
	m.logoutsTotal.Inc()
}

func (m *Metrics) RateLimitRetried() {
	if m == nil {
		return
	}
	m.rateLimitRetries.Inc()
}

func (m *Metrics) SetAuthenticated(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.authenticated.Set(1)
		return
	}
	m.authenticated.Set(0)
}
