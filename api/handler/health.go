package handler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/internal/infrastructure/monitor"
	"github.com/fastygo/campus/pkg/httpcontext"
)

// StatusSource reports dependency health.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
}

func NewHealthHandler(mon StatusSource, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// Check reports backend and storage reachability.
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"backend": map[string]interface{}{
				"online":     status.Backend,
				"latency_ms": status.BackendLatency.Milliseconds(),
			},
			"storage": map[string]interface{}{
				"online": status.Storage,
				"driver": status.StorageDriver,
			},
		},
		"last_check": status.LastCheck,
	}

	if status.Backend && status.Storage {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}

// MetricsHandler exposes the registry in the Prometheus text format.
func MetricsHandler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
