package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/campus/api/handler"
	"github.com/fastygo/campus/internal/infrastructure/monitor"
	"github.com/fastygo/campus/internal/middleware"
	"github.com/fastygo/campus/internal/router"
	"github.com/fastygo/campus/internal/services"
	"github.com/fastygo/campus/pkg/httpcontext"
)

func agentCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Keep the session alive and serve it over HTTP",
		Long: `Run a long-lived session agent. The agent verifies the session on start,
refreshes it ahead of expiry, re-verifies on every route a UI reports and
exposes /health, /session and /metrics on AGENT_HOST:AGENT_PORT.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()
			return serveAgent(cmd.Context(), a)
		},
	}
}

func serveAgent(parent context.Context, a *app) error {
	cfg := a.cfg
	log := a.logger

	appCtx, cancel := a.life.Listen(parent)
	defer cancel()

	mon := monitor.New(a.api, a.storage, cfg.Storage.Driver, cfg.Agent.MonitorInterval, log)
	mon.Start()
	a.life.RegisterFunc("monitor", mon.Stop)

	scheduler := services.NewRefreshScheduler(a.session, mon, log, services.SchedulerConfig{
		Interval: cfg.Auth.RefreshCheckInterval,
		Timeout:  cfg.Context.RequestTimeout,
	})
	scheduler.Attach()
	a.life.Register("refresh_scheduler", func(ctx context.Context) error {
		scheduler.Stop(ctx)
		return nil
	})

	unbind := services.BindRoutes(a.routes, a.session, cfg.Context.RequestTimeout, log)
	a.life.RegisterFunc("route_binding", unbind)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Session: apiHandler.NewSessionHandler(a.session, a.routes, ctxAdapter, log),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, log),
	}
	if cfg.Agent.EnableMetrics {
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		handlers.Metrics = apiHandler.MetricsHandler(a.registry)
	}
	r := router.New(handlers, middleware.AgentAuth(cfg.Agent.Secret, log))

	server := &fasthttp.Server{
		Handler:      middleware.AccessLog(log)(r.Handler),
		ReadTimeout:  cfg.Agent.ReadTimeout,
		WriteTimeout: cfg.Agent.WriteTimeout,
		IdleTimeout:  cfg.Agent.IdleTimeout,
		Name:         cfg.AppName,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("agent started", zap.String("address", cfg.AgentAddress()))
		serveErr <- server.ListenAndServe(cfg.AgentAddress())
	}()
	a.life.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	go func() {
		ctx, cancel := context.WithTimeout(appCtx, cfg.Context.RequestTimeout)
		defer cancel()
		snap := a.session.CheckAuth(ctx, false)
		log.Info("initial session check", zap.String("status", string(snap.Status)))
	}()

	select {
	case <-appCtx.Done():
		return nil
	case err := <-serveErr:
		return err
	}
}
