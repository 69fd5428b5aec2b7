package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/campus/api/client"
	"github.com/fastygo/campus/internal/config"
	"github.com/fastygo/campus/internal/cookies"
	boltInfra "github.com/fastygo/campus/internal/infrastructure/bolt"
	redisInfra "github.com/fastygo/campus/internal/infrastructure/redis"
	"github.com/fastygo/campus/internal/metrics"
	"github.com/fastygo/campus/internal/navigation"
	"github.com/fastygo/campus/internal/services/lifecycle"
	"github.com/fastygo/campus/pkg/logger"
	"github.com/fastygo/campus/repository"
	boltRepo "github.com/fastygo/campus/repository/bolt"
	"github.com/fastygo/campus/repository/memory"
	redisRepo "github.com/fastygo/campus/repository/redis"
	catalogUC "github.com/fastygo/campus/usecase/catalog"
	sessionUC "github.com/fastygo/campus/usecase/session"
)

// app is the wired client shared by every command.
type app struct {
	cfg      *config.Config
	flags    *globalFlags
	logger   *zap.Logger
	life     *lifecycle.Manager
	storage  repository.LocalStorage
	jar      *cookies.Jar
	api      *client.Client
	routes   *navigation.Router
	policy   *navigation.Policy
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	session  *sessionUC.Manager
	catalog  *catalogUC.UseCase
}

func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	a := &app{
		cfg:    cfg,
		flags:  flags,
		logger: zapLogger,
		life:   lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger),
	}
	a.life.RegisterFunc("logger", func() { _ = zapLogger.Sync() })

	if a.storage, err = a.openStorage(ctx); err != nil {
		_ = a.life.Shutdown(context.Background())
		return nil, err
	}

	var jarOpts []cookies.Option
	if cfg.Auth.CookiesDisabled {
		jarOpts = append(jarOpts, cookies.WithBlocked())
	}
	if a.jar, err = cookies.NewJar(cfg.API.BaseURL, jarOpts...); err != nil {
		_ = a.life.Shutdown(context.Background())
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(metrics.Config{Registry: a.registry})

	a.api, err = client.New(client.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		LogoutTimeout: cfg.API.LogoutTimeout,
		MaxRetryAfter: cfg.API.MaxRetryAfter,
		MaxConns:      cfg.API.MaxConns,
		UserAgent:     cfg.API.UserAgent,
	}, a.jar, zapLogger, client.WithMetrics(a.metrics))
	if err != nil {
		_ = a.life.Shutdown(context.Background())
		return nil, err
	}

	a.routes = navigation.NewRouter(flags.route)
	a.policy = navigation.NewPolicy(cfg.Routes.Login, cfg.Routes.Register, cfg.Routes.Public)

	a.session, err = sessionUC.New(sessionUC.Config{
		GraceDelay:        cfg.Auth.GraceDelay,
		GraceCooldown:     cfg.Auth.GraceCooldown,
		LogoutSettleDelay: cfg.Auth.LogoutSettleDelay,
		TokenLifetime:     cfg.Auth.TokenLifetime,
		RefreshMargin:     cfg.Auth.RefreshMargin,
		ReevaluateBearer:  cfg.Auth.ReevaluateBearer,
	}, sessionUC.Dependencies{
		API:       a.api,
		Cookies:   a.jar,
		Storage:   a.storage,
		Navigator: a.routes,
		Policy:    a.policy,
		Metrics:   a.metrics,
		Logger:    zapLogger,
	})
	if err != nil {
		_ = a.life.Shutdown(context.Background())
		return nil, err
	}
	a.session.Init(ctx)
	a.life.Register("session", func(ctx context.Context) error {
		a.session.Close(ctx)
		return nil
	})

	a.catalog = catalogUC.New(a.api, a.session, zapLogger)
	return a, nil
}

func (a *app) openStorage(ctx context.Context) (repository.LocalStorage, error) {
	cfg := a.cfg
	switch cfg.Storage.Driver {
	case "redis":
		rdb, err := redisInfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.life.Register("redis", func(context.Context) error { return rdb.Close() })
		return redisRepo.NewStorageRepository(rdb, cfg.Storage.KeyPrefix, cfg.Storage.RedisTTL), nil
	case "memory":
		return memory.NewStorage(), nil
	default:
		db, err := boltInfra.Open(cfg.Storage.BoltPath, cfg.Storage.BoltBucket)
		if err != nil {
			return nil, fmt.Errorf("open %s (is an agent holding it?): %w", cfg.Storage.BoltPath, err)
		}
		a.life.Register("bolt", func(context.Context) error { return db.Close() })
		return boltRepo.NewStorageRepository(db, cfg.Storage.BoltBucket), nil
	}
}

func (a *app) close() {
	if err := a.life.Shutdown(context.Background()); err != nil {
		errorMsg("shutdown: %s", err)
	}
}

// run wires the app for a short-lived command bounded by REQUEST_TIMEOUT_SECONDS.
func run(flags *globalFlags, fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), flags)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Context.RequestTimeout)
		defer cancel()
		return fn(ctx, a, args)
	}
}
