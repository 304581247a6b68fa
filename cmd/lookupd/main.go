// Command lookupd serves memoized lookups against an upstream JSON API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sbc-om/sbc-sub007/auth"
	"github.com/sbc-om/sbc-sub007/cache/memo"
	cacheredis "github.com/sbc-om/sbc-sub007/cache/redis"
	"github.com/sbc-om/sbc-sub007/cache/ttl"
	"github.com/sbc-om/sbc-sub007/httpx"
	"github.com/sbc-om/sbc-sub007/internal/config"
	"github.com/sbc-om/sbc-sub007/internal/logging"
	"github.com/sbc-om/sbc-sub007/lookup"
	"github.com/sbc-om/sbc-sub007/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := logging.New(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("lookupd stopped")
	}
	logger.Info("lookupd stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	reg := metrics.New()

	local := ttl.NewSynced[json.RawMessage](cfg.Cache.TTL, cfg.Cache.MaxEntries,
		ttl.WithMetrics(reg.Cache("lookup")),
	)
	defer local.Close()
	local.StartReaper(cfg.Cache.ReapInterval)

	memoOpts := []memo.Option{
		memo.WithLogger(logger.WithField("component", "memo")),
		memo.WithLoadTimeout(cfg.Upstream.Timeout),
	}
	var checks []lookup.HealthChecker

	if cfg.Redis.Enabled {
		client, err := cacheredis.NewClient(ctx, cacheredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		store := cacheredis.NewStore(client, cfg.Redis.KeyPrefix)
		memoOpts = append(memoOpts, memo.WithSharedStore(store))
		checks = append(checks, lookup.CheckFunc("redis", store.Ping))
		logger.WithField("addr", cfg.Redis.Addr).Info("shared cache enabled")
	}

	upstream := httpx.NewClient(
		httpx.WithBaseURL(cfg.Upstream.BaseURL),
		httpx.WithClientTimeout(cfg.Upstream.Timeout),
	)
	svc := lookup.NewService(upstream, memo.New(local, memoOpts...),
		lookup.WithAPIKey(cfg.Upstream.APIKey),
		lookup.WithLogger(logger.WithField("component", "lookup")),
	)

	handlerOpts := []lookup.HandlerOption{
		lookup.WithHealthChecks(checks...),
		lookup.WithMetricsHandler(reg.Handler()),
	}
	if cfg.Admin.TokenHash != "" {
		verifier, err := auth.NewAdminVerifier(cfg.Admin.TokenHash, cfg.Admin.VerifyCacheTTL,
			ttl.WithMetrics(reg.Cache("admin_tokens")),
		)
		if err != nil {
			return err
		}
		defer verifier.Close()

		mw, err := auth.NewMiddleware(verifier,
			auth.WithTokenExtractor(auth.AdminTokenExtractor(cfg.Admin.CookieName)),
		)
		if err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, lookup.WithAdmin(httpx.AuthMiddleware(mw), httpx.RequireRole(auth.AdminRole)))
	} else {
		logger.Warn("ADMIN_TOKEN_HASH not set; cache admin routes disabled")
	}

	server := httpx.NewServer(
		httpx.WithAddress(cfg.Server.Address),
		httpx.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpx.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		httpx.WithLogger(logger.WithField("component", "http")),
		httpx.WithRequestObserver(reg),
	)
	server.RegisterRoutes(lookup.NewHandler(svc, handlerOpts...).Register)

	logger.WithFields(logrus.Fields{
		"addr":        cfg.Server.Address,
		"upstream":    cfg.Upstream.BaseURL,
		"ttl":         cfg.Cache.TTL.String(),
		"max_entries": cfg.Cache.MaxEntries,
	}).Info("lookupd listening")
	return server.Start(ctx)
}
