package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"flex_reviews/internal/adapters/hostaway"
	server "flex_reviews/internal/adapters/http_server"
	"flex_reviews/internal/adapters/observability"
	redisad "flex_reviews/internal/adapters/redis"
	"flex_reviews/internal/app"
	"flex_reviews/internal/auth"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/shared"
	"flex_reviews/internal/storage/memory"
	mysqlrepo "flex_reviews/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// store
	var repo domain.ReviewRepository
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("using in-memory store; approvals are lost on restart")
		repo = memory.New()
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		repo = mysqlrepo.New(db)
	}

	// public listing cache is optional
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; public cache disabled")
			_ = rc.Close()
		} else {
			defer rc.Close()
			cache = rc
		}
	}

	src := reviewSource(cfg)
	channels, skipped := app.ChannelMap{}.With(cfg.ChannelOverrides)
	if len(skipped) > 0 {
		log.Warn().Strs("ids", skipped).Msg("ignoring HOSTAWAY_CHANNELS entries with unknown channel")
	}
	norm := app.NewNormalizer(channels, app.DateNormalizer{}, nil)

	// http
	srv := server.New(server.Options{AllowedOrigins: cfg.FrontendOrigins})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(
		&server.Handlers{
			Q:              app.NewQueryService(repo, src, norm, cache, cfg.CacheTTL),
			M:              app.NewModerationService(repo, src, norm, cache),
			AdminPageSize:  cfg.AdminPageSize,
			PublicPageSize: cfg.PublicPageSize,
		},
		&server.AuthHandlers{
			Sessions:   auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL),
			Creds:      auth.Credentials{User: cfg.AdminUser, PassHash: cfg.AdminPassHash},
			CookieName: cfg.CookieName,
			Secure:     cfg.IsProd(),
		},
	)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("source", src.Name()).Bool("mock", cfg.UseMock).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func reviewSource(cfg shared.Config) domain.ReviewSource {
	if cfg.UseMock {
		return hostaway.NewFileSource(cfg.MockPath)
	}
	client, err := hostaway.New(cfg.HostawayBase, cfg.HostawayAccount, cfg.HostawayAPIKey, cfg.HostawayRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Hostaway client")
	}
	return client
}
