package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"flex_reviews/internal/adapters/hostaway"
	"flex_reviews/internal/adapters/observability"
	redisad "flex_reviews/internal/adapters/redis"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/shared"
	mysqlrepo "flex_reviews/internal/storage/mysql"
)

// ingestor seeds MySQL from the Hostaway pool. Re-running it refreshes review
// content and keeps every approval decision.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Bool("mock", cfg.UseMock).
		Int("workers", cfg.Workers).
		Int("batch", cfg.BatchSize).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	var src domain.ReviewSource
	if cfg.UseMock {
		src = hostaway.NewFileSource(cfg.MockPath)
	} else {
		client, err := hostaway.New(cfg.HostawayBase, cfg.HostawayAccount, cfg.HostawayAPIKey, cfg.HostawayRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Hostaway client")
		}
		src = client
	}

	// a reachable redis gets its public generation bumped after each batch
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err == nil {
			defer rc.Close()
			cache = rc
		} else {
			_ = rc.Close()
		}
	}

	channels, skipped := app.ChannelMap{}.With(cfg.ChannelOverrides)
	if len(skipped) > 0 {
		log.Warn().Strs("ids", skipped).Msg("ignoring HOSTAWAY_CHANNELS entries with unknown channel")
	}
	ing := app.NewIngestionService(repo, src, app.NewNormalizer(channels, app.DateNormalizer{}, nil), cache)

	pool, err := ing.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load upstream reviews failed")
	}
	log.Info().Int("reviews", len(pool)).Msg("upstream normalized")

	sem := semaphore.NewWeighted(int64(max(cfg.Workers, 1)))
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for i, batch := range app.Batches(pool, cfg.BatchSize) {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			break
		}

		wg.Add(1)
		go func(n int, rs []domain.Review) {
			defer wg.Done()
			defer sem.Release(1)

			if err := ing.IngestBatch(ctx, rs); err != nil {
				failed.Add(1)
				log.Warn().Int("batch", n).Err(err).Msg("ingest failed")
				return
			}
			log.Info().Int("batch", n).Int("reviews", len(rs)).Msg("ingest ok")
		}(i, batch)
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		log.Fatal().Int32("failed_batches", n).Msg("ingestion incomplete")
	}
	log.Info().Msg("ingestion completed")
}
