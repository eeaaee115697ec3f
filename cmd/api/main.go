// Package main provides the entry point for the node synchronizer and read API.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/narvanalabs/lnsync/internal/api"
	"github.com/narvanalabs/lnsync/internal/auth"
	"github.com/narvanalabs/lnsync/internal/mempool"
	"github.com/narvanalabs/lnsync/internal/shutdown"
	"github.com/narvanalabs/lnsync/internal/store"
	"github.com/narvanalabs/lnsync/internal/store/cache"
	"github.com/narvanalabs/lnsync/internal/store/migrations"
	pgstore "github.com/narvanalabs/lnsync/internal/store/postgres"
	"github.com/narvanalabs/lnsync/internal/synchronizer"
	"github.com/narvanalabs/lnsync/pkg/config"
	"github.com/narvanalabs/lnsync/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		return 1
	}
	log := logger.New(level, cfg.LogFormat == "json")

	if cfg.AutoMigrate {
		if err := migrations.Up(cfg.DatabaseDSN, log.WithComponent("migrations").Logger); err != nil {
			log.Error("failed to apply migrations", "error", err)
			return 1
		}
	}

	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	storeCfg.MaxOpenConns = cfg.DBMaxOpenConns
	pg, err := pgstore.NewPostgresStore(storeCfg, log.WithComponent("store").Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}

	var st store.Store = pg
	if cfg.API.ReadCacheTTL > 0 {
		st = cache.New(pg, cfg.API.ReadCacheTTL, log.WithComponent("cache").Logger)
	}

	client := mempool.NewClient(&mempool.Config{
		BaseURL: cfg.Sync.MempoolBaseURL,
		Timeout: cfg.Sync.FetchTimeout,
	}, log.WithComponent("mempool").Logger)

	syncCfg := synchronizer.DefaultConfig()
	syncCfg.Interval = cfg.Sync.Interval
	syncCfg.FetchTimeout = cfg.Sync.FetchTimeout
	syncCfg.WriteTimeout = cfg.Sync.WriteTimeout
	syncCfg.FetchAttempts = cfg.Sync.FetchAttempts

	syncLog := log.WithComponent("synchronizer").Logger
	syncer := synchronizer.New(client, synchronizer.NewReconciler(st, syncLog), syncCfg, syncLog)

	var authSvc *auth.Service
	if cfg.AdminEnabled() {
		authSvc = auth.NewService(&auth.Config{JWTSecret: []byte(cfg.API.AdminJWTSecret)}, log.WithComponent("auth").Logger)
	}

	server := api.NewServer(cfg, st, syncer, authSvc, log.WithComponent("api").Logger)

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)

	// Stopped in reverse: HTTP server, synchronizer, then the pool.
	coordinator.Register(shutdown.NewCloserComponent("database", st))

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		if err := syncer.Start(context.Background()); err != nil {
			log.Error("synchronizer stopped", "error", err)
		}
	}()
	coordinator.Register(shutdown.NewLoopComponent("synchronizer", syncer, syncDone))
	coordinator.Register(shutdown.NewHTTPServerComponent("http-server", server.HTTPServer()))

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(); err != nil {
			serveErr <- err
			cancel(err)
		}
	}()

	coordinator.WaitForSignalContext(ctx)
	coordinator.Wait()

	select {
	case err := <-serveErr:
		log.Error("server error", "error", err)
		return 1
	default:
	}

	log.Info("shutdown complete", "exit_code", coordinator.ExitCode())
	return coordinator.ExitCode()
}
