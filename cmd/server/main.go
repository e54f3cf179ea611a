package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Chat/internal/adapters/http"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/storage/memory"
	"github.com/dkeye/Chat/internal/storage/password"
	"github.com/dkeye/Chat/internal/storage/sqlstore"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer closeBackend()

	if cfg.Admin.Password == "" {
		log.Warn().Str("identity", cfg.Admin.Identity).Msg("admin password is empty, admin routes are open")
	}

	reg := app.NewRegistry(domain.Identity(cfg.Admin.Identity))
	var policy app.Policy = app.SimplePolicy{}
	if cfg.Chat.SlowTolerance > 0 {
		policy = app.NewTolerantPolicy(cfg.Chat.SlowTolerance, cfg.Chat.SlowWindow)
	}
	orch := app.NewOrchestrator(reg, backend, policy, cfg.Storage.Timeout)

	r := router.SetupRouter(ctx, cfg, orch, backend)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Chat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}

func openBackend(cfg *config.Config) (core.Backend, func(), error) {
	hasher := password.NewHasher()
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlstore.Open(cfg.Storage.DSN)
		if err != nil {
			return core.Backend{}, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		log.Info().Str("dsn", cfg.Storage.DSN).Msg("using sqlite storage")
		return sqlstore.NewBackend(db, hasher, cfg.Chat.HistoryLimit), closeFn, nil
	default:
		log.Info().Msg("using in-memory storage")
		return memory.NewBackend(hasher, cfg.Chat.HistoryLimit), func() {}, nil
	}
}
