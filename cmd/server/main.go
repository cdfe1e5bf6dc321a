package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/akarpov/agora/internal/adapters/http"
	"github.com/akarpov/agora/internal/app"
	"github.com/akarpov/agora/internal/config"
	"github.com/akarpov/agora/internal/presence"
	"github.com/akarpov/agora/internal/store"
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

	var st store.Store
	if cfg.BadgerPath != "" {
		b, err := store.OpenBadger(cfg.BadgerPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open store")
		}
		st = b
	} else {
		log.Warn().Msg("no badger_path configured, records will not survive restarts")
		st = store.NewMemory()
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	var tracker presence.Tracker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		tracker = presence.NewRedisTracker(rdb, cfg.PresenceWindow)
		log.Info().Str("addr", cfg.RedisAddr).Msg("presence backed by redis")
	} else {
		tracker = presence.NewMemoryTracker(cfg.PresenceWindow)
	}

	orch := app.NewOrchestrator()
	rtr := app.NewRouter(orch, st, tracker)
	rtr.RingTimeout = cfg.RingTimeout

	r := router.SetupRouter(ctx, cfg, rtr, tracker)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Agora server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
