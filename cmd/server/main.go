package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/syncpad/syncpad/internal/adapters/http"
	"github.com/syncpad/syncpad/internal/app"
	"github.com/syncpad/syncpad/internal/auth"
	"github.com/syncpad/syncpad/internal/config"
	"github.com/syncpad/syncpad/internal/core"
	"github.com/syncpad/syncpad/internal/retention"
	"github.com/syncpad/syncpad/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	sweeper := retention.New(st, retention.Config{
		Interval:      cfg.SweepInterval,
		RoomTTL:       cfg.RoomTTL,
		ChatRetention: cfg.ChatRetention,
	})
	sweeper.Start()
	defer sweeper.Stop()

	am := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	svc := app.NewService(st, core.NewRegistry(), cfg.ChatReplayLimit)

	r := router.SetupRouter(cfg, st, svc, am)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("syncpad server started")
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
