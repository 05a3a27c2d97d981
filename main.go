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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/huerush/assets"
	"github.com/robalobadob/huerush/internal/config"
	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/events"
	"github.com/robalobadob/huerush/internal/httpserver"
	"github.com/robalobadob/huerush/internal/palette"
	"github.com/robalobadob/huerush/internal/scores"
	"github.com/robalobadob/huerush/internal/storage"
	"github.com/robalobadob/huerush/internal/store"
)

func main() {
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn().Msg("JWT_SECRET not set; using development secret")
	}

	if err := palette.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load palette")
	}
	if err := difficulty.Validate(palette.Size()); err != nil {
		log.Fatal().Err(err).Int("colors", palette.Size()).Msg("palette too small")
	}

	var (
		db *sql.DB
		sc scores.Store = scores.NewMemory()
	)
	if cfg.DBPath != "" {
		var err error
		if db, err = storage.Open(cfg.DBPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open db")
		}
		defer db.Close()
		mig, err := assets.Migrations()
		if err != nil {
			log.Fatal().Err(err).Msg("load migrations")
		}
		if err := storage.Migrate(db, mig); err != nil {
			log.Fatal().Err(err).Msg("migrate db")
		}
		sc = scores.NewSQL(db)
	} else {
		log.Warn().Msg("DB_PATH empty; scores kept in memory and auth disabled")
	}

	var notifier events.Notifier = events.Nop{}
	if cfg.NATSURL != "" {
		n, err := events.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATSURL).Msg("nats unavailable; round events disabled")
		} else {
			notifier = n
			log.Info().Str("subject", cfg.NATSSubject).Msg("publishing round events")
		}
	}
	defer notifier.Close()

	srv := httpserver.New(httpserver.Deps{
		Config:   cfg,
		Sessions: store.NewMemoryStore(nil),
		Scores:   sc,
		DB:       db,
		Notifier: notifier,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go srv.RunSweeper(ctx, time.Minute)

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting huerush server")
		errc <- srv.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server exited")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}
