// Command huerush-tui plays Hue Rush in the terminal.
//
// Logs go to HUERUSH_LOG so they never corrupt the screen. When DB_PATH is
// set, rounds are recorded in the same SQLite file the server uses, so the
// high score carries over between runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/huerush/assets"
	"github.com/robalobadob/huerush/internal/audio"
	"github.com/robalobadob/huerush/internal/config"
	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/game"
	"github.com/robalobadob/huerush/internal/palette"
	"github.com/robalobadob/huerush/internal/scores"
	"github.com/robalobadob/huerush/internal/storage"
	"github.com/robalobadob/huerush/internal/tui"
)

const localPlayer = "local"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "huerush:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logFile, err := os.OpenFile(cfg.TUILogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := palette.Init(); err != nil {
		return fmt.Errorf("load palette: %w", err)
	}
	if err := difficulty.Validate(palette.Size()); err != nil {
		return err
	}

	st, closeStore := openScores(cfg.DBPath)
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	best, err := st.Best(ctx, localPlayer, "")
	if err != nil {
		log.Warn().Err(err).Msg("load best score")
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	player := audio.NewPlayer(cfg.Audio)
	defer player.Close()

	sess := game.NewSession(game.WithPlayer(localPlayer), game.WithHighScore(best))
	log.Info().Str("session", sess.ID).Int("best", best).Msg("terminal session started")

	err = tui.New(screen, sess, tui.WithScores(st), tui.WithSound(player)).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openScores prefers the SQLite store and falls back to memory.
func openScores(path string) (scores.Store, func()) {
	if path == "" {
		return scores.NewMemory(), func() {}
	}
	db, err := storage.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("open score db; using memory")
		return scores.NewMemory(), func() {}
	}
	mig, err := assets.Migrations()
	if err == nil {
		err = storage.Migrate(db, mig)
	}
	if err != nil {
		log.Warn().Err(err).Msg("migrate score db; using memory")
		_ = db.Close()
		return scores.NewMemory(), func() {}
	}
	return scores.NewSQL(db), func() { _ = db.Close() }
}
