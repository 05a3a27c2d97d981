// Package tui is the terminal front end: it owns a local game session,
// maps keys onto session actions and redraws the grid with tcell.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/game"
	"github.com/robalobadob/huerush/internal/scores"
)

// frameInterval paces redraws so the countdown and reverts show up without
// input.
const frameInterval = 100 * time.Millisecond

// Sound is the part of the audio player the UI drives.
type Sound interface {
	Unlock()
	Toggle()
	Playing() bool
}

type nopSound struct{}

func (nopSound) Unlock()       {}
func (nopSound) Toggle()       {}
func (nopSound) Playing() bool { return false }

// App is one terminal game.
type App struct {
	screen tcell.Screen
	clk    clock.Clock
	sess   *game.Session
	scores scores.Store
	sound  Sound

	cursor int
	status string
}

// Option configures an App.
type Option func(*App)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(a *App) { a.clk = c } }

// WithScores persists finished rounds.
func WithScores(s scores.Store) Option { return func(a *App) { a.scores = s } }

// WithSound enables the background loop.
func WithSound(s Sound) Option { return func(a *App) { a.sound = s } }

// New builds an App over an initialized screen and session.
func New(screen tcell.Screen, sess *game.Session, opts ...Option) *App {
	a := &App{screen: screen, sess: sess, clk: clock.New(), sound: nopSound{}}
	for _, o := range opts {
		o(a)
	}
	if a.scores == nil {
		a.scores = scores.NewMemory()
	}
	return a
}

// Run polls input and redraws until the player quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := a.clk.Ticker(frameInterval)
	defer ticker.Stop()

	a.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if a.HandleKey(ev) {
					return nil
				}
			case *tcell.EventResize:
				a.screen.Sync()
			}
		case <-ticker.C:
			a.Tick()
		}
		a.Draw()
	}
}

// Tick applies due countdown and revert events.
func (a *App) Tick() {
	a.sess.Advance(a.clk.Now())
	a.persist()
}

// HandleKey applies one key press and reports whether the player quit.
func (a *App) HandleKey(ev *tcell.EventKey) bool {
	a.sound.Unlock()
	now := a.clk.Now()
	a.sess.Advance(now)
	a.status = ""

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		a.move(0, -1)
	case tcell.KeyDown:
		a.move(0, 1)
	case tcell.KeyLeft:
		a.move(-1, 0)
	case tcell.KeyRight:
		a.move(1, 0)
	case tcell.KeyEnter:
		a.report(a.sess.FlipIndex(a.cursor, now))
	case tcell.KeyRune:
		if ev.Rune() == 'q' {
			return true
		}
		a.onRune(ev.Rune(), now)
	}
	a.persist()
	return false
}

func (a *App) onRune(r rune, now time.Time) {
	if r == 's' {
		a.sound.Toggle()
		return
	}
	switch a.sess.Phase {
	case game.PhaseSelecting:
		if l, ok := levelKeys[r]; ok {
			a.report(a.sess.SelectLevel(l))
		}
	case game.PhaseConfirming:
		switch r {
		case 'y':
			a.cursor = 0
			a.report(a.sess.Confirm(now))
		case 'n':
			a.report(a.sess.Cancel())
		}
	case game.PhasePlaying, game.PhaseRoundOver:
		switch r {
		case ' ':
			a.report(a.sess.FlipIndex(a.cursor, now))
		case 'r':
			a.cursor = 0
			a.report(a.sess.Restart(now))
		case 'b':
			a.report(a.sess.Back())
		case 'n':
			if a.sess.Phase == game.PhaseRoundOver {
				a.report(a.sess.NextLevel(now))
			}
		}
	}
}

var levelKeys = map[rune]difficulty.Level{
	'1': difficulty.Easy, 'e': difficulty.Easy,
	'2': difficulty.Medium, 'm': difficulty.Medium,
	'3': difficulty.Hard, 'h': difficulty.Hard,
}

// report turns an action error into a status line. Ignored clicks are
// silent; anything else is logged.
func (a *App) report(err error) {
	switch {
	case err == nil, errors.Is(err, game.ErrIgnored):
	case errors.Is(err, game.ErrInvalidPhase), errors.Is(err, game.ErrUnknownCard):
		a.status = err.Error()
	default:
		a.status = "error: " + err.Error()
		log.Error().Err(err).Str("session", a.sess.ID).Msg("tui action")
	}
}

// move shifts the cursor on the grid, clamped to its edges.
func (a *App) move(dx, dy int) {
	if a.sess.Round == nil {
		return
	}
	cols := a.columns()
	n := len(a.sess.Round.Cards)
	row, col := a.cursor/cols, a.cursor%cols
	col += dx
	row += dy
	if col < 0 || col >= cols || row < 0 {
		return
	}
	if i := row*cols + col; i < n {
		a.cursor = i
	}
}

func (a *App) columns() int {
	v := a.sess.Snapshot(a.tier())
	if v.Columns <= 0 {
		return 1
	}
	return v.Columns
}

// tier treats one terminal column as eight pixels.
func (a *App) tier() difficulty.Tier {
	w, _ := a.screen.Size()
	return difficulty.TierForWidth(w * 8)
}

func (a *App) persist() {
	for _, res := range a.sess.DrainResults() {
		err := a.scores.Record(context.Background(), scores.Result{
			PlayerID:  res.PlayerID,
			Level:     res.Level,
			Score:     res.Score,
			Pairs:     res.Pairs,
			Cleared:   res.Cleared,
			ElapsedMs: res.ElapsedMs,
		})
		if err != nil {
			log.Warn().Err(err).Msg("record round")
		}
		log.Info().Str("level", string(res.Level)).Int("score", res.Score).Bool("cleared", res.Cleared).Msg("round over")
	}
}
