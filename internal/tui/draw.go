package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/game"
)

// Card cells are cardW x cardH with a one-cell gap.
const (
	cardW   = 6
	cardH   = 2
	gridX   = 2
	gridY   = 2
	strideX = cardW + 1
	strideY = cardH + 1
)

var (
	styleText     = tcell.StyleDefault
	styleTitle    = tcell.StyleDefault.Bold(true)
	styleHint     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleFaceDown = tcell.StyleDefault.Background(tcell.NewRGBColor(58, 58, 58)).Foreground(tcell.ColorSilver)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// Draw renders the current session state.
func (a *App) Draw() {
	a.screen.Clear()
	v := a.sess.Snapshot(a.tier())

	drawText(a.screen, 0, 0, styleTitle, "HUE RUSH")
	drawText(a.screen, 10, 0, styleHint, fmt.Sprintf("best %d", v.HighScore))
	if a.sound.Playing() {
		drawText(a.screen, 60, 0, styleHint, "♪ on")
	}

	switch v.Phase {
	case game.PhaseSelecting:
		a.drawLevels()
	case game.PhaseConfirming:
		cfg := difficulty.MustLookup(v.Level, a.tier())
		drawText(a.screen, gridX, gridY, styleText,
			fmt.Sprintf("Start %s: %d cards in %s? (y/n)", v.Level, cfg.Cards, clockFace(cfg.Seconds())))
	default:
		a.drawRound(v)
	}

	_, h := a.screen.Size()
	if a.status != "" {
		drawText(a.screen, 0, h-2, styleStatus, a.status)
	}
	drawText(a.screen, 0, h-1, styleHint, hints(v))
	a.screen.Show()
}

func (a *App) drawLevels() {
	drawText(a.screen, gridX, gridY, styleText, "Choose a level:")
	for i, l := range difficulty.Levels() {
		cfg := difficulty.MustLookup(l, a.tier())
		drawText(a.screen, gridX, gridY+2+i, styleText,
			fmt.Sprintf("%d) %-7s %2d cards  %s", i+1, l, cfg.Cards, clockFace(cfg.Seconds())))
	}
}

func (a *App) drawRound(v game.View) {
	drawText(a.screen, 20, 0, styleText,
		fmt.Sprintf("%s  score %d  time %s", v.Level, v.Score, clockFace(v.TimeRemaining)))

	cols := v.Columns
	if cols <= 0 {
		cols = 1
	}
	for _, c := range v.Cards {
		x := gridX + (c.Index%cols)*strideX
		y := gridY + (c.Index/cols)*strideY
		style := styleFaceDown
		fill := '░'
		if c.Flipped {
			style = tcell.StyleDefault.Background(tcell.GetColor(c.Color))
			fill = ' '
		}
		for dy := 0; dy < cardH; dy++ {
			for dx := 0; dx < cardW; dx++ {
				a.screen.SetContent(x+dx, y+dy, fill, nil, style)
			}
		}
		if c.Matched {
			a.screen.SetContent(x+cardW/2, y, '✓', nil, style.Foreground(tcell.ColorBlack))
		}
		if c.Index == a.cursor && !v.GameOver {
			a.screen.SetContent(x-1, y, '▶', nil, styleTitle)
		}
	}

	if v.GameOver {
		rows := (len(v.Cards) + cols - 1) / cols
		var msg string
		switch {
		case v.Cleared:
			msg = fmt.Sprintf("All %d pairs matched with %s to spare!", v.Score, clockFace(v.TimeRemaining))
		case v.TimeRemaining == 0:
			msg = fmt.Sprintf("Time's up! You matched %d pairs.", v.Score)
		default:
			msg = fmt.Sprintf("Round over with %s left. You matched %d pairs.", clockFace(v.TimeRemaining), v.Score)
		}
		drawText(a.screen, gridX, gridY+rows*strideY, styleTitle, msg)
	}
}

func hints(v game.View) string {
	switch v.Phase {
	case game.PhaseSelecting:
		return "1/2/3 or e/m/h pick level · s sound · q quit"
	case game.PhaseConfirming:
		return "y start · n back · q quit"
	case game.PhaseRoundOver:
		if v.HasNextLevel {
			return "r replay · n next level · b levels · q quit"
		}
		return "r replay · b levels · q quit"
	}
	return "arrows move · space/enter flip · r restart · b levels · q quit"
}

func clockFace(sec int) string {
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
