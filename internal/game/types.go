// internal/game/types.go
//
// Core type definitions for the Hue Rush game engine.
// Defines:
//   - Phase: where a session is in the select → confirm → play → over cycle.
//   - Round: state of the round currently on the table.
//   - View/CardView: read-only snapshot handed to clients.
//   - RoundResult: summary emitted when a round ends.

package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/huerush/internal/deck"
	"github.com/robalobadob/huerush/internal/difficulty"
)

// Phase is the coarse state of a session.
type Phase string

const (
	PhaseSelecting  Phase = "selecting"
	PhaseConfirming Phase = "confirming"
	PhasePlaying    Phase = "playing"
	PhaseRoundOver  Phase = "round_over"
)

const (
	// TickInterval is the countdown resolution.
	TickInterval = time.Second
	// RevertDelay is how long a mismatched pair stays face-up.
	RevertDelay = time.Second
	// MaxSelection is the number of cards resolved together.
	MaxSelection = 2
)

// ErrIgnored marks a click that had no effect. Specific reasons wrap it.
var ErrIgnored = errors.New("click ignored")

var (
	ErrPairPending    = fmt.Errorf("%w: pair pending", ErrIgnored)
	ErrAlreadyFlipped = fmt.Errorf("%w: card already face-up", ErrIgnored)
	ErrRoundOver      = fmt.Errorf("%w: round over", ErrIgnored)

	ErrInvalidPhase = errors.New("action not allowed in current phase")
	ErrUnknownCard  = errors.New("unknown card")
)

// Round is the state of one dealt grid.
type Round struct {
	Level         difficulty.Level
	Cards         []deck.Card
	Selection     []string // card IDs awaiting resolution, at most MaxSelection
	Score         int
	TimeRemaining int // whole seconds
	GameOver      bool
	Cleared       bool // every pair matched before the timer ran out
	StartedAt     time.Time
	EndedAt       time.Time
}

// Pairs returns how many pairs the round was dealt.
func (r *Round) Pairs() int { return len(r.Cards) / 2 }

func (r *Round) indexOf(id string) int {
	for i := range r.Cards {
		if r.Cards[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Round) allMatched() bool {
	for i := range r.Cards {
		if !r.Cards[i].Matched {
			return false
		}
	}
	return len(r.Cards) > 0
}

// RoundResult summarizes a finished round.
type RoundResult struct {
	SessionID string           `json:"sessionId"`
	PlayerID  string           `json:"playerId,omitempty"`
	Level     difficulty.Level `json:"level"`
	Score     int              `json:"score"`
	Pairs     int              `json:"pairs"`
	Cleared   bool             `json:"cleared"`
	HighScore int              `json:"highScore"`
	ElapsedMs int64            `json:"elapsedMs"`
	EndedAt   time.Time        `json:"endedAt"`
}

// CardView is a card as a client sees it. Color is only revealed face-up.
type CardView struct {
	ID      string `json:"id"`
	Index   int    `json:"index"`
	Color   string `json:"color,omitempty"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// View is a read-only snapshot of a session.
type View struct {
	SessionID     string           `json:"sessionId"`
	Phase         Phase            `json:"phase"`
	Level         difficulty.Level `json:"level,omitempty"`
	Columns       int              `json:"columns,omitempty"`
	Cards         []CardView       `json:"cards"`
	Selection     []string         `json:"selection"`
	Score         int              `json:"score"`
	TimeRemaining int              `json:"timeRemaining"`
	GameOver      bool             `json:"gameOver"`
	Cleared       bool             `json:"cleared"`
	HighScore     int              `json:"highScore"`
	HasNextLevel  bool             `json:"hasNextLevel"`
}
