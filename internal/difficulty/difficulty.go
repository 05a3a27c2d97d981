// internal/difficulty/difficulty.go
//
// Difficulty configuration: a pure lookup from a level label to the deck
// size, grid columns and countdown length of a round.
//
// Column counts depend on the viewport tier (narrow vs. wide). The tier is a
// presentational concern layered on top of the table; card count and time
// limit never depend on it.

package difficulty

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Level is a difficulty label.
type Level string

const (
	Easy   Level = "easy"
	Medium Level = "medium"
	Hard   Level = "hard"
)

// Tier is a coarse viewport width class.
type Tier string

const (
	Narrow Tier = "narrow"
	Wide   Tier = "wide"
)

// NarrowBelowPx is the viewport width under which the narrow tier applies.
const NarrowBelowPx = 640

// Config is the immutable parameter set for one level.
type Config struct {
	Level     Level         `json:"level"`
	Cards     int           `json:"cards"`
	Columns   int           `json:"columns"`
	TimeLimit time.Duration `json:"-"`
}

// Seconds returns the time limit in whole seconds.
func (c Config) Seconds() int { return int(c.TimeLimit / time.Second) }

// Pairs returns the number of color pairs dealt for this level.
func (c Config) Pairs() int { return c.Cards / 2 }

var (
	ErrUnknownLevel = errors.New("difficulty: unknown level")
	ErrTooManyPairs = errors.New("difficulty: level needs more colors than the palette has")
)

type entry struct {
	cards      int
	wideCols   int
	narrowCols int
	timeLimitS int
}

var table = map[Level]entry{
	Easy:   {cards: 20, wideCols: 5, narrowCols: 4, timeLimitS: 300},
	Medium: {cards: 36, wideCols: 6, narrowCols: 4, timeLimitS: 420},
	Hard:   {cards: 48, wideCols: 8, narrowCols: 6, timeLimitS: 540},
}

// Levels lists every level in ascending order.
func Levels() []Level { return []Level{Easy, Medium, Hard} }

// Parse maps a case-insensitive label to a Level.
func Parse(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := table[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}

// Lookup returns the configuration for level at the given viewport tier.
// An empty tier is treated as Wide.
func Lookup(level Level, tier Tier) (Config, error) {
	e, ok := table[level]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	cols := e.wideCols
	if tier == Narrow {
		cols = e.narrowCols
	}
	return Config{
		Level:     level,
		Cards:     e.cards,
		Columns:   cols,
		TimeLimit: time.Duration(e.timeLimitS) * time.Second,
	}, nil
}

// MustLookup is Lookup for levels already known to be valid.
func MustLookup(level Level, tier Tier) Config {
	c, err := Lookup(level, tier)
	if err != nil {
		panic(err)
	}
	return c
}

// Next returns the level after l. ok is false for Hard (there is no next).
func Next(l Level) (next Level, ok bool) {
	switch l {
	case Easy:
		return Medium, true
	case Medium:
		return Hard, true
	}
	return "", false
}

// TierForWidth classifies a viewport width. Non-positive widths mean
// "unknown" and map to Wide.
func TierForWidth(px int) Tier {
	if px > 0 && px < NarrowBelowPx {
		return Narrow
	}
	return Wide
}

// Validate checks that every level can be dealt from a palette of the given
// size.
func Validate(paletteSize int) error {
	for _, l := range Levels() {
		if p := table[l].cards / 2; p > paletteSize {
			return fmt.Errorf("%w: %s needs %d, palette has %d", ErrTooManyPairs, l, p, paletteSize)
		}
	}
	return nil
}
