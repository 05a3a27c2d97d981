// internal/deck/deck.go
//
// Deck generation for a single round.
//
// Generate takes the first count/2 colors of the palette, duplicates the set
// and shuffles it. Every card starts face-down with a fresh UUID so that the
// game can address cards by identity rather than by grid position.

package deck

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Card is one tile of the grid.
type Card struct {
	ID      string `json:"id"`
	Color   string `json:"color"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

var (
	ErrOddCount         = errors.New("deck: card count must be a positive even number")
	ErrPaletteExhausted = errors.New("deck: not enough colors for requested pairs")
)

// Generate builds a shuffled deck of count cards from colors. rng controls
// the permutation; pass a seeded source for reproducible decks.
func Generate(count int, colors []string, rng *rand.Rand) ([]Card, error) {
	if count <= 0 || count%2 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrOddCount, count)
	}
	pairs := count / 2
	if pairs > len(colors) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrPaletteExhausted, pairs, len(colors))
	}

	tokens := make([]string, 0, count)
	tokens = append(tokens, colors[:pairs]...)
	tokens = append(tokens, colors[:pairs]...)
	rng.Shuffle(len(tokens), func(i, j int) { tokens[i], tokens[j] = tokens[j], tokens[i] })

	out := make([]Card, len(tokens))
	for i, c := range tokens {
		out[i] = Card{ID: uuid.NewString(), Color: c}
	}
	return out, nil
}
