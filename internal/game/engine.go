// internal/game/engine.go
//
// Core game engine for a single Hue Rush session.
// Responsibilities:
//   - Walk the phase cycle: selecting → confirming → playing → round over.
//   - Deal decks sized by the difficulty table.
//   - Resolve flipped pairs: match immediately, mismatch reverts after RevertDelay.
//   - Run the countdown and end the round on timeout or full clear.
//   - Keep the session high score (never decreases).
//
// Notes:
//   - A Session is single-threaded. Time only enters through the `now`
//     arguments; countdown ticks and reverts are events in a sched.Queue that
//     Advance drains. Callers that share a Session must serialize access.
//   - Reverts address cards by ID and carry the round generation, so a revert
//     can never touch a card of a later round.

package game

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/robalobadob/huerush/internal/deck"
	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/palette"
	"github.com/robalobadob/huerush/internal/sched"
)

type eventKind int

const (
	evTick eventKind = iota
	evRevert
)

type event struct {
	kind  eventKind
	gen   uint64
	cards [MaxSelection]string
}

// Session owns the state of one player's run of rounds.
type Session struct {
	ID        string
	PlayerID  string
	Phase     Phase
	Selected  difficulty.Level
	Round     *Round
	HighScore int

	colors  []string
	rng     *mrand.Rand
	queue   *sched.Queue[event]
	gen     uint64
	tick    sched.Token
	results []RoundResult
}

// Option customizes a new Session.
type Option func(*Session)

// WithColors sets the palette the deck is dealt from.
func WithColors(colors []string) Option { return func(s *Session) { s.colors = colors } }

// WithRand sets the shuffle source. Tests pass a seeded source.
func WithRand(r *mrand.Rand) Option { return func(s *Session) { s.rng = r } }

// WithPlayer attaches a player identity to emitted results.
func WithPlayer(id string) Option { return func(s *Session) { s.PlayerID = id } }

// WithHighScore seeds the session high score, e.g. from a score store.
func WithHighScore(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.HighScore = n
		}
	}
}

// NewSession constructs a session waiting for a difficulty choice.
func NewSession(opts ...Option) *Session {
	s := &Session{
		ID:    randomID(),
		Phase: PhaseSelecting,
		queue: sched.New[event](),
	}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		s.rng = mrand.New(mrand.NewSource(time.Now().UnixNano()))
	}
	if s.colors == nil {
		s.colors = palette.Colors()
	}
	return s
}

// SelectLevel records the chosen level and asks for confirmation.
func (s *Session) SelectLevel(l difficulty.Level) error {
	if s.Phase != PhaseSelecting {
		return fmt.Errorf("%w: select in %s", ErrInvalidPhase, s.Phase)
	}
	if _, err := difficulty.Lookup(l, difficulty.Wide); err != nil {
		return err
	}
	s.Selected = l
	s.Phase = PhaseConfirming
	return nil
}

// Cancel dismisses the confirmation and returns to level selection.
func (s *Session) Cancel() error {
	if s.Phase != PhaseConfirming {
		return fmt.Errorf("%w: cancel in %s", ErrInvalidPhase, s.Phase)
	}
	s.Selected = ""
	s.Phase = PhaseSelecting
	return nil
}

// Confirm deals a round at the selected level and starts the countdown.
func (s *Session) Confirm(now time.Time) error {
	if s.Phase != PhaseConfirming {
		return fmt.Errorf("%w: confirm in %s", ErrInvalidPhase, s.Phase)
	}
	return s.deal(now)
}

// Restart deals a fresh round at the current level. An unfinished round is
// abandoned without touching the high score.
func (s *Session) Restart(now time.Time) error {
	s.Advance(now)
	if s.Phase != PhasePlaying && s.Phase != PhaseRoundOver {
		return fmt.Errorf("%w: restart in %s", ErrInvalidPhase, s.Phase)
	}
	return s.deal(now)
}

// Back discards any round and returns to level selection.
func (s *Session) Back() error {
	if s.Phase == PhaseSelecting {
		return fmt.Errorf("%w: back in %s", ErrInvalidPhase, s.Phase)
	}
	s.discardRound()
	s.Selected = ""
	s.Phase = PhaseSelecting
	return nil
}

// NextLevel moves a finished round on to the next level (easy → medium →
// hard) and asks for confirmation. After a hard round it leaves the session
// where it is.
func (s *Session) NextLevel(now time.Time) error {
	s.Advance(now)
	if s.Phase != PhaseRoundOver {
		return fmt.Errorf("%w: next level in %s", ErrInvalidPhase, s.Phase)
	}
	next, ok := difficulty.Next(s.Selected)
	if !ok {
		return nil
	}
	s.discardRound()
	s.Selected = next
	s.Phase = PhaseConfirming
	return nil
}

// FlipIndex flips the card at grid position i.
func (s *Session) FlipIndex(i int, now time.Time) error {
	if err := s.playable(now); err != nil {
		return err
	}
	if i < 0 || i >= len(s.Round.Cards) {
		return fmt.Errorf("%w: index %d", ErrUnknownCard, i)
	}
	return s.Flip(s.Round.Cards[i].ID, now)
}

// Flip turns a face-down card face-up and resolves the pair once two are
// selected.
func (s *Session) Flip(cardID string, now time.Time) error {
	if err := s.playable(now); err != nil {
		return err
	}
	r := s.Round
	if len(r.Selection) >= MaxSelection {
		return ErrPairPending
	}
	i := r.indexOf(cardID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	if r.Cards[i].Flipped {
		return ErrAlreadyFlipped
	}

	r.Cards[i].Flipped = true
	r.Selection = append(r.Selection, cardID)
	if len(r.Selection) == MaxSelection {
		s.resolve(now)
	}
	return nil
}

// playable catches the session up to now and reports whether cards can be
// flipped.
func (s *Session) playable(now time.Time) error {
	s.Advance(now)
	if s.Phase == PhaseRoundOver {
		return ErrRoundOver
	}
	if s.Phase != PhasePlaying {
		return fmt.Errorf("%w: flip in %s", ErrInvalidPhase, s.Phase)
	}
	return nil
}

// resolve settles a full selection. The selection is cleared either way, so
// new picks are possible while a mismatched pair waits to turn back.
func (s *Session) resolve(now time.Time) {
	r := s.Round
	a, b := r.indexOf(r.Selection[0]), r.indexOf(r.Selection[1])
	pair := [MaxSelection]string{r.Selection[0], r.Selection[1]}
	r.Selection = r.Selection[:0]

	if r.Cards[a].Color == r.Cards[b].Color {
		r.Cards[a].Matched = true
		r.Cards[b].Matched = true
		r.Score++
		if r.allMatched() {
			r.Cleared = true
			s.endRound(now)
		}
		return
	}
	s.queue.Schedule(now.Add(RevertDelay), event{kind: evRevert, gen: s.gen, cards: pair})
}

// Advance applies every scheduled event due at or before now, in order.
func (s *Session) Advance(now time.Time) {
	for {
		ev, at, ok := s.queue.PopDue(now)
		if !ok {
			return
		}
		if ev.gen != s.gen || s.Round == nil {
			continue
		}
		switch ev.kind {
		case evTick:
			s.onTick(at)
		case evRevert:
			s.onRevert(ev.cards)
		}
	}
}

// NextEvent reports when the next scheduled event is due, so drivers can
// sleep until then.
func (s *Session) NextEvent() (time.Time, bool) { return s.queue.Next() }

func (s *Session) onTick(at time.Time) {
	r := s.Round
	if r.GameOver {
		return
	}
	if r.TimeRemaining > 0 {
		r.TimeRemaining--
	}
	if r.TimeRemaining == 0 {
		s.endRound(at)
		return
	}
	s.tick = s.queue.Schedule(at.Add(TickInterval), event{kind: evTick, gen: s.gen})
}

func (s *Session) onRevert(ids [MaxSelection]string) {
	for _, id := range ids {
		if i := s.Round.indexOf(id); i >= 0 && !s.Round.Cards[i].Matched {
			s.Round.Cards[i].Flipped = false
		}
	}
}

func (s *Session) deal(now time.Time) error {
	cfg, err := difficulty.Lookup(s.Selected, difficulty.Wide)
	if err != nil {
		return err
	}
	cards, err := deck.Generate(cfg.Cards, s.colors, s.rng)
	if err != nil {
		return fmt.Errorf("deal %s: %w", s.Selected, err)
	}
	s.discardRound()
	s.Round = &Round{
		Level:         s.Selected,
		Cards:         cards,
		Selection:     make([]string, 0, MaxSelection),
		TimeRemaining: cfg.Seconds(),
		StartedAt:     now,
	}
	s.Phase = PhasePlaying
	s.tick = s.queue.Schedule(now.Add(TickInterval), event{kind: evTick, gen: s.gen})
	return nil
}

// endRound stops the countdown and folds the score into the high score.
// Pending reverts of this round still fire so the grid settles face-down.
func (s *Session) endRound(at time.Time) {
	r := s.Round
	if r == nil || r.GameOver {
		return
	}
	s.queue.Cancel(s.tick)
	r.GameOver = true
	r.EndedAt = at
	if r.Score > s.HighScore {
		s.HighScore = r.Score
	}
	s.Phase = PhaseRoundOver
	s.results = append(s.results, RoundResult{
		SessionID: s.ID,
		PlayerID:  s.PlayerID,
		Level:     r.Level,
		Score:     r.Score,
		Pairs:     r.Pairs(),
		Cleared:   r.Cleared,
		HighScore: s.HighScore,
		ElapsedMs: at.Sub(r.StartedAt).Milliseconds(),
		EndedAt:   at,
	})
}

// discardRound drops the current round and invalidates its events.
func (s *Session) discardRound() {
	s.queue.CancelAll()
	s.gen++
	s.tick = 0
	s.Round = nil
}

// DrainResults returns and clears the results of rounds finished since the
// last call.
func (s *Session) DrainResults() []RoundResult {
	out := s.results
	s.results = nil
	return out
}

// Snapshot builds a client view using the column count for tier.
func (s *Session) Snapshot(tier difficulty.Tier) View {
	v := View{
		SessionID: s.ID,
		Phase:     s.Phase,
		Level:     s.Selected,
		Cards:     []CardView{},
		Selection: []string{},
		HighScore: s.HighScore,
	}
	if s.Selected != "" {
		if cfg, err := difficulty.Lookup(s.Selected, tier); err == nil {
			v.Columns = cfg.Columns
		}
		_, v.HasNextLevel = difficulty.Next(s.Selected)
	}
	if r := s.Round; r != nil {
		v.Score = r.Score
		v.TimeRemaining = r.TimeRemaining
		v.GameOver = r.GameOver
		v.Cleared = r.Cleared
		v.Selection = append(v.Selection, r.Selection...)
		v.Cards = make([]CardView, len(r.Cards))
		for i, c := range r.Cards {
			cv := CardView{ID: c.ID, Index: i, Flipped: c.Flipped, Matched: c.Matched}
			if c.Flipped {
				cv.Color = c.Color
			}
			v.Cards[i] = cv
		}
	}
	return v
}

// randomID returns a compact 16-hex-char identifier.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
