// internal/httpserver/routes_sessions.go
//
// HTTP routes driving the game state machine.
//   - POST /sessions              → new session (selecting a level)
//   - GET  /sessions/{id}         → current state
//   - POST /sessions/{id}/select  → {level}
//   - POST /sessions/{id}/confirm → deal and start the countdown
//   - POST /sessions/{id}/cancel  → back to level selection
//   - POST /sessions/{id}/flip    → {cardId} or {index}
//   - POST /sessions/{id}/restart → fresh deck, same level
//   - POST /sessions/{id}/back    → level selection
//   - POST /sessions/{id}/next    → next level after a round is over
//
// Finished rounds are recorded in the score store and announced to the
// notifier after the session lock is released.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/game"
	"github.com/robalobadob/huerush/internal/scores"
	"github.com/robalobadob/huerush/internal/store"
)

// mountSessions registers all /sessions routes.
func (s *Server) mountSessions(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleNewSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.action(func(*game.Session, time.Time, *http.Request) error { return nil }))
			r.Post("/select", s.action(doSelect))
			r.Post("/confirm", s.action(func(gs *game.Session, now time.Time, _ *http.Request) error {
				return gs.Confirm(now)
			}))
			r.Post("/cancel", s.action(func(gs *game.Session, _ time.Time, _ *http.Request) error {
				return gs.Cancel()
			}))
			r.Post("/flip", s.action(doFlip))
			r.Post("/restart", s.action(func(gs *game.Session, now time.Time, _ *http.Request) error {
				return gs.Restart(now)
			}))
			r.Post("/back", s.action(func(gs *game.Session, _ time.Time, _ *http.Request) error {
				return gs.Back()
			}))
			r.Post("/next", s.action(func(gs *game.Session, now time.Time, _ *http.Request) error {
				return gs.NextLevel(now)
			}))
		})
	})
}

// newSessionRes is returned by POST /sessions.
type newSessionRes struct {
	SessionID string    `json:"sessionId"`
	State     game.View `json:"state"`
}

// handleNewSession creates a session for the caller (user or anonymous id),
// seeding its high score from the score store.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	playerID := s.playerID(w, r)
	best, err := s.scores.Best(r.Context(), playerID, "")
	if err != nil {
		log.Warn().Err(err).Str("player", playerID).Msg("load best score")
	}
	gs := game.NewSession(game.WithPlayer(playerID), game.WithHighScore(best))
	if err := s.sessions.Save(r.Context(), gs); err != nil {
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	log.Info().Str("session", gs.ID).Str("player", playerID).Msg("session created")
	writeJSON(w, http.StatusCreated, newSessionRes{SessionID: gs.ID, State: gs.Snapshot(tierFrom(r))})
}

type actionFunc func(gs *game.Session, now time.Time, r *http.Request) error

// actionRes carries the state alongside a rejected action.
type actionRes struct {
	Error  string    `json:"error,omitempty"`
	Reason string    `json:"reason,omitempty"`
	State  game.View `json:"state"`
}

// action wraps fn with session lookup, clock advance, snapshot, result
// persistence and error mapping.
func (s *Server) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		now := s.clock.Now()
		tier := tierFrom(r)

		var (
			view    game.View
			results []game.RoundResult
			actErr  error
		)
		err := s.sessions.Update(r.Context(), id, func(gs *game.Session) error {
			gs.Advance(now)
			actErr = fn(gs, now, r)
			view = gs.Snapshot(tier)
			results = gs.DrainResults()
			return nil
		})
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("session", id).Msg("update session")
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		s.persistResults(r.Context(), results)

		if actErr != nil {
			status, code := classify(actErr)
			if status >= http.StatusInternalServerError {
				log.Error().Err(actErr).Str("session", id).Msg("session action")
			}
			writeJSON(w, status, actionRes{Error: code, Reason: actErr.Error(), State: view})
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// classify maps engine errors onto HTTP status + error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "bad_json"
	case errors.Is(err, game.ErrIgnored):
		return http.StatusConflict, "ignored"
	case errors.Is(err, game.ErrInvalidPhase):
		return http.StatusConflict, "invalid_phase"
	case errors.Is(err, game.ErrUnknownCard):
		return http.StatusBadRequest, "unknown_card"
	case errors.Is(err, difficulty.ErrUnknownLevel):
		return http.StatusBadRequest, "unknown_level"
	}
	return http.StatusInternalServerError, "server_error"
}

var errBadJSON = errors.New("bad json")

type selectReq struct {
	Level string `json:"level"`
}

func doSelect(gs *game.Session, _ time.Time, r *http.Request) error {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return errBadJSON
	}
	l, err := difficulty.Parse(req.Level)
	if err != nil {
		return err
	}
	return gs.SelectLevel(l)
}

type flipReq struct {
	CardID string `json:"cardId"`
	Index  *int   `json:"index"`
}

func doFlip(gs *game.Session, now time.Time, r *http.Request) error {
	var req flipReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return errBadJSON
	}
	if req.CardID != "" {
		return gs.Flip(req.CardID, now)
	}
	if req.Index != nil {
		return gs.FlipIndex(*req.Index, now)
	}
	return errBadJSON
}

// persistResults records finished rounds and notifies listeners. Failures are
// logged and never fail the request.
func (s *Server) persistResults(ctx context.Context, results []game.RoundResult) {
	for _, res := range results {
		l := log.With().Str("session", res.SessionID).Str("player", res.PlayerID).Logger()
		if res.PlayerID != "" {
			if err := s.scores.Record(ctx, scores.Result{
				PlayerID:  res.PlayerID,
				Level:     res.Level,
				Score:     res.Score,
				Pairs:     res.Pairs,
				Cleared:   res.Cleared,
				ElapsedMs: res.ElapsedMs,
			}); err != nil {
				l.Warn().Err(err).Msg("record round")
			}
			s.bumpRoundsPlayed(ctx, res.PlayerID)
		}
		if err := s.notifier.RoundOver(ctx, res); err != nil {
			l.Warn().Err(err).Msg("notify round over")
		}
		l.Info().Str("level", string(res.Level)).Int("score", res.Score).Bool("cleared", res.Cleared).Msg("round over")
	}
}
