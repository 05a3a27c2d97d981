// internal/httpserver/routes_scores.go
//
// HTTP routes for high scores.
//   - GET /scores/leaderboard?level=easy&limit=20 → best round per player
//   - GET /scores/me                              → caller's best per level (auth)

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/scores"
)

const maxLeaderboardLimit = 100

// mountScores registers all /scores routes.
func (s *Server) mountScores() {
	s.r.Route("/scores", func(r chi.Router) {
		r.Get("/leaderboard", s.handleLeaderboard)
		if s.db != nil {
			r.With(s.requireAuth()).Get("/me", s.handleMyScores)
		}
	})
}

// lbRes is returned by /scores/leaderboard.
type lbRes struct {
	Level difficulty.Level `json:"level"`
	Top   []scores.Row     `json:"top"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	level := difficulty.Easy
	if q := r.URL.Query().Get("level"); q != "" {
		l, err := difficulty.Parse(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_level")
			return
		}
		level = l
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	rows, err := s.scores.Leaderboard(r.Context(), level, limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Level: level, Top: rows})
}

func (s *Server) handleMyScores(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r)
	if me == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	best := make(map[difficulty.Level]int, 3)
	for _, l := range difficulty.Levels() {
		n, err := s.scores.Best(r.Context(), me.ID, l)
		if err != nil {
			log.Error().Err(err).Str("player", me.ID).Msg("best score")
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		best[l] = n
	}
	p, err := s.findPlayerByID(me.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           p.ID,
		"username":     p.Username,
		"roundsPlayed": p.RoundsPlayed,
		"best":         best,
	})
}
