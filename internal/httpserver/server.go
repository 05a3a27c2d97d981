// internal/httpserver/server.go
//
// HTTP server wiring for the Hue Rush backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/levels".
//   - Session endpoints (optional auth): mounted under /sessions.
//   - Score endpoints: mounted under /scores.
//   - Auth endpoints: /auth/*.
//   - Idle session sweeping.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Every session read or action first advances the session to the server
//     clock, so countdown ticks and mismatch reverts are applied lazily.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/huerush/internal/config"
	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/events"
	"github.com/robalobadob/huerush/internal/scores"
	"github.com/robalobadob/huerush/internal/store"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Config   config.Config
	Sessions store.Store
	Scores   scores.Store
	DB       *sql.DB // players table; auth routes are disabled when nil
	Clock    clock.Clock
	Notifier events.Notifier
}

// Server bundles router, session store, score store and DB handle.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	sessions store.Store
	scores   scores.Store
	db       *sql.DB
	clock    clock.Clock
	notifier events.Notifier
	http     *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      d.Config,
		sessions: d.Sessions,
		scores:   d.Scores,
		db:       d.DB,
		clock:    d.Clock,
		notifier: d.Notifier,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.notifier == nil {
		s.notifier = events.Nop{}
	}
	if s.scores == nil {
		s.scores = scores.NewMemory()
	}
	if s.sessions == nil {
		s.sessions = store.NewMemoryStore(s.clock.Now)
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(requestLogger)
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"huerush","endpoints":["/health","/levels","POST /sessions","/scores/*","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/levels", s.handleLevels)

	// Sessions: optional auth, guests can play
	s.mountSessions(s.r.With(s.withOptionalAuth()))

	// Scores
	s.mountScores()

	// Auth
	if s.db != nil {
		s.mountAuthRoutes()
	}

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	s.http = &http.Server{Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Start begins serving HTTP on addr. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// RunSweeper evicts idle sessions every interval until ctx is done. A round
// left running in an evicted session is run out to now and recorded.
func (s *Server) RunSweeper(ctx context.Context, every time.Duration) {
	t := s.clock.Ticker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			evicted := s.sessions.Sweep(ctx, now.Add(-s.cfg.SessionTTL))
			for _, gs := range evicted {
				gs.Advance(now)
				s.persistResults(ctx, gs.DrainResults())
			}
			if len(evicted) > 0 {
				log.Info().Int("evicted", len(evicted)).Msg("swept idle sessions")
			}
		}
	}
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one debug line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("reqId", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ levels -------------------------------------

type levelRes struct {
	Level            difficulty.Level `json:"level"`
	Cards            int              `json:"cards"`
	Columns          int              `json:"columns"`
	TimeLimitSeconds int              `json:"timeLimitSeconds"`
}

// handleLevels lists the difficulty table for the caller's viewport tier.
func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	tier := tierFrom(r)
	out := make([]levelRes, 0, 3)
	for _, l := range difficulty.Levels() {
		c := difficulty.MustLookup(l, tier)
		out = append(out, levelRes{Level: l, Cards: c.Cards, Columns: c.Columns, TimeLimitSeconds: c.Seconds()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tier": tier, "levels": out})
}

// ------------------------------- small util --------------------------------

// tierFrom reads the viewport width from ?width= (pixels).
func tierFrom(r *http.Request) difficulty.Tier {
	px, _ := strconv.Atoi(r.URL.Query().Get("width"))
	return difficulty.TierForWidth(px)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
