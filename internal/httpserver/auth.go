// internal/httpserver/auth.go
//
// Player accounts, JWT cookies and auth middleware.
//   - POST /auth/signup → username + password account
//   - POST /auth/login
//   - POST /auth/logout
//   - POST /auth/guest  → username only (the pre-game name prompt)
//   - GET  /auth/me
//
// Guests and password accounts share the players table; a guest row simply
// has no password hash. Rounds played anonymously (anon cookie) are claimed
// by the account on signup/login.

package httpserver

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUsernameTaken = errors.New("username taken")
	errBadUsername   = errors.New("username: 3-24 letters, numbers or underscore")
	errBadPassword   = errors.New("password must be 8-100 chars")
)

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

func userFrom(r *http.Request) *authUser {
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return u
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// mountAuthRoutes registers /auth/*.
func (s *Server) mountAuthRoutes() {
	s.r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/guest", s.handleGuest)
		r.With(s.requireAuth()).Get("/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, userFrom(r))
		})
	})
}

// handleSignup creates an account, signs a JWT, sets the cookie and claims
// anonymous rounds.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := validatePassword(body.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash_failed")
		return
	}
	p, err := s.createPlayer(body.Username, string(h), "")
	if err != nil {
		s.writePlayerError(w, err)
		return
	}
	s.issue(w, r, p, http.StatusCreated)
}

// handleLogin authenticates a password account.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	p, err := s.findPlayerByUsername(strings.TrimSpace(body.Username))
	if err != nil || p.PasswordHash == "" || !checkPassword(p.PasswordHash, body.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	s.issue(w, r, p, http.StatusOK)
}

// handleGuest signs in with a display name only. A guest name belongs to the
// anonymous cookie that first claimed it and is reused only from there; names
// owned by password accounts or other browsers are refused.
func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	name := normalizeUsername(body.Username)
	owner := s.anonID(w, r)
	p, err := s.findPlayerByUsername(name)
	switch {
	case err == nil && (p.PasswordHash != "" || p.AnonID != owner):
		writeError(w, http.StatusConflict, "Username taken")
		return
	case errors.Is(err, sql.ErrNoRows):
		if p, err = s.createPlayer(name, "", owner); err != nil {
			s.writePlayerError(w, err)
			return
		}
	case err != nil:
		log.Error().Err(err).Msg("find guest")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	s.issue(w, r, p, http.StatusOK)
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// issue signs a token for p, sets the cookie and claims anonymous rounds.
func (s *Server) issue(w http.ResponseWriter, r *http.Request, p *playerRow, status int) {
	tok, exp, err := s.signJWT(p.ID, p.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setAuthCookie(w, tok, exp)
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		s.claimAnonRounds(c.Value, p.ID)
	}
	writeJSON(w, status, map[string]any{"id": p.ID, "username": p.Username, "token": tok})
}

func (s *Server) writePlayerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUsernameTaken):
		writeError(w, http.StatusConflict, "Username taken")
	case errors.Is(err, errBadUsername):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("create player")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

// --------------------------- optional auth ---------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is present.
// It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := s.parseToken(bearerOrCookie(r, s.cfg.CookieName)); u != nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerOrCookie(r, s.cfg.CookieName)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			u := s.parseToken(tok)
			if u == nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u)))
		})
	}
}

// parseToken validates tok and checks the player still exists.
func (s *Server) parseToken(tok string) *authUser {
	if tok == "" || s.db == nil {
		return nil
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return nil
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil
	}
	if _, err := s.findPlayerByID(id); err != nil {
		return nil
	}
	return &authUser{ID: id, Username: username}
}

const anonCookieName = "huerush_anon"

// playerID returns the authenticated player ID if logged in, otherwise an
// anonymous ID stored in a long-lived cookie.
func (s *Server) playerID(w http.ResponseWriter, r *http.Request) string {
	if me := userFrom(r); me != nil {
		return me.ID
	}
	return s.anonID(w, r)
}

// anonID returns the browser's anonymous ID, minting the cookie on first use.
func (s *Server) anonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := "anon_" + genID()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// claimAnonRounds transfers anonymous rounds to a player after auth.
func (s *Server) claimAnonRounds(anonID, playerID string) {
	if anonID == "" || playerID == "" || s.db == nil {
		return
	}
	if _, err := s.db.Exec(`UPDATE round_results SET player_id=? WHERE player_id=?`, playerID, anonID); err != nil {
		log.Warn().Err(err).Msg("claim anon rounds")
	}
}

// ------------------------ players ------------------------------------------

// playerRow matches the players table shape.
type playerRow struct {
	ID           string
	Username     string
	PasswordHash string
	AnonID       string // guests only: the anonymous cookie that owns the name
	CreatedAt    time.Time
	RoundsPlayed int
}

// createPlayer validates the name, checks uniqueness and inserts a row.
// An empty hash creates a guest owned by anonID.
func (s *Server) createPlayer(username, hash, anonID string) (*playerRow, error) {
	username = normalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	var exists int
	_ = s.db.QueryRow(`SELECT 1 FROM players WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if exists == 1 {
		return nil, errUsernameTaken
	}
	now := time.Now().UTC().Format(time.RFC3339)
	id := genID()
	var pw, owner sql.NullString
	if hash != "" {
		pw = sql.NullString{String: hash, Valid: true}
	} else {
		owner = sql.NullString{String: anonID, Valid: anonID != ""}
	}
	if _, err := s.db.Exec(`INSERT INTO players (id, username, password_hash, anon_id, created_at) VALUES (?,?,?,?,?)`,
		id, username, pw, owner, now); err != nil {
		return nil, err
	}
	return &playerRow{ID: id, Username: username, PasswordHash: hash, AnonID: owner.String, CreatedAt: mustParse(now)}, nil
}

func (s *Server) findPlayerByUsername(username string) (*playerRow, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, anon_id, created_at, rounds_played
	                      FROM players WHERE lower(username)=lower(?)`, username)
	return scanPlayer(row)
}

func (s *Server) findPlayerByID(id string) (*playerRow, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, anon_id, created_at, rounds_played
	                      FROM players WHERE id=?`, id)
	return scanPlayer(row)
}

func scanPlayer(row *sql.Row) (*playerRow, error) {
	var p playerRow
	var hash, owner sql.NullString
	var created string
	if err := row.Scan(&p.ID, &p.Username, &hash, &owner, &created, &p.RoundsPlayed); err != nil {
		return nil, err
	}
	p.PasswordHash = hash.String
	p.AnonID = owner.String
	p.CreatedAt = mustParse(created)
	return &p, nil
}

// bumpRoundsPlayed increments the counter for registered players; anonymous
// IDs have no row and are skipped by the WHERE clause.
func (s *Server) bumpRoundsPlayed(ctx context.Context, playerID string) {
	if s.db == nil {
		return
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE players SET rounds_played = rounds_played + 1 WHERE id=?`, playerID); err != nil {
		log.Warn().Err(err).Str("player", playerID).Msg("bump rounds played")
	}
}

// mustParse parses RFC3339 timestamps; on error returns zero time.
func mustParse(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// normalizeUsername trims whitespace.
func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

func validateUsername(u string) error {
	if len(u) < 3 || len(u) > 24 {
		return errBadUsername
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errBadUsername
		}
	}
	return nil
}

func validatePassword(p string) error {
	if len(p) < 8 || len(p) > 100 {
		return errBadPassword
	}
	return nil
}

// genID creates a 22-char URL-safe, crypto-random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with id/username and the configured expiry.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.cfg.JWTExpiry)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

func (s *Server) sameSite() http.SameSite {
	if s.cfg.Production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// setAuthCookie writes the auth token cookie with appropriate security attributes.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  exp,
	})
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request, cookie string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}
