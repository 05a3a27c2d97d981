package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/huerush/assets"
	"github.com/robalobadob/huerush/internal/config"
	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/game"
	"github.com/robalobadob/huerush/internal/palette"
	"github.com/robalobadob/huerush/internal/scores"
	"github.com/robalobadob/huerush/internal/storage"
	"github.com/robalobadob/huerush/internal/store"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	t   *testing.T
	srv *Server
	clk *clock.Mock
	jar map[string]*http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	require.NoError(t, palette.Init())

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mig, err := assets.Migrations()
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db, mig))

	clk := clock.NewMock()
	clk.Set(t0)
	srv := New(Deps{
		Config: config.Config{
			JWTSecret:  "test-secret",
			JWTExpiry:  time.Hour,
			CookieName: "huerush_token",
			SessionTTL: time.Hour,
		},
		Scores: scores.NewSQL(db),
		DB:     db,
		Clock:  clk,
	})
	return &harness{t: t, srv: srv, clk: clk, jar: map[string]*http.Cookie{}}
}

// do sends a request carrying every cookie seen so far.
func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range h.jar {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(h.jar, c.Name)
			continue
		}
		h.jar[c.Name] = c
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// startRound creates a session and deals an easy round.
func (h *harness) startRound() string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/sessions", nil)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[newSessionRes](h.t, rec).SessionID

	rec = h.do(http.MethodPost, "/sessions/"+id+"/select", map[string]string{"level": "easy"})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.do(http.MethodPost, "/sessions/"+id+"/confirm", nil)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

// colors peeks at the hidden deck.
func (h *harness) colors(id string) []string {
	h.t.Helper()
	var out []string
	require.NoError(h.t, h.srv.sessions.Update(context.Background(), id, func(gs *game.Session) error {
		for _, c := range gs.Round.Cards {
			out = append(out, c.Color)
		}
		return nil
	}))
	return out
}

func (h *harness) flip(id string, idx int) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, "/sessions/"+id+"/flip", map[string]int{"index": idx})
}

func matchingPair(colors []string) (int, int) {
	seen := map[string]int{}
	for i, c := range colors {
		if j, ok := seen[c]; ok {
			return j, i
		}
		seen[c] = i
	}
	return -1, -1
}

func TestHealthAndLevels(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	type levels struct {
		Tier   string     `json:"tier"`
		Levels []levelRes `json:"levels"`
	}
	narrow := decode[levels](t, h.do(http.MethodGet, "/levels?width=500", nil))
	assert.Equal(t, "narrow", narrow.Tier)
	require.Len(t, narrow.Levels, 3)
	assert.Equal(t, 4, narrow.Levels[0].Columns)
	assert.Equal(t, 20, narrow.Levels[0].Cards)

	wide := decode[levels](t, h.do(http.MethodGet, "/levels?width=1280", nil))
	assert.Equal(t, "wide", wide.Tier)
	assert.Equal(t, 8, wide.Levels[2].Columns)
	assert.Equal(t, 540, wide.Levels[2].TimeLimitSeconds)

	rec = h.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, h.jar, anonCookieName)
	id := decode[newSessionRes](t, rec).SessionID

	rec = h.do(http.MethodPost, "/sessions/"+id+"/flip", map[string]int{"index": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_phase", decode[actionRes](t, rec).Error)

	rec = h.do(http.MethodPost, "/sessions/"+id+"/select", map[string]string{"level": "extreme"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/sessions/"+id+"/select", map[string]string{"level": "medium"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, game.PhaseConfirming, decode[game.View](t, rec).Phase)

	rec = h.do(http.MethodPost, "/sessions/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, game.PhaseSelecting, decode[game.View](t, rec).Phase)

	h.do(http.MethodPost, "/sessions/"+id+"/select", map[string]string{"level": "medium"})
	rec = h.do(http.MethodPost, "/sessions/"+id+"/confirm?width=1280", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[game.View](t, rec)
	assert.Equal(t, game.PhasePlaying, v.Phase)
	assert.Len(t, v.Cards, 36)
	assert.Equal(t, 6, v.Columns)
	assert.Equal(t, 420, v.TimeRemaining)
	for _, c := range v.Cards {
		assert.Empty(t, c.Color, "face-down colors must stay hidden")
	}

	rec = h.do(http.MethodGet, "/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlipMatchAndMismatch(t *testing.T) {
	h := newHarness(t)
	id := h.startRound()
	colors := h.colors(id)

	a, b := matchingPair(colors)
	require.GreaterOrEqual(t, a, 0)
	require.Equal(t, http.StatusOK, h.flip(id, a).Code)

	rec := h.flip(id, a)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ignored", decode[actionRes](t, rec).Error)

	v := decode[game.View](t, h.flip(id, b))
	assert.Equal(t, 1, v.Score)
	assert.True(t, v.Cards[a].Matched)
	assert.Equal(t, colors[a], v.Cards[b].Color)

	// find two face-down cards of different colors
	x, y := -1, -1
	for i := range colors {
		if i == a || i == b {
			continue
		}
		if x < 0 {
			x = i
			continue
		}
		if colors[i] != colors[x] {
			y = i
			break
		}
	}
	require.Equal(t, http.StatusOK, h.flip(id, x).Code)
	v = decode[game.View](t, h.flip(id, y))
	assert.True(t, v.Cards[x].Flipped)
	assert.True(t, v.Cards[y].Flipped)
	assert.Equal(t, 1, v.Score)

	h.clk.Add(500 * time.Millisecond)
	v = decode[game.View](t, h.do(http.MethodGet, "/sessions/"+id, nil))
	assert.True(t, v.Cards[x].Flipped)

	h.clk.Add(500 * time.Millisecond)
	v = decode[game.View](t, h.do(http.MethodGet, "/sessions/"+id, nil))
	assert.False(t, v.Cards[x].Flipped)
	assert.False(t, v.Cards[y].Flipped)
	assert.Empty(t, v.Selection)
	assert.Equal(t, 299, v.TimeRemaining)
}

func TestTimeoutRecordsScore(t *testing.T) {
	h := newHarness(t)
	id := h.startRound()
	a, b := matchingPair(h.colors(id))
	h.flip(id, a)
	h.flip(id, b)

	h.clk.Add(300 * time.Second)
	v := decode[game.View](t, h.do(http.MethodGet, "/sessions/"+id, nil))
	assert.True(t, v.GameOver)
	assert.Equal(t, game.PhaseRoundOver, v.Phase)
	assert.Equal(t, 0, v.TimeRemaining)
	assert.Equal(t, 1, v.HighScore)

	rec := h.flip(id, 0)
	assert.Equal(t, http.StatusConflict, rec.Code)

	lb := decode[lbRes](t, h.do(http.MethodGet, "/scores/leaderboard?level=easy", nil))
	require.Len(t, lb.Top, 1)
	assert.Equal(t, h.jar[anonCookieName].Value, lb.Top[0].PlayerID)
	assert.Equal(t, 1, lb.Top[0].Score)
	assert.EqualValues(t, 300000, lb.Top[0].ElapsedMs)

	rec = h.do(http.MethodGet, "/scores/leaderboard?level=extreme", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a new session starts from the stored best
	rec = h.do(http.MethodPost, "/sessions", nil)
	assert.Equal(t, 1, decode[newSessionRes](t, rec).State.HighScore)
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	// play anonymously first; the round is claimed on signup
	id := h.startRound()
	a, b := matchingPair(h.colors(id))
	h.flip(id, a)
	h.flip(id, b)
	h.clk.Add(300 * time.Second)
	h.do(http.MethodGet, "/sessions/"+id, nil)

	rec := h.do(http.MethodPost, "/auth/signup", credentialsReq{Username: "alice", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/auth/signup", credentialsReq{Username: "alice", Password: "password1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, h.jar, "huerush_token")
	aliceID := decode[map[string]any](t, rec)["id"].(string)

	me := decode[authUser](t, h.do(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, "alice", me.Username)

	lb := decode[lbRes](t, h.do(http.MethodGet, "/scores/leaderboard?level=easy", nil))
	require.Len(t, lb.Top, 1)
	assert.Equal(t, aliceID, lb.Top[0].PlayerID)
	assert.Equal(t, "alice", lb.Top[0].Username)

	mine := decode[map[string]any](t, h.do(http.MethodGet, "/scores/me", nil))
	assert.EqualValues(t, 1, mine["best"].(map[string]any)["easy"])

	rec = h.do(http.MethodPost, "/auth/signup", credentialsReq{Username: "ALICE", Password: "password1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, h.jar, "huerush_token")
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/auth/me", nil).Code)

	rec = h.do(http.MethodPost, "/auth/login", credentialsReq{Username: "alice", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(http.MethodPost, "/auth/login", credentialsReq{Username: "alice", Password: "password1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuestLogin(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/auth/guest", credentialsReq{Username: "bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[map[string]any](t, rec)["id"]

	rec = h.do(http.MethodPost, "/auth/guest", credentialsReq{Username: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decode[map[string]any](t, rec)["id"])

	rec = h.do(http.MethodPost, "/auth/guest", credentialsReq{Username: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// another browser cannot take over the guest name
	other := &harness{t: t, srv: h.srv, clk: h.clk, jar: map[string]*http.Cookie{}}
	rec = other.do(http.MethodPost, "/auth/guest", credentialsReq{Username: "BOB"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotContains(t, other.jar, "huerush_token")

	h.do(http.MethodPost, "/auth/signup", credentialsReq{Username: "carol", Password: "password1"})
	rec = h.do(http.MethodPost, "/auth/guest", credentialsReq{Username: "carol"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// a logged-in guest plays under its own id
	h.do(http.MethodPost, "/auth/guest", credentialsReq{Username: "bob"})
	rec = h.do(http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var player string
	sid := decode[newSessionRes](t, rec).SessionID
	require.NoError(t, h.srv.sessions.Update(context.Background(), sid, func(gs *game.Session) error {
		player = gs.PlayerID
		return nil
	}))
	assert.Equal(t, first, player)
}

// sweepSpy counts sessions evicted through the wrapped store.
type sweepSpy struct {
	store.Store
	evicted atomic.Int64
}

func (s *sweepSpy) Sweep(ctx context.Context, cutoff time.Time) []*game.Session {
	evicted := s.Store.Sweep(ctx, cutoff)
	s.evicted.Add(int64(len(evicted)))
	return evicted
}

func TestSweeperEvictsIdleSessions(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(t0)
	spy := &sweepSpy{Store: store.NewMemoryStore(clk.Now)}
	srv := New(Deps{Config: config.Config{SessionTTL: time.Hour}, Sessions: spy, Clock: clk})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.RunSweeper(ctx, time.Minute)

	clk.Add(2 * time.Hour)
	assert.Eventually(t, func() bool {
		clk.Add(time.Minute)
		return spy.evicted.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperRecordsAbandonedRound(t *testing.T) {
	h := newHarness(t)
	id := h.startRound()
	a, b := matchingPair(h.colors(id))
	h.flip(id, a)
	h.flip(id, b)
	player := h.jar[anonCookieName].Value

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.srv.RunSweeper(ctx, time.Minute)

	h.clk.Add(2 * time.Hour)
	assert.Eventually(t, func() bool {
		h.clk.Add(time.Minute)
		best, err := h.srv.scores.Best(ctx, player, difficulty.Easy)
		return err == nil && best == 1
	}, 2*time.Second, 10*time.Millisecond)

	top, err := h.srv.scores.Leaderboard(ctx, difficulty.Easy, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, player, top[0].PlayerID)
	assert.EqualValues(t, 300000, top[0].ElapsedMs)

	rec := h.do(http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
