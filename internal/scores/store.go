// Package scores persists finished rounds and answers high-score queries.
//
// The game engine keeps a per-session high score on its own; a Store lets it
// survive across sessions. Two implementations exist: an in-memory one for
// the terminal client and tests, and a SQLite one for the server.
package scores

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/robalobadob/huerush/internal/difficulty"
)

// Result is one finished round.
type Result struct {
	PlayerID  string           `json:"playerId"`
	Level     difficulty.Level `json:"level"`
	Score     int              `json:"score"`
	Pairs     int              `json:"pairs"`
	Cleared   bool             `json:"cleared"`
	ElapsedMs int64            `json:"elapsedMs"`
}

// Row is one leaderboard line: a player's best round at a level.
type Row struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username,omitempty"`
	Score     int    `json:"score"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// Store records rounds and answers best-score queries.
type Store interface {
	Record(ctx context.Context, r Result) error
	// Best returns the player's best score at level, or across all levels
	// when level is empty. Unknown players score 0.
	Best(ctx context.Context, playerID string, level difficulty.Level) (int, error)
	Leaderboard(ctx context.Context, level difficulty.Level, limit int) ([]Row, error)
}

// DefaultLimit caps leaderboard queries that pass a non-positive limit.
const DefaultLimit = 20

// ---------------------------------------------------------------- memory ---

type memory struct {
	mu      sync.RWMutex
	results []Result
}

// NewMemory returns a process-local Store.
func NewMemory() Store { return &memory{} }

func (m *memory) Record(ctx context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *memory) Best(ctx context.Context, playerID string, level difficulty.Level) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	best := 0
	for _, r := range m.results {
		if r.PlayerID == playerID && (level == "" || r.Level == level) && r.Score > best {
			best = r.Score
		}
	}
	return best, nil
}

func (m *memory) Leaderboard(ctx context.Context, level difficulty.Level, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.RLock()
	byPlayer := map[string]Row{}
	for _, r := range m.results {
		if r.Level != level {
			continue
		}
		cur, ok := byPlayer[r.PlayerID]
		if !ok || r.Score > cur.Score || r.Score == cur.Score && r.ElapsedMs < cur.ElapsedMs {
			byPlayer[r.PlayerID] = Row{PlayerID: r.PlayerID, Score: r.Score, ElapsedMs: r.ElapsedMs}
		}
	}
	m.mu.RUnlock()

	out := make([]Row, 0, len(byPlayer))
	for _, row := range byPlayer {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].ElapsedMs != out[j].ElapsedMs {
			return out[i].ElapsedMs < out[j].ElapsedMs
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---------------------------------------------------------------- sqlite ---

type sqlStore struct{ db *sql.DB }

// NewSQL returns a Store backed by the round_results table.
func NewSQL(db *sql.DB) Store { return &sqlStore{db: db} }

func (s *sqlStore) Record(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO round_results (player_id, level, score, pairs, cleared, elapsed_ms)
        VALUES (?, ?, ?, ?, ?, ?)`,
		r.PlayerID, string(r.Level), r.Score, r.Pairs, r.Cleared, r.ElapsedMs,
	)
	return err
}

func (s *sqlStore) Best(ctx context.Context, playerID string, level difficulty.Level) (int, error) {
	var best int
	err := s.db.QueryRowContext(ctx, `
        SELECT COALESCE(MAX(score), 0)
        FROM round_results
        WHERE player_id=? AND (?='' OR level=?)`,
		playerID, string(level), string(level),
	).Scan(&best)
	return best, err
}

// Leaderboard relies on SQLite's bare-column rule: with MAX() in the select
// list, elapsed_ms is taken from the row holding the maximum.
func (s *sqlStore) Leaderboard(ctx context.Context, level difficulty.Level, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT r.player_id, COALESCE(p.username, ''), MAX(r.score) AS best, r.elapsed_ms AS elapsed
        FROM round_results r
        LEFT JOIN players p ON p.id = r.player_id
        WHERE r.level=?
        GROUP BY r.player_id
        ORDER BY best DESC, elapsed ASC, r.player_id ASC
        LIMIT ?`, string(level), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0, limit)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.PlayerID, &r.Username, &r.Score, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
