package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/huerush/internal/difficulty"
	"github.com/robalobadob/huerush/internal/game"
)

func TestUpdateUnknownSession(t *testing.T) {
	st := NewMemoryStore(nil)
	err := st.Update(context.Background(), "nope", func(*game.Session) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePropagatesError(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(nil)
	s := game.NewSession()
	require.NoError(t, st.Save(ctx, s))

	boom := errors.New("boom")
	assert.ErrorIs(t, st.Update(ctx, s.ID, func(*game.Session) error { return boom }), boom)

	require.NoError(t, st.Update(ctx, s.ID, func(gs *game.Session) error {
		return gs.SelectLevel(difficulty.Easy)
	}))
	require.NoError(t, st.Update(ctx, s.ID, func(gs *game.Session) error {
		assert.Equal(t, game.PhaseConfirming, gs.Phase)
		return nil
	}))
}

func TestUpdateSerializesAccess(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(nil)
	s := game.NewSession()
	require.NoError(t, st.Save(ctx, s))

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Update(ctx, s.ID, func(*game.Session) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	st := NewMemoryStore(clk.Now)

	idle := game.NewSession()
	require.NoError(t, st.Save(ctx, idle))
	clk.Add(30 * time.Minute)
	active := game.NewSession()
	require.NoError(t, st.Save(ctx, active))

	evicted := st.Sweep(ctx, clk.Now().Add(-10*time.Minute))
	require.Len(t, evicted, 1)
	assert.Same(t, idle, evicted[0])
	assert.Empty(t, st.Sweep(ctx, clk.Now().Add(-10*time.Minute)))
	assert.ErrorIs(t, st.Update(ctx, idle.ID, func(*game.Session) error { return nil }), ErrNotFound)
	assert.NoError(t, st.Update(ctx, active.ID, func(*game.Session) error { return nil }))
}
