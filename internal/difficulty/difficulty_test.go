package difficulty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTable(t *testing.T) {
	cases := []struct {
		level   Level
		tier    Tier
		cards   int
		columns int
		limit   time.Duration
	}{
		{Easy, Wide, 20, 5, 300 * time.Second},
		{Easy, Narrow, 20, 4, 300 * time.Second},
		{Medium, Wide, 36, 6, 420 * time.Second},
		{Hard, Wide, 48, 8, 540 * time.Second},
		{Hard, Narrow, 48, 6, 540 * time.Second},
		{Hard, "", 48, 8, 540 * time.Second},
	}
	for _, tc := range cases {
		c, err := Lookup(tc.level, tc.tier)
		require.NoError(t, err)
		assert.Equal(t, tc.cards, c.Cards, "%s/%s", tc.level, tc.tier)
		assert.Equal(t, tc.columns, c.Columns, "%s/%s", tc.level, tc.tier)
		assert.Equal(t, tc.limit, c.TimeLimit)
		assert.Zero(t, c.Cards%2)
	}
}

func TestParse(t *testing.T) {
	l, err := Parse(" Medium ")
	require.NoError(t, err)
	assert.Equal(t, Medium, l)

	_, err = Parse("insane")
	assert.ErrorIs(t, err, ErrUnknownLevel)

	_, err = Lookup("insane", Wide)
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestNext(t *testing.T) {
	n, ok := Next(Easy)
	assert.True(t, ok)
	assert.Equal(t, Medium, n)

	n, ok = Next(Medium)
	assert.True(t, ok)
	assert.Equal(t, Hard, n)

	_, ok = Next(Hard)
	assert.False(t, ok)
}

func TestTierForWidth(t *testing.T) {
	assert.Equal(t, Narrow, TierForWidth(375))
	assert.Equal(t, Wide, TierForWidth(640))
	assert.Equal(t, Wide, TierForWidth(1920))
	assert.Equal(t, Wide, TierForWidth(0))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(24))
	assert.ErrorIs(t, Validate(23), ErrTooManyPairs)
}
