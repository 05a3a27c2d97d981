package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func drain(q *Queue[string], now time.Time) []string {
	var out []string
	for {
		p, _, ok := q.PopDue(now)
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

func TestPopDueOrdersByTimeThenInsertion(t *testing.T) {
	q := New[string]()
	q.Schedule(t0.Add(2*time.Second), "c")
	q.Schedule(t0.Add(time.Second), "a")
	q.Schedule(t0.Add(time.Second), "b")

	assert.Empty(t, drain(q, t0))
	assert.Equal(t, []string{"a", "b"}, drain(q, t0.Add(time.Second)))
	assert.Equal(t, []string{"c"}, drain(q, t0.Add(5*time.Second)))
	assert.Zero(t, q.Len())
}

func TestCancel(t *testing.T) {
	q := New[string]()
	a := q.Schedule(t0.Add(time.Second), "a")
	q.Schedule(t0.Add(2*time.Second), "b")

	assert.True(t, q.Cancel(a))
	assert.False(t, q.Cancel(a))
	assert.False(t, q.Cancel(0))

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, t0.Add(2*time.Second), next)
	assert.Equal(t, []string{"b"}, drain(q, t0.Add(time.Hour)))
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	q := New[string]()
	a := q.Schedule(t0, "a")
	assert.Equal(t, []string{"a"}, drain(q, t0))
	assert.False(t, q.Cancel(a))
}

func TestCancelAll(t *testing.T) {
	q := New[string]()
	tok := q.Schedule(t0, "a")
	q.Schedule(t0, "b")
	q.CancelAll()

	assert.Zero(t, q.Len())
	assert.False(t, q.Cancel(tok))
	_, ok := q.Next()
	assert.False(t, ok)

	q.Schedule(t0, "c")
	assert.Equal(t, []string{"c"}, drain(q, t0))
}

func TestCancelAllReleasesPayloads(t *testing.T) {
	q := New[string]()
	q.Schedule(t0, "a")
	q.Schedule(t0.Add(time.Second), "b")
	q.CancelAll()

	for _, it := range q.h[:cap(q.h)] {
		assert.Nil(t, it)
	}
}
