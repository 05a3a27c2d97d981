// internal/sched/queue.go
//
// Single-threaded scheduled-event queue.
//
// Events are ordered by due time, then by insertion order, so two events due
// at the same instant fire in the order they were scheduled. Every Schedule
// call returns a Token that can cancel the event before it is popped.
// The queue performs no locking; the owner serializes access.

package sched

import (
	"container/heap"
	"time"
)

// Token identifies a scheduled event. The zero Token never matches.
type Token uint64

type item[T any] struct {
	at      time.Time
	seq     uint64
	token   Token
	payload T
	index   int
}

type itemHeap[T any] []*item[T]

func (h itemHeap[T]) Len() int { return len(h) }
func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h itemHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *itemHeap[T]) Push(x any) {
	it := x.(*item[T])
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue holds pending events carrying payloads of type T.
type Queue[T any] struct {
	h     itemHeap[T]
	byTok map[Token]*item[T]
	seq   uint64
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{byTok: make(map[Token]*item[T])}
}

// Schedule enqueues payload to fire at at.
func (q *Queue[T]) Schedule(at time.Time, payload T) Token {
	q.seq++
	it := &item[T]{at: at, seq: q.seq, token: Token(q.seq), payload: payload}
	heap.Push(&q.h, it)
	q.byTok[it.token] = it
	return it.token
}

// Cancel removes the event for tok. It reports whether an event was removed;
// cancelling an event that already fired is a no-op.
func (q *Queue[T]) Cancel(tok Token) bool {
	it, ok := q.byTok[tok]
	if !ok {
		return false
	}
	heap.Remove(&q.h, it.index)
	delete(q.byTok, tok)
	return true
}

// CancelAll drops every pending event.
func (q *Queue[T]) CancelAll() {
	clear(q.h)
	q.h = q.h[:0]
	clear(q.byTok)
}

// Len reports the number of pending events.
func (q *Queue[T]) Len() int { return len(q.h) }

// Next returns the due time of the earliest pending event.
func (q *Queue[T]) Next() (time.Time, bool) {
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].at, true
}

// PopDue removes and returns the earliest event due at or before now.
func (q *Queue[T]) PopDue(now time.Time) (payload T, at time.Time, ok bool) {
	if len(q.h) == 0 || q.h[0].at.After(now) {
		return payload, at, false
	}
	it := heap.Pop(&q.h).(*item[T])
	delete(q.byTok, it.token)
	return it.payload, it.at, true
}
