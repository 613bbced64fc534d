// Package queue holds the active play order. It stores track ids only;
// track data lives in the library index.
package queue

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

var (
	ErrEmpty     = errors.New("queue is empty")
	ErrExhausted = errors.New("queue exhausted")
)

// Queue walks a permutation over its items. With shuffle off the
// permutation is the identity; activating shuffle draws a seeded
// permutation once, so next and previous retrace the same sequence.
type Queue struct {
	mu       sync.Mutex
	items    []string // build order
	order    []int    // walk order: permutation of items indices
	pos      int      // cursor into order, -1 when empty
	repeat   RepeatMode
	shuffled bool
}

func New() *Queue {
	return &Queue{pos: -1}
}

// Reset replaces the queue contents and positions the cursor on
// items[start]. With shuffle active the cursor track leads a freshly
// drawn permutation.
func (q *Queue) Reset(ids []string, start int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]string, len(ids))
	copy(q.items, ids)
	if len(q.items) == 0 {
		q.order = nil
		q.pos = -1
		return
	}
	if start < 0 || start >= len(q.items) {
		start = 0
	}
	q.order = identity(len(q.items))
	q.pos = start
	if q.shuffled {
		q.reshuffle(time.Now().UnixNano(), start)
	}
}

// Current returns the track id under the cursor.
func (q *Queue) Current() (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pos < 0 || q.pos >= len(q.order) {
		return "", ErrEmpty
	}
	return q.items[q.order[q.pos]], nil
}

// Next moves the cursor forward. Past the last track it wraps under
// RepeatAll and reports ErrExhausted otherwise, leaving the cursor put.
func (q *Queue) Next() (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return "", ErrEmpty
	}
	if q.pos+1 >= len(q.order) {
		if q.repeat != RepeatAll {
			return "", ErrExhausted
		}
		q.pos = 0
		return q.items[q.order[q.pos]], nil
	}
	q.pos++
	return q.items[q.order[q.pos]], nil
}

// Previous moves the cursor back, wrapping only under RepeatAll.
func (q *Queue) Previous() (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return "", ErrEmpty
	}
	if q.pos-1 < 0 {
		if q.repeat != RepeatAll {
			return "", ErrExhausted
		}
		q.pos = len(q.order) - 1
		return q.items[q.order[q.pos]], nil
	}
	q.pos--
	return q.items[q.order[q.pos]], nil
}

// Advance answers what plays after the current track ends naturally:
// the same track under RepeatOne, the next with a wrap under RepeatAll,
// and the next or ErrExhausted under RepeatOff.
func (q *Queue) Advance() (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 || q.pos < 0 {
		return "", ErrEmpty
	}
	switch q.repeat {
	case RepeatOne:
		return q.items[q.order[q.pos]], nil
	case RepeatAll:
		q.pos = (q.pos + 1) % len(q.order)
		return q.items[q.order[q.pos]], nil
	default:
		if q.pos+1 >= len(q.order) {
			return "", ErrExhausted
		}
		q.pos++
		return q.items[q.order[q.pos]], nil
	}
}

// Append adds ids to the tail of the walk, shuffled or not. The walked
// prefix is never disturbed.
func (q *Queue) Append(ids ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		q.items = append(q.items, id)
		q.order = append(q.order, len(q.items)-1)
	}
	if q.pos == -1 && len(q.order) > 0 {
		q.pos = 0
	}
}

// Remove drops every occurrence of id. The cursor keeps its track when
// possible, otherwise it lands on the following one.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := map[int]bool{}
	for i, it := range q.items {
		if it == id {
			removed[i] = true
		}
	}
	if len(removed) == 0 {
		return
	}

	oldToNew := make(map[int]int, len(q.items))
	var newItems []string
	for i, it := range q.items {
		if removed[i] {
			continue
		}
		oldToNew[i] = len(newItems)
		newItems = append(newItems, it)
	}

	var newOrder []int
	removedBefore := 0
	cursorRemoved := false
	for p, idx := range q.order {
		if removed[idx] {
			if p < q.pos {
				removedBefore++
			} else if p == q.pos {
				cursorRemoved = true
			}
			continue
		}
		newOrder = append(newOrder, oldToNew[idx])
	}

	q.items = newItems
	q.order = newOrder
	if len(q.order) == 0 {
		q.pos = -1
		return
	}
	q.pos -= removedBefore
	if cursorRemoved && q.pos >= len(q.order) {
		q.pos = len(q.order) - 1
	}
	if q.pos < 0 {
		q.pos = 0
	}
}

// SetShuffle toggles shuffle. Activation draws a new permutation with the
// current track first; deactivation returns to build order at the current
// track.
func (q *Queue) SetShuffle(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.setShuffleLocked(on, time.Now().UnixNano())
}

func (q *Queue) setShuffleLocked(on bool, seed int64) {
	if on == q.shuffled {
		return
	}
	q.shuffled = on
	if len(q.order) == 0 {
		return
	}
	cur := q.order[q.pos]
	if on {
		q.reshuffle(seed, cur)
		return
	}
	q.order = identity(len(q.items))
	q.pos = cur
}

// reshuffle draws a permutation and moves lead (an items index) to the
// front of the walk. Caller holds the lock.
func (q *Queue) reshuffle(seed int64, lead int) {
	rng := rand.New(rand.NewSource(seed))
	q.order = identity(len(q.items))
	rng.Shuffle(len(q.order), func(i, j int) {
		q.order[i], q.order[j] = q.order[j], q.order[i]
	})
	for p, idx := range q.order {
		if idx == lead {
			q.order[0], q.order[p] = q.order[p], q.order[0]
			break
		}
	}
	q.pos = 0
}

func (q *Queue) Shuffled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffled
}

func (q *Queue) SetRepeat(m RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = m
}

func (q *Queue) Repeat() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// CycleRepeat steps off -> all -> one -> off and returns the new mode.
func (q *Queue) CycleRepeat() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = (q.repeat + 1) % 3
	return q.repeat
}

// Items returns the queue in walk order.
func (q *Queue) Items() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.order))
	for p, idx := range q.order {
		out[p] = q.items[idx]
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pos returns the cursor position in the walk, -1 when empty.
func (q *Queue) Pos() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pos
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.order = nil
	q.pos = -1
}

// Snapshot captures the walk for session persistence.
func (q *Queue) Snapshot() (ids []string, pos int, repeat RepeatMode, shuffled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids = make([]string, len(q.order))
	for p, idx := range q.order {
		ids[p] = q.items[idx]
	}
	return ids, q.pos, q.repeat, q.shuffled
}

// Restore rebuilds the queue from a snapshot. The persisted walk becomes
// the build order, so a later unshuffle keeps it.
func (q *Queue) Restore(ids []string, pos int, repeat RepeatMode, shuffled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]string, len(ids))
	copy(q.items, ids)
	q.order = identity(len(q.items))
	q.repeat = repeat
	q.shuffled = shuffled
	if len(q.items) == 0 {
		q.pos = -1
		return
	}
	if pos < 0 || pos >= len(q.items) {
		pos = 0
	}
	q.pos = pos
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
