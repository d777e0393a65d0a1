// Package relay carries work from the mesh side of the bridge to the chat
// side. Mesh handlers enqueue actions without blocking; the delivery loop
// drains the queue on a fixed interval.
package relay

import (
	"errors"
	"sync"
)

var ErrQueueFull = errors.New("relay queue full")

type ActionKind int

const (
	// ActionBroadcast goes to every registered chat user.
	ActionBroadcast ActionKind = iota
	// ActionNotifyAdmins goes to the configured admin chat ids only.
	ActionNotifyAdmins
)

func (k ActionKind) String() string {
	switch k {
	case ActionBroadcast:
		return "broadcast"
	case ActionNotifyAdmins:
		return "notify_admins"
	default:
		return "unknown"
	}
}

type Action struct {
	Kind ActionKind
	Text string
}

func Broadcast(text string) Action {
	return Action{Kind: ActionBroadcast, Text: text}
}

func NotifyAdmins(text string) Action {
	return Action{Kind: ActionNotifyAdmins, Text: text}
}

// Queue is a bounded FIFO ring buffer safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []Action
	head  int
	size  int
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{items: make([]Action, capacity)}
}

// Enqueue appends a to the tail. It never blocks; a full queue rejects
// the action with ErrQueueFull.
func (q *Queue) Enqueue(a Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == len(q.items) {
		return ErrQueueFull
	}
	q.items[(q.head+q.size)%len(q.items)] = a
	q.size++
	return nil
}

// TryDequeue removes the head of the queue, reporting false when empty.
func (q *Queue) TryDequeue() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return Action{}, false
	}
	a := q.items[q.head]
	q.items[q.head] = Action{}
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return a, true
}

// Drain removes and returns everything currently queued, oldest first.
func (q *Queue) Drain() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil
	}
	out := make([]Action, q.size)
	for i := range out {
		idx := (q.head + i) % len(q.items)
		out[i] = q.items[idx]
		q.items[idx] = Action{}
	}
	q.head = 0
	q.size = 0
	return out
}

// Clear discards all queued actions and returns how many were dropped.
func (q *Queue) Clear() int {
	return len(q.Drain())
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *Queue) Cap() int {
	return len(q.items)
}
