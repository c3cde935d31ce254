// Package queue holds the pending bulb commands shared between the
// controller (producer) and the gateway executor (consumer).
package queue

import (
	"sync"
	"time"

	"lightfun-controller/internal/core"
)

// AffinityWindow is the max time difference, in milliseconds, for which two
// commands of the same kind are considered the same intent.
const AffinityWindow = 200

var epoch = time.Now()

// Timestamp returns monotonic milliseconds since process start.
func Timestamp() int64 {
	return time.Since(epoch).Milliseconds()
}

// CommandQueue is a coalescing mailbox. Methods other than FetchNext must be
// called between Lock and Unlock so a caller can apply several mutations as
// one atomic step.
type CommandQueue struct {
	mu    sync.Mutex
	items []*core.Command
}

// New returns an empty queue.
func New() *CommandQueue {
	return &CommandQueue{}
}

func (q *CommandQueue) Lock()   { q.mu.Lock() }
func (q *CommandQueue) Unlock() { q.mu.Unlock() }

// Push appends cmd unconditionally.
func (q *CommandQueue) Push(cmd *core.Command) {
	q.items = append(q.items, cmd)
}

// FindRelevant returns the pending command of kind closest in time to ts,
// if it lies within AffinityWindow.
func (q *CommandQueue) FindRelevant(kind core.Kind, ts int64) *core.Command {
	var rel *core.Command
	for _, cmd := range q.items {
		if cmd.Kind != kind {
			continue
		}
		d := absDiff(cmd.Time, ts)
		if d < AffinityWindow && (rel == nil || d < absDiff(rel.Time, ts)) {
			rel = cmd
		}
	}
	return rel
}

// FindSingle returns the pending command of a singleton kind, or nil.
func (q *CommandQueue) FindSingle(kind core.Kind) *core.Command {
	for _, cmd := range q.items {
		if cmd.Kind == kind {
			return cmd
		}
	}
	return nil
}

// RemoveAllOfKind drops every pending command of kind.
func (q *CommandQueue) RemoveAllOfKind(kind core.Kind) {
	kept := q.items[:0]
	for _, cmd := range q.items {
		if cmd.Kind != kind {
			kept = append(kept, cmd)
		}
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
}

// Clear empties the queue.
func (q *CommandQueue) Clear() {
	q.items = nil
}

// Len returns the number of pending commands.
func (q *CommandQueue) Len() int {
	return len(q.items)
}

// FetchNext removes and returns the command with the smallest timestamp.
// Merged commands keep their old slot with a newer time, so insertion order
// is not dispatch order. Ties go to the earliest slot.
func (q *CommandQueue) FetchNext() *core.Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	k := -1
	for i, cmd := range q.items {
		if k == -1 || cmd.Time < q.items[k].Time {
			k = i
		}
	}
	if k == -1 {
		return nil
	}
	sel := q.items[k]
	copy(q.items[k:], q.items[k+1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
	return sel
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
