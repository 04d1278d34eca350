// internal/sched/releaseQueue.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// releaseKey orders tasks by their next release tick, then by id.
type releaseKey struct {
	at Tick
	id TaskID
}

func compareReleaseKeys(a, b any) int {
	ka, kb := a.(releaseKey), b.(releaseKey)
	switch {
	case ka.at < kb.at:
		return -1
	case ka.at > kb.at:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}

// releaseQueue indexes every periodic task that is not suspended by its next
// release tick, so the release engine only looks at tasks that are due.
type releaseQueue struct {
	tree *redblacktree.Tree
	at   map[TaskID]Tick
}

func newReleaseQueue() *releaseQueue {
	return &releaseQueue{
		tree: redblacktree.NewWith(compareReleaseKeys),
		at:   make(map[TaskID]Tick),
	}
}

// Insert schedules id for release at tick at, replacing any earlier entry.
func (q *releaseQueue) Insert(id TaskID, at Tick) {
	if old, ok := q.at[id]; ok {
		q.tree.Remove(releaseKey{old, id})
	}
	q.tree.Put(releaseKey{at, id}, struct{}{})
	q.at[id] = at
}

// PeekMin returns the task with the earliest release.
func (q *releaseQueue) PeekMin() (TaskID, Tick, bool) {
	node := q.tree.Left()
	if node == nil {
		return 0, 0, false
	}
	key := node.Key.(releaseKey)
	return key.id, key.at, true
}

func (q *releaseQueue) Remove(id TaskID) bool {
	at, ok := q.at[id]
	if !ok {
		return false
	}
	q.tree.Remove(releaseKey{at, id})
	delete(q.at, id)
	return true
}

func (q *releaseQueue) Len() int { return q.tree.Size() }
