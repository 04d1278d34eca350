// internal/sched/deadlineQueue.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// queueKey orders ready tasks: earliest absolute deadline first, then the
// lower tiebreak, then the earlier insertion.
type queueKey struct {
	deadline Tick
	tiebreak int
	seq      uint64
}

func (k queueKey) less(o queueKey) bool {
	return compareQueueKeys(k, o) < 0
}

// compareQueueKeys implements the Comparator interface for red-black tree ordering.
func compareQueueKeys(a, b any) int {
	ka, kb := a.(queueKey), b.(queueKey)
	switch {
	case ka.deadline < kb.deadline:
		return -1
	case ka.deadline > kb.deadline:
		return 1
	case ka.tiebreak < kb.tiebreak:
		return -1
	case ka.tiebreak > kb.tiebreak:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// deadlineQueue holds the ready tasks. The red-black tree keeps every
// operation O(log n); keys indexes the tree by task id for Remove.
type deadlineQueue struct {
	tree *redblacktree.Tree
	keys map[TaskID]queueKey
}

func newDeadlineQueue() *deadlineQueue {
	return &deadlineQueue{
		tree: redblacktree.NewWith(compareQueueKeys),
		keys: make(map[TaskID]queueKey),
	}
}

// Insert adds id under key, replacing any entry id already has.
func (q *deadlineQueue) Insert(id TaskID, key queueKey) {
	if old, ok := q.keys[id]; ok {
		q.tree.Remove(old)
	}
	q.tree.Put(key, id)
	q.keys[id] = key
}

// PeekMin returns the earliest entry without removing it.
func (q *deadlineQueue) PeekMin() (TaskID, queueKey, bool) {
	node := q.tree.Left()
	if node == nil {
		return 0, queueKey{}, false
	}
	return node.Value.(TaskID), node.Key.(queueKey), true
}

// PopMin removes and returns the earliest entry.
func (q *deadlineQueue) PopMin() (TaskID, queueKey, bool) {
	id, key, ok := q.PeekMin()
	if !ok {
		return 0, queueKey{}, false
	}
	q.tree.Remove(key)
	delete(q.keys, id)
	return id, key, true
}

// Remove deletes id's entry and reports whether there was one.
func (q *deadlineQueue) Remove(id TaskID) bool {
	key, ok := q.keys[id]
	if !ok {
		return false
	}
	q.tree.Remove(key)
	delete(q.keys, id)
	return true
}

func (q *deadlineQueue) Contains(id TaskID) bool {
	_, ok := q.keys[id]
	return ok
}

func (q *deadlineQueue) Len() int { return q.tree.Size() }

// IDs lists the queued task ids in dispatch order.
func (q *deadlineQueue) IDs() []TaskID {
	ids := make([]TaskID, 0, q.tree.Size())
	it := q.tree.Iterator()
	for it.Next() {
		ids = append(ids, it.Value().(TaskID))
	}
	return ids
}
