package sched

import (
	"slices"
	"testing"
)

func TestDeadlineQueue_Order(t *testing.T) {
	q := newDeadlineQueue()
	q.Insert(1, queueKey{deadline: 30, seq: 1})
	q.Insert(2, queueKey{deadline: 10, seq: 2})
	q.Insert(3, queueKey{deadline: 10, tiebreak: -1, seq: 3})
	q.Insert(4, queueKey{deadline: 10, seq: 4})
	q.Insert(5, queueKey{deadline: 20, seq: 5})

	if got, want := q.IDs(), []TaskID{3, 2, 4, 5, 1}; !slices.Equal(got, want) {
		t.Fatalf("IDs = %v, want %v", got, want)
	}
	id, key, ok := q.PeekMin()
	if !ok || id != 3 || key.deadline != 10 {
		t.Errorf("PeekMin = %d %+v %v", id, key, ok)
	}
	if q.Len() != 5 {
		t.Errorf("Len = %d after PeekMin", q.Len())
	}

	var popped []TaskID
	for {
		id, _, ok := q.PopMin()
		if !ok {
			break
		}
		popped = append(popped, id)
	}
	if want := []TaskID{3, 2, 4, 5, 1}; !slices.Equal(popped, want) {
		t.Errorf("pop order = %v, want %v", popped, want)
	}
	if _, _, ok := q.PeekMin(); ok {
		t.Error("PeekMin on empty queue")
	}
}

func TestDeadlineQueue_InsertReplaces(t *testing.T) {
	q := newDeadlineQueue()
	q.Insert(1, queueKey{deadline: 10, seq: 1})
	q.Insert(2, queueKey{deadline: 20, seq: 2})
	q.Insert(1, queueKey{deadline: 30, seq: 3})

	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	if got, want := q.IDs(), []TaskID{2, 1}; !slices.Equal(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestDeadlineQueue_Remove(t *testing.T) {
	q := newDeadlineQueue()
	q.Insert(1, queueKey{deadline: 10, seq: 1})
	q.Insert(2, queueKey{deadline: 20, seq: 2})

	if !q.Remove(1) {
		t.Fatal("Remove(1) = false")
	}
	if q.Remove(1) {
		t.Error("second Remove(1) = true")
	}
	if q.Contains(1) || !q.Contains(2) {
		t.Errorf("Contains: 1=%v 2=%v", q.Contains(1), q.Contains(2))
	}
	if id, _, _ := q.PeekMin(); id != 2 {
		t.Errorf("PeekMin = %d, want 2", id)
	}
}

func TestReleaseQueue(t *testing.T) {
	q := newReleaseQueue()
	q.Insert(2, 10)
	q.Insert(1, 10)
	q.Insert(3, 5)

	id, at, ok := q.PeekMin()
	if !ok || id != 3 || at != 5 {
		t.Fatalf("PeekMin = %d %d %v", id, at, ok)
	}
	q.Insert(3, 15)
	if id, _, _ := q.PeekMin(); id != 1 {
		t.Errorf("PeekMin = %d, want 1 (lower id on equal release)", id)
	}
	q.Remove(1)
	q.Remove(2)
	if id, at, _ := q.PeekMin(); id != 3 || at != 15 || q.Len() != 1 {
		t.Errorf("PeekMin = %d %d, Len = %d", id, at, q.Len())
	}
}
