package queue

import (
	"sync"

	"github.com/reedan88/Isaias/internal/ports"
)

// MemQueue is an in-memory FIFO. A capacity of zero or less means unbounded.
type MemQueue[T any] struct {
	mu   sync.Mutex
	data []T
	cap  int
}

func NewMemQueue[T any](capacity int) *MemQueue[T] {
	initial := capacity
	if initial <= 0 {
		initial = 16
	}
	return &MemQueue[T]{
		data: make([]T, 0, initial),
		cap:  capacity,
	}
}

func (q *MemQueue[T]) Enqueue(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cap > 0 && len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, v)
	return true
}

// DequeueBatch removes up to max items from the head; max <= 0 drains the queue.
func (q *MemQueue[T]) DequeueBatch(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]T, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.WorkQueue[string] = (*MemQueue[string])(nil)
