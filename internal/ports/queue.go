package ports

// WorkQueue is a FIFO of pending work items.
type WorkQueue[T any] interface {
	Enqueue(v T) bool
	DequeueBatch(max int) []T
	Len() int
}
