package queue

import "testing"

type node struct {
	path  string
	depth int
}

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue[node](4)

	if !q.Enqueue(node{path: "CP01CNSM"}) || !q.Enqueue(node{path: "CP03ISSM"}) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].path != "CP01CNSM" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].path != "CP03ISSM" {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if got := q.DequeueBatch(1); got != nil {
		t.Fatalf("expected nil from empty queue, got %+v", got)
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue[int](2)

	if !q.Enqueue(1) || !q.Enqueue(2) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueUnboundedDrain(t *testing.T) {
	q := NewMemQueue[string](0)
	for i := 0; i < 100; i++ {
		if !q.Enqueue("x") {
			t.Fatalf("unbounded queue rejected item %d", i)
		}
	}
	if got := len(q.DequeueBatch(0)); got != 100 {
		t.Fatalf("expected drain of 100, got %d", got)
	}
}
