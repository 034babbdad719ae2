package session

// Queue is the ordered list of requests awaiting a response. The wire carries
// no request ids: the daemon answers in receipt order, so each incoming frame
// belongs to the oldest entry.
type Queue[T any] struct {
	items []T
}

func (q *Queue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// DequeueOldest removes and returns the head of the queue.
func (q *Queue[T]) DequeueOldest() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// DropNewest removes the tail of the queue.
func (q *Queue[T]) DropNewest() (T, bool) {
	var zero T
	n := len(q.items)
	if n == 0 {
		return zero, false
	}
	item := q.items[n-1]
	q.items[n-1] = zero
	q.items = q.items[:n-1]
	return item, true
}

// Drain empties the queue and returns its entries oldest first.
func (q *Queue[T]) Drain() []T {
	items := q.items
	q.items = nil
	return items
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}
