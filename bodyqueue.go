package s3transfer

import "container/heap"

// bodyChunk is one piece of body data ready for delivery to the user, kept
// ordered by part number so a meta-request can guarantee monotone
// in-order delivery even though parts complete out of order.
type bodyChunk struct {
	partNum int
	data    []byte
}

// bodyQueue is a small binary min-heap keyed by part number. push does
// not cap its size: chunks that complete ahead of an earlier, still
// pending part stay queued until that part is delivered.
type bodyQueue struct {
	items bodyQueueHeap
}

func newBodyQueue() *bodyQueue {
	return &bodyQueue{}
}

func (q *bodyQueue) push(c bodyChunk) {
	heap.Push(&q.items, c)
}

// drainInOrder pops and returns every queued chunk whose part number is
// exactly the next expected one, starting from nextPartNum, advancing
// nextPartNum past each chunk returned.
func (q *bodyQueue) drainInOrder(nextPartNum *int) []bodyChunk {
	var out []bodyChunk
	for q.items.Len() > 0 && q.items[0].partNum == *nextPartNum {
		c := heap.Pop(&q.items).(bodyChunk)
		out = append(out, c)
		*nextPartNum++
	}
	return out
}

func (q *bodyQueue) len() int {
	return q.items.Len()
}

type bodyQueueHeap []bodyChunk

func (h bodyQueueHeap) Len() int            { return len(h) }
func (h bodyQueueHeap) Less(i, j int) bool  { return h[i].partNum < h[j].partNum }
func (h bodyQueueHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *bodyQueueHeap) Push(x interface{}) { *h = append(*h, x.(bodyChunk)) }
func (h *bodyQueueHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
