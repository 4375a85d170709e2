package synchronization

import (
	"sync"

	"github.com/ef-ds/deque"

	"github.com/finalitylabs/blocksync/model/chain"
)

// message is a queued inbound message. Local events have an empty origin.
type message struct {
	originID chain.PeerID
	payload  interface{}
}

// FifoQueue is a bounded queue of messages processed in arrival order.
type FifoQueue struct {
	mu       sync.Mutex
	queue    deque.Deque
	capacity uint
}

// NewFifoQueue returns a queue holding at most capacity messages. Zero means
// unbounded, which is only used for trusted local events.
func NewFifoQueue(capacity uint) *FifoQueue {
	return &FifoQueue{capacity: capacity}
}

// Push appends the message. It returns false if the queue is full.
func (q *FifoQueue) Push(msg message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && uint(q.queue.Len()) >= q.capacity {
		return false
	}
	q.queue.PushBack(msg)
	return true
}

// Pop removes and returns the oldest message.
func (q *FifoQueue) Pop() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.queue.PopFront()
	if !ok {
		return message{}, false
	}
	return v.(message), true
}

func (q *FifoQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}
