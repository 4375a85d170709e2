package synchronization

import (
	"sync"

	"github.com/finalitylabs/blocksync/model/chain"
)

// RequestQueue keeps only the latest message of every peer. A peer asking
// again before we got to its previous message replaces it, so a single peer
// cannot fill the queue.
type RequestQueue struct {
	lock     sync.Mutex
	limit    uint
	requests map[chain.PeerID]interface{}
}

func NewRequestQueue(limit uint) *RequestQueue {
	return &RequestQueue{
		limit:    limit,
		requests: make(map[chain.PeerID]interface{}),
	}
}

// Push stores the message of the peer. It returns false if the queue is full
// and the message was not stored.
func (q *RequestQueue) Push(originID chain.PeerID, req interface{}) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	_, replaces := q.requests[originID]
	if !replaces && uint(len(q.requests)) >= q.limit {
		return false
	}
	q.requests[originID] = req
	return true
}

// Pop removes and returns the message of some peer.
func (q *RequestQueue) Pop() (chain.PeerID, interface{}, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	var originID chain.PeerID
	var req interface{}

	if len(q.requests) == 0 {
		return originID, req, false
	}

	// pick first element using go map randomness property
	for originID, req = range q.requests {
		break
	}
	delete(q.requests, originID)

	return originID, req, true
}

func (q *RequestQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.requests)
}
