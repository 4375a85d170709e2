package synchronization

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/finalitylabs/blocksync/model/chain"
)

// PeerRateLimiter paces the requests of every peer with a token bucket.
// Only the most recently active peers are remembered, a forgotten peer starts
// again with a full bucket.
type PeerRateLimiter struct {
	lock     sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[chain.PeerID, *rate.Limiter]
}

func NewPeerRateLimiter(limit rate.Limit, burst int, peers int) (*PeerRateLimiter, error) {
	limiters, err := lru.New[chain.PeerID, *rate.Limiter](peers)
	if err != nil {
		return nil, fmt.Errorf("could not create limiter cache: %w", err)
	}
	return &PeerRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: limiters,
	}, nil
}

// Allow takes a token from the bucket of the peer and reports whether there
// was one.
func (l *PeerRateLimiter) Allow(peerID chain.PeerID) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	limiter, ok := l.limiters.Get(peerID)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(peerID, limiter)
	}
	return limiter.Allow()
}
