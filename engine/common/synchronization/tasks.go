package synchronization

import (
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module/forest"
)

// InterestProvider tells how a block should be requested.
type InterestProvider func(id chain.BlockID) forest.Interest

// PreRequest is a block request still missing our own state, which is only
// filled in right before sending.
type PreRequest struct {
	Target          chain.BlockID
	BranchKnowledge messages.BranchKnowledge
	// KnowMost are the peers to ask, empty means any peer.
	KnowMost []chain.PeerID
}

// WithState completes the request.
func (p PreRequest) WithState(state messages.State) (*messages.Request, []chain.PeerID) {
	return &messages.Request{
		Target:          p.Target,
		BranchKnowledge: p.BranchKnowledge,
		State:           state,
	}, p.KnowMost
}

// RequestTask keeps requesting a block for as long as we are interested in
// it. Even attempts go to the peers that know most about the block, odd
// attempts to any peer, so that a set of unresponsive peers cannot stall us.
type RequestTask struct {
	id      chain.BlockID
	tries   int
	backoff retry.Backoff
}

// NewRequestTask creates the task for the first attempt to request the block.
func NewRequestTask(id chain.BlockID, cfg *Config) RequestTask {
	backoff := retry.NewExponential(cfg.RequestDelay)
	backoff = retry.WithCappedDuration(cfg.RequestMaxDelay, backoff)
	if cfg.RequestJitter > 0 {
		backoff = retry.WithJitterPercent(cfg.RequestJitter, backoff)
	}
	return RequestTask{id: id, backoff: backoff}
}

func (t RequestTask) ID() chain.BlockID {
	return t.id
}

// Tries returns the number of requests sent so far.
func (t RequestTask) Tries() int {
	return t.tries
}

func (t RequestTask) String() string {
	return fmt.Sprintf("block request for %s, attempt %d", t.id, t.tries)
}

// Process decides whether to send another request for the block. If so, it
// returns the request, the task for the next attempt and the delay after
// which it is due. The last return value is false if we are no longer
// interested in the block.
func (t RequestTask) Process(interestOf InterestProvider) (PreRequest, RequestTask, time.Duration, bool) {
	interest := interestOf(t.id)
	if interest.Kind == forest.Uninterested {
		return PreRequest{}, RequestTask{}, 0, false
	}

	knowMost := interest.KnowMost
	if t.tries%2 == 1 {
		knowMost = nil
	}
	delay, _ := t.backoff.Next()

	request := PreRequest{
		Target:          t.id,
		BranchKnowledge: interest.BranchKnowledge,
		KnowMost:        knowMost,
	}
	next := RequestTask{
		id:      t.id,
		tries:   t.tries + 1,
		backoff: t.backoff,
	}
	return request, next, delay, true
}
