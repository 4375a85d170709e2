package network

import (
	"github.com/finalitylabs/blocksync/model/chain"
)

// MessageProcessor receives inbound messages from the network. Process must
// not block for long, implementations are expected to queue the message and
// return.
type MessageProcessor interface {
	Process(originID chain.PeerID, message interface{}) error
}

// Conduit is the sending side of a registered engine.
type Conduit interface {
	// Unicast sends the message to a single peer.
	Unicast(event interface{}, targetID chain.PeerID) error

	// Multicast sends the message to num peers picked at random from the
	// given targets. An empty target list means any connected peer.
	Multicast(event interface{}, num uint, targetIDs ...chain.PeerID) error

	// Publish sends the message to all connected peers.
	Publish(event interface{}) error
}

// Network is the gossip layer used by the sync engine. Delivery is
// unreliable: messages may be dropped, reordered or duplicated.
type Network interface {
	// Register subscribes the processor to inbound sync messages and returns
	// the conduit for sending. Only one processor can be registered.
	Register(processor MessageProcessor) (Conduit, error)
}
