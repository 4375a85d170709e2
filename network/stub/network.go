package stub

import (
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/network"
	"github.com/finalitylabs/blocksync/utils/rand"
)

const defaultWorkers = 1

// Network is an in-memory network layer for tests and simulations. Every
// message is encoded with the codec on send and decoded on delivery, so
// receivers never share memory with the sender. Delivery to each node runs
// on its own worker pool.
type Network struct {
	log   zerolog.Logger
	hub   *Hub
	me    chain.PeerID
	codec network.Codec
	pool  *workerpool.WorkerPool

	mu        sync.RWMutex
	processor network.MessageProcessor
	stopped   bool
}

var _ network.Network = (*Network)(nil)

// NewNetwork creates a stub network for the given node and plugs it into the hub.
func NewNetwork(log zerolog.Logger, hub *Hub, me chain.PeerID, codec network.Codec) *Network {
	net := &Network{
		log:   log.With().Str("network", "stub").Str("peer", me.String()).Logger(),
		hub:   hub,
		me:    me,
		codec: codec,
		pool:  workerpool.New(defaultWorkers),
	}
	hub.Plug(net)
	return net
}

// ID returns the id of the node owning the network.
func (n *Network) ID() chain.PeerID {
	return n.me
}

// Register implements network.Network.
func (n *Network) Register(processor network.MessageProcessor) (network.Conduit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.processor != nil {
		return nil, network.ErrProcessorRegistered
	}
	n.processor = processor
	return &Conduit{net: n}, nil
}

// Stop unplugs the network from the hub and waits for pending deliveries.
func (n *Network) Stop() {
	n.hub.Unplug(n.me)
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.mu.Unlock()
	n.pool.StopWait()
}

// Peers returns the ids of all other nodes plugged into the hub.
func (n *Network) Peers() []chain.PeerID {
	return n.hub.peersExcept(n.me)
}

func (n *Network) unicast(event interface{}, targetID chain.PeerID) error {
	return n.send(event, targetID)
}

func (n *Network) multicast(event interface{}, num uint, targetIDs ...chain.PeerID) error {
	if len(targetIDs) == 0 {
		targetIDs = n.Peers()
	} else {
		targetIDs = append([]chain.PeerID(nil), targetIDs...)
	}
	if len(targetIDs) == 0 {
		return network.EmptyTargetList
	}
	if num > uint(len(targetIDs)) {
		num = uint(len(targetIDs))
	}
	err := rand.Samples(uint(len(targetIDs)), num, func(i, j uint) {
		targetIDs[i], targetIDs[j] = targetIDs[j], targetIDs[i]
	})
	if err != nil {
		return fmt.Errorf("could not sample targets: %w", err)
	}
	return n.send(event, targetIDs[:num]...)
}

func (n *Network) publish(event interface{}) error {
	peers := n.Peers()
	if len(peers) == 0 {
		return nil
	}
	return n.send(event, peers...)
}

func (n *Network) send(event interface{}, targetIDs ...chain.PeerID) error {
	data, err := n.codec.Encode(event)
	if err != nil {
		return fmt.Errorf("could not encode event: %w", err)
	}
	for _, targetID := range targetIDs {
		receiver := n.hub.GetNetwork(targetID)
		if receiver == nil {
			return network.NewUnknownPeerError(targetID)
		}
		if !n.hub.deliverable(n.me, targetID, event) {
			n.log.Trace().Str("target", targetID.String()).Msgf("dropping %T", event)
			continue
		}
		receiver.deliver(n.me, data)
	}
	return nil
}

// deliver queues the encoded message for processing by the registered
// processor. Messages arriving after Stop are dropped.
func (n *Network) deliver(originID chain.PeerID, data []byte) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		return
	}
	n.pool.Submit(func() {
		message, err := n.codec.Decode(data)
		if err != nil {
			n.log.Warn().Err(err).Str("origin", originID.String()).Msg("could not decode message")
			return
		}
		n.mu.RLock()
		processor := n.processor
		n.mu.RUnlock()
		if processor == nil {
			n.log.Debug().Str("origin", originID.String()).Msgf("no processor registered, dropping %T", message)
			return
		}
		err = processor.Process(originID, message)
		if err != nil {
			n.log.Warn().Err(err).Str("origin", originID.String()).Msgf("could not process %T", message)
		}
	})
}
