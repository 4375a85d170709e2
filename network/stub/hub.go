package stub

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/finalitylabs/blocksync/model/chain"
)

// DeliveryFilter decides whether a message travelling from one node to
// another is delivered. Returning false drops the message.
type DeliveryFilter func(from chain.PeerID, to chain.PeerID, event interface{}) bool

// Hub connects stub networks so that they can deliver messages to each other
// in memory.
type Hub struct {
	mu       sync.RWMutex
	networks map[chain.PeerID]*Network
	filter   DeliveryFilter
}

// NewNetworkHub returns a hub without any networks.
func NewNetworkHub() *Hub {
	return &Hub{
		networks: make(map[chain.PeerID]*Network),
	}
}

// GetNetwork returns the network of the given node, or nil.
func (hub *Hub) GetNetwork(id chain.PeerID) *Network {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.networks[id]
}

// Plug stores the network in the hub, so other networks can find it.
func (hub *Hub) Plug(net *Network) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.networks[net.ID()] = net
}

// Unplug removes the network of the given node. Messages sent to it
// afterwards fail with an unknown peer error.
func (hub *Hub) Unplug(id chain.PeerID) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.networks, id)
}

// SetFilter installs a delivery filter for all networks of the hub. A nil
// filter delivers everything.
func (hub *Hub) SetFilter(filter DeliveryFilter) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.filter = filter
}

// peersExcept returns the ids of all plugged networks other than the given
// one, sorted.
func (hub *Hub) peersExcept(me chain.PeerID) []chain.PeerID {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	peers := make([]chain.PeerID, 0, len(hub.networks))
	for id := range hub.networks {
		if id != me {
			peers = append(peers, id)
		}
	}
	slices.Sort(peers)
	return peers
}

func (hub *Hub) deliverable(from chain.PeerID, to chain.PeerID, event interface{}) bool {
	hub.mu.RLock()
	filter := hub.filter
	hub.mu.RUnlock()
	return filter == nil || filter(from, to, event)
}
