package stub

import (
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/network"
)

type Conduit struct {
	net *Network
}

var _ network.Conduit = (*Conduit)(nil)

func (c *Conduit) Unicast(event interface{}, targetID chain.PeerID) error {
	return c.net.unicast(event, targetID)
}

func (c *Conduit) Multicast(event interface{}, num uint, targetIDs ...chain.PeerID) error {
	return c.net.multicast(event, num, targetIDs...)
}

func (c *Conduit) Publish(event interface{}) error {
	return c.net.publish(event)
}
