package chain

// PeerID identifies a node in the gossip network.
type PeerID string

func (p PeerID) String() string {
	return string(p)
}
