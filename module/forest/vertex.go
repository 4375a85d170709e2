package forest

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/finalitylabs/blocksync/model/chain"
)

// vertex is the knowledge we have about a single block. Knowledge only ever
// grows: once the parent, the body or a justification is known it stays known,
// and a required vertex never stops being required.
type vertex struct {
	parent             *chain.BlockID
	imported           bool
	justification      *chain.Justification
	explicitlyRequired bool
	required           bool
	knowMost           map[chain.PeerID]struct{}
}

type vertexWithChildren struct {
	vertex
	children map[chain.BlockID]struct{}
}

func newVertex() *vertexWithChildren {
	return &vertexWithChildren{
		vertex: vertex{
			knowMost: make(map[chain.PeerID]struct{}),
		},
		children: make(map[chain.BlockID]struct{}),
	}
}

func (v *vertex) addHolder(holder *chain.PeerID) {
	if holder != nil {
		v.knowMost[*holder] = struct{}{}
	}
}

func (v *vertex) holders() []chain.PeerID {
	peers := maps.Keys(v.knowMost)
	slices.Sort(peers)
	return peers
}

// headerKnown is true once the parent link is set.
func (v *vertex) headerKnown() bool {
	return v.parent != nil
}

// importable is true for required vertices with a known header that still
// need their body.
func (v *vertex) importable() bool {
	return v.headerKnown() && v.required && !v.imported
}

// justifiedBlock is true for vertices that could be finalized.
func (v *vertex) justifiedBlock() bool {
	return v.imported && v.justification != nil
}
