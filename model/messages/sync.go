package messages

import (
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
)

// State is the summary of the sync state of a node, as broadcast to peers.
type State struct {
	TopJustification chain.UnverifiedJustification
}

// BranchKnowledge describes what the requester already knows about the
// branch leading to the requested block.
type BranchKnowledge struct {
	Kind BranchKnowledgeKind
	ID   chain.BlockID
}

type BranchKnowledgeKind uint8

const (
	// LowestID means the requester knows the header of every block between
	// ID and the target, but not the header of ID itself.
	LowestID BranchKnowledgeKind = iota + 1
	// TopImported means the requester has imported ID, which is an ancestor
	// of the target.
	TopImported
)

func (k BranchKnowledgeKind) String() string {
	switch k {
	case LowestID:
		return "lowest_id"
	case TopImported:
		return "top_imported"
	default:
		return fmt.Sprintf("unknown_branch_knowledge(%d)", uint8(k))
	}
}

// NewLowestID returns LowestID branch knowledge.
func NewLowestID(id chain.BlockID) BranchKnowledge {
	return BranchKnowledge{Kind: LowestID, ID: id}
}

// NewTopImported returns TopImported branch knowledge.
func NewTopImported(id chain.BlockID) BranchKnowledge {
	return BranchKnowledge{Kind: TopImported, ID: id}
}

func (b BranchKnowledge) String() string {
	return fmt.Sprintf("%s(%s)", b.Kind, b.ID)
}

// StateBroadcast is the periodic announcement of our state.
type StateBroadcast struct {
	State State
}

// StateBroadcastResponse answers a state broadcast of a node that is behind
// with at most two justifications.
type StateBroadcastResponse struct {
	Justification chain.UnverifiedJustification
	Other         *chain.UnverifiedJustification
}

// Request asks for the block with the given id together with whatever is
// needed to import it.
type Request struct {
	Target          chain.BlockID
	BranchKnowledge BranchKnowledge
	State           State
}

// RequestResponse is the ordered answer to a request, ancestors first.
type RequestResponse struct {
	Items []ResponseItem
}

// ChainExtensionRequest asks a peer that is ahead of us for blocks on top of
// our state.
type ChainExtensionRequest struct {
	State State
}

// ResponseItem is one element of a response. Exactly one field is set.
type ResponseItem struct {
	Justification *chain.UnverifiedJustification `cbor:",omitempty"`
	Header        *chain.Header                  `cbor:",omitempty"`
	Block         *chain.Block                   `cbor:",omitempty"`
}

// JustificationItem wraps a justification into a response item.
func JustificationItem(j chain.UnverifiedJustification) ResponseItem {
	return ResponseItem{Justification: &j}
}

// HeaderItem wraps a header into a response item.
func HeaderItem(h chain.Header) ResponseItem {
	return ResponseItem{Header: &h}
}

// BlockItem wraps a block into a response item.
func BlockItem(b chain.Block) ResponseItem {
	return ResponseItem{Block: &b}
}

func (i ResponseItem) String() string {
	switch {
	case i.Justification != nil:
		return fmt.Sprintf("justification %s", i.Justification.ID())
	case i.Header != nil:
		return fmt.Sprintf("header %s", i.Header.ID())
	case i.Block != nil:
		return fmt.Sprintf("block %s", i.Block.ID())
	default:
		return "empty item"
	}
}
