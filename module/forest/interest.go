package forest

import (
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
)

type InterestKind int

const (
	Uninterested InterestKind = iota
	// Required blocks should be requested.
	Required
	// HighestJustified is the highest justified block we know of, requesting
	// it takes priority over everything else.
	HighestJustified
)

func (k InterestKind) String() string {
	switch k {
	case Uninterested:
		return "uninterested"
	case Required:
		return "required"
	case HighestJustified:
		return "highest_justified"
	default:
		return fmt.Sprintf("unknown_interest(%d)", int(k))
	}
}

// Interest describes whether and how a block should be requested.
// KnowMost and BranchKnowledge are only set for interesting blocks.
type Interest struct {
	Kind            InterestKind
	KnowMost        []chain.PeerID
	BranchKnowledge messages.BranchKnowledge
}
