package module

import (
	"github.com/finalitylabs/blocksync/model/chain"
)

// BlockStatusKind describes how much we know about a block in storage.
type BlockStatusKind int

const (
	BlockStatusUnknown BlockStatusKind = iota
	// BlockStatusPresent means the block is imported, but we hold no justification for it.
	BlockStatusPresent
	// BlockStatusJustified means the block is imported and finalized with a justification.
	BlockStatusJustified
)

// BlockStatus is the storage status of a block. Header is set for present
// blocks, Justification for justified ones.
type BlockStatus struct {
	Kind          BlockStatusKind
	Header        chain.Header
	Justification chain.Justification
}

// FinalizationStatusKind describes whether a block number is finalized.
type FinalizationStatusKind int

const (
	NotFinalized FinalizationStatusKind = iota
	// FinalizedWithJustification means the finalized block at the height has its own justification.
	FinalizedWithJustification
	// FinalizedByDescendant means the block was finalized because a descendant was.
	FinalizedByDescendant
)

// FinalizationStatus is the status of a height. Justification is set when
// the block at the height is justified, Header when it is finalized by a descendant.
type FinalizationStatus struct {
	Kind          FinalizationStatusKind
	Justification chain.Justification
	Header        chain.Header
}

// ChainStatus provides read access to the persistent chain.
// All errors are storage failures and are fatal for the caller's operation.
type ChainStatus interface {
	// TopFinalized returns the justification of the highest finalized block.
	TopFinalized() (chain.Justification, error)

	// FinalizedAt returns the finalization status of the given height.
	FinalizedAt(number chain.BlockNumber) (FinalizationStatus, error)

	// StatusOf returns the storage status of the given block.
	StatusOf(id chain.BlockID) (BlockStatus, error)

	// Block returns the full block, or storage.ErrNotFound.
	Block(id chain.BlockID) (*chain.Block, error)

	// Children returns the headers of all imported children of the block.
	Children(id chain.BlockID) ([]chain.Header, error)

	// BestBlock returns the header of the highest imported block.
	BestBlock() (chain.Header, error)
}

// Finalizer applies finalization to persistent storage.
type Finalizer interface {
	// Finalize finalizes the justified block together with all its
	// non-finalized ancestors. Any error is fatal.
	Finalize(justification chain.Justification) error
}

// BlockImporter imports blocks into persistent storage. Importing is
// one-way: success is reported asynchronously through ChainEvents.
type BlockImporter interface {
	ImportBlock(block chain.Block)
}

// ChainEventKind is the kind of a chain event.
type ChainEventKind int

const (
	BlockImported ChainEventKind = iota + 1
	BlockFinalized
)

func (k ChainEventKind) String() string {
	switch k {
	case BlockImported:
		return "block_imported"
	case BlockFinalized:
		return "block_finalized"
	default:
		return "unknown"
	}
}

// ChainEvent notifies about a change in the persistent chain.
type ChainEvent struct {
	Kind   ChainEventKind
	Header chain.Header
}

// ChainEvents is a source of chain events. Whenever events are available the
// notifier fires, and Pop returns them one by one.
type ChainEvents interface {
	Notifier() <-chan struct{}
	Pop() (ChainEvent, bool)
}

// Verifier checks untrusted data. All errors are about the data being
// invalid and are recoverable.
type Verifier interface {
	// VerifyJustification checks the committee signatures of the justification.
	VerifyJustification(justification chain.UnverifiedJustification) (chain.Justification, error)

	// VerifyHeader checks the author seal of the header. If the header
	// conflicts with an earlier one by the same author for the same slot an
	// equivocation proof is returned alongside a nil error.
	VerifyHeader(header chain.Header) (*EquivocationProof, error)
}

// EquivocationProof holds two headers sealed by the same author for the same slot.
type EquivocationProof struct {
	Author chain.AuthorityIndex
	Slot   uint64
	First  chain.Header
	Second chain.Header
	// Own is set when the author is our own authority key.
	Own bool
}
