package module

import (
	"github.com/finalitylabs/blocksync/model/chain"
)

// SyncMetrics tracks the block synchronization.
type SyncMetrics interface {
	// MessageReceived counts an inbound sync message of the given type.
	MessageReceived(msgType string)

	// MessageSent counts an outbound sync message of the given type.
	MessageSent(msgType string)

	// MessageDropped counts an inbound message that failed processing.
	MessageDropped(msgType string, reason string)

	// FinalizedHeight reports the number of the top finalized block.
	FinalizedHeight(number chain.BlockNumber)

	// HighestJustified reports the number of the highest known justification.
	HighestJustified(number chain.BlockNumber)

	// ForestSize reports the number of vertices tracked by the forest.
	ForestSize(size int)

	// RequestSent counts a block request sent, with the attempt number.
	RequestSent(attempt int)

	// EquivocationDetected counts a detected equivocation.
	EquivocationDetected()
}
