package network

import (
	"errors"
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
)

var (
	EmptyTargetList = errors.New("target list empty")

	// ErrProcessorRegistered is returned when registering a second processor.
	ErrProcessorRegistered = errors.New("message processor already registered")
)

// UnknownPeerError indicates that a message was addressed to a peer the
// network is not connected to.
type UnknownPeerError struct {
	peer chain.PeerID
}

func (e UnknownPeerError) Error() string {
	return fmt.Sprintf("unknown peer %s", e.peer)
}

// NewUnknownPeerError returns a new UnknownPeerError.
func NewUnknownPeerError(peer chain.PeerID) UnknownPeerError {
	return UnknownPeerError{peer: peer}
}

// IsUnknownPeerError returns whether an error is UnknownPeerError
func IsUnknownPeerError(err error) bool {
	var e UnknownPeerError
	return errors.As(err, &e)
}
