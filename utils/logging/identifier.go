package logging

import (
	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
)

// ID returns the hash bytes of the block id, for use with zerolog's Hex.
func ID(id chain.BlockID) []byte {
	return id.Hash[:]
}

// IDs returns the string form of the given block ids.
func IDs(ids []chain.BlockID) []string {
	ss := make([]string, 0, len(ids))
	for _, id := range ids {
		ss = append(ss, id.String())
	}
	return ss
}

// Block adds the hash and number of the block id to the log event.
func Block(event *zerolog.Event, id chain.BlockID) *zerolog.Event {
	return event.Hex("block_id", ID(id)).Uint32("block_number", uint32(id.Number))
}

// Peers returns the string form of the given peers.
func Peers(peers []chain.PeerID) []string {
	ss := make([]string, 0, len(peers))
	for _, p := range peers {
		ss = append(ss, string(p))
	}
	return ss
}
