package unittest

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	bstorage "github.com/finalitylabs/blocksync/storage/badger"
)

// ChainStateFixture bootstraps the database with the genesis block and
// returns the chain state on top of it.
func ChainStateFixture(t testing.TB, db *badger.DB, genesis chain.Block) *bstorage.ChainState {
	require.NoError(t, bstorage.Bootstrap(db, genesis))
	state, err := bstorage.NewChainState(Logger(), db)
	require.NoError(t, err)
	return state
}

// ImportAll imports the blocks and drains the resulting events.
func ImportAll(t testing.TB, state *bstorage.ChainState, blocks []chain.Block) {
	for _, block := range blocks {
		state.ImportBlock(block)
		event, ok := state.Pop()
		require.True(t, ok, "block %s was not imported", block.ID())
		require.Equal(t, block.ID(), event.Header.ID())
	}
}
