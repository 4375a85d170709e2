package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/storage"
	bstorage "github.com/finalitylabs/blocksync/storage/badger"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestBootstrap(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		_, err := bstorage.NewChainState(unittest.Logger(), db)
		require.Error(t, err)

		genesis := unittest.GenesisFixture()
		state := unittest.ChainStateFixture(t, db, genesis)

		top, err := state.TopFinalized()
		require.NoError(t, err)
		assert.Equal(t, genesis.ID(), top.ID())

		best, err := state.BestBlock()
		require.NoError(t, err)
		assert.Equal(t, genesis.ID(), best.ID())

		status, err := state.FinalizedAt(0)
		require.NoError(t, err)
		assert.Equal(t, module.FinalizedWithJustification, status.Kind)

		// bootstrapping twice fails
		require.ErrorIs(t, bstorage.Bootstrap(db, genesis), storage.ErrAlreadyExists)
	})
}

func TestImportBlock(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		genesis := unittest.GenesisFixture()
		state := unittest.ChainStateFixture(t, db, genesis)
		blocks := unittest.ChainFixture(genesis.Header, 3)

		t.Run("unknown parent is dropped", func(t *testing.T) {
			state.ImportBlock(blocks[1])
			_, ok := state.Pop()
			assert.False(t, ok)

			status, err := state.StatusOf(blocks[1].ID())
			require.NoError(t, err)
			assert.Equal(t, module.BlockStatusUnknown, status.Kind)
		})

		t.Run("invalid payload is dropped", func(t *testing.T) {
			block := blocks[0]
			block.Payload = []byte("tampered")
			state.ImportBlock(block)
			_, ok := state.Pop()
			assert.False(t, ok)
		})

		t.Run("blocks are imported in order", func(t *testing.T) {
			unittest.ImportAll(t, state, blocks)
			select {
			case <-state.Notifier():
			default:
				t.Fatal("notifier did not fire")
			}

			status, err := state.StatusOf(blocks[2].ID())
			require.NoError(t, err)
			assert.Equal(t, module.BlockStatusPresent, status.Kind)
			assert.Equal(t, blocks[2].Header, status.Header)

			block, err := state.Block(blocks[1].ID())
			require.NoError(t, err)
			assert.Equal(t, blocks[1].Payload, block.Payload)

			children, err := state.Children(genesis.ID())
			require.NoError(t, err)
			assert.Equal(t, []chain.Header{blocks[0].Header}, children)

			best, err := state.BestBlock()
			require.NoError(t, err)
			assert.Equal(t, blocks[2].ID(), best.ID())
		})

		t.Run("duplicate import emits no event", func(t *testing.T) {
			state.ImportBlock(blocks[0])
			_, ok := state.Pop()
			assert.False(t, ok)
		})

		t.Run("missing block", func(t *testing.T) {
			_, err := state.Block(unittest.BlockIDFixture(5))
			require.ErrorIs(t, err, storage.ErrNotFound)
		})
	})
}

func TestFinalize(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		genesis := unittest.GenesisFixture()
		state := unittest.ChainStateFixture(t, db, genesis)
		blocks := unittest.ChainFixture(genesis.Header, 5)
		fork := unittest.ChainFixture(genesis.Header, 2)
		unittest.ImportAll(t, state, blocks)
		unittest.ImportAll(t, state, fork)

		justification := unittest.JustificationFixture(blocks[3].Header)
		require.NoError(t, state.Finalize(justification))

		event, ok := state.Pop()
		require.True(t, ok)
		assert.Equal(t, module.BlockFinalized, event.Kind)
		assert.Equal(t, blocks[3].ID(), event.Header.ID())

		top, err := state.TopFinalized()
		require.NoError(t, err)
		assert.Equal(t, blocks[3].ID(), top.ID())

		for i := 0; i < 3; i++ {
			status, err := state.FinalizedAt(blocks[i].Header.Number)
			require.NoError(t, err)
			assert.Equal(t, module.FinalizedByDescendant, status.Kind)
			assert.Equal(t, blocks[i].ID(), status.Header.ID())
		}
		status, err := state.FinalizedAt(blocks[3].Header.Number)
		require.NoError(t, err)
		assert.Equal(t, module.FinalizedWithJustification, status.Kind)

		status, err = state.FinalizedAt(blocks[4].Header.Number)
		require.NoError(t, err)
		assert.Equal(t, module.NotFinalized, status.Kind)

		blockStatus, err := state.StatusOf(blocks[3].ID())
		require.NoError(t, err)
		assert.Equal(t, module.BlockStatusJustified, blockStatus.Kind)

		t.Run("finalizing again is a no-op", func(t *testing.T) {
			require.NoError(t, state.Finalize(justification))
			require.NoError(t, state.Finalize(unittest.JustificationFixture(blocks[1].Header)))
			_, ok := state.Pop()
			assert.False(t, ok)
		})

		t.Run("conflicting blocks are rejected", func(t *testing.T) {
			err := state.Finalize(unittest.JustificationFixture(fork[1].Header))
			require.ErrorIs(t, err, bstorage.ErrNotDescendant)
		})

		t.Run("blocks at finalized heights are not imported", func(t *testing.T) {
			state.ImportBlock(unittest.BlockWithParentFixture(blocks[1].Header))
			_, ok := state.Pop()
			assert.False(t, ok)
		})
	})
}
