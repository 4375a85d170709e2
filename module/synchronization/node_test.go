package synchronization_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/module/synchronization"
	"github.com/finalitylabs/blocksync/module/verification"
	bstorage "github.com/finalitylabs/blocksync/storage/badger"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

const (
	testSessionPeriod = 20
	testMaxDepth      = 40
)

func testConfig() synchronization.Config {
	return synchronization.Config{
		SessionPeriod: testSessionPeriod,
		MaxDepth:      testMaxDepth,
	}
}

// testNode is a handler on top of a badger chain state, driven synchronously
// by the test.
type testNode struct {
	t         *testing.T
	peer      chain.PeerID
	committee *unittest.Committee
	db        *badger.DB
	state     *bstorage.ChainState
	handler   *synchronization.Handler
}

func newTestNode(t *testing.T, committee *unittest.Committee, peer chain.PeerID, opts ...verification.Option) *testNode {
	db := unittest.InMemoryBadgerDB(t)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	state := unittest.ChainStateFixture(t, db, committee.Genesis)
	handler, err := synchronization.NewHandler(
		unittest.Logger(),
		state,
		committee.Verifier(t, opts...),
		state,
		state,
		metrics.NewNoopCollector(),
		testConfig(),
	)
	require.NoError(t, err)
	return &testNode{
		t:         t,
		peer:      peer,
		committee: committee,
		db:        db,
		state:     state,
		handler:   handler,
	}
}

// processEvents feeds all pending chain events to the handler.
func (n *testNode) processEvents() {
	for {
		event, ok := n.state.Pop()
		if !ok {
			return
		}
		if event.Kind == module.BlockImported {
			require.NoError(n.t, n.handler.BlockImported(event.Header))
		}
	}
}

func (n *testNode) importBlocks(blocks []chain.Block) {
	for _, block := range blocks {
		n.state.ImportBlock(block)
	}
	n.processEvents()
}

func (n *testNode) best() chain.Header {
	best, err := n.state.BestBlock()
	require.NoError(n.t, err)
	return best
}

func (n *testNode) top() chain.BlockID {
	top, err := n.state.TopFinalized()
	require.NoError(n.t, err)
	return top.ID()
}

func (n *testNode) finalizedJustification(number chain.BlockNumber) chain.UnverifiedJustification {
	status, err := n.state.FinalizedAt(number)
	require.NoError(n.t, err)
	require.Equal(n.t, module.FinalizedWithJustification, status.Kind)
	return status.Justification.IntoUnverified()
}

// grow extends the best block of the node up to the given number, imports
// the new blocks and justifies the last one.
func (n *testNode) grow(number chain.BlockNumber) []chain.Block {
	best := n.best()
	blocks := n.committee.Extend(best, int(number-best.Number))
	n.importBlocks(blocks)
	last := blocks[len(blocks)-1]
	_, err := n.handler.HandleJustificationFromUser(n.committee.Justify(last.Header))
	require.NoError(n.t, err)
	n.processEvents()
	return blocks
}

// growSessions finalizes the given number of full sessions.
func (n *testNode) growSessions(sessions int) []chain.Block {
	info := chain.NewSessionBoundaryInfo(testSessionPeriod)
	var blocks []chain.Block
	for i := 0; i < sessions; i++ {
		best := n.best()
		last := info.LastBlockOfSession(info.SessionID(best.Number + 1))
		blocks = append(blocks, n.grow(last)...)
		require.Equal(n.t, last, n.top().Number)
	}
	return blocks
}
