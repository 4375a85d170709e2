package forest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	mockmodule "github.com/finalitylabs/blocksync/module/mock"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestForest(t *testing.T) {
	suite.Run(t, new(ForestSuite))
}

type ForestSuite struct {
	suite.Suite

	genesis chain.Block
	peer    chain.PeerID
	forest  *Forest
}

func (s *ForestSuite) SetupTest() {
	s.genesis = unittest.GenesisFixture()
	s.peer = unittest.PeerIDFixture(1)
	s.forest = newForest(s.genesis.ID(), DefaultMaxDepth)
}

func (s *ForestSuite) requireInterest(expected InterestKind, id chain.BlockID) Interest {
	interest := s.forest.RequestInterest(id)
	s.Require().Equal(expected, interest.Kind, "unexpected interest in %s", id)
	return interest
}

// a bare id we were asked for is requested on its own
func (s *ForestSuite) TestRequiredBareID() {
	id := unittest.BlockIDFixture(1)

	required, err := s.forest.UpdateBlockIdentifier(id, &s.peer, true)
	s.Require().NoError(err)
	s.Require().True(required)

	interest := s.requireInterest(Required, id)
	s.Require().Equal(messages.NewLowestID(id), interest.BranchKnowledge)
	s.Require().Equal([]chain.PeerID{s.peer}, interest.KnowMost)

	required, err = s.forest.UpdateBlockIdentifier(id, nil, true)
	s.Require().NoError(err)
	s.Require().False(required, "second requirement carries no new information")
}

func (s *ForestSuite) TestUninterestedInUnrequiredBlocks() {
	blocks := unittest.ChainFixture(s.genesis.Header, 2)
	for _, block := range blocks {
		required, err := s.forest.UpdateHeader(block.Header, &s.peer, false)
		s.Require().NoError(err)
		s.Require().False(required)
	}
	for _, block := range blocks {
		s.requireInterest(Uninterested, block.ID())
		s.Require().False(s.forest.Importable(block.ID()))
	}
}

// headers of blocks 2 to 4 are known, only block 4 is wanted and block 1 is a bare id
func (s *ForestSuite) TestDanglingBranch() {
	blocks := unittest.ChainFixture(s.genesis.Header, 4)

	for _, block := range blocks[1:3] {
		_, err := s.forest.UpdateHeader(block.Header, &s.peer, false)
		s.Require().NoError(err)
	}
	required, err := s.forest.UpdateHeader(blocks[3].Header, &s.peer, true)
	s.Require().NoError(err)
	s.Require().True(required)

	for _, block := range blocks[:3] {
		s.requireInterest(Uninterested, block.ID())
	}
	interest := s.requireInterest(Required, blocks[3].ID())
	s.Require().Equal(messages.NewLowestID(blocks[0].ID()), interest.BranchKnowledge)

	_, err = s.forest.UpdateHeader(blocks[0].Header, nil, false)
	s.Require().NoError(err)

	interest = s.requireInterest(Required, blocks[3].ID())
	s.Require().Equal(messages.NewTopImported(s.genesis.ID()), interest.BranchKnowledge)
	for _, block := range blocks {
		s.Require().True(s.forest.Importable(block.ID()))
	}
}

func (s *ForestSuite) TestBranchKnowledgeStopsAtImported() {
	blocks := unittest.ChainFixture(s.genesis.Header, 3)
	s.Require().NoError(s.forest.UpdateBody(blocks[0].Header))
	_, err := s.forest.UpdateHeader(blocks[1].Header, nil, false)
	s.Require().NoError(err)
	_, err = s.forest.UpdateHeader(blocks[2].Header, &s.peer, true)
	s.Require().NoError(err)

	interest := s.requireInterest(Required, blocks[2].ID())
	s.Require().Equal(messages.NewTopImported(blocks[0].ID()), interest.BranchKnowledge)

	s.Require().NoError(s.forest.UpdateBody(blocks[1].Header))
	s.Require().NoError(s.forest.UpdateBody(blocks[2].Header))
	s.requireInterest(Uninterested, blocks[2].ID())
	s.Require().True(s.forest.Skippable(blocks[2].ID()))
	s.Require().False(s.forest.Importable(blocks[2].ID()))
}

func (s *ForestSuite) TestHighestJustifiedInterest() {
	blocks := unittest.ChainFixture(s.genesis.Header, 3)

	highest, err := s.forest.UpdateJustification(unittest.JustificationFixture(blocks[2].Header), &s.peer)
	s.Require().NoError(err)
	s.Require().True(highest)
	s.Require().Equal(blocks[2].ID(), s.forest.HighestJustified())

	interest := s.requireInterest(HighestJustified, blocks[2].ID())
	s.Require().Equal(messages.NewLowestID(blocks[1].ID()), interest.BranchKnowledge)
	s.Require().Equal([]chain.PeerID{s.peer}, interest.KnowMost)

	// a lower justification does not replace the highest one
	highest, err = s.forest.UpdateJustification(unittest.JustificationFixture(blocks[0].Header), nil)
	s.Require().NoError(err)
	s.Require().False(highest)
	s.Require().Equal(blocks[2].ID(), s.forest.HighestJustified())
	s.requireInterest(Uninterested, blocks[0].ID())
}

func (s *ForestSuite) TestGenesisJustificationIsNoop() {
	highest, err := s.forest.UpdateJustification(unittest.JustificationFixture(s.genesis.Header), &s.peer)
	s.Require().NoError(err)
	s.Require().False(highest)
	s.Require().Equal(s.genesis.ID(), s.forest.HighestJustified())
	s.Require().Zero(s.forest.Size())
}

func (s *ForestSuite) TestHeaderMissingParent() {
	header := unittest.HeaderWithParentFixture(s.genesis.Header)
	header.ParentHash = nil

	_, err := s.forest.UpdateHeader(header, nil, true)
	s.Require().ErrorIs(err, ErrHeaderMissingParentID)
	s.Require().ErrorIs(s.forest.UpdateBody(header), ErrHeaderMissingParentID)
	_, err = s.forest.UpdateJustification(unittest.JustificationFixture(header), nil)
	s.Require().ErrorIs(err, ErrHeaderMissingParentID)
	s.Require().Zero(s.forest.Size())
}

func (s *ForestSuite) TestTooNew() {
	root := s.genesis.ID()
	tooFar := unittest.BlockIDFixture(root.Number + DefaultMaxDepth + 1)
	_, err := s.forest.UpdateBlockIdentifier(tooFar, &s.peer, true)
	s.Require().ErrorIs(err, ErrTooNew)
	s.Require().Zero(s.forest.Size())

	farthest := unittest.BlockIDFixture(root.Number + DefaultMaxDepth)
	required, err := s.forest.UpdateBlockIdentifier(farthest, &s.peer, true)
	s.Require().NoError(err)
	s.Require().True(required)
}

func (s *ForestSuite) TestBodyRequiresImportedParent() {
	blocks := unittest.ChainFixture(s.genesis.Header, 2)
	justification := unittest.JustificationFixture(blocks[1].Header)
	_, err := s.forest.UpdateJustification(justification, nil)
	s.Require().NoError(err)

	err = s.forest.UpdateBody(blocks[1].Header)
	s.Require().ErrorIs(err, ErrParentNotImported)
	s.Require().False(s.forest.Skippable(blocks[1].ID()))
	s.Require().Nil(s.forest.TryFinalize(2))

	s.Require().NoError(s.forest.UpdateBody(blocks[0].Header))
	s.Require().NoError(s.forest.UpdateBody(blocks[1].Header))
	s.Require().NoError(s.forest.UpdateBody(blocks[1].Header))
	s.Require().True(s.forest.Skippable(blocks[1].ID()))

	finalized := s.forest.TryFinalize(2)
	s.Require().NotNil(finalized)
	s.Require().Equal(justification, *finalized)
	s.Require().Nil(s.forest.TryFinalize(2))
	s.Require().Equal(blocks[1].ID(), s.forest.Root())
}

func (s *ForestSuite) TestSequentialFinalization() {
	blocks := unittest.ChainFixture(s.genesis.Header, DefaultMaxDepth)
	for i, block := range blocks {
		number := chain.BlockNumber(i + 1)
		justification := unittest.JustificationFixture(block.Header)

		highest, err := s.forest.UpdateJustification(justification, &s.peer)
		s.Require().NoError(err)
		s.Require().True(highest)
		s.Require().NoError(s.forest.UpdateBody(block.Header))

		finalized := s.forest.TryFinalize(number)
		s.Require().NotNil(finalized, "block %d was not finalized", number)
		s.Require().Equal(justification, *finalized)
		s.Require().Equal(block.ID(), s.forest.Root())
		s.Require().Nil(s.forest.TryFinalize(number))
	}
	s.Require().Zero(s.forest.Size())
}

// a fork diverging below a finalized block becomes a hopeless fork
func (s *ForestSuite) TestForkPruning() {
	main := unittest.ChainFixture(s.genesis.Header, 2)
	fork := unittest.ChainFixture(s.genesis.Header, 3)
	late := unittest.ChainFixture(main[0].Header, 2)

	for _, block := range append(fork, late...) {
		_, err := s.forest.UpdateHeader(block.Header, &s.peer, true)
		s.Require().NoError(err)
	}
	s.Require().True(s.forest.Importable(fork[2].ID()))
	s.Require().True(s.forest.Importable(late[1].ID()))

	for _, block := range main {
		s.Require().NoError(s.forest.UpdateBody(block.Header))
	}
	_, err := s.forest.UpdateJustification(unittest.JustificationFixture(main[1].Header), nil)
	s.Require().NoError(err)
	s.Require().NotNil(s.forest.TryFinalize(2))

	for _, block := range []chain.Block{fork[2], late[1]} {
		s.requireInterest(Uninterested, block.ID())
		s.Require().False(s.forest.Importable(block.ID()))
		s.Require().False(s.forest.Skippable(block.ID()))
	}
	s.Require().Zero(s.forest.Size())

	// descendants of hopeless forks are pruned on arrival
	next := unittest.BlockWithParentFixture(fork[2].Header)
	required, err := s.forest.UpdateHeader(next.Header, &s.peer, true)
	s.Require().NoError(err)
	s.Require().False(required)
	s.Require().False(s.forest.Importable(next.ID()))
	s.Require().Zero(s.forest.Size())

	// blocks at or below the root are never tracked
	s.Require().True(s.forest.Skippable(main[0].ID()))
	s.Require().True(s.forest.Skippable(fork[0].ID()))
	s.Require().Nil(s.forest.TryFinalize(1))
}

// the children of the root follow the root as it advances
func (s *ForestSuite) TestRootChildren() {
	main := unittest.ChainFixture(s.genesis.Header, 3)
	sibling := unittest.BlockWithParentFixture(s.genesis.Header)
	alternative := unittest.BlockWithParentFixture(main[1].Header)

	for _, block := range append(main, sibling, alternative) {
		_, err := s.forest.UpdateHeader(block.Header, &s.peer, false)
		s.Require().NoError(err)
	}
	s.Require().Equal(map[chain.BlockID]struct{}{main[0].ID(): {}, sibling.ID(): {}}, s.forest.rootChildren)

	for _, block := range main[:2] {
		s.Require().NoError(s.forest.UpdateBody(block.Header))
	}
	_, err := s.forest.UpdateJustification(unittest.JustificationFixture(main[1].Header), nil)
	s.Require().NoError(err)
	s.Require().NotNil(s.forest.TryFinalize(2))

	s.Require().Equal(map[chain.BlockID]struct{}{main[2].ID(): {}, alternative.ID(): {}}, s.forest.rootChildren)
	s.Require().Equal(2, s.forest.Size())
}

// finalizing a justified block skips over unjustified ancestors
func (s *ForestSuite) TestFinalizationSkipsUnjustified() {
	blocks := unittest.ChainFixture(s.genesis.Header, 5)
	for _, block := range blocks {
		s.Require().NoError(s.forest.UpdateBody(block.Header))
	}
	_, err := s.forest.UpdateJustification(unittest.JustificationFixture(blocks[4].Header), nil)
	s.Require().NoError(err)

	for number := chain.BlockNumber(1); number < 5; number++ {
		s.Require().Nil(s.forest.TryFinalize(number))
	}
	s.Require().NotNil(s.forest.TryFinalize(5))
	s.Require().Equal(blocks[4].ID(), s.forest.Root())
	s.Require().Equal(blocks[4].ID(), s.forest.HighestJustified())
	s.Require().Zero(s.forest.Size())
}

func (s *ForestSuite) TestCatchUpFromStorage() {
	chainStatus := mockmodule.NewChainStatus(s.T())
	main := unittest.ChainFixture(s.genesis.Header, 3)
	fork := unittest.BlockWithParentFixture(s.genesis.Header)

	chainStatus.On("TopFinalized").Return(unittest.JustificationFixture(s.genesis.Header), nil).Once()
	chainStatus.On("Children", s.genesis.ID()).Return([]chain.Header{main[0].Header, fork.Header}, nil).Once()
	chainStatus.On("Children", main[0].ID()).Return([]chain.Header{main[1].Header}, nil).Once()
	chainStatus.On("Children", main[1].ID()).Return([]chain.Header{main[2].Header}, nil).Once()
	chainStatus.On("Children", fork.ID()).Return(nil, nil).Once()

	forest, tooMany, err := New(chainStatus, 2)
	s.Require().NoError(err)
	s.Require().True(tooMany)
	s.Require().Equal(3, forest.Size())
	for _, id := range []chain.BlockID{main[0].ID(), main[1].ID(), fork.ID()} {
		s.Require().True(forest.Skippable(id))
	}
	s.Require().False(forest.Skippable(main[2].ID()))
}

func (s *ForestSuite) TestCatchUpStorageFailure() {
	chainStatus := mockmodule.NewChainStatus(s.T())
	failure := errors.New("disk on fire")
	chainStatus.On("TopFinalized").Return(unittest.JustificationFixture(s.genesis.Header), nil).Once()
	chainStatus.On("Children", s.genesis.ID()).Return(nil, failure).Once()

	_, _, err := New(chainStatus, DefaultMaxDepth)
	s.Require().ErrorIs(err, failure)
}

func TestForestEmptyRoot(t *testing.T) {
	genesis := unittest.GenesisFixture()
	forest := newForest(genesis.ID(), DefaultMaxDepth)
	require.True(t, forest.Skippable(genesis.ID()))
	require.False(t, forest.Importable(genesis.ID()))
	require.Equal(t, Uninterested, forest.RequestInterest(genesis.ID()).Kind)
	require.Nil(t, forest.TryFinalize(0))
}
