package synchronization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module/forest"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/module/synchronization"
	"github.com/finalitylabs/blocksync/module/verification"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

type HandlerSuite struct {
	suite.Suite
	committee *unittest.Committee
	node      *testNode
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.committee = unittest.CommitteeFixture(s.T(), 4)
	s.node = newTestNode(s.T(), s.committee, unittest.PeerIDFixture(0))
}

func (s *HandlerSuite) justify(header chain.Header) chain.UnverifiedJustification {
	return s.committee.Justify(header)
}

func (s *HandlerSuite) TestInvalidConfig() {
	_, err := synchronization.NewHandler(
		unittest.Logger(),
		s.node.state,
		s.committee.Verifier(s.T()),
		s.node.state,
		s.node.state,
		metrics.NewNoopCollector(),
		synchronization.Config{SessionPeriod: 20, MaxDepth: 10},
	)
	s.Require().Error(err)
}

// Consecutive justified blocks are finalized one by one, regardless of the
// order the justifications arrive in.
func (s *HandlerSuite) TestSequentialFinalization() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 3)
	s.node.importBlocks(blocks)

	for i := 2; i >= 0; i-- {
		_, err := s.node.handler.HandleJustificationFromUser(s.justify(blocks[i].Header))
		s.Require().NoError(err)
		if i > 0 {
			s.Assert().Equal(chain.BlockNumber(0), s.node.top().Number)
		}
	}
	s.Assert().Equal(blocks[2].ID(), s.node.top())
}

// A justification of the last block of the session finalizes it even though
// the blocks before it are not justified.
func (s *HandlerSuite) TestSessionJump() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 25)
	s.node.importBlocks(blocks)

	_, err := s.node.handler.HandleJustificationFromUser(s.justify(blocks[24].Header))
	s.Require().NoError(err)
	s.Assert().Equal(chain.BlockNumber(0), s.node.top().Number)

	_, err = s.node.handler.HandleJustificationFromUser(s.justify(blocks[18].Header))
	s.Require().NoError(err)
	s.Assert().Equal(blocks[18].ID(), s.node.top())

	// block 20 is not justified, so block 25 stays unfinalized
	s.Assert().Equal(blocks[24].ID(), s.node.handler.HighestJustified())
}

// Justified blocks become finalized as soon as they are imported.
func (s *HandlerSuite) TestJustificationBeforeImport() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 19)
	last := blocks[18]

	newHighest, err := s.node.handler.HandleJustification(s.justify(last.Header), &s.node.peer)
	s.Require().NoError(err)
	s.Assert().True(newHighest)

	interest := s.node.handler.RequestInterest(last.ID())
	s.Assert().Equal(forest.HighestJustified, interest.Kind)
	s.Assert().Equal([]chain.PeerID{s.node.peer}, interest.KnowMost)
	parentID, _ := last.Header.ParentID()
	s.Assert().Equal(messages.NewLowestID(parentID), interest.BranchKnowledge)

	s.node.importBlocks(blocks)
	s.Assert().Equal(last.ID(), s.node.top())
	s.Assert().Equal(forest.Uninterested, s.node.handler.RequestInterest(last.ID()).Kind)
}

func (s *HandlerSuite) TestInvalidJustification() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 1)
	other := unittest.CommitteeFixture(s.T(), 4)

	_, err := s.node.handler.HandleJustificationFromUser(other.Justify(blocks[0].Header))
	s.Require().Error(err)
	s.Assert().True(synchronization.IsInvalidInputError(err))
	s.Assert().True(synchronization.IsBenignError(err))
}

// A justification that was verified but too new to be used must not vouch
// for a later copy of the same header without signatures.
func (s *HandlerSuite) TestUnsignedCopyOfVerifiedJustification() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 59)
	last := blocks[58]

	_, err := s.node.handler.HandleJustification(s.justify(last.Header), &s.node.peer)
	s.Require().ErrorIs(err, forest.ErrTooNew)

	s.node.importBlocks(blocks[:39])
	_, err = s.node.handler.HandleJustificationFromUser(s.justify(blocks[38].Header))
	s.Require().NoError(err)
	s.Require().Equal(blocks[38].ID(), s.node.top())
	s.node.importBlocks(blocks[39:])

	_, err = s.node.handler.HandleJustification(chain.UnverifiedJustification{Header: last.Header}, &s.node.peer)
	s.Require().NoError(err)
	s.Require().Equal(last.ID(), s.node.top())

	top, err := s.node.state.TopFinalized()
	s.Require().NoError(err)
	s.Assert().Len(top.Signatures(), len(s.committee.Keys))
	_, err = s.committee.Verifier(s.T()).VerifyJustification(top.IntoUnverified())
	s.Assert().NoError(err)
}

func (s *HandlerSuite) TestBlockImportedOutOfOrder() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 2)
	err := s.node.handler.BlockImported(blocks[1].Header)
	s.Require().ErrorIs(err, forest.ErrParentNotImported)
	s.Assert().True(synchronization.IsBenignError(err))
}

func (s *HandlerSuite) TestHandleStateRemoteAhead() {
	s.node.growSessions(1)
	remote := s.committee.Extend(s.node.best(), 20)
	remoteTop := remote[19]

	action, err := s.node.handler.HandleState(messages.State{TopJustification: s.justify(remoteTop.Header)}, unittest.PeerIDFixture(1))
	s.Require().NoError(err)
	s.Assert().Equal(synchronization.HandleStateExtendChain, action.Kind)
	s.Assert().Equal(remoteTop.ID(), action.BlockID)

	// the same state again brings nothing new
	action, err = s.node.handler.HandleState(messages.State{TopJustification: s.justify(remoteTop.Header)}, unittest.PeerIDFixture(1))
	s.Require().NoError(err)
	s.Assert().Equal(synchronization.HandleStateNoop, action.Kind)
}

func (s *HandlerSuite) TestHandleStateSameSession() {
	blocks := s.node.growSessions(6)
	top := s.node.top()

	remote := blocks[len(blocks)-10]
	action, err := s.node.handler.HandleState(messages.State{TopJustification: s.justify(remote.Header)}, unittest.PeerIDFixture(1))
	s.Require().NoError(err)
	s.Require().Equal(synchronization.HandleStateResponse, action.Kind)
	s.Assert().Equal(top, action.Response.Justification.ID())
	s.Assert().Nil(action.Response.Other)

	action, err = s.node.handler.HandleState(messages.State{TopJustification: s.node.finalizedJustification(top.Number)}, unittest.PeerIDFixture(1))
	s.Require().NoError(err)
	s.Assert().Equal(synchronization.HandleStateNoop, action.Kind)
}

func (s *HandlerSuite) TestHandleStateOneSessionBehind() {
	blocks := s.node.growSessions(6)
	top := s.node.top()
	s.Require().Equal(chain.BlockNumber(119), top.Number)

	remote := s.justify(blocks[84].Header)
	action, err := s.node.handler.HandleState(messages.State{TopJustification: remote}, unittest.PeerIDFixture(1))
	s.Require().NoError(err)
	s.Require().Equal(synchronization.HandleStateResponse, action.Kind)
	s.Assert().Equal(chain.BlockNumber(99), action.Response.Justification.ID().Number)
	s.Require().NotNil(action.Response.Other)
	s.Assert().Equal(top, action.Response.Other.ID())
}

// A peer several sessions behind gets the justifications of the last blocks
// of its session and of the next one, and nothing else.
func (s *HandlerSuite) TestHandleStateManySessionsBehind() {
	blocks := s.node.growSessions(6)
	info := s.node.handler.Sessions()
	s.Require().Equal(chain.SessionID(5), info.SessionID(s.node.top().Number))

	remote := s.justify(blocks[44].Header)
	s.Require().Equal(chain.SessionID(2), info.SessionID(remote.ID().Number))

	action, err := s.node.handler.HandleState(messages.State{TopJustification: remote}, unittest.PeerIDFixture(1))
	s.Require().NoError(err)
	s.Require().Equal(synchronization.HandleStateResponse, action.Kind)
	s.Assert().Equal(s.node.finalizedJustification(59), action.Response.Justification)
	s.Require().NotNil(action.Response.Other)
	s.Assert().Equal(s.node.finalizedJustification(79), *action.Response.Other)
}

func (s *HandlerSuite) TestHandleStateResponse() {
	remote := newTestNode(s.T(), s.committee, unittest.PeerIDFixture(1))
	remote.growSessions(2)

	newHighest, err := s.node.handler.HandleStateResponse(
		remote.finalizedJustification(19),
		nil,
		remote.peer,
	)
	s.Require().NoError(err)
	s.Assert().True(newHighest)

	bad := unittest.CommitteeFixture(s.T(), 4).Justify(remote.best())
	other := remote.finalizedJustification(39)
	newHighest, err = s.node.handler.HandleStateResponse(bad, &other, remote.peer)
	s.Require().Error(err)
	s.Assert().False(newHighest)
	// processing stopped at the invalid justification
	s.Assert().Equal(chain.BlockNumber(19), s.node.handler.HighestJustified().Number)
}

// A node behind syncs a full session from a peer through a request.
func (s *HandlerSuite) TestSyncThroughRequest() {
	remote := newTestNode(s.T(), s.committee, unittest.PeerIDFixture(1))
	remote.growSessions(2)

	state, err := remote.handler.State()
	s.Require().NoError(err)
	action, err := s.node.handler.HandleState(state, remote.peer)
	s.Require().NoError(err)
	s.Require().Equal(synchronization.HandleStateExtendChain, action.Kind)

	interest := s.node.handler.RequestInterest(action.BlockID)
	s.Require().Equal(forest.HighestJustified, interest.Kind)
	s.Assert().Equal([]chain.PeerID{remote.peer}, interest.KnowMost)

	localState, err := s.node.handler.State()
	s.Require().NoError(err)
	response, err := remote.handler.HandleRequest(messages.Request{
		Target:          action.BlockID,
		BranchKnowledge: interest.BranchKnowledge,
		State:           localState,
	})
	s.Require().NoError(err)
	s.Require().Equal(synchronization.ActionResponse, response.Kind)

	newHighest, proofs, err := s.node.handler.HandleRequestResponse(response.Items, remote.peer)
	s.Require().NoError(err)
	s.Assert().False(newHighest)
	s.Assert().Empty(proofs)

	s.node.processEvents()
	s.Assert().Equal(remote.top(), s.node.top())
	s.Assert().Equal(forest.Uninterested, s.node.handler.RequestInterest(action.BlockID).Kind)
}

func (s *HandlerSuite) TestUnwantedBlockRejected() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 2)
	items := []messages.ResponseItem{messages.BlockItem(blocks[0])}

	_, _, err := s.node.handler.HandleRequestResponse(items, unittest.PeerIDFixture(1))
	s.Require().ErrorIs(err, synchronization.ErrBlockNotImportable)
	s.Assert().True(synchronization.IsInvalidInputError(err))
}

func (s *HandlerSuite) TestUnwantedHeaderRejected() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 2)
	items := []messages.ResponseItem{messages.HeaderItem(blocks[0].Header)}

	_, _, err := s.node.handler.HandleRequestResponse(items, unittest.PeerIDFixture(1))
	s.Require().ErrorIs(err, synchronization.ErrHeaderNotRequired)
}

func (s *HandlerSuite) TestSkippableItemsIgnored() {
	blocks := s.node.growSessions(1)
	items := []messages.ResponseItem{
		messages.HeaderItem(blocks[3].Header),
		messages.BlockItem(blocks[4]),
	}
	_, _, err := s.node.handler.HandleRequestResponse(items, unittest.PeerIDFixture(1))
	s.Require().NoError(err)
}

func (s *HandlerSuite) TestEquivocationReported() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 3)
	_, err := s.node.handler.HandleInternalRequest(blocks[2].ID())
	s.Require().NoError(err)

	equivocation := s.committee.Equivocate(blocks[0].Header, blocks[1].Header)
	_, err = s.node.handler.HandleInternalRequest(equivocation.ID())
	s.Require().NoError(err)

	items := []messages.ResponseItem{
		messages.HeaderItem(blocks[2].Header),
		messages.HeaderItem(blocks[1].Header),
		messages.HeaderItem(equivocation.Header),
	}
	_, proofs, err := s.node.handler.HandleRequestResponse(items, unittest.PeerIDFixture(1))
	s.Require().NoError(err)
	s.Require().Len(proofs, 1)
	s.Assert().Equal(blocks[1].Header.Author, proofs[0].Author)
	s.Assert().False(proofs[0].Own)
}

func (s *HandlerSuite) TestOwnEquivocationIsException() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 1)
	own := blocks[0].Header.Author
	node := newTestNode(s.T(), s.committee, unittest.PeerIDFixture(1), verification.WithOwnAuthority(own))

	_, err := node.handler.HandleOwnBlock(blocks[0])
	s.Require().NoError(err)
	node.processEvents()

	equivocation := s.committee.Equivocate(s.committee.Genesis.Header, blocks[0].Header)
	_, err = node.handler.HandleInternalRequest(equivocation.ID())
	s.Require().NoError(err)
	_, _, err = node.handler.HandleRequestResponse([]messages.ResponseItem{messages.HeaderItem(equivocation.Header)}, unittest.PeerIDFixture(2))
	s.Require().Error(err)
	s.Assert().True(irrecoverable.IsException(err))
	s.Assert().False(synchronization.IsBenignError(err))
}

func (s *HandlerSuite) TestHandleRequestUnknownTarget() {
	target := unittest.BlockIDFixture(5)
	state, err := s.node.handler.State()
	s.Require().NoError(err)
	request := messages.Request{
		Target:          target,
		BranchKnowledge: messages.NewLowestID(target),
		State:           state,
	}

	action, err := s.node.handler.HandleRequest(request)
	s.Require().NoError(err)
	s.Assert().Equal(synchronization.ActionRequestBlock, action.Kind)
	s.Assert().Equal(target, action.BlockID)

	// we asked for it already
	action, err = s.node.handler.HandleRequest(request)
	s.Require().NoError(err)
	s.Assert().Equal(synchronization.ActionNoop, action.Kind)
}

func (s *HandlerSuite) TestHandleChainExtensionRequest() {
	s.node.growSessions(1)
	behind := newTestNode(s.T(), s.committee, unittest.PeerIDFixture(1))

	state, err := behind.handler.State()
	s.Require().NoError(err)
	action, err := s.node.handler.HandleChainExtensionRequest(state)
	s.Require().NoError(err)
	s.Require().Equal(synchronization.ActionResponse, action.Kind)

	// the peer knows nothing above genesis, so it gets all headers
	s.Require().NotNil(action.Items[0].Justification)
	s.Assert().Equal(chain.BlockNumber(19), action.Items[0].Justification.ID().Number)
	s.Require().NotNil(action.Items[1].Header)
	s.Assert().Equal(chain.BlockNumber(18), action.Items[1].Header.Number)

	_, _, err = behind.handler.HandleRequestResponse(action.Items, s.node.peer)
	s.Require().NoError(err)
	behind.processEvents()
	s.Assert().Equal(s.node.top(), behind.top())

	// nothing to extend for a peer that is not behind
	state, err = s.node.handler.State()
	s.Require().NoError(err)
	action, err = behind.handler.HandleChainExtensionRequest(state)
	s.Require().NoError(err)
	s.Assert().Equal(synchronization.ActionNoop, action.Kind)
}

func TestHandlerCatchUpFromStorage(t *testing.T) {
	committee := unittest.CommitteeFixture(t, 4)
	node := newTestNode(t, committee, unittest.PeerIDFixture(0))
	node.growSessions(1)
	pending := committee.Extend(node.best(), 5)
	node.importBlocks(pending)

	restarted, err := synchronization.NewHandler(
		unittest.Logger(),
		node.state,
		committee.Verifier(t),
		node.state,
		node.state,
		metrics.NewNoopCollector(),
		testConfig(),
	)
	require.NoError(t, err)

	_, err = restarted.HandleJustificationFromUser(committee.Justify(pending[0].Header))
	require.NoError(t, err)
	assert.Equal(t, pending[0].ID(), node.top())
}

// Blocks imported too far above the root are replayed into the forest once
// finalization moved far enough.
func (s *HandlerSuite) TestMissedImportsReplayed() {
	blocks := s.committee.Extend(s.committee.Genesis.Header, 45)
	for _, block := range blocks {
		s.node.state.ImportBlock(block)
	}
	for {
		event, ok := s.node.state.Pop()
		if !ok {
			break
		}
		err := s.node.handler.BlockImported(event.Header)
		if event.Header.Number > testMaxDepth {
			s.Require().ErrorIs(err, forest.ErrTooNew)
			continue
		}
		s.Require().NoError(err)
	}

	for _, i := range []int{18, 38, 39, 40} {
		_, err := s.node.handler.HandleJustificationFromUser(s.justify(blocks[i].Header))
		s.Require().NoError(err)
		s.Require().Equal(blocks[i].ID(), s.node.top())
	}
}
