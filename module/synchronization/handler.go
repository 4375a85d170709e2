package synchronization

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/forest"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/utils/logging"
)

// ErrHeaderNotRequired is returned when a peer sends us a header we did not ask for.
var ErrHeaderNotRequired = errors.New("header not required")

type HandleStateActionKind int

const (
	HandleStateNoop HandleStateActionKind = iota
	// HandleStateResponse means the peer is behind and we should send it justifications.
	HandleStateResponse
	// HandleStateExtendChain means the peer gave us a new highest justified block.
	HandleStateExtendChain
)

// HandleStateAction is the reaction to a state broadcast of a peer.
type HandleStateAction struct {
	Kind     HandleStateActionKind
	Response *messages.StateBroadcastResponse
	BlockID  chain.BlockID
}

func maybeExtend(newHighest bool, id chain.BlockID) HandleStateAction {
	if newHighest {
		return HandleStateAction{Kind: HandleStateExtendChain, BlockID: id}
	}
	return HandleStateAction{Kind: HandleStateNoop}
}

func stateResponse(justification chain.Justification, other *chain.Justification) HandleStateAction {
	response := &messages.StateBroadcastResponse{Justification: justification.IntoUnverified()}
	if other != nil {
		unverified := other.IntoUnverified()
		response.Other = &unverified
	}
	return HandleStateAction{Kind: HandleStateResponse, Response: response}
}

// Handler holds the sync state and decides what to do with incoming data.
// It is not safe for concurrent use, all calls have to come from a single
// goroutine.
//
// Errors returned by the handler are either benign (see IsBenignError) and
// concern only the data being handled, or indicate broken storage and are
// fatal.
type Handler struct {
	log            zerolog.Logger
	chainStatus    module.ChainStatus
	verifier       module.Verifier
	finalizer      module.Finalizer
	importer       module.BlockImporter
	metrics        module.SyncMetrics
	sessions       chain.SessionBoundaryInfo
	forest         *forest.Forest
	requestHandler *RequestHandler
	missed         *missedImports
}

func NewHandler(
	log zerolog.Logger,
	chainStatus module.ChainStatus,
	verifier module.Verifier,
	finalizer module.Finalizer,
	importer module.BlockImporter,
	metrics module.SyncMetrics,
	config Config,
) (*Handler, error) {
	err := config.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid sync config: %w", err)
	}

	f, tooMany, err := forest.New(chainStatus, config.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("could not initialize forest: %w", err)
	}

	sessions := chain.NewSessionBoundaryInfo(config.SessionPeriod)
	h := &Handler{
		log:            log.With().Str("component", "sync_handler").Logger(),
		chainStatus:    chainStatus,
		verifier:       verifier,
		finalizer:      finalizer,
		importer:       importer,
		metrics:        metrics,
		sessions:       sessions,
		forest:         f,
		requestHandler: NewRequestHandler(chainStatus, sessions),
		missed:         newMissedImports(config.MaxDepth),
	}

	if tooMany {
		best, err := chainStatus.BestBlock()
		if err != nil {
			return nil, fmt.Errorf("could not retrieve best block: %w", err)
		}
		h.log.Warn().
			Uint32("best_block", uint32(best.Number)).
			Msg("too many non-finalized blocks in storage, forest will be synced later")
		err = h.missed.update(best.Number, chainStatus)
		if err != nil {
			return nil, err
		}
	}
	h.reportForest()

	return h, nil
}

// Sessions returns the session boundaries the handler works with.
func (h *Handler) Sessions() chain.SessionBoundaryInfo {
	return h.sessions
}

func (h *Handler) reportForest() {
	h.metrics.HighestJustified(h.forest.HighestJustified().Number)
	h.metrics.ForestSize(h.forest.Size())
}

// tryFinalize finalizes as much as possible. Blocks are finalized one by one
// while consecutive justified blocks are available, then the last block of
// the current session is tried, since a justification of it lets us skip
// the rest of the session.
func (h *Handler) tryFinalize() error {
	top, err := h.chainStatus.TopFinalized()
	if err != nil {
		return fmt.Errorf("could not retrieve top finalized: %w", err)
	}
	number := top.ID().Number + 1
	defer h.reportForest()
	for {
		for {
			justification := h.forest.TryFinalize(number)
			if justification == nil {
				break
			}
			err = h.finalize(*justification)
			if err != nil {
				return err
			}
			number++
		}

		number = h.sessions.LastBlockOfSession(h.sessions.SessionID(number))
		justification := h.forest.TryFinalize(number)
		if justification == nil {
			return h.missed.trySync(h.chainStatus, h.forest)
		}
		err = h.finalize(*justification)
		if err != nil {
			return err
		}
		number++
	}
}

func (h *Handler) finalize(justification chain.Justification) error {
	err := h.finalizer.Finalize(justification)
	if err != nil {
		return fmt.Errorf("could not finalize %s: %w", justification.ID(), err)
	}
	h.metrics.FinalizedHeight(justification.ID().Number)
	logging.Block(h.log.Debug(), justification.ID()).Msg("block finalized")
	return nil
}

// BlockImported informs the handler that the block was imported into storage.
func (h *Handler) BlockImported(header chain.Header) error {
	err := h.forest.UpdateBody(header)
	if err != nil {
		if errors.Is(err, forest.ErrTooNew) || errors.Is(err, forest.ErrParentNotImported) {
			updateErr := h.missed.update(header.Number, h.chainStatus)
			if updateErr != nil {
				return updateErr
			}
		}
		return err
	}
	return h.tryFinalize()
}

// HandleJustification verifies the justification and adds it to the forest.
// It returns whether the justification is the new highest one.
func (h *Handler) HandleJustification(unverified chain.UnverifiedJustification, peer *chain.PeerID) (bool, error) {
	justification, err := h.verifier.VerifyJustification(unverified)
	if err != nil {
		return false, NewInvalidInputErrorf("invalid justification of %s: %w", unverified.ID(), err)
	}
	newHighest, err := h.forest.UpdateJustification(justification, peer)
	if err != nil {
		return false, NewInvalidInputErrorf("could not add justification of %s: %w", justification.ID(), err)
	}
	err = h.tryFinalize()
	if err != nil {
		return false, err
	}
	return newHighest, nil
}

// HandleJustificationFromUser handles a justification submitted locally.
func (h *Handler) HandleJustificationFromUser(unverified chain.UnverifiedJustification) (bool, error) {
	return h.HandleJustification(unverified, nil)
}

// HandleStateResponse handles both justifications of a state response. It
// stops at the first error, the forest stays consistent either way.
func (h *Handler) HandleStateResponse(justification chain.UnverifiedJustification, other *chain.UnverifiedJustification, peer chain.PeerID) (bool, error) {
	newHighest, err := h.HandleJustification(justification, &peer)
	if err != nil || other == nil {
		return newHighest, err
	}
	highest, err := h.HandleJustification(*other, &peer)
	return newHighest || highest, err
}

// HandleRequestResponse handles the items of a response in order. It returns
// whether we learned about a new highest justification and all the
// equivocations detected. On error the items before the failing one stay
// processed.
func (h *Handler) HandleRequestResponse(items []messages.ResponseItem, peer chain.PeerID) (bool, []module.EquivocationProof, error) {
	var proofs []module.EquivocationProof
	newHighest := false
	for _, item := range items {
		switch {
		case item.Justification != nil:
			highest, err := h.HandleJustification(*item.Justification, &peer)
			if err != nil {
				return newHighest, proofs, err
			}
			newHighest = newHighest || highest

		case item.Header != nil:
			header := *item.Header
			if h.forest.Skippable(header.ID()) {
				continue
			}
			proof, err := h.verifyHeader(header)
			if err != nil {
				return newHighest, proofs, err
			}
			if proof != nil {
				proofs = append(proofs, *proof)
			}
			_, err = h.forest.UpdateHeader(header, &peer, false)
			if err != nil {
				return newHighest, proofs, NewInvalidInputErrorf("could not add header %s: %w", header.ID(), err)
			}
			if !h.forest.Importable(header.ID()) {
				return newHighest, proofs, NewInvalidInputErrorf("header %s: %w", header.ID(), ErrHeaderNotRequired)
			}

		case item.Block != nil:
			block := *item.Block
			id := block.ID()
			if h.forest.Skippable(id) {
				continue
			}
			if !h.forest.Importable(id) {
				return newHighest, proofs, NewInvalidInputErrorf("block %s: %w", id, ErrBlockNotImportable)
			}
			proof, err := h.importBlock(block)
			if err != nil {
				return newHighest, proofs, err
			}
			if proof != nil {
				proofs = append(proofs, *proof)
			}

		default:
			return newHighest, proofs, NewInvalidInputErrorf("empty response item")
		}
	}
	return newHighest, proofs, nil
}

// verifyHeader checks the seal of the header. Equivocations of our own
// authority are irrecoverable.
func (h *Handler) verifyHeader(header chain.Header) (*module.EquivocationProof, error) {
	proof, err := h.verifier.VerifyHeader(header)
	if err != nil {
		return nil, NewInvalidInputErrorf("invalid header %s: %w", header.ID(), err)
	}
	if proof == nil {
		return nil, nil
	}
	h.metrics.EquivocationDetected()
	if proof.Own {
		return nil, irrecoverable.NewExceptionf("equivocation of our own authority %d in slot %d: %s and %s",
			proof.Author, proof.Slot, proof.First.ID(), proof.Second.ID())
	}
	return proof, nil
}

// importBlock verifies the block and passes it to the importer. The forest
// learns about the import through BlockImported.
func (h *Handler) importBlock(block chain.Block) (*module.EquivocationProof, error) {
	if !block.Valid() {
		return nil, NewInvalidInputErrorf("block %s: payload does not match header", block.ID())
	}
	proof, err := h.verifyHeader(block.Header)
	if err != nil {
		return nil, err
	}
	h.importer.ImportBlock(block)
	return proof, nil
}

// HandleOwnBlock imports a block produced by this node.
func (h *Handler) HandleOwnBlock(block chain.Block) (*module.EquivocationProof, error) {
	return h.importBlock(block)
}

func (h *Handler) finalizedJustification(session chain.SessionID) (chain.Justification, error) {
	number := h.sessions.LastBlockOfSession(session)
	status, err := h.chainStatus.FinalizedAt(number)
	if err != nil {
		return chain.Justification{}, fmt.Errorf("could not retrieve finalized block at %d: %w", number, err)
	}
	if status.Kind != module.FinalizedWithJustification {
		return chain.Justification{}, fmt.Errorf("block %d: %w", number, ErrLastBlockOfSessionNotJustified)
	}
	return status.Justification, nil
}

// HandleState compares the state of the peer with ours. A peer ahead of us
// gives us its top justification. A peer behind us gets at most two
// justifications, which are enough for it to reach the following session.
func (h *Handler) HandleState(state messages.State, peer chain.PeerID) (HandleStateAction, error) {
	remoteTop := state.TopJustification.ID()
	localTop, err := h.chainStatus.TopFinalized()
	if err != nil {
		return HandleStateAction{}, fmt.Errorf("could not retrieve top finalized: %w", err)
	}
	remoteSession := h.sessions.SessionID(remoteTop.Number)
	localSession := h.sessions.SessionID(localTop.ID().Number)

	switch {
	case remoteSession > localSession,
		remoteSession == localSession && remoteTop.Number >= localTop.ID().Number:
		newHighest, err := h.HandleJustification(state.TopJustification, &peer)
		if err != nil {
			return HandleStateAction{}, err
		}
		return maybeExtend(newHighest, remoteTop), nil

	case remoteSession == localSession:
		return stateResponse(localTop, nil), nil

	case remoteSession+1 == localSession:
		justification, err := h.finalizedJustification(remoteSession)
		if err != nil {
			return HandleStateAction{}, err
		}
		return stateResponse(justification, &localTop), nil

	default:
		justification, err := h.finalizedJustification(remoteSession)
		if err != nil {
			return HandleStateAction{}, err
		}
		next, err := h.finalizedJustification(remoteSession + 1)
		if err != nil {
			return HandleStateAction{}, err
		}
		return stateResponse(justification, &next), nil
	}
}

// HandleRequest computes our reaction to a request of a peer. Unknown blocks
// the peer asked for become interesting to us as well.
func (h *Handler) HandleRequest(request messages.Request) (Action, error) {
	action, err := h.requestHandler.Action(request)
	if err != nil {
		if isRequestHandlerError(err) {
			return NoopAction(), NewInvalidInputErrorf("could not handle request for %s: %w", request.Target, err)
		}
		return NoopAction(), err
	}
	if action.Kind == ActionRequestBlock {
		shouldRequest, err := h.forest.UpdateBlockIdentifier(action.BlockID, nil, true)
		if err != nil {
			return NoopAction(), NewInvalidInputErrorf("could not add requested block %s: %w", action.BlockID, err)
		}
		if !shouldRequest {
			return NoopAction(), nil
		}
	}
	return action, nil
}

// HandleChainExtensionRequest sends the peer the part of our finalized chain
// above its top justification, up to the end of the session following its
// own. The peer knows no headers above its top, so all of them are sent.
func (h *Handler) HandleChainExtensionRequest(state messages.State) (Action, error) {
	top, err := h.chainStatus.TopFinalized()
	if err != nil {
		return NoopAction(), fmt.Errorf("could not retrieve top finalized: %w", err)
	}
	theirTop := state.TopJustification.ID()
	if theirTop.Number >= top.ID().Number {
		return NoopAction(), nil
	}

	target := top.ID()
	upperSession := h.sessions.SessionID(theirTop.Number) + 1
	if h.sessions.LastBlockOfSession(upperSession) < target.Number {
		justification, err := h.finalizedJustification(upperSession)
		if err != nil {
			return NoopAction(), err
		}
		target = justification.ID()
	}

	request := messages.Request{
		Target:          target,
		BranchKnowledge: messages.NewLowestID(target),
		State:           state,
	}
	action, err := h.HandleRequest(request)
	if errors.Is(err, ErrRootMismatch) {
		return NoopAction(), nil
	}
	return action, err
}

// HandleInternalRequest marks the block as required on behalf of this node.
// It returns true if the block was not required before.
func (h *Handler) HandleInternalRequest(id chain.BlockID) (bool, error) {
	return h.forest.UpdateBlockIdentifier(id, nil, true)
}

// State returns our state as broadcast to other nodes.
func (h *Handler) State() (messages.State, error) {
	top, err := h.chainStatus.TopFinalized()
	if err != nil {
		return messages.State{}, fmt.Errorf("could not retrieve top finalized: %w", err)
	}
	return messages.State{TopJustification: top.IntoUnverified()}, nil
}

// RequestInterest tells whether and how the block should be requested.
func (h *Handler) RequestInterest(id chain.BlockID) forest.Interest {
	return h.forest.RequestInterest(id)
}

// HighestJustified returns the highest justified block known to the forest.
func (h *Handler) HighestJustified() chain.BlockID {
	return h.forest.HighestJustified()
}
