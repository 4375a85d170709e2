package synchronization

import (
	"errors"
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/storage"
)

type ActionKind int

const (
	ActionNoop ActionKind = iota
	// ActionRequestBlock means we do not have the requested block ourselves
	// and should request it.
	ActionRequestBlock
	// ActionResponse carries the items to send back to the requester.
	ActionResponse
)

func (k ActionKind) String() string {
	switch k {
	case ActionNoop:
		return "noop"
	case ActionRequestBlock:
		return "request_block"
	case ActionResponse:
		return "response"
	default:
		return fmt.Sprintf("unknown_action(%d)", int(k))
	}
}

// Action is the reaction to a request.
type Action struct {
	Kind    ActionKind
	BlockID chain.BlockID
	Items   []messages.ResponseItem
}

func NoopAction() Action {
	return Action{Kind: ActionNoop}
}

func RequestBlockAction(id chain.BlockID) Action {
	return Action{Kind: ActionRequestBlock, BlockID: id}
}

// ResponseAction returns a response with the items, or a noop if there is
// nothing to send.
func ResponseAction(items []messages.ResponseItem) Action {
	if len(items) == 0 {
		return NoopAction()
	}
	return Action{Kind: ActionResponse, Items: items}
}

// head is the block we are currently at when walking down the chain. It is
// either justified or a plain header.
type head struct {
	justification *chain.Justification
	header        chain.Header
}

func justificationHead(j chain.Justification) head {
	return head{justification: &j, header: j.Header()}
}

func headerHead(h chain.Header) head {
	return head{header: h}
}

func (h head) id() chain.BlockID {
	return h.header.ID()
}

func (h head) isJustification() bool {
	return h.justification != nil
}

// chunkState says what we send for the blocks we pass on the way down.
type chunkState int

const (
	// everythingButHeader is used while the requester knows the headers already.
	everythingButHeader chunkState = iota
	// everything is used below the lowest block the requester knows.
	everything
	// onlyJustification is used below the highest block the requester imported.
	onlyJustification
)

// chunk collects the response items between two justified blocks. Blocks and
// headers are collected walking down, blocks are sent ancestors first.
type chunk struct {
	justification *chain.Justification
	headers       []chain.Header
	blocks        []chain.Block
}

func (c chunk) items() []messages.ResponseItem {
	items := make([]messages.ResponseItem, 0, len(c.headers)+len(c.blocks)+1)
	if c.justification != nil {
		items = append(items, messages.JustificationItem(c.justification.IntoUnverified()))
	}
	for _, header := range c.headers {
		items = append(items, messages.HeaderItem(header))
	}
	for i := len(c.blocks) - 1; i >= 0; i-- {
		items = append(items, messages.BlockItem(c.blocks[i]))
	}
	return items
}

// RequestHandler computes responses to requests from the persistent chain.
// It holds no state of its own.
type RequestHandler struct {
	chainStatus module.ChainStatus
	sessions    chain.SessionBoundaryInfo
}

func NewRequestHandler(chainStatus module.ChainStatus, sessions chain.SessionBoundaryInfo) *RequestHandler {
	return &RequestHandler{
		chainStatus: chainStatus,
		sessions:    sessions,
	}
}

// Action computes the reaction to the request. Besides storage failures it
// returns ErrMissingBlock, ErrMissingParent, ErrRootMismatch and
// ErrLastBlockOfSessionNotJustified.
func (r *RequestHandler) Action(request messages.Request) (Action, error) {
	ourTop, err := r.chainStatus.TopFinalized()
	if err != nil {
		return NoopAction(), fmt.Errorf("could not retrieve top finalized: %w", err)
	}
	theirTop := request.State.TopJustification.ID()

	// never send anything beyond the session following the requester's top
	upperLimit := r.sessions.LastBlockOfSession(r.sessions.SessionID(theirTop.Number) + 1)
	target := request.Target
	if target.Number > upperLimit {
		return NoopAction(), nil
	}

	status, err := r.chainStatus.StatusOf(target)
	if err != nil {
		return NoopAction(), fmt.Errorf("could not retrieve status of %s: %w", target, err)
	}
	var top head
	switch status.Kind {
	case module.BlockStatusUnknown:
		return RequestBlockAction(target), nil
	case module.BlockStatusJustified:
		top = justificationHead(status.Justification)
	case module.BlockStatusPresent:
		top = headerHead(status.Header)
	}

	top, err = r.adjustHead(top, ourTop, upperLimit)
	if err != nil {
		return NoopAction(), err
	}

	items, err := r.responseItems(top, request.BranchKnowledge, theirTop)
	if err != nil {
		return NoopAction(), err
	}
	return ResponseAction(items), nil
}

// adjustHead moves a finalized head to the highest justification the
// requester may receive.
func (r *RequestHandler) adjustHead(h head, ourTop chain.Justification, upperLimit chain.BlockNumber) (head, error) {
	if h.id().Number > ourTop.ID().Number {
		return h, nil
	}
	if upperLimit > ourTop.ID().Number {
		return justificationHead(ourTop), nil
	}
	status, err := r.chainStatus.FinalizedAt(upperLimit)
	if err != nil {
		return h, fmt.Errorf("could not retrieve finalized block at %d: %w", upperLimit, err)
	}
	if status.Kind != module.FinalizedWithJustification {
		return h, fmt.Errorf("block %d: %w", upperLimit, ErrLastBlockOfSessionNotJustified)
	}
	return justificationHead(status.Justification), nil
}

func (r *RequestHandler) responseItems(top head, knowledge messages.BranchKnowledge, theirTop chain.BlockID) ([]messages.ResponseItem, error) {
	var chunks [][]messages.ResponseItem
	state := everythingButHeader
	current := top
	for current.id() != theirTop {
		c, nextState, next, err := r.step(state, current, theirTop, knowledge)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c.items())
		state, current = nextState, next
	}

	var items []messages.ResponseItem
	for i := len(chunks) - 1; i >= 0; i-- {
		items = append(items, chunks[i]...)
	}
	return items, nil
}

// step walks down from the head until the next justified block, or the top
// of the requester, collecting a single chunk.
func (r *RequestHandler) step(state chunkState, from head, theirTop chain.BlockID, knowledge messages.BranchKnowledge) (chunk, chunkState, head, error) {
	c := chunk{justification: from.justification}
	current := from
	for {
		id := current.id()
		if id == theirTop {
			return c, state, current, nil
		}
		if id.Number <= theirTop.Number {
			return c, state, current, fmt.Errorf("passed %s without reaching %s: %w", id, theirTop, ErrRootMismatch)
		}
		if knowledge.ID == id {
			switch knowledge.Kind {
			case messages.LowestID:
				if state == everythingButHeader {
					state = everything
				}
			case messages.TopImported:
				state = onlyJustification
			}
		}

		switch state {
		case everythingButHeader:
			if err := r.addBlock(&c, id); err != nil {
				return c, state, current, err
			}
		case everything:
			if err := r.addBlock(&c, id); err != nil {
				return c, state, current, err
			}
			if !current.isJustification() {
				c.headers = append(c.headers, current.header)
			}
		}

		next, err := r.parentHead(current)
		if err != nil {
			return c, state, current, err
		}
		if next.isJustification() {
			return c, state, next, nil
		}
		current = next
	}
}

func (r *RequestHandler) addBlock(c *chunk, id chain.BlockID) error {
	block, err := r.chainStatus.Block(id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("block %s: %w", id, ErrMissingBlock)
	}
	if err != nil {
		return fmt.Errorf("could not retrieve block %s: %w", id, err)
	}
	c.blocks = append(c.blocks, *block)
	return nil
}

func (r *RequestHandler) parentHead(h head) (head, error) {
	parentID, ok := h.header.ParentID()
	if !ok {
		return h, fmt.Errorf("header %s: %w", h.id(), ErrMissingParent)
	}
	status, err := r.chainStatus.StatusOf(parentID)
	if err != nil {
		return h, fmt.Errorf("could not retrieve status of %s: %w", parentID, err)
	}
	switch status.Kind {
	case module.BlockStatusJustified:
		return justificationHead(status.Justification), nil
	case module.BlockStatusPresent:
		return headerHead(status.Header), nil
	default:
		return h, fmt.Errorf("parent %s: %w", parentID, ErrMissingBlock)
	}
}
