package synchronization

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/component"
	"github.com/finalitylabs/blocksync/module/forest"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/metrics"
	synccore "github.com/finalitylabs/blocksync/module/synchronization"
	"github.com/finalitylabs/blocksync/network"
	"github.com/finalitylabs/blocksync/network/codec/cbor"
	"github.com/finalitylabs/blocksync/utils/logging"
)

// ErrIncompatibleInputType is returned by Process for messages that are not
// part of the sync protocol.
var ErrIncompatibleInputType = errors.New("incompatible input type")

// Engine is the synchronization engine. It feeds network messages, chain
// events and local submissions to the sync handler, and sends out whatever
// the handler decides. All handler calls happen on a single worker
// goroutine, one event at a time.
type Engine struct {
	*component.ComponentManager
	log         zerolog.Logger
	metrics     module.SyncMetrics
	cfg         *Config
	con         network.Conduit
	chainEvents module.ChainEvents
	handler     *synccore.Handler
	rateLimiter *PeerRateLimiter

	// only accessed by the worker
	limiter *MessageLimiter
	ticker  *Ticker
	tasks   *TaskQueue

	pendingStates            *RequestQueue // latest *messages.StateBroadcast per peer
	pendingRequests          *RequestQueue // latest *messages.Request per peer
	pendingExtensionRequests *RequestQueue // latest *messages.ChainExtensionRequest per peer
	pendingResponses         *FifoQueue    // responses in arrival order
	pendingLocal             *FifoQueue    // submissions of the local node
	inboundNotifier          module.Notifier
	localNotifier            module.Notifier
}

var _ network.MessageProcessor = (*Engine)(nil)
var _ component.Component = (*Engine)(nil)

// New creates a new synchronization engine and registers it with the network.
func New(
	log zerolog.Logger,
	metrics module.SyncMetrics,
	net network.Network,
	chainEvents module.ChainEvents,
	handler *synccore.Handler,
	opts ...OptionFunc,
) (*Engine, error) {

	cfg := DefaultConfig()
	for _, f := range opts {
		f(cfg)
	}
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	rateLimiter, err := NewPeerRateLimiter(cfg.RequestRateLimit, cfg.RequestBurst, cfg.RateLimitedPeers)
	if err != nil {
		return nil, fmt.Errorf("could not create request rate limiter: %w", err)
	}

	e := &Engine{
		log:                      log.With().Str("engine", "synchronization").Logger(),
		rateLimiter:              rateLimiter,
		limiter:                  NewMessageLimiter(cbor.NewCodec(cbor.WithMaxMessageSize(cfg.MaxMessageSize)), cfg.MaxMessageSize),
		metrics:                  metrics,
		cfg:                      cfg,
		chainEvents:              chainEvents,
		handler:                  handler,
		ticker:                   NewTicker(cfg.BroadcastPeriod, cfg.BroadcastCooldown),
		tasks:                    NewTaskQueue(),
		pendingStates:            NewRequestQueue(cfg.RequestQueueCapacity),
		pendingRequests:          NewRequestQueue(cfg.RequestQueueCapacity),
		pendingExtensionRequests: NewRequestQueue(cfg.RequestQueueCapacity),
		pendingResponses:         NewFifoQueue(cfg.ResponseQueueCapacity),
		pendingLocal:             NewFifoQueue(0),
		inboundNotifier:          module.NewNotifier(),
		localNotifier:            module.NewNotifier(),
	}

	// register the engine with the network layer and store the conduit
	con, err := net.Register(e)
	if err != nil {
		return nil, fmt.Errorf("could not register engine: %w", err)
	}
	e.con = con

	e.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(e.processingLoop).
		Build()

	return e, nil
}

// Process queues a message received from the network. It never blocks. Full
// queues drop the message, since the protocol tolerates message loss. So do
// requests above the rate limit of the peer.
func (e *Engine) Process(originID chain.PeerID, event interface{}) error {
	msgType := messageType(event)
	var stored bool
	switch event.(type) {
	case *messages.StateBroadcast:
		stored = e.pendingStates.Push(originID, event)
	case *messages.Request, *messages.ChainExtensionRequest:
		if !e.rateLimiter.Allow(originID) {
			e.metrics.MessageReceived(msgType)
			e.metrics.MessageDropped(msgType, metrics.ReasonRateLimited)
			e.log.Debug().Str("origin", originID.String()).Str("message", msgType).Msg("peer exceeds request rate, dropping message")
			return nil
		}
		if _, ok := event.(*messages.Request); ok {
			stored = e.pendingRequests.Push(originID, event)
		} else {
			stored = e.pendingExtensionRequests.Push(originID, event)
		}
	case *messages.StateBroadcastResponse, *messages.RequestResponse:
		stored = e.pendingResponses.Push(message{originID: originID, payload: event})
	default:
		e.metrics.MessageDropped(msgType, metrics.ReasonUnknownType)
		return fmt.Errorf("received input with type %T from %s: %w", event, originID, ErrIncompatibleInputType)
	}

	e.metrics.MessageReceived(msgType)
	if !stored {
		e.metrics.MessageDropped(msgType, metrics.ReasonQueueFull)
		e.log.Debug().Str("origin", originID.String()).Str("message", msgType).Msg("inbound queue full, dropping message")
		return nil
	}
	e.inboundNotifier.Notify()
	return nil
}

// SubmitJustification hands a justification obtained locally, for example
// from consensus, to the engine.
func (e *Engine) SubmitJustification(justification chain.UnverifiedJustification) {
	e.submitLocal(justification)
}

// RequestBlock asks the engine to obtain the block from the network.
func (e *Engine) RequestBlock(id chain.BlockID) {
	e.submitLocal(id)
}

// SubmitOwnBlock imports a block produced by this node.
func (e *Engine) SubmitOwnBlock(block chain.Block) {
	e.submitLocal(block)
}

func (e *Engine) submitLocal(event interface{}) {
	e.pendingLocal.Push(message{payload: event})
	e.localNotifier.Notify()
}

// processingLoop is the only goroutine calling the handler.
func (e *Engine) processingLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	timer := time.NewTimer(e.nextWakeup())
	defer timer.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case <-e.inboundNotifier.Channel():
			err = e.processAvailableMessages(ctx)
		case <-e.localNotifier.Channel():
			err = e.processLocalEvents(ctx)
		case <-e.chainEvents.Notifier():
			err = e.processChainEvents(ctx)
		case <-timer.C:
		}
		if err == nil {
			err = e.processTimers(ctx)
		}
		if err != nil {
			ctx.Throw(err)
			return
		}
		resetTimer(timer, e.nextWakeup())
	}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

// nextWakeup returns the time until either a broadcast or a request task is due.
func (e *Engine) nextWakeup() time.Duration {
	wait := e.ticker.Remaining()
	if due, ok := e.tasks.NextDue(); ok && due < wait {
		wait = due
	}
	return wait
}

func (e *Engine) processTimers(ctx irrecoverable.SignalerContext) error {
	if e.ticker.Remaining() == 0 {
		e.ticker.Tick()
		err := e.broadcast()
		if err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		task, ok := e.tasks.PopDue()
		if !ok {
			return nil
		}
		err := e.handleTask(task)
		if err != nil {
			return err
		}
	}
}

// processAvailableMessages drives queued network messages to the handler
// until all queues are empty.
func (e *Engine) processAvailableMessages(ctx irrecoverable.SignalerContext) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, ok := e.pendingResponses.Pop()
		if ok {
			var err error
			switch payload := msg.payload.(type) {
			case *messages.StateBroadcastResponse:
				err = e.onStateBroadcastResponse(msg.originID, payload)
			case *messages.RequestResponse:
				err = e.onRequestResponse(msg.originID, payload)
			}
			if err != nil {
				return err
			}
			continue
		}

		originID, payload, ok := e.pendingStates.Pop()
		if ok {
			err := e.onState(originID, payload.(*messages.StateBroadcast).State, metrics.MessageStateBroadcast)
			if err != nil {
				return err
			}
			continue
		}

		originID, payload, ok = e.pendingRequests.Pop()
		if ok {
			err := e.onRequest(originID, payload.(*messages.Request))
			if err != nil {
				return err
			}
			continue
		}

		originID, payload, ok = e.pendingExtensionRequests.Pop()
		if ok {
			err := e.onChainExtensionRequest(originID, payload.(*messages.ChainExtensionRequest))
			if err != nil {
				return err
			}
			continue
		}

		// when there is no more messages in the queue, back to the loop to wait
		// for the next incoming message to arrive.
		return nil
	}
}

func (e *Engine) processLocalEvents(ctx irrecoverable.SignalerContext) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, ok := e.pendingLocal.Pop()
		if !ok {
			return nil
		}
		var err error
		switch payload := msg.payload.(type) {
		case chain.UnverifiedJustification:
			err = e.onJustificationFromUser(payload)
		case chain.BlockID:
			err = e.onInternalRequest(payload)
		case chain.Block:
			err = e.onOwnBlock(payload)
		default:
			err = fmt.Errorf("unexpected local event of type %T", payload)
		}
		if err != nil {
			return err
		}
	}
}

func (e *Engine) processChainEvents(ctx irrecoverable.SignalerContext) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		event, ok := e.chainEvents.Pop()
		if !ok {
			return nil
		}
		switch event.Kind {
		case module.BlockImported:
			err := e.handler.BlockImported(event.Header)
			err = e.handleError(err, metrics.MessageChainEvent, "")
			if err != nil {
				return fmt.Errorf("could not mark block %s as imported: %w", event.Header.ID(), err)
			}
		case module.BlockFinalized:
			if e.ticker.TryTick() {
				err := e.broadcast()
				if err != nil {
					return err
				}
			}
		}
	}
}

// handleError decides whether a handler error concerns only the data being
// handled, in which case the data is dropped, or is fatal.
func (e *Engine) handleError(err error, msgType string, originID chain.PeerID) error {
	if err == nil {
		return nil
	}
	if !synccore.IsBenignError(err) {
		return err
	}

	lg := e.log.With().Str("origin", originID.String()).Str("message", msgType).Logger()
	switch {
	case forest.IsOutOfOrderError(err):
		e.metrics.MessageDropped(msgType, metrics.ReasonOutOfOrder)
		lg.Debug().Err(err).Msg("dropping out of order data")
	case errors.Is(err, synccore.ErrLastBlockOfSessionNotJustified):
		e.metrics.MessageDropped(msgType, metrics.ReasonSessionNotJustified)
		lg.Warn().Err(err).Msg("could not answer peer")
	default:
		e.metrics.MessageDropped(msgType, metrics.ReasonInvalidInput)
		lg.Warn().Err(err).Msg("dropping invalid input")
	}
	return nil
}

func (e *Engine) onState(originID chain.PeerID, state messages.State, msgType string) error {
	action, err := e.handler.HandleState(state, originID)
	err = e.handleError(err, msgType, originID)
	if err != nil {
		return fmt.Errorf("could not handle state of %s: %w", originID, err)
	}

	switch action.Kind {
	case synccore.HandleStateResponse:
		e.send(action.Response, originID)
	case synccore.HandleStateExtendChain:
		e.scheduleRequest(action.BlockID)
		return e.requestChainExtension(originID)
	}
	return nil
}

func (e *Engine) onStateBroadcastResponse(originID chain.PeerID, response *messages.StateBroadcastResponse) error {
	newHighest, err := e.handler.HandleStateResponse(response.Justification, response.Other, originID)
	err = e.handleError(err, metrics.MessageStateBroadcastResponse, originID)
	if err != nil {
		return fmt.Errorf("could not handle state response of %s: %w", originID, err)
	}
	if newHighest {
		e.scheduleRequest(e.handler.HighestJustified())
	}
	return nil
}

func (e *Engine) onRequest(originID chain.PeerID, request *messages.Request) error {
	action, err := e.handler.HandleRequest(*request)
	err = e.handleError(err, metrics.MessageRequest, originID)
	if err != nil {
		return fmt.Errorf("could not handle request of %s: %w", originID, err)
	}
	e.performAction(action, originID)

	// every request carries the state of the requester
	return e.onState(originID, request.State, metrics.MessageRequest)
}

func (e *Engine) onRequestResponse(originID chain.PeerID, response *messages.RequestResponse) error {
	newHighest, proofs, err := e.handler.HandleRequestResponse(response.Items, originID)
	for _, proof := range proofs {
		e.log.Warn().
			Str("origin", originID.String()).
			Uint16("author", uint16(proof.Author)).
			Uint64("slot", proof.Slot).
			Hex("first", logging.ID(proof.First.ID())).
			Hex("second", logging.ID(proof.Second.ID())).
			Msg("equivocation detected")
	}
	// items before a failing one are processed, so a new highest
	// justification is followed up on even if the rest was invalid
	if newHighest {
		e.scheduleRequest(e.handler.HighestJustified())
	}
	err = e.handleError(err, metrics.MessageRequestResponse, originID)
	if err != nil {
		return fmt.Errorf("could not handle response of %s: %w", originID, err)
	}
	return nil
}

func (e *Engine) onChainExtensionRequest(originID chain.PeerID, request *messages.ChainExtensionRequest) error {
	action, err := e.handler.HandleChainExtensionRequest(request.State)
	err = e.handleError(err, metrics.MessageChainExtensionRequest, originID)
	if err != nil {
		return fmt.Errorf("could not handle chain extension request of %s: %w", originID, err)
	}
	e.performAction(action, originID)
	return nil
}

func (e *Engine) onJustificationFromUser(justification chain.UnverifiedJustification) error {
	e.log.Debug().Hex("block_id", logging.ID(justification.ID())).Msg("received justification from user")
	newHighest, err := e.handler.HandleJustificationFromUser(justification)
	err = e.handleError(err, metrics.MessageJustificationFromUser, "")
	if err != nil {
		return fmt.Errorf("could not handle justification from user: %w", err)
	}
	if newHighest {
		e.scheduleRequest(e.handler.HighestJustified())
	}
	return nil
}

func (e *Engine) onInternalRequest(id chain.BlockID) error {
	shouldRequest, err := e.handler.HandleInternalRequest(id)
	err = e.handleError(err, metrics.MessageInternalRequest, "")
	if err != nil {
		return fmt.Errorf("could not handle internal request for %s: %w", id, err)
	}
	if !shouldRequest {
		logging.Block(e.log.Debug(), id).Msg("block already requested")
		return nil
	}
	e.scheduleRequest(id)
	return nil
}

func (e *Engine) onOwnBlock(block chain.Block) error {
	_, err := e.handler.HandleOwnBlock(block)
	err = e.handleError(err, metrics.MessageOwnBlock, "")
	if err != nil {
		return fmt.Errorf("could not import own block %s: %w", block.ID(), err)
	}
	return nil
}

// performAction sends the response, or starts requesting the block the peer
// asked us about. Responses above the message size limit go out in several
// messages.
func (e *Engine) performAction(action synccore.Action, originID chain.PeerID) {
	switch action.Kind {
	case synccore.ActionResponse:
		responses, err := e.limiter.Split(action.Items)
		if err != nil {
			e.log.Warn().Err(err).
				Str("target", originID.String()).
				Int("items", len(action.Items)).
				Msg("could not fit the whole response into messages, sending what fits")
		}
		for _, response := range responses {
			e.send(response, originID)
		}
	case synccore.ActionRequestBlock:
		e.scheduleRequest(action.BlockID)
	}
}

func (e *Engine) scheduleRequest(id chain.BlockID) {
	logging.Block(e.log.Debug(), id).Msg("initiating block request")
	e.tasks.ScheduleIn(NewRequestTask(id, e.cfg), 0)
}

func (e *Engine) handleTask(task RequestTask) error {
	e.log.Trace().Msg(task.String())
	request, next, delay, ok := task.Process(e.handler.RequestInterest)
	if !ok {
		return nil
	}
	state, err := e.handler.State()
	if err != nil {
		return fmt.Errorf("could not construct own state: %w", err)
	}

	msg, peers := request.WithState(state)
	err = e.con.Multicast(msg, 1, peers...)
	if err != nil {
		e.logSendError(err, msg)
	} else {
		e.metrics.MessageSent(metrics.MessageRequest)
		e.metrics.RequestSent(next.Tries())
	}
	e.tasks.ScheduleIn(next, delay)
	return nil
}

func (e *Engine) broadcast() error {
	state, err := e.handler.State()
	if err != nil {
		return fmt.Errorf("could not construct own state: %w", err)
	}
	msg := &messages.StateBroadcast{State: state}
	err = e.con.Publish(msg)
	if err != nil {
		e.logSendError(err, msg)
		return nil
	}
	e.metrics.MessageSent(metrics.MessageStateBroadcast)
	return nil
}

func (e *Engine) requestChainExtension(originID chain.PeerID) error {
	state, err := e.handler.State()
	if err != nil {
		return fmt.Errorf("could not construct own state: %w", err)
	}
	e.send(&messages.ChainExtensionRequest{State: state}, originID)
	return nil
}

// send delivers the message to a single peer. The network is unreliable, so
// failures are only logged.
func (e *Engine) send(msg interface{}, targetID chain.PeerID) {
	err := e.con.Unicast(msg, targetID)
	if err != nil {
		e.logSendError(err, msg)
		return
	}
	e.metrics.MessageSent(messageType(msg))
}

func (e *Engine) logSendError(err error, msg interface{}) {
	if errors.Is(err, network.EmptyTargetList) {
		e.log.Debug().Str("message", messageType(msg)).Msg("no peers to send to")
		return
	}
	e.log.Warn().Err(err).Str("message", messageType(msg)).Msg("could not send message")
}

func messageType(event interface{}) string {
	switch event.(type) {
	case *messages.StateBroadcast:
		return metrics.MessageStateBroadcast
	case *messages.StateBroadcastResponse:
		return metrics.MessageStateBroadcastResponse
	case *messages.Request:
		return metrics.MessageRequest
	case *messages.RequestResponse:
		return metrics.MessageRequestResponse
	case *messages.ChainExtensionRequest:
		return metrics.MessageChainExtensionRequest
	default:
		return fmt.Sprintf("%T", event)
	}
}
