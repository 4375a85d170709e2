package metrics

const (
	LabelMessage = "message"
	LabelReason  = "reason"
	LabelAttempt = "attempt"
)

const namespaceSync = "blocksync"

const (
	subsystemNetwork  = "network"
	subsystemForest   = "forest"
	subsystemChain    = "chain"
	subsystemRequests = "requests"
	subsystemVerifier = "verifier"
)

const (
	MessageStateBroadcast         = "state_broadcast"
	MessageStateBroadcastResponse = "state_broadcast_response"
	MessageRequest                = "request"
	MessageRequestResponse        = "request_response"
	MessageChainExtensionRequest  = "chain_extension_request"
	MessageJustificationFromUser  = "user_justification"
	MessageInternalRequest        = "internal_request"
	MessageOwnBlock               = "own_block"
	MessageChainEvent             = "chain_event"
)

const (
	ReasonInvalidInput        = "invalid_input"
	ReasonOutOfOrder          = "out_of_order"
	ReasonSessionNotJustified = "session_not_justified"
	ReasonQueueFull           = "queue_full"
	ReasonUnknownType         = "unknown_type"
	ReasonRateLimited         = "rate_limited"
)
