package codec

import (
	"fmt"

	"github.com/finalitylabs/blocksync/model/messages"
)

const (
	// MaxBlockSize bounds the encoding of a single block within a sync message.
	MaxBlockSize = 1 << 20
	// DefaultMaxMessageSize fits ten full blocks together with their headers
	// and justifications.
	DefaultMaxMessageSize = 11 * MaxBlockSize
)

// Codes of the sync protocol messages. The code is the first byte of every
// encoded message.
const (
	CodeMin uint8 = iota + 1

	CodeStateBroadcast
	CodeStateBroadcastResponse
	CodeRequest
	CodeRequestResponse
	CodeChainExtensionRequest

	CodeMax
)

// MessageCodeFromInterface returns the correct Code based on the underlying type of message v.
func MessageCodeFromInterface(v interface{}) (uint8, string, error) {
	switch v.(type) {
	case *messages.StateBroadcast:
		return CodeStateBroadcast, "messages.StateBroadcast", nil
	case *messages.StateBroadcastResponse:
		return CodeStateBroadcastResponse, "messages.StateBroadcastResponse", nil
	case *messages.Request:
		return CodeRequest, "messages.Request", nil
	case *messages.RequestResponse:
		return CodeRequestResponse, "messages.RequestResponse", nil
	case *messages.ChainExtensionRequest:
		return CodeChainExtensionRequest, "messages.ChainExtensionRequest", nil
	default:
		return 0, "", fmt.Errorf("invalid encode type (%T)", v)
	}
}

// InterfaceFromMessageCode returns an empty message of the type belonging to
// the code, ready to be decoded into.
func InterfaceFromMessageCode(code uint8) (interface{}, string, error) {
	switch code {
	case CodeStateBroadcast:
		return &messages.StateBroadcast{}, "messages.StateBroadcast", nil
	case CodeStateBroadcastResponse:
		return &messages.StateBroadcastResponse{}, "messages.StateBroadcastResponse", nil
	case CodeRequest:
		return &messages.Request{}, "messages.Request", nil
	case CodeRequestResponse:
		return &messages.RequestResponse{}, "messages.RequestResponse", nil
	case CodeChainExtensionRequest:
		return &messages.ChainExtensionRequest{}, "messages.ChainExtensionRequest", nil
	default:
		return nil, "", NewUnknownCodeError(code)
	}
}
