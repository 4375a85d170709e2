package codec

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned for data too short to carry a message code.
var ErrInvalidEncoding = errors.New("sync message without message code")

// UnknownCodeError is returned when the first byte of a sync message is not
// one of the message codes.
type UnknownCodeError struct {
	Code uint8
}

func NewUnknownCodeError(code uint8) UnknownCodeError {
	return UnknownCodeError{Code: code}
}

func (e UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown sync message code %d", e.Code)
}

func IsUnknownCodeError(err error) bool {
	var e UnknownCodeError
	return errors.As(err, &e)
}

// MalformedMessageError is returned when the payload does not decode into
// the message type its code announces.
type MalformedMessageError struct {
	Code    uint8
	MsgType string
	err     error
}

func NewMalformedMessageError(code uint8, msgType string, err error) MalformedMessageError {
	return MalformedMessageError{Code: code, MsgType: msgType, err: err}
}

func (e MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed %s (code %d): %s", e.MsgType, e.Code, e.err)
}

func (e MalformedMessageError) Unwrap() error {
	return e.err
}

func IsMalformedMessageError(err error) bool {
	var e MalformedMessageError
	return errors.As(err, &e)
}

// MessageTooLargeError is returned for messages whose encoding exceeds the
// size limit, in either direction.
type MessageTooLargeError struct {
	Size  int
	Limit int
}

func (e MessageTooLargeError) Error() string {
	return fmt.Sprintf("sync message of %d bytes exceeds the limit of %d bytes", e.Size, e.Limit)
}

func IsMessageTooLargeError(err error) bool {
	var e MessageTooLargeError
	return errors.As(err, &e)
}
