package synchronization

import (
	"errors"
	"fmt"

	"github.com/finalitylabs/blocksync/module/forest"
)

var (
	// ErrBlockNotImportable is returned when a peer sends us a block we do not want.
	ErrBlockNotImportable = errors.New("block not importable")

	// ErrMissingBlock is returned when storage lacks a block needed for a response.
	ErrMissingBlock = errors.New("missing block")
	// ErrMissingParent is returned when a non-genesis header in storage has no parent.
	ErrMissingParent = errors.New("missing parent")
	// ErrRootMismatch is returned when the requested branch does not lead to the
	// top justification of the requester.
	ErrRootMismatch = errors.New("root mismatch")
	// ErrLastBlockOfSessionNotJustified is returned when a session boundary block
	// is finalized without its own justification.
	ErrLastBlockOfSessionNotJustified = errors.New("last block of session not justified")
)

// InvalidInputError indicates that data received from another node, or a
// request it made, could not be processed. The node should log and drop it.
type InvalidInputError struct {
	err error
}

func NewInvalidInputError(err error) error {
	return InvalidInputError{err: err}
}

func NewInvalidInputErrorf(msg string, args ...interface{}) error {
	return InvalidInputError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidInputError) Error() string {
	return e.err.Error()
}

func (e InvalidInputError) Unwrap() error {
	return e.err
}

// IsInvalidInputError returns whether the error is an InvalidInputError.
func IsInvalidInputError(err error) bool {
	var e InvalidInputError
	return errors.As(err, &e)
}

// IsBenignError returns whether the error only affects the operation that
// returned it. A missing session boundary justification prevents us from
// answering a peer but leaves our own state intact. Any other error from the
// handler means storage is broken, or is an irrecoverable exception, and the
// node cannot continue.
func IsBenignError(err error) bool {
	return IsInvalidInputError(err) ||
		forest.IsOutOfOrderError(err) ||
		errors.Is(err, ErrLastBlockOfSessionNotJustified)
}

func isRequestHandlerError(err error) bool {
	return errors.Is(err, ErrMissingBlock) ||
		errors.Is(err, ErrMissingParent) ||
		errors.Is(err, ErrRootMismatch) ||
		errors.Is(err, ErrLastBlockOfSessionNotJustified)
}
