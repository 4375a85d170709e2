package forest

import (
	"errors"
)

// Errors returned when the forest is asked to do something out of order.
// None of them leaves the forest in an inconsistent state.
var (
	ErrHeaderMissingParentID = errors.New("header is missing parent id")
	ErrIncorrectParentState  = errors.New("parent is in an incorrect state")
	ErrIncorrectVertexState  = errors.New("vertex is in an incorrect state")
	ErrParentNotImported     = errors.New("parent not imported")
	ErrTooNew                = errors.New("block too new")
)

// IsOutOfOrderError returns whether the error is one of the errors above.
func IsOutOfOrderError(err error) bool {
	return errors.Is(err, ErrHeaderMissingParentID) ||
		errors.Is(err, ErrIncorrectParentState) ||
		errors.Is(err, ErrIncorrectVertexState) ||
		errors.Is(err, ErrParentNotImported) ||
		errors.Is(err, ErrTooNew)
}
