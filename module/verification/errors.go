package verification

import (
	"errors"
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
)

var (
	// ErrUnknownAuthority is returned when a signer index is outside the committee.
	ErrUnknownAuthority = errors.New("unknown authority")
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// InvalidJustificationError is returned when a justification is not backed
// by a quorum of valid committee signatures.
type InvalidJustificationError struct {
	BlockID chain.BlockID
	Valid   int
	Quorum  int
}

func (e InvalidJustificationError) Error() string {
	return fmt.Sprintf("justification for %s has %d valid signatures, quorum is %d", e.BlockID, e.Valid, e.Quorum)
}

// IsInvalidJustificationError returns whether err is an InvalidJustificationError.
func IsInvalidJustificationError(err error) bool {
	var e InvalidJustificationError
	return errors.As(err, &e)
}
