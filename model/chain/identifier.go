package chain

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// BlockNumber is the height of a block, genesis has number zero.
type BlockNumber uint32

// Hash is a 32-byte blake2b digest.
type Hash [32]byte

// ZeroHash is the hash with all bytes set to zero.
var ZeroHash Hash

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HexStringToHash converts a hex string to a hash.
func HexStringToHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("could not decode hex string: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("illegal hash length %d, expected %d", len(b), len(h))
	}
	copy(h[:], b)
	return h, nil
}

// BlockID identifies a block by its hash and its number. Two ids are only
// equal if both the hash and the number match, ordering is by number only.
type BlockID struct {
	Hash   Hash
	Number BlockNumber
}

func (id BlockID) String() string {
	return fmt.Sprintf("#%d (%s)", id.Number, id.Hash.String()[:8])
}

// Less orders ids by block number.
func (id BlockID) Less(other BlockID) bool {
	return id.Number < other.Number
}

// canonical is the encoding used for hashing, map keys are sorted so the
// output is deterministic.
var canonical cbor.EncMode

func init() {
	var err error
	canonical, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not create canonical cbor encoder: %s", err))
	}
}

// MakeHash hashes the canonical encoding of the given entity.
func MakeHash(entity interface{}) Hash {
	data, err := canonical.Marshal(entity)
	if err != nil {
		panic(fmt.Sprintf("could not encode entity for hashing: %s", err))
	}
	return HashBytes(data)
}

// HashBytes returns the blake2b-256 digest of the given bytes.
func HashBytes(data []byte) Hash {
	return blake2b.Sum256(data)
}
