package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
)

const (

	// codes for special database markers
	codeTopFinalized = 1
	codeBestBlock    = 2

	// codes for entities
	codeHeader        = 10
	codePayload       = 11
	codeJustification = 12

	// codes for indexes
	codeFinalizedHeight = 20
	codeChildren        = 21
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case chain.BlockNumber:
		return b(uint32(i))
	case chain.Hash:
		return i[:]
	case chain.BlockID:
		return append(b(i.Number), i.Hash[:]...)
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
