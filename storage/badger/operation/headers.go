package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/finalitylabs/blocksync/model/chain"
)

func InsertHeader(blockID chain.BlockID, header *chain.Header) func(*badger.Txn) error {
	return insert(makePrefix(codeHeader, blockID), header)
}

func RetrieveHeader(blockID chain.BlockID, header *chain.Header) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeader, blockID), header)
}

func HeaderExists(blockID chain.BlockID, exists *bool) func(*badger.Txn) error {
	return check(makePrefix(codeHeader, blockID), exists)
}

func InsertPayload(blockID chain.BlockID, payload []byte) func(*badger.Txn) error {
	return insert(makePrefix(codePayload, blockID), payload)
}

func RetrievePayload(blockID chain.BlockID, payload *[]byte) func(*badger.Txn) error {
	return retrieve(makePrefix(codePayload, blockID), payload)
}

// IndexChild indexes the child under its parent, so all children of a block
// can be looked up with a prefix scan.
func IndexChild(parentID chain.BlockID, childID chain.BlockID) func(*badger.Txn) error {
	return insert(makePrefix(codeChildren, parentID, childID), childID)
}

// LookupChildren collects the ids of all indexed children of the block.
func LookupChildren(parentID chain.BlockID, childIDs *[]chain.BlockID) func(*badger.Txn) error {
	*childIDs = (*childIDs)[:0]
	return traverse(makePrefix(codeChildren, parentID), func() (createFunc, handleFunc) {
		var childID chain.BlockID
		create := func() interface{} {
			return &childID
		}
		handle := func() error {
			*childIDs = append(*childIDs, childID)
			return nil
		}
		return create, handle
	})
}
