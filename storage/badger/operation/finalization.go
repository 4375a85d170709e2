package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/finalitylabs/blocksync/model/chain"
)

// InsertJustification stores the justification of a finalized block in its
// wire form.
func InsertJustification(blockID chain.BlockID, justification *chain.UnverifiedJustification) func(*badger.Txn) error {
	return insert(makePrefix(codeJustification, blockID), justification)
}

func RetrieveJustification(blockID chain.BlockID, justification *chain.UnverifiedJustification) func(*badger.Txn) error {
	return retrieve(makePrefix(codeJustification, blockID), justification)
}

func JustificationExists(blockID chain.BlockID, exists *bool) func(*badger.Txn) error {
	return check(makePrefix(codeJustification, blockID), exists)
}

// IndexFinalizedHeight maps a height to the finalized block at that height.
func IndexFinalizedHeight(number chain.BlockNumber, blockID chain.BlockID) func(*badger.Txn) error {
	return insert(makePrefix(codeFinalizedHeight, number), blockID)
}

func LookupFinalizedHeight(number chain.BlockNumber, blockID *chain.BlockID) func(*badger.Txn) error {
	return retrieve(makePrefix(codeFinalizedHeight, number), blockID)
}

func InsertTopFinalized(blockID chain.BlockID) func(*badger.Txn) error {
	return insert(makePrefix(codeTopFinalized), blockID)
}

func UpdateTopFinalized(blockID chain.BlockID) func(*badger.Txn) error {
	return upsert(makePrefix(codeTopFinalized), blockID)
}

func RetrieveTopFinalized(blockID *chain.BlockID) func(*badger.Txn) error {
	return retrieve(makePrefix(codeTopFinalized), blockID)
}

func UpdateBestBlock(blockID chain.BlockID) func(*badger.Txn) error {
	return upsert(makePrefix(codeBestBlock), blockID)
}

func RetrieveBestBlock(blockID *chain.BlockID) func(*badger.Txn) error {
	return retrieve(makePrefix(codeBestBlock), blockID)
}
