package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/finalitylabs/blocksync/storage"
)

// RetryOnConflict runs the operation in a transaction until it does not
// conflict with a concurrent one.
func RetryOnConflict(action func(func(*badger.Txn) error) error, op func(tx *badger.Txn) error) error {
	for {
		err := action(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

// SkipDuplicates ignores storage.ErrAlreadyExists returned by the operation.
func SkipDuplicates(op func(*badger.Txn) error) func(tx *badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
}
