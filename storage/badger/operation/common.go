package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/finalitylabs/blocksync/storage"
)

// insert stores the encoded entity under a key that must not exist yet,
// otherwise it fails with storage.ErrAlreadyExists.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key: %w", err)
		}
		return set(tx, key, entity)
	}
}

// upsert stores the encoded entity, replacing any previous value.
func upsert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		return set(tx, key, entity)
	}
}

func set(tx *badger.Txn, key []byte, entity interface{}) error {
	val, err := encodeEntity(entity)
	if err != nil {
		return err
	}
	err = tx.Set(key, val)
	if err != nil {
		return fmt.Errorf("could not store data: %w", err)
	}
	return nil
}

func check(key []byte, exists *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			*exists = false
			return nil
		case err != nil:
			return fmt.Errorf("could not check existence: %w", err)
		}
		*exists = true
		return nil
	}
}

// retrieve decodes the value under the key into entity, which must be a
// pointer. A missing key gives storage.ErrNotFound, an undecodable value an
// irrecoverable.Exception.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load data: %w", err)
		}
		return item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
	}
}

// createFunc returns the pointer the next value is decoded into.
type createFunc func() interface{}

// handleFunc consumes the value decoded last.
type handleFunc func() error

type iterationFunc func() (createFunc, handleFunc)

// traverse visits all values whose keys start with prefix, in key order.
func traverse(prefix []byte, iteration iterationFunc) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(prefix) == 0 {
			return fmt.Errorf("prefix must not be empty")
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			create, handle := iteration()
			err := it.Item().Value(func(val []byte) error {
				err := decodeValue(val, create())
				if err != nil {
					return err
				}
				return handle()
			})
			if err != nil {
				return fmt.Errorf("could not process value: %w", err)
			}
		}
		return nil
	}
}
