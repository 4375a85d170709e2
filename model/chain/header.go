package chain

import (
	"fmt"
)

// AuthorityIndex is the position of an authority in the committee.
type AuthorityIndex uint16

// Header contains all meta-data for a block. The parent hash is absent only
// for the genesis block.
type Header struct {
	ParentHash  *Hash
	Number      BlockNumber
	Author      AuthorityIndex
	Slot        uint64
	PayloadHash Hash
	Extra       []byte
	Seal        []byte // author signature over the body
}

// Body returns the part of the header covered by its id and seal.
func (h Header) Body() interface{} {
	return struct {
		ParentHash  *Hash
		Number      BlockNumber
		Author      AuthorityIndex
		Slot        uint64
		PayloadHash Hash
		Extra       []byte
	}{
		ParentHash:  h.ParentHash,
		Number:      h.Number,
		Author:      h.Author,
		Slot:        h.Slot,
		PayloadHash: h.PayloadHash,
		Extra:       h.Extra,
	}
}

// ID returns the id of the block described by this header.
func (h Header) ID() BlockID {
	return BlockID{
		Hash:   MakeHash(h.Body()),
		Number: h.Number,
	}
}

// ParentID returns the id of the parent. The second return value is false
// if the header has no parent, which is only valid for genesis.
func (h Header) ParentID() (BlockID, bool) {
	if h.ParentHash == nil || h.Number == 0 {
		return BlockID{}, false
	}
	return BlockID{
		Hash:   *h.ParentHash,
		Number: h.Number - 1,
	}, true
}

// Validate checks the structural properties of a header that do not require
// any cryptography.
func (h Header) Validate() error {
	if h.Number == 0 {
		if h.ParentHash != nil {
			return fmt.Errorf("genesis header must not reference a parent")
		}
		return nil
	}
	if h.ParentHash == nil {
		return fmt.Errorf("header %d is missing a parent hash", h.Number)
	}
	return nil
}

// Block is a header together with its payload.
type Block struct {
	Header  Header
	Payload []byte
}

// NewBlock creates a block on top of the given parent, the payload hash is
// set from the payload.
func NewBlock(parent Header, author AuthorityIndex, slot uint64, payload []byte) Block {
	parentHash := parent.ID().Hash
	return Block{
		Header: Header{
			ParentHash:  &parentHash,
			Number:      parent.Number + 1,
			Author:      author,
			Slot:        slot,
			PayloadHash: HashBytes(payload),
		},
		Payload: payload,
	}
}

// Genesis returns the genesis block for the chain with the given name.
func Genesis(chainName string) Block {
	payload := []byte(chainName)
	return Block{
		Header: Header{
			Number:      0,
			PayloadHash: HashBytes(payload),
		},
		Payload: payload,
	}
}

// ID returns the id of the block.
func (b Block) ID() BlockID {
	return b.Header.ID()
}

// Valid checks whether the payload matches the payload hash of the header.
func (b Block) Valid() bool {
	return b.Header.PayloadHash == HashBytes(b.Payload)
}
