package unittest

import (
	"crypto/rand"
	"fmt"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(fmt.Sprintf("could not read random bytes: %s", err))
	}
	return b
}

// HashFixture returns a random hash.
func HashFixture() chain.Hash {
	var h chain.Hash
	copy(h[:], randomBytes(len(h)))
	return h
}

// BlockIDFixture returns a random id at the given height.
func BlockIDFixture(number chain.BlockNumber) chain.BlockID {
	return chain.BlockID{Hash: HashFixture(), Number: number}
}

// PeerIDFixture returns a peer id.
func PeerIDFixture(i int) chain.PeerID {
	return chain.PeerID(fmt.Sprintf("peer-%d", i))
}

// GenesisFixture returns a genesis block.
func GenesisFixture() chain.Block {
	return chain.Genesis("blocksync-test")
}

// BlockWithParentFixture returns an unsealed block on top of the parent.
// Random extra data makes every call return a different block.
func BlockWithParentFixture(parent chain.Header) chain.Block {
	block := chain.NewBlock(parent, 0, uint64(parent.Number)+1, randomBytes(8))
	block.Header.Extra = randomBytes(8)
	return block
}

// HeaderWithParentFixture returns an unsealed header on top of the parent.
func HeaderWithParentFixture(parent chain.Header) chain.Header {
	return BlockWithParentFixture(parent).Header
}

// ChainFixture returns n blocks, each on top of the previous one, starting on
// top of the parent.
func ChainFixture(parent chain.Header, n int) []chain.Block {
	blocks := make([]chain.Block, 0, n)
	for i := 0; i < n; i++ {
		block := BlockWithParentFixture(parent)
		blocks = append(blocks, block)
		parent = block.Header
	}
	return blocks
}

// HeadersOf returns the headers of the blocks.
func HeadersOf(blocks []chain.Block) []chain.Header {
	headers := make([]chain.Header, 0, len(blocks))
	for _, block := range blocks {
		headers = append(headers, block.Header)
	}
	return headers
}

// JustificationFixture returns a trusted justification without signatures.
// It is only meaningful for code that does not verify.
func JustificationFixture(header chain.Header) chain.Justification {
	return chain.NewJustification(chain.UnverifiedJustification{Header: header})
}

// StateFixture returns a sync state with the given top justification.
func StateFixture(top chain.Justification) messages.State {
	return messages.State{TopJustification: top.IntoUnverified()}
}
