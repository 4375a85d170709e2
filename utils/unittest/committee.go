package unittest

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module/verification"
)

// Committee is a set of authority keys that seals blocks and signs
// justifications, so tests can exercise the real verifier.
type Committee struct {
	Keys    []ed25519.PrivateKey
	Genesis chain.Block
	slot    uint64
}

// CommitteeFixture creates a committee of the given size with a fresh genesis.
func CommitteeFixture(t testing.TB, size int) *Committee {
	keys := make([]ed25519.PrivateKey, 0, size)
	for i := 0; i < size; i++ {
		_, key, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys = append(keys, key)
	}
	return &Committee{
		Keys:    keys,
		Genesis: GenesisFixture(),
	}
}

// PublicKeys returns the public keys of the committee, in authority order.
func (c *Committee) PublicKeys() []ed25519.PublicKey {
	pks := make([]ed25519.PublicKey, 0, len(c.Keys))
	for _, key := range c.Keys {
		pks = append(pks, key.Public().(ed25519.PublicKey))
	}
	return pks
}

// Verifier returns a verifier for the committee.
func (c *Committee) Verifier(t testing.TB, opts ...verification.Option) *verification.Verifier {
	v, err := verification.NewVerifier(Logger(), c.PublicKeys(), c.Genesis.ID(), opts...)
	require.NoError(t, err)
	return v
}

// Extend returns n sealed blocks on top of the parent. Every block gets a
// fresh slot, so branches built by one committee never equivocate.
func (c *Committee) Extend(parent chain.Header, n int) []chain.Block {
	blocks := make([]chain.Block, 0, n)
	for i := 0; i < n; i++ {
		c.slot++
		author := chain.AuthorityIndex(c.slot % uint64(len(c.Keys)))
		block := chain.NewBlock(parent, author, c.slot, randomBytes(8))
		verification.SealHeader(c.Keys[author], &block.Header)
		blocks = append(blocks, block)
		parent = block.Header
	}
	return blocks
}

// Equivocate returns a sealed block by the same author for the same slot as
// the given header, but with different content.
func (c *Committee) Equivocate(parent chain.Header, header chain.Header) chain.Block {
	block := chain.NewBlock(parent, header.Author, header.Slot, randomBytes(8))
	verification.SealHeader(c.Keys[header.Author], &block.Header)
	return block
}

// Justify returns a justification for the header signed by the whole committee.
func (c *Committee) Justify(header chain.Header) chain.UnverifiedJustification {
	keys := make(map[chain.AuthorityIndex]ed25519.PrivateKey, len(c.Keys))
	for i, key := range c.Keys {
		keys[chain.AuthorityIndex(i)] = key
	}
	return verification.SignJustification(keys, header)
}

// GenesisJustification returns the justification of the genesis block.
func (c *Committee) GenesisJustification() chain.Justification {
	return chain.NewJustification(chain.UnverifiedJustification{Header: c.Genesis.Header})
}
