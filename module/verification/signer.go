package verification

import (
	"crypto/ed25519"

	"github.com/finalitylabs/blocksync/model/chain"
)

var (
	headerTag        = []byte("blocksync-header")
	justificationTag = []byte("blocksync-justification")
)

func headerMessage(id chain.BlockID) []byte {
	return append(append([]byte{}, headerTag...), id.Hash[:]...)
}

func justificationMessage(id chain.BlockID) []byte {
	return append(append([]byte{}, justificationTag...), id.Hash[:]...)
}

// SealHeader sets the seal of the header to the signature of the author.
func SealHeader(key ed25519.PrivateKey, header *chain.Header) {
	header.Seal = ed25519.Sign(key, headerMessage(header.ID()))
}

// SignJustification signs the header with every given committee key.
func SignJustification(keys map[chain.AuthorityIndex]ed25519.PrivateKey, header chain.Header) chain.UnverifiedJustification {
	id := header.ID()
	justification := chain.UnverifiedJustification{Header: header}
	for index, key := range keys {
		justification.Signatures = append(justification.Signatures, chain.AuthoritySignature{
			Signer:    index,
			Signature: ed25519.Sign(key, justificationMessage(id)),
		})
	}
	return justification
}
